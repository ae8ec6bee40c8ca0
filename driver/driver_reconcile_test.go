package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rfc003/swapd/internal/testutil"
	"github.com/rfc003/swapd/ledger"
	"github.com/rfc003/swapd/swap"
	"github.com/rfc003/swapd/watch"
	watchbtc "github.com/rfc003/swapd/watch/bitcoin"
	"github.com/rfc003/swapd/watch/blockcache"
)

// TestReconcileSide_RevokesWhenBlockNoLongerCanonical exercises the driver's
// reorg reconciliation: once the block a reported Deployed event lived in
// is replaced by a reorg, reconcileSide must apply a Revoked event
// regressing that side to its predecessor (spec.md S5).
func TestReconcileSide_RevokesWhenBlockNoLongerCanonical(t *testing.T) {
	client := testutil.NewFakeClient()
	start := time.Unix(1_700_000_000, 0)
	var blocks []*testutil.FakeBlock
	for i := 0; i < 3; i++ {
		blocks = append(blocks, client.Append(start, 30*time.Second))
	}
	revokedHash := blocks[1].Hash()

	cache := blockcache.New(64)
	poller := watch.NewPoller(client, cache, 5*time.Second)
	watcher := watchbtc.NewWatcher(poller, time.Second)

	// Seed the cache with the block a watcher would have reported.
	_, err := poller.BlockByHash(context.Background(), revokedHash)
	require.NoError(t, err)

	req := testRequest(t)
	d, err := New(swap.Bob, req, testAccept(), testSeed(), Deps{Bitcoin: &BitcoinDeps{Watcher: watcher}})
	require.NoError(t, err)
	d.state.Alpha = swap.LedgerState{Tag: swap.Deployed, BlockHash: revokedHash}

	client.Reorg(0, 4, 30*time.Second)

	revoked := d.reconcileSide(context.Background(), swap.AlphaSide, ledger.Bitcoin)
	require.True(t, revoked)
	require.Equal(t, swap.NotDeployed, d.State().Alpha.Tag)
	require.Empty(t, d.State().Alpha.BlockHash)
}

// TestReconcileSide_NoOpWhenStillCanonical checks the non-reorg path:
// nothing is applied and the ledger state is unchanged.
func TestReconcileSide_NoOpWhenStillCanonical(t *testing.T) {
	client := testutil.NewFakeClient()
	start := time.Unix(1_700_000_000, 0)
	var blocks []*testutil.FakeBlock
	for i := 0; i < 3; i++ {
		blocks = append(blocks, client.Append(start, 30*time.Second))
	}
	stillGoodHash := blocks[1].Hash()

	cache := blockcache.New(64)
	poller := watch.NewPoller(client, cache, 5*time.Second)
	watcher := watchbtc.NewWatcher(poller, time.Second)

	_, err := poller.BlockByHash(context.Background(), stillGoodHash)
	require.NoError(t, err)

	req := testRequest(t)
	d, err := New(swap.Bob, req, testAccept(), testSeed(), Deps{Bitcoin: &BitcoinDeps{Watcher: watcher}})
	require.NoError(t, err)
	d.state.Alpha = swap.LedgerState{Tag: swap.Deployed, BlockHash: stillGoodHash}

	client.Append(start, 30*time.Second) // extend the same branch, no reorg

	revoked := d.reconcileSide(context.Background(), swap.AlphaSide, ledger.Bitcoin)
	require.False(t, revoked)
	require.Equal(t, swap.Deployed, d.State().Alpha.Tag)
	require.Equal(t, stillGoodHash, d.State().Alpha.BlockHash)
}
