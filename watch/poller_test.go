package watch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rfc003/swapd/watch/blockcache"
)

type fakeBlock struct {
	hash   string
	parent string
	height uint64
	t      time.Time
}

func (b *fakeBlock) Hash() string          { return b.hash }
func (b *fakeBlock) ParentHash() string    { return b.parent }
func (b *fakeBlock) Height() uint64        { return b.height }
func (b *fakeBlock) Timestamp() time.Time  { return b.t }

type fakeClient struct {
	byHash map[string]*fakeBlock
	tip    *fakeBlock
}

func (c *fakeClient) LatestBlock(ctx context.Context) (Block, error) {
	return c.tip, nil
}

func (c *fakeClient) BlockByHash(ctx context.Context, hash string) (Block, error) {
	b, ok := c.byHash[hash]
	if !ok {
		return nil, errNotFound
	}
	return b, nil
}

var errNotFound = errNotFoundErr{}

type errNotFoundErr struct{}

func (errNotFoundErr) Error() string { return "watch: block not found" }

func chainOfBlocks(n int, interval time.Duration, start time.Time) *fakeClient {
	c := &fakeClient{byHash: make(map[string]*fakeBlock)}
	var parent string
	for i := 0; i < n; i++ {
		b := &fakeBlock{
			hash:   blockHash(i),
			parent: parent,
			height: uint64(i),
			t:      start.Add(time.Duration(i) * interval),
		}
		c.byHash[b.hash] = b
		parent = b.hash
		c.tip = b
	}
	return c
}

func blockHash(i int) string {
	const hexDigits = "0123456789abcdef"
	return "h" + string(hexDigits[i%16]) + string(rune('a'+i/16))
}

func TestBackoff_Sequence(t *testing.T) {
	b := NewBackoff()
	got := []time.Duration{b.Next(), b.Next(), b.Next(), b.Next(), b.Next(), b.Next(), b.Next()}
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second, // capped
	}
	require.Equal(t, want, got)
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff()
	b.Next()
	b.Next()
	b.Reset()
	require.Equal(t, 1*time.Second, b.Next())
}

func TestPoller_WalkBackToSince(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	client := chainOfBlocks(50, 30*time.Second, start)
	poller := NewPoller(client, blockcache.New(128), 5*time.Second)

	tip, err := poller.LatestBlock(context.Background())
	require.NoError(t, err)

	// since = tip's time; Margin (15min = 30 blocks at 30s/block) means the
	// walk must reach back roughly 30 blocks from tip.
	since := tip.Timestamp()
	chain, err := poller.WalkBackToSince(context.Background(), tip, since)
	require.NoError(t, err)
	require.NotEmpty(t, chain)

	// returned chain must be oldest-first and end at tip.
	require.Equal(t, tip.Hash(), chain[len(chain)-1].Hash())
	for i := 1; i < len(chain); i++ {
		require.True(t, chain[i].Timestamp().After(chain[i-1].Timestamp()) || chain[i].Timestamp().Equal(chain[i-1].Timestamp()))
	}

	// the oldest returned block must satisfy block_time <= since-Margin,
	// unless the walk hit genesis first.
	oldest := chain[0]
	if oldest.ParentHash() != "" {
		require.False(t, oldest.Timestamp().After(since.Add(-Margin)))
	}
}

func TestPoller_WalkForward_ScansEveryIntermediateBlock(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	client := chainOfBlocks(5, 30*time.Second, start)
	poller := NewPoller(client, blockcache.New(128), 5*time.Second)

	last, err := poller.BlockByHash(context.Background(), blockHash(1))
	require.NoError(t, err)

	tip, err := poller.LatestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, blockHash(4), tip.Hash())

	chain, err := poller.WalkForward(context.Background(), tip, last.Hash(), start)
	require.NoError(t, err)

	// every block strictly after height 1 up to tip must be present,
	// oldest first -- a forward poll that only rescanned the tip would
	// miss heights 2 and 3 entirely.
	require.Len(t, chain, 3)
	require.Equal(t, blockHash(2), chain[0].Hash())
	require.Equal(t, blockHash(3), chain[1].Hash())
	require.Equal(t, blockHash(4), chain[2].Hash())
}

func TestPoller_IsCanonical_DetectsReorgAndReplacesCache(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	client := chainOfBlocks(3, 30*time.Second, start)
	cache := blockcache.New(128)
	poller := NewPoller(client, cache, 5*time.Second)

	observed, err := poller.BlockByHash(context.Background(), blockHash(1))
	require.NoError(t, err)

	canonical, err := poller.IsCanonical(context.Background(), observed.Hash())
	require.NoError(t, err)
	require.True(t, canonical)

	// reorg: replace the block at height 1 with a different one.
	replacement := &fakeBlock{hash: "reorged-h1", parent: blockHash(0), height: 1, t: start.Add(30 * time.Second)}
	client.byHash[replacement.hash] = replacement
	newTip := &fakeBlock{hash: "reorged-h2", parent: replacement.hash, height: 2, t: start.Add(60 * time.Second)}
	client.byHash[newTip.hash] = newTip
	client.tip = newTip

	canonical, err = poller.IsCanonical(context.Background(), observed.Hash())
	require.NoError(t, err)
	require.False(t, canonical)

	cached, ok := cache.Get(replacement.hash)
	require.True(t, ok, "IsCanonical must install the new canonical block via Cache.Replace")
	require.Equal(t, replacement.hash, cached.Hash())
}

func TestPoller_IsCanonical_UnknownHashIsCanonical(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	client := chainOfBlocks(3, 30*time.Second, start)
	poller := NewPoller(client, blockcache.New(128), 5*time.Second)

	canonical, err := poller.IsCanonical(context.Background(), "never-seen")
	require.NoError(t, err)
	require.True(t, canonical)
}

func TestPoller_BlockByHash_CachesAndValidatesHash(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	client := chainOfBlocks(3, 30*time.Second, start)
	cache := blockcache.New(16)
	poller := NewPoller(client, cache, 5*time.Second)

	b, err := poller.BlockByHash(context.Background(), blockHash(1))
	require.NoError(t, err)
	require.Equal(t, blockHash(1), b.Hash())

	// second call must be served from cache without hitting the client
	// (verified indirectly: deleting the client's copy still resolves).
	delete(client.byHash, blockHash(1))
	b2, err := poller.BlockByHash(context.Background(), blockHash(1))
	require.NoError(t, err)
	require.Equal(t, b.Hash(), b2.Hash())
}
