package driver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rfc003/swapd/actions"
	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
	"github.com/rfc003/swapd/swap"
)

type fakeIdentity struct {
	name string
	kind ledger.Kind
}

func (f fakeIdentity) String() string    { return f.name }
func (f fakeIdentity) Kind() ledger.Kind { return f.kind }

func testRequest(t *testing.T) swap.Request {
	t.Helper()
	return swap.Request{
		SwapID: swap.NewID(),
		Alpha: swap.LedgerDescriptor{
			Kind:    ledger.Bitcoin,
			ChainID: "regtest",
			Asset:   htlc.Asset{Kind: ledger.AssetBitcoin, Amount: 10_000_000},
			Expiry:  7200,
		},
		Beta: swap.LedgerDescriptor{
			Kind:    ledger.Ethereum,
			ChainID: "1337",
			Asset:   htlc.Asset{Kind: ledger.AssetEther, Amount: 1_500_000_000_000_000_000},
			Expiry:  3600,
		},
		SecretHash:          htlc.SecretHash{0x11},
		AlphaRefundIdentity: fakeIdentity{"alice-btc-refund", ledger.Bitcoin},
		BetaRefundIdentity:  fakeIdentity{"bob-eth-refund", ledger.Ethereum},
	}
}

func testAccept() swap.Accept {
	return swap.Accept{
		AlphaRedeemIdentity: fakeIdentity{"bob-btc-redeem", ledger.Bitcoin},
		BetaRedeemIdentity:  fakeIdentity{"alice-eth-redeem", ledger.Ethereum},
	}
}

func testSeed() swap.Seed {
	return swap.NewSeed([32]byte{1, 2, 3})
}

func TestNew_AcceptsAndSeedsState(t *testing.T) {
	req := testRequest(t)
	d, err := New(swap.Alice, req, testAccept(), testSeed(), Deps{})
	require.NoError(t, err)

	state := d.State()
	require.Equal(t, swap.Alice, state.Role)
	require.Equal(t, req.SwapID, state.Communication.Request.SwapID)
	require.Equal(t, swap.Accepted, state.Communication.Tag)
}

func TestDriver_Actions_DelegatesToDerive(t *testing.T) {
	req := testRequest(t)
	d, err := New(swap.Alice, req, testAccept(), testSeed(), Deps{})
	require.NoError(t, err)

	got := d.Actions()
	want := actions.Derive(d.State())
	require.Equal(t, want, got)
	require.NotEmpty(t, got, "a freshly accepted swap must give Alice at least one legal action (fund alpha)")
}

func TestDriver_Done_FalseForFreshSwap(t *testing.T) {
	req := testRequest(t)
	d, err := New(swap.Alice, req, testAccept(), testSeed(), Deps{})
	require.NoError(t, err)
	require.False(t, d.Done())
}

func TestDriver_ApplyMarkFailed(t *testing.T) {
	req := testRequest(t)
	d, err := New(swap.Alice, req, testAccept(), testSeed(), Deps{})
	require.NoError(t, err)

	d.markFailed()
	require.True(t, d.State().Failed)
}

func TestObserve_MissingDepsError(t *testing.T) {
	req := testRequest(t)
	d, err := New(swap.Alice, req, testAccept(), testSeed(), Deps{})
	require.NoError(t, err)

	alphaParams, err := swap.NewAlphaParams(req, testAccept())
	require.NoError(t, err)

	_, err = d.observe(nil, swap.AlphaSide, ledger.Bitcoin, alphaParams, time.Now())
	require.Error(t, err, "no bitcoin.Deps configured")
}
