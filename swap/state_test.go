package swap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
)

type fakeIdentity struct {
	name string
	kind ledger.Kind
}

func (f fakeIdentity) String() string    { return f.name }
func (f fakeIdentity) Kind() ledger.Kind { return f.kind }

func testRequest(t *testing.T, alphaExpiry, betaExpiry int64) Request {
	t.Helper()
	return Request{
		SwapID: NewID(),
		Alpha: LedgerDescriptor{
			Kind:    ledger.Bitcoin,
			ChainID: "regtest",
			Asset:   htlc.Asset{Kind: ledger.AssetBitcoin, Amount: 10_000_000},
			Expiry:  alphaExpiry,
		},
		Beta: LedgerDescriptor{
			Kind:    ledger.Ethereum,
			ChainID: "1337",
			Asset:   htlc.Asset{Kind: ledger.AssetEther, Amount: 1_500_000_000_000_000_000},
			Expiry:  betaExpiry,
		},
		SecretHash:          htlc.SecretHash{0x11},
		AlphaRefundIdentity: fakeIdentity{"alice-btc-refund", ledger.Bitcoin},
		BetaRefundIdentity:  fakeIdentity{"bob-eth-refund", ledger.Ethereum},
	}
}

func testAccept() Accept {
	return Accept{
		AlphaRedeemIdentity: fakeIdentity{"bob-btc-redeem", ledger.Bitcoin},
		BetaRedeemIdentity:  fakeIdentity{"alice-eth-redeem", ledger.Ethereum},
	}
}

func TestRoleString(t *testing.T) {
	require.Equal(t, "Alice", Alice.String())
	require.Equal(t, "Bob", Bob.String())
}

func TestParseID_RoundTrip(t *testing.T) {
	id := NewID()
	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestParseID_Invalid(t *testing.T) {
	_, err := ParseID("not-a-uuid")
	require.Error(t, err)
}

// TestRequestValidate_ExpiryOrdering checks that alpha_expiry must exceed
// beta_expiry so Bob can safely reveal-then-redeem.
func TestRequestValidate_ExpiryOrdering(t *testing.T) {
	req := testRequest(t, 1000, 2000)
	err := req.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "configuration error")

	req = testRequest(t, 1000, 1000)
	require.Error(t, req.Validate())

	req = testRequest(t, 7200, 3600)
	require.NoError(t, req.Validate())
}

func TestRequestValidate_SameLedgerRejected(t *testing.T) {
	req := testRequest(t, 7200, 3600)
	req.Beta.Kind = ledger.Bitcoin
	err := req.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "must differ")
}

func TestNewAlphaBetaParams(t *testing.T) {
	req := testRequest(t, 7200, 3600)
	acc := testAccept()

	alpha, err := NewAlphaParams(req, acc)
	require.NoError(t, err)
	require.Equal(t, ledger.Bitcoin, alpha.LedgerKind)
	require.Equal(t, req.AlphaRefundIdentity, alpha.RefundIdentity)
	require.Equal(t, acc.AlphaRedeemIdentity, alpha.RedeemIdentity)
	require.Equal(t, req.Alpha.Expiry, alpha.Expiry)
	require.Equal(t, req.SecretHash, alpha.SecretHash)

	beta, err := NewBetaParams(req, acc)
	require.NoError(t, err)
	require.Equal(t, ledger.Ethereum, beta.LedgerKind)
	require.Equal(t, req.BetaRefundIdentity, beta.RefundIdentity)
	require.Equal(t, acc.BetaRedeemIdentity, beta.RedeemIdentity)
}

func TestSeed_DeriveSecret_Deterministic(t *testing.T) {
	seed := NewSeed([32]byte{1, 2, 3})
	s1 := seed.DeriveSecret()
	s2 := seed.DeriveSecret()
	require.Equal(t, s1, s2)

	other := NewSeed([32]byte{4, 5, 6})
	require.NotEqual(t, s1, other.DeriveSecret())
}

func TestActorState_IsDone(t *testing.T) {
	req := testRequest(t, 7200, 3600)
	state := NewActorState(Alice, req, NewSeed([32]byte{9}))
	require.False(t, state.IsDone())

	state.Alpha.Tag = Redeemed
	require.False(t, state.IsDone())

	state.Beta.Tag = Refunded
	require.True(t, state.IsDone())
}

func TestLedgerStateTag_String(t *testing.T) {
	cases := map[LedgerStateTag]string{
		NotDeployed:       "NotDeployed",
		Deployed:          "Deployed",
		Funded:            "Funded",
		IncorrectlyFunded: "IncorrectlyFunded",
		Redeemed:          "Redeemed",
		Refunded:          "Refunded",
	}
	for tag, want := range cases {
		require.Equal(t, want, tag.String())
	}
}
