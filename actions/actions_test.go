package actions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
	"github.com/rfc003/swapd/swap"
)

type fakeIdentity struct{ kind ledger.Kind }

func (f fakeIdentity) String() string    { return "fake" }
func (f fakeIdentity) Kind() ledger.Kind { return f.kind }

func baseRequest(alphaExpiry, betaExpiry int64) swap.Request {
	return swap.Request{
		SwapID: swap.NewID(),
		Alpha: swap.LedgerDescriptor{
			Kind:    ledger.Bitcoin,
			Asset:   htlc.Asset{Kind: ledger.AssetBitcoin, Amount: 1},
			Expiry:  alphaExpiry,
		},
		Beta: swap.LedgerDescriptor{
			Kind:    ledger.Ethereum,
			Asset:   htlc.Asset{Kind: ledger.AssetEther, Amount: 1},
			Expiry:  betaExpiry,
		},
		SecretHash:          htlc.SecretHash{0x11},
		AlphaRefundIdentity: fakeIdentity{ledger.Bitcoin},
		BetaRefundIdentity:  fakeIdentity{ledger.Ethereum},
	}
}

func acceptedState(t *testing.T, role swap.Role, alphaExpiry, betaExpiry int64) swap.ActorState {
	t.Helper()
	req := baseRequest(alphaExpiry, betaExpiry)
	s := swap.NewActorState(role, req, swap.NewSeed([32]byte{1}))
	require.NoError(t, s.Accept(swap.Accept{
		AlphaRedeemIdentity: fakeIdentity{ledger.Bitcoin},
		BetaRedeemIdentity:  fakeIdentity{ledger.Ethereum},
	}))
	return s
}

func kinds(acts []Action) []Kind {
	out := make([]Kind, len(acts))
	for i, a := range acts {
		out[i] = a.Kind
	}
	return out
}

func TestDerive_BobProposed(t *testing.T) {
	req := baseRequest(7200, 3600)
	state := swap.NewActorState(swap.Bob, req, swap.NewSeed([32]byte{1}))
	acts := Derive(state)
	require.ElementsMatch(t, []Kind{Accept, Decline}, kinds(acts))
}

func TestDerive_AliceProposed_Empty(t *testing.T) {
	req := baseRequest(7200, 3600)
	state := swap.NewActorState(swap.Alice, req, swap.NewSeed([32]byte{1}))
	require.Empty(t, Derive(state))
}

func TestDerive_BobDeclined_Empty(t *testing.T) {
	req := baseRequest(7200, 3600)
	state := swap.NewActorState(swap.Bob, req, swap.NewSeed([32]byte{1}))
	require.NoError(t, state.Decline())
	require.Empty(t, Derive(state))
}

func TestDerive_Alice_NotDeployed(t *testing.T) {
	state := acceptedState(t, swap.Alice, 7200, 3600)
	// alpha is Bitcoin (UTXO): Fund directly, no Deploy step.
	acts := Derive(state)
	require.Equal(t, []Kind{Fund}, kinds(acts))
	require.Equal(t, swap.AlphaSide, acts[0].Side)
}

func TestDerive_Alice_AccountLedgerAlpha_DeployBeforeFund(t *testing.T) {
	req := baseRequest(7200, 3600)
	req.Alpha.Kind = ledger.Ethereum
	req.Beta.Kind = ledger.Bitcoin
	state := swap.NewActorState(swap.Alice, req, swap.NewSeed([32]byte{1}))
	require.NoError(t, state.Accept(swap.Accept{
		AlphaRedeemIdentity: fakeIdentity{ledger.Ethereum},
		BetaRedeemIdentity:  fakeIdentity{ledger.Bitcoin},
	}))

	acts := Derive(state)
	require.Equal(t, []Kind{Deploy}, kinds(acts))
}

func TestDerive_Alice_IncorrectlyFunded(t *testing.T) {
	state := acceptedState(t, swap.Alice, 7200, 3600)
	state.Alpha.Tag = swap.IncorrectlyFunded
	acts := Derive(state)
	require.Equal(t, []Kind{Refund}, kinds(acts))
	require.NotNil(t, acts[0].MinBlockTimestamp)
	require.Equal(t, int64(7200), *acts[0].MinBlockTimestamp)
}

// TestDerive_Alice_FundedBoth checks that when both sides are Funded,
// Alice gets both Refund and Redeem.
func TestDerive_Alice_FundedBoth(t *testing.T) {
	state := acceptedState(t, swap.Alice, 7200, 3600)
	state.Alpha.Tag = swap.Funded
	state.Beta.Tag = swap.Funded

	acts := Derive(state)
	require.ElementsMatch(t, []Kind{Refund, Redeem}, kinds(acts))

	for _, a := range acts {
		if a.Kind == Redeem {
			require.Equal(t, swap.BetaSide, a.Side)
			require.NotNil(t, a.Secret)
			require.Equal(t, state.Seed.DeriveSecret(), *a.Secret)
		}
	}
}

// TestDerive_Alice_BobAbandons checks that after alpha expiry, with beta
// never deployed, Alice's only action is Refund(alpha).
func TestDerive_Alice_BobAbandons(t *testing.T) {
	state := acceptedState(t, swap.Alice, 7200, 3600)
	state.Alpha.Tag = swap.Funded
	// beta.Tag stays NotDeployed

	acts := Derive(state)
	require.Equal(t, []Kind{Refund}, kinds(acts))
	require.Equal(t, swap.AlphaSide, acts[0].Side)
}

func TestDerive_Bob_WaitingOnAlpha(t *testing.T) {
	state := acceptedState(t, swap.Bob, 7200, 3600)
	require.Empty(t, Derive(state))
}

func TestDerive_Bob_FundBetaAfterAlphaFunded(t *testing.T) {
	state := acceptedState(t, swap.Bob, 7200, 3600)
	state.Alpha.Tag = swap.Funded
	acts := Derive(state)
	require.Equal(t, []Kind{Fund}, kinds(acts))
	require.Equal(t, swap.BetaSide, acts[0].Side)
}

func TestDerive_Bob_DeployThenFundAccountLedger(t *testing.T) {
	state := acceptedState(t, swap.Bob, 7200, 3600)
	state.Alpha.Tag = swap.Funded
	state.Beta.Tag = swap.Deployed
	acts := Derive(state)
	require.Equal(t, []Kind{Fund}, kinds(acts))
}

func TestDerive_Bob_RefundBeta(t *testing.T) {
	state := acceptedState(t, swap.Bob, 7200, 3600)
	state.Alpha.Tag = swap.Funded
	state.Beta.Tag = swap.Funded
	acts := Derive(state)
	require.Equal(t, []Kind{Refund}, kinds(acts))
	require.Equal(t, swap.BetaSide, acts[0].Side)
}

// TestDerive_Bob_RedeemAlphaAfterSeeingSecret checks that once Bob
// observes Alice's beta redeem, he redeems alpha with the revealed secret.
func TestDerive_Bob_RedeemAlphaAfterSeeingSecret(t *testing.T) {
	state := acceptedState(t, swap.Bob, 7200, 3600)
	state.Alpha.Tag = swap.Funded
	state.Beta.Tag = swap.Redeemed
	secret := htlc.Secret{0x11}
	state.Beta.Secret = &secret

	acts := Derive(state)
	require.Equal(t, []Kind{Redeem}, kinds(acts))
	require.Equal(t, swap.AlphaSide, acts[0].Side)
	require.Equal(t, &secret, acts[0].Secret)
}

// TestDerive_Bob_TerminalAfterAlphaRedeemed checks that once Bob has
// redeemed alpha, he has no legal actions left.
func TestDerive_Bob_TerminalAfterAlphaRedeemed(t *testing.T) {
	state := acceptedState(t, swap.Bob, 7200, 3600)
	state.Alpha.Tag = swap.Redeemed
	state.Beta.Tag = swap.Funded
	require.Empty(t, Derive(state))
}

// TestDerive_Bob_IncorrectlyFunded checks that a Beta IncorrectlyFunded
// state yields no action for Bob (he cannot redeem or refund until expiry,
// and alpha is unaffected).
func TestDerive_Bob_IncorrectlyFunded(t *testing.T) {
	state := acceptedState(t, swap.Bob, 7200, 3600)
	state.Alpha.Tag = swap.Funded
	state.Beta.Tag = swap.IncorrectlyFunded
	require.Empty(t, Derive(state))
}

// TestDerive_Deterministic checks that actions(state) depends only on
// (role, communication, alpha, beta), not on call order.
func TestDerive_Deterministic(t *testing.T) {
	state := acceptedState(t, swap.Alice, 7200, 3600)
	state.Alpha.Tag = swap.Funded
	state.Beta.Tag = swap.Funded

	a1 := Derive(state)
	a2 := Derive(state)
	require.Equal(t, a1, a2)
}
