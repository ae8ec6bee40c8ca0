// Package actions implements the action-derivation function: a pure
// function from an ActorState to the set of currently legal user actions.
package actions

import (
	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/swap"
)

// Kind enumerates the six action kinds an actor can take.
type Kind byte

const (
	Accept Kind = iota
	Decline
	Deploy
	Fund
	Redeem
	Refund
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Accept:
		return "Accept"
	case Decline:
		return "Decline"
	case Deploy:
		return "Deploy"
	case Fund:
		return "Fund"
	case Redeem:
		return "Redeem"
	case Refund:
		return "Refund"
	default:
		return "Unknown"
	}
}

// Action is one legal next move for an actor.
type Action struct {
	Kind Kind
	Side swap.Side // meaningful for Deploy/Fund/Redeem/Refund

	// Secret is set for Redeem: the preimage to reveal.
	Secret *htlc.Secret

	// MinBlockTimestamp gates a Refund action: the signing layer must
	// refuse to broadcast it before this unix timestamp. Nil for actions
	// with no such gate.
	MinBlockTimestamp *int64
}

// Derive computes actions(state): a total, deterministic function of
// (role, swap_communication, alpha_ledger_state, beta_ledger_state), and
// therefore correct under any interleaving of the two ledgers' observers.
func Derive(state swap.ActorState) []Action {
	if state.Communication.Tag != swap.Accepted {
		if state.Role == swap.Bob && state.Communication.Tag == swap.Proposed {
			return []Action{{Kind: Accept}, {Kind: Decline}}
		}
		return nil
	}

	if state.Role == swap.Alice {
		return deriveAlice(state)
	}
	return deriveBob(state)
}

func deriveAlice(state swap.ActorState) []Action {
	req := state.Communication.Request

	switch state.Alpha.Tag {
	case swap.IncorrectlyFunded:
		return []Action{refundAction(swap.AlphaSide, req.Alpha.Expiry)}

	case swap.NotDeployed:
		if req.Alpha.Kind.IsAccountBased() {
			return []Action{{Kind: Deploy, Side: swap.AlphaSide}}
		}
		return []Action{{Kind: Fund, Side: swap.AlphaSide}}

	case swap.Deployed:
		if req.Alpha.Kind.IsAccountBased() {
			return []Action{{Kind: Fund, Side: swap.AlphaSide}}
		}
		return nil // unreachable for UTXO ledgers: Deployed==Funded there

	case swap.Funded:
		if state.Beta.Tag == swap.Funded {
			secret := state.Seed.DeriveSecret()
			return []Action{
				refundAction(swap.AlphaSide, req.Alpha.Expiry),
				{Kind: Redeem, Side: swap.BetaSide, Secret: &secret},
			}
		}
		return []Action{refundAction(swap.AlphaSide, req.Alpha.Expiry)}

	default: // Redeemed, Refunded: terminal for alpha from Alice's perspective
		return nil
	}
}

func deriveBob(state swap.ActorState) []Action {
	req := state.Communication.Request

	if state.Alpha.Tag == swap.Redeemed {
		return nil // Bob already redeemed alpha: terminal, paid
	}

	if state.Beta.Tag == swap.Redeemed && state.Alpha.Tag == swap.Funded {
		secret := state.Beta.Secret
		return []Action{{Kind: Redeem, Side: swap.AlphaSide, Secret: secret}}
	}

	if state.Alpha.Tag != swap.Funded {
		return nil // waiting on Alice to fund alpha
	}

	switch state.Beta.Tag {
	case swap.NotDeployed:
		if req.Beta.Kind.IsAccountBased() {
			return []Action{{Kind: Deploy, Side: swap.BetaSide}}
		}
		return []Action{{Kind: Fund, Side: swap.BetaSide}}

	case swap.Deployed:
		return []Action{{Kind: Fund, Side: swap.BetaSide}}

	case swap.Funded:
		return []Action{refundAction(swap.BetaSide, req.Beta.Expiry)}

	default: // Redeemed (handled above), Refunded, IncorrectlyFunded
		return nil
	}
}

func refundAction(side swap.Side, expiry int64) Action {
	e := expiry
	return Action{Kind: Refund, Side: side, MinBlockTimestamp: &e}
}
