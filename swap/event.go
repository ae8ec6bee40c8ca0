package swap

import (
	"fmt"

	logging "github.com/ipfs/go-log"

	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
)

var log = logging.Logger("swap")

// Side names which of a swap's two ledgers an event applies to.
type Side byte

const (
	AlphaSide Side = iota
	BetaSide
)

// String implements fmt.Stringer.
func (s Side) String() string {
	if s == AlphaSide {
		return "alpha"
	}
	return "beta"
}

// Event is one observation folded into an ActorState by a driver. It
// carries enough information to move a LedgerState forward by exactly one
// step, or -- in the Revoked case -- to roll it back after a reorg.
type Event struct {
	Side Side
	Tag  LedgerStateTag

	Location    ledger.HtlcLocation
	Transaction ledger.Transaction
	Asset       *htlc.Asset
	Secret      *htlc.Secret
	BlockHash   string

	// Revoked, when true, means the block containing a previously reported
	// event was found unreachable from the current tip and the ledger must
	// regress to RevertTo.
	Revoked  bool
	RevertTo LedgerStateTag
}

// Apply folds ev into state, enforcing:
//
//   - idempotence: re-applying an event that matches the current state's
//     tag/transaction is a no-op and reports changed=false.
//   - monotonicity: a non-Revoked event may only move a LedgerState forward;
//     a would-be regression is rejected as a logic error rather than
//     applied, since only an explicit Revoked event may regress state.
//   - secret verification: a Redeemed event whose secret does not hash to
//     the swap's SecretHash is dropped.
//
// It returns whether the state actually changed.
func (s *ActorState) Apply(ev Event) (bool, error) {
	cur := s.ledgerState(ev.Side)

	if ev.Revoked {
		reverted := LedgerState{Tag: ev.RevertTo}
		if cur.Tag == ev.RevertTo {
			return false, nil
		}
		log.Warnf("swap: reorg revocation on %s ledger: %s -> %s", ev.Side, cur.Tag, ev.RevertTo)
		s.setLedgerState(ev.Side, reverted)
		return true, nil
	}

	if ev.Tag == Redeemed {
		if ev.Secret == nil || !s.Communication.Request.SecretHash.Matches(*ev.Secret) {
			return false, fmt.Errorf("swap: protocol violation: redeem event secret does not hash to the swap's secret hash")
		}
	}

	next := LedgerState{
		Tag:         ev.Tag,
		Location:    ev.Location,
		Transaction: ev.Transaction,
		Asset:       ev.Asset,
		Secret:      ev.Secret,
		BlockHash:   ev.BlockHash,
	}

	if cur.Tag == next.Tag && sameTransaction(cur.Transaction, next.Transaction) {
		return false, nil // idempotent re-delivery
	}

	if cur.Regresses(next) {
		return false, fmt.Errorf("swap: refusing non-monotone transition on %s ledger: %s -> %s (use a Revoked event to regress)",
			ev.Side, cur.Tag, next.Tag)
	}

	// Carry forward the location once known; an account ledger's Funded
	// event does not repeat it.
	if next.Location == nil {
		next.Location = cur.Location
	}
	if next.BlockHash == "" {
		next.BlockHash = cur.BlockHash
	}

	s.setLedgerState(ev.Side, next)
	return true, nil
}

func sameTransaction(a, b ledger.Transaction) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Hash() == b.Hash()
}

func (s *ActorState) ledgerState(side Side) LedgerState {
	if side == AlphaSide {
		return s.Alpha
	}
	return s.Beta
}

func (s *ActorState) setLedgerState(side Side, ls LedgerState) {
	if side == AlphaSide {
		s.Alpha = ls
	} else {
		s.Beta = ls
	}
}

// Accept transitions Communication from Proposed to Accepted.
func (s *ActorState) Accept(acc Accept) error {
	if s.Communication.Tag != Proposed {
		return fmt.Errorf("swap: cannot accept a swap not in Proposed state")
	}
	s.Communication = Communication{Tag: Accepted, Request: s.Communication.Request, Accept: acc}
	return nil
}

// Decline transitions Communication from Proposed to Declined.
func (s *ActorState) Decline() error {
	if s.Communication.Tag != Proposed {
		return fmt.Errorf("swap: cannot decline a swap not in Proposed state")
	}
	s.Communication = Communication{Tag: Declined, Request: s.Communication.Request}
	return nil
}
