// Package swap holds the RFC003 data model: SwapId, Role, Request, Accept,
// LedgerState, SwapCommunication, and the owning ActorState a driver folds
// ledger events into.
package swap

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"

	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
)

// ID is a swap's UUID, generated at request time and immutable thereafter.
type ID uuid.UUID

// NewID generates a fresh random swap ID.
func NewID() ID { return ID(uuid.New()) }

// String implements fmt.Stringer.
func (id ID) String() string { return uuid.UUID(id).String() }

// ParseID parses s as a swap ID.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("swap: invalid swap id: %w", err)
	}
	return ID(u), nil
}

// Role fixes whether this process is Alice (initiator, knows the secret) or
// Bob (responder) for one swap.
type Role byte

const (
	Alice Role = iota
	Bob
)

// String implements fmt.Stringer.
func (r Role) String() string {
	if r == Alice {
		return "Alice"
	}
	return "Bob"
}

// LedgerDescriptor names one side's ledger kind, chain identifier, and the
// asset it is denominated in -- the per-side half of a Request, before
// either party's identity is known.
type LedgerDescriptor struct {
	Kind    ledger.Kind
	ChainID string
	Asset   htlc.Asset
	Expiry  int64
}

// Request is the proposed swap, emitted by Alice and immutable from then
// on. hash_function is fixed to SHA-256 for RFC003 and is not a field: it
// is implicit in htlc.Secret.Hash.
type Request struct {
	SwapID ID

	Alpha LedgerDescriptor
	Beta  LedgerDescriptor

	SecretHash htlc.SecretHash

	AlphaRefundIdentity ledger.Identity
	BetaRefundIdentity  ledger.Identity
}

// Validate checks the configuration-error invariants that make a Request
// rejectable before Accept: alpha_expiry must exceed beta_expiry, so Bob
// can safely reveal-then-redeem.
func (r Request) Validate() error {
	if r.Alpha.Expiry <= r.Beta.Expiry {
		return fmt.Errorf("swap: configuration error: alpha_expiry (%d) must be greater than beta_expiry (%d)",
			r.Alpha.Expiry, r.Beta.Expiry)
	}
	if r.Alpha.Kind == r.Beta.Kind {
		return fmt.Errorf("swap: configuration error: alpha and beta ledgers must differ")
	}
	return nil
}

// Accept is the counterparty's acceptance of a Request: the two redeem
// identities, immutable once emitted.
type Accept struct {
	AlphaRedeemIdentity ledger.Identity
	BetaRedeemIdentity  ledger.Identity
}

// NewAlphaParams derives the alpha-side HtlcParams from a Request+Accept
// pair: refund identity from Request, redeem identity from Accept.
func NewAlphaParams(req Request, acc Accept) (htlc.Params, error) {
	p := htlc.Params{
		LedgerKind:     req.Alpha.Kind,
		ChainID:        req.Alpha.ChainID,
		Asset:          req.Alpha.Asset,
		Expiry:         req.Alpha.Expiry,
		SecretHash:     req.SecretHash,
		RefundIdentity: req.AlphaRefundIdentity,
		RedeemIdentity: acc.AlphaRedeemIdentity,
	}
	return p, p.Validate()
}

// NewBetaParams derives the beta-side HtlcParams symmetrically to
// NewAlphaParams.
func NewBetaParams(req Request, acc Accept) (htlc.Params, error) {
	p := htlc.Params{
		LedgerKind:     req.Beta.Kind,
		ChainID:        req.Beta.ChainID,
		Asset:          req.Beta.Asset,
		Expiry:         req.Beta.Expiry,
		SecretHash:     req.SecretHash,
		RefundIdentity: req.BetaRefundIdentity,
		RedeemIdentity: acc.BetaRedeemIdentity,
	}
	return p, p.Validate()
}

// CommunicationTag distinguishes the three states of SwapCommunication.
type CommunicationTag byte

const (
	Proposed CommunicationTag = iota
	Accepted
	Declined
)

// Communication is the negotiation-progress tagged union: Proposed, then
// Accepted or Declined.
type Communication struct {
	Tag     CommunicationTag
	Request Request
	Accept  Accept // zero value until Tag >= Accepted
}

// LedgerStateTag enumerates the monotone progression a LedgerState can be
// in. Higher tags are later in the DAG, except IncorrectlyFunded, which is
// a side branch off Deployed.
type LedgerStateTag byte

const (
	NotDeployed LedgerStateTag = iota
	Deployed
	Funded
	IncorrectlyFunded
	Redeemed
	Refunded
)

// String implements fmt.Stringer.
func (t LedgerStateTag) String() string {
	switch t {
	case NotDeployed:
		return "NotDeployed"
	case Deployed:
		return "Deployed"
	case Funded:
		return "Funded"
	case IncorrectlyFunded:
		return "IncorrectlyFunded"
	case Redeemed:
		return "Redeemed"
	case Refunded:
		return "Refunded"
	default:
		return "Unknown"
	}
}

// rank gives each tag a total order for the monotonicity invariant:
// rank(new) >= rank(old) except across an explicit reorg revocation.
func (t LedgerStateTag) rank() int {
	switch t {
	case NotDeployed:
		return 0
	case Deployed:
		return 1
	case Funded, IncorrectlyFunded:
		return 2
	case Redeemed, Refunded:
		return 3
	default:
		return -1
	}
}

// LedgerState is the per-ledger progression, represented as a tagged
// struct rather than a per-ledger generic enum.
type LedgerState struct {
	Tag         LedgerStateTag
	Location    ledger.HtlcLocation
	Transaction ledger.Transaction
	Asset       *htlc.Asset  // set for Funded / IncorrectlyFunded
	Secret      *htlc.Secret // set for Redeemed

	// BlockHash is the hash of the block the current Transaction was
	// observed in. A driver's reorg reconciliation re-checks it against the
	// ledger's current tip to decide whether this state must be revoked.
	BlockHash string
}

// IsTerminal reports whether this ledger has reached its final state.
func (s LedgerState) IsTerminal() bool {
	return s.Tag == Redeemed || s.Tag == Refunded
}

// Regresses reports whether moving from s to next would violate the
// monotonicity invariant (i.e. next is not a reorg revocation of s).
func (s LedgerState) Regresses(next LedgerState) bool {
	return next.Tag.rank() < s.Tag.rank()
}

// Predecessor names the tag a reorg revocation of s should regress to: the
// state immediately before whatever block was just found unreachable.
func (s LedgerState) Predecessor() LedgerStateTag {
	switch s.Tag {
	case Deployed:
		return NotDeployed
	case Funded, IncorrectlyFunded:
		return Deployed
	case Redeemed, Refunded:
		return Funded
	default:
		return NotDeployed
	}
}

// Seed is the deterministic per-swap secret source. Alice's secret is
// derived from it by DeriveSecret; this type derives no ledger identities.
// Bob only ever holds the hash until he observes Alice's redeem transaction.
type Seed struct {
	seed [32]byte
}

// NewSeed wraps raw key material, itself derived elsewhere (e.g. from a
// wallet's master seed plus the swap ID) -- this package only consumes a
// seed, it does not manage wallet keys.
func NewSeed(raw [32]byte) Seed { return Seed{seed: raw} }

// DeriveSecret deterministically derives this swap's secret. Two calls
// against the same Seed always return the same Secret.
func (s Seed) DeriveSecret() htlc.Secret {
	return htlc.Secret(sha256.Sum256(append([]byte("rfc003-secret"), s.seed[:]...)))
}

// ActorState is the whole-swap state a driver owns exclusively: no two
// tasks ever touch the same ActorState concurrently.
type ActorState struct {
	Role          Role
	Communication Communication
	Alpha         LedgerState
	Beta          LedgerState
	Seed          Seed
	Failed        bool
}

// NewActorState returns the initial state for a just-proposed swap.
func NewActorState(role Role, req Request, seed Seed) ActorState {
	return ActorState{
		Role:          role,
		Communication: Communication{Tag: Proposed, Request: req},
		Alpha:         LedgerState{Tag: NotDeployed},
		Beta:          LedgerState{Tag: NotDeployed},
		Seed:          seed,
	}
}

// IsDone reports the driver's terminal condition: both ledger states have
// reached Redeemed or Refunded.
func (s ActorState) IsDone() bool {
	return s.Alpha.IsTerminal() && s.Beta.IsTerminal()
}
