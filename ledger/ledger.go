// Package ledger defines the capability set that the swap engine needs from
// a concrete blockchain: the types it deals in, and the pure function that
// derives an HTLC's on-chain address from its parameters.
package ledger

import "fmt"

// Kind distinguishes the two ledger families the engine supports. It
// replaces the source protocol's per-ledger generic parameter with a single
// tagged union, per the REDESIGN FLAGS in the distilled specification.
type Kind byte

const (
	// Bitcoin is a UTXO-model ledger: Deployed and Funded coincide.
	Bitcoin Kind = iota
	// Ethereum is an account-model ledger: Deployed precedes Funded.
	Ethereum
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Bitcoin:
		return "Bitcoin"
	case Ethereum:
		return "Ethereum"
	default:
		return "Unknown"
	}
}

// IsAccountBased reports whether contract deployment and funding are
// distinct transactions on this ledger.
func (k Kind) IsAccountBased() bool {
	return k == Ethereum
}

// AssetKind tags the unit of value locked in an HTLC.
type AssetKind byte

const (
	// AssetBitcoin is native BTC, denominated in satoshi.
	AssetBitcoin AssetKind = iota
	// AssetEther is native ETH, denominated in wei.
	AssetEther
	// AssetERC20 is a token transfer governed by an ERC20 contract.
	AssetERC20
)

// ErrLedgerMismatch is returned when an address or identity was derived for
// one ledger kind but presented to a component expecting another.
var ErrLedgerMismatch = fmt.Errorf("ledger: address/identity does not match expected ledger kind")

// Identity names a party on a ledger (a Bitcoin address or an Ethereum
// account address). Concrete ledgers type-assert back to their own address
// representation; this layer only needs to stringify and compare it.
type Identity interface {
	fmt.Stringer
	Kind() Kind
}

// HtlcLocation names where a deployed HTLC lives on its ledger: a Bitcoin
// outpoint or an Ethereum contract address.
type HtlcLocation interface {
	fmt.Stringer
	Kind() Kind
}

// Transaction is the minimal shape every watcher needs from a confirmed
// transaction, regardless of ledger.
type Transaction interface {
	Hash() string
}

