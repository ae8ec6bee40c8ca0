// Package htlc holds the immutable per-side HTLC parameter bundle and the
// secret/secret-hash types that bind the two ledgers of one swap together.
package htlc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rfc003/swapd/ledger"
)

// Secret is the 32-byte RFC003 preimage. Alice derives it deterministically
// from her swap seed; Bob only learns it by observing Alice's redeem
// transaction.
type Secret [32]byte

// Hash returns the SHA-256 hash of the secret, fixed as RFC003's hash
// function.
func (s Secret) Hash() SecretHash {
	return SecretHash(sha256.Sum256(s[:]))
}

// String returns the hex encoding of the secret.
func (s Secret) String() string {
	return hex.EncodeToString(s[:])
}

// SecretHash is the 32-byte SHA-256 digest travelling inside a Request.
type SecretHash [32]byte

// String returns the hex encoding of the hash.
func (h SecretHash) String() string {
	return hex.EncodeToString(h[:])
}

// Matches reports whether secret hashes to h.
func (h SecretHash) Matches(secret Secret) bool {
	return secret.Hash() == h
}

// NewRandomSecret generates a fresh 32-byte secret using a CSPRNG. Used by
// Alice when no deterministic seed-derived secret is configured.
func NewRandomSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return Secret{}, fmt.Errorf("htlc: failed to generate secret: %w", err)
	}
	return s, nil
}

// Asset names the unit and quantity of value an HTLC locks.
type Asset struct {
	Kind   ledger.AssetKind
	Amount uint64 // satoshi (Bitcoin) or wei (Ethereum); token decimals are ERC20-contract-defined
	// TokenContract is set only for AssetKind == ledger.AssetERC20.
	TokenContract ledger.Identity
}

// Params is the immutable parameter bundle for one side (alpha or beta) of
// one swap. It is constructed once, by NewAlphaParams or NewBetaParams, and
// never mutated afterwards.
type Params struct {
	LedgerKind     ledger.Kind
	ChainID        string // Network name (Bitcoin) or numeric chain ID string (Ethereum)
	Asset          Asset
	RefundIdentity ledger.Identity // the Request side: who reclaims on expiry
	RedeemIdentity ledger.Identity // the Accept side: who redeems with the secret
	Expiry         int64           // unix seconds, ledger-relative
	SecretHash     SecretHash
}

// Validate checks structural invariants that must hold for any Params,
// independent of which side (alpha/beta) it describes.
func (p Params) Validate() error {
	if p.RefundIdentity == nil || p.RedeemIdentity == nil {
		return fmt.Errorf("htlc: refund and redeem identities are required")
	}
	if p.Asset.Amount == 0 {
		return fmt.Errorf("htlc: asset amount must be non-zero")
	}
	if p.Asset.Kind == ledger.AssetERC20 && p.Asset.TokenContract == nil {
		return fmt.Errorf("htlc: erc20 asset requires a token contract identity")
	}
	return nil
}
