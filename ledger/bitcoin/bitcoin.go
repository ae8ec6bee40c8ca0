// Package bitcoin implements the ledger.Kind == ledger.Bitcoin capability
// set: P2WSH HTLC address derivation, outpoint/witness types, and the pure
// script-construction function the engine treats as an external
// collaborator.
//
// The HTLC script follows the classic atomicswap contract layout, adapted
// to RFC003's single SHA-256 hash function and wrapped in a BIP141 P2WSH
// witness program rather than legacy P2SH.
package bitcoin

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
)

// Network identifies which Bitcoin network a Ledger value targets.
type Network byte

const (
	Mainnet Network = iota
	Testnet
	Regtest
)

// Params returns the chaincfg.Params for the network.
func (n Network) Params() *chaincfg.Params {
	switch n {
	case Mainnet:
		return &chaincfg.MainNetParams
	case Testnet:
		return &chaincfg.TestNet3Params
	case Regtest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// Matches reports whether addr was encoded for this network, as decided by
// addr.IsForNet. Segwit (bech32) addresses carry a distinct human-readable
// prefix per network ("tb" for Testnet, "bcrt" for Regtest), so a Regtest
// segwit address does not match Testnet. Legacy base58 addresses use the
// same version bytes on Testnet and Regtest and are not told apart.
func (n Network) Matches(addr btcutil.Address) bool {
	want := n.Params()
	return addr.IsForNet(want) && paramsName(want) == paramsName(n.Params())
}

func paramsName(p *chaincfg.Params) string { return p.Name }

// Ledger is the Bitcoin capability set for one network.
type Ledger struct {
	Network Network
}

// Kind implements a ledger-kind tag for generic callers.
func (Ledger) Kind() ledger.Kind { return ledger.Bitcoin }

// Identity wraps a Bitcoin address as a ledger.Identity.
type Identity struct {
	Addr btcutil.Address
}

// String implements fmt.Stringer.
func (i Identity) String() string { return i.Addr.EncodeAddress() }

// Kind implements ledger.Identity.
func (Identity) Kind() ledger.Kind { return ledger.Bitcoin }

// PubKeyHash160 returns the 20-byte HASH160 of the identity's pubkey, as
// required inside the HTLC script. Only P2WPKH/P2PKH identities are
// supported as HTLC counterparties.
func (i Identity) PubKeyHash160() ([]byte, error) {
	switch a := i.Addr.(type) {
	case *btcutil.AddressWitnessPubKeyHash:
		h := a.Hash160()
		return h[:], nil
	case *btcutil.AddressPubKeyHash:
		h := a.Hash160()
		return h[:], nil
	default:
		return nil, fmt.Errorf("bitcoin: identity %T is not a pubkey-hash address", a)
	}
}

// Outpoint is the UTXO HtlcLocation representation: a wire-level outpoint,
// not the legacy {txid,vout} pair.
type Outpoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// Kind implements ledger.HtlcLocation.
func (Outpoint) Kind() ledger.Kind { return ledger.Bitcoin }

// String implements fmt.Stringer.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash.String(), o.Index)
}

// Wire returns the btcd wire.OutPoint equivalent.
func (o Outpoint) Wire() wire.OutPoint {
	return wire.OutPoint{Hash: o.Hash, Index: o.Index}
}

// Script builds the HTLC redeem script for params:
//
//	OP_IF
//	    OP_SHA256 <secretHash> OP_EQUALVERIFY
//	    OP_DUP OP_HASH160 <redeemHash160> OP_EQUALVERIFY OP_CHECKSIG
//	OP_ELSE
//	    <expiry> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	    OP_DUP OP_HASH160 <refundHash160> OP_EQUALVERIFY OP_CHECKSIG
//	OP_ENDIF
//
// The redeem branch's top witness item must be the secret preimage followed
// by a truthy IF selector; the refund branch's selector is the empty item.
func Script(p htlc.Params) ([]byte, error) {
	if p.LedgerKind != ledger.Bitcoin {
		return nil, ledger.ErrLedgerMismatch
	}

	redeemID, ok := p.RedeemIdentity.(Identity)
	if !ok {
		return nil, fmt.Errorf("bitcoin: redeem identity is not a bitcoin.Identity")
	}
	refundID, ok := p.RefundIdentity.(Identity)
	if !ok {
		return nil, fmt.Errorf("bitcoin: refund identity is not a bitcoin.Identity")
	}

	redeemHash, err := redeemID.PubKeyHash160()
	if err != nil {
		return nil, err
	}
	refundHash, err := refundID.PubKeyHash160()
	if err != nil {
		return nil, err
	}

	b := txscript.NewScriptBuilder()
	b.AddOp(txscript.OP_IF)
	b.AddOp(txscript.OP_SHA256)
	b.AddData(p.SecretHash[:])
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_DUP)
	b.AddOp(txscript.OP_HASH160)
	b.AddData(redeemHash)
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_CHECKSIG)
	b.AddOp(txscript.OP_ELSE)
	b.AddInt64(p.Expiry)
	b.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	b.AddOp(txscript.OP_DROP)
	b.AddOp(txscript.OP_DUP)
	b.AddOp(txscript.OP_HASH160)
	b.AddData(refundHash)
	b.AddOp(txscript.OP_EQUALVERIFY)
	b.AddOp(txscript.OP_CHECKSIG)
	b.AddOp(txscript.OP_ENDIF)

	return b.Script()
}

// ComputeAddress implements ledger.Kind's pure compute_address function for
// Bitcoin: the P2WSH address committing to Script(p).
func (l Ledger) ComputeAddress(p htlc.Params) (btcutil.Address, error) {
	script, err := Script(p)
	if err != nil {
		return nil, err
	}

	witnessProgram := sha256.Sum256(script)
	addr, err := btcutil.NewAddressWitnessScriptHash(witnessProgram[:], l.Network.Params())
	if err != nil {
		return nil, fmt.Errorf("bitcoin: failed to derive P2WSH address: %w", err)
	}

	if !l.Network.Matches(addr) {
		return nil, fmt.Errorf("bitcoin: %w: derived address is not valid for network %s", ledger.ErrLedgerMismatch, l.Network)
	}

	return addr, nil
}

// RedeemWitness builds the unlock witness for the IF (redeem) branch: a
// signature, the spender's compressed pubkey, the secret preimage, the
// truthy selector 0x01, then the serialized script.
func RedeemWitness(sig []byte, pub *btcec.PublicKey, secret htlc.Secret, script []byte) wire.TxWitness {
	return wire.TxWitness{
		sig,
		pub.SerializeCompressed(),
		secret[:],
		{0x01},
		script,
	}
}

// RefundWitness builds the unlock witness for the ELSE (refund) branch: a
// signature, the spender's compressed pubkey, the empty falsy selector, then
// the serialized script.
func RefundWitness(sig []byte, pub *btcec.PublicKey, script []byte) wire.TxWitness {
	return wire.TxWitness{
		sig,
		pub.SerializeCompressed(),
		{},
		script,
	}
}

// IsRedeemWitness applies the witness predicate that distinguishes a
// redeem spend from a refund spend: the IF selector (the witness element
// after signature, pubkey and secret, just before the script) is the single
// byte 0x01.
func IsRedeemWitness(w wire.TxWitness) bool {
	if len(w) != 5 {
		return false
	}
	return len(w[3]) == 1 && w[3][0] == 0x01
}

// IsRefundWitness applies the complementary predicate for the refund path.
func IsRefundWitness(w wire.TxWitness) bool {
	if len(w) != 4 {
		return false
	}
	return len(w[2]) == 0
}

// ExtractSecret reads the preimage out of a redeem witness. Returns an
// error if w is not shaped like a redeem witness.
func ExtractSecret(w wire.TxWitness) (htlc.Secret, error) {
	if !IsRedeemWitness(w) {
		return htlc.Secret{}, fmt.Errorf("bitcoin: witness is not a redeem witness")
	}
	var s htlc.Secret
	if len(w[2]) != len(s) {
		return htlc.Secret{}, fmt.Errorf("bitcoin: witness secret has wrong length: got %d want %d", len(w[2]), len(s))
	}
	copy(s[:], w[2])
	return s, nil
}
