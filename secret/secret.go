// Package secret implements the secret extractor: a single place that
// pulls the preimage out of whichever ledger's redeem transaction revealed
// it, and verifies it against a swap's secret hash.
package secret

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rfc003/swapd/htlc"
	ledgerbtc "github.com/rfc003/swapd/ledger/bitcoin"
)

// redeemSelector is the 4-byte selector for the HTLC contract's
// redeem(bytes32) entry point, matching ledger/ethereum/htlc_binding.go.
var redeemSelector = crypto.Keccak256([]byte("redeem(bytes32)"))[:4]

// FromBitcoinWitness extracts the preimage from a Bitcoin redeem witness.
// It delegates to the Bitcoin ledger package, which alone knows the
// witness's stack layout.
func FromBitcoinWitness(w wire.TxWitness) (htlc.Secret, error) {
	return ledgerbtc.ExtractSecret(w)
}

// FromEthereumCalldata extracts the preimage from an Ethereum redeem call's
// input data: a 4-byte selector followed by the 32-byte secret argument.
func FromEthereumCalldata(data []byte) (htlc.Secret, error) {
	if len(data) < 4+32 || !bytes.Equal(data[:4], redeemSelector) {
		return htlc.Secret{}, fmt.Errorf("secret: calldata is not a redeem(bytes32) call")
	}
	var s htlc.Secret
	copy(s[:], data[4:36])
	return s, nil
}

// Verify reports whether secret is the preimage of hash. Every extracted
// secret must be checked before use.
func Verify(s htlc.Secret, hash htlc.SecretHash) bool {
	return hash.Matches(s)
}
