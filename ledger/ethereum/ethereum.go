// Package ethereum implements the ledger.Kind == ledger.Ethereum capability
// set: identities, the contract-address HtlcLocation, and the deploy/call
// byte encodings the engine treats as an external "HTLC contract library"
// collaborator.
package ethereum

import (
	"errors"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
)

// ChainID is the numeric EIP-155 chain identifier, e.g. 1 for mainnet, 1337
// for a local ganache/anvil devnet.
type ChainID struct {
	*big.Int
}

// NewChainID wraps n as a ChainID.
func NewChainID(n int64) ChainID { return ChainID{big.NewInt(n)} }

// Ledger is the Ethereum capability set for one chain.
type Ledger struct {
	ChainID ChainID
}

// Kind implements a ledger-kind tag for generic callers.
func (Ledger) Kind() ledger.Kind { return ledger.Ethereum }

// Identity wraps an externally-owned or contract address.
type Identity struct {
	Addr ethcommon.Address
}

// String implements fmt.Stringer.
func (i Identity) String() string { return i.Addr.Hex() }

// Kind implements ledger.Identity.
func (Identity) Kind() ledger.Kind { return ledger.Ethereum }

// ContractLocation is the account-ledger HtlcLocation: the deployed HTLC
// contract's address. This only exists once the deploy transaction has been
// observed; before that, Deployed has not occurred and there is no location.
type ContractLocation struct {
	Addr ethcommon.Address
}

// Kind implements ledger.HtlcLocation.
func (ContractLocation) Kind() ledger.Kind { return ledger.Ethereum }

// String implements fmt.Stringer.
func (c ContractLocation) String() string { return c.Addr.Hex() }

// ErrAddressUnknownUntilDeploy is returned by ComputeAddress: unlike
// Bitcoin's P2WSH address, an Ethereum HTLC's address is a function of the
// deployer's account nonce at broadcast time, not of HtlcParams alone. The
// deployer learns it only by observing its own deploy transaction's
// receipt; a counterparty learns it from watch_for_contract_creation.
var ErrAddressUnknownUntilDeploy = errors.New("ethereum: htlc contract address is not derivable before deployment")

// ComputeAddress implements the Ledger.compute_address pure function. For
// Ethereum it always fails with ErrAddressUnknownUntilDeploy.
func (l Ledger) ComputeAddress(_ htlc.Params) (ethcommon.Address, error) {
	return ethcommon.Address{}, ErrAddressUnknownUntilDeploy
}

// DeployBytes ABI-encodes the constructor arguments for the HTLC contract
// appropriate to p.Asset.Kind, to be appended to the contract creation
// bytecode supplied by the out-of-scope HTLC contract library.
func DeployBytes(p htlc.Params) ([]byte, error) {
	if p.LedgerKind != ledger.Ethereum {
		return nil, ledger.ErrLedgerMismatch
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	refund, ok := p.RefundIdentity.(Identity)
	if !ok {
		return nil, fmt.Errorf("ethereum: refund identity is not an ethereum.Identity")
	}
	redeem, ok := p.RedeemIdentity.(Identity)
	if !ok {
		return nil, fmt.Errorf("ethereum: redeem identity is not an ethereum.Identity")
	}

	args := []interface{}{
		refund.Addr,
		redeem.Addr,
		p.SecretHash,
		big.NewInt(p.Expiry),
	}

	switch p.Asset.Kind {
	case ledger.AssetEther:
		return htlcConstructorArgs.Pack(args...)
	case ledger.AssetERC20:
		token, ok := p.Asset.TokenContract.(Identity)
		if !ok {
			return nil, fmt.Errorf("ethereum: erc20 token contract is not an ethereum.Identity")
		}
		return erc20HtlcConstructorArgs.Pack(append(args, token.Addr, new(big.Int).SetUint64(p.Asset.Amount))...)
	default:
		return nil, fmt.Errorf("ethereum: unsupported asset kind for ethereum ledger: %v", p.Asset.Kind)
	}
}

// GasLimits are the fixed gas limits the HTLC contract library publishes for
// its three mutating calls. These are conservative constants; the engine
// never estimates gas itself.
const (
	GasLimitDeploy = uint64(1_200_000)
	GasLimitFund   = uint64(90_000)
	GasLimitRedeem = uint64(80_000)
	GasLimitRefund = uint64(60_000)
)
