// Package ethereum implements the Ethereum watcher primitives:
// watch_for_contract_creation and watch_for_event/call, the account-ledger
// analogues of the Bitcoin outpoint watchers.
package ethereum

import (
	"bytes"
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	logging "github.com/ipfs/go-log"

	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
	ledgereth "github.com/rfc003/swapd/ledger/ethereum"
	"github.com/rfc003/swapd/watch"
)

var log = logging.Logger("watch/ethereum")

// DefaultPollInterval is the Ethereum-specific polling cadence.
const DefaultPollInterval = 20 * time.Second

// Block adapts a go-ethereum *types.Block into watch.Block.
type Block struct {
	Msg *types.Block
}

// Hash implements watch.Block.
func (b *Block) Hash() string { return b.Msg.Hash().Hex() }

// ParentHash implements watch.Block.
func (b *Block) ParentHash() string { return b.Msg.ParentHash().Hex() }

// Height implements watch.Block.
func (b *Block) Height() uint64 { return b.Msg.NumberU64() }

// Timestamp implements watch.Block.
func (b *Block) Timestamp() time.Time { return time.Unix(int64(b.Msg.Time()), 0) }

// Tx adapts a go-ethereum *types.Transaction into ledger.Transaction.
// BlockHash is the hash of the block it was observed in, set by the
// watcher once matched -- it is what a driver's reorg reconciliation later
// re-checks for canonicity.
type Tx struct {
	Msg       *types.Transaction
	Receipt   *types.Receipt
	BlockHash string
}

// Hash implements ledger.Transaction.
func (t *Tx) Hash() string { return t.Msg.Hash().Hex() }

// ReceiptClient is the Ethereum-only collaborator: receipt_by_hash, needed
// to read emitted logs for a transaction.
type ReceiptClient interface {
	ReceiptByHash(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)
}

// Watcher implements the Ethereum watch primitives over a Poller plus a
// ReceiptClient for log inspection.
type Watcher struct {
	poller       *watch.Poller
	receipts     ReceiptClient
	pollInterval time.Duration
}

// NewWatcher constructs a Watcher. pollInterval defaults to
// DefaultPollInterval when zero.
func NewWatcher(poller *watch.Poller, receipts ReceiptClient, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Watcher{poller: poller, receipts: receipts, pollInterval: pollInterval}
}

// IsCanonical reports whether the block named by hash is still reachable
// from the current tip. A driver's reorg reconciliation calls this with the
// block hash of a previously reported event to decide whether that event
// must be revoked.
func (w *Watcher) IsCanonical(ctx context.Context, hash string) (bool, error) {
	return w.poller.IsCanonical(ctx, hash)
}

// WatchForContractCreation polls blocks from since-Margin forward and
// returns the first contract-creation transaction whose deployed code
// matches the HTLC expected for params -- identified here by the deployer
// address and the constructor args encoded into the creation input, since
// the deployed address itself is unknown until observed.
func (w *Watcher) WatchForContractCreation(
	ctx context.Context,
	deployer ethcommon.Address,
	params htlc.Params,
) (*Tx, ledgereth.ContractLocation, error) {
	wantArgs, err := ledgereth.DeployBytes(params)
	if err != nil {
		return nil, ledgereth.ContractLocation{}, err
	}

	match := func(block *Block) (*Tx, ledgereth.ContractLocation, bool) {
		for _, tx := range block.Msg.Transactions() {
			if tx.To() != nil {
				continue // contract creation txs have a nil To
			}
			from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
			if err != nil || from != deployer {
				continue
			}
			if !bytes.Contains(tx.Data(), wantArgs) {
				continue
			}
			receipt, err := w.receipts.ReceiptByHash(ctx, tx.Hash())
			if err != nil || receipt.ContractAddress == (ethcommon.Address{}) {
				continue
			}
			return &Tx{Msg: tx, Receipt: receipt}, ledgereth.ContractLocation{Addr: receipt.ContractAddress}, true
		}
		return nil, ledgereth.ContractLocation{}, false
	}

	return pollUntil(ctx, w, time.Unix(0, 0), match)
}

// FundingEvent reports a value transfer or ERC20 transfer() call observed
// against a deployed HTLC location.
type FundingEvent struct {
	Tx     *Tx
	Amount *big.Int
}

// WatchForFundingCall polls for the first transaction that funds the
// account-ledger HTLC at loc: a plain value transfer for AssetEther, or an
// ERC20 transfer(address,uint256) call to the token contract naming loc as
// recipient for AssetERC20. transferFrom() calls are not matched.
func (w *Watcher) WatchForFundingCall(
	ctx context.Context,
	loc ledgereth.ContractLocation,
	asset htlc.Asset,
	since time.Time,
) (*FundingEvent, error) {
	erc20TransferSelector := crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

	match := func(block *Block) (*Tx, *big.Int, bool) {
		for _, tx := range block.Msg.Transactions() {
			switch asset.Kind {
			case ledger.AssetEther:
				if tx.To() != nil && *tx.To() == loc.Addr && tx.Value().Sign() > 0 {
					return &Tx{Msg: tx}, tx.Value(), true
				}
			default:
				if tx.To() == nil {
					continue
				}
				tokenAddr, ok := asset.TokenContract.(ledgereth.Identity)
				if !ok || *tx.To() != tokenAddr.Addr {
					continue
				}
				data := tx.Data()
				if len(data) < 4+32+32 || !bytes.Equal(data[:4], erc20TransferSelector) {
					continue
				}
				to := ethcommon.BytesToAddress(data[4:36])
				if to != loc.Addr {
					continue
				}
				amount := new(big.Int).SetBytes(data[36:68])
				return &Tx{Msg: tx}, amount, true
			}
		}
		return nil, nil, false
	}

	tx, amount, err := pollUntil(ctx, w, since, match)
	if err != nil {
		return nil, err
	}
	return &FundingEvent{Tx: tx, Amount: amount}, nil
}

// EventPredicate distinguishes a redeem call from a refund call on the
// account ledger: redeem call data carries the preimage after its
// selector, refund call data is just its selector.
type EventPredicate func(tx *types.Transaction, blockTime time.Time) bool

// WatchForEvent polls for the first transaction calling loc that satisfies
// predicate -- the Ethereum analogue of watch_for_spent_outpoint.
func (w *Watcher) WatchForEvent(
	ctx context.Context,
	loc ledgereth.ContractLocation,
	predicate EventPredicate,
	since time.Time,
) (*Tx, error) {
	match := func(block *Block) (*Tx, struct{}, bool) {
		for _, tx := range block.Msg.Transactions() {
			if tx.To() == nil || *tx.To() != loc.Addr {
				continue
			}
			if predicate(tx, block.Timestamp()) {
				return &Tx{Msg: tx}, struct{}{}, true
			}
		}
		return nil, struct{}{}, false
	}

	tx, _, err := pollUntil(ctx, w, since, match)
	return tx, err
}

// pollUntil mirrors watch/bitcoin's scan/advance loop: every tick walks
// parent links from the new tip back to the last block already scanned, so
// a block that is no longer the tip by the next tick is still scanned
// exactly once, oldest first.
func pollUntil[L any](
	ctx context.Context,
	w *Watcher,
	since time.Time,
	match func(*Block) (*Tx, L, bool),
) (*Tx, L, error) {
	var zero L

	tip, err := w.poller.LatestBlock(ctx)
	if err != nil {
		return nil, zero, err
	}

	chain, err := w.poller.WalkBackToSince(ctx, tip, since)
	if err != nil {
		return nil, zero, err
	}

	last := tip
	for _, b := range chain {
		blk := b.(*Block)
		last = blk
		if tx, loc, ok := match(blk); ok {
			tx.BlockHash = blk.Hash()
			return tx, loc, nil
		}
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, zero, ctx.Err()
		case <-ticker.C:
			newTip, err := w.poller.LatestBlock(ctx)
			if err != nil {
				log.Warnf("watch/ethereum: poll failed: %s", err)
				continue
			}
			if newTip.Hash() == last.Hash() {
				continue
			}

			newBlocks, err := w.poller.WalkForward(ctx, newTip, last.Hash(), since)
			if err != nil {
				log.Warnf("watch/ethereum: poll failed: %s", err)
				continue
			}

			found := false
			var tx *Tx
			var loc L
			for _, b := range newBlocks {
				blk := b.(*Block)
				last = blk
				if t, l, ok := match(blk); ok {
					t.BlockHash = blk.Hash()
					tx, loc, found = t, l, true
					break
				}
			}
			if found {
				return tx, loc, nil
			}
		}
	}
}
