// Package bitcoin implements the Bitcoin watcher primitives:
// watch_for_created_outpoint and watch_for_spent_outpoint.
package bitcoin

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	logging "github.com/ipfs/go-log"

	ledgerbtc "github.com/rfc003/swapd/ledger/bitcoin"
	"github.com/rfc003/swapd/watch"
)

var log = logging.Logger("watch/bitcoin")

// DefaultPollInterval is the Bitcoin-specific polling cadence.
const DefaultPollInterval = 300 * time.Second

// Block adapts a btcd wire.MsgBlock plus its height into watch.Block.
type Block struct {
	Msg    *wire.MsgBlock
	height uint64
}

// NewBlock wraps msg at height.
func NewBlock(msg *wire.MsgBlock, height uint64) *Block {
	return &Block{Msg: msg, height: height}
}

// Hash implements watch.Block.
func (b *Block) Hash() string { return b.Msg.BlockHash().String() }

// ParentHash implements watch.Block.
func (b *Block) ParentHash() string { return b.Msg.Header.PrevBlock.String() }

// Height implements watch.Block.
func (b *Block) Height() uint64 { return b.height }

// Timestamp implements watch.Block.
func (b *Block) Timestamp() time.Time { return b.Msg.Header.Timestamp }

// Tx adapts a btcd wire.MsgTx into ledger.Transaction. BlockHash is the
// hash of the block it was observed in, set by the watcher once matched --
// it is what a driver's reorg reconciliation later re-checks for
// canonicity.
type Tx struct {
	Msg       *wire.MsgTx
	BlockHash string
}

// Hash implements ledger.Transaction.
func (t *Tx) Hash() string { return t.Msg.TxHash().String() }

// WitnessPredicate distinguishes a redeem spend from a refund spend.
// ledgerbtc.IsRedeemWitness / IsRefundWitness satisfy this signature.
type WitnessPredicate func(wire.TxWitness) bool

// Watcher implements the two Bitcoin watch primitives over a Poller.
type Watcher struct {
	poller       *watch.Poller
	pollInterval time.Duration
}

// NewWatcher constructs a Watcher. pollInterval defaults to
// DefaultPollInterval when zero.
func NewWatcher(poller *watch.Poller, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Watcher{poller: poller, pollInterval: pollInterval}
}

// IsCanonical reports whether the block named by hash is still reachable
// from the current tip. A driver's reorg reconciliation calls this with the
// block hash of a previously reported event to decide whether that event
// must be revoked.
func (w *Watcher) IsCanonical(ctx context.Context, hash string) (bool, error) {
	return w.poller.IsCanonical(ctx, hash)
}

// WatchForCreatedOutpoint polls blocks from since-Margin forward and
// returns the first transaction whose outputs pay addr, together with the
// outpoint at which it does.
func (w *Watcher) WatchForCreatedOutpoint(
	ctx context.Context,
	addr btcutil.Address,
	since time.Time,
) (*Tx, ledgerbtc.Outpoint, error) {
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, ledgerbtc.Outpoint{}, fmt.Errorf("watch/bitcoin: failed to build scriptPubKey: %w", err)
	}

	match := func(block *Block) (*Tx, ledgerbtc.Outpoint, bool) {
		for _, msgTx := range block.Msg.Transactions {
			for vout, out := range msgTx.TxOut {
				if scriptsEqual(out.PkScript, pkScript) {
					h := msgTx.TxHash()
					return &Tx{Msg: msgTx}, ledgerbtc.Outpoint{Hash: h, Index: uint32(vout)}, true
				}
			}
		}
		return nil, ledgerbtc.Outpoint{}, false
	}

	return pollUntil(ctx, w, since, match)
}

// WatchForSpentOutpoint polls blocks from since-Margin forward and returns
// the first transaction that spends outpoint with a witness satisfying
// predicate.
func (w *Watcher) WatchForSpentOutpoint(
	ctx context.Context,
	outpoint ledgerbtc.Outpoint,
	predicate WitnessPredicate,
	since time.Time,
) (*Tx, error) {
	want := outpoint.Wire()

	match := func(block *Block) (*Tx, bool) {
		for _, msgTx := range block.Msg.Transactions {
			for _, in := range msgTx.TxIn {
				if in.PreviousOutPoint == want && predicate(in.Witness) {
					return &Tx{Msg: msgTx}, true
				}
			}
		}
		return nil, false
	}

	tx, _, err := pollUntil(ctx, w, since, func(b *Block) (*Tx, struct{}, bool) {
		tx, ok := match(b)
		return tx, struct{}{}, ok
	})
	return tx, err
}

// pollUntil is the shared scan/advance loop used by both watch primitives:
// walk back to since-Margin, scan forward, and keep polling new tips until
// match succeeds or ctx is cancelled. Every tick walks parent links from the
// new tip back to the last block already scanned, so a block that is no
// longer the tip by the next tick is still scanned exactly once, oldest
// first.
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
				log.Warnf("watch/bitcoin: poll failed: %s", err)
				continue
			}
			if newTip.Hash() == last.Hash() {
				continue
			}

			newBlocks, err := w.poller.WalkForward(ctx, newTip, last.Hash(), since)
			if err != nil {
				log.Warnf("watch/bitcoin: poll failed: %s", err)
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

func scriptsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
