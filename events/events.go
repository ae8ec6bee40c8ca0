// Package events turns the per-ledger watch primitives into the ordered
// swap.Event sequence a driver folds into an ActorState: Deployed, then
// Funded or IncorrectlyFunded, then exactly one of Redeemed or Refunded.
// Every emitted event carries the hash of the block its transaction was
// observed in.
//
// Reorg revocation is not produced here: an observer commits to a single
// chain tip as it walks forward and has no cheap way to notice its own past
// output was reorged out from inside a linear scan. That check belongs to
// the driver's periodic reconciliation against the current tip (driver
// package), which uses the BlockHash this package attached to re-derive
// canonicity and emits a Revoked event when a previously reported
// transaction's block is no longer an ancestor of the tip. This package
// only ever emits forward-moving events.
package events

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	logging "github.com/ipfs/go-log"

	"github.com/rfc003/swapd/htlc"
	ledgerbtc "github.com/rfc003/swapd/ledger/bitcoin"
	ledgereth "github.com/rfc003/swapd/ledger/ethereum"
	"github.com/rfc003/swapd/secret"
	"github.com/rfc003/swapd/swap"
	watchbtc "github.com/rfc003/swapd/watch/bitcoin"
	watcheth "github.com/rfc003/swapd/watch/ethereum"
)

var log = logging.Logger("events")

// Stream is the pair of channels an observer emits on. Events is closed
// when the terminal event (Redeemed or Refunded) has been sent, or when ctx
// is cancelled; at most one value is ever sent on Errs, after which Events
// is closed without a terminal event.
type Stream struct {
	Events <-chan swap.Event
	Errs   <-chan error
}

// ObserveBitcoin watches one UTXO-ledger side of a swap from since forward
// and emits its Deployed/Funded/Redeemed/Refunded events. Deployed and
// Funded (or IncorrectlyFunded) are emitted back to back from the single
// transaction that creates the HTLC output, since a UTXO output is funded
// atomically with its creation.
func ObserveBitcoin(
	ctx context.Context,
	w *watchbtc.Watcher,
	ldgr ledgerbtc.Ledger,
	side swap.Side,
	params htlc.Params,
	since time.Time,
) Stream {
	events := make(chan swap.Event, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(events)

		addr, err := ldgr.ComputeAddress(params)
		if err != nil {
			errs <- fmt.Errorf("events: bitcoin: %s: %w", side, err)
			return
		}

		tx, outpoint, err := w.WatchForCreatedOutpoint(ctx, addr, since)
		if err != nil {
			errs <- fmt.Errorf("events: bitcoin: %s: watch created outpoint: %w", side, err)
			return
		}

		actual := outputAmount(tx.Msg, outpoint.Index)
		asset := params.Asset
		asset.Amount = actual

		fundedTag := swap.Funded
		if actual != params.Asset.Amount {
			fundedTag = swap.IncorrectlyFunded
			log.Warnf("events: bitcoin: %s: incorrectly funded: want %d, got %d", side, params.Asset.Amount, actual)
		}

		if !sendOrDone(ctx, events, swap.Event{Side: side, Tag: swap.Deployed, Location: outpoint, Transaction: tx, BlockHash: tx.BlockHash}) {
			return
		}
		if !sendOrDone(ctx, events, swap.Event{Side: side, Tag: fundedTag, Location: outpoint, Transaction: tx, Asset: &asset, BlockHash: tx.BlockHash}) {
			return
		}

		spendTx, err := w.WatchForSpentOutpoint(ctx, outpoint, eitherWitness, since)
		if err != nil {
			errs <- fmt.Errorf("events: bitcoin: %s: watch spent outpoint: %w", side, err)
			return
		}

		finalEvent, err := bitcoinSpendEvent(side, outpoint, spendTx)
		if err != nil {
			errs <- fmt.Errorf("events: bitcoin: %s: %w", side, err)
			return
		}

		sendOrDone(ctx, events, finalEvent)
	}()

	return Stream{Events: events, Errs: errs}
}

func sendOrDone(ctx context.Context, events chan<- swap.Event, ev swap.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func eitherWitness(w wire.TxWitness) bool {
	return ledgerbtc.IsRedeemWitness(w) || ledgerbtc.IsRefundWitness(w)
}

func bitcoinSpendEvent(side swap.Side, outpoint ledgerbtc.Outpoint, tx *watchbtc.Tx) (swap.Event, error) {
	in := spendingInput(tx.Msg, outpoint)
	if in == nil {
		return swap.Event{}, fmt.Errorf("watched spend transaction does not actually spend the outpoint")
	}

	if ledgerbtc.IsRedeemWitness(in.Witness) {
		s, err := secret.FromBitcoinWitness(in.Witness)
		if err != nil {
			return swap.Event{}, fmt.Errorf("extract secret from redeem witness: %w", err)
		}
		return swap.Event{Side: side, Tag: swap.Redeemed, Transaction: tx, Secret: &s, BlockHash: tx.BlockHash}, nil
	}
	return swap.Event{Side: side, Tag: swap.Refunded, Transaction: tx, BlockHash: tx.BlockHash}, nil
}

func spendingInput(msg *wire.MsgTx, outpoint ledgerbtc.Outpoint) *wire.TxIn {
	want := outpoint.Wire()
	for _, in := range msg.TxIn {
		if in.PreviousOutPoint == want {
			return in
		}
	}
	return nil
}

func outputAmount(msg *wire.MsgTx, index uint32) uint64 {
	if int(index) >= len(msg.TxOut) {
		return 0
	}
	v := msg.TxOut[index].Value
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// redeemSelector is the 4-byte function selector for the HTLC contract's
// redeem(bytes32) entry point, matching the ABI in
// ledger/ethereum/htlc_binding.go.
var redeemSelector = crypto.Keccak256([]byte("redeem(bytes32)"))[:4]

// ObserveEthereum watches one account-ledger side of a swap from since
// forward and emits its Deployed, Funded/IncorrectlyFunded, and
// Redeemed/Refunded events.
func ObserveEthereum(
	ctx context.Context,
	w *watcheth.Watcher,
	deployer ledgereth.Identity,
	side swap.Side,
	params htlc.Params,
	since time.Time,
) Stream {
	events := make(chan swap.Event, 4)
	errs := make(chan error, 1)

	go func() {
		defer close(events)

		tx, loc, err := w.WatchForContractCreation(ctx, deployer.Addr, params)
		if err != nil {
			errs <- fmt.Errorf("events: ethereum: %s: watch contract creation: %w", side, err)
			return
		}

		if !sendOrDone(ctx, events, swap.Event{Side: side, Tag: swap.Deployed, Location: loc, Transaction: tx, BlockHash: tx.BlockHash}) {
			return
		}

		funding, err := w.WatchForFundingCall(ctx, loc, params.Asset, since)
		if err != nil {
			errs <- fmt.Errorf("events: ethereum: %s: watch funding call: %w", side, err)
			return
		}

		asset := params.Asset
		fundedTag := swap.Funded
		want := new(big.Int).SetUint64(params.Asset.Amount)
		if funding.Amount == nil || funding.Amount.Cmp(want) != 0 {
			fundedTag = swap.IncorrectlyFunded
			log.Warnf("events: ethereum: %s: incorrectly funded", side)
		} else {
			asset.Amount = params.Asset.Amount
		}

		if !sendOrDone(ctx, events, swap.Event{Side: side, Tag: fundedTag, Location: loc, Transaction: funding.Tx, Asset: &asset, BlockHash: funding.Tx.BlockHash}) {
			return
		}

		spendTx, err := w.WatchForEvent(ctx, loc, isRedeemOrRefundCall, since)
		if err != nil {
			errs <- fmt.Errorf("events: ethereum: %s: watch redeem/refund: %w", side, err)
			return
		}

		finalEvent, err := ethereumSpendEvent(side, spendTx)
		if err != nil {
			errs <- fmt.Errorf("events: ethereum: %s: %w", side, err)
			return
		}

		sendOrDone(ctx, events, finalEvent)
	}()

	return Stream{Events: events, Errs: errs}
}

func isRedeemOrRefundCall(tx *types.Transaction, _ time.Time) bool {
	data := tx.Data()
	return len(data) >= 4 && (bytes.Equal(data[:4], redeemSelector) || len(data) == 4)
}

func ethereumSpendEvent(side swap.Side, tx *watcheth.Tx) (swap.Event, error) {
	data := tx.Msg.Data()
	if len(data) >= 4 && bytes.Equal(data[:4], redeemSelector) {
		s, err := secret.FromEthereumCalldata(data)
		if err != nil {
			return swap.Event{}, fmt.Errorf("extract secret from redeem call: %w", err)
		}
		return swap.Event{Side: side, Tag: swap.Redeemed, Transaction: tx, Secret: &s, BlockHash: tx.BlockHash}, nil
	}
	return swap.Event{Side: side, Tag: swap.Refunded, Transaction: tx, BlockHash: tx.BlockHash}, nil
}
