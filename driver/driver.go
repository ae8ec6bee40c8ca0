// Package driver implements the concurrent swap supervisor: the single
// task that owns one swap's ActorState, folds events from its two ledger
// observers into it, and derives the legal next actions for its role. Two
// observer goroutines -- one per ledger -- feed a single owner, each
// funnelling status into one ActorState behind a mutex.
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log"

	"github.com/rfc003/swapd/actions"
	"github.com/rfc003/swapd/events"
	"github.com/rfc003/swapd/htlc"
	"github.com/rfc003/swapd/ledger"
	ledgerbtc "github.com/rfc003/swapd/ledger/bitcoin"
	ledgereth "github.com/rfc003/swapd/ledger/ethereum"
	"github.com/rfc003/swapd/swap"
	watchbtc "github.com/rfc003/swapd/watch/bitcoin"
	watcheth "github.com/rfc003/swapd/watch/ethereum"
)

var log = logging.Logger("driver")

// ReconcileInterval is how often Run re-checks each side's most recently
// reported block against its ledger's current tip for reorg revocation.
const ReconcileInterval = 30 * time.Second

// BitcoinDeps are the collaborators needed to observe a Bitcoin-ledger side
// of a swap.
type BitcoinDeps struct {
	Watcher *watchbtc.Watcher
	Ledger  ledgerbtc.Ledger
}

// EthereumDeps are the collaborators needed to observe an Ethereum-ledger
// side of a swap. The deployer address varies per swap side (it is
// whichever party funds that HTLC) and so is not stored here: it is taken
// from that side's HtlcParams.RefundIdentity when observing.
type EthereumDeps struct {
	Watcher *watcheth.Watcher
}

// Deps supplies both ledgers' collaborators; a Driver uses whichever one
// matches each side's LedgerDescriptor.Kind. At least the kinds actually
// named in the Request must be populated.
type Deps struct {
	Bitcoin  *BitcoinDeps
	Ethereum *EthereumDeps
}

// Driver owns one swap's ActorState exclusively -- no two tasks ever touch
// the same ActorState concurrently -- and keeps it current by folding
// events from two per-ledger observer goroutines.
type Driver struct {
	deps Deps

	mu    sync.Mutex
	state swap.ActorState
}

// New constructs a Driver for a swap whose Request has already been
// Accepted. acc and seed are folded into the initial ActorState immediately
// so State/Actions are meaningful even before Run is called.
func New(role swap.Role, req swap.Request, acc swap.Accept, seed swap.Seed, deps Deps) (*Driver, error) {
	state := swap.NewActorState(role, req, seed)
	if err := state.Accept(acc); err != nil {
		return nil, err
	}
	return &Driver{deps: deps, state: state}, nil
}

// State returns a snapshot of the current ActorState. Safe for concurrent
// use with Run.
func (d *Driver) State() swap.ActorState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Actions derives the currently legal actions for this driver's role, per
// actions.Derive. Safe for concurrent use with Run.
func (d *Driver) Actions() []actions.Action {
	return actions.Derive(d.State())
}

// Done reports whether both ledgers have reached a terminal state.
func (d *Driver) Done() bool {
	return d.State().IsDone()
}

// Run observes both ledgers from startOfSwap forward, folding every event
// into the owned ActorState until the swap reaches its terminal condition,
// ctx is cancelled, or an observer fails unrecoverably. It is safe to call
// Run again with a later startOfSwap after a process restart: Request,
// Accept, and Seed fully determine HtlcParams, so the new observers pick up
// exactly where the old ones left off, modulo re-scanning the Margin
// lookback window.
func (d *Driver) Run(ctx context.Context, startOfSwap time.Time) error {
	req := d.State().Communication.Request
	acc := d.State().Communication.Accept

	alphaParams, err := swap.NewAlphaParams(req, acc)
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}
	betaParams, err := swap.NewBetaParams(req, acc)
	if err != nil {
		return fmt.Errorf("driver: %w", err)
	}

	alphaStream, err := d.observe(ctx, swap.AlphaSide, req.Alpha.Kind, alphaParams, startOfSwap)
	if err != nil {
		return fmt.Errorf("driver: alpha: %w", err)
	}
	betaStream, err := d.observe(ctx, swap.BetaSide, req.Beta.Kind, betaParams, startOfSwap)
	if err != nil {
		return fmt.Errorf("driver: beta: %w", err)
	}

	alphaEvents, alphaErrs := alphaStream.Events, alphaStream.Errs
	betaEvents, betaErrs := betaStream.Events, betaStream.Errs

	reconcile := time.NewTicker(ReconcileInterval)
	defer reconcile.Stop()

	for {
		if alphaEvents == nil && betaEvents == nil {
			if d.Done() {
				return nil
			}
			return fmt.Errorf("driver: both ledger observers ended without completing the swap")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-alphaErrs:
			d.markFailed()
			return fmt.Errorf("driver: alpha observer failed: %w", err)

		case err := <-betaErrs:
			d.markFailed()
			return fmt.Errorf("driver: beta observer failed: %w", err)

		case ev, ok := <-alphaEvents:
			if !ok {
				alphaEvents = nil
				continue
			}
			if _, err := d.apply(ev); err != nil {
				log.Errorf("driver: dropping alpha event: %s", err)
			}

		case ev, ok := <-betaEvents:
			if !ok {
				betaEvents = nil
				continue
			}
			if _, err := d.apply(ev); err != nil {
				log.Errorf("driver: dropping beta event: %s", err)
			}

		case <-reconcile.C:
			if d.reconcileSide(ctx, swap.AlphaSide, req.Alpha.Kind) {
				log.Warnf("driver: alpha reorg revocation, restarting observer")
				alphaStream, err = d.observe(ctx, swap.AlphaSide, req.Alpha.Kind, alphaParams, startOfSwap)
				if err != nil {
					log.Errorf("driver: restart alpha observer after reorg: %s", err)
				} else {
					alphaEvents, alphaErrs = alphaStream.Events, alphaStream.Errs
				}
			}
			if d.reconcileSide(ctx, swap.BetaSide, req.Beta.Kind) {
				log.Warnf("driver: beta reorg revocation, restarting observer")
				betaStream, err = d.observe(ctx, swap.BetaSide, req.Beta.Kind, betaParams, startOfSwap)
				if err != nil {
					log.Errorf("driver: restart beta observer after reorg: %s", err)
				} else {
					betaEvents, betaErrs = betaStream.Events, betaStream.Errs
				}
			}
		}

		if d.Done() {
			return nil
		}
	}
}

func (d *Driver) apply(ev swap.Event) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Apply(ev)
}

func (d *Driver) sideState(side swap.Side) swap.LedgerState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if side == swap.AlphaSide {
		return d.state.Alpha
	}
	return d.state.Beta
}

// reconcileSide re-checks side's most recently reported block against its
// ledger's current tip and, if it is no longer canonical, applies a Revoked
// event regressing that ledger to its predecessor state. It reports whether
// a revocation was applied, so Run knows to restart that side's observer.
func (d *Driver) reconcileSide(ctx context.Context, side swap.Side, kind ledger.Kind) bool {
	state := d.sideState(side)
	if state.Tag == swap.NotDeployed || state.IsTerminal() || state.BlockHash == "" {
		return false
	}

	canonical, err := d.isCanonical(ctx, kind, state.BlockHash)
	if err != nil {
		log.Warnf("driver: reconcile %s: %s", side, err)
		return false
	}
	if canonical {
		return false
	}

	changed, err := d.apply(swap.Event{Side: side, Revoked: true, RevertTo: state.Predecessor()})
	if err != nil {
		log.Errorf("driver: reconcile %s: %s", side, err)
		return false
	}
	return changed
}

func (d *Driver) isCanonical(ctx context.Context, kind ledger.Kind, blockHash string) (bool, error) {
	switch kind {
	case ledger.Bitcoin:
		if d.deps.Bitcoin == nil {
			return true, nil
		}
		return d.deps.Bitcoin.Watcher.IsCanonical(ctx, blockHash)
	case ledger.Ethereum:
		if d.deps.Ethereum == nil {
			return true, nil
		}
		return d.deps.Ethereum.Watcher.IsCanonical(ctx, blockHash)
	default:
		return true, nil
	}
}

func (d *Driver) markFailed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Failed = true
}

func (d *Driver) observe(
	ctx context.Context,
	side swap.Side,
	kind ledger.Kind,
	params htlc.Params,
	since time.Time,
) (events.Stream, error) {
	switch kind {
	case ledger.Bitcoin:
		if d.deps.Bitcoin == nil {
			return events.Stream{}, fmt.Errorf("no bitcoin dependencies configured")
		}
		return events.ObserveBitcoin(ctx, d.deps.Bitcoin.Watcher, d.deps.Bitcoin.Ledger, side, params, since), nil

	case ledger.Ethereum:
		if d.deps.Ethereum == nil {
			return events.Stream{}, fmt.Errorf("no ethereum dependencies configured")
		}
		deployer, ok := params.RefundIdentity.(ledgereth.Identity)
		if !ok {
			return events.Stream{}, fmt.Errorf("ethereum refund identity has the wrong concrete type")
		}
		return events.ObserveEthereum(ctx, d.deps.Ethereum.Watcher, deployer, side, params, since), nil

	default:
		return events.Stream{}, fmt.Errorf("unknown ledger kind %s", kind)
	}
}
