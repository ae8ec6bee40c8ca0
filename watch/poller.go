// Package watch implements the block/transaction watcher layer: a
// LatestBlock/BlockByHash poller with retry/backoff and a caching layer,
// from which the per-ledger watchers in watch/bitcoin and watch/ethereum
// are built.
package watch

import (
	"context"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log"

	"github.com/rfc003/swapd/watch/blockcache"
)

var log = logging.Logger("watch")

// Margin is the lower bound subtracted from start_of_swap before a watcher
// begins scanning.
const Margin = 15 * time.Minute

// Block is the minimal shape a ledger client's block must expose.
type Block interface {
	blockcache.Block
	Timestamp() time.Time
}

// Client is the external blockchain RPC collaborator: latest_block/
// block_by_hash, both async and fallible.
type Client interface {
	LatestBlock(ctx context.Context) (Block, error)
	BlockByHash(ctx context.Context, hash string) (Block, error)
}

// Backoff implements the retry policy: base 1s, factor 2, cap 60s,
// unbounded attempts.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration

	attempt int
}

// NewBackoff returns the default backoff policy.
func NewBackoff() *Backoff {
	return &Backoff{Base: time.Second, Factor: 2, Cap: 60 * time.Second}
}

// Next returns the delay before the next retry and advances internal state.
func (b *Backoff) Next() time.Duration {
	d := b.Base
	for i := 0; i < b.attempt; i++ {
		d = time.Duration(float64(d) * b.Factor)
		if d >= b.Cap {
			d = b.Cap
			break
		}
	}
	b.attempt++
	return d
}

// Reset clears accumulated attempts, called after a successful RPC.
func (b *Backoff) Reset() { b.attempt = 0 }

// Poller pulls blocks from Client, walking backwards from tip to find the
// starting point and then forwards in lockstep with new tips, caching
// everything it fetches. Blocks are cached by hash, so a lookup by hash
// returns exactly the block with that hash. LatestBlock and BlockByHash
// cache through Cache.Add, which keeps an already cached block at the same
// height and leaves the newly fetched one uncached; only IsCanonical, on
// finding a reorg, installs the new block at that height via Cache.Replace.
type Poller struct {
	client     Client
	cache      *blockcache.Cache
	rpcTimeout time.Duration
}

// NewPoller constructs a Poller backed by client and cache. rpcTimeout
// bounds every individual RPC call's I/O timeout.
func NewPoller(client Client, cache *blockcache.Cache, rpcTimeout time.Duration) *Poller {
	return &Poller{client: client, cache: cache, rpcTimeout: rpcTimeout}
}

// fetchWithRetry wraps one RPC call with the timeout+backoff policy above.
// It retries forever on transient-looking errors (the poller has no way to
// distinguish transient from permanent beyond ctx cancellation) until ctx
// is cancelled.
func fetchWithRetry[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	backoff := NewBackoff()
	for {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		v, err := fn(callCtx)
		cancel()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			var zero T
			return zero, ctx.Err()
		}

		delay := backoff.Next()
		log.Warnf("watch: rpc call failed, retrying in %s: %s", delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// LatestBlock fetches and caches the current tip.
func (p *Poller) LatestBlock(ctx context.Context) (Block, error) {
	b, err := fetchWithRetry(ctx, p.rpcTimeout, p.client.LatestBlock)
	if err != nil {
		return nil, err
	}
	p.cache.Add(b)
	return b, nil
}

// BlockByHash returns the cached block for hash if present, else fetches,
// validates, and caches it.
func (p *Poller) BlockByHash(ctx context.Context, hash string) (Block, error) {
	if b, ok := p.cache.Get(hash); ok {
		return b.(Block), nil
	}

	b, err := fetchWithRetry(ctx, p.rpcTimeout, func(ctx context.Context) (Block, error) {
		return p.client.BlockByHash(ctx, hash)
	})
	if err != nil {
		return nil, err
	}
	if b.Hash() != hash {
		return nil, fmt.Errorf("watch: block_by_hash returned mismatched hash: got %s want %s", b.Hash(), hash)
	}
	p.cache.Add(b)
	return b, nil
}

// WalkBackToSince walks the chain backwards from tip until it finds a block
// whose timestamp satisfies block_time <= since-Margin, then returns the
// ordered (oldest-first) slice of blocks from that point forward to tip.
func (p *Poller) WalkBackToSince(ctx context.Context, tip Block, since time.Time) ([]Block, error) {
	threshold := since.Add(-Margin)

	var chain []Block
	cur := tip
	for {
		chain = append(chain, cur)
		if !cur.Timestamp().After(threshold) {
			break
		}
		if cur.ParentHash() == "" {
			break // genesis
		}
		parent, err := p.BlockByHash(ctx, cur.ParentHash())
		if err != nil {
			return nil, err
		}
		cur = parent
	}

	// reverse into oldest-first order
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// WalkForward walks the chain backwards from tip until it reaches the block
// lastHash names, then returns the ordered (oldest-first) slice of every
// block strictly after it, up to and including tip. If lastHash has itself
// been reorged out from under tip, the walk instead stops at the
// since-Margin threshold, same as WalkBackToSince, so a watcher recovers by
// rescanning its lookback window rather than walking to genesis. Callers
// use this every poll tick instead of re-scanning only the latest block, so
// a block that is superseded before the next tick is still scanned once.
func (p *Poller) WalkForward(ctx context.Context, tip Block, lastHash string, since time.Time) ([]Block, error) {
	threshold := since.Add(-Margin)

	var chain []Block
	cur := tip
	for {
		if cur.Hash() == lastHash {
			break
		}
		chain = append(chain, cur)
		if !cur.Timestamp().After(threshold) {
			break
		}
		if cur.ParentHash() == "" {
			break // genesis
		}
		parent, err := p.BlockByHash(ctx, cur.ParentHash())
		if err != nil {
			return nil, err
		}
		cur = parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// IsCanonical reports whether hash names a block that is still reachable by
// walking parent links back from the current tip. A hash this poller has
// never cached is reported canonical, since callers only ever ask about
// blocks they themselves previously observed through this poller. When the
// block at that height has changed, the new canonical block is installed
// into the cache via Replace, the only path that may evict a reorged entry.
func (p *Poller) IsCanonical(ctx context.Context, hash string) (bool, error) {
	if !p.cache.Seen(hash) {
		return true, nil
	}
	cached, ok := p.cache.Get(hash)
	if !ok {
		return true, nil
	}

	tip, err := p.LatestBlock(ctx)
	if err != nil {
		return false, err
	}
	if tip.Height() < cached.Height() {
		return true, nil // not yet confirmed to the depth this block sits at
	}

	cur := tip
	for cur.Height() > cached.Height() {
		parent, err := p.BlockByHash(ctx, cur.ParentHash())
		if err != nil {
			return false, err
		}
		cur = parent
	}

	if cur.Hash() == hash {
		return true, nil
	}

	log.Warnf("watch: reorg detected: height %d now %s, was %s", cached.Height(), cur.Hash(), hash)
	p.cache.Replace(cur)
	return false, nil
}
