// Package testutil holds shared fakes for the external collaborators the
// core engine only ever consumes through an interface: a ledger's
// LatestBlock/BlockByHash RPC surface and the peer-exchange oracle.
// Package-local tests (watch, events, driver) are free to keep their own
// narrower fakes where a shared one would not fit; this package exists for
// the fakes that are genuinely reused across package boundaries.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rfc003/swapd/peerexchange"
	"github.com/rfc003/swapd/swap"
	"github.com/rfc003/swapd/watch"
)

// FakeBlock is a minimal watch.Block implementation for tests: a linked
// list of blocks built by FakeClient.Append.
type FakeBlock struct {
	BlockHash   string
	Parent      string
	BlockHeight uint64
	At          time.Time
}

// Hash implements watch.Block.
func (b *FakeBlock) Hash() string { return b.BlockHash }

// ParentHash implements watch.Block.
func (b *FakeBlock) ParentHash() string { return b.Parent }

// Height implements watch.Block.
func (b *FakeBlock) Height() uint64 { return b.BlockHeight }

// Timestamp implements watch.Block.
func (b *FakeBlock) Timestamp() time.Time { return b.At }

// FakeClient is an in-memory watch.Client: a single chain of FakeBlocks
// that tests build up by calling Append, with no RPC latency or failures
// unless InjectErr is set.
type FakeClient struct {
	mu        sync.Mutex
	byHash    map[string]*FakeBlock
	tip       *FakeBlock
	seq       int
	InjectErr error
}

// NewFakeClient returns an empty chain; call Append to seed genesis.
func NewFakeClient() *FakeClient {
	return &FakeClient{byHash: make(map[string]*FakeBlock)}
}

// Append adds a new block on top of the current tip at interval after it
// (or at t0 if this is genesis) and returns it.
func (c *FakeClient) Append(t0 time.Time, interval time.Duration) *FakeBlock {
	c.mu.Lock()
	defer c.mu.Unlock()

	height := uint64(0)
	parent := ""
	at := t0
	if c.tip != nil {
		height = c.tip.BlockHeight + 1
		parent = c.tip.BlockHash
		at = c.tip.At.Add(interval)
	}
	c.seq++
	b := &FakeBlock{
		// seq guarantees a distinct hash even when a reorg's replacement
		// chain revisits a height/timestamp an abandoned block already
		// occupied -- a real chain's blocks differ in their full header
		// (nonce, merkle root) even when competing for the same height.
		BlockHash:   fmt.Sprintf("block-%d-%s-%d", height, at.Format(time.RFC3339Nano), c.seq),
		Parent:      parent,
		BlockHeight: height,
		At:          at,
	}
	c.byHash[b.BlockHash] = b
	c.tip = b
	return b
}

// Reorg drops every block above keepHeight and appends a replacement chain
// from there, simulating a reorganisation for reorg-revocation tests.
func (c *FakeClient) Reorg(keepHeight uint64, n int, interval time.Duration) {
	c.mu.Lock()
	var kept *FakeBlock
	for _, b := range c.byHash {
		if b.BlockHeight == keepHeight {
			kept = b
		}
	}
	c.mu.Unlock()
	if kept == nil {
		return
	}
	c.mu.Lock()
	for hash, b := range c.byHash {
		if b.BlockHeight > keepHeight {
			delete(c.byHash, hash)
		}
	}
	c.tip = kept
	c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.Append(kept.At, interval)
	}
}

// LatestBlock implements watch.Client.
func (c *FakeClient) LatestBlock(_ context.Context) (watch.Block, error) {
	if c.InjectErr != nil {
		return nil, c.InjectErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tip == nil {
		return nil, fmt.Errorf("testutil: no blocks appended yet")
	}
	return c.tip, nil
}

// BlockByHash implements watch.Client.
func (c *FakeClient) BlockByHash(_ context.Context, hash string) (watch.Block, error) {
	if c.InjectErr != nil {
		return nil, c.InjectErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.byHash[hash]
	if !ok {
		return nil, fmt.Errorf("testutil: no such block %s", hash)
	}
	return b, nil
}

// FakePeerExchange is an in-memory peerexchange.Oracle: SendRequest
// resolves immediately against a canned Response, and Requests is fed by
// Inject for responder-side tests.
type FakePeerExchange struct {
	Response peerexchange.Response
	Err      error

	inbox chan peerexchange.Proposal
}

// NewFakePeerExchange returns an oracle that answers every SendRequest with
// resp (or err, if set).
func NewFakePeerExchange(resp peerexchange.Response) *FakePeerExchange {
	return &FakePeerExchange{Response: resp, inbox: make(chan peerexchange.Proposal, 8)}
}

// SendRequest implements peerexchange.Oracle.
func (f *FakePeerExchange) SendRequest(ctx context.Context, _ swap.Request) (peerexchange.Response, error) {
	if f.Err != nil {
		return peerexchange.Response{}, f.Err
	}
	select {
	case <-ctx.Done():
		return peerexchange.Response{}, ctx.Err()
	default:
		return f.Response, nil
	}
}

// Requests implements peerexchange.Oracle.
func (f *FakePeerExchange) Requests() <-chan peerexchange.Proposal { return f.inbox }

// Inject delivers req as an incoming proposal, to be answered via reply.
func (f *FakePeerExchange) Inject(req swap.Request, reply func(context.Context, peerexchange.Response) error) {
	f.inbox <- peerexchange.Proposal{Request: req, Reply: reply}
}
