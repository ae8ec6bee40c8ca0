// Package blockcache provides the bounded, reorg-safe hash->block cache
// shared by all watchers of one ledger.
//
// decred/dcrd/lru.Cache is a membership-only LRU set, not a keyed cache: it
// can answer "have I already validated this hash" but cannot store the
// block bytes behind it. We use it for exactly that purpose -- skipping
// redundant validation work for hashes already admitted into the cache --
// and pair it with a small mutex-guarded map for the hash->block storage
// itself. See DESIGN.md for the stdlib-map justification.
package blockcache

import (
	"container/list"
	"sync"

	"github.com/decred/dcrd/lru"
)

// Block is the minimal shape the cache stores and returns.
type Block interface {
	Hash() string
	ParentHash() string
	Height() uint64
}

// Cache is a bounded LRU cache from block hash to block, safe for
// concurrent use by multiple watcher goroutines. It never serves a hash
// whose stored block has been superseded at the same height by a
// reorganisation: Replace must be used (not Add) whenever a watcher
// observes a new block at a previously-seen height.
type Cache struct {
	mu       sync.Mutex
	limit    int
	byHash   map[string]*list.Element // hash -> list element holding *entry
	byHeight map[uint64]string        // height -> currently canonical hash at that height
	order    *list.List               // most-recently-used at the front
	seen     *lru.Cache                // membership cache of validated hashes, decred/dcrd/lru
}

type entry struct {
	hash   string
	height uint64
	block  Block
}

// New returns a Cache bounded to limit entries.
func New(limit int) *Cache {
	if limit <= 0 {
		limit = 1
	}
	return &Cache{
		limit:    limit,
		byHash:   make(map[string]*list.Element, limit),
		byHeight: make(map[uint64]string, limit),
		order:    list.New(),
		seen:     lru.NewCache(uint(limit)),
	}
}

// Get returns the cached block for hash, if present.
func (c *Cache) Get(hash string) (Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byHash[hash]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).block, true
}

// Add inserts block into the cache unless a block is already cached at the
// same height with a different hash -- in which case the caller must call
// Replace explicitly, so that a reorg is never silently masked by Add.
func (c *Cache) Add(b Block) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existingHash, ok := c.byHeight[b.Height()]; ok && existingHash != b.Hash() {
		return
	}
	c.insertLocked(b)
}

// Replace evicts whatever block was previously cached at b.Height() (if any,
// and if its hash differs from b.Hash()) and inserts b as canonical. This is
// the only path a watcher should use after detecting a reorg.
func (c *Cache) Replace(b Block) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if oldHash, ok := c.byHeight[b.Height()]; ok && oldHash != b.Hash() {
		if el, ok := c.byHash[oldHash]; ok {
			c.order.Remove(el)
			delete(c.byHash, oldHash)
		}
		c.seen.Delete(oldHash)
	}
	c.insertLocked(b)
}

func (c *Cache) insertLocked(b Block) {
	if el, ok := c.byHash[b.Hash()]; ok {
		c.order.MoveToFront(el)
		el.Value.(*entry).block = b
		c.byHeight[b.Height()] = b.Hash()
		c.seen.Add(b.Hash())
		return
	}

	el := c.order.PushFront(&entry{hash: b.Hash(), height: b.Height(), block: b})
	c.byHash[b.Hash()] = el
	c.byHeight[b.Height()] = b.Hash()
	c.seen.Add(b.Hash())

	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		oe := oldest.Value.(*entry)
		c.order.Remove(oldest)
		delete(c.byHash, oe.hash)
		if c.byHeight[oe.height] == oe.hash {
			delete(c.byHeight, oe.height)
		}
		c.seen.Delete(oe.hash)
	}
}

// Seen reports whether hash has previously been admitted to the cache and
// not since evicted, without affecting the block LRU order -- used by
// Poller.IsCanonical to treat a hash it never cached as canonical.
func (c *Cache) Seen(hash string) bool {
	return c.seen.Contains(hash)
}

// Len returns the number of cached blocks.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
