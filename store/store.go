// Package store persists swap state across restarts: a driver must be
// reconstructible from (Request, Accept, start_of_swap) alone. It follows a
// swapManager idiom -- a single mutex guarding an in-memory map of ongoing
// swaps -- and adds a durable bbolt-backed implementation for the same
// interface.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/rfc003/swapd/swap"
)

// Record is everything needed to reconstruct a Driver for one swap after a
// restart.
type Record struct {
	Request     swap.Request
	Accept      swap.Accept
	Accepted    bool
	Seed        [32]byte
	Role        swap.Role
	StartOfSwap time.Time
}

// Store is the persistence interface a driver supervisor depends on.
type Store interface {
	Put(r Record) error
	Get(id swap.ID) (Record, bool, error)
	All() ([]Record, error)
	Delete(id swap.ID) error
}

// memoryStore is the in-process default: a single mutex guarding a map.
type memoryStore struct {
	mu      sync.Mutex
	records map[swap.ID]Record
}

// NewMemoryStore returns a Store that keeps records in memory only.
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[swap.ID]Record)}
}

func (m *memoryStore) Put(r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.Request.SwapID] = r
	return nil
}

func (m *memoryStore) Get(id swap.ID) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	return r, ok, nil
}

func (m *memoryStore) All() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) Delete(id swap.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// Record's Request/Accept fields hold ledger.Identity interface values
// (concrete Bitcoin or Ethereum addresses). JSON round-trips the concrete
// struct's exported fields but cannot reconstruct the interface on
// Unmarshal without a registered concrete type; callers that need durable
// storage across process restarts should wrap Store with a codec that
// knows the deployment's ledger kinds, rather than relying on this
// package's json.Marshal default for identity-bearing fields.
var swapsBucket = []byte("swaps")

// boltStore is the durable default for a long-running daemon: one bbolt
// bucket keyed by swap id, JSON-encoded records.
type boltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path and
// returns a Store backed by it.
func OpenBoltStore(path string) (Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bbolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(swapsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &boltStore{db: db}, nil
}

func (b *boltStore) Put(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal record: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(swapsBucket).Put([]byte(r.Request.SwapID.String()), data)
	})
}

func (b *boltStore) Get(id swap.ID) (Record, bool, error) {
	var r Record
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(swapsBucket).Get([]byte(id.String()))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("store: get record: %w", err)
	}
	return r, found, nil
}

func (b *boltStore) All() ([]Record, error) {
	var out []Record
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(swapsBucket).ForEach(func(_, data []byte) error {
			var r Record
			if err := json.Unmarshal(data, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: list records: %w", err)
	}
	return out, nil
}

func (b *boltStore) Delete(id swap.ID) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(swapsBucket).Delete([]byte(id.String()))
	})
}
