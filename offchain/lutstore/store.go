package lutstore

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

var ErrNotFound = errors.New("lookup table account not found")

// Store is durable account storage for tables, keyed by table address.
// Implementations hand out copies: mutating a returned table never
// changes what is stored.
type Store interface {
	Get(ctx context.Context, key solana.Pubkey) (*lut.Table, error)
	Put(ctx context.Context, t *lut.Table) error
	Delete(ctx context.Context, key solana.Pubkey) error
	// List returns stored table addresses in byte order. A non-zero
	// authority restricts the result to that authority's tables.
	List(ctx context.Context, authority solana.Pubkey) ([]solana.Pubkey, error)
	// Anchor returns the value recorded under name, recording value first
	// if name has none. Recorded values never change.
	Anchor(ctx context.Context, name string, value int64) (int64, error)
	Close() error
}

type MemStore struct {
	mu      sync.RWMutex
	tables  map[solana.Pubkey]*lut.Table
	anchors map[string]int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		tables:  make(map[solana.Pubkey]*lut.Table),
		anchors: make(map[string]int64),
	}
}

func (m *MemStore) Get(_ context.Context, key solana.Pubkey) (*lut.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[key]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (m *MemStore) Put(_ context.Context, t *lut.Table) error {
	if t == nil {
		return errors.New("nil table")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.Address] = t.Clone()
	return nil
}

func (m *MemStore) Delete(_ context.Context, key solana.Pubkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[key]; !ok {
		return ErrNotFound
	}
	delete(m.tables, key)
	return nil
}

func (m *MemStore) List(_ context.Context, authority solana.Pubkey) ([]solana.Pubkey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]solana.Pubkey, 0, len(m.tables))
	for k, t := range m.tables {
		if !authority.IsZero() && t.Authority != authority {
			continue
		}
		out = append(out, k)
	}
	sortPubkeys(out)
	return out, nil
}

func (m *MemStore) Anchor(_ context.Context, name string, value int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.anchors[name]; ok {
		return v, nil
	}
	m.anchors[name] = value
	return value, nil
}

func (m *MemStore) Close() error { return nil }

func sortPubkeys(keys []solana.Pubkey) {
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
}
