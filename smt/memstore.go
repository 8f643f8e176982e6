package smt

import (
	"sync"

	"github.com/chainkv/smt/statuserr"
)

// MemoryNodeStore is a map-backed NodeStore, generalizing the teacher's
// InMemoryDatabase (database.go) from a leaf/node-index split keyed by
// *big.Int to a single content-addressed Hash keyspace. Used by tests and
// by Tree when a caller has no persistent backing store to offer.
type MemoryNodeStore struct {
	mu    sync.RWMutex
	nodes map[Hash][]byte
}

// NewMemoryNodeStore returns an empty MemoryNodeStore.
func NewMemoryNodeStore() *MemoryNodeStore {
	return &MemoryNodeStore{nodes: make(map[Hash][]byte)}
}

func (m *MemoryNodeStore) GetNode(hash Hash) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.nodes[hash]
	if !ok {
		return nil, statuserr.New(statuserr.NotFound, "node %x not found", hash)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryNodeStore) SetNode(hash Hash, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.nodes[hash] = cp
	return nil
}

func (m *MemoryNodeStore) DeleteNode(hash Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, hash)
	return nil
}

// Len reports the number of nodes currently retained, for tests asserting
// on garbage collection.
func (m *MemoryNodeStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
