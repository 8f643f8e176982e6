package kv

import (
	"bytes"
	"sort"
	"sync"

	"github.com/chainkv/smt/statuserr"
)

// MemoryDatabase is a map-backed Database, generalizing the teacher's
// InMemoryDatabase (database.go: a map[string][]byte guarded by an
// RWMutex) with the ordered-iteration and batch-write shapes of the
// eth2030 pack's core/rawdb/key_value_store.go MemoryKVStore. Keys sort by
// raw byte order on every NewIterator call, which is fine at the sizes
// this engine targets in tests; BadgerDatabase is the engine meant for
// real data volumes.
type MemoryDatabase struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryDatabase returns an empty MemoryDatabase.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{data: make(map[string][]byte)}
}

func (m *MemoryDatabase) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, statuserr.New(statuserr.NotFound, "key %x not found", key)
	}
	return cloneBytes(v), nil
}

func (m *MemoryDatabase) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemoryDatabase) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = cloneBytes(value)
	return nil
}

func (m *MemoryDatabase) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemoryDatabase) Close() error { return nil }

// NewSnapshot returns a Reader over a point-in-time copy of the current
// data, immune to subsequent writes against m.
func (m *MemoryDatabase) NewSnapshot() Reader {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		cp[k] = cloneBytes(v)
	}
	return &memorySnapshot{data: cp}
}

func (m *MemoryDatabase) NewIterator(opts IterateOptions) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		cp[k] = cloneBytes(v)
	}
	return newSliceIterator(cp, opts)
}

func (m *MemoryDatabase) NewBatch() Batch {
	return &memoryBatch{db: m}
}

type memorySnapshot struct {
	data map[string][]byte
}

func (s *memorySnapshot) Get(key []byte) ([]byte, error) {
	v, ok := s.data[string(key)]
	if !ok {
		return nil, statuserr.New(statuserr.NotFound, "key %x not found", key)
	}
	return cloneBytes(v), nil
}

func (s *memorySnapshot) Has(key []byte) (bool, error) {
	_, ok := s.data[string(key)]
	return ok, nil
}

func (s *memorySnapshot) NewIterator(opts IterateOptions) Iterator {
	return newSliceIterator(s.data, opts)
}

type memoryBatch struct {
	db  *MemoryDatabase
	ops []batchOp
}

func (b *memoryBatch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
}

func (b *memoryBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), delete: true})
}

func (b *memoryBatch) Len() int { return len(b.ops) }

func (b *memoryBatch) Reset() { b.ops = nil }

func (b *memoryBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.delete {
			delete(b.db.data, string(op.key))
		} else {
			b.db.data[string(op.key)] = op.value
		}
	}
	return nil
}

// sliceIterator walks a pre-sorted, pre-filtered snapshot slice. Built by
// copying and sorting the relevant keys up front, the same trade-off the
// eth2030 MemoryKVStore iterator makes: simple and correct, not tuned for
// large scans.
type sliceIterator struct {
	keys []string
	data map[string][]byte
	idx  int
	cur  string
}

func newSliceIterator(data map[string][]byte, opts IterateOptions) *sliceIterator {
	keys := make([]string, 0, len(data))
	for k := range data {
		kb := []byte(k)
		if opts.Gte != nil && bytes.Compare(kb, opts.Gte) < 0 {
			continue
		}
		if opts.Lte != nil && bytes.Compare(kb, opts.Lte) > 0 {
			continue
		}
		keys = append(keys, k)
	}
	if opts.Reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	} else {
		sort.Strings(keys)
	}
	if opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}
	return &sliceIterator{keys: keys, data: data, idx: -1}
}

func (it *sliceIterator) Next() bool {
	it.idx++
	if it.idx >= len(it.keys) {
		return false
	}
	it.cur = it.keys[it.idx]
	return true
}

func (it *sliceIterator) Key() []byte   { return []byte(it.cur) }
func (it *sliceIterator) Value() []byte { return cloneBytes(it.data[it.cur]) }
func (it *sliceIterator) Error() error  { return nil }
func (it *sliceIterator) Release()      {}
