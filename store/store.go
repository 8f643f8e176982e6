// Package store implements the versioned, height-indexed state store
// layered on top of the smt package's content-addressed sparse Merkle
// tree engine: a working-set ReadWriter for staging writes, Commit to fold
// a batch into a new root at a height, Revert to undo the most recent
// commit, and Finalize to prune diff records and unreachable nodes below a
// retained height.
package store

import (
	"sync"

	"github.com/chainkv/smt/kv"
	"github.com/chainkv/smt/smt"
	"github.com/chainkv/smt/statuserr"
)

// Options configures NewStore.
type Options struct {
	Config smt.Config
	Logger Logger
}

// Store owns one kv.Database and the SMT/side-index/diff bookkeeping
// layered on it for one logical chain of heights.
type Store struct {
	mu     sync.RWMutex
	db     kv.Database
	engine *smt.Engine
	cfg    smt.Config
	logger Logger

	height  uint64
	hasRoot bool
	root    smt.Hash

	pinned map[smt.Hash]bool
}

// NewStore opens a Store over db. On a fresh database it writes the config
// header; on reopen it verifies the stored header matches opts.Config.
func NewStore(db kv.Database, opts Options) (*Store, error) {
	engine, err := smt.NewEngine(opts.Config)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	s := &Store{db: db, engine: engine, cfg: opts.Config, logger: logger, pinned: make(map[smt.Hash]bool)}

	existing, err := db.Get(configKey())
	if err != nil {
		if kind, ok := statuserr.KindOf(err); !ok || kind != statuserr.NotFound {
			return nil, err
		}
		if err := db.Put(configKey(), encodeConfig(opts.Config)); err != nil {
			return nil, statuserr.Wrap(statuserr.StorageError, err, "writing config header")
		}
		s.root = engine.EmptyRoot()
		return s, nil
	}

	stored, err := decodeConfig(existing)
	if err != nil {
		return nil, err
	}
	if !configsEqual(stored, opts.Config) {
		return nil, statuserr.New(statuserr.InvalidState, "store config header does not match: stored %+v, requested %+v", stored, opts.Config)
	}
	if err := s.loadLatestHeight(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadLatestHeight() error {
	it := s.db.NewIterator(kv.IterateOptions{Gte: []byte{prefixRoot}, Lte: []byte{prefixRoot, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Reverse: true, Limit: 1})
	defer it.Release()
	if it.Next() {
		key := it.Key()
		s.height = beUint64(key[1:])
		s.hasRoot = true
		copy(s.root[:], it.Value())
		return it.Error()
	}
	s.root = s.engine.EmptyRoot()
	return it.Error()
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// Engine returns the SMT engine this store drives, for callers that need
// to build standalone proofs or inspect Config.
func (s *Store) Engine() *smt.Engine { return s.engine }

// Height returns the most recently committed height and whether any commit
// has happened yet.
func (s *Store) Height() (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, s.hasRoot
}

// Root returns the current root.
func (s *Store) Root() smt.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Reader returns a StateReader pinned to the store's current root and to a
// snapshot of the database taken right now, so it is unaffected by any
// commit that happens after this call returns.
func (s *Store) Reader() *StateReader {
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()
	return newStateReader(s, root, s.db.NewSnapshot())
}

// ReaderAt returns a StateReader pinned to an arbitrary historical root,
// e.g. one returned by a prior Commit, and to a snapshot taken now.
func (s *Store) ReaderAt(root smt.Hash) *StateReader {
	return newStateReader(s, root, s.db.NewSnapshot())
}

// NewReadWriter returns a ReadWriter layered over the store's current root.
func (s *Store) NewReadWriter() *ReadWriter {
	return NewReadWriter(s.Reader())
}

// PinRoot marks root as alive so Finalize will never prune nodes it still
// reaches, even after the height it was produced at falls below the
// finalize threshold. Grounded on the eth2030 pack's trie/state_pruner.go
// StatePruner.MarkAlive.
func (s *Store) PinRoot(root smt.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[root] = true
}

// UnpinRoot reverses PinRoot.
func (s *Store) UnpinRoot(root smt.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pinned, root)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
