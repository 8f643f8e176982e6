package store

import (
	"github.com/chainkv/smt/kv"
	"github.com/chainkv/smt/smt"
	"github.com/chainkv/smt/statuserr"
)

// StateReader is a read-only view of the state tree at one root, bound to
// a snapshot taken when the reader was created: later commits against the
// store are never visible through it, matching "a new reader observes the
// root current at its creation and is unaffected by subsequent commits".
// Point lookups (Get/Has) walk the SMT from root, the same way Prove does,
// rather than trusting the side-index, which holds only the latest value
// per key; Iterate uses the side-index, since only it can answer an
// ordered range query.
type StateReader struct {
	store    *Store
	root     smt.Hash
	snapshot kv.Reader
}

func newStateReader(s *Store, root smt.Hash, snapshot kv.Reader) *StateReader {
	return &StateReader{store: s, root: root, snapshot: snapshot}
}

// Root returns the root this reader is pinned to.
func (r *StateReader) Root() smt.Hash { return r.root }

// Get walks the SMT from r.root for key and, on a hit, resolves the
// leaf's value hash to the raw bytes via the content-addressed value blob
// store. Returns statuserr.NotFound if key has no leaf at r.root.
func (r *StateReader) Get(key []byte) ([]byte, error) {
	adapter := &nodeStoreAdapter{reader: r.snapshot}
	valueHash, found, err := r.store.engine.Get(adapter, r.root, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, statuserr.New(statuserr.NotFound, "key %x not found", key)
	}
	value, err := r.snapshot.Get(valueBlobKey(valueHash))
	if err != nil {
		return nil, statuserr.Wrap(statuserr.Corruption, err, "value blob %x missing for key %x", valueHash, key)
	}
	return value, nil
}

// Has reports whether key has a leaf at r.root.
func (r *StateReader) Has(key []byte) (bool, error) {
	adapter := &nodeStoreAdapter{reader: r.snapshot}
	_, found, err := r.store.engine.Get(adapter, r.root, key)
	return found, err
}

// Iterate returns an Iterator over [gte, lte] (inclusive bounds, nil for
// unbounded), ascending unless reverse is set, capped at limit entries
// (<=0 for unbounded). Keys and values are caller keys, not the
// side-index's prefixed form, and are read from the same snapshot as
// Get/Has.
func (r *StateReader) Iterate(gte, lte []byte, reverse bool, limit int) *RangeIterator {
	opts := kv.IterateOptions{Reverse: reverse, Limit: limit}
	if gte != nil {
		opts.Gte = valueKey(gte)
	} else {
		opts.Gte = valuePrefix()
	}
	if lte != nil {
		opts.Lte = valueKey(lte)
	} else {
		opts.Lte = maxValueKey(r.store.cfg.KeyLength)
	}
	return &RangeIterator{it: r.snapshot.NewIterator(opts)}
}

func maxValueKey(keyLen int) []byte {
	k := make([]byte, 1+keyLen)
	k[0] = prefixValue
	for i := 1; i < len(k); i++ {
		k[i] = 0xff
	}
	return k
}

// RangeIterator adapts a kv.Iterator over the side-index keyspace back to
// caller keys, stopping once keys run past the prefixValue namespace.
type RangeIterator struct {
	it   kv.Iterator
	done bool
}

func (it *RangeIterator) Next() bool {
	if it.done {
		return false
	}
	if !it.it.Next() {
		it.done = true
		return false
	}
	if len(it.it.Key()) == 0 || it.it.Key()[0] != prefixValue {
		it.done = true
		return false
	}
	return true
}

func (it *RangeIterator) Key() []byte   { return stripValuePrefix(it.it.Key()) }
func (it *RangeIterator) Value() []byte { return it.it.Value() }
func (it *RangeIterator) Error() error  { return it.it.Error() }
func (it *RangeIterator) Release()      { it.it.Release() }

// Prove builds an SMT inclusion/exclusion proof for keys against r's root.
func (r *StateReader) Prove(keys [][]byte) (*smt.Proof, error) {
	adapter := &nodeStoreAdapter{reader: r.snapshot}
	return r.store.engine.Prove(adapter, r.root, keys)
}
