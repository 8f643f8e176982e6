// Package kv defines the ordered byte-oriented key/value engine contract
// the state store is built on (spec §6.1), and two implementations: an
// in-memory one for tests and ephemeral use, and a persistent one backed
// by Badger.
package kv

// Database is the storage engine contract: point get/put/delete, atomic
// batch writes, and ordered range iteration with inclusive bounds.
// BadgerDatabase can be opened read-only (BadgerOptions.ReadOnly);
// MemoryDatabase has no read-only mode.
type Database interface {
	Reader

	Put(key, value []byte) error
	Delete(key []byte) error

	// NewBatch returns a write batch that buffers Put/Delete calls until
	// Write is called, which applies them atomically.
	NewBatch() Batch

	// NewSnapshot returns a Reader pinned to the data as of this call;
	// later writes to the Database are never visible through it.
	NewSnapshot() Reader

	// Close releases any resources the database holds open.
	Close() error
}

// Reader is the read-only subset of Database: a point lookup and range
// iteration. A Database's own snapshot-at-open Reader (see NewSnapshot) and
// the live Database both satisfy it.
type Reader interface {
	// Get returns the value for key, or a statuserr.NotFound error if key
	// is absent.
	Get(key []byte) ([]byte, error)

	// Has reports whether key is present.
	Has(key []byte) (bool, error)

	// NewIterator returns an iterator over [opts.Gte, opts.Lte] (both
	// inclusive when non-nil), ascending unless opts.Reverse is set, and
	// bounded to opts.Limit entries when positive.
	NewIterator(opts IterateOptions) Iterator
}

// IterateOptions bounds a range scan. A nil Gte/Lte means "unbounded on
// that side". Limit <= 0 means unbounded.
type IterateOptions struct {
	Gte     []byte
	Lte     []byte
	Reverse bool
	Limit   int
}

// Iterator walks a bounded, ordered key range. Callers must call Release
// when done; a non-nil Error after Next returns false distinguishes
// end-of-range from a failure.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Release()
}

// Batch buffers Put/Delete calls until Write applies them atomically
// against the Database that created it.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Len() int
	Reset()
	Write() error
}

// batchOp is the shared buffered-operation representation both
// implementations (memory.go, badger.go) build their Batch on.
type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
