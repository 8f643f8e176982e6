package store

import (
	"github.com/chainkv/smt/smt"
	"github.com/chainkv/smt/statuserr"
)

// readOp is one entry of a ReadWriter's write-ahead cache: a value, or a
// tombstone for a deletion.
type readOp struct {
	value  []byte
	delete bool
}

// ReadWriter is the working-set writer layered over a StateReader: writes
// land in an in-memory cache first, reads check the cache before falling
// back to the underlying snapshot, and Snapshot/RevertToSnapshot give
// callers undo points within one in-flight batch of work before it is
// ever hashed into the tree by Commit.
type ReadWriter struct {
	initial *StateReader
	cache   map[string]readOp
	stack   []map[string]readOp
}

// NewReadWriter returns a ReadWriter layered over initial.
func NewReadWriter(initial *StateReader) *ReadWriter {
	return &ReadWriter{initial: initial, cache: make(map[string]readOp)}
}

// Get returns the value for key, checking the write cache first.
func (w *ReadWriter) Get(key []byte) ([]byte, error) {
	if op, ok := w.cache[string(key)]; ok {
		if op.delete {
			return nil, statuserr.New(statuserr.NotFound, "key %x not found", key)
		}
		return append([]byte(nil), op.value...), nil
	}
	return w.initial.Get(key)
}

// Has reports whether key is present, checking the write cache first.
func (w *ReadWriter) Has(key []byte) (bool, error) {
	if op, ok := w.cache[string(key)]; ok {
		return !op.delete, nil
	}
	return w.initial.Has(key)
}

// Put stages an insert-or-replace.
func (w *ReadWriter) Put(key, value []byte) {
	w.cache[string(key)] = readOp{value: append([]byte(nil), value...)}
}

// Delete stages a removal.
func (w *ReadWriter) Delete(key []byte) {
	w.cache[string(key)] = readOp{delete: true}
}

// Snapshot pushes the current cache state so a later RevertToSnapshot can
// undo everything staged since this call.
func (w *ReadWriter) Snapshot() {
	cp := make(map[string]readOp, len(w.cache))
	for k, v := range w.cache {
		cp[k] = v
	}
	w.stack = append(w.stack, cp)
}

// RevertToSnapshot discards every write staged since the matching
// Snapshot call. Returns statuserr.InvalidInput if the snapshot stack is
// empty.
func (w *ReadWriter) RevertToSnapshot() error {
	if len(w.stack) == 0 {
		return statuserr.New(statuserr.InvalidInput, "no snapshot to revert to")
	}
	w.cache = w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

// DiscardSnapshot pops the most recent snapshot without reverting to it,
// keeping everything staged since.
func (w *ReadWriter) DiscardSnapshot() error {
	if len(w.stack) == 0 {
		return statuserr.New(statuserr.InvalidInput, "no snapshot to discard")
	}
	w.stack = w.stack[:len(w.stack)-1]
	return nil
}

// Root is the root this ReadWriter's reads started from, used by Commit as
// prevRoot.
func (w *ReadWriter) Root() smt.Hash { return w.initial.Root() }

// changes returns the net cache (key to value or tombstone), used by
// Commit. The map is unordered; Commit sorts its keys itself.
func (w *ReadWriter) changes() map[string]readOp {
	return w.cache
}
