package store

import (
	"github.com/chainkv/smt/kv"
	"github.com/chainkv/smt/smt"
)

// nodeStoreAdapter implements smt.NodeStore over a prefixed slice of a
// kv.Database: reads go straight through to reader (content-addressed nodes
// already committed are immutable, so reading the pre-commit view is always
// correct — a batched Update never reads back a node it just wrote), and
// writes buffer into batch so the whole commit lands atomically alongside
// the side-index and bookkeeping writes. Commit drives the engine through
// UpdateDetailed rather than Update, so DeleteNode is never actually
// invoked here — node reclamation happens only in Store.Finalize's
// mark-and-sweep — but the method still exists to satisfy smt.NodeStore
// for any other caller that does want eager deletion through this adapter.
// A batch-less adapter (batch == nil) is valid for read-only use (Get,
// Has, Prove); SetNode/DeleteNode must not be called through it.
type nodeStoreAdapter struct {
	reader kv.Reader
	batch  kv.Batch
}

func (a *nodeStoreAdapter) GetNode(hash smt.Hash) ([]byte, error) {
	return a.reader.Get(nodeKey(hash))
}

func (a *nodeStoreAdapter) SetNode(hash smt.Hash, data []byte) error {
	a.batch.Put(nodeKey(hash), data)
	return nil
}

func (a *nodeStoreAdapter) DeleteNode(hash smt.Hash) error {
	a.batch.Delete(nodeKey(hash))
	return nil
}
