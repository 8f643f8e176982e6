package store

import (
	"sort"

	"github.com/chainkv/smt/smt"
	"github.com/chainkv/smt/statuserr"
)

// Commit folds everything staged in rw into a new root at height,
// persisting it atomically alongside the side-index writes and a
// DiffRecord that Revert can later replay. prevRoot must equal the
// store's current root and the root rw was built against, or Commit fails
// with InvalidState.
func (s *Store) Commit(rw *ReadWriter, height uint64, prevRoot smt.Hash) (smt.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.root != prevRoot {
		return smt.Hash{}, statuserr.New(statuserr.InvalidState, "commit prevRoot %x does not match store root %x", prevRoot, s.root)
	}
	if rw.Root() != prevRoot {
		return smt.Hash{}, statuserr.New(statuserr.InvalidState, "read-writer was built against a different root than prevRoot")
	}
	if s.hasRoot && height != s.height+1 {
		return smt.Hash{}, statuserr.New(statuserr.InvalidInput, "commit height %d does not follow current height %d", height, s.height)
	}
	if !s.hasRoot && height != 0 {
		return smt.Hash{}, statuserr.New(statuserr.InvalidInput, "first commit must be at height 0, got %d", height)
	}

	changes := rw.changes()
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	batch := s.db.NewBatch()
	adapter := &nodeStoreAdapter{reader: s.db, batch: batch}

	pairs := make([]smt.KV, 0, len(keys))
	entries := make([]DiffEntry, 0, len(keys))
	for _, k := range keys {
		key := []byte(k)
		op := changes[k]
		oldValue, err := s.db.Get(valueKey(key))
		if err != nil {
			if kind, ok := statuserr.KindOf(err); !ok || kind != statuserr.NotFound {
				return smt.Hash{}, err
			}
			oldValue = nil
		}
		if op.delete {
			pairs = append(pairs, smt.KV{Key: key, Value: nil})
			entries = append(entries, DiffEntry{Key: key, OldValue: oldValue, NewValue: nil})
			batch.Delete(valueKey(key))
		} else {
			pairs = append(pairs, smt.KV{Key: key, Value: op.value})
			entries = append(entries, DiffEntry{Key: key, OldValue: oldValue, NewValue: op.value})
			batch.Put(valueKey(key), op.value)
			// Content-addressed by value hash, independent of the
			// side-index: a reader pinned to an older root can still
			// resolve a leaf's value hash to these bytes after a later
			// commit overwrites this key in the side-index.
			batch.Put(valueBlobKey(smt.HashValue(op.value)), op.value)
		}
	}

	// UpdateDetailed, not Update: node deletion is deferred to Finalize's
	// mark-and-sweep (spec §3), not performed here, so historical roots
	// stay resolvable until a Finalize call says otherwise. The node
	// create/delete sets are recorded in the diff record instead, so
	// Revert can undo exactly this commit's effect on the tree.
	result, err := s.engine.UpdateDetailed(adapter, prevRoot, pairs)
	if err != nil {
		return smt.Hash{}, err
	}
	newRoot := result.Root

	createdNodes := make([]smt.Hash, len(result.Created))
	for i, c := range result.Created {
		createdNodes[i] = c.Hash
	}
	deletedNodes := make([]NodeBlob, len(result.Superseded))
	for i, sup := range result.Superseded {
		deletedNodes[i] = NodeBlob{Hash: sup.Hash, Data: sup.Data}
	}

	record := &DiffRecord{
		Height:       height,
		PrevRoot:     prevRoot,
		NewRoot:      newRoot,
		Entries:      entries,
		CreatedNodes: createdNodes,
		DeletedNodes: deletedNodes,
	}
	batch.Put(diffKey(height), encodeDiffRecord(record))
	batch.Put(rootKey(height), newRoot[:])

	if err := batch.Write(); err != nil {
		return smt.Hash{}, statuserr.Wrap(statuserr.StorageError, err, "writing commit batch")
	}

	s.height = height
	s.hasRoot = true
	s.root = newRoot
	s.logger.Info("commit", F("height", height), F("root", newRoot))
	return newRoot, nil
}

// Revert undoes the commit at height, which must be the store's current
// height, restoring the side-index entries it changed and moving the root
// back to that commit's prevRoot. It also undoes the commit's effect on the
// node store: every node hash the commit recorded as created is deleted,
// and every node it superseded is written back from the diff record.
func (s *Store) Revert(height uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasRoot || height != s.height {
		return statuserr.New(statuserr.InvalidState, "revert height %d is not the current height", height)
	}
	data, err := s.db.Get(diffKey(height))
	if err != nil {
		if kind, ok := statuserr.KindOf(err); ok && kind == statuserr.NotFound {
			return statuserr.New(statuserr.InvalidState, "no diff record for height %d", height)
		}
		return err
	}
	record, err := decodeDiffRecord(data)
	if err != nil {
		return err
	}
	if record.NewRoot != s.root {
		return statuserr.New(statuserr.Corruption, "diff record root %x does not match store root %x", record.NewRoot, s.root)
	}

	batch := s.db.NewBatch()
	for _, e := range record.Entries {
		if e.OldValue == nil {
			batch.Delete(valueKey(e.Key))
		} else {
			batch.Put(valueKey(e.Key), e.OldValue)
		}
	}
	// Undo the commit's effect on the tree itself: the nodes it created
	// have no place in prevRoot's tree, and the nodes it superseded need
	// to exist again for prevRoot to resolve.
	for _, h := range record.CreatedNodes {
		batch.Delete(nodeKey(h))
	}
	for _, n := range record.DeletedNodes {
		batch.Put(nodeKey(n.Hash), n.Data)
	}
	batch.Delete(diffKey(height))
	batch.Delete(rootKey(height))
	if err := batch.Write(); err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "writing revert batch")
	}

	s.root = record.PrevRoot
	if height == 0 {
		s.hasRoot = false
		s.height = 0
	} else {
		s.height = height - 1
	}
	s.logger.Info("revert", F("height", height), F("root", s.root))
	return nil
}
