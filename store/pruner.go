package store

import (
	"github.com/chainkv/smt/kv"
	"github.com/chainkv/smt/smt"
	"github.com/chainkv/smt/statuserr"
)

// Finalize deletes diff records for every height strictly below keepHeight,
// then reclaims every node unreachable from the retained root set: the
// roots recorded at height >= keepHeight, plus any root pinned via
// PinRoot. This is a mark-and-sweep pass rather than incremental
// refcounting, grounded on the eth2030 pack's trie/state_pruner.go
// StatePruner (which keeps the same two retention concepts — a recent
// window and an explicit "alive" pin set — though that type sweeps roots,
// not individual nodes).
func (s *Store) Finalize(keepHeight uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasRoot && keepHeight > s.height {
		return statuserr.New(statuserr.InvalidInput, "finalize height %d is above current height %d", keepHeight, s.height)
	}

	batch := s.db.NewBatch()
	if err := s.deleteDiffsBelow(keepHeight, batch); err != nil {
		return err
	}

	retained, err := s.retainedRoots(keepHeight)
	if err != nil {
		return err
	}

	reachable := make(map[smt.Hash]bool)
	for _, root := range retained {
		if err := s.markReachable(root, reachable); err != nil {
			return err
		}
	}

	if err := s.sweepUnreachable(reachable, batch); err != nil {
		return err
	}

	if err := batch.Write(); err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "writing finalize batch")
	}
	s.logger.Info("finalize", F("keepHeight", keepHeight), F("retainedRoots", len(retained)))
	return nil
}

func (s *Store) deleteDiffsBelow(keepHeight uint64, batch kv.Batch) error {
	it := s.db.NewIterator(kv.IterateOptions{Gte: []byte{prefixDiff}, Lte: []byte{prefixDiff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}})
	defer it.Release()
	for it.Next() {
		height := beUint64(it.Key()[1:])
		if height < keepHeight {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	return it.Error()
}

func (s *Store) retainedRoots(keepHeight uint64) ([]smt.Hash, error) {
	roots := make(map[smt.Hash]bool)
	it := s.db.NewIterator(kv.IterateOptions{Gte: []byte{prefixRoot}, Lte: []byte{prefixRoot, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}})
	defer it.Release()
	for it.Next() {
		height := beUint64(it.Key()[1:])
		if height >= keepHeight {
			var h smt.Hash
			copy(h[:], it.Value())
			roots[h] = true
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	for root := range s.pinned {
		roots[root] = true
	}
	out := make([]smt.Hash, 0, len(roots))
	for r := range roots {
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) markReachable(root smt.Hash, seen map[smt.Hash]bool) error {
	if root == s.engine.EmptyRoot() || seen[root] {
		return nil
	}
	seen[root] = true
	data, err := s.db.Get(nodeKey(root))
	if err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "reading node %x during mark phase", root)
	}
	node, err := decodeNodeForPruner(data, s.cfg.KeyLength)
	if err != nil {
		return err
	}
	if branch, ok := node.(*branchPruneView); ok {
		if err := s.markReachable(branch.left, seen); err != nil {
			return err
		}
		if err := s.markReachable(branch.right, seen); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) sweepUnreachable(reachable map[smt.Hash]bool, batch kv.Batch) error {
	it := s.db.NewIterator(kv.IterateOptions{Gte: []byte{prefixNode}, Lte: maxNodeKey()})
	defer it.Release()
	for it.Next() {
		key := it.Key()
		var h smt.Hash
		copy(h[:], key[1:])
		if !reachable[h] {
			s.logger.Debug("pruning node", F("hash", h))
			batch.Delete(append([]byte(nil), key...))
		}
	}
	return it.Error()
}

func maxNodeKey() []byte {
	k := make([]byte, 33)
	k[0] = prefixNode
	for i := 1; i < 33; i++ {
		k[i] = 0xff
	}
	return k
}

// branchPruneView is the minimal shape the pruner needs from a decoded
// branch node, kept package-local so the pruner does not need smt's
// unexported node types.
type branchPruneView struct {
	left, right smt.Hash
}

func decodeNodeForPruner(data []byte, keyLen int) (interface{}, error) {
	if len(data) == 0 {
		return nil, statuserr.New(statuserr.Corruption, "empty node encoding")
	}
	const (
		tagLeaf   = 1
		tagBranch = 2
	)
	switch data[0] {
	case tagLeaf:
		return nil, nil
	case tagBranch:
		if len(data) != 1+64 {
			return nil, statuserr.New(statuserr.Corruption, "branch node has wrong length")
		}
		view := &branchPruneView{}
		copy(view.left[:], data[1:33])
		copy(view.right[:], data[33:65])
		return view, nil
	default:
		return nil, statuserr.New(statuserr.Corruption, "unknown node tag %d", data[0])
	}
}
