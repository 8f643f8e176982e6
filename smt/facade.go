package smt

import "sync"

// Tree is a convenience wrapper pairing an Engine with one NodeStore and
// one current root, in the shape of the teacher's SparseMerkleTree: a
// single mutex-guarded handle callers can Update/Prove/Verify against without
// threading the root through every call themselves. The store package
// builds its own versioned root management on top of the stateless Engine
// instead of this type; Tree exists for standalone library use (spec
// §6.3's "a standalone SMT engine usable without the versioned store").
type Tree struct {
	mu     sync.RWMutex
	engine *Engine
	store  NodeStore
	root   Hash
}

// NewTree returns a Tree backed by store, rooted initially at the empty
// tree.
func NewTree(cfg Config, store NodeStore) (*Tree, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &Tree{engine: e, store: store, root: e.EmptyRoot()}, nil
}

// Root returns the tree's current root hash.
func (t *Tree) Root() Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// Update applies pairs and advances the tree's root accordingly.
func (t *Tree) Update(pairs []KV) (Hash, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	newRoot, err := t.engine.Update(t.store, t.root, pairs)
	if err != nil {
		return t.root, err
	}
	t.root = newRoot
	return t.root, nil
}

// Prove builds a proof for keys against the tree's current root.
func (t *Tree) Prove(keys [][]byte) (*Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.engine.Prove(t.store, t.root, keys)
}

// Verify checks proof against the tree's current root.
func (t *Tree) Verify(keys [][]byte, proof *Proof) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.engine.Verify(t.root, keys, proof)
}

// VerifyAt checks proof against an arbitrary (e.g. historical) root rather
// than the tree's current one.
func (t *Tree) VerifyAt(root Hash, keys [][]byte, proof *Proof) bool {
	return t.engine.Verify(root, keys, proof)
}
