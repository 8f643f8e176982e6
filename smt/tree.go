package smt

import (
	"bytes"
	"sort"

	"github.com/chainkv/smt/internal/bitpath"
	"github.com/chainkv/smt/statuserr"
)

// Engine is the stateless batched-update and proof engine: it holds only
// the fixed Config, never a root or a store, so one Engine value can drive
// any number of trees sharing the same key length and hash prefixes. This
// mirrors the teacher's SparseMerkleTree in spirit but separates "how to
// fold hashes" (Engine) from "which root" (the caller, or the Tree facade
// in facade.go for single-root convenience).
type Engine struct {
	cfg   Config
	empty Hash
}

// NewEngine validates cfg and returns an Engine bound to it.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.KeyLength <= 0 {
		return nil, statuserr.New(statuserr.InvalidInput, "key length must be positive, got %d", cfg.KeyLength)
	}
	if cfg.LeafPrefix == cfg.BranchPrefix || cfg.LeafPrefix == cfg.EmptyMarker || cfg.BranchPrefix == cfg.EmptyMarker {
		return nil, statuserr.New(statuserr.InvalidInput, "leaf/branch/empty prefixes must be pairwise distinct")
	}
	return &Engine{cfg: cfg, empty: emptyHash(cfg)}, nil
}

// Config returns the engine's fixed configuration.
func (e *Engine) Config() Config { return e.cfg }

// EmptyRoot returns the hash of the empty tree: Update from this root with
// no live pairs, or Update that deletes everything a tree held, returns to
// this value.
func (e *Engine) EmptyRoot() Hash { return e.empty }

// Get walks the tree rooted at root looking for key, returning its value
// hash and true on a hit, or false if no leaf holds key. It never consults
// anything but the tree itself, so it reflects exactly the state at root —
// the same guarantee Prove/Verify give for inclusion/exclusion proofs, just
// without building one.
func (e *Engine) Get(store NodeStore, root Hash, key []byte) (Hash, bool, error) {
	if len(key) != e.cfg.KeyLength {
		return Hash{}, false, statuserr.New(statuserr.InvalidInput, "key length %d does not match configured length %d", len(key), e.cfg.KeyLength)
	}
	depth := 0
	cur := root
	for {
		if cur == e.empty {
			return Hash{}, false, nil
		}
		node, err := e.loadNode(store, cur)
		if err != nil {
			return Hash{}, false, err
		}
		switch n := node.(type) {
		case *leafNode:
			if bytes.Equal(n.Key, key) {
				return n.ValueHash, true, nil
			}
			return Hash{}, false, nil
		case *branchNode:
			if bitpath.Bit(key, depth) == 0 {
				cur = n.Left
			} else {
				cur = n.Right
			}
			depth++
		default:
			return Hash{}, false, statuserr.New(statuserr.Corruption, "unreachable node kind")
		}
	}
}

// target is the internal representation of one key's desired terminal
// state during a batched update: either "this leaf should hold valueHash"
// or "this key should not exist".
type target struct {
	key     []byte
	isDel   bool
	valHash Hash
}

// NodeChange names one node touched by an Update call, alongside its
// encoded body.
type NodeChange struct {
	Hash Hash
	Data []byte
}

// UpdateResult is the full bookkeeping of one Update call: the new root,
// every node newly written (Created), and every previously-stored node
// that no longer has a place in the tree (Superseded). A hash never
// appears in both lists: if a batch happens to recreate an old node's
// exact content (same key and value hash, just relocated), its hash is
// reported only as Created, since deleting it would remove a node the new
// tree still needs.
type UpdateResult struct {
	Root       Hash
	Created    []NodeChange
	Superseded []NodeChange
}

// Update applies a batch of insertions/deletions to the tree rooted at
// root, returning the new root. Duplicate keys within pairs resolve
// last-write-wins; every key must be exactly cfg.KeyLength bytes.
//
// Update deletes every superseded node from store itself, matching the
// teacher's eager-GC MemoryNodeStore usage; callers that need deletion
// deferred to a later garbage-collection pass (store.Store defers to
// Finalize so historical roots stay resolvable) should call UpdateDetailed
// instead and decide for themselves when, or whether, to delete the
// Superseded nodes it reports.
func (e *Engine) Update(store NodeStore, root Hash, pairs []KV) (Hash, error) {
	result, err := e.UpdateDetailed(store, root, pairs)
	if err != nil {
		return Hash{}, err
	}
	for _, n := range result.Superseded {
		if err := store.DeleteNode(n.Hash); err != nil {
			return Hash{}, statuserr.Wrap(statuserr.StorageError, err, "deleting superseded node")
		}
	}
	return result.Root, nil
}

// UpdateDetailed is Update without the eager deletion: it writes every new
// node the batch needs, but leaves superseded nodes in store and reports
// them (alongside every newly created node) so the caller can decide how
// and when to reclaim them.
func (e *Engine) UpdateDetailed(store NodeStore, root Hash, pairs []KV) (UpdateResult, error) {
	if root != e.empty {
		if _, err := e.loadNode(store, root); err != nil {
			return UpdateResult{}, err
		}
	}

	byKey := make(map[string]*target, len(pairs))
	order := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if len(p.Key) != e.cfg.KeyLength {
			return UpdateResult{}, statuserr.New(statuserr.InvalidInput, "key length %d does not match configured length %d", len(p.Key), e.cfg.KeyLength)
		}
		k := string(p.Key)
		if _, ok := byKey[k]; !ok {
			order = append(order, k)
		}
		if len(p.Value) == 0 {
			byKey[k] = &target{key: p.Key, isDel: true}
		} else {
			byKey[k] = &target{key: p.Key, valHash: hashValue(p.Value)}
		}
	}
	targets := make([]*target, 0, len(order))
	for _, k := range order {
		targets = append(targets, byKey[k])
	}

	ctx := &updateCtx{engine: e, store: store, created: make(map[Hash][]byte), superseded: make(map[Hash][]byte)}
	newRoot, err := ctx.apply(root, 0, targets)
	if err != nil {
		return UpdateResult{}, err
	}

	result := UpdateResult{Root: newRoot}
	for _, h := range ctx.createdOrder {
		result.Created = append(result.Created, NodeChange{Hash: h, Data: ctx.created[h]})
	}
	for _, h := range ctx.supersededOrder {
		result.Superseded = append(result.Superseded, NodeChange{Hash: h, Data: ctx.superseded[h]})
	}
	return result, nil
}

// updateCtx threads the bookkeeping for one Update call through the
// recursion, so a node re-created at a new position in the same batch (its
// content, and so its content-address, unchanged) is never both written
// and deleted within that call.
type updateCtx struct {
	engine *Engine
	store  NodeStore

	created         map[Hash][]byte
	createdOrder    []Hash
	superseded      map[Hash][]byte
	supersededOrder []Hash
}

func (c *updateCtx) recordCreated(h Hash, data []byte) error {
	if err := c.store.SetNode(h, data); err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "writing node")
	}
	if _, ok := c.created[h]; !ok {
		c.created[h] = data
		c.createdOrder = append(c.createdOrder, h)
	}
	return nil
}

func (c *updateCtx) recordSuperseded(h Hash) error {
	if _, ok := c.created[h]; ok {
		// Recreated with the same content-address this same batch: still
		// part of the new tree, not actually garbage.
		return nil
	}
	if _, ok := c.superseded[h]; ok {
		return nil
	}
	data, err := c.store.GetNode(h)
	if err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "reading superseded node")
	}
	c.superseded[h] = data
	c.supersededOrder = append(c.supersededOrder, h)
	return nil
}

// apply evaluates the subtree rooted at curHash against targets (all of
// which share the path prefix implied by depth), writes whatever new nodes
// result, records curHash as superseded if it is, and returns the new hash.
func (c *updateCtx) apply(curHash Hash, depth int, targets []*target) (Hash, error) {
	if len(targets) == 0 {
		return curHash, nil
	}
	newHash, err := c.applyNode(curHash, depth, targets)
	if err != nil {
		return Hash{}, err
	}
	if newHash != curHash && curHash != c.engine.empty {
		if err := c.recordSuperseded(curHash); err != nil {
			return Hash{}, err
		}
	}
	return newHash, nil
}

func (c *updateCtx) applyNode(curHash Hash, depth int, targets []*target) (Hash, error) {
	if curHash == c.engine.empty {
		return c.applyToEmpty(depth, targets)
	}
	node, err := c.engine.loadNode(c.store, curHash)
	if err != nil {
		return Hash{}, err
	}
	switch n := node.(type) {
	case *leafNode:
		return c.applyToLeaf(depth, n, targets)
	case *branchNode:
		return c.applyToBranch(depth, n, targets)
	default:
		return Hash{}, statuserr.New(statuserr.Corruption, "unreachable node kind")
	}
}

// applyToEmpty implements update rule 1: zero surviving pairs stays empty,
// exactly one writes a leaf directly (regardless of depth — this is what
// lets a leaf sit above the maximum depth), and two or more split by the
// bit at depth and recurse into both halves, writing a branch.
func (c *updateCtx) applyToEmpty(depth int, targets []*target) (Hash, error) {
	live := targets[:0:0]
	for _, t := range targets {
		if !t.isDel {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return c.engine.empty, nil
	}
	if len(live) == 1 {
		t := live[0]
		n := &leafNode{Key: t.key, ValueHash: t.valHash}
		h := leafHash(c.engine.cfg, n.Key, n.ValueHash)
		if err := c.recordCreated(h, encodeLeaf(n)); err != nil {
			return Hash{}, err
		}
		return h, nil
	}

	leftT, rightT := partition(live, depth)
	leftH, err := c.applyToEmptyOrRecurse(depth, leftT)
	if err != nil {
		return Hash{}, err
	}
	rightH, err := c.applyToEmptyOrRecurse(depth, rightT)
	if err != nil {
		return Hash{}, err
	}
	return c.writeBranch(leftH, rightH)
}

func (c *updateCtx) applyToEmptyOrRecurse(depth int, side []*target) (Hash, error) {
	if len(side) == 0 {
		return c.engine.empty, nil
	}
	return c.applyToEmpty(depth+1, side)
}

// applyToLeaf implements update rules 2 and 3. If one of targets names this
// leaf's own key, that target's outcome (replace, or delete) is folded in;
// whatever remains (the other targets, plus this leaf's own key if it
// survives untouched or updated) is re-partitioned as if the subtree had
// been empty, which is what naturally pushes two colliding keys down to
// their first differing bit and creates the branch chain above it.
func (c *updateCtx) applyToLeaf(depth int, n *leafNode, targets []*target) (Hash, error) {
	var (
		self    *target
		others  = make([]*target, 0, len(targets))
		matched bool
	)
	for _, t := range targets {
		if !matched && bytes.Equal(t.key, n.Key) {
			self = t
			matched = true
			continue
		}
		others = append(others, t)
	}

	combined := others
	if matched {
		if !self.isDel {
			combined = append(combined, &target{key: n.Key, valHash: self.valHash})
		}
	} else {
		combined = append(combined, &target{key: n.Key, valHash: n.ValueHash})
	}
	return c.applyToEmpty(depth, combined)
}

func (c *updateCtx) applyToBranch(depth int, n *branchNode, targets []*target) (Hash, error) {
	leftT, rightT := partition(targets, depth)
	leftH, rightH := n.Left, n.Right
	var err error
	if len(leftT) > 0 {
		leftH, err = c.apply(n.Left, depth+1, leftT)
		if err != nil {
			return Hash{}, err
		}
	}
	if len(rightT) > 0 {
		rightH, err = c.apply(n.Right, depth+1, rightT)
		if err != nil {
			return Hash{}, err
		}
	}
	if leftH == c.engine.empty && rightH == c.engine.empty {
		return c.engine.empty, nil
	}
	return c.writeBranch(leftH, rightH)
}

func (c *updateCtx) writeBranch(left, right Hash) (Hash, error) {
	n := &branchNode{Left: left, Right: right}
	h := branchHash(c.engine.cfg, left, right)
	if err := c.recordCreated(h, encodeBranch(n)); err != nil {
		return Hash{}, err
	}
	return h, nil
}

// partition splits targets by the bit at the given depth, preserving
// relative order within each half (not that order matters for correctness,
// only for deterministic test output).
func partition(targets []*target, depth int) (left, right []*target) {
	for _, t := range targets {
		if bitpath.Bit(t.key, depth) == 0 {
			left = append(left, t)
		} else {
			right = append(right, t)
		}
	}
	return left, right
}

// loadNode resolves hash via store, verifying the content-address
// invariant (the hash must equal the recomputed hash of the decoded node)
// before returning it.
func (e *Engine) loadNode(store NodeStore, h Hash) (interface{}, error) {
	data, err := store.GetNode(h)
	if err != nil {
		if kind, ok := statuserr.KindOf(err); ok && kind == statuserr.NotFound {
			return nil, statuserr.Wrap(statuserr.Corruption, err, "reachable node %x is missing", h)
		}
		return nil, statuserr.Wrap(statuserr.StorageError, err, "reading node %x", h)
	}
	if len(data) == 0 {
		return nil, statuserr.New(statuserr.Corruption, "reachable node %x is missing", h)
	}
	node, err := decodeNode(data, e.cfg.KeyLength)
	if err != nil {
		return nil, err
	}
	var recomputed Hash
	switch n := node.(type) {
	case *leafNode:
		recomputed = leafHash(e.cfg, n.Key, n.ValueHash)
	case *branchNode:
		recomputed = branchHash(e.cfg, n.Left, n.Right)
	}
	if recomputed != h {
		return nil, statuserr.New(statuserr.Corruption, "node %x does not match its content address (got %x)", h, recomputed)
	}
	return node, nil
}

// sortedKeys returns a copy of pairs sorted by key, for a deterministic
// iteration order over a batch. Nothing in this module calls it.
func sortedKeys(pairs []KV) []KV {
	out := append([]KV(nil), pairs...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}
