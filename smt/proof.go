package smt

import (
	"bytes"
	"math/bits"

	"github.com/chainkv/smt/internal/bitpath"
	"github.com/chainkv/smt/statuserr"
)

// ProofQuery is the per-key component of a Proof: everything needed to
// reconstruct, and fold up to the root, the subtree that answers one
// query key.
type ProofQuery struct {
	Key []byte

	// Exists is true for an inclusion query; Value then holds the leaf's
	// value hash (not the raw value — the engine never retains that).
	Exists bool
	Value  Hash

	// CollidingKey/CollidingValue are set only for an exclusion proof that
	// terminates at a different key's leaf (rather than at an empty
	// subtree): the real tree has no branch at the depth where Key and
	// CollidingKey diverge, because that leaf was placed before Key was
	// ever inserted, so the proof must reveal the colliding leaf's own
	// key/value hash for the verifier to recompute its hash and confirm it
	// differs from Key.
	CollidingKey   []byte
	CollidingValue Hash

	// Bitmap has one bit per branch level actually traversed (Depth of
	// them, big-endian, MSB first): bit i is 1 if the sibling at level i
	// was non-empty and therefore occupies the next entry of this query's
	// slice of Proof.Siblings.
	Bitmap []byte
	Depth  int
}

// Proof is a multi-query inclusion/exclusion proof against one root.
// Siblings is the flat concatenation, in query order, of every non-empty
// sibling hash each query needs, each query's run ordered from the root
// downward; entries are not deduplicated across queries. Each ProofQuery's
// Bitmap determines how many of those entries, starting at a running
// offset, belong to it.
type Proof struct {
	Siblings []Hash
	Queries  []ProofQuery
}

// Prove builds a multi-query proof for keys against root. Keys must be
// distinct and each exactly cfg.KeyLength bytes.
func (e *Engine) Prove(store NodeStore, root Hash, keys [][]byte) (*Proof, error) {
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if len(k) != e.cfg.KeyLength {
			return nil, statuserr.New(statuserr.InvalidInput, "key length %d does not match configured length %d", len(k), e.cfg.KeyLength)
		}
		if seen[string(k)] {
			return nil, statuserr.New(statuserr.InvalidInput, "duplicate query key %x", k)
		}
		seen[string(k)] = true
	}

	proof := &Proof{Queries: make([]ProofQuery, len(keys))}
	for i, key := range keys {
		q, localSiblings, err := e.proveOne(store, root, key)
		if err != nil {
			return nil, err
		}
		q.Key = key
		proof.Queries[i] = q
		proof.Siblings = append(proof.Siblings, localSiblings...)
	}
	return proof, nil
}

func (e *Engine) proveOne(store NodeStore, root Hash, key []byte) (ProofQuery, []Hash, error) {
	var siblings []Hash
	var bitmap []byte
	depth := 0
	cur := root

	for {
		if cur == e.empty {
			return ProofQuery{Bitmap: packBits(bitmap), Depth: depth}, siblings, nil
		}
		node, err := e.loadNode(store, cur)
		if err != nil {
			return ProofQuery{}, nil, err
		}
		switch n := node.(type) {
		case *leafNode:
			if bytes.Equal(n.Key, key) {
				return ProofQuery{Exists: true, Value: n.ValueHash, Bitmap: packBits(bitmap), Depth: depth}, siblings, nil
			}
			return ProofQuery{
				CollidingKey:   n.Key,
				CollidingValue: n.ValueHash,
				Bitmap:         packBits(bitmap),
				Depth:          depth,
			}, siblings, nil
		case *branchNode:
			dirBit := bitpath.Bit(key, depth)
			var sib Hash
			var mine Hash
			if dirBit == 0 {
				mine, sib = n.Left, n.Right
			} else {
				mine, sib = n.Right, n.Left
			}
			if sib != e.empty {
				siblings = append(siblings, sib)
				bitmap = append(bitmap, 1)
			} else {
				bitmap = append(bitmap, 0)
			}
			cur = mine
			depth++
		default:
			return ProofQuery{}, nil, statuserr.New(statuserr.Corruption, "unreachable node kind")
		}
	}
}

// Verify checks proof against root for exactly the given keys, in order.
func (e *Engine) Verify(root Hash, keys [][]byte, proof *Proof) bool {
	if proof == nil || len(keys) != len(proof.Queries) {
		return false
	}
	cursor := 0
	for i, key := range keys {
		q := proof.Queries[i]
		if !bytes.Equal(q.Key, key) {
			return false
		}
		if q.Depth > e.cfg.Depth() || len(q.Bitmap) != byteLen(q.Depth) {
			return false
		}

		var current Hash
		switch {
		case q.Exists:
			current = leafHash(e.cfg, q.Key, q.Value)
		case len(q.CollidingKey) > 0:
			if bytes.Equal(q.CollidingKey, q.Key) {
				return false
			}
			current = leafHash(e.cfg, q.CollidingKey, q.CollidingValue)
		default:
			current = e.empty
		}

		need := popcount(q.Bitmap)
		if cursor+need > len(proof.Siblings) {
			return false
		}
		mine := proof.Siblings[cursor : cursor+need]
		cursor += need

		idx := need - 1
		for d := q.Depth - 1; d >= 0; d-- {
			var sib Hash
			if bitAt(q.Bitmap, d) == 1 {
				sib = mine[idx]
				idx--
			} else {
				sib = e.empty
			}
			if bitpath.Bit(key, d) == 0 {
				current = branchHash(e.cfg, current, sib)
			} else {
				current = branchHash(e.cfg, sib, current)
			}
		}
		if current != root {
			return false
		}
	}
	return cursor == len(proof.Siblings)
}

func byteLen(nbits int) int {
	return (nbits + 7) / 8
}

func packBits(bitsSlice []byte) []byte {
	out := make([]byte, byteLen(len(bitsSlice)))
	for i, b := range bitsSlice {
		if b != 0 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func bitAt(packed []byte, i int) byte {
	return (packed[i/8] >> uint(7-i%8)) & 1
}

func popcount(packed []byte) int {
	n := 0
	for _, b := range packed {
		n += bits.OnesCount8(b)
	}
	return n
}
