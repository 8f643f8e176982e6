package smt

import (
	"github.com/chainkv/smt/statuserr"
)

// Node tags, written as the first byte of every encoded node so a reader
// never has to guess which variant follows. The empty subtree is never
// encoded or stored; it is represented purely by emptyHash(cfg) and
// short-circuited before any node-store lookup.
const (
	tagLeaf   byte = 1
	tagBranch byte = 2
)

type leafNode struct {
	Key       []byte
	ValueHash Hash
}

type branchNode struct {
	Left  Hash
	Right Hash
}

func encodeLeaf(n *leafNode) []byte {
	buf := make([]byte, 0, 1+len(n.Key)+32)
	buf = append(buf, tagLeaf)
	buf = append(buf, n.Key...)
	buf = append(buf, n.ValueHash[:]...)
	return buf
}

func encodeBranch(n *branchNode) []byte {
	buf := make([]byte, 0, 1+64)
	buf = append(buf, tagBranch)
	buf = append(buf, n.Left[:]...)
	buf = append(buf, n.Right[:]...)
	return buf
}

// decodeNode parses a stored node. keyLen is needed because a leaf's key
// occupies a variable span ahead of its fixed 32-byte value hash.
func decodeNode(data []byte, keyLen int) (interface{}, error) {
	if len(data) == 0 {
		return nil, statuserr.New(statuserr.Corruption, "empty node encoding")
	}
	switch data[0] {
	case tagLeaf:
		want := 1 + keyLen + 32
		if len(data) != want {
			return nil, statuserr.New(statuserr.Corruption, "leaf node has wrong length: got %d want %d", len(data), want)
		}
		n := &leafNode{Key: append([]byte(nil), data[1:1+keyLen]...)}
		copy(n.ValueHash[:], data[1+keyLen:])
		return n, nil
	case tagBranch:
		want := 1 + 64
		if len(data) != want {
			return nil, statuserr.New(statuserr.Corruption, "branch node has wrong length: got %d want %d", len(data), want)
		}
		n := &branchNode{}
		copy(n.Left[:], data[1:33])
		copy(n.Right[:], data[33:65])
		return n, nil
	default:
		return nil, statuserr.New(statuserr.Corruption, "unknown node tag %d", data[0])
	}
}

// NodeStore is the content-addressed node storage contract the engine
// drives: keys are Hash values, never derived from anything but the node's
// own encoding, so Set is idempotent and Get on a hash that was never Set
// (or was deleted after being Set) is the only error case.
type NodeStore interface {
	GetNode(hash Hash) ([]byte, error)
	SetNode(hash Hash, data []byte) error
	DeleteNode(hash Hash) error
}
