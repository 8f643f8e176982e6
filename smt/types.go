package smt

// Hash is a content-address: the Keccak256 digest of an encoded node, or of
// a leaf's raw value. The zero Hash is never produced by the hash functions
// in hash.go and is reused internally as an "unset" sentinel distinct from
// the empty-subtree hash (Engine.EmptyRoot), which is a real, non-zero
// value computed from Config.EmptyMarker.
type Hash [32]byte

// IsZero reports whether h is the unset sentinel (not to be confused with
// the empty-subtree hash, which this type cannot represent as the zero
// value — see emptyHash in hash.go).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// KV is one key/value pair in an Update batch. A nil or zero-length Value
// requests deletion of Key; any other Value requests insert-or-replace.
type KV struct {
	Key   []byte
	Value []byte
}

// Config pins the parameters that must stay fixed across the lifetime of a
// tree: the key length in bytes and the three hash domain-separation
// prefixes for leaf nodes, branch nodes, and the empty subtree marker.
// These travel together because changing any of them changes every hash in
// the tree.
type Config struct {
	// KeyLength is K, the fixed key length in bytes. Every key passed to
	// Update or Prove must have exactly this length.
	KeyLength int

	// LeafPrefix, BranchPrefix, and EmptyMarker are single domain-separation
	// bytes prepended to the hash preimage of, respectively, a leaf node, a
	// branch node, and the empty-subtree marker. They must be pairwise
	// distinct so a leaf's digest can never collide with a branch's or the
	// empty marker's.
	LeafPrefix   byte
	BranchPrefix byte
	EmptyMarker  byte
}

// DefaultConfig returns the Config used when a caller does not pin one
// explicitly: 32-byte keys (256-bit paths, matching the teacher's default
// tree depth) and prefixes 0x01/0x02/0x00 for leaf/branch/empty.
func DefaultConfig() Config {
	return Config{
		KeyLength:    32,
		LeafPrefix:   0x01,
		BranchPrefix: 0x02,
		EmptyMarker:  0x00,
	}
}

// Depth returns the number of bit-levels in the tree, 8*KeyLength.
func (c Config) Depth() int {
	return c.KeyLength * 8
}
