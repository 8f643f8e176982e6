package smt

import "github.com/ethereum/go-ethereum/crypto"

// hash is the single hash primitive the whole engine builds on: Keccak256,
// the same choice the teacher's hash.go makes. All domain separation comes
// from the one-byte prefixes in Config, concatenated onto the preimage
// before hashing.
func hash(parts ...[]byte) Hash {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return Hash(crypto.Keccak256Hash(buf))
}

func emptyHash(cfg Config) Hash {
	return hash([]byte{cfg.EmptyMarker})
}

func leafHash(cfg Config, key []byte, valueHash Hash) Hash {
	return hash([]byte{cfg.LeafPrefix}, key, valueHash[:])
}

func branchHash(cfg Config, left, right Hash) Hash {
	return hash([]byte{cfg.BranchPrefix}, left[:], right[:])
}

// hashValue hashes a raw leaf value down to the 32-byte digest the tree
// actually stores. The tree never retains the raw value once this runs.
func hashValue(value []byte) Hash {
	return Hash(crypto.Keccak256Hash(value))
}

// HashValue is the exported form of hashValue, for callers outside this
// package (store's content-addressed value blobs) that need to derive the
// same digest a leaf was written under without re-running Update.
func HashValue(value []byte) Hash {
	return hashValue(value)
}
