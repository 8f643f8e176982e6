package store

import "encoding/binary"

// Keyspace prefixes carving the node/value/diff/root/config namespaces out
// of one kv.Database handle, grounded on the eth2030 pack's
// core/rawdb/key_value_store.go PrefixedStore rather than hand-concatenating
// a prefix byte at every call site.
const (
	prefixNode      byte = 0x00
	prefixValue     byte = 0x01
	prefixDiff      byte = 0x02
	prefixRoot      byte = 0x03
	prefixConfig    byte = 0x04
	prefixValueBlob byte = 0x05
)

func nodeKey(hash [32]byte) []byte {
	k := make([]byte, 1+32)
	k[0] = prefixNode
	copy(k[1:], hash[:])
	return k
}

func valueKey(key []byte) []byte {
	k := make([]byte, 1+len(key))
	k[0] = prefixValue
	copy(k[1:], key)
	return k
}

func valuePrefix() []byte {
	return []byte{prefixValue}
}

// valueBlobKey addresses a raw leaf value by its content hash (the same
// digest smt.HashValue/the leaf's ValueHash uses), independent of which key
// or how many keys currently point to it. Point lookups resolve a key to
// its value hash by walking the SMT (see StateReader.Get), then fetch the
// raw bytes here — so a reader pinned to an old root sees the value that
// hash actually denotes, not whatever the side-index currently holds for
// that key.
func valueBlobKey(valueHash [32]byte) []byte {
	k := make([]byte, 1+32)
	k[0] = prefixValueBlob
	copy(k[1:], valueHash[:])
	return k
}

func diffKey(height uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = prefixDiff
	binary.BigEndian.PutUint64(k[1:], height)
	return k
}

func rootKey(height uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = prefixRoot
	binary.BigEndian.PutUint64(k[1:], height)
	return k
}

func configKey() []byte {
	return []byte{prefixConfig}
}

// stripValuePrefix returns the user key for a prefixValue-namespaced
// kv.Database key, used when translating iterator results back to caller
// keys.
func stripValuePrefix(k []byte) []byte {
	return k[1:]
}
