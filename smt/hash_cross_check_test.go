package smt

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/sha3"
)

// TestKeccak256AgreesWithXCrypto cross-checks go-ethereum's Keccak256
// against golang.org/x/crypto/sha3's implementation, the same sanity check
// the teacher's tests/cross_platform_compatibility_test.go runs, so a
// future swap of the hashing dependency would be caught immediately.
func TestKeccak256AgreesWithXCrypto(t *testing.T) {
	inputs := [][]byte{
		{},
		[]byte("a"),
		[]byte("sparse merkle tree"),
		bytes.Repeat([]byte{0xAB}, 64),
	}
	for _, in := range inputs {
		h := sha3.NewLegacyKeccak256()
		h.Write(in)
		want := h.Sum(nil)

		got := hash(in)
		if !bytes.Equal(got[:], want) {
			t.Fatalf("Keccak256 mismatch for input %x: got %x want %x", in, got, want)
		}
	}
}

func TestProofSerializationRoundTrip(t *testing.T) {
	e, store := newTestEngine(t)
	root, err := e.Update(store, e.EmptyRoot(), []KV{
		{Key: key32(1), Value: []byte("a")},
		{Key: key32(2), Value: []byte("b")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	keys := [][]byte{key32(1), key32(3)}
	proof, err := e.Prove(store, root, keys)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}

	data, err := SerializeProof(proof)
	if err != nil {
		t.Fatalf("SerializeProof: %v", err)
	}
	roundTripped, err := DeserializeProof(data)
	if err != nil {
		t.Fatalf("DeserializeProof: %v", err)
	}
	if !e.Verify(root, keys, roundTripped) {
		t.Fatalf("round-tripped proof failed to verify")
	}
}
