package smt

import (
	"bytes"
	"testing"
)

func key32(b byte) []byte {
	k := make([]byte, 32)
	k[31] = b
	return k
}

func newTestEngine(t *testing.T) (*Engine, *MemoryNodeStore) {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, NewMemoryNodeStore()
}

func TestUpdateSingleKeyRoundTrip(t *testing.T) {
	e, store := newTestEngine(t)
	root, err := e.Update(store, e.EmptyRoot(), []KV{{Key: key32(1), Value: []byte("hello")}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if root == e.EmptyRoot() {
		t.Fatalf("root did not change after insert")
	}

	proof, err := e.Prove(store, root, [][]byte{key32(1)})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !proof.Queries[0].Exists {
		t.Fatalf("expected inclusion proof")
	}
	if !e.Verify(root, [][]byte{key32(1)}, proof) {
		t.Fatalf("Verify rejected a valid inclusion proof")
	}
}

func TestUpdateBatchThenDelete(t *testing.T) {
	e, store := newTestEngine(t)
	pairs := []KV{
		{Key: key32(1), Value: []byte("a")},
		{Key: key32(2), Value: []byte("b")},
		{Key: key32(3), Value: []byte("c")},
	}
	root, err := e.Update(store, e.EmptyRoot(), pairs)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	root2, err := e.Update(store, root, []KV{{Key: key32(2), Value: nil}})
	if err != nil {
		t.Fatalf("Update delete: %v", err)
	}

	proof, err := e.Prove(store, root2, [][]byte{key32(2)})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if proof.Queries[0].Exists {
		t.Fatalf("deleted key still reports as existing")
	}
	if !e.Verify(root2, [][]byte{key32(2)}, proof) {
		t.Fatalf("Verify rejected a valid exclusion proof")
	}

	root3, err := e.Update(store, root2, []KV{
		{Key: key32(1), Value: nil},
		{Key: key32(3), Value: nil},
	})
	if err != nil {
		t.Fatalf("Update delete rest: %v", err)
	}
	if root3 != e.EmptyRoot() {
		t.Fatalf("deleting all keys did not return to the empty root")
	}
	if store.Len() != 0 {
		t.Fatalf("expected no nodes left after deleting everything, got %d", store.Len())
	}
}

func TestUpdateDuplicateKeyLastWriteWins(t *testing.T) {
	e, store := newTestEngine(t)
	root, err := e.Update(store, e.EmptyRoot(), []KV{
		{Key: key32(5), Value: []byte("first")},
		{Key: key32(5), Value: []byte("second")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	proof, err := e.Prove(store, root, [][]byte{key32(5)})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if proof.Queries[0].Value != hashValue([]byte("second")) {
		t.Fatalf("duplicate key did not resolve last-write-wins")
	}
}

func TestUpdateRejectsWrongKeyLength(t *testing.T) {
	e, store := newTestEngine(t)
	_, err := e.Update(store, e.EmptyRoot(), []KV{{Key: []byte("short"), Value: []byte("v")}})
	if err == nil {
		t.Fatalf("expected an error for a short key")
	}
}

func TestExclusionOnEmptyTree(t *testing.T) {
	e, store := newTestEngine(t)
	proof, err := e.Prove(store, e.EmptyRoot(), [][]byte{key32(9)})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if proof.Queries[0].Exists || proof.Queries[0].Depth != 0 {
		t.Fatalf("expected an immediate empty-tree exclusion, got %+v", proof.Queries[0])
	}
	if !e.Verify(e.EmptyRoot(), [][]byte{key32(9)}, proof) {
		t.Fatalf("Verify rejected an empty-tree exclusion proof")
	}
}

func TestExclusionViaCollidingLeaf(t *testing.T) {
	e, store := newTestEngine(t)
	root, err := e.Update(store, e.EmptyRoot(), []KV{{Key: key32(1), Value: []byte("only")}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	other := key32(2)
	proof, err := e.Prove(store, root, [][]byte{other})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	q := proof.Queries[0]
	if q.Exists {
		t.Fatalf("unrelated key should not be reported as included")
	}
	if len(q.CollidingKey) == 0 || !bytes.Equal(q.CollidingKey, key32(1)) {
		t.Fatalf("expected a colliding-leaf witness naming key32(1), got %+v", q)
	}
	if !e.Verify(root, [][]byte{other}, proof) {
		t.Fatalf("Verify rejected a valid colliding-leaf exclusion proof")
	}
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	e, store := newTestEngine(t)
	root, err := e.Update(store, e.EmptyRoot(), []KV{
		{Key: key32(1), Value: []byte("a")},
		{Key: key32(200), Value: []byte("b")},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	proof, err := e.Prove(store, root, [][]byte{key32(1)})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	proof.Queries[0].Value[0] ^= 0xff
	if e.Verify(root, [][]byte{key32(1)}, proof) {
		t.Fatalf("Verify accepted a tampered value hash")
	}
}

func TestMultiQueryProof(t *testing.T) {
	e, store := newTestEngine(t)
	var pairs []KV
	for i := byte(1); i <= 8; i++ {
		pairs = append(pairs, KV{Key: key32(i), Value: []byte{i}})
	}
	root, err := e.Update(store, e.EmptyRoot(), pairs)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	keys := [][]byte{key32(1), key32(4), key32(9)}
	proof, err := e.Prove(store, root, keys)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if !e.Verify(root, keys, proof) {
		t.Fatalf("Verify rejected a valid multi-query proof")
	}
	if proof.Queries[2].Exists {
		t.Fatalf("key32(9) was never inserted and should be excluded")
	}
}
