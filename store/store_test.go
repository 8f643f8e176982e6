package store

import (
	"testing"

	"github.com/chainkv/smt/kv"
	"github.com/chainkv/smt/smt"
)

func key(b byte) []byte {
	k := make([]byte, 32)
	k[31] = b
	return k
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := kv.NewMemoryDatabase()
	s, err := NewStore(db, Options{Config: smt.DefaultConfig()})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestCommitThenRead(t *testing.T) {
	s := newTestStore(t)
	rw := s.NewReadWriter()
	rw.Put(key(1), []byte("a"))
	rw.Put(key(2), []byte("b"))

	root, err := s.Commit(rw, 0, s.Root())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if root == (smt.Hash{}) {
		t.Fatalf("unexpected zero root")
	}

	reader := s.Reader()
	v, err := reader.Get(key(1))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "a" {
		t.Fatalf("got %q want %q", v, "a")
	}
}

func TestCommitRejectsRootMismatch(t *testing.T) {
	s := newTestStore(t)
	rw := s.NewReadWriter()
	rw.Put(key(1), []byte("a"))
	var wrongRoot smt.Hash
	wrongRoot[0] = 0xAB
	if _, err := s.Commit(rw, 0, wrongRoot); err == nil {
		t.Fatalf("expected a prevRoot mismatch error")
	}
}

func TestRevertUndoesCommit(t *testing.T) {
	s := newTestStore(t)
	rw := s.NewReadWriter()
	rw.Put(key(1), []byte("a"))
	prevRoot := s.Root()
	if _, err := s.Commit(rw, 0, prevRoot); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rw2 := s.NewReadWriter()
	rw2.Put(key(1), []byte("b"))
	rw2.Put(key(2), []byte("c"))
	if _, err := s.Commit(rw2, 1, s.Root()); err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	if err := s.Revert(1); err != nil {
		t.Fatalf("Revert: %v", err)
	}
	if s.Root() != prevRoot {
		t.Fatalf("root after revert = %x, want %x", s.Root(), prevRoot)
	}
	v, err := s.Reader().Get(key(1))
	if err != nil || string(v) != "a" {
		t.Fatalf("Get after revert = %q, %v; want a, nil", v, err)
	}
	if _, err := s.Reader().Get(key(2)); err == nil {
		t.Fatalf("expected key(2) to be gone after revert")
	}
}

func TestFinalizePrunesOldNodes(t *testing.T) {
	s := newTestStore(t)
	rw := s.NewReadWriter()
	rw.Put(key(1), []byte("a"))
	root0, err := s.Commit(rw, 0, s.Root())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rw2 := s.NewReadWriter()
	rw2.Put(key(1), []byte("b"))
	if _, err := s.Commit(rw2, 1, s.Root()); err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	if err := s.Finalize(1); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// The height-0 diff record should be gone.
	if ok, err := s.db.Has(diffKey(0)); err != nil || ok {
		t.Fatalf("height-0 diff record still present after finalize (err %v)", err)
	}
	// The height-0 root's leaf is unreachable from the retained root and
	// should have been swept.
	if ok, err := s.db.Has(nodeKey(root0)); err != nil || ok {
		t.Fatalf("height-0 root node still present after finalize (err %v)", err)
	}
	// Revert only accepts the current height (1), so Revert(0) fails.
	if err := s.Revert(0); err == nil {
		t.Fatalf("expected revert to a finalized height to fail")
	}

	v, err := s.Reader().Get(key(1))
	if err != nil || string(v) != "b" {
		t.Fatalf("Get after finalize = %q, %v; want b, nil", v, err)
	}
}

func TestPinnedRootSurvivesFinalize(t *testing.T) {
	s := newTestStore(t)
	rw := s.NewReadWriter()
	rw.Put(key(1), []byte("a"))
	root0, err := s.Commit(rw, 0, s.Root())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	s.PinRoot(root0)

	rw2 := s.NewReadWriter()
	rw2.Put(key(1), []byte("b"))
	if _, err := s.Commit(rw2, 1, s.Root()); err != nil {
		t.Fatalf("Commit 2: %v", err)
	}

	if err := s.Finalize(1); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	reader := s.ReaderAt(root0)
	proof, err := reader.Prove([][]byte{key(1)})
	if err != nil {
		t.Fatalf("Prove against pinned root: %v", err)
	}
	if !s.Engine().Verify(root0, [][]byte{key(1)}, proof) {
		t.Fatalf("pinned root's proof no longer verifies after finalize")
	}
}

func TestRangeIteration(t *testing.T) {
	s := newTestStore(t)
	rw := s.NewReadWriter()
	for i := byte(1); i <= 5; i++ {
		rw.Put(key(i), []byte{i})
	}
	if _, err := s.Commit(rw, 0, s.Root()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	reader := s.Reader()
	it := reader.Iterate(key(2), key(4), false, 0)
	defer it.Release()
	var got []byte
	for it.Next() {
		got = append(got, it.Value()[0])
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	want := []byte{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
