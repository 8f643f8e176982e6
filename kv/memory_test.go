package kv

import "testing"

func TestMemoryDatabasePutGetDelete(t *testing.T) {
	db := NewMemoryDatabase()
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := db.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(v) != "1" {
		t.Fatalf("got %q want %q", v, "1")
	}

	ok, err := db.Has([]byte("a"))
	if err != nil || !ok {
		t.Fatalf("Has = %v, %v; want true, nil", ok, err)
	}

	if err := db.Delete([]byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get([]byte("a")); err == nil {
		t.Fatalf("expected error after delete")
	}
}

func TestMemoryDatabaseGetMissingKey(t *testing.T) {
	db := NewMemoryDatabase()
	if _, err := db.Get([]byte("missing")); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestMemoryDatabaseBatchAtomicWrite(t *testing.T) {
	db := NewMemoryDatabase()
	db.Put([]byte("keep"), []byte("1"))

	b := db.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	b.Delete([]byte("keep"))
	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	if err := b.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := db.Get([]byte("keep")); err == nil {
		t.Fatalf("expected keep to be deleted")
	}
	v, err := db.Get([]byte("a"))
	if err != nil || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v; want 1, nil", v, err)
	}
}

func TestMemoryDatabaseBatchReset(t *testing.T) {
	db := NewMemoryDatabase()
	b := db.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", b.Len())
	}
	if err := b.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := db.Get([]byte("a")); err == nil {
		t.Fatalf("expected reset batch to have written nothing")
	}
}

func TestMemoryDatabaseIterateAscendingBounded(t *testing.T) {
	db := NewMemoryDatabase()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		db.Put([]byte(k), []byte(k))
	}
	it := db.NewIterator(IterateOptions{Gte: []byte("b"), Lte: []byte("d")})
	defer it.Release()
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestMemoryDatabaseIterateReverseLimit(t *testing.T) {
	db := NewMemoryDatabase()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		db.Put([]byte(k), []byte(k))
	}
	it := db.NewIterator(IterateOptions{Reverse: true, Limit: 2})
	defer it.Release()
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	want := []string{"e", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestMemoryDatabaseSnapshotIsolation(t *testing.T) {
	db := NewMemoryDatabase()
	db.Put([]byte("a"), []byte("1"))
	snap := db.NewSnapshot()

	db.Put([]byte("a"), []byte("2"))
	db.Put([]byte("b"), []byte("3"))

	v, err := snap.Get([]byte("a"))
	if err != nil || string(v) != "1" {
		t.Fatalf("snapshot Get(a) = %q, %v; want 1, nil", v, err)
	}
	if ok, _ := snap.Has([]byte("b")); ok {
		t.Fatalf("snapshot should not see keys written after it was taken")
	}
}
