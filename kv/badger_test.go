package kv

import "testing"

func openTestBadger(t *testing.T) *BadgerDatabase {
	t.Helper()
	db, err := OpenBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerDatabasePutGetDelete(t *testing.T) {
	db := openTestBadger(t)
	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := db.Get([]byte("a"))
	if err != nil || string(v) != "1" {
		t.Fatalf("Get = %q, %v; want 1, nil", v, err)
	}
	if ok, err := db.Has([]byte("a")); err != nil || !ok {
		t.Fatalf("Has = %v, %v; want true, nil", ok, err)
	}
	if err := db.Delete([]byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get([]byte("a")); err == nil {
		t.Fatalf("expected error after delete")
	}
}

func TestBadgerDatabaseGetMissingKey(t *testing.T) {
	db := openTestBadger(t)
	if _, err := db.Get([]byte("missing")); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestBadgerDatabaseBatchAtomicWrite(t *testing.T) {
	db := openTestBadger(t)
	db.Put([]byte("keep"), []byte("1"))

	b := db.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	b.Delete([]byte("keep"))
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

func TestBadgerDatabaseIterateAscendingBounded(t *testing.T) {
	db := openTestBadger(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		db.Put([]byte(k), []byte(k))
	}
	it := db.NewIterator(IterateOptions{Gte: []byte("b"), Lte: []byte("d")})
	defer it.Release()
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
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

func TestBadgerDatabaseSnapshotIsolation(t *testing.T) {
	db := openTestBadger(t)
	db.Put([]byte("a"), []byte("1"))
	snap := db.NewSnapshot()

	db.Put([]byte("a"), []byte("2"))

	v, err := snap.Get([]byte("a"))
	if err != nil || string(v) != "1" {
		t.Fatalf("snapshot Get(a) = %q, %v; want 1, nil", v, err)
	}
}
