package kv

import (
	"bytes"

	"github.com/dgraph-io/badger/v2"

	"github.com/chainkv/smt/statuserr"
)

// BadgerDatabase is the persistent, ordered, snapshot-capable engine spec
// §6.1 asks for, grounded on the oasis-core MKVS badger node database
// reference (other_examples' *oasis-core*-badger.go): it opens a
// Badger instance and uses Badger's own MVCC transactions both for atomic
// batches and for point-in-time iteration, rather than hand-rolling either.
type BadgerDatabase struct {
	db *badger.DB
}

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	Dir      string
	ReadOnly bool
	InMemory bool
}

// OpenBadger opens (creating if absent) a Badger-backed Database at
// opts.Dir.
func OpenBadger(opts BadgerOptions) (*BadgerDatabase, error) {
	bo := badger.DefaultOptions(opts.Dir)
	bo = bo.WithReadOnly(opts.ReadOnly)
	if opts.InMemory {
		bo = bo.WithInMemory(true)
	}
	bo = bo.WithLogger(nil)
	db, err := badger.Open(bo)
	if err != nil {
		return nil, statuserr.Wrap(statuserr.StorageError, err, "opening badger database at %s", opts.Dir)
	}
	return &BadgerDatabase{db: db}, nil
}

func (b *BadgerDatabase) Close() error {
	if err := b.db.Close(); err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "closing badger database")
	}
	return nil
}

func (b *BadgerDatabase) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = cloneBytes(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, statuserr.New(statuserr.NotFound, "key %x not found", key)
	}
	if err != nil {
		return nil, statuserr.Wrap(statuserr.StorageError, err, "reading key %x", key)
	}
	return out, nil
}

func (b *BadgerDatabase) Has(key []byte) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, statuserr.Wrap(statuserr.StorageError, err, "checking key %x", key)
	}
	return found, nil
}

func (b *BadgerDatabase) Put(key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "writing key %x", key)
	}
	return nil
}

func (b *BadgerDatabase) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "deleting key %x", key)
	}
	return nil
}

// NewSnapshot returns a Reader pinned to a Badger read transaction opened
// now; later writes to b are not visible through it.
func (b *BadgerDatabase) NewSnapshot() Reader {
	return &badgerSnapshot{txn: b.db.NewTransaction(false)}
}

func (b *BadgerDatabase) NewIterator(opts IterateOptions) Iterator {
	txn := b.db.NewTransaction(false)
	return newBadgerIterator(txn, opts, true)
}

func (b *BadgerDatabase) NewBatch() Batch {
	return &badgerBatch{db: b.db}
}

type badgerSnapshot struct {
	txn *badger.Txn
}

func (s *badgerSnapshot) Get(key []byte) ([]byte, error) {
	item, err := s.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, statuserr.New(statuserr.NotFound, "key %x not found", key)
	}
	if err != nil {
		return nil, statuserr.Wrap(statuserr.StorageError, err, "reading key %x", key)
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = cloneBytes(val)
		return nil
	})
	if err != nil {
		return nil, statuserr.Wrap(statuserr.StorageError, err, "reading value for key %x", key)
	}
	return out, nil
}

func (s *badgerSnapshot) Has(key []byte) (bool, error) {
	_, err := s.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, statuserr.Wrap(statuserr.StorageError, err, "checking key %x", key)
	}
	return true, nil
}

func (s *badgerSnapshot) NewIterator(opts IterateOptions) Iterator {
	return newBadgerIterator(s.txn, opts, false)
}

type badgerIterator struct {
	txn      *badger.Txn
	it       *badger.Iterator
	opts     IterateOptions
	ownsTxn  bool
	seeded   bool
	consumed int
	err      error
}

func newBadgerIterator(txn *badger.Txn, opts IterateOptions, ownsTxn bool) *badgerIterator {
	bo := badger.DefaultIteratorOptions
	bo.Reverse = opts.Reverse
	return &badgerIterator{txn: txn, it: txn.NewIterator(bo), opts: opts, ownsTxn: ownsTxn}
}

func (it *badgerIterator) Next() bool {
	if it.opts.Limit > 0 && it.consumed >= it.opts.Limit {
		return false
	}
	if !it.seeded {
		it.seeded = true
		if it.opts.Reverse {
			if it.opts.Lte != nil {
				it.it.Seek(it.opts.Lte)
			} else {
				it.it.Rewind()
			}
		} else {
			if it.opts.Gte != nil {
				it.it.Seek(it.opts.Gte)
			} else {
				it.it.Rewind()
			}
		}
	} else {
		it.it.Next()
	}
	if !it.it.Valid() {
		return false
	}
	key := it.it.Item().KeyCopy(nil)
	if it.opts.Gte != nil && bytes.Compare(key, it.opts.Gte) < 0 {
		return false
	}
	if it.opts.Lte != nil && bytes.Compare(key, it.opts.Lte) > 0 {
		return false
	}
	it.consumed++
	return true
}

func (it *badgerIterator) Key() []byte {
	return it.it.Item().KeyCopy(nil)
}

func (it *badgerIterator) Value() []byte {
	var out []byte
	it.err = it.it.Item().Value(func(val []byte) error {
		out = cloneBytes(val)
		return nil
	})
	return out
}

func (it *badgerIterator) Error() error {
	if it.err == nil {
		return nil
	}
	return statuserr.Wrap(statuserr.StorageError, it.err, "reading iterator value")
}

func (it *badgerIterator) Release() {
	it.it.Close()
	if it.ownsTxn {
		it.txn.Discard()
	}
}

type badgerBatch struct {
	db  *badger.DB
	ops []batchOp
}

func (b *badgerBatch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
}

func (b *badgerBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), delete: true})
}

func (b *badgerBatch) Len() int { return len(b.ops) }

func (b *badgerBatch) Reset() { b.ops = nil }

func (b *badgerBatch) Write() error {
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return statuserr.Wrap(statuserr.StorageError, err, "writing batch")
	}
	return nil
}
