package store

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/chainkv/smt/smt"
	"github.com/chainkv/smt/statuserr"
)

// DiffEntry classifies one key's change in a commit, grounded on the
// eth2030 pack's trie/diff_tracker.go DiffEntry/IsInsert/IsDelete/IsUpdate
// vocabulary: Revert needs to tell "recreate a deleted value" apart from
// "delete an inserted one" without re-deriving it from the SMT.
type DiffEntry struct {
	Key      []byte
	OldValue []byte // nil if this key did not exist before the commit
	NewValue []byte // nil if this key was deleted by the commit
}

func (d DiffEntry) IsInsert() bool { return d.OldValue == nil && d.NewValue != nil }
func (d DiffEntry) IsDelete() bool { return d.OldValue != nil && d.NewValue == nil }
func (d DiffEntry) IsUpdate() bool { return d.OldValue != nil && d.NewValue != nil }

// NodeBlob names one SMT node alongside its encoded body, as recorded in a
// DiffRecord's DeletedNodes so Revert can write it straight back without
// needing to re-derive it.
type NodeBlob struct {
	Hash smt.Hash
	Data []byte
}

// DiffRecord is what Commit persists under prefixDiff so Revert can undo
// exactly that commit without needing anything the SMT itself still holds:
// CreatedNodes names every node hash the commit introduced (Revert deletes
// them), and DeletedNodes carries the full body of every node the commit
// superseded (Revert writes them back), alongside the side-index Entries.
type DiffRecord struct {
	Height       uint64
	PrevRoot     smt.Hash
	NewRoot      smt.Hash
	Entries      []DiffEntry
	CreatedNodes []smt.Hash
	DeletedNodes []NodeBlob
}

func encodeDiffRecord(d *DiffRecord) []byte {
	var buf bytes.Buffer
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], d.Height)
	buf.Write(tmp[:])
	buf.Write(d.PrevRoot[:])
	buf.Write(d.NewRoot[:])
	binary.BigEndian.PutUint32(tmp[:4], uint32(len(d.Entries)))
	buf.Write(tmp[:4])
	for _, e := range d.Entries {
		writeLenPrefixed(&buf, e.Key)
		writeLenPrefixed(&buf, e.OldValue)
		writeLenPrefixed(&buf, e.NewValue)
	}
	binary.BigEndian.PutUint32(tmp[:4], uint32(len(d.CreatedNodes)))
	buf.Write(tmp[:4])
	for _, h := range d.CreatedNodes {
		buf.Write(h[:])
	}
	binary.BigEndian.PutUint32(tmp[:4], uint32(len(d.DeletedNodes)))
	buf.Write(tmp[:4])
	for _, n := range d.DeletedNodes {
		buf.Write(n.Hash[:])
		writeLenPrefixed(&buf, n.Data)
	}
	return buf.Bytes()
}

func decodeDiffRecord(data []byte) (*DiffRecord, error) {
	r := bytes.NewReader(data)
	d := &DiffRecord{}
	var tmp [8]byte
	if _, err := readFull(r, tmp[:8]); err != nil {
		return nil, err
	}
	d.Height = binary.BigEndian.Uint64(tmp[:8])
	if _, err := readFull(r, d.PrevRoot[:]); err != nil {
		return nil, err
	}
	if _, err := readFull(r, d.NewRoot[:]); err != nil {
		return nil, err
	}
	if _, err := readFull(r, tmp[:4]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(tmp[:4])
	d.Entries = make([]DiffEntry, n)
	for i := uint32(0); i < n; i++ {
		key, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		oldV, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		newV, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		d.Entries[i] = DiffEntry{Key: key, OldValue: oldV, NewValue: newV}
	}

	if _, err := readFull(r, tmp[:4]); err != nil {
		return nil, err
	}
	createdCount := binary.BigEndian.Uint32(tmp[:4])
	d.CreatedNodes = make([]smt.Hash, createdCount)
	for i := uint32(0); i < createdCount; i++ {
		if _, err := readFull(r, d.CreatedNodes[i][:]); err != nil {
			return nil, err
		}
	}

	if _, err := readFull(r, tmp[:4]); err != nil {
		return nil, err
	}
	deletedCount := binary.BigEndian.Uint32(tmp[:4])
	d.DeletedNodes = make([]NodeBlob, deletedCount)
	for i := uint32(0); i < deletedCount; i++ {
		if _, err := readFull(r, d.DeletedNodes[i].Hash[:]); err != nil {
			return nil, err
		}
		blob, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		d.DeletedNodes[i].Data = blob
	}
	return d, nil
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var tmp [4]byte
	if b == nil {
		binary.BigEndian.PutUint32(tmp[:], 0xFFFFFFFF)
		buf.Write(tmp[:])
		return
	}
	binary.BigEndian.PutUint32(tmp[:], uint32(len(b)))
	buf.Write(tmp[:])
	buf.Write(b)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var tmp [4]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(tmp[:])
	if n == 0xFFFFFFFF {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil || n != len(b) {
		return n, statuserr.New(statuserr.Corruption, "truncated diff record")
	}
	return n, nil
}

// sortedEntries returns a copy of entries sorted by key, for deterministic
// output. Nothing in this module calls it.
func sortedEntries(entries []DiffEntry) []DiffEntry {
	out := append([]DiffEntry(nil), entries...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}
