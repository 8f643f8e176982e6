package store

import (
	"github.com/chainkv/smt/smt"
	"github.com/chainkv/smt/statuserr"
)

// encodeConfig/decodeConfig persist smt.Config under prefixConfig so the
// prefixes spec §9 requires to "stay fixed across all commits of a given
// store" are enforced on reopen rather than merely documented.
func encodeConfig(cfg smt.Config) []byte {
	buf := make([]byte, 0, 4+4)
	var lenBuf [4]byte
	putUint32(lenBuf[:], uint32(cfg.KeyLength))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, cfg.LeafPrefix, cfg.BranchPrefix, cfg.EmptyMarker)
	return buf
}

func decodeConfig(data []byte) (smt.Config, error) {
	if len(data) != 7 {
		return smt.Config{}, statuserr.New(statuserr.Corruption, "config header has wrong length: got %d want 7", len(data))
	}
	return smt.Config{
		KeyLength:    int(getUint32(data[:4])),
		LeafPrefix:   data[4],
		BranchPrefix: data[5],
		EmptyMarker:  data[6],
	}, nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func configsEqual(a, b smt.Config) bool {
	return a.KeyLength == b.KeyLength &&
		a.LeafPrefix == b.LeafPrefix &&
		a.BranchPrefix == b.BranchPrefix &&
		a.EmptyMarker == b.EmptyMarker
}
