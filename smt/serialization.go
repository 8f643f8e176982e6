package smt

import (
	"encoding/hex"
	"encoding/json"

	"github.com/chainkv/smt/statuserr"
)

// serializedQuery mirrors ProofQuery with every byte slice hex-encoded, the
// same JSON-friendly shape the teacher's serialization.go uses for its
// Proof/UpdateProof types.
type serializedQuery struct {
	Key            string `json:"key"`
	Exists         bool   `json:"exists"`
	Value          string `json:"value,omitempty"`
	CollidingKey   string `json:"collidingKey,omitempty"`
	CollidingValue string `json:"collidingValue,omitempty"`
	Bitmap         string `json:"bitmap"`
	Depth          int    `json:"depth"`
}

type serializedProof struct {
	Siblings []string          `json:"siblings"`
	Queries  []serializedQuery `json:"queries"`
}

// SerializeProof renders proof as a JSON-friendly struct with hex-encoded
// byte fields, suitable for transmission to a light client.
func SerializeProof(proof *Proof) ([]byte, error) {
	out := serializedProof{
		Siblings: make([]string, len(proof.Siblings)),
		Queries:  make([]serializedQuery, len(proof.Queries)),
	}
	for i, s := range proof.Siblings {
		out.Siblings[i] = hex.EncodeToString(s[:])
	}
	for i, q := range proof.Queries {
		sq := serializedQuery{
			Key:    hex.EncodeToString(q.Key),
			Exists: q.Exists,
			Bitmap: hex.EncodeToString(q.Bitmap),
			Depth:  q.Depth,
		}
		if q.Exists {
			sq.Value = hex.EncodeToString(q.Value[:])
		}
		if len(q.CollidingKey) > 0 {
			sq.CollidingKey = hex.EncodeToString(q.CollidingKey)
			sq.CollidingValue = hex.EncodeToString(q.CollidingValue[:])
		}
		out.Queries[i] = sq
	}
	return json.Marshal(out)
}

// DeserializeProof parses the output of SerializeProof back into a Proof.
func DeserializeProof(data []byte) (*Proof, error) {
	var in serializedProof
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, statuserr.Wrap(statuserr.InvalidInput, err, "decoding proof JSON")
	}
	proof := &Proof{Siblings: make([]Hash, len(in.Siblings))}
	for i, s := range in.Siblings {
		h, err := decodeHash32(s)
		if err != nil {
			return nil, err
		}
		proof.Siblings[i] = h
	}
	proof.Queries = make([]ProofQuery, len(in.Queries))
	for i, sq := range in.Queries {
		key, err := hex.DecodeString(sq.Key)
		if err != nil {
			return nil, statuserr.Wrap(statuserr.InvalidInput, err, "decoding query key")
		}
		bitmap, err := hex.DecodeString(sq.Bitmap)
		if err != nil {
			return nil, statuserr.Wrap(statuserr.InvalidInput, err, "decoding query bitmap")
		}
		q := ProofQuery{Key: key, Exists: sq.Exists, Bitmap: bitmap, Depth: sq.Depth}
		if sq.Exists {
			q.Value, err = decodeHash32(sq.Value)
			if err != nil {
				return nil, err
			}
		}
		if sq.CollidingKey != "" {
			q.CollidingKey, err = hex.DecodeString(sq.CollidingKey)
			if err != nil {
				return nil, statuserr.Wrap(statuserr.InvalidInput, err, "decoding colliding key")
			}
			q.CollidingValue, err = decodeHash32(sq.CollidingValue)
			if err != nil {
				return nil, err
			}
		}
		proof.Queries[i] = q
	}
	return proof, nil
}

func decodeHash32(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, statuserr.Wrap(statuserr.InvalidInput, err, "decoding hash")
	}
	if len(b) != 32 {
		return Hash{}, statuserr.New(statuserr.InvalidInput, "hash must be 32 bytes, got %d", len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
