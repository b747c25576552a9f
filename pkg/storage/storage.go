package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/types"
)

// Storage is a content-addressed blob store over a backend. Blobs are
// immutable and deduplicated: identical data always lands on the same ref.
type Storage struct {
	backend backend.Backend
}

// New creates a Storage over the given backend
func New(b backend.Backend) *Storage {
	return &Storage{backend: b}
}

// Create canonicalizes data, derives its content ref, and stores the blob
// if absent. Identical data returns an identical ref.
func (s *Storage) Create(data any) (*types.Blob, error) {
	canonical, err := Canonicalize(data)
	if err != nil {
		return nil, errors.Backend(err)
	}
	ref := Ref(canonical)

	rec, err := s.backend.Create(ref, data)
	if err != nil {
		return nil, err
	}
	return &types.Blob{Ref: rec.Ref, Data: rec.Data}, nil
}

// Get returns the blob stored under ref
func (s *Storage) Get(ref string) (*types.Blob, error) {
	rec, err := s.backend.Get(ref)
	if err != nil {
		return nil, err
	}
	return &types.Blob{Ref: rec.Ref, Data: rec.Data}, nil
}

// BulkRead returns blobs for refs, preserving input order. A single
// missing ref fails the whole call.
func (s *Storage) BulkRead(refs []string) ([]*types.Blob, error) {
	recs, err := s.backend.BulkRead(refs)
	if err != nil {
		return nil, err
	}
	blobs := make([]*types.Blob, len(recs))
	for i, rec := range recs {
		blobs[i] = &types.Blob{Ref: rec.Ref, Data: rec.Data}
	}
	return blobs, nil
}

// Canonicalize serializes data to its canonical JSON form: mapping keys
// sorted, sequence order preserved, floats in shortest round-trip form.
// Values round-trip through generic JSON first so structs and maps
// canonicalize identically.
func Canonicalize(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Ref returns the content ref for canonical bytes: SHA-256, hex encoded
func Ref(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
