package boltdb

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/log"
	"github.com/abought/jamdb/pkg/types"
)

var bucketRecords = []byte("records")

func init() {
	backend.Register("boltdb", func(settings map[string]any) (backend.Backend, error) {
		path, ok := settings["path"].(string)
		if !ok || path == "" {
			return nil, errors.BadRequest(`boltdb backend requires a "path" setting`)
		}
		return Open(path)
	})
}

// Bolt is a persistent single-file backend over bbolt. Records are
// JSON-marshaled values in one bucket keyed by ref.
type Bolt struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database file at path
func Open(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Backend(fmt.Errorf("failed to open database: %w", err))
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Backend(fmt.Errorf("failed to create bucket: %w", err))
	}

	log.WithBackend("boltdb").Debug().Str("path", path).Msg("database opened")
	return &Bolt{db: db}, nil
}

// Close closes the database
func (s *Bolt) Close() error {
	return s.db.Close()
}

func (s *Bolt) Get(ref string) (*types.Record, error) {
	var rec *types.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		raw := b.Get([]byte(ref))
		if raw == nil {
			return errors.NotFound("B404", "Record not found", fmt.Sprintf("No record stored under %q", ref))
		}
		var err error
		rec, err = decodeRecord(ref, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Bolt) Create(ref string, data any) (*types.Record, error) {
	var rec *types.Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		if raw := b.Get([]byte(ref)); raw != nil {
			var err error
			rec, err = decodeRecord(ref, raw)
			return err
		}
		raw, err := json.Marshal(data)
		if err != nil {
			return errors.Backend(err)
		}
		if err := b.Put([]byte(ref), raw); err != nil {
			return errors.Backend(err)
		}
		rec, err = decodeRecord(ref, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Bolt) BulkRead(refs []string) ([]*types.Record, error) {
	out := make([]*types.Record, 0, len(refs))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		for _, ref := range refs {
			raw := b.Get([]byte(ref))
			if raw == nil {
				return errors.NotFound("B404", "Record not found", fmt.Sprintf("No record stored under %q", ref))
			}
			rec, err := decodeRecord(ref, raw)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Bolt) Query(clauses []backend.Clause, order ...backend.Ordering) ([]*types.Record, error) {
	var out []*types.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		return b.ForEach(func(k, v []byte) error {
			rec, err := decodeRecord(string(k), v)
			if err != nil {
				return err
			}
			if backend.Matches(rec, clauses) {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	backend.Sort(out, order)
	return out, nil
}

func (s *Bolt) List(order ...backend.Ordering) ([]*types.Record, error) {
	return s.Query(nil, order...)
}

func (s *Bolt) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		return b.ForEach(func(k, v []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Backend(err)
	}
	return keys, nil
}

func (s *Bolt) Delete(ref string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRecords)
		return b.Delete([]byte(ref))
	})
	if err != nil {
		return errors.Backend(err)
	}
	return nil
}

func (s *Bolt) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketRecords); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketRecords)
		return err
	})
	if err != nil {
		return errors.Backend(err)
	}
	return nil
}

// decodeRecord unmarshals stored bytes into a fresh value; bbolt bytes
// are only valid inside the transaction, so decoding also copies
func decodeRecord(ref string, raw []byte) (*types.Record, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Backend(err)
	}
	return &types.Record{Ref: ref, Data: data}, nil
}
