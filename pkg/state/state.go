package state

import (
	"encoding/json"
	"fmt"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/types"
)

// State is the materialized key to document view of a collection. It is
// a cache derived from the operation log: every row can be rebuilt by
// replaying entries in order, so no durability guarantee is required of
// its backend beyond what the owning collection wants.
type State struct {
	backend backend.Backend
}

// New creates a State over the given backend
func New(b backend.Backend) *State {
	return &State{backend: b}
}

// Get returns the document stored under key
func (s *State) Get(key string) (*types.Document, error) {
	rec, err := s.backend.Get(key)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound("D404", "Document not found", fmt.Sprintf("Document %q was not found", key))
		}
		return nil, err
	}
	return decodeDocument(rec)
}

// List returns all documents
func (s *State) List(order ...backend.Ordering) ([]*types.Document, error) {
	recs, err := s.backend.List(order...)
	if err != nil {
		return nil, err
	}
	return decodeDocuments(recs)
}

// Select returns documents matching the given clauses
func (s *State) Select(clauses []backend.Clause, order ...backend.Ordering) ([]*types.Document, error) {
	recs, err := s.backend.Query(clauses, order...)
	if err != nil {
		return nil, err
	}
	return decodeDocuments(recs)
}

// Keys returns all document keys
func (s *State) Keys() ([]string, error) {
	return s.backend.Keys()
}

// Clear removes every document; regeneration starts here so rogue keys
// from an interrupted replay cannot survive
func (s *State) Clear() error {
	return s.backend.Clear()
}

// Apply folds one log entry into the view and returns the resulting
// document (nil for DELETE, RENAME source, and SNAPSHOT). With safe set,
// preconditions from the transition table are enforced; snapshot loading
// passes safe=false because the snapshot already encodes a consistent
// state.
func (s *State) Apply(entry *types.LogEntry, data any, safe bool) (*types.Document, error) {
	switch entry.Operation {
	case types.OpCreate:
		if safe {
			if _, err := s.Get(entry.Key); err == nil {
				return nil, errors.KeyExists("D409", "Document already exists",
					fmt.Sprintf("Document %q already exists", entry.Key))
			} else if !errors.IsNotFound(err) {
				return nil, err
			}
		}
		return s.insert(entry, data)

	case types.OpUpdate, types.OpReplace:
		existing, err := s.Get(entry.Key)
		if err != nil {
			if !safe && errors.IsNotFound(err) {
				return s.insert(entry, data)
			}
			return nil, err
		}
		doc := &types.Document{
			Key:        entry.Key,
			Data:       data,
			DataRef:    entry.DataRef,
			LogRef:     entry.Ref,
			CreatedOn:  existing.CreatedOn,
			ModifiedOn: entry.ModifiedOn,
		}
		return doc, s.set(doc)

	case types.OpDelete:
		if safe {
			if _, err := s.Get(entry.Key); err != nil {
				return nil, err
			}
		}
		return nil, s.backend.Delete(entry.Key)

	case types.OpRename:
		if entry.DataRef == "" {
			// Source side: remove the old key
			if safe {
				if _, err := s.Get(entry.Key); err != nil {
					return nil, err
				}
			}
			return nil, s.backend.Delete(entry.Key)
		}
		// Destination side: insert under the new key
		if safe {
			if _, err := s.Get(entry.Key); err == nil {
				return nil, errors.KeyExists("D409", "Document already exists",
					fmt.Sprintf("Document %q already exists", entry.Key))
			} else if !errors.IsNotFound(err) {
				return nil, err
			}
		}
		return s.insert(entry, data)

	case types.OpSnapshot:
		return nil, nil

	default:
		return nil, errors.BadRequest(fmt.Sprintf("unknown operation %q", entry.Operation))
	}
}

func (s *State) insert(entry *types.LogEntry, data any) (*types.Document, error) {
	doc := &types.Document{
		Key:        entry.Key,
		Data:       data,
		DataRef:    entry.DataRef,
		LogRef:     entry.Ref,
		CreatedOn:  entry.ModifiedOn,
		ModifiedOn: entry.ModifiedOn,
	}
	return doc, s.set(doc)
}

// set upserts through the backend's create-if-absent contract. Rows are
// stored without their data payload; readers resolve the blob through
// Storage when they need it.
func (s *State) set(doc *types.Document) error {
	row := *doc
	row.Data = nil
	raw, err := json.Marshal(&row)
	if err != nil {
		return errors.Backend(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return errors.Backend(err)
	}
	if err := s.backend.Delete(doc.Key); err != nil {
		return err
	}
	_, err = s.backend.Create(doc.Key, m)
	return err
}

func decodeDocument(rec *types.Record) (*types.Document, error) {
	raw, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, errors.Backend(err)
	}
	var doc types.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Backend(err)
	}
	if doc.Key == "" {
		doc.Key = rec.Ref
	}
	return &doc, nil
}

func decodeDocuments(recs []*types.Record) ([]*types.Document, error) {
	docs := make([]*types.Document, len(recs))
	for i, rec := range recs {
		doc, err := decodeDocument(rec)
		if err != nil {
			return nil, err
		}
		docs[i] = doc
	}
	return docs, nil
}
