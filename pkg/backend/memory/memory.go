package memory

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/types"
)

func init() {
	backend.Register("memory", func(settings map[string]any) (backend.Backend, error) {
		return New(), nil
	})
}

// Memory is an ephemeral backend holding records in process memory.
// Reads are safe under concurrent use; all data is lost on Close.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*types.Record
}

// New creates an empty in-memory backend
func New() *Memory {
	return &Memory{records: make(map[string]*types.Record)}
}

func (m *Memory) Get(ref string) (*types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[ref]
	if !ok {
		return nil, errors.NotFound("B404", "Record not found", fmt.Sprintf("No record stored under %q", ref))
	}
	return rec, nil
}

func (m *Memory) Create(ref string, data any) (*types.Record, error) {
	// Round-trip through JSON so stored values decode the same way a
	// durable backend would return them
	normalized, err := normalize(data)
	if err != nil {
		return nil, errors.Backend(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.records[ref]; ok {
		return existing, nil
	}
	rec := &types.Record{Ref: ref, Data: normalized}
	m.records[ref] = rec
	return rec, nil
}

func (m *Memory) BulkRead(refs []string) ([]*types.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.Record, 0, len(refs))
	for _, ref := range refs {
		rec, ok := m.records[ref]
		if !ok {
			return nil, errors.NotFound("B404", "Record not found", fmt.Sprintf("No record stored under %q", ref))
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) Query(clauses []backend.Clause, order ...backend.Ordering) ([]*types.Record, error) {
	m.mu.RLock()
	var out []*types.Record
	for _, rec := range m.records {
		if backend.Matches(rec, clauses) {
			out = append(out, rec)
		}
	}
	m.mu.RUnlock()
	backend.Sort(out, order)
	return out, nil
}

func (m *Memory) List(order ...backend.Ordering) ([]*types.Record, error) {
	m.mu.RLock()
	out := make([]*types.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	m.mu.RUnlock()
	backend.Sort(out, order)
	return out, nil
}

func (m *Memory) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for ref := range m.records {
		keys = append(keys, ref)
	}
	return keys, nil
}

func (m *Memory) Delete(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, ref)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*types.Record)
	return nil
}

func (m *Memory) Close() error {
	return m.Clear()
}

func normalize(data any) (any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
