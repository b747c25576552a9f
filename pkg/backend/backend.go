package backend

import (
	"fmt"
	"sync"

	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/types"
)

// Backend is the key/value + query store contract the core consumes.
// Refs are supplied by callers: Storage derives them from content,
// the operation log derives them from the entry itself.
type Backend interface {
	// Get returns the record stored under ref
	Get(ref string) (*types.Record, error)
	// Create stores data under ref and returns the resulting record.
	// Writing identical data under an existing ref is a no-op.
	Create(ref string, data any) (*types.Record, error)
	// BulkRead returns records for refs, preserving input order.
	// A single missing ref fails the whole call.
	BulkRead(refs []string) ([]*types.Record, error)
	// Query returns records whose data matches every clause
	Query(clauses []Clause, order ...Ordering) ([]*types.Record, error)
	// List returns all records
	List(order ...Ordering) ([]*types.Record, error)
	// Keys returns all refs
	Keys() ([]string, error)
	// Delete removes the record stored under ref
	Delete(ref string) error
	// Clear removes all records
	Clear() error
	// Close releases underlying resources
	Close() error
}

// Constructor builds a backend from descriptor settings
type Constructor func(settings map[string]any) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register makes a backend constructor available under name.
// Registering the same name twice panics; backends register from init.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("backend: Register called twice for %q", name))
	}
	registry[name] = ctor
}

// FromDescriptor instantiates the backend a descriptor names
func FromDescriptor(d types.BackendDescriptor) (Backend, error) {
	registryMu.RLock()
	ctor, ok := registry[d.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.BadRequest(fmt.Sprintf("unknown backend %q", d.Backend))
	}
	return ctor(d.Settings)
}

// Registered returns the names of all registered backends
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
