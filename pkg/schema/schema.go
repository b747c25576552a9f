package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/types"
)

// Validator checks document data before it is committed
type Validator interface {
	Validate(data any) error
}

// Constructor builds a validator from a descriptor's schema document
type Constructor func(schema any) (Validator, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{
		"json-schema": newJSONSchema,
	}
)

// Register makes a validator constructor available under a descriptor type
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("schema: Register called twice for %q", name))
	}
	registry[name] = ctor
}

// FromDescriptor instantiates the validator a descriptor names.
// A nil descriptor yields a nil validator: the collection has no schema.
func FromDescriptor(d *types.SchemaDescriptor) (Validator, error) {
	if d == nil {
		return nil, nil
	}
	registryMu.RLock()
	ctor, ok := registry[d.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.BadRequest(fmt.Sprintf("unknown schema type %q", d.Type))
	}
	return ctor(d.Schema)
}

// jsonSchema validates against a compiled JSON Schema document
type jsonSchema struct {
	compiled *gojsonschema.Schema
}

func newJSONSchema(schema any) (Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, errors.BadRequest(fmt.Sprintf("invalid json-schema document: %v", err))
	}
	return &jsonSchema{compiled: compiled}, nil
}

func (s *jsonSchema) Validate(data any) error {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return errors.SchemaViolation(err.Error())
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return errors.SchemaViolation(strings.Join(details, "; "))
}
