package namespace

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/abought/jamdb/pkg/auth"
	"github.com/abought/jamdb/pkg/collection"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/schema"
	"github.com/abought/jamdb/pkg/types"
)

// Updatable attributes on an existing collection; everything else in the
// descriptor is fixed at create time
var updatable = map[string]bool{
	"permissions": true,
	"schema":      true,
}

// backendSchema validates one backend descriptor
var backendSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"backend":  map[string]any{"type": "string"},
		"settings": map[string]any{"type": "object"},
	},
	"required":             []any{"backend", "settings"},
	"additionalProperties": false,
}

// permissionsSchema validates the selector to bitmask mapping
var permissionsSchema = map[string]any{
	"type": "object",
	"additionalProperties": map[string]any{
		"type":    "integer",
		"minimum": 0,
		"maximum": 7,
	},
}

// metadataSchema validates a full collection descriptor document
var metadataSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"permissions": permissionsSchema,
		"uuid": map[string]any{
			"type":    "string",
			"pattern": "^[a-fA-F0-9]{32}$",
		},
		"logger":  backendSchema,
		"state":   backendSchema,
		"storage": backendSchema,
		"schema": map[string]any{
			"oneOf": []any{
				map[string]any{"type": "null"},
				map[string]any{
					"type": "object",
					"properties": map[string]any{
						"schema": map[string]any{},
						"type":   map[string]any{"type": "string"},
					},
					"required": []any{"type", "schema"},
				},
			},
		},
	},
	"additionalProperties": false,
	"required":             []any{"logger", "permissions", "state", "storage", "uuid"},
}

// Namespace is a collection whose documents are collection descriptors.
// Child collections are instantiated lazily on first access so that a
// namespace holding its own descriptor cannot recurse at load time.
type Namespace struct {
	collection *collection.Collection
	validator  schema.Validator

	mu       sync.Mutex
	children map[string]*collection.Collection
}

// New wraps a collection as a namespace
func New(col *collection.Collection) (*Namespace, error) {
	validator, err := schema.FromDescriptor(&types.SchemaDescriptor{
		Type:   "json-schema",
		Schema: metadataSchema,
	})
	if err != nil {
		return nil, err
	}
	return &Namespace{
		collection: col,
		validator:  validator,
		children:   make(map[string]*collection.Collection),
	}, nil
}

// Collection returns the underlying descriptor collection
func (n *Namespace) Collection() *collection.Collection {
	return n.collection
}

// CreateCollection validates and stores a collection descriptor under
// name. A missing uuid is assigned; unknown attributes are refused.
func (n *Namespace) CreateCollection(name string, data map[string]any, user string) (*types.CollectionDescriptor, error) {
	doc := make(map[string]any, len(data)+1)
	for k, v := range data {
		doc[k] = v
	}
	if _, ok := doc["uuid"]; !ok {
		doc["uuid"] = NewUUID()
	}
	if _, ok := doc["permissions"]; !ok {
		// The creator owns the collection unless told otherwise
		perms := map[string]any{}
		if user != "" {
			perms[user] = int(auth.Admin)
		}
		doc["permissions"] = perms
	}

	// Descriptor defects are caller mistakes, not document schema
	// violations
	if err := n.validator.Validate(doc); err != nil {
		return nil, asBadRequest(err)
	}

	desc, err := decodeDescriptor(doc)
	if err != nil {
		return nil, err
	}

	if _, err := n.collection.Create(name, doc, user); err != nil {
		return nil, err
	}
	return desc, nil
}

// UpdateCollection changes the updatable attributes of an existing
// descriptor. Attributes outside the whitelist are refused.
func (n *Namespace) UpdateCollection(name string, attrs map[string]any, user string) (*types.CollectionDescriptor, error) {
	var unknown []string
	for k := range attrs {
		if !updatable[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return nil, errors.BadRequest(fmt.Sprintf(
			"attributes not updatable: %s", strings.Join(unknown, ", ")))
	}

	existing, err := n.collection.Read(name)
	if err != nil {
		return nil, err
	}
	doc, ok := existing.Data.(map[string]any)
	if !ok {
		return nil, errors.BadRequest(fmt.Sprintf("descriptor %q is malformed", name))
	}

	merged := make(map[string]any, len(doc))
	for k, v := range doc {
		merged[k] = v
	}
	for k, v := range attrs {
		merged[k] = v
	}
	if err := n.validator.Validate(merged); err != nil {
		return nil, asBadRequest(err)
	}

	if _, err := n.collection.Replace(name, merged, user); err != nil {
		return nil, err
	}

	// Drop any cached child so the next access rebuilds with the new
	// descriptor
	n.mu.Lock()
	delete(n.children, name)
	n.mu.Unlock()

	return decodeDescriptor(merged)
}

// Get returns the child collection stored under name, instantiating its
// triad on first access
func (n *Namespace) Get(name string) (*collection.Collection, error) {
	n.mu.Lock()
	if child, ok := n.children[name]; ok {
		n.mu.Unlock()
		return child, nil
	}
	n.mu.Unlock()

	desc, err := n.Describe(name)
	if err != nil {
		return nil, err
	}
	child, err := collection.FromDescriptor(desc)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if cached, ok := n.children[name]; ok {
		return cached, nil
	}
	n.children[name] = child
	return child, nil
}

// Describe returns the descriptor stored under name
func (n *Namespace) Describe(name string) (*types.CollectionDescriptor, error) {
	doc, err := n.collection.Read(name)
	if err != nil {
		return nil, err
	}
	m, ok := doc.Data.(map[string]any)
	if !ok {
		return nil, errors.BadRequest(fmt.Sprintf("descriptor %q is malformed", name))
	}
	return decodeDescriptor(m)
}

// DeleteCollection removes the descriptor under name. The child's
// backends are not destroyed; blobs and logs stay where they are.
func (n *Namespace) DeleteCollection(name string, user string) error {
	if err := n.collection.Delete(name, user); err != nil {
		return err
	}
	n.mu.Lock()
	delete(n.children, name)
	n.mu.Unlock()
	return nil
}

// Keys returns the names of all collections in the namespace
func (n *Namespace) Keys() ([]string, error) {
	return n.collection.Keys()
}

// NewUUID returns a fresh descriptor uuid: 32 hex characters
func NewUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func asBadRequest(err error) error {
	var e *errors.Error
	if goerrors.As(err, &e) && e.Kind == errors.KindSchemaViolation {
		return errors.BadRequest(e.Detail)
	}
	return err
}

func decodeDescriptor(doc map[string]any) (*types.CollectionDescriptor, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	var desc types.CollectionDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	return &desc, nil
}
