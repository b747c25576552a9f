package collection

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/log"
	"github.com/abought/jamdb/pkg/metrics"
	"github.com/abought/jamdb/pkg/oplog"
	"github.com/abought/jamdb/pkg/schema"
	"github.com/abought/jamdb/pkg/state"
	"github.com/abought/jamdb/pkg/storage"
	"github.com/abought/jamdb/pkg/types"
)

// Collection is the full mutation surface over a triad. Every mutation
// follows the same commit path: validate, write the blob, append the
// log entry, fold it into state. The durable log append is the commit
// point; state is a rebuildable cache.
type Collection struct {
	Frozen
	validator schema.Validator
	logctx    zerolog.Logger
}

// New builds a collection over an existing triad. A non-nil schema
// descriptor attaches a validator to the write path.
func New(st *storage.Storage, lg *oplog.Logger, sta *state.State, permissions map[string]uint8, schemaDesc *types.SchemaDescriptor) (*Collection, error) {
	validator, err := schema.FromDescriptor(schemaDesc)
	if err != nil {
		return nil, err
	}
	return &Collection{
		Frozen:    *NewFrozen(st, lg, sta, permissions),
		validator: validator,
		logctx:    log.WithComponent("collection"),
	}, nil
}

// FromDescriptor instantiates a collection's triad from its persisted
// metadata, loading each backend through the registry
func FromDescriptor(desc *types.CollectionDescriptor) (*Collection, error) {
	storageBackend, err := backend.FromDescriptor(desc.Storage)
	if err != nil {
		return nil, err
	}
	loggerBackend, err := backend.FromDescriptor(desc.Logger)
	if err != nil {
		return nil, err
	}
	stateBackend, err := backend.FromDescriptor(desc.State)
	if err != nil {
		return nil, err
	}

	logger, err := oplog.New(loggerBackend)
	if err != nil {
		return nil, err
	}
	col, err := New(storage.New(storageBackend), logger, state.New(stateBackend), desc.Permissions, desc.Schema)
	if err != nil {
		return nil, err
	}
	// A descriptor-built collection tags its log lines with the uuid so
	// mutations are traceable across a shared process log
	if desc.UUID != "" {
		col.logctx = log.WithCollection(desc.UUID)
	}
	return col, nil
}

// Create inserts a new document under key. The key must be absent;
// data must pass the collection schema when one is attached.
func (c *Collection) Create(key string, data any, user string) (*types.Document, error) {
	timer := metrics.NewTimer()

	if err := c.validate(data); err != nil {
		metrics.MutationsRejectedTotal.WithLabelValues("create", "schema").Inc()
		return nil, err
	}
	if _, err := c.state.Get(key); err == nil {
		metrics.MutationsRejectedTotal.WithLabelValues("create", "key_exists").Inc()
		return nil, errors.KeyExists("D409", "Document already exists",
			fmt.Sprintf("Document %q already exists", key))
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	blob, err := c.storage.Create(data)
	if err != nil {
		return nil, err
	}
	metrics.BlobsWrittenTotal.Inc()

	entry, err := c.logger.Create(key, types.OpCreate, blob.Ref, user, "", nil)
	if err != nil {
		return nil, err
	}
	doc, err := c.state.Apply(entry, blob.Data, true)
	if err != nil {
		return nil, err
	}

	c.commitLog("create", key, entry)
	timer.ObserveDurationVec(metrics.MutationDuration, "create")
	metrics.MutationsTotal.WithLabelValues("create").Inc()
	return doc, nil
}

// Update applies a change to the document under key. change is either a
// JSON-patch (a list of ops) or a whole target document, in which case
// the patch is computed by structural diff. The applied patch is logged
// in operation_parameters so history carries the exact delta.
func (c *Collection) Update(key string, change any, user string) (*types.Document, error) {
	timer := metrics.NewTimer()

	previous, err := c.Read(key)
	if err != nil {
		return nil, err
	}

	patch, err := resolvePatch(previous.Data, change)
	if err != nil {
		return nil, err
	}
	data, err := applyPatch(previous.Data, patch)
	if err != nil {
		metrics.MutationsRejectedTotal.WithLabelValues("update", "patch").Inc()
		return nil, err
	}
	if err := c.validate(data); err != nil {
		metrics.MutationsRejectedTotal.WithLabelValues("update", "schema").Inc()
		return nil, err
	}

	blob, err := c.storage.Create(data)
	if err != nil {
		return nil, err
	}
	metrics.BlobsWrittenTotal.Inc()

	entry, err := c.logger.Create(key, types.OpUpdate, blob.Ref, user, previous.LogRef,
		map[string]any{"patch": patch})
	if err != nil {
		return nil, err
	}
	doc, err := c.state.Apply(entry, blob.Data, true)
	if err != nil {
		return nil, err
	}

	c.commitLog("update", key, entry)
	timer.ObserveDurationVec(metrics.MutationDuration, "update")
	metrics.MutationsTotal.WithLabelValues("update").Inc()
	return doc, nil
}

// Replace swaps the document under key for data wholesale. Logged as an
// UPDATE carrying the full replacement and no patch.
func (c *Collection) Replace(key string, data any, user string) (*types.Document, error) {
	timer := metrics.NewTimer()

	previous, err := c.state.Get(key)
	if err != nil {
		return nil, err
	}
	if err := c.validate(data); err != nil {
		metrics.MutationsRejectedTotal.WithLabelValues("replace", "schema").Inc()
		return nil, err
	}

	blob, err := c.storage.Create(data)
	if err != nil {
		return nil, err
	}
	metrics.BlobsWrittenTotal.Inc()

	entry, err := c.logger.Create(key, types.OpUpdate, blob.Ref, user, previous.LogRef, nil)
	if err != nil {
		return nil, err
	}
	doc, err := c.state.Apply(entry, blob.Data, true)
	if err != nil {
		return nil, err
	}

	c.commitLog("replace", key, entry)
	timer.ObserveDurationVec(metrics.MutationDuration, "replace")
	metrics.MutationsTotal.WithLabelValues("replace").Inc()
	return doc, nil
}

// Delete removes the document under key. The log entry carries no data
// ref; history for the key survives.
func (c *Collection) Delete(key string, user string) error {
	timer := metrics.NewTimer()

	previous, err := c.state.Get(key)
	if err != nil {
		return err
	}

	entry, err := c.logger.Create(key, types.OpDelete, "", user, previous.LogRef, nil)
	if err != nil {
		return err
	}
	if _, err := c.state.Apply(entry, nil, true); err != nil {
		return err
	}

	c.commitLog("delete", key, entry)
	timer.ObserveDurationVec(metrics.MutationDuration, "delete")
	metrics.MutationsTotal.WithLabelValues("delete").Inc()
	return nil
}

// Rename moves the document at key to newKey as two log entries: a
// RENAME source that removes the old key and a RENAME destination that
// starts a fresh chain at the new key with the same data ref.
// Destination availability is checked before either entry is emitted.
func (c *Collection) Rename(key, newKey, user string) (*types.Document, error) {
	timer := metrics.NewTimer()

	previous, err := c.state.Get(key)
	if err != nil {
		return nil, err
	}
	if _, err := c.state.Get(newKey); err == nil {
		metrics.MutationsRejectedTotal.WithLabelValues("rename", "key_exists").Inc()
		return nil, errors.KeyExists("D409", "Document already exists",
			fmt.Sprintf("Document %q already exists", newKey))
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	src, err := c.logger.Create(key, types.OpRename, "", user, previous.LogRef,
		map[string]any{"to": newKey})
	if err != nil {
		return nil, err
	}
	if _, err := c.state.Apply(src, nil, true); err != nil {
		return nil, err
	}

	dst, err := c.logger.Create(newKey, types.OpRename, previous.DataRef, user, "",
		map[string]any{"from": key})
	if err != nil {
		return nil, err
	}
	doc, err := c.state.Apply(dst, previous.Data, true)
	if err != nil {
		return nil, err
	}

	c.commitLog("rename", key, dst)
	timer.ObserveDurationVec(metrics.MutationDuration, "rename")
	metrics.MutationsTotal.WithLabelValues("rename").Inc()
	return doc, nil
}

// AtTime builds a frozen collection over this one's storage, the log
// clamped to ts, and a fresh state. With regenerate set the clamped log
// is replayed immediately; pass false to defer replay to the caller.
func (c *ReadOnly) AtTime(ts float64, fresh *state.State, regenerate bool) (*Frozen, error) {
	frozen := NewFrozen(c.storage, c.logger.AtTime(ts), fresh, c.permissions)
	if regenerate {
		if _, err := frozen.Regenerate(); err != nil {
			return nil, err
		}
	}
	return frozen, nil
}

func (c *Collection) validate(data any) error {
	if c.validator == nil {
		return nil
	}
	return c.validator.Validate(data)
}

func (c *Collection) commitLog(op, key string, entry *types.LogEntry) {
	c.logctx.Debug().
		Str("operation", op).
		Str("key", key).
		Str("log_ref", entry.Ref).
		Float64("modified_on", entry.ModifiedOn).
		Msg("mutation committed")
}
