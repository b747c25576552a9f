package collection

import (
	"encoding/json"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/log"
	"github.com/abought/jamdb/pkg/metrics"
	"github.com/abought/jamdb/pkg/oplog"
	"github.com/abought/jamdb/pkg/state"
	"github.com/abought/jamdb/pkg/storage"
	"github.com/abought/jamdb/pkg/types"
)

// ReadOnly is the read surface over a collection's triad. It can replay
// the log into its state but accepts no external mutations; historical
// views are built on it.
type ReadOnly struct {
	storage     *storage.Storage
	logger      *oplog.Logger
	state       *state.State
	permissions map[string]uint8
}

// NewReadOnly builds a read-only collection over an existing triad
func NewReadOnly(st *storage.Storage, lg *oplog.Logger, sta *state.State, permissions map[string]uint8) *ReadOnly {
	if permissions == nil {
		permissions = map[string]uint8{}
	}
	return &ReadOnly{storage: st, logger: lg, state: sta, permissions: permissions}
}

// Storage returns the collection's blob store
func (c *ReadOnly) Storage() *storage.Storage { return c.storage }

// Logger returns the collection's operation log
func (c *ReadOnly) Logger() *oplog.Logger { return c.logger }

// State returns the collection's materialized view
func (c *ReadOnly) State() *state.State { return c.state }

// Permissions returns the collection's permission map
func (c *ReadOnly) Permissions() map[string]uint8 { return c.permissions }

// Regenerate rebuilds state from the log, bootstrapped by the latest
// snapshot when one exists. It returns the number of entries replayed
// past the snapshot. Safe to run at any time; state is cleared first so
// no rogue keys survive.
func (c *ReadOnly) Regenerate() (int, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RegenerationDuration)

	if err := c.state.Clear(); err != nil {
		return 0, err
	}

	var logs []*types.LogEntry
	snap, err := c.logger.LatestSnapshot()
	switch {
	case errors.IsNotFound(err):
		logs, err = c.logger.List(backend.Asc("modified_on"))
		if err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if err := c.loadSnapshot(snap); err != nil {
			return 0, err
		}
		logs, err = c.logger.After(snap.ModifiedOn)
		if err != nil {
			return 0, err
		}
	}

	blobs, err := c.readLogBlobs(logs)
	if err != nil {
		return 0, err
	}

	for _, entry := range logs {
		var data any
		if entry.DataRef != "" {
			if blob, ok := blobs[entry.DataRef]; ok {
				data = blob.Data
			}
		}
		if _, err := c.state.Apply(entry, data, true); err != nil {
			return 0, err
		}
	}

	metrics.RegenerationReplayedLogs.Observe(float64(len(logs)))
	log.WithComponent("collection").Debug().
		Int("replayed", len(logs)).
		Msg("state regenerated")
	return len(logs), nil
}

// loadSnapshot seeds state from a SNAPSHOT entry's pair listing. Applies
// run unsafe because the snapshot already encodes a consistent state.
func (c *ReadOnly) loadSnapshot(snap *types.LogEntry) error {
	blob, err := c.storage.Get(snap.DataRef)
	if err != nil {
		return err
	}
	pairs, err := decodePairs(blob.Data)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return nil
	}

	logRefs := make([]string, len(pairs))
	dataRefs := make([]string, len(pairs))
	for i, p := range pairs {
		logRefs[i] = p.LogRef
		dataRefs[i] = p.DataRef
	}

	entries, err := c.logger.BulkRead(logRefs)
	if err != nil {
		return err
	}
	blobs, err := c.storage.BulkRead(dataRefs)
	if err != nil {
		return err
	}
	for i, entry := range entries {
		if _, err := c.state.Apply(entry, blobs[i].Data, false); err != nil {
			return err
		}
	}
	return nil
}

// readLogBlobs bulk-reads the data blobs a batch of entries reference
// and returns them keyed by ref
func (c *ReadOnly) readLogBlobs(logs []*types.LogEntry) (map[string]*types.Blob, error) {
	seen := make(map[string]bool)
	var refs []string
	for _, entry := range logs {
		if entry.DataRef != "" && !seen[entry.DataRef] {
			seen[entry.DataRef] = true
			refs = append(refs, entry.DataRef)
		}
	}
	if len(refs) == 0 {
		return map[string]*types.Blob{}, nil
	}
	blobs, err := c.storage.BulkRead(refs)
	if err != nil {
		return nil, err
	}
	byRef := make(map[string]*types.Blob, len(blobs))
	for _, blob := range blobs {
		byRef[blob.Ref] = blob
	}
	return byRef, nil
}

// Read returns the document stored under key, resolving its data blob
// lazily when the state row carries only a ref
func (c *ReadOnly) Read(key string) (*types.Document, error) {
	doc, err := c.state.Get(key)
	if err != nil {
		return nil, err
	}
	if doc.Data == nil && doc.DataRef != "" {
		blob, err := c.storage.Get(doc.DataRef)
		if err != nil {
			return nil, err
		}
		doc.Data = blob.Data
	}
	return doc, nil
}

// List returns all documents in the materialized view
func (c *ReadOnly) List() ([]*types.Document, error) {
	return c.state.List()
}

// Keys returns all document keys
func (c *ReadOnly) Keys() ([]string, error) {
	return c.state.Keys()
}

// Select returns documents matching the given clauses
func (c *ReadOnly) Select(clauses []backend.Clause, order ...backend.Ordering) ([]*types.Document, error) {
	return c.state.Select(clauses, order...)
}

// History returns every log entry for key in ascending timestamp order
func (c *ReadOnly) History(key string) ([]*types.LogEntry, error) {
	return c.logger.History(key)
}

// Frozen is a read-only collection that can still take snapshots. Time
// travel hands one back bound to a historical logger view.
type Frozen struct {
	ReadOnly
}

// NewFrozen builds a frozen collection over an existing triad
func NewFrozen(st *storage.Storage, lg *oplog.Logger, sta *state.State, permissions map[string]uint8) *Frozen {
	return &Frozen{ReadOnly: *NewReadOnly(st, lg, sta, permissions)}
}

// Snapshot captures the live state as a blob of (log_ref, data_ref)
// pairs and appends a SNAPSHOT entry pointing at it
func (c *Frozen) Snapshot() (*types.LogEntry, error) {
	docs, err := c.state.List()
	if err != nil {
		return nil, err
	}
	pairs := make([]types.SnapshotPair, len(docs))
	for i, doc := range docs {
		pairs[i] = types.SnapshotPair{LogRef: doc.LogRef, DataRef: doc.DataRef}
	}

	blob, err := c.storage.Create(pairs)
	if err != nil {
		return nil, err
	}
	entry, err := c.logger.CreateSnapshot(blob.Ref)
	if err != nil {
		return nil, err
	}

	metrics.SnapshotsTotal.Inc()
	metrics.SnapshotSize.Observe(float64(len(pairs)))
	return entry, nil
}

func decodePairs(data any) ([]types.SnapshotPair, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Backend(err)
	}
	var pairs []types.SnapshotPair
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, errors.Backend(err)
	}
	return pairs, nil
}
