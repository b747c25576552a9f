package oplog

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/storage"
	"github.com/abought/jamdb/pkg/types"
)

// Logger is the append-only operation log of a collection. Entries carry
// strictly increasing modified_on timestamps and are indexed by document
// key and by time.
//
// A Logger obtained from AtTime is a read-only view: every query is
// clamped to entries at or before the cutoff and appends are refused.
type Logger struct {
	backend backend.Backend

	mu   sync.Mutex
	last float64
	now  func() float64

	frozen bool
	cutoff float64
}

// New opens a logger over the given backend. The clock resumes from the
// largest persisted timestamp so restarts never regress.
func New(b backend.Backend) (*Logger, error) {
	l := &Logger{backend: b, now: wallClock}

	recs, err := b.Query(nil, backend.Desc("modified_on"))
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		entry, err := decodeEntry(recs[0])
		if err != nil {
			return nil, err
		}
		l.last = entry.ModifiedOn
	}
	return l, nil
}

func wallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Create appends one entry. previous, when supplied, must be the ref of
// the currently latest entry for key; a stale ref raises Conflict.
func (l *Logger) Create(key string, op types.Operation, dataRef, user, previous string, params map[string]any) (*types.LogEntry, error) {
	if l.frozen {
		return nil, errors.BadRequest("cannot append to a historical logger view")
	}

	if previous != "" {
		latest, err := l.Latest(key)
		if err != nil {
			if errors.IsNotFound(err) {
				return nil, errors.Conflict(fmt.Sprintf(
					"Log %q is not the latest entry for %q", previous, key))
			}
			return nil, err
		}
		if latest.Ref != previous {
			return nil, errors.Conflict(fmt.Sprintf(
				"Log %q is not the latest entry for %q", previous, key))
		}
	}

	entry := &types.LogEntry{
		Key:        key,
		Operation:  op,
		DataRef:    dataRef,
		User:       user,
		ModifiedOn: l.nextTimestamp(),
		Previous:   previous,
		Parameters: params,
	}

	canonical, err := storage.Canonicalize(entry)
	if err != nil {
		return nil, errors.Backend(err)
	}
	entry.Ref = storage.Ref(canonical)

	data, err := entryToMap(entry)
	if err != nil {
		return nil, err
	}
	if _, err := l.backend.Create(entry.Ref, data); err != nil {
		return nil, err
	}
	return entry, nil
}

// CreateSnapshot appends a SNAPSHOT entry pointing at the blob holding
// the live-state listing. Snapshot entries carry no key and no user.
func (l *Logger) CreateSnapshot(dataRef string) (*types.LogEntry, error) {
	return l.Create("", types.OpSnapshot, dataRef, "", "", nil)
}

// nextTimestamp allocates a strictly increasing timestamp. If the wall
// clock regresses or stalls, bump by the smallest representable step.
func (l *Logger) nextTimestamp() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.now()
	if ts <= l.last {
		ts = math.Nextafter(l.last, math.MaxFloat64)
	}
	l.last = ts
	return ts
}

// Latest returns the most recent entry for key
func (l *Logger) Latest(key string) (*types.LogEntry, error) {
	recs, err := l.backend.Query(
		l.clamp(backend.Where("key", backend.Eq, key)),
		backend.Desc("modified_on"),
	)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.NotFound("L404", "Log not found", fmt.Sprintf("No log entries for %q", key))
	}
	return decodeEntry(recs[0])
}

// History returns every entry for key, ascending by modified_on
func (l *Logger) History(key string) ([]*types.LogEntry, error) {
	recs, err := l.backend.Query(
		l.clamp(backend.Where("key", backend.Eq, key)),
		backend.Asc("modified_on"),
	)
	if err != nil {
		return nil, err
	}
	return decodeEntries(recs)
}

// List returns all entries in the given order
func (l *Logger) List(order ...backend.Ordering) ([]*types.LogEntry, error) {
	recs, err := l.backend.Query(l.clamp(), order...)
	if err != nil {
		return nil, err
	}
	return decodeEntries(recs)
}

// After returns entries with modified_on strictly greater than ts,
// ascending
func (l *Logger) After(ts float64) ([]*types.LogEntry, error) {
	recs, err := l.backend.Query(
		l.clamp(backend.Where("modified_on", backend.Gt, ts)),
		backend.Asc("modified_on"),
	)
	if err != nil {
		return nil, err
	}
	return decodeEntries(recs)
}

// LatestSnapshot returns the most recent SNAPSHOT entry
func (l *Logger) LatestSnapshot() (*types.LogEntry, error) {
	recs, err := l.backend.Query(
		l.clamp(backend.Where("operation", backend.Eq, string(types.OpSnapshot))),
		backend.Desc("modified_on"),
	)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.NotFound("L404", "Snapshot not found", "No snapshot entries in this log")
	}
	return decodeEntry(recs[0])
}

// Get returns the entry stored under ref
func (l *Logger) Get(ref string) (*types.LogEntry, error) {
	rec, err := l.backend.Get(ref)
	if err != nil {
		return nil, err
	}
	return decodeEntry(rec)
}

// BulkRead returns entries for refs, preserving input order
func (l *Logger) BulkRead(refs []string) ([]*types.LogEntry, error) {
	recs, err := l.backend.BulkRead(refs)
	if err != nil {
		return nil, err
	}
	return decodeEntries(recs)
}

// AtTime returns a read-only view of this logger clamped to entries with
// modified_on <= ts. Nesting views keeps the tighter cutoff.
func (l *Logger) AtTime(ts float64) *Logger {
	cutoff := ts
	if l.frozen && l.cutoff < cutoff {
		cutoff = l.cutoff
	}
	return &Logger{
		backend: l.backend,
		now:     l.now,
		frozen:  true,
		cutoff:  cutoff,
	}
}

// clamp appends the view cutoff to a clause list
func (l *Logger) clamp(clauses ...backend.Clause) []backend.Clause {
	if !l.frozen {
		return clauses
	}
	return append(clauses, backend.Where("modified_on", backend.Le, l.cutoff))
}

func entryToMap(entry *types.LogEntry) (map[string]any, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, errors.Backend(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Backend(err)
	}
	return m, nil
}

func decodeEntry(rec *types.Record) (*types.LogEntry, error) {
	raw, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, errors.Backend(err)
	}
	var entry types.LogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, errors.Backend(err)
	}
	if entry.Ref == "" {
		entry.Ref = rec.Ref
	}
	return &entry, nil
}

func decodeEntries(recs []*types.Record) ([]*types.LogEntry, error) {
	entries := make([]*types.LogEntry, len(recs))
	for i, rec := range recs {
		entry, err := decodeEntry(rec)
		if err != nil {
			return nil, err
		}
		entries[i] = entry
	}
	return entries, nil
}
