package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/backend/memory"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/oplog"
	"github.com/abought/jamdb/pkg/state"
	"github.com/abought/jamdb/pkg/storage"
	"github.com/abought/jamdb/pkg/types"
)

func newTestCollection(t *testing.T, schemaDesc *types.SchemaDescriptor) *Collection {
	t.Helper()
	lg, err := oplog.New(memory.New())
	require.NoError(t, err)
	col, err := New(storage.New(memory.New()), lg, state.New(memory.New()), nil, schemaDesc)
	require.NoError(t, err)
	return col
}

func TestCreateReadRoundTrip(t *testing.T) {
	col := newTestCollection(t, nil)

	doc, err := col.Create("k", map[string]any{"a": 1}, "alice")
	require.NoError(t, err)
	assert.Equal(t, "k", doc.Key)
	assert.NotEmpty(t, doc.DataRef)
	assert.NotEmpty(t, doc.LogRef)

	got, err := col.Read("k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got.Data)
	assert.Equal(t, doc.DataRef, got.DataRef)
}

func TestCreateScalarDocument(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("key", "value", "alice")
	require.NoError(t, err)

	got, err := col.Read("key")
	require.NoError(t, err)
	assert.Equal(t, "value", got.Data)
}

func TestCreateExistingKeyAppendsNoLog(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k", "value", "alice")
	require.NoError(t, err)
	_, err = col.Create("k", "other", "alice")
	assert.True(t, errors.IsKeyExists(err))

	hist, err := col.History("k")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, types.OpCreate, hist[0].Operation)
}

func TestUpdateWithPatch(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k", map[string]any{"a": 1}, "alice")
	require.NoError(t, err)

	patch := []any{map[string]any{"op": "replace", "path": "/a", "value": 2}}
	doc, err := col.Update("k", patch, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(2)}, doc.Data)

	hist, err := col.History("k")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, types.OpUpdate, hist[1].Operation)
	assert.Contains(t, hist[1].Parameters, "patch")
	assert.Equal(t, hist[0].Ref, hist[1].Previous)

	// The collection as of the create still reads the old document
	frozen, err := col.AtTime(hist[0].ModifiedOn, state.New(memory.New()), true)
	require.NoError(t, err)
	old, err := frozen.Read("k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, old.Data)
}

func TestUpdateWithTargetDocument(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k", map[string]any{"a": 1, "b": "keep"}, "alice")
	require.NoError(t, err)

	doc, err := col.Update("k", map[string]any{"a": 2, "b": "keep"}, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(2), "b": "keep"}, doc.Data)

	hist, err := col.History("k")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	patch, ok := hist[1].Parameters["patch"].([]any)
	require.True(t, ok)
	assert.Len(t, patch, 1)
}

func TestUpdateFailedTestOpLeavesEverythingUntouched(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k", map[string]any{"a": 1}, "alice")
	require.NoError(t, err)

	patch := []any{map[string]any{"op": "test", "path": "/a", "value": 99}}
	_, err = col.Update("k", patch, "alice")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindJSONPatchTestFailed, e.Kind)

	hist, err := col.History("k")
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	got, err := col.Read("k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, got.Data)
}

func TestReplaceLogsNoPatch(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k", map[string]any{"a": 1}, "alice")
	require.NoError(t, err)
	doc, err := col.Replace("k", map[string]any{"b": 2}, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": float64(2)}, doc.Data)

	hist, err := col.History("k")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, types.OpUpdate, hist[1].Operation)
	assert.Empty(t, hist[1].Parameters)
}

func TestDeleteKeepsHistory(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k", "value", "alice")
	require.NoError(t, err)
	require.NoError(t, col.Delete("k", "alice"))

	_, err = col.Read("k")
	assert.True(t, errors.IsNotFound(err))

	hist, err := col.History("k")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, types.OpCreate, hist[0].Operation)
	assert.Equal(t, types.OpDelete, hist[1].Operation)
	assert.Empty(t, hist[1].DataRef)
}

func TestRename(t *testing.T) {
	col := newTestCollection(t, nil)

	created, err := col.Create("a", map[string]any{"keee": "eeeeee"}, "alice")
	require.NoError(t, err)

	_, err = col.Rename("a", "b", "alice")
	require.NoError(t, err)

	_, err = col.Read("a")
	assert.True(t, errors.IsNotFound(err))

	got, err := col.Read("b")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"keee": "eeeeee"}, got.Data)
	assert.Equal(t, created.DataRef, got.DataRef)

	hist, err := col.History("b")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, types.OpRename, hist[0].Operation)
	assert.Equal(t, "a", hist[0].Parameters["from"])

	srcHist, err := col.History("a")
	require.NoError(t, err)
	require.Len(t, srcHist, 2)
	assert.Equal(t, "b", srcHist[1].Parameters["to"])
	assert.Empty(t, srcHist[1].DataRef)
}

func TestRenameIntoOccupiedKeyEmitsNoLogs(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("a", "one", "alice")
	require.NoError(t, err)
	_, err = col.Create("b", "two", "alice")
	require.NoError(t, err)

	before, err := col.Logger().List(backend.Asc("modified_on"))
	require.NoError(t, err)

	_, err = col.Rename("a", "b", "alice")
	assert.True(t, errors.IsKeyExists(err))

	after, err := col.Logger().List(backend.Asc("modified_on"))
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestSchemaEnforcement(t *testing.T) {
	col := newTestCollection(t, &types.SchemaDescriptor{
		Type: "json-schema",
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"x"},
		},
	})

	_, err := col.Create("k", map[string]any{}, "alice")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindSchemaViolation, e.Kind)

	logs, err := col.Logger().List(backend.Asc("modified_on"))
	require.NoError(t, err)
	assert.Empty(t, logs)
	keys, err := col.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = col.Create("k", map[string]any{"x": 1}, "alice")
	require.NoError(t, err)
}

func TestReplayDeterminism(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("key", "value", "alice")
	require.NoError(t, err)
	_, err = col.Create("value", map[string]any{"keee": "eeeeee"}, "alice")
	require.NoError(t, err)
	_, err = col.Rename("value", "otherkey", "alice")
	require.NoError(t, err)

	clone := NewReadOnly(col.Storage(), col.Logger(), state.New(memory.New()), nil)
	_, err = clone.Regenerate()
	require.NoError(t, err)

	for _, key := range []string{"key", "otherkey"} {
		want, err := col.Read(key)
		require.NoError(t, err)
		got, err := clone.Read(key)
		require.NoError(t, err)
		assert.Equal(t, want.Data, got.Data, key)
		assert.Equal(t, want.DataRef, got.DataRef, key)
	}

	wantKeys, err := col.Keys()
	require.NoError(t, err)
	gotKeys, err := clone.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, wantKeys, gotKeys)
}

func TestSnapshotBoundsReplay(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k1", "one", "alice")
	require.NoError(t, err)
	_, err = col.Snapshot()
	require.NoError(t, err)
	_, err = col.Create("k2", "two", "alice")
	require.NoError(t, err)

	replayed, err := col.Regenerate()
	require.NoError(t, err)
	assert.Equal(t, 1, replayed)

	keys, err := col.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"k1", "k2"}, keys)
}

func TestSnapshotEquivalence(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("a", map[string]any{"n": 1}, "alice")
	require.NoError(t, err)
	_, err = col.Create("b", map[string]any{"n": 2}, "alice")
	require.NoError(t, err)
	_, err = col.Update("a", map[string]any{"n": 3}, "alice")
	require.NoError(t, err)
	err = col.Delete("b", "alice")
	require.NoError(t, err)
	_, err = col.Snapshot()
	require.NoError(t, err)
	_, err = col.Create("c", map[string]any{"n": 4}, "alice")
	require.NoError(t, err)

	// Regenerate through the snapshot
	viaSnapshot := NewReadOnly(col.Storage(), col.Logger(), state.New(memory.New()), nil)
	_, err = viaSnapshot.Regenerate()
	require.NoError(t, err)

	// Replay every log, ignoring the snapshot
	full := NewReadOnly(col.Storage(), col.Logger(), state.New(memory.New()), nil)
	logs, err := col.Logger().List(backend.Asc("modified_on"))
	require.NoError(t, err)
	blobs, err := full.readLogBlobs(logs)
	require.NoError(t, err)
	for _, log := range logs {
		var data any
		if blob, ok := blobs[log.DataRef]; ok {
			data = blob.Data
		}
		_, err := full.State().Apply(log, data, true)
		require.NoError(t, err)
	}

	snapKeys, err := viaSnapshot.Keys()
	require.NoError(t, err)
	fullKeys, err := full.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, fullKeys, snapKeys)

	for _, key := range snapKeys {
		want, err := full.Read(key)
		require.NoError(t, err)
		got, err := viaSnapshot.Read(key)
		require.NoError(t, err)
		assert.Equal(t, want.DataRef, got.DataRef, key)
		assert.Equal(t, want.Data, got.Data, key)
	}
}

func TestTimeTravel(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k", map[string]any{"v": 1}, "alice")
	require.NoError(t, err)
	_, err = col.Update("k", map[string]any{"v": 2}, "alice")
	require.NoError(t, err)
	_, err = col.Update("k", map[string]any{"v": 3}, "alice")
	require.NoError(t, err)

	hist, err := col.History("k")
	require.NoError(t, err)
	require.Len(t, hist, 3)

	for i, want := range []float64{1, 2, 3} {
		frozen, err := col.AtTime(hist[i].ModifiedOn, state.New(memory.New()), true)
		require.NoError(t, err)
		got, err := frozen.Read("k")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"v": want}, got.Data)
	}

	// Before the first entry the document does not exist
	frozen, err := col.AtTime(hist[0].ModifiedOn-1, state.New(memory.New()), true)
	require.NoError(t, err)
	_, err = frozen.Read("k")
	assert.True(t, errors.IsNotFound(err))
}

func TestRegenerateIsIdempotent(t *testing.T) {
	col := newTestCollection(t, nil)

	_, err := col.Create("k", map[string]any{"v": 1}, "alice")
	require.NoError(t, err)
	_, err = col.Update("k", map[string]any{"v": 2}, "alice")
	require.NoError(t, err)

	first, err := col.Regenerate()
	require.NoError(t, err)
	second, err := col.Regenerate()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := col.Read("k")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": float64(2)}, got.Data)
}

func TestFromDescriptor(t *testing.T) {
	col, err := FromDescriptor(&types.CollectionDescriptor{
		UUID:        "0123456789abcdef0123456789abcdef",
		Permissions: map[string]uint8{"*": 7},
		Logger:      types.BackendDescriptor{Backend: "memory"},
		Storage:     types.BackendDescriptor{Backend: "memory"},
		State:       types.BackendDescriptor{Backend: "memory"},
	})
	require.NoError(t, err)

	_, err = col.Create("k", "value", "alice")
	require.NoError(t, err)
	got, err := col.Read("k")
	require.NoError(t, err)
	assert.Equal(t, "value", got.Data)
	assert.Equal(t, uint8(7), col.Permissions()["*"])
}
