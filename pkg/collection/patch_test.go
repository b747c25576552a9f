package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abought/jamdb/pkg/errors"
)

func TestResolvePatchPassesListsThrough(t *testing.T) {
	patch, err := resolvePatch(map[string]any{"a": 1},
		[]any{map[string]any{"op": "remove", "path": "/a"}})
	require.NoError(t, err)
	require.Len(t, patch, 1)
	op := patch[0].(map[string]any)
	assert.Equal(t, "remove", op["op"])
}

func TestResolvePatchDiffsTargetDocuments(t *testing.T) {
	previous := map[string]any{"a": 1, "b": "same"}
	target := map[string]any{"a": 2, "b": "same", "c": true}

	patch, err := resolvePatch(previous, target)
	require.NoError(t, err)
	assert.Len(t, patch, 2)

	data, err := applyPatch(previous, patch)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(2), "b": "same", "c": true}, data)
}

func TestResolvePatchRejectsScalars(t *testing.T) {
	_, err := resolvePatch(map[string]any{"a": 1}, "not a patch")
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindBadRequest, e.Kind)
}

func TestApplyPatchTestOp(t *testing.T) {
	previous := map[string]any{"a": float64(1)}

	// Passing test op leaves the patch applicable
	data, err := applyPatch(previous, []any{
		map[string]any{"op": "test", "path": "/a", "value": 1},
		map[string]any{"op": "replace", "path": "/a", "value": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(2)}, data)

	// Failing test op surfaces its own error kind
	_, err = applyPatch(previous, []any{
		map[string]any{"op": "test", "path": "/a", "value": 99},
	})
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindJSONPatchTestFailed, e.Kind)
}

func TestApplyPatchMalformedOp(t *testing.T) {
	_, err := applyPatch(map[string]any{"a": 1}, []any{
		map[string]any{"op": "frobnicate", "path": "/a"},
	})
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.KindBadRequest, e.Kind)
}
