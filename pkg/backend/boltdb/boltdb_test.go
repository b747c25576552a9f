package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abought/jamdb/pkg/backend"
	"github.com/abought/jamdb/pkg/errors"
	"github.com/abought/jamdb/pkg/types"
)

func openTestStore(t *testing.T) *Bolt {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jamdb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateGetDelete(t *testing.T) {
	s := openTestStore(t)

	rec, err := s.Create("a", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "a", rec.Ref)
	assert.Equal(t, map[string]any{"x": float64(1)}, rec.Data)

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, rec.Data, got.Data)

	require.NoError(t, s.Delete("a"))
	_, err = s.Get("a")
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateIsIdempotentPerRef(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Create("a", "first")
	require.NoError(t, err)
	rec, err := s.Create("a", "second")
	require.NoError(t, err)
	assert.Equal(t, "first", rec.Data)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jamdb.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Create("a", map[string]any{"n": 42})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(42)}, got.Data)
}

func TestQueryAndOrdering(t *testing.T) {
	s := openTestStore(t)
	for i, ref := range []string{"a", "b", "c"} {
		_, err := s.Create(ref, map[string]any{"n": i})
		require.NoError(t, err)
	}

	recs, err := s.Query(
		[]backend.Clause{backend.Where("n", backend.Ge, 1)},
		backend.Desc("n"),
	)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].Ref)
	assert.Equal(t, "b", recs[1].Ref)
}

func TestBulkReadOrderAndMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create("a", "one")
	require.NoError(t, err)
	_, err = s.Create("b", "two")
	require.NoError(t, err)

	recs, err := s.BulkRead([]string{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, "b", recs[0].Ref)
	assert.Equal(t, "a", recs[1].Ref)

	_, err = s.BulkRead([]string{"a", "gone"})
	assert.True(t, errors.IsNotFound(err))
}

func TestClear(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Create("a", "one")
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestDescriptorRequiresPath(t *testing.T) {
	_, err := backend.FromDescriptor(types.BackendDescriptor{Backend: "boltdb"})
	assert.Error(t, err)

	b, err := backend.FromDescriptor(types.BackendDescriptor{
		Backend:  "boltdb",
		Settings: map[string]any{"path": filepath.Join(t.TempDir(), "x.db")},
	})
	require.NoError(t, err)
	require.NoError(t, b.Close())
}
