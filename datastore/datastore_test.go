package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func newTestStore(t *testing.T) (*DataStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "store.json")
	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	return ds, path
}

func TestPutGetDelete(t *testing.T) {
	ds, _ := newTestStore(t)
	defer ds.Close()

	require.NoError(t, ds.Put("a", record{Name: "x", Items: []string{"1", "2"}}))

	var got record
	ok, err := ds.Get("a", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, record{Name: "x", Items: []string{"1", "2"}}, got)

	ok, err = ds.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ds.Delete("a"))
	ok, _ = ds.Get("a", &got)
	assert.False(t, ok)
	assert.Zero(t, ds.Stats().MemorySize)
}

func TestPersistsAcrossReopen(t *testing.T) {
	ds, path := newTestStore(t)
	require.NoError(t, ds.Put("b", record{Name: "saved"}))
	require.NoError(t, ds.Put("a", record{Name: "first"}))
	require.NoError(t, ds.Close())

	assert.ErrorIs(t, ds.Put("c", record{}), ErrClosed)

	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	reopened, err := NewWithConfig(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []string{"a", "b"}, reopened.Keys())
	var got record
	ok, err := reopened.Get("b", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "saved", got.Name)
}

func TestMemoryLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = 0
	cfg.MaxMemorySize = 16
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	defer ds.Close()

	require.NoError(t, ds.Put("k", "short"))
	assert.ErrorIs(t, ds.Put("k2", "this value does not fit"), ErrMemoryLimit)
}

func TestInvalidFileIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := New(path)
	assert.Error(t, err)
}

func TestBackupsAreRotated(t *testing.T) {
	ds, path := newTestStore(t)
	defer ds.Close()

	for i := range 6 {
		require.NoError(t, ds.Put("k", i))
		require.NoError(t, ds.SaveToFile())
	}

	backups, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), 3)
	assert.NotEmpty(t, backups)
}
