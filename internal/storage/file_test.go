package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(ctx, "node_prices")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "node_prices", []byte("first")))
	require.NoError(t, store.Save(ctx, "node_prices", []byte("second")))

	data, err := store.Load(ctx, "node_prices")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), "island_means", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(store.Path("island_means")), entries[0].Name())
}

func TestFileStoreRejectsPathNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Save(context.Background(), "../escape", []byte("x")))
	_, err = store.Load(context.Background(), "a/b")
	assert.Error(t, err)
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	payload := []byte("abc")
	require.NoError(t, store.Save(ctx, "t", payload))
	payload[0] = 'z'

	data, err := store.Load(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}
