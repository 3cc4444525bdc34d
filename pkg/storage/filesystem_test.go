package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveReadDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("exp-1/results.csv", []byte("a,b\n")))
	data, err := store.Read("exp-1/results.csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))

	require.NoError(t, store.Delete("exp-1/results.csv"))
	_, err = store.Read("exp-1/results.csv")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete("exp-1/results.csv"))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Save("../outside.txt", []byte("x")))
	_, err = store.Read("/etc/passwd")
	assert.Error(t, err)
	_, err = store.Read("")
	assert.Error(t, err)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("old/a.pdf", []byte("old")))
	require.NoError(t, store.Save("new/b.pdf", []byte("new")))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old", "a.pdf"), past, past))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old/a.pdf"}, deleted)

	_, err = store.Read("new/b.pdf")
	assert.NoError(t, err)
}
