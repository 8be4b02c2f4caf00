package blob

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	base := t.TempDir()
	store, err := NewLocalStore(filepath.Join(base, "uploads"), filepath.Join(base, ".tmp.uploads"))
	require.NoError(t, err)
	return store
}

func TestNewLocalStoreCleansStaging(t *testing.T) {
	base := t.TempDir()
	staging := filepath.Join(base, ".tmp.uploads")
	require.NoError(t, os.MkdirAll(staging, os.ModePerm))

	leftover := filepath.Join(staging, "half-written-upload")
	require.NoError(t, os.WriteFile(leftover, []byte("junk"), 0o644))

	_, err := NewLocalStore(filepath.Join(base, "uploads"), staging)
	require.NoError(t, err)

	_, err = os.Stat(leftover)
	require.True(t, os.IsNotExist(err), "staging leftovers should be swept at startup")
}

func TestStagePromoteOpenRemove(t *testing.T) {
	store := newTestStore(t)

	content := "Hello, world!"
	tempPath, size, err := store.Stage(strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), size)

	_, err = os.Stat(tempPath)
	require.NoError(t, err, "staged file should exist before promote")

	id := "test_file_id_12345"
	err = store.Promote(tempPath, id)
	require.NoError(t, err)

	_, err = os.Stat(tempPath)
	require.True(t, os.IsNotExist(err), "staged file should be gone after promote")

	readCloser, err := store.Open(id)
	require.NoError(t, err)
	retrieved, err := io.ReadAll(readCloser)
	require.NoError(t, err)
	readCloser.Close()
	require.Equal(t, content, string(retrieved))

	err = store.Remove(id)
	require.NoError(t, err)

	_, err = store.Open(id)
	require.Error(t, err)
}

func TestPromoteRejectsPathSeparators(t *testing.T) {
	store := newTestStore(t)

	tempPath, _, err := store.Stage(strings.NewReader("x"))
	require.NoError(t, err)

	err = store.Promote(tempPath, "../escape")
	require.Error(t, err)

	err = store.Promote(tempPath, "")
	require.Error(t, err)
}

func TestRemoveNonExistent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Remove("non_existent_id"))
}

func TestDiscard(t *testing.T) {
	store := newTestStore(t)

	tempPath, _, err := store.Stage(strings.NewReader("abandoned"))
	require.NoError(t, err)

	require.NoError(t, store.Discard(tempPath))
	require.NoError(t, store.Discard(tempPath), "discard is idempotent")
}
