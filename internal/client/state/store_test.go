package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, dbPath string) *Store {
	t.Helper()
	store := New(dbPath)
	require.NoError(t, store.Open())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreDefaults(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "state.db"))

	watermark, err := store.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(0), watermark, "fresh store has no watermark")

	rootID, err := store.RemoteRootID()
	require.NoError(t, err)
	assert.Empty(t, rootID)
}

func TestStoreRoundTrip(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "state.db"))

	require.NoError(t, store.SetWatermark(1712345678901))
	watermark, err := store.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(1712345678901), watermark)

	require.NoError(t, store.SetRemoteRootID("folder-abc"))
	rootID, err := store.RemoteRootID()
	require.NoError(t, err)
	assert.Equal(t, "folder-abc", rootID)

	// overwrite wins
	require.NoError(t, store.SetWatermark(1712345678999))
	watermark, err = store.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(1712345678999), watermark)
}

func TestStoreSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state.db")

	store := New(dbPath)
	require.NoError(t, store.Open())
	require.NoError(t, store.SetWatermark(42))
	require.NoError(t, store.SetRemoteRootID("folder-xyz"))
	require.NoError(t, store.Close())

	reopened := openTestStore(t, dbPath)
	watermark, err := reopened.Watermark()
	require.NoError(t, err)
	assert.Equal(t, int64(42), watermark)

	rootID, err := reopened.RemoteRootID()
	require.NoError(t, err)
	assert.Equal(t, "folder-xyz", rootID)
}

func TestStoreDoubleOpen(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "state.db"))
	assert.Error(t, store.Open())
}
