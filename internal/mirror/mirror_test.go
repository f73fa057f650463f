package mirror

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labreg/internal/labreg"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newStore(t)

	_, err := store.Snapshot()
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	devices := []labreg.Device{
		{ID: 1, StudentID: "S1", SerialNumber: "SN1", MACAddress: "AA:BB:CC:DD:EE:FF", Verified: true},
		{ID: 2, StudentID: "S2", SerialNumber: "SN2", MACAddress: "11:22:33:44:55:66"},
	}
	require.NoError(t, store.SaveSnapshot(devices))

	loaded, err := store.Snapshot()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, devices[0].StudentID, loaded[0].StudentID)
	assert.Equal(t, devices[0].Verified, loaded[0].Verified)
	assert.Equal(t, devices[1].SerialNumber, loaded[1].SerialNumber)
}

func TestSnapshotOverwrite(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.SaveSnapshot([]labreg.Device{{ID: 1}, {ID: 2}}))
	require.NoError(t, store.SaveSnapshot([]labreg.Device{{ID: 3}}))

	loaded, err := store.Snapshot()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 3, loaded[0].ID)
}

func TestCorruptSnapshotReadsAsAbsent(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "devices.json"), []byte("{not json"), 0o600))

	_, err = store.Snapshot()
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestMovements(t *testing.T) {
	store := newStore(t)

	_, ok := store.MovementStatus(1)
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, store.SetMovement(1, labreg.MovementOut, "loaned for exam", now))
	require.NoError(t, store.SetMovement(1, labreg.MovementIn, "", now.Add(time.Hour)))

	status, ok := store.MovementStatus(1)
	require.True(t, ok)
	assert.Equal(t, labreg.MovementIn, status)

	history := store.MovementHistory(1)
	require.Len(t, history, 2)
	assert.Equal(t, labreg.MovementOut, history[0].Status)
	assert.Equal(t, "loaned for exam", history[0].Note)
	assert.Equal(t, labreg.MovementIn, history[1].Status)

	require.NoError(t, store.ClearMovements(1))
	_, ok = store.MovementStatus(1)
	assert.False(t, ok)
	assert.Empty(t, store.MovementHistory(1))
}

func TestMovementsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.SetMovement(5, labreg.MovementOut, "", time.Now()))

	reopened, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	status, ok := reopened.MovementStatus(5)
	require.True(t, ok)
	assert.Equal(t, labreg.MovementOut, status)
}
