package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema())
	return store
}

func TestSQLiteStore_OpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	defer store.Close()
	require.NoError(t, store.InitSchema())

	// Schema init is idempotent.
	require.NoError(t, store.InitSchema())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)

	_, err := store.CreateRun("local", "pit")
	assert.Error(t, err)
	assert.Error(t, store.InitSchema())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)

	run, err := store.CreateRun("hpc", "pit-20240115")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, "pit-20240115", run.Project)

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, store.CompleteRun(run.ID, RunStatusCompleted, ""))

	got, err = store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("no-such-run")
	assert.ErrorContains(t, err, "not found")
}

func TestSQLiteStore_CompleteRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.CompleteRun("no-such-run", RunStatusCompleted, "")
	assert.ErrorContains(t, err, "not found")
}

func TestSQLiteStore_UpdateStageRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateStageRun("no-such-stage", StageStatusSuccess, 10, "")
	assert.ErrorContains(t, err, "not found")
}

func TestSQLiteStore_FailedRunKeepsError(t *testing.T) {
	store := newTestStore(t)

	run, err := store.CreateRun("local", "pit")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(run.ID, RunStatusFailed, "process stage failed"))

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "process stage failed", got.Error)
}

func TestSQLiteStore_GetLatestRun(t *testing.T) {
	store := newTestStore(t)

	latest, err := store.GetLatestRun("local")
	require.NoError(t, err)
	assert.Nil(t, latest, "no runs yet")

	first, err := store.CreateRun("local", "pit-a")
	require.NoError(t, err)
	_, err = store.CreateRun("hpc", "pit-b")
	require.NoError(t, err)

	latest, err = store.GetLatestRun("local")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, first.ID, latest.ID)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.CreateRun("local", "pit")
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteStore_StageRuns(t *testing.T) {
	store := newTestStore(t)

	run, err := store.CreateRun("local", "pit")
	require.NoError(t, err)

	sr, err := store.CreateStageRun(run.ID, "process", "metashape.sh -r process-images.py")
	require.NoError(t, err)
	assert.Equal(t, StageStatusRunning, sr.Status)

	require.NoError(t, store.UpdateStageRun(sr.ID, StageStatusSuccess, 1500, ""))

	skipped, err := store.CreateStageRun(run.ID, "tiles", "")
	require.NoError(t, err)
	require.NoError(t, store.UpdateStageRun(skipped.ID, StageStatusSkipped, 0, "upstream stage failed"))

	stages, err := store.ListStageRuns(run.ID)
	require.NoError(t, err)
	require.Len(t, stages, 2)

	assert.Equal(t, "process", stages[0].Stage)
	assert.Equal(t, StageStatusSuccess, stages[0].Status)
	assert.Equal(t, int64(1500), stages[0].DurationMS)

	assert.Equal(t, "tiles", stages[1].Stage)
	assert.Equal(t, StageStatusSkipped, stages[1].Status)
	assert.Equal(t, "upstream stage failed", stages[1].Error)
}
