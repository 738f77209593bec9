package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestCreateAndListRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateRun(ctx, map[string]any{"zoom": 15})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, StatusRunning, runs[0].Status)
	assert.Contains(t, runs[0].Params, "zoom")
	assert.Nil(t, runs[0].CompletedAt)
}

func TestCompleteRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateRun(ctx, nil)
	require.NoError(t, err)

	err = st.CompleteRun(ctx, id, Stats{Cells: 14, Tasks: 56, TasksFailed: 2, Records: 310})
	require.NoError(t, err)

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.Equal(t, 14, runs[0].Cells)
	assert.Equal(t, 56, runs[0].Tasks)
	assert.Equal(t, 2, runs[0].TasksFailed)
	assert.Equal(t, 310, runs[0].Records)
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestFailRun(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateRun(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, st.FailRun(ctx, id, "browser crashed"))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "browser crashed", runs[0].Error)
}

func TestCompleteRun_UnknownID(t *testing.T) {
	st := newTestStore(t)
	err := st.CompleteRun(context.Background(), "no-such-run", Stats{})
	assert.Error(t, err)
}

func TestListRuns_LimitApplied(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := st.CreateRun(ctx, nil)
		require.NoError(t, err)
	}

	runs, err := st.ListRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
