package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/converge/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newRun(t *testing.T, source string) *types.Run {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)

	result := types.NewResult("announce")
	result.Record("Subscribed", types.ActionAdd, "y@example.org")
	result.Comment = "List announce has been updated"

	now := time.Now().UTC().Truncate(time.Millisecond)
	return &types.Run{
		ID:         id.String(),
		Source:     source,
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
		Results: []types.StateResult{{
			ID:       "announce-list",
			State:    "mailman.list_present",
			Result:   *result,
			Duration: 250 * time.Millisecond,
		}},
	}
}

func TestBoltStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	run := newRun(t, "site.yaml")

	require.NoError(t, store.SaveRun(run))

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "site.yaml", got.Source)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	require.Len(t, got.Results, 1)
	assert.Equal(t, types.OutcomeTrue, got.Results[0].Result.Outcome)
	assert.Equal(t, map[string]string{"Subscribed": "y@example.org"}, got.Results[0].Result.Changes())
	assert.Equal(t, 250*time.Millisecond, got.Results[0].Duration)
}

func TestBoltStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun("nope")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestBoltStore_SaveRequiresID(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveRun(&types.Run{})
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestBoltStore_ListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	var ids []string
	for _, src := range []string{"a.yaml", "b.yaml", "c.yaml"} {
		run := newRun(t, src)
		require.NoError(t, store.SaveRun(run))
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c.yaml", runs[0].Source)
	assert.Equal(t, "b.yaml", runs[1].Source)
}

func TestBoltStore_PruneRuns(t *testing.T) {
	store := newTestStore(t)

	var last string
	for i := 0; i < 5; i++ {
		run := newRun(t, "site.yaml")
		require.NoError(t, store.SaveRun(run))
		last = run.ID
	}

	pruned, err := store.PruneRuns(2)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, last, runs[0].ID)
}

func TestBoltStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	run := newRun(t, "site.yaml")
	require.NoError(t, store.SaveRun(run))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}
