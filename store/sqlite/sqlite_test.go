package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridhq/reminder-engine/dispatch"
	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/job"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, startedAt time.Time) job.RunRecord {
	return job.RunRecord{
		ID:        id,
		Kind:      engine.ManualReminder,
		Date:      "2026-05-05",
		Status:    "running",
		StartedAt: startedAt,
		Summary:   job.Summary{Skipped: map[engine.Reason]int{}},
	}
}

func TestSaveAndCompleteRunRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: a running pass
	started := time.Date(2026, 5, 5, 0, 5, 0, 0, time.UTC)
	run := sampleRun("run-1", started)
	require.NoError(t, store.SaveRun(ctx, run))

	// WHEN: the pass completes with counts
	completed := started.Add(3 * time.Second)
	run.Status = "completed"
	run.CompletedAt = &completed
	run.Summary = job.Summary{
		Evaluated: 10, Eligible: 4, Sent: 4,
		Delivered: 3, Rejected: 1,
		Skipped: map[engine.Reason]int{
			engine.ReasonAlreadyLogged:    5,
			engine.ReasonInvalidPushToken: 1,
		},
	}
	require.NoError(t, store.CompleteRun(ctx, run))

	// THEN: GetRun returns the full record including the skip breakdown
	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, engine.ManualReminder, got.Kind)
	assert.Equal(t, "2026-05-05", got.Date)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 10, got.Summary.Evaluated)
	assert.Equal(t, 3, got.Summary.Delivered)
	assert.Equal(t, 5, got.Summary.Skipped[engine.ReasonAlreadyLogged])
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(completed))
	assert.True(t, got.StartedAt.Equal(started))
}

func TestGetRunReturnsNilWhenAbsent(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 5, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, store.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestFailedRunKeepsErrorText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-err", time.Now().UTC())
	require.NoError(t, store.SaveRun(ctx, run))

	now := time.Now().UTC()
	run.Status = "failed"
	run.Error = "fetch snapshot: userdb unreachable"
	run.CompletedAt = &now
	require.NoError(t, store.CompleteRun(ctx, run))

	got, err := store.GetRun(ctx, "run-err")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "fetch snapshot: userdb unreachable", got.Error)
}

func TestSaveAndListOutcomes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", time.Now().UTC())))
	outcomes := []job.OutcomeRecord{
		{UserID: "u-2", Status: dispatch.RelayRejected, Reason: "DeviceNotRegistered"},
		{UserID: "u-1", Status: dispatch.Delivered},
		{UserID: "u-3", Status: dispatch.TransportFailure, Reason: "connection refused"},
	}
	require.NoError(t, store.SaveOutcomes(ctx, "run-1", outcomes))

	got, err := store.ListOutcomes(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// ordered by user id
	assert.Equal(t, "u-1", got[0].UserID)
	assert.Equal(t, dispatch.Delivered, got[0].Status)
	assert.Empty(t, got[0].Reason)
	assert.Equal(t, "DeviceNotRegistered", got[1].Reason)
	assert.Equal(t, dispatch.TransportFailure, got[2].Status)
}

func TestRejectedTokenCandidates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// GIVEN: two runs, each rejecting the same token plus one more
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-1", time.Now().UTC())))
	require.NoError(t, store.SaveRun(ctx, sampleRun("run-2", time.Now().UTC())))
	require.NoError(t, store.SaveOutcomes(ctx, "run-1", []job.OutcomeRecord{
		{UserID: "u-stale", Status: dispatch.RelayRejected, Reason: "DeviceNotRegistered"},
		{UserID: "u-fine", Status: dispatch.Delivered},
	}))
	require.NoError(t, store.SaveOutcomes(ctx, "run-2", []job.OutcomeRecord{
		{UserID: "u-stale", Status: dispatch.RelayRejected, Reason: "DeviceNotRegistered"},
		{UserID: "u-gone", Status: dispatch.RelayRejected, Reason: "InvalidCredentials"},
	}))

	// THEN: candidates are distinct, rejected-only, sorted
	ids, err := store.RejectedTokenCandidates(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"u-gone", "u-stale"}, ids)

	// AND: a cutoff in the future excludes everything
	ids, err = store.RejectedTokenCandidates(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, ids)
}
