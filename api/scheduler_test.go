package api_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hybridhq/reminder-engine/api"
	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/job"
	"github.com/hybridhq/reminder-engine/store/userdb"
)

// sydneyInstant returns the UTC instant matching the given local wall time in
// the reference zone.
func sydneyInstant(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(engine.ReferenceZone)
	require.NoError(t, err)
	return time.Date(year, month, day, hour, min, 0, 0, loc).UTC()
}

// newTestScheduler pins the scheduler's clock and records fired kinds
// through an empty-fleet runner.
func newTestScheduler(t *testing.T) (*api.ReminderScheduler, *memstoreRecorder) {
	t.Helper()

	recorder := &memstoreRecorder{}
	runner := &job.Runner{
		Users: &fixedSource{snap: &userdb.Snapshot{}},
		Relay: deliverAllSender{},
		Runs:  recorder,
	}
	return api.NewReminderScheduler(runner), recorder
}

// memstoreRecorder keeps just the run kinds, in fire order.
type memstoreRecorder struct {
	saved []job.RunRecord
}

func (m *memstoreRecorder) SaveRun(_ context.Context, run job.RunRecord) error {
	m.saved = append(m.saved, run)
	return nil
}
func (m *memstoreRecorder) CompleteRun(context.Context, job.RunRecord) error { return nil }
func (m *memstoreRecorder) SaveOutcomes(context.Context, string, []job.OutcomeRecord) error {
	return nil
}

func (m *memstoreRecorder) kinds() []engine.ReminderKind {
	var kinds []engine.ReminderKind
	for _, run := range m.saved {
		kinds = append(kinds, run.Kind)
	}
	return kinds
}

func TestScheduler_MorningSlotFiresOncePerDay(t *testing.T) {
	// GIVEN: Tuesday 10:05 local, inside the first manual slot
	sched, recorder := newTestScheduler(t)
	now := sydneyInstant(t, 2026, time.May, 5, 10, 5)
	sched.Now = func() time.Time { return now }

	// WHEN: the check runs three times within the same hour
	sched.RunNow()
	sched.RunNow()
	now = now.Add(20 * time.Minute)
	sched.RunNow()

	// THEN: the geofence slot also covers 10:00, so exactly two passes fire
	assert.Equal(t, []engine.ReminderKind{engine.ManualReminder, engine.GeofenceConfirmation}, recorder.kinds())
}

func TestScheduler_DistinctSlotsOfOneKindFireSeparately(t *testing.T) {
	sched, recorder := newTestScheduler(t)

	for _, hour := range []int{10, 13, 16} {
		now := sydneyInstant(t, 2026, time.May, 5, hour, 1)
		sched.Now = func() time.Time { return now }
		sched.RunNow()
	}

	var manual int
	for _, kind := range recorder.kinds() {
		if kind == engine.ManualReminder {
			manual++
		}
	}
	assert.Equal(t, 3, manual, "each manual slot is its own dedup key")
}

func TestScheduler_NothingFiresOnWeekends(t *testing.T) {
	// Saturday 2026-05-02, 10:05 local
	sched, recorder := newTestScheduler(t)
	now := sydneyInstant(t, 2026, time.May, 2, 10, 5)
	sched.Now = func() time.Time { return now }

	sched.RunNow()
	assert.Empty(t, recorder.kinds())
}

func TestScheduler_WeeklySummaryOnlyMondayNine(t *testing.T) {
	sched, recorder := newTestScheduler(t)

	// Monday 2026-05-04, 09:30 local: weekly summary plus the geofence slot
	now := sydneyInstant(t, 2026, time.May, 4, 9, 30)
	sched.Now = func() time.Time { return now }
	sched.RunNow()
	assert.Contains(t, recorder.kinds(), engine.WeeklySummary)

	// Tuesday 09:30 fires geofence only
	sched2, recorder2 := newTestScheduler(t)
	now2 := sydneyInstant(t, 2026, time.May, 5, 9, 30)
	sched2.Now = func() time.Time { return now2 }
	sched2.RunNow()
	assert.Equal(t, []engine.ReminderKind{engine.GeofenceConfirmation}, recorder2.kinds())
}

func TestScheduler_EndOfDayAutoSlot(t *testing.T) {
	sched, recorder := newTestScheduler(t)
	now := sydneyInstant(t, 2026, time.May, 5, 18, 0)
	sched.Now = func() time.Time { return now }

	sched.RunNow()

	// 18:00 is past the geofence window, so only the auto nudge fires
	assert.Equal(t, []engine.ReminderKind{engine.AutoReminder}, recorder.kinds())
}

// gatedSource blocks FetchAll until released, so a test can hold a pass
// in flight at a known point.
type gatedSource struct {
	entered sync.Once
	inPass  chan struct{}
	release chan struct{}
}

func (g *gatedSource) FetchAll(_ context.Context) (*userdb.Snapshot, error) {
	g.entered.Do(func() { close(g.inPass) })
	<-g.release
	return &userdb.Snapshot{}, nil
}

func TestScheduler_StopReturnsWhileAPassIsInFlight(t *testing.T) {
	// GIVEN: a pass blocked mid-snapshot at a due slot (Tuesday 10:05)
	source := &gatedSource{inPass: make(chan struct{}), release: make(chan struct{})}
	runner := &job.Runner{Users: source, Relay: deliverAllSender{}, Runs: &memstoreRecorder{}}
	sched := api.NewReminderScheduler(runner)
	now := sydneyInstant(t, 2026, time.May, 5, 10, 5)
	sched.Now = func() time.Time { return now }
	sched.CheckInterval = time.Hour

	sched.Start()
	<-source.inPass

	// WHEN: Stop is requested mid-pass and the pass then completes
	stopped := make(chan struct{})
	go func() {
		sched.Stop()
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)
	close(source.release)

	// THEN: Stop returns; it must not hold the mutex the finishing pass
	// needs to mark its slot fired
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the in-flight pass finished")
	}
}

func TestScheduler_NewDateResetsDedup(t *testing.T) {
	sched, recorder := newTestScheduler(t)

	now := sydneyInstant(t, 2026, time.May, 5, 18, 0)
	sched.Now = func() time.Time { return now }
	sched.RunNow()

	// next day, same slot
	now = sydneyInstant(t, 2026, time.May, 6, 18, 0)
	sched.RunNow()

	assert.Equal(t, []engine.ReminderKind{engine.AutoReminder, engine.AutoReminder}, recorder.kinds())
}
