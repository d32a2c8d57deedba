/*
scheduler.go - Automated reminder scheduler

PURPOSE:
  Fires reminder passes at their designated local wall-clock slots:
  manual nudges mid-morning and afternoon, the auto-tracking nudge at end
  of day, geofence confirmations hourly during office hours, and the
  weekly summary on Monday morning.

DESIGN:
  - Runs a background goroutine with a short check interval
  - All slot matching is done in the reference timezone's wall clock
  - A (kind, date, slot) fires at most once per day: ticks are deduped,
    so the interval only controls firing latency within the slot hour
  - Each fired pass is a normal job.Runner run and lands in run history

USAGE:
  scheduler := NewReminderScheduler(runner)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRun endpoint (manual passes)
  - job/run.go: the pass each slot executes
*/
package api

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/job"
)

// =============================================================================
// TIMETABLE
// =============================================================================

// Slot is one scheduled send window.
type Slot struct {
	Kind  engine.ReminderKind
	Label string // human-readable slot times
	Days  string // human-readable day filter

	// due returns the slot identifier active at the local instant, if any.
	due func(local time.Time) (string, bool)
}

func weekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Timetable is the deployment's send schedule, expressed in the reference
// timezone's wall clock.
func Timetable() []Slot {
	return []Slot{
		{
			Kind:  engine.ManualReminder,
			Label: "10:00, 13:00, 16:00",
			Days:  "Mon-Fri",
			due: func(local time.Time) (string, bool) {
				if !weekday(local) {
					return "", false
				}
				switch local.Hour() {
				case 10, 13, 16:
					return fmt.Sprintf("%02d:00", local.Hour()), true
				}
				return "", false
			},
		},
		{
			Kind:  engine.AutoReminder,
			Label: "18:00",
			Days:  "Mon-Fri",
			due: func(local time.Time) (string, bool) {
				if weekday(local) && local.Hour() == 18 {
					return "18:00", true
				}
				return "", false
			},
		},
		{
			Kind:  engine.GeofenceConfirmation,
			Label: "hourly 09:00-17:00",
			Days:  "Mon-Fri",
			due: func(local time.Time) (string, bool) {
				if weekday(local) && local.Hour() >= 9 && local.Hour() <= 17 {
					return fmt.Sprintf("%02d:00", local.Hour()), true
				}
				return "", false
			},
		},
		{
			Kind:  engine.WeeklySummary,
			Label: "09:00",
			Days:  "Mon",
			due: func(local time.Time) (string, bool) {
				if local.Weekday() == engine.SummaryWeekday && local.Hour() == 9 {
					return "09:00", true
				}
				return "", false
			},
		},
	}
}

// =============================================================================
// SCHEDULER
// =============================================================================

// ReminderScheduler fires timetable slots against the runner.
type ReminderScheduler struct {
	Runner        *job.Runner
	CheckInterval time.Duration
	Enabled       bool

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex

	fired map[string]bool // "kind|date|slot" -> already fired
}

// NewReminderScheduler creates a scheduler with the default timetable.
func NewReminderScheduler(runner *job.Runner) *ReminderScheduler {
	return &ReminderScheduler{
		Runner:        runner,
		CheckInterval: 1 * time.Minute,
		Enabled:       true,
		Now:           time.Now,
		stop:          make(chan bool),
		fired:         make(map[string]bool),
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	ticker := rs.ticker
	if ticker != nil {
		ticker.Stop()
		close(rs.stop)
		rs.ticker = nil
	}
	rs.mu.Unlock()

	if ticker == nil {
		return
	}
	// Wait outside the lock: the running pass still needs rs.mu to mark
	// its slot fired before the goroutine can exit.
	rs.wg.Wait()
	log.Println("[Scheduler] Stopped")
}

func (rs *ReminderScheduler) run() {
	defer rs.wg.Done()

	// Check immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *ReminderScheduler) RunNow() {
	rs.checkAndProcess()
}

func (rs *ReminderScheduler) checkAndProcess() {
	now := rs.Now()
	clock := engine.NewClock(now)
	local := now.In(clock.Zone)
	date := clock.Today()

	for _, slot := range Timetable() {
		slotID, ok := slot.due(local)
		if !ok {
			continue
		}

		key := fmt.Sprintf("%s|%s|%s", slot.Kind, date, slotID)
		if rs.alreadyFired(key) {
			continue
		}

		log.Printf("[Scheduler] Firing %s for slot %s %s", slot.Kind, date, slotID)
		if _, err := rs.Runner.Run(context.Background(), slot.Kind, clock, false); err != nil {
			log.Printf("[Scheduler] Run %s failed: %v", slot.Kind, err)
			// Marked fired regardless: a failed slot is not retried within
			// the hour, the next slot picks up.
		}
		rs.markFired(key, date)
	}
}

func (rs *ReminderScheduler) alreadyFired(key string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.fired[key]
}

func (rs *ReminderScheduler) markFired(key, date string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.fired[key] = true

	// Drop entries from previous dates so the map does not grow unbounded.
	marker := "|" + date + "|"
	for k := range rs.fired {
		if !strings.Contains(k, marker) {
			delete(rs.fired, k)
		}
	}
}
