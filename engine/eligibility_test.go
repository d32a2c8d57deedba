package engine_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/record"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const validToken = "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]"

// sydney returns a clock pinned to the given Sydney wall-clock time.
func sydney(year int, month time.Month, day, hour int) engine.Clock {
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		panic(err)
	}
	return engine.NewClockIn(time.Date(year, month, day, hour, 0, 0, 0, loc), loc)
}

func manualUser() *record.UserRecord {
	return &record.UserRecord{
		ID:        "iPhone15_1700000000000_abc123",
		PushToken: validToken,
		Profile:   &record.Profile{TrackingMode: record.TrackingManual},
	}
}

func autoUser() *record.UserRecord {
	u := manualUser()
	u.Profile.TrackingMode = record.TrackingAuto
	return u
}

// =============================================================================
// MANUAL REMINDER RULES
// =============================================================================

func TestEvaluate_ManualReminder_EligibleOnPlainWeekday(t *testing.T) {
	// GIVEN: manual-mode user, valid token, nothing logged, no holidays
	// WHEN: evaluated on a Tuesday
	// THEN: eligible

	clock := sydney(2026, time.January, 20, 10) // Tuesday
	res, err := engine.Evaluate(manualUser(), engine.ManualReminder, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Eligible {
		t.Fatalf("expected eligible, got reasons %v", res.Reasons)
	}
}

func TestEvaluate_ManualReminder_AlreadyLoggedToday(t *testing.T) {
	// GIVEN: user logged "office" for today's Sydney date
	// WHEN: evaluated that same day
	// THEN: not eligible, with the already_logged reason

	u := manualUser()
	u.Attendance = map[record.DateKey]record.Entry{
		"2026-01-20": {Status: record.StatusOffice},
	}
	clock := sydney(2026, time.January, 20, 10)

	res, err := engine.Evaluate(u, engine.ManualReminder, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Eligible {
		t.Fatal("expected not eligible")
	}
	if !res.Has(engine.ReasonAlreadyLogged) {
		t.Errorf("expected already_logged reason, got %v", res.Reasons)
	}
}

func TestEvaluate_ManualReminder_NullEntryStillReminds(t *testing.T) {
	// GIVEN: today's attendance key holds an explicit JSON null
	// THEN: the user has not logged and the reminder still goes out

	u := manualUser()
	if err := json.Unmarshal([]byte(`{"2026-01-20": null}`), &u.Attendance); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	clock := sydney(2026, time.January, 20, 10)

	res, err := engine.Evaluate(u, engine.ManualReminder, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Eligible {
		t.Errorf("expected eligible despite the null mark, got %v", res.Reasons)
	}
}

func TestEvaluate_ManualReminder_Weekend(t *testing.T) {
	clock := sydney(2026, time.January, 24, 10) // Saturday
	res, err := engine.Evaluate(manualUser(), engine.ManualReminder, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Eligible || !res.Has(engine.ReasonWeekend) {
		t.Errorf("expected weekend skip, got %+v", res)
	}
}

func TestEvaluate_ManualReminder_CachedHoliday(t *testing.T) {
	// GIVEN: Australia Day cached under AU_2026
	// WHEN: evaluated on 2026-01-26 Sydney time (a Monday)
	// THEN: the holiday rule fails, not the weekend rule

	u := manualUser()
	u.CachedHolidays = map[string]map[record.DateKey]string{
		"AU_2026": {"2026-01-26": "Australia Day"},
	}
	clock := sydney(2026, time.January, 26, 10)

	res, err := engine.Evaluate(u, engine.ManualReminder, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Eligible || !res.Has(engine.ReasonHoliday) {
		t.Errorf("expected holiday skip, got %+v", res)
	}
	if res.Has(engine.ReasonWeekend) {
		t.Error("Monday must not be flagged as weekend")
	}
}

func TestEvaluate_ManualReminder_HolidayFromAnyCachedCountry(t *testing.T) {
	// Legacy records can hold caches for several countries; all are scanned.
	u := manualUser()
	u.CachedHolidays = map[string]map[record.DateKey]string{
		"AU_2025": {},
		"NZ_2026": {"2026-01-20": "Some NZ Holiday"},
	}
	clock := sydney(2026, time.January, 20, 10)

	res, _ := engine.Evaluate(u, engine.ManualReminder, clock)
	if !res.Has(engine.ReasonHoliday) {
		t.Errorf("expected holiday from secondary country cache, got %+v", res)
	}
}

func TestEvaluate_ManualReminder_AutoModeUserSkipped(t *testing.T) {
	clock := sydney(2026, time.January, 20, 10)
	res, _ := engine.Evaluate(autoUser(), engine.ManualReminder, clock)
	if res.Eligible || !res.Has(engine.ReasonWrongTrackingMode) {
		t.Errorf("expected wrong_tracking_mode, got %+v", res)
	}
}

func TestEvaluate_CollectsAllFailedRules(t *testing.T) {
	// GIVEN: a record failing the token, mode and logged rules at once
	// THEN: every failed rule is reported, not just the first

	u := autoUser()
	u.PushToken = "not-a-relay-token"
	u.Attendance = map[record.DateKey]record.Entry{"2026-01-20": {Status: record.StatusRemote}}
	clock := sydney(2026, time.January, 20, 10)

	res, _ := engine.Evaluate(u, engine.ManualReminder, clock)
	for _, want := range []engine.Reason{
		engine.ReasonInvalidPushToken,
		engine.ReasonWrongTrackingMode,
		engine.ReasonAlreadyLogged,
	} {
		if !res.Has(want) {
			t.Errorf("missing reason %s in %v", want, res.Reasons)
		}
	}
}

// =============================================================================
// TIMEZONE BEHAVIOR
// =============================================================================

func TestEvaluate_TodayIsSydneyLocalDate_NotUTC(t *testing.T) {
	// GIVEN: an instant that is Monday 2026-01-19 20:00 UTC, which is
	//        Tuesday 2026-01-20 07:00 in Sydney (AEDT, UTC+11)
	// WHEN: the user logged attendance for the SYDNEY date
	// THEN: the already_logged rule fires; the UTC date is irrelevant

	u := manualUser()
	u.Attendance = map[record.DateKey]record.Entry{"2026-01-20": {Status: record.StatusOffice}}
	clock := engine.NewClock(time.Date(2026, time.January, 19, 20, 0, 0, 0, time.UTC))

	if got := clock.Today(); got != "2026-01-20" {
		t.Fatalf("expected Sydney date 2026-01-20, got %s", got)
	}
	res, _ := engine.Evaluate(u, engine.ManualReminder, clock)
	if !res.Has(engine.ReasonAlreadyLogged) {
		t.Errorf("expected already_logged against the Sydney-local date, got %+v", res)
	}
}

// =============================================================================
// AUTO / GEOFENCE / WEEKLY KINDS
// =============================================================================

func TestEvaluate_AutoReminder_EligibleForAutoMode(t *testing.T) {
	clock := sydney(2026, time.January, 20, 18)
	res, _ := engine.Evaluate(autoUser(), engine.AutoReminder, clock)
	if !res.Eligible {
		t.Errorf("expected eligible, got %v", res.Reasons)
	}
}

func TestEvaluate_GeofenceConfirmation_RequiresTodayTrigger(t *testing.T) {
	// GIVEN: trigger fired yesterday, not today
	// THEN: no_geofence_trigger

	u := autoUser()
	u.NearOffice = &record.GeofenceTrigger{Detected: true, Date: "2026-01-19"}
	clock := sydney(2026, time.January, 20, 11)

	res, _ := engine.Evaluate(u, engine.GeofenceConfirmation, clock)
	if res.Eligible || !res.Has(engine.ReasonNoGeofenceTrigger) {
		t.Errorf("expected no_geofence_trigger, got %+v", res)
	}

	// WHEN: the trigger matches today and nothing is logged
	u.NearOffice.Date = "2026-01-20"
	res, _ = engine.Evaluate(u, engine.GeofenceConfirmation, clock)
	if !res.Eligible {
		t.Errorf("expected eligible with today's trigger, got %v", res.Reasons)
	}
}

func TestEvaluate_WeeklySummary_MondayOnly_AnyMode(t *testing.T) {
	monday := sydney(2026, time.January, 19, 9)
	tuesday := sydney(2026, time.January, 20, 9)

	// Manual-mode user gets the summary too: the kind ignores tracking mode.
	res, _ := engine.Evaluate(manualUser(), engine.WeeklySummary, monday)
	if !res.Eligible {
		t.Errorf("expected manual user eligible on Monday, got %v", res.Reasons)
	}
	res, _ = engine.Evaluate(autoUser(), engine.WeeklySummary, monday)
	if !res.Eligible {
		t.Errorf("expected auto user eligible on Monday, got %v", res.Reasons)
	}

	res, _ = engine.Evaluate(manualUser(), engine.WeeklySummary, tuesday)
	if res.Eligible || !res.Has(engine.ReasonNotSummaryDay) {
		t.Errorf("expected not_summary_day on Tuesday, got %+v", res)
	}
}

// =============================================================================
// CONFIGURATION ERRORS
// =============================================================================

func TestEvaluate_UnknownKindIsRunFatal(t *testing.T) {
	clock := sydney(2026, time.January, 20, 10)
	_, err := engine.Evaluate(manualUser(), engine.ReminderKind("nonsense"), clock)
	if !errors.Is(err, engine.ErrUnknownReminderKind) {
		t.Fatalf("expected ErrUnknownReminderKind, got %v", err)
	}
	if !engine.IsRunFatal(err) {
		t.Error("unknown kind must classify as run-fatal")
	}
}

// =============================================================================
// DEFECTIVE RECORDS
// =============================================================================

func TestEvaluate_ProfilelessRecordDefaultsToManual(t *testing.T) {
	// GIVEN: an active legacy record with attendance but no profile at all
	// THEN: it evaluates as a manual-mode user, no panic, no error

	u := &record.UserRecord{
		ID:        "SM-G991B_1690000000000_xyz",
		PushToken: validToken,
		Attendance: map[record.DateKey]record.Entry{
			"2026-01-19": {Status: record.StatusOffice},
		},
	}
	clock := sydney(2026, time.January, 20, 10)

	res, err := engine.Evaluate(u, engine.ManualReminder, clock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Eligible {
		t.Errorf("expected profileless record eligible for manual reminder, got %v", res.Reasons)
	}
}
