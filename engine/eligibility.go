/*
Package engine decides, for a user record and an instant, whether a reminder
should be sent, and computes the monthly attendance accounting behind the
weekly summary.

PURPOSE:
  The same handful of business rules used to be restated inline by every
  notification job, each with its own drift (UTC vs local dates, token
  checks, holiday lookups). This package is the single copy: jobs are thin
  parameterizations of Evaluate and MonthlyReport.

DESIGN PRINCIPLES:
  1. Purity: no I/O, no ambient time; the Clock is an explicit input
  2. Diagnosability: an ineligible result names every failed rule, never
     a bare false
  3. Defect tolerance: malformed records resolve to defaults in the record
     accessors and are evaluated like any other record

SEE ALSO:
  - clock.go: reference timezone handling
  - accounting.go: monthly target and shortfall computation
  - record/access.go: the accessor layer these rules read through
*/
package engine

import (
	"time"

	"github.com/hybridhq/reminder-engine/record"
)

// =============================================================================
// REMINDER KINDS
// =============================================================================

type ReminderKind string

const (
	// ManualReminder nudges self-reporting users who have not logged today.
	// Sent at 10AM, 1PM and 4PM local time on working days.
	ManualReminder ReminderKind = "manual_reminder"

	// AutoReminder is the 6PM end-of-day nudge for geofence-tracked users
	// whose attendance was not auto-detected.
	AutoReminder ReminderKind = "auto_reminder"

	// GeofenceConfirmation asks an auto-tracked user to confirm the office
	// visit their device was detected near today.
	GeofenceConfirmation ReminderKind = "geofence_confirmation"

	// WeeklySummary is the Monday progress summary, sent regardless of
	// tracking mode.
	WeeklySummary ReminderKind = "weekly_summary"
)

// SummaryWeekday is the designated weekly_summary send day.
const SummaryWeekday = time.Monday

// KnownKind reports whether k is one of the defined reminder kinds.
func KnownKind(k ReminderKind) bool {
	switch k {
	case ManualReminder, AutoReminder, GeofenceConfirmation, WeeklySummary:
		return true
	}
	return false
}

// AllKinds lists the defined kinds in a stable order.
func AllKinds() []ReminderKind {
	return []ReminderKind{ManualReminder, AutoReminder, GeofenceConfirmation, WeeklySummary}
}

// =============================================================================
// RULE IDENTIFIERS
// =============================================================================

// Reason identifies one failed eligibility rule. The jobs aggregate these
// into skip counters, so the ids are stable strings, not positions.
type Reason string

const (
	ReasonWrongTrackingMode Reason = "wrong_tracking_mode"
	ReasonInvalidPushToken  Reason = "invalid_push_token"
	ReasonAlreadyLogged     Reason = "already_logged"
	ReasonWeekend           Reason = "weekend"
	ReasonHoliday           Reason = "holiday"
	ReasonNoGeofenceTrigger Reason = "no_geofence_trigger"
	ReasonNotSummaryDay     Reason = "not_summary_day"
)

// Result is the evaluator's answer. When Eligible is false, Reasons holds
// every rule that failed (not just the first), so skip diagnostics can
// explain the fleet.
type Result struct {
	Eligible bool
	Reasons  []Reason
}

func eligible() Result { return Result{Eligible: true} }

func notEligible(reasons []Reason) Result {
	return Result{Eligible: false, Reasons: reasons}
}

// Has reports whether the result failed the given rule.
func (r Result) Has(reason Reason) bool {
	for _, x := range r.Reasons {
		if x == reason {
			return true
		}
	}
	return false
}

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluate decides whether the record should receive the given reminder kind
// at the clock's instant. All rules for a kind are conjunctive; every failed
// rule is collected. Returns ErrUnknownReminderKind for kinds outside the
// table - the one configuration error that must abort a run.
func Evaluate(r *record.UserRecord, kind ReminderKind, clock Clock) (Result, error) {
	if !KnownKind(kind) {
		return Result{}, ErrUnknownReminderKind
	}

	today := clock.Today()
	var failed []Reason

	// Every kind requires a deliverable token.
	if !r.HasValidPushToken() {
		failed = append(failed, ReasonInvalidPushToken)
	}

	switch kind {
	case ManualReminder, AutoReminder:
		wantMode := record.TrackingManual
		if kind == AutoReminder {
			wantMode = record.TrackingAuto
		}
		if r.EffectiveTrackingMode() != wantMode {
			failed = append(failed, ReasonWrongTrackingMode)
		}
		if r.LoggedOn(today) {
			failed = append(failed, ReasonAlreadyLogged)
		}
		if clock.IsWeekend() {
			failed = append(failed, ReasonWeekend)
		}
		if r.IsHoliday(today) {
			failed = append(failed, ReasonHoliday)
		}

	case GeofenceConfirmation:
		if r.EffectiveTrackingMode() != record.TrackingAuto {
			failed = append(failed, ReasonWrongTrackingMode)
		}
		if !r.GeofenceDetectedOn(today) {
			failed = append(failed, ReasonNoGeofenceTrigger)
		}
		if r.LoggedOn(today) {
			failed = append(failed, ReasonAlreadyLogged)
		}

	case WeeklySummary:
		// Unconditional on tracking mode.
		if clock.Weekday() != SummaryWeekday {
			failed = append(failed, ReasonNotSummaryDay)
		}
	}

	if len(failed) > 0 {
		return notEligible(failed), nil
	}
	return eligible(), nil
}
