package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hybridhq/reminder-engine/record"
)

// =============================================================================
// MONTHLY ATTENDANCE ACCOUNTING
// =============================================================================
// Pure computation over a record snapshot and a reference clock. Called per
// user when building the weekly summary body, and by the ops preview
// endpoint. Idempotent: same snapshot + clock, same report.

// Report is the monthly office-attendance position for one user.
type Report struct {
	Month string // "2026-01"

	WorkingDays         int // Mon-Fri calendar days in the month
	HolidaysInMonth     int // weekday holiday dates, deduped across cached countries
	LeavesInMonth       int // weekday dates with status "leave"
	AdjustedWorkingDays int // working - holidays - leaves, floored at 0

	TargetMode          record.TargetMode
	MonthlyTarget       int
	RequiredOfficeDays  int
	OfficeDaysCompleted int
	DaysRemaining       int
}

// MonthlyReport computes the report for the clock's current month.
func MonthlyReport(r *record.UserRecord, clock Clock) Report {
	year, month := clock.Month()
	holidays := r.HolidayDates()

	rep := Report{
		Month:         fmt.Sprintf("%04d-%02d", year, int(month)),
		TargetMode:    r.EffectiveTargetMode(),
		MonthlyTarget: r.EffectiveMonthlyTarget(),
	}

	DaysOfMonth(year, month, clock.Zone, func(key record.DateKey, wd time.Weekday) {
		if IsWeekdayDate(wd) {
			rep.WorkingDays++
			if _, ok := holidays[key]; ok {
				rep.HolidaysInMonth++
			}
			if r.StatusOn(key) == record.StatusLeave {
				rep.LeavesInMonth++
			}
		}
		// Completed office days count every date in the month, weekend
		// entries included.
		if r.StatusOn(key) == record.StatusOffice {
			rep.OfficeDaysCompleted++
		}
	})

	rep.AdjustedWorkingDays = rep.WorkingDays - rep.HolidaysInMonth - rep.LeavesInMonth
	if rep.AdjustedWorkingDays < 0 {
		rep.AdjustedWorkingDays = 0
	}

	rep.RequiredOfficeDays = requiredOfficeDays(rep.TargetMode, rep.MonthlyTarget, rep.AdjustedWorkingDays)

	rep.DaysRemaining = rep.RequiredOfficeDays - rep.OfficeDaysCompleted
	if rep.DaysRemaining < 0 {
		rep.DaysRemaining = 0
	}
	return rep
}

// requiredOfficeDays applies the target mode. Percentage targets round up:
// 50% of 21 adjusted working days is 11 required days, not 10. Fixed-day
// targets are taken verbatim, never scaled by the adjusted denominator.
func requiredOfficeDays(mode record.TargetMode, target, adjustedWorkingDays int) int {
	if mode == record.TargetFixedDays {
		return target
	}
	required := decimal.NewFromInt(int64(target)).
		Mul(decimal.NewFromInt(int64(adjustedWorkingDays))).
		Div(decimal.NewFromInt(100)).
		Ceil()
	return int(required.IntPart())
}

// =============================================================================
// SUMMARY COPY
// =============================================================================
// User-facing copy contract: the thresholds and phrasings below ship in the
// app's weekly summary and must not drift.

// Message selects the weekly summary body for the report.
func (rep Report) Message() string {
	switch {
	case rep.DaysRemaining == 0:
		return fmt.Sprintf("Great job! You've hit your office target this month with %d office days. 🎉", rep.OfficeDaysCompleted)
	case rep.DaysRemaining == 1:
		return "Almost there! Just 1 more office day to reach your monthly target."
	default:
		return fmt.Sprintf("You have %d office days left to reach your monthly target.", rep.DaysRemaining)
	}
}
