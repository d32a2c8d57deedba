/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the ops API. These decouple the internal run and
  record types from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/job"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RunDTO represents one reminder pass in API responses.
type RunDTO struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Date        string       `json:"date"`
	DryRun      bool         `json:"dry_run"`
	Status      string       `json:"status"`
	Error       string       `json:"error,omitempty"`
	StartedAt   string       `json:"started_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
	Summary     SummaryDTO   `json:"summary"`
	Outcomes    []OutcomeDTO `json:"outcomes,omitempty"`
}

// SummaryDTO is the operator count set for one pass.
type SummaryDTO struct {
	Evaluated       int            `json:"evaluated"`
	Eligible        int            `json:"eligible"`
	Sent            int            `json:"sent"`
	Delivered       int            `json:"delivered"`
	Rejected        int            `json:"rejected"`
	TransportFailed int            `json:"transport_failed"`
	Defects         int            `json:"defects"`
	Skipped         map[string]int `json:"skipped,omitempty"`
}

// OutcomeDTO is one recipient's dispatch result.
type OutcomeDTO struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// TriggerRunRequest starts a pass for a kind.
type TriggerRunRequest struct {
	Kind   string `json:"kind"`
	DryRun bool   `json:"dry_run"`
}

// FleetStatsDTO is the fleet-wide defect and configuration census.
type FleetStatsDTO struct {
	Total           int            `json:"total"`
	SnapshotDefects int            `json:"snapshot_defects"`
	Platforms       map[string]int `json:"platforms"`
	TrackingModes   map[string]int `json:"tracking_modes"`
	ValidTokens     int            `json:"valid_tokens"`
	MissingProfiles int            `json:"missing_profiles"`
	GeofenceSeen    int            `json:"geofence_seen"`
}

// EligibilityDTO is the evaluator preview for one user.
type EligibilityDTO struct {
	UserID   string   `json:"user_id"`
	Kind     string   `json:"kind"`
	Date     string   `json:"date"`
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons,omitempty"`
}

// ReportDTO is the monthly accounting preview for one user.
type ReportDTO struct {
	UserID              string `json:"user_id"`
	Month               string `json:"month"`
	WorkingDays         int    `json:"working_days"`
	HolidaysInMonth     int    `json:"holidays_in_month"`
	LeavesInMonth       int    `json:"leaves_in_month"`
	AdjustedWorkingDays int    `json:"adjusted_working_days"`
	TargetMode          string `json:"target_mode"`
	MonthlyTarget       int    `json:"monthly_target"`
	RequiredOfficeDays  int    `json:"required_office_days"`
	OfficeDaysCompleted int    `json:"office_days_completed"`
	DaysRemaining       int    `json:"days_remaining"`
	Message             string `json:"message"`
}

// SchedulerStatusDTO reports the timetable and next fire.
type SchedulerStatusDTO struct {
	Enabled   bool      `json:"enabled"`
	Timezone  string    `json:"timezone"`
	Timetable []SlotDTO `json:"timetable"`
}

// SlotDTO is one scheduled send slot.
type SlotDTO struct {
	Kind string `json:"kind"`
	Slot string `json:"slot"`
	Days string `json:"days"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRunDTO(run job.RunRecord) RunDTO {
	dto := RunDTO{
		ID:        run.ID,
		Kind:      string(run.Kind),
		Date:      run.Date,
		DryRun:    run.DryRun,
		Status:    run.Status,
		Error:     run.Error,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Summary:   toSummaryDTO(run.Summary),
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return dto
}

func toSummaryDTO(s job.Summary) SummaryDTO {
	dto := SummaryDTO{
		Evaluated:       s.Evaluated,
		Eligible:        s.Eligible,
		Sent:            s.Sent,
		Delivered:       s.Delivered,
		Rejected:        s.Rejected,
		TransportFailed: s.TransportFailed,
		Defects:         s.Defects,
	}
	if len(s.Skipped) > 0 {
		dto.Skipped = make(map[string]int, len(s.Skipped))
		for reason, n := range s.Skipped {
			dto.Skipped[string(reason)] = n
		}
	}
	return dto
}

func toReportDTO(userID string, rep engine.Report) ReportDTO {
	return ReportDTO{
		UserID:              userID,
		Month:               rep.Month,
		WorkingDays:         rep.WorkingDays,
		HolidaysInMonth:     rep.HolidaysInMonth,
		LeavesInMonth:       rep.LeavesInMonth,
		AdjustedWorkingDays: rep.AdjustedWorkingDays,
		TargetMode:          string(rep.TargetMode),
		MonthlyTarget:       rep.MonthlyTarget,
		RequiredOfficeDays:  rep.RequiredOfficeDays,
		OfficeDaysCompleted: rep.OfficeDaysCompleted,
		DaysRemaining:       rep.DaysRemaining,
		Message:             rep.Message(),
	}
}
