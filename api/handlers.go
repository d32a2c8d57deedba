/*
handlers.go - HTTP API handlers for the reminder engine

PURPOSE:
  Exposes run history, manual triggers, and per-user previews of the
  eligibility and accounting logic. Handles HTTP request/response and JSON
  serialization; all business decisions live in engine/ and job/.

ENDPOINTS:
  GET  /api/health                     Liveness
  GET  /api/runs                       Recent runs, newest first
  POST /api/runs                       Trigger a pass {kind, dry_run}
  GET  /api/runs/{id}                  One run with recipient outcomes
  GET  /api/users                      Fleet census (defect counters)
  GET  /api/users/{id}/eligibility     Evaluator preview (?kind=)
  GET  /api/users/{id}/report          Monthly accounting preview
  GET  /api/scheduler                  Timetable status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: unknown kind, bad body
  - 404: run or user not found
  - 502: user store unreachable
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: The automated counterpart of POST /api/runs
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/job"
	"github.com/hybridhq/reminder-engine/record"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RunHistory is the read side of the run store.
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]job.RunRecord, error)
	GetRun(ctx context.Context, id string) (*job.RunRecord, error)
	ListOutcomes(ctx context.Context, runID string) ([]job.OutcomeRecord, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Runner    *job.Runner
	History   RunHistory
	Users     job.SnapshotSource
	Scheduler *ReminderScheduler // nil when the scheduler is disabled

	// NowClock returns the reference clock for preview endpoints and
	// triggered runs. Injected so handler tests are deterministic.
	NowClock func() engine.Clock
}

// NewHandler creates a handler wired to the runner's dependencies.
func NewHandler(runner *job.Runner, history RunHistory, users job.SnapshotSource) *Handler {
	return &Handler{
		Runner:   runner,
		History:  history,
		Users:    users,
		NowClock: func() engine.Clock { return engine.NewClock(time.Now()) },
	}
}

// Health responds 200 while the process is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// ListRuns returns recent runs, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.History.ListRuns(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run with its recipient outcomes.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.History.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	dto := toRunDTO(*run)
	outcomes, err := h.History.ListOutcomes(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get outcomes", err)
		return
	}
	for _, o := range outcomes {
		dto.Outcomes = append(dto.Outcomes, OutcomeDTO{
			UserID: o.UserID,
			Status: string(o.Status),
			Reason: o.Reason,
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// TriggerRun starts a pass for the requested kind. Dry runs evaluate and
// log but never dispatch.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	kind := engine.ReminderKind(req.Kind)
	run, err := h.Runner.Run(r.Context(), kind, h.NowClock(), req.DryRun)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownReminderKind) {
			writeError(w, http.StatusBadRequest, "Unknown reminder kind", err)
			return
		}
		writeError(w, http.StatusBadGateway, "Run failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(*run))
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// FleetStats returns the fleet census the repair scripts used to print:
// platform split, tracking modes, token validity, defect counts.
func (h *Handler) FleetStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Users.FetchAll(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to fetch user snapshot", err)
		return
	}

	stats := FleetStatsDTO{
		Total:           len(snap.Users),
		SnapshotDefects: snap.Defects,
		Platforms:       make(map[string]int),
		TrackingModes:   make(map[string]int),
	}
	for _, u := range snap.Users {
		stats.Platforms[string(u.EffectivePlatform())]++
		stats.TrackingModes[string(u.EffectiveTrackingMode())]++
		if u.HasValidPushToken() {
			stats.ValidTokens++
		}
		if u.MissingProfile() {
			stats.MissingProfiles++
		}
		if u.NearOffice != nil {
			stats.GeofenceSeen++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

// UserEligibility previews the evaluator for one user and kind, with the
// failed-rule reasons.
func (h *Handler) UserEligibility(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	kind := engine.ReminderKind(r.URL.Query().Get("kind"))

	u, status, err := h.findUser(r.Context(), id)
	if err != nil {
		writeError(w, status, "Failed to fetch user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	clock := h.NowClock()
	res, err := engine.Evaluate(u, kind, clock)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown reminder kind", err)
		return
	}

	dto := EligibilityDTO{
		UserID:   id,
		Kind:     string(kind),
		Date:     clock.Today(),
		Eligible: res.Eligible,
	}
	for _, reason := range res.Reasons {
		dto.Reasons = append(dto.Reasons, string(reason))
	}
	writeJSON(w, http.StatusOK, dto)
}

// UserReport previews the monthly accounting and summary message for one
// user.
func (h *Handler) UserReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, status, err := h.findUser(r.Context(), id)
	if err != nil {
		writeError(w, status, "Failed to fetch user", err)
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}

	rep := engine.MonthlyReport(u, h.NowClock())
	writeJSON(w, http.StatusOK, toReportDTO(id, rep))
}

func (h *Handler) findUser(ctx context.Context, id string) (*record.UserRecord, int, error) {
	snap, err := h.Users.FetchAll(ctx)
	if err != nil {
		return nil, http.StatusBadGateway, err
	}
	for _, u := range snap.Users {
		if u.ID == id {
			return u, http.StatusOK, nil
		}
	}
	return nil, http.StatusNotFound, nil
}

// =============================================================================
// SCHEDULER HANDLER
// =============================================================================

// SchedulerStatus reports the timetable.
func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	dto := SchedulerStatusDTO{
		Enabled:  h.Scheduler != nil && h.Scheduler.Enabled,
		Timezone: engine.ReferenceZone,
	}
	for _, slot := range Timetable() {
		dto.Timetable = append(dto.Timetable, SlotDTO{
			Kind: string(slot.Kind),
			Slot: slot.Label,
			Days: slot.Days,
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
