/*
Package job executes one reminder pass.

PURPOSE:
  A pass is: fetch the user snapshot once, evaluate every record for the
  requested reminder kind, dispatch to the eligible subset, record the run
  and its per-recipient outcomes. The scheduler, the ops API and the CLI
  are all thin callers of Runner.Run.

FAILURE POLICY:
  - unknown reminder kind: fatal before any I/O (configuration error)
  - snapshot fetch failure: fatal (there is nothing to evaluate)
  - one record's defect or panic: contained, counted, pass continues
  - one recipient's dispatch failure: classified into the outcome, pass
    continues; transport failures are the retryable class, relay
    rejections are not

DRY RUN:
  Evaluation runs in full and intended sends are logged, but the dispatch
  adapter is never invoked and no recipient outcome is produced. The run
  record is persisted with dry_run set, mirroring every mutating operator
  surface in this system.
*/
package job

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hybridhq/reminder-engine/dispatch"
	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/record"
	"github.com/hybridhq/reminder-engine/store/userdb"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// SnapshotSource provides the one-per-run read of the user tree.
type SnapshotSource interface {
	FetchAll(ctx context.Context) (*userdb.Snapshot, error)
}

// RunStore persists run records and per-recipient outcomes for audit.
type RunStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	CompleteRun(ctx context.Context, run RunRecord) error
	SaveOutcomes(ctx context.Context, runID string, outcomes []OutcomeRecord) error
}

// Runner wires a pass's dependencies.
type Runner struct {
	Users SnapshotSource
	Relay dispatch.Sender
	Runs  RunStore
	Limit int // max in-flight dispatches; 0 = dispatch.DefaultFanoutLimit
}

// =============================================================================
// RUN RECORDS
// =============================================================================

// RunRecord is the persisted audit row for one pass.
type RunRecord struct {
	ID          string
	Kind        engine.ReminderKind
	Date        record.DateKey // reference-zone date the pass evaluated
	DryRun      bool
	Status      string // "running", "completed", "failed"
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	Summary Summary
}

// OutcomeRecord is one recipient's persisted result.
type OutcomeRecord struct {
	UserID string
	Status dispatch.OutcomeStatus
	Reason string
}

// Summary is the operator-facing count set for a pass.
type Summary struct {
	Evaluated       int
	Eligible        int
	Sent            int
	Delivered       int
	Rejected        int
	TransportFailed int
	Defects         int // undecodable records in the snapshot

	// Skipped counts ineligible records per failed rule. A record failing
	// several rules is counted under each.
	Skipped map[engine.Reason]int

	// RejectedTokens lists recipients whose tokens the relay rejected -
	// candidates for the external token-invalidation process.
	RejectedTokens []string
}

func newSummary() Summary {
	return Summary{Skipped: make(map[engine.Reason]int)}
}

// String renders the one-line operator summary.
func (s Summary) String() string {
	return fmt.Sprintf("evaluated=%d eligible=%d sent=%d delivered=%d rejected=%d transport_failed=%d defects=%d skipped=%v",
		s.Evaluated, s.Eligible, s.Sent, s.Delivered, s.Rejected, s.TransportFailed, s.Defects, s.Skipped)
}

// =============================================================================
// RUN
// =============================================================================

// Run executes one pass for the kind at the clock's instant.
func (r *Runner) Run(ctx context.Context, kind engine.ReminderKind, clock engine.Clock, dryRun bool) (*RunRecord, error) {
	if !engine.KnownKind(kind) {
		return nil, fmt.Errorf("%w: %q", engine.ErrUnknownReminderKind, kind)
	}

	run := RunRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Date:      clock.Today(),
		DryRun:    dryRun,
		Status:    "running",
		StartedAt: time.Now().UTC(),
		Summary:   newSummary(),
	}
	if r.Runs != nil {
		if err := r.Runs.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("save run record: %w", err)
		}
	}

	snap, err := r.Users.FetchAll(ctx)
	if err != nil {
		r.fail(ctx, &run, err)
		return &run, fmt.Errorf("fetch snapshot: %w", err)
	}
	run.Summary.Defects = snap.Defects

	eligibleRecords := r.evaluate(snap.Users, kind, clock, &run.Summary)

	if dryRun {
		for _, u := range eligibleRecords {
			log.Printf("[Run] dry-run: would send %s to %s", kind, u.ID)
		}
		r.complete(ctx, &run, nil)
		log.Printf("[Run] %s %s (dry-run): %s", kind, run.Date, run.Summary.String())
		return &run, nil
	}

	msgs := make([]dispatch.Message, len(eligibleRecords))
	for i, u := range eligibleRecords {
		msgs[i] = dispatch.BuildMessage(u, kind, clock)
	}

	outcomes := dispatch.Fanout(ctx, r.Relay, msgs, r.Limit)
	run.Summary.Sent = len(outcomes)

	persisted := make([]OutcomeRecord, len(outcomes))
	for i, o := range outcomes {
		persisted[i] = OutcomeRecord{UserID: o.UserID, Status: o.Status, Reason: o.Reason}
		switch o.Status {
		case dispatch.Delivered:
			run.Summary.Delivered++
		case dispatch.RelayRejected:
			run.Summary.Rejected++
			run.Summary.RejectedTokens = append(run.Summary.RejectedTokens, o.UserID)
		case dispatch.TransportFailure:
			run.Summary.TransportFailed++
			persisted[i].Reason = o.Err.Error()
		}
	}

	r.complete(ctx, &run, persisted)
	log.Printf("[Run] %s %s: %s", kind, run.Date, run.Summary.String())
	return &run, nil
}

// evaluate filters the snapshot to the eligible subset, isolating each
// record: a panic while evaluating one record is contained and counted as a
// defect, never aborts the pass.
func (r *Runner) evaluate(users []*record.UserRecord, kind engine.ReminderKind, clock engine.Clock, sum *Summary) []*record.UserRecord {
	var eligible []*record.UserRecord
	for _, u := range users {
		sum.Evaluated++
		res, ok := evaluateIsolated(u, kind, clock)
		if !ok {
			sum.Defects++
			continue
		}
		if res.Eligible {
			sum.Eligible++
			eligible = append(eligible, u)
			continue
		}
		for _, reason := range res.Reasons {
			sum.Skipped[reason]++
		}
	}
	return eligible
}

func evaluateIsolated(u *record.UserRecord, kind engine.ReminderKind, clock engine.Clock) (res engine.Result, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Run] record %s: evaluation panic: %v", u.ID, rec)
			ok = false
		}
	}()
	// The kind was validated before the pass started, so an error here
	// cannot occur; treat it as a defect all the same.
	res, err := engine.Evaluate(u, kind, clock)
	if err != nil {
		return engine.Result{}, false
	}
	return res, true
}

func (r *Runner) complete(ctx context.Context, run *RunRecord, outcomes []OutcomeRecord) {
	now := time.Now().UTC()
	run.Status = "completed"
	run.CompletedAt = &now
	if r.Runs == nil {
		return
	}
	if len(outcomes) > 0 {
		if err := r.Runs.SaveOutcomes(ctx, run.ID, outcomes); err != nil {
			log.Printf("[Run] failed to save outcomes for %s: %v", run.ID, err)
		}
	}
	if err := r.Runs.CompleteRun(ctx, *run); err != nil {
		log.Printf("[Run] failed to complete run %s: %v", run.ID, err)
	}
}

func (r *Runner) fail(ctx context.Context, run *RunRecord, cause error) {
	now := time.Now().UTC()
	run.Status = "failed"
	run.Error = cause.Error()
	run.CompletedAt = &now
	if r.Runs == nil {
		return
	}
	if err := r.Runs.CompleteRun(ctx, *run); err != nil {
		log.Printf("[Run] failed to record failure for %s: %v", run.ID, err)
	}
}
