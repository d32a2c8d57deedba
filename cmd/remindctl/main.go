/*
main.go - Operator CLI for one-shot reminder passes

PURPOSE:
  Runs a single reminder pass (or maintenance sweep) from the command line,
  the way the cron jobs invoke the engine. Every mutating operation
  supports -dry-run: evaluate and print what would happen, touch nothing.

USAGE:
  # Dry-run the 10AM manual nudge
  remindctl -kind=manual_reminder -dry-run

  # Send the weekly summaries for real, recording the run
  remindctl -kind=weekly_summary -db=./reminders.db

  # Print monthly reports for the whole fleet without sending
  remindctl -reports

  # Backfill default profiles onto records that lost theirs
  remindctl -repair -dry-run

EXIT CODES:
  0 pass completed (including dry runs)
  1 configuration error or run failure

SEE ALSO:
  - cmd/server: the resident scheduler running the same passes
  - job/run.go: the pass being invoked
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hybridhq/reminder-engine/config"
	"github.com/hybridhq/reminder-engine/dispatch"
	"github.com/hybridhq/reminder-engine/engine"
	"github.com/hybridhq/reminder-engine/job"
	"github.com/hybridhq/reminder-engine/store/sqlite"
	"github.com/hybridhq/reminder-engine/store/userdb"
)

func main() {
	cfg := config.Load()

	kind := flag.String("kind", "", "reminder kind to run (manual_reminder, auto_reminder, geofence_confirmation, weekly_summary)")
	dryRun := flag.Bool("dry-run", false, "evaluate and print intended actions without dispatching or mutating")
	reports := flag.Bool("reports", false, "print monthly accounting reports for the fleet and exit")
	repair := flag.Bool("repair", false, "backfill default profiles onto records missing one")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path (empty = no run recording)")
	userdbURL := flag.String("userdb", cfg.UserDBURL, "user tree base URL")
	relayURL := flag.String("relay", cfg.RelayURL, "push relay base URL")
	flag.Parse()

	users := userdb.NewClient(*userdbURL)
	ctx := context.Background()

	switch {
	case *reports:
		if err := printReports(ctx, users); err != nil {
			log.Fatalf("reports failed: %v", err)
		}

	case *repair:
		sum, err := job.RepairMissingProfiles(ctx, users, users, userdb.DefaultProfile(), *dryRun)
		if err != nil {
			log.Fatalf("repair failed: %v", err)
		}
		fmt.Printf("repair: scanned=%d missing=%d patched=%d failed=%d\n",
			sum.Scanned, sum.Missing, sum.Patched, sum.Failed)

	case *kind != "":
		if err := runPass(ctx, users, *relayURL, *dbPath, engine.ReminderKind(*kind), *dryRun, cfg.DispatchLimit); err != nil {
			log.Fatalf("run failed: %v", err)
		}

	default:
		flag.Usage()
		os.Exit(1)
	}
}

func runPass(ctx context.Context, users *userdb.Client, relayURL, dbPath string, kind engine.ReminderKind, dryRun bool, limit int) error {
	runner := &job.Runner{
		Users: users,
		Relay: dispatch.NewRelayClient(relayURL),
		Limit: limit,
	}

	if dbPath != "" {
		store, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer store.Close()
		runner.Runs = store
	}

	run, err := runner.Run(ctx, kind, engine.NewClock(time.Now()), dryRun)
	if err != nil {
		return err
	}

	s := run.Summary
	fmt.Printf("run %s (%s, %s, dry_run=%v)\n", run.ID, run.Kind, run.Date, run.DryRun)
	fmt.Printf("  eligible=%d sent=%d delivered=%d rejected=%d transport_failed=%d\n",
		s.Eligible, s.Sent, s.Delivered, s.Rejected, s.TransportFailed)
	for reason, n := range s.Skipped {
		fmt.Printf("  skipped %-22s %d\n", reason, n)
	}
	if len(s.RejectedTokens) > 0 {
		fmt.Printf("  token invalidation candidates: %v\n", s.RejectedTokens)
	}
	return nil
}

func printReports(ctx context.Context, users *userdb.Client) error {
	snap, err := users.FetchAll(ctx)
	if err != nil {
		return err
	}

	clock := engine.NewClock(time.Now())
	for _, u := range snap.Users {
		rep := engine.MonthlyReport(u, clock)
		fmt.Printf("%s  %s  office=%d/%d remaining=%d  %q\n",
			u.ID, rep.Month, rep.OfficeDaysCompleted, rep.RequiredOfficeDays, rep.DaysRemaining, rep.Message())
	}
	if snap.Defects > 0 {
		fmt.Printf("(%d undecodable records skipped)\n", snap.Defects)
	}
	return nil
}
