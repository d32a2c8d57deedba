package job

import (
	"context"
	"log"

	"github.com/hybridhq/reminder-engine/record"
)

// ProfilePatcher is the scoped-write capability the repair path needs from
// the user store.
type ProfilePatcher interface {
	PatchProfile(ctx context.Context, id string, profile *record.Profile) error
}

// RepairSummary counts one repair sweep.
type RepairSummary struct {
	Scanned int
	Missing int
	Patched int
	Failed  int
}

// RepairMissingProfiles backfills a default profile onto every record that
// has attendance history but no profile section. The user snapshot itself
// is left untouched; records are re-read on the next pass. Dry-run logs the
// candidates and writes nothing.
func RepairMissingProfiles(ctx context.Context, users SnapshotSource, patcher ProfilePatcher, defaultProfile *record.Profile, dryRun bool) (RepairSummary, error) {
	var sum RepairSummary

	snap, err := users.FetchAll(ctx)
	if err != nil {
		return sum, err
	}

	for _, u := range snap.Users {
		sum.Scanned++
		if !u.MissingProfile() {
			continue
		}
		sum.Missing++

		if dryRun {
			log.Printf("[Repair] dry-run: would patch default profile onto %s (%d attendance entries)", u.ID, len(u.Attendance))
			continue
		}
		if err := patcher.PatchProfile(ctx, u.ID, defaultProfile); err != nil {
			sum.Failed++
			log.Printf("[Repair] patch %s: %v", u.ID, err)
			continue
		}
		sum.Patched++
	}

	log.Printf("[Repair] scanned=%d missing=%d patched=%d failed=%d dry_run=%v",
		sum.Scanned, sum.Missing, sum.Patched, sum.Failed, dryRun)
	return sum, nil
}
