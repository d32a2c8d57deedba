package dispatch

import (
	"context"
	"sync"
)

// =============================================================================
// BOUNDED FAN-OUT
// =============================================================================
// The relay enforces a per-request batch ceiling, so large fleets are sent
// one request per recipient with a bounded number in flight. Recipients are
// independent and the snapshot is read-only, so no ordering is needed across
// sends; outcomes are still returned in input order for correlation.

// DefaultFanoutLimit bounds in-flight relay requests when the caller passes
// no limit.
const DefaultFanoutLimit = 8

// Fanout sends every message through the sender with at most limit requests
// in flight. A cancelled context stops launching new sends; already-launched
// sends run to completion and cancelled slots are recorded as transport
// failures with the context error.
func Fanout(ctx context.Context, sender Sender, msgs []Message, limit int) []Outcome {
	if limit <= 0 {
		limit = DefaultFanoutLimit
	}

	outcomes := make([]Outcome, len(msgs))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, msg := range msgs {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{UserID: msg.UserID, Status: TransportFailure, Err: err}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, msg Message) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = sender.Send(ctx, msg)
		}(i, msg)
	}

	wg.Wait()
	return outcomes
}
