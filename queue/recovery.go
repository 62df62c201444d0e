package queue

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// recoveryGroup (package-level, keyed by queue name) prevents
// concurrent Recover calls on the same queue from overlapping — the
// claim path and a background sweep may both trigger recovery at
// once.
var recoveryGroup singleflight.Group

// Recover reverts timed-out processing entries back to pending (or
// routes them to failed/dead once attempts are exhausted) and, when a
// coordinator is configured, releases dispatch tickets claimed by
// workers whose heartbeat has gone stale.
func (q *Queue) Recover(ctx context.Context) error {
	_, err, _ := recoveryGroup.Do(q.cfg.Name, func() (any, error) {
		return nil, q.recoverStalled(ctx)
	})
	return err
}

func (q *Queue) recoverStalled(ctx context.Context) error {
	processing, err := q.entries.ListPartition(ctx, resourceListOpts(statusPartition, string(StatusProcessing)))
	if err != nil {
		return fmt.Errorf("queue %q: recover: list processing: %w", q.cfg.Name, err)
	}

	now := time.Now()
	for _, rec := range processing {
		listed := entryFromRecord(rec)
		if listed.VisibleAt.After(now) {
			continue
		}

		fresh, etag, err := q.entries.GetWithVersion(ctx, listed.ID)
		if err != nil {
			continue
		}
		entry := entryFromRecord(fresh)
		// The partition listing can be stale (the entry may have been
		// completed, failed or reclaimed by another worker since it was
		// listed); only act on entries that are still actually
		// processing.
		if entry.Status != StatusProcessing || entry.VisibleAt.After(now) {
			continue
		}

		if entry.Attempts >= entry.MaxAttempts {
			strategy := entry.FailureStrategy
			if strategy == "" {
				strategy = q.cfg.FailureStrategy
			}
			if strategy == StrategyDeadLetter || strategy == StrategyHybrid {
				_ = q.deadLetter(ctx, entry.ID, etag, entry, fmt.Errorf("recovery: exceeded max attempts"))
			} else {
				_ = q.markFailed(ctx, entry.ID, etag)
			}
			continue
		}

		result := q.entries.UpdateConditional(ctx, entry.ID, map[string]any{
			"status":    string(StatusPending),
			"visibleAt": timeString(now),
			"claimedBy": "",
			"lockToken": "",
		}, etag)
		if result.Success {
			q.markers.Clear(entry.ID)
		}
	}

	if q.coord != nil && q.tickets != nil {
		q.releaseStaleTicketClaims(ctx)
	}
	return nil
}

func (q *Queue) releaseStaleTicketClaims(ctx context.Context) {
	claimed, err := q.tickets.ListPartition(ctx, resourceListOpts(statusPartition, "claimed"))
	if err != nil {
		return
	}
	for _, rec := range claimed {
		ticketID := stringField(rec, "id")
		claimedBy := stringField(rec, "claimedBy")
		alive, err := q.coord.IsWorkerAlive(ctx, claimedBy)
		if err != nil || alive {
			continue
		}
		fresh, etag, err := q.tickets.GetWithVersion(ctx, ticketID)
		if err != nil {
			continue
		}
		// Re-check live state: the "claimed" partition listing may be
		// stale if the ticket was since deleted (claimed-and-consumed) or
		// released by a different recovery pass.
		if stringField(fresh, "status") != "claimed" || stringField(fresh, "claimedBy") != claimedBy {
			continue
		}
		q.tickets.UpdateConditional(ctx, ticketID, map[string]any{"status": "available", "claimedBy": ""}, etag)
	}
}

// RunRecovery sweeps for stalled entries every cfg.RecoveryInterval
// until ctx is cancelled.
func (q *Queue) RunRecovery(ctx context.Context) error {
	interval := q.cfg.RecoveryInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = q.Recover(ctx)
		}
	}
}
