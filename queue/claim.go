package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/evalgo-org/objectdb/idgen"
	"github.com/evalgo-org/objectdb/store"
)

const orderingLeaseKey = "order"

// Claim attempts to win one pending entry for workerID. It returns
// (nil, nil) when nothing is currently claimable — not an error.
//
// When a coordinator is configured, dispatch tickets are tried first
// (the coordinator-ticket path); any ticket whose referenced entry
// cannot actually be claimed is released back to available rather than
// left claimed, so a transient loser doesn't starve the entry. Failing
// that — or with no coordinator at all — Claim falls back to a direct
// scan of pending entries, honoring an ordering lease when the queue
// requires strict ordering and a coordinator is present to make that
// guarantee meaningful.
func (q *Queue) Claim(ctx context.Context, workerID string) (*Entry, error) {
	if q.coord != nil && q.coord.Phase().DelaysDispatch() {
		return nil, nil
	}
	if q.coord != nil && q.tickets != nil {
		entry, err := q.claimViaTickets(ctx, workerID)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return q.claimViaScan(ctx, workerID)
}

func (q *Queue) claimViaTickets(ctx context.Context, workerID string) (*Entry, error) {
	tickets, err := q.tickets.ListPartition(ctx, resourceListOpts(statusPartition, "available"))
	if err != nil {
		return nil, fmt.Errorf("queue %q: list tickets: %w", q.cfg.Name, err)
	}
	sort.Slice(tickets, func(i, j int) bool {
		return intField(tickets[i], "orderIndex") < intField(tickets[j], "orderIndex")
	})

	for _, ticket := range tickets {
		ticketID := stringField(ticket, "id")
		entryID := stringField(ticket, "entryId")

		fresh, etag, err := q.tickets.GetWithVersion(ctx, ticketID)
		if err != nil {
			continue // ticket vanished under us, try the next
		}
		// The "available" partition listing can be stale if another
		// worker already claimed this ticket since it was scanned; only
		// act on tickets that are still actually available.
		if stringField(fresh, "status") != "available" {
			continue
		}
		claim := q.tickets.UpdateConditional(ctx, ticketID, map[string]any{
			"status":    "claimed",
			"claimedBy": workerID,
			"claimedAt": timeString(time.Now()),
		}, etag)
		if claim.Error != nil || !claim.Success {
			continue
		}

		entry, ok, err := q.claimEntry(ctx, workerID, entryID)
		if err != nil {
			return nil, err
		}
		if ok {
			_ = q.tickets.Delete(ctx, ticketID)
			return &entry, nil
		}

		// The ticket's entry lost the race elsewhere; release it.
		if _, etag, err := q.tickets.GetWithVersion(ctx, ticketID); err == nil {
			q.tickets.UpdateConditional(ctx, ticketID, map[string]any{"status": "available", "claimedBy": ""}, etag)
		}
	}
	return nil, nil
}

func (q *Queue) claimViaScan(ctx context.Context, workerID string) (*Entry, error) {
	if err := q.Recover(ctx); err != nil {
		return nil, err
	}

	candidates, err := q.pendingCandidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if q.cfg.OrderingGuarantee && q.coord != nil {
		if _, err := q.leases.Acquire(ctx, q.leases.Key(q.cfg.Name, orderingLeaseKey), workerID, q.cfg.OrderingLockTTL); err != nil {
			return nil, nil // lost the ordering race this round
		}
		defer q.leases.Release(ctx, q.leases.Key(q.cfg.Name, orderingLeaseKey), workerID)

		entry, ok, err := q.claimEntry(ctx, workerID, candidates[0])
		if err != nil || !ok {
			return nil, err
		}
		return &entry, nil
	}

	for _, id := range candidates {
		entry, ok, err := q.claimEntry(ctx, workerID, id)
		if err != nil {
			return nil, err
		}
		if ok {
			return &entry, nil
		}
	}
	return nil, nil
}

// claimEntry is the conditional-claim step common to both claim paths:
// a short entry lease guards the processed-marker check, then a
// version-guarded conditional update performs the actual state
// transition from pending to processing.
func (q *Queue) claimEntry(ctx context.Context, workerID, id string) (Entry, bool, error) {
	leaseKey := q.leases.Key(q.cfg.Name, "msg", id)
	if _, err := q.leases.Acquire(ctx, leaseKey, workerID, q.cfg.LockTTL); err != nil {
		return Entry{}, false, nil
	}
	defer q.leases.Release(ctx, leaseKey, workerID)

	if q.markers.Seen(id) {
		return Entry{}, false, nil
	}
	q.markers.Mark(id, q.cfg.LockTTL)

	rec, etag, err := q.entries.GetWithVersion(ctx, id)
	if err != nil {
		q.markers.Clear(id)
		if store.IsNotFound(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	entry := entryFromRecord(rec)
	if entry.Status != StatusPending || entry.VisibleAt.After(time.Now()) {
		q.markers.Clear(id)
		return Entry{}, false, nil
	}

	lockToken := idgen.New()
	result := q.entries.UpdateConditional(ctx, id, map[string]any{
		"status":    string(StatusProcessing),
		"claimedBy": workerID,
		"claimedAt": timeString(time.Now()),
		"lockToken": lockToken,
		"visibleAt": timeString(time.Now().Add(q.cfg.VisibilityTimeout)),
		"attempts":  entry.Attempts + 1,
	}, etag)
	if result.Error != nil {
		q.markers.Clear(id)
		return Entry{}, false, result.Error
	}
	if !result.Success {
		q.markers.Clear(id)
		return Entry{}, false, nil
	}
	return entryFromRecord(result.Data), true, nil
}

func (q *Queue) pendingCandidates(ctx context.Context) ([]string, error) {
	records, err := q.entries.ListPartition(ctx, resourceListOpts(statusPartition, string(StatusPending)))
	if err != nil {
		return nil, fmt.Errorf("queue %q: list pending: %w", q.cfg.Name, err)
	}
	now := time.Now()
	type candidate struct {
		id       string
		queuedAt time.Time
	}
	var out []candidate
	for _, rec := range records {
		e := entryFromRecord(rec)
		if e.VisibleAt.After(now) {
			continue
		}
		out = append(out, candidate{id: e.ID, queuedAt: e.QueuedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].queuedAt.Equal(out[j].queuedAt) {
			return out[i].queuedAt.Before(out[j].queuedAt)
		}
		return out[i].id < out[j].id
	})
	if q.cfg.PollBatchSize > 0 && len(out) > q.cfg.PollBatchSize {
		out = out[:q.cfg.PollBatchSize]
	}
	ids := make([]string, len(out))
	for i, c := range out {
		ids[i] = c.id
	}
	return ids, nil
}
