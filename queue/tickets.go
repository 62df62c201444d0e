package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo-org/objectdb/resource"
)

// PublishTickets is called by the elected coordinator to top up the
// available dispatch tickets for this queue, one per earliest
// not-yet-ticketed pending entry, up to cfg.TicketBatchSize tickets
// outstanding at once.
func (q *Queue) PublishTickets(ctx context.Context) error {
	if q.tickets == nil {
		return nil
	}

	existing, err := q.tickets.List(ctx, resource.ListOpts{})
	if err != nil {
		return fmt.Errorf("queue %q: publish tickets: list existing: %w", q.cfg.Name, err)
	}

	ticketed := make(map[string]bool, len(existing))
	available := 0
	for _, t := range existing {
		ticketed[stringField(t, "entryId")] = true
		if stringField(t, "status") == "available" {
			available++
		}
	}

	budget := q.cfg.TicketBatchSize - available
	if budget <= 0 {
		return nil
	}

	pendingIDs, err := q.pendingCandidates(ctx)
	if err != nil {
		return err
	}

	published := 0
	for _, id := range pendingIDs {
		if published >= budget {
			break
		}
		if ticketed[id] {
			continue
		}
		rec, err := q.entries.Get(ctx, id)
		if err != nil {
			continue
		}
		entry := entryFromRecord(rec)
		if _, err := q.tickets.Insert(ctx, map[string]any{
			"entryId":    id,
			"orderIndex": entry.QueuedAt.UnixNano(),
			"status":     "available",
		}); err != nil {
			continue
		}
		published++
	}
	return nil
}

// RunTicketPublisher republishes dispatch tickets on every interval
// tick while this process is the elected coordinator for the queue,
// and is a no-op otherwise. It runs until ctx is cancelled.
func (q *Queue) RunTicketPublisher(ctx context.Context, interval time.Duration) error {
	if q.coord == nil {
		return fmt.Errorf("queue %q: no coordinator attached", q.cfg.Name)
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !q.coord.IsLeader() {
				continue
			}
			_ = q.PublishTickets(ctx)
		}
	}
}
