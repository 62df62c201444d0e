package queue

import (
	"context"
	"fmt"
)

// Stats summarizes one queue's current depth and outcome counts.
type Stats struct {
	Pending       int
	Processing    int
	Completed     int
	Failed        int
	Dead          int
	TotalAttempts int
}

// Stats computes a point-in-time snapshot by scanning each status
// partition; there is no running counter to keep consistent with
// conditional writes racing from multiple workers.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	for status, counter := range map[Status]*int{
		StatusPending:    &s.Pending,
		StatusProcessing: &s.Processing,
		StatusCompleted:  &s.Completed,
		StatusFailed:     &s.Failed,
		StatusDead:       &s.Dead,
	} {
		records, err := q.entries.ListPartition(ctx, resourceListOpts(statusPartition, string(status)))
		if err != nil {
			return Stats{}, fmt.Errorf("queue %q: stats: %w", q.cfg.Name, err)
		}
		*counter = len(records)
		for _, rec := range records {
			s.TotalAttempts += intField(rec, "attempts")
		}
	}
	return s, nil
}
