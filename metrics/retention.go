package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo-org/objectdb/resource"
)

// cleanupOldData deletes every record in the three metrics resources
// whose date partition is older than retentionDays, returning the
// total number of records removed.
func (c *Collector) cleanupOldData(ctx context.Context, now time.Time, retentionDays int) (int, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, res := range []*resource.Resource{c.counts, c.errs, c.perf} {
		n, err := sweepByDate(ctx, res, cutoff)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// CleanupOldData is cleanupOldData exposed for callers driving their
// own retention schedule (cronmgr, a CLI subcommand, a test).
func (c *Collector) CleanupOldData(ctx context.Context) (int, error) {
	return c.cleanupOldData(ctx, time.Now().UTC(), c.cfg.RetentionDays)
}

func sweepByDate(ctx context.Context, res *resource.Resource, cutoff time.Time) (int, error) {
	records, err := res.Query(ctx, func(data map[string]any) bool {
		date, _ := data["date"].(string)
		t, err := time.Parse(dateLayout, date)
		if err != nil {
			return false
		}
		return t.Before(cutoff)
	})
	if err != nil {
		return 0, fmt.Errorf("metrics: sweep %q: %w", res.Name, err)
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if id, ok := r["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	if err := res.DeleteMany(ctx, ids); err != nil {
		return 0, fmt.Errorf("metrics: delete swept records in %q: %w", res.Name, err)
	}
	return len(ids), nil
}
