package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo-org/objectdb/idgen"
)

const dateLayout = "2006-01-02"

// Flush writes buffered performance and error records to their
// internal resources and clears the in-memory buffers. It also writes
// one counts record per global operation, capturing the running
// totals as of this flush.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	perf := c.perfBuf
	errs := c.errBuf
	c.perfBuf = nil
	c.errBuf = nil
	global := make(map[Operation]OperationStats, len(c.global))
	for op, s := range c.global {
		global[op] = *s
	}
	c.mu.Unlock()

	for _, p := range perf {
		date := p.At.Format(dateLayout)
		if _, err := c.perf.Insert(ctx, map[string]any{
			"id":        idgen.New(),
			"date":      date,
			"resource":  p.Resource,
			"operation": string(p.Operation),
			"durationMs": p.Duration.Milliseconds(),
			"at":        p.At.Format(time.RFC3339Nano),
		}); err != nil {
			return fmt.Errorf("metrics: flush performance record: %w", err)
		}
	}

	for _, e := range errs {
		date := e.At.Format(dateLayout)
		if _, err := c.errs.Insert(ctx, map[string]any{
			"id":        idgen.New(),
			"date":      date,
			"resource":  e.Resource,
			"operation": string(e.Operation),
			"message":   e.Message,
			"at":        e.At.Format(time.RFC3339Nano),
		}); err != nil {
			return fmt.Errorf("metrics: flush error record: %w", err)
		}
	}

	now := time.Now().UTC()
	for op, s := range global {
		if _, err := c.counts.Insert(ctx, map[string]any{
			"id":          idgen.New(),
			"date":        now.Format(dateLayout),
			"operation":   string(op),
			"count":       s.Count,
			"totalTimeMs": s.TotalTime.Milliseconds(),
			"errors":      s.Errors,
			"at":          now.Format(time.RFC3339Nano),
		}); err != nil {
			return fmt.Errorf("metrics: flush counts record: %w", err)
		}
	}
	return nil
}

// Run flushes on cfg.FlushInterval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = c.Flush(context.Background())
			return
		case <-ticker.C:
			_ = c.Flush(ctx)
		}
	}
}
