// Package tasks provides a bounded-concurrency fan-out helper used by
// replication fan-out, which sync-all replay also goes through.
package tasks

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency matches the fan-out width used when a caller does
// not specify one, mirroring the teacher's default upload concurrency.
const DefaultConcurrency = 5

// Map applies fn to every item in items with at most concurrency
// goroutines in flight, collecting one result per item in input order.
// If any fn call returns an error, the context passed to fn is
// cancelled; calls not yet started are still made (with that cancelled
// context), Map waits for every call to finish, and returns the first
// error.
func Map[I any, O any](ctx context.Context, items []I, concurrency int, fn func(context.Context, I) (O, error)) ([]O, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]O, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Each is Map for side-effecting functions with no per-item result.
func Each[I any](ctx context.Context, items []I, concurrency int, fn func(context.Context, I) error) error {
	_, err := Map(ctx, items, concurrency, func(ctx context.Context, item I) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return err
}
