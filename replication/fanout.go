package replication

import (
	"context"

	"github.com/evalgo-org/objectdb/tasks"
)

// ReplicatedEvent fires once per replicator that successfully
// replicates a mutation.
type ReplicatedEvent struct {
	Replicator string
	Resource   string
	Operation  Op
	ID         string
}

// ErrorEvent fires once per replicator whose replicate call exhausted
// its retries.
type ErrorEvent struct {
	Replicator string
	Resource   string
	Operation  Op
	ID         string
	Err        error
}

type outcome struct {
	replicator Replicator
	err        error
}

// fanOut drives data to every replicator in interested concurrently
// (bounded by cfg.Concurrency), with per-replicator retry+backoff.
// One replicator's failure never cancels another's attempt — outcomes
// are captured individually and logged/emitted after the fact.
func (f *Fabric) fanOut(ctx context.Context, interested []Replicator, resourceName string, op Op, id string, data map[string]any) []outcome {
	outcomes, _ := tasks.Map(ctx, interested, f.cfg.Concurrency, func(ctx context.Context, rep Replicator) (outcome, error) {
		err := f.replicateWithRetry(ctx, rep, resourceName, op, id, data)
		return outcome{replicator: rep, err: err}, nil
	})

	for _, o := range outcomes {
		if o.err != nil {
			f.logEntry(ctx, o.replicator.ID(), resourceName, op, data, LogFailed, o.err, 0)
			f.Error.Emit(ErrorEvent{Replicator: o.replicator.ID(), Resource: resourceName, Operation: op, ID: id, Err: o.err})
			continue
		}
		f.Replicated.Emit(ReplicatedEvent{Replicator: o.replicator.ID(), Resource: resourceName, Operation: op, ID: id})
	}
	return outcomes
}
