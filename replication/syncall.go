package replication

import (
	"context"
	"fmt"
)

// SyncAll replays every record of every attached resource through
// replicatorID as an insert event, in pages of cfg.BatchSize. A
// single page error aborts the sync with that error surfaced,
// matching spec.md's sync-all contract.
func (f *Fabric) SyncAll(ctx context.Context, replicatorID string) error {
	var target Replicator
	for _, rep := range f.replicators {
		if rep.ID() == replicatorID {
			target = rep
			break
		}
	}
	if target == nil {
		return fmt.Errorf("replication: unknown replicator %q", replicatorID)
	}

	batchSize := f.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for resourceName, r := range f.resources {
		if !target.ShouldReplicate(resourceName, OpInsert) {
			continue
		}
		offset := 0
		for {
			records, err := r.Page(ctx, offset, batchSize)
			if err != nil {
				return fmt.Errorf("replication: sync-all %q: page %s@%d: %w", replicatorID, resourceName, offset, err)
			}
			if len(records) == 0 {
				break
			}
			for _, rec := range records {
				outcomes := f.fanOut(ctx, []Replicator{target}, resourceName, OpInsert, recordID(rec), sanitize(rec))
				for _, o := range outcomes {
					if o.err != nil {
						return fmt.Errorf("replication: sync-all %q: %s %s: %w", replicatorID, resourceName, recordID(rec), o.err)
					}
				}
			}
			offset += len(records)
			if len(records) < batchSize {
				break
			}
		}
	}
	return nil
}
