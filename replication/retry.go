package replication

import (
	"context"
	"fmt"
)

// RetryFailed re-drives every failed log entry through the same
// per-replicator retry-with-backoff path (without emitting Replicated
// or Error events) and patches the log row to success or failed with an
// incremented retry count, per spec.md's retry contract.
func (f *Fabric) RetryFailed(ctx context.Context) error {
	if f.log == nil {
		return nil
	}
	failed, err := f.log.Query(ctx, func(data map[string]any) bool {
		status, _ := data["status"].(string)
		return status == string(LogFailed)
	})
	if err != nil {
		return fmt.Errorf("replication: retry failed: query log: %w", err)
	}

	for _, entry := range failed {
		logID, _ := entry["id"].(string)
		replicatorID, _ := entry["replicator"].(string)
		resourceName, _ := entry["resource"].(string)
		op, _ := entry["operation"].(string)
		data, _ := entry["data"].(map[string]any)
		retryCount := intFromAny(entry["retryCount"])

		var target Replicator
		for _, rep := range f.replicators {
			if rep.ID() == replicatorID {
				target = rep
				break
			}
		}
		if target == nil {
			continue
		}

		id := recordID(data)
		retryErr := f.replicateWithRetry(ctx, target, resourceName, Op(op), id, data)

		status := LogSuccess
		errMsg := ""
		if retryErr != nil {
			status = LogFailed
			errMsg = retryErr.Error()
		}
		_, _ = f.log.Patch(ctx, logID, map[string]any{
			"status":     string(status),
			"error":      errMsg,
			"retryCount": retryCount + 1,
		})
	}
	return nil
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
