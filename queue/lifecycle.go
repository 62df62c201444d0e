package queue

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RenewReason explains why RenewLock rejected a renewal.
type RenewReason string

const (
	ReasonTerminalState RenewReason = "terminal_state"
	ReasonLockReleased  RenewReason = "lock_released"
	ReasonTokenMismatch RenewReason = "token_mismatch"
	ReasonInvalidState  RenewReason = "invalid_state"
)

// RenewRejectedError reports why a lease renewal was refused.
type RenewRejectedError struct {
	EntryID string
	Reason  RenewReason
}

func (e *RenewRejectedError) Error() string {
	return fmt.Sprintf("queue: lock renewal rejected for %q: %s", e.EntryID, e.Reason)
}

// RenewLock extends a processing entry's visibility window by extra,
// only while lockToken still matches what the entry was claimed with.
func (q *Queue) RenewLock(ctx context.Context, id, lockToken string, extra time.Duration) error {
	rec, etag, err := q.entries.GetWithVersion(ctx, id)
	if err != nil {
		return &RenewRejectedError{EntryID: id, Reason: ReasonLockReleased}
	}
	entry := entryFromRecord(rec)
	if entry.Status != StatusProcessing {
		return &RenewRejectedError{EntryID: id, Reason: ReasonTerminalState}
	}
	if entry.LockToken != lockToken {
		return &RenewRejectedError{EntryID: id, Reason: ReasonTokenMismatch}
	}

	visibleAt := entry.VisibleAt
	if now := time.Now(); now.After(visibleAt) {
		visibleAt = now
	}
	visibleAt = visibleAt.Add(extra)

	result := q.entries.UpdateConditional(ctx, id, map[string]any{
		"visibleAt": timeString(visibleAt),
	}, etag)
	if result.Error != nil {
		return result.Error
	}
	if !result.Success {
		return &RenewRejectedError{EntryID: id, Reason: ReasonInvalidState}
	}
	return nil
}

// Complete marks an entry completed. lockToken must match the current
// claim, mirroring the platform's sole atomicity primitive.
func (q *Queue) Complete(ctx context.Context, id, lockToken string) error {
	rec, etag, err := q.entries.GetWithVersion(ctx, id)
	if err != nil {
		return err
	}
	entry := entryFromRecord(rec)
	if entry.LockToken != lockToken {
		return &RenewRejectedError{EntryID: id, Reason: ReasonTokenMismatch}
	}

	result := q.entries.UpdateConditional(ctx, id, map[string]any{
		"status":    string(StatusCompleted),
		"lockToken": "",
	}, etag)
	if result.Error != nil {
		return result.Error
	}
	if !result.Success {
		return fmt.Errorf("queue %q: complete %q: stale version", q.cfg.Name, id)
	}
	return nil
}

// Fail reports a processing failure for id, routing the entry through
// its configured failure strategy: retry with exponential backoff,
// dead-letter, or hybrid (retry until exhausted, then dead-letter).
func (q *Queue) Fail(ctx context.Context, id, lockToken string, cause error) error {
	rec, etag, err := q.entries.GetWithVersion(ctx, id)
	if err != nil {
		return err
	}
	entry := entryFromRecord(rec)
	if entry.LockToken != lockToken {
		return &RenewRejectedError{EntryID: id, Reason: ReasonTokenMismatch}
	}

	strategy := entry.FailureStrategy
	if strategy == "" {
		strategy = q.cfg.FailureStrategy
	}

	switch strategy {
	case StrategyDeadLetter:
		return q.deadLetter(ctx, id, etag, entry, cause)
	case StrategyHybrid:
		if entry.Attempts < entry.MaxAttempts {
			return q.retry(ctx, id, etag, entry)
		}
		return q.deadLetter(ctx, id, etag, entry, cause)
	default: // retry
		if entry.Attempts < entry.MaxAttempts {
			return q.retry(ctx, id, etag, entry)
		}
		return q.markFailed(ctx, id, etag)
	}
}

func backoff(attempts int) time.Duration {
	ms := math.Min(math.Pow(2, float64(attempts))*1000, 30_000)
	return time.Duration(ms) * time.Millisecond
}

func (q *Queue) retry(ctx context.Context, id, etag string, entry Entry) error {
	result := q.entries.UpdateConditional(ctx, id, map[string]any{
		"status":    string(StatusPending),
		"visibleAt": timeString(time.Now().Add(backoff(entry.Attempts))),
		"lockToken": "",
		"claimedBy": "",
	}, etag)
	if result.Error != nil {
		return result.Error
	}
	if !result.Success {
		return fmt.Errorf("queue %q: retry %q: stale version", q.cfg.Name, id)
	}
	q.markers.Clear(id)
	return nil
}

func (q *Queue) markFailed(ctx context.Context, id, etag string) error {
	result := q.entries.UpdateConditional(ctx, id, map[string]any{
		"status":    string(StatusFailed),
		"lockToken": "",
	}, etag)
	if result.Error != nil {
		return result.Error
	}
	if !result.Success {
		return fmt.Errorf("queue %q: fail %q: stale version", q.cfg.Name, id)
	}
	return nil
}

func (q *Queue) deadLetter(ctx context.Context, id, etag string, entry Entry, cause error) error {
	if q.dead != nil {
		errMsg := ""
		if cause != nil {
			errMsg = cause.Error()
		}
		if _, err := q.dead.Insert(ctx, map[string]any{
			"originalId": id,
			"queueId":    q.cfg.Name,
			"data":       entry.Data,
			"error":      errMsg,
			"attempts":   entry.Attempts,
			"createdAt":  timeString(time.Now()),
		}); err != nil {
			return fmt.Errorf("queue %q: dead-letter %q: %w", q.cfg.Name, id, err)
		}
	}

	result := q.entries.UpdateConditional(ctx, id, map[string]any{
		"status":    string(StatusDead),
		"lockToken": "",
	}, etag)
	if result.Error != nil {
		return result.Error
	}
	if !result.Success {
		return fmt.Errorf("queue %q: dead-letter %q: stale version", q.cfg.Name, id)
	}
	return nil
}
