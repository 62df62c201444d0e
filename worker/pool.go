// Package worker provides a fixed-size consumer pool that claims
// entries from a queue.Queue and runs a caller-supplied Processor
// against each one, retrying on transient failure and dead-lettering
// via the queue's own failure strategy.
package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evalgo-org/objectdb/objlog"
	"github.com/evalgo-org/objectdb/queue"
)

// Processor handles one claimed entry. A non-nil error marks the
// entry failed (subject to the queue's configured FailureStrategy);
// nil marks it complete.
type Processor interface {
	Process(ctx context.Context, entry queue.Entry) error
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx context.Context, entry queue.Entry) error

func (f ProcessorFunc) Process(ctx context.Context, entry queue.Entry) error { return f(ctx, entry) }

// Config controls one Pool's worker count and idle backoff.
type Config struct {
	Workers     int
	WorkerID    string
	IdleBackoff time.Duration
}

// DefaultConfig returns a single-worker pool polling once a second
// when the queue is empty, matching the teacher's worker backoff.
func DefaultConfig() Config {
	return Config{
		Workers:     1,
		WorkerID:    "worker",
		IdleBackoff: time.Second,
	}
}

// Pool runs cfg.Workers goroutines, each repeatedly claiming and
// processing entries from q until Stop is called.
type Pool struct {
	cfg       Config
	q         *queue.Queue
	processor Processor
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewPool constructs a Pool over q. Each worker claims under a
// distinct id derived from cfg.WorkerID so concurrent claims never
// collide on the same lock owner.
func NewPool(q *queue.Queue, processor Processor, cfg Config) *Pool {
	return &Pool{
		cfg:       cfg,
		q:         q,
		processor: processor,
		stop:      make(chan struct{}),
	}
}

// Start launches the pool's workers in background goroutines.
func (p *Pool) Start(ctx context.Context) {
	logger := objlog.For("worker")
	logger.WithField("workers", p.cfg.Workers).Info("starting consumer pool")

	for i := 0; i < p.cfg.Workers; i++ {
		workerID := p.cfg.WorkerID
		if p.cfg.Workers > 1 {
			workerID = p.cfg.WorkerID + "-" + strconv.Itoa(i)
		}
		p.wg.Add(1)
		go p.run(ctx, workerID)
	}
}

// Stop signals every worker to finish its current claim and return,
// then waits for them to exit.
func (p *Pool) Stop() {
	close(p.stop)
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, workerID string) {
	defer p.wg.Done()
	logger := objlog.For("worker").WithField("worker_id", workerID)

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := p.claimAndProcess(ctx, workerID, logger); err != nil {
			logger.WithError(err).Error("claim failed")
			select {
			case <-time.After(p.cfg.IdleBackoff):
			case <-p.stop:
				return
			}
		}
	}
}

func (p *Pool) claimAndProcess(ctx context.Context, workerID string, logger *logrus.Entry) error {
	entry, err := p.q.Claim(ctx, workerID)
	if err != nil {
		return err
	}
	if entry == nil {
		select {
		case <-time.After(p.cfg.IdleBackoff):
		case <-p.stop:
		}
		return nil
	}

	logger.WithField("entry_id", entry.ID).Info("claimed entry")

	if procErr := p.processor.Process(ctx, *entry); procErr != nil {
		logger.WithField("entry_id", entry.ID).WithError(procErr).Warn("processing failed")
		return p.q.Fail(ctx, entry.ID, entry.LockToken, procErr)
	}

	return p.q.Complete(ctx, entry.ID, entry.LockToken)
}
