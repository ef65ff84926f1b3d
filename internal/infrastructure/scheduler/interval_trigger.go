package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
)

// Submitter accepts pass jobs
type Submitter interface {
	Submit(pass integration.SyncPass, trigger Trigger) (Job, error)
}

// IntervalTrigger submits each pass on its own fixed interval. A pass with
// a zero interval is never triggered.
type IntervalTrigger struct {
	intervals map[integration.SyncPass]time.Duration
	submitter Submitter
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a trigger for the given per-pass intervals
func NewIntervalTrigger(intervals map[integration.SyncPass]time.Duration, submitter Submitter, logger *zap.Logger) *IntervalTrigger {
	return &IntervalTrigger{
		intervals: intervals,
		submitter: submitter,
		logger:    logger,
	}
}

// Start starts one loop per pass. Each pass is submitted once right away.
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	for pass, every := range t.intervals {
		if every <= 0 || !pass.IsValid() {
			continue
		}
		t.wg.Add(1)
		go t.runLoop(ctx, pass, every)
		t.logger.Info("Interval trigger started",
			zap.String("pass", pass.String()),
			zap.Duration("interval", every),
		)
	}
	return nil
}

// Stop stops all loops
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	if t.cancel != nil {
		t.cancel()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Interval trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) runLoop(ctx context.Context, pass integration.SyncPass, every time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	t.fire(pass)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.fire(pass)
		}
	}
}

func (t *IntervalTrigger) fire(pass integration.SyncPass) {
	job, err := t.submitter.Submit(pass, TriggerInterval)
	switch {
	case err == nil:
		t.logger.Debug("Triggered pass", zap.String("pass", pass.String()), zap.String("job_id", job.ID.String()))
	case errors.Is(err, ErrPassAlreadyQueued):
		t.logger.Info("Skipping trigger, previous run still active", zap.String("pass", pass.String()))
	default:
		t.logger.Warn("Failed to trigger pass", zap.String("pass", pass.String()), zap.Error(err))
	}
}
