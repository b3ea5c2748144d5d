package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalTrigger submits a sweep and a dirty-SKU job on fixed intervals.
// A tick whose job type is still queued or running is skipped.
type IntervalTrigger struct {
	sweepInterval time.Duration
	dirtyInterval time.Duration
	scheduler     *Scheduler
	logger        *zap.Logger
	now           func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a trigger from the scheduler's intervals. A
// non-positive interval disables that job.
func NewIntervalTrigger(config Config, scheduler *Scheduler, logger *zap.Logger) *IntervalTrigger {
	return &IntervalTrigger{
		sweepInterval: config.SweepInterval,
		dirtyInterval: config.DirtyInterval,
		scheduler:     scheduler,
		logger:        logger,
		now:           time.Now,
	}
}

// Start starts the trigger loops. A sweep is submitted right away so a fresh
// worker prices every SKU once on startup.
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	if t.sweepInterval > 0 {
		t.trigger(JobTypeSweep)
		t.wg.Add(1)
		go t.runLoop(ctx, JobTypeSweep, t.sweepInterval)
	}
	if t.dirtyInterval > 0 {
		t.wg.Add(1)
		go t.runLoop(ctx, JobTypeDirty, t.dirtyInterval)
	}

	t.logger.Info("Interval trigger started",
		zap.Duration("sweep_interval", t.sweepInterval),
		zap.Duration("dirty_interval", t.dirtyInterval),
	)
	return nil
}

// Stop stops the trigger
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

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

func (t *IntervalTrigger) runLoop(ctx context.Context, jobType JobType, interval time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.trigger(jobType)
		}
	}
}

func (t *IntervalTrigger) trigger(jobType JobType) {
	err := t.scheduler.Schedule(jobType, t.now())
	switch {
	case err == nil:
	case errors.Is(err, ErrJobAlreadyQueued):
		t.logger.Debug("Skipping tick, previous job still queued", zap.String("job_type", string(jobType)))
	default:
		t.logger.Warn("Failed to schedule job", zap.String("job_type", string(jobType)), zap.Error(err))
	}
}

// TriggerNow submits a job of jobType immediately
func (t *IntervalTrigger) TriggerNow(jobType JobType) error {
	return t.scheduler.Schedule(jobType, t.now())
}
