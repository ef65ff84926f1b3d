package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/application/ordersync"
	"github.com/ordersync/backend/internal/domain/integration"
)

// PassRunner executes one pipeline pass
type PassRunner interface {
	RunPass(ctx context.Context, pass integration.SyncPass) (ordersync.PassResult, error)
}

// Config holds scheduler configuration
type Config struct {
	// JobTimeout bounds a single pass; zero means no limit
	JobTimeout time.Duration
	// QueueSize is the number of jobs that may wait behind the running one
	QueueSize int
	// HistorySize is the number of finished jobs kept for inspection
	HistorySize int
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		JobTimeout:  30 * time.Minute,
		QueueSize:   16,
		HistorySize: 100,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JobTimeout < 0 || c.QueueSize <= 0 || c.HistorySize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Scheduler runs submitted pass jobs on a single worker. Failed jobs are
// recorded and never retried; the next trigger starts a fresh run.
type Scheduler struct {
	config Config
	runner PassRunner
	logger *zap.Logger

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// guarded by historyMu
	historyMu sync.RWMutex
	history   []*Job
	active    map[integration.SyncPass]*Job
}

// New creates a scheduler instance
func New(config Config, runner PassRunner, logger *zap.Logger) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		config:  config,
		runner:  runner,
		logger:  logger,
		jobs:    make(chan *Job, config.QueueSize),
		history: make([]*Job, 0, config.HistorySize),
		active:  make(map[integration.SyncPass]*Job),
	}, nil
}

// Start starts the worker
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.worker(ctx)

	s.logger.Info("Pass scheduler started",
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Int("queue_size", s.config.QueueSize),
	)
	return nil
}

// Stop cancels the running job and waits for the worker to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Pass scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Pass scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues a run of pass. A pass that is already waiting or running is
// not queued twice.
func (s *Scheduler) Submit(pass integration.SyncPass, trigger Trigger) (Job, error) {
	if !pass.IsValid() {
		return Job{}, ordersync.ErrUnknownPass
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return Job{}, ErrSchedulerNotRunning
	}

	s.historyMu.Lock()
	if existing, ok := s.active[pass]; ok {
		snapshot := *existing
		s.historyMu.Unlock()
		return snapshot, ErrPassAlreadyQueued
	}
	job := NewJob(pass, trigger)
	select {
	case s.jobs <- job:
	default:
		s.historyMu.Unlock()
		return Job{}, ErrJobQueueFull
	}
	s.active[pass] = job
	snapshot := *job
	s.historyMu.Unlock()

	s.logger.Debug("Pass job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("pass", pass.String()),
		zap.String("trigger", string(trigger)),
	)
	return snapshot, nil
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job)
		}
	}
}

// drain drops jobs still queued at shutdown
func (s *Scheduler) drain() {
	for {
		select {
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.historyMu.Lock()
			delete(s.active, job.Pass)
			s.historyMu.Unlock()
		default:
			return
		}
	}
}

func (s *Scheduler) processJob(ctx context.Context, job *Job) {
	s.historyMu.Lock()
	job.Start()
	s.historyMu.Unlock()

	s.logger.Info("Processing pass job",
		zap.String("job_id", job.ID.String()),
		zap.String("pass", job.Pass.String()),
		zap.String("trigger", string(job.Trigger)),
	)

	jobCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.config.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
	}
	result, err := s.runner.RunPass(jobCtx, job.Pass)
	cancel()

	s.historyMu.Lock()
	if err != nil {
		job.Fail(err, result)
	} else {
		job.Complete(result)
	}
	delete(s.active, job.Pass)
	s.addToHistory(job)
	s.historyMu.Unlock()

	if err != nil {
		s.logger.Error("Pass job failed",
			zap.String("job_id", job.ID.String()),
			zap.String("pass", job.Pass.String()),
			zap.String("run_id", result.RunID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Pass job completed",
		zap.String("job_id", job.ID.String()),
		zap.String("pass", job.Pass.String()),
		zap.String("run_id", result.RunID),
		zap.Duration("duration", job.Duration()),
	)
}

// addToHistory adds a finished job to the front of the history
func (s *Scheduler) addToHistory(job *Job) {
	s.history = append([]*Job{job}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// Jobs returns queued and running jobs first, then up to limit finished
// jobs, newest first. limit <= 0 returns the whole history.
func (s *Scheduler) Jobs(limit int) []Job {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	out := make([]Job, 0, len(s.active)+len(s.history))
	for _, pass := range []integration.SyncPass{integration.SyncPassInbound, integration.SyncPassOutbound, integration.SyncPassSweep} {
		if job, ok := s.active[pass]; ok {
			out = append(out, *job)
		}
	}
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	for _, job := range s.history[:limit] {
		out = append(out, *job)
	}
	return out
}

// Job returns one job by id
func (s *Scheduler) Job(id uuid.UUID) (Job, error) {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	for _, job := range s.active {
		if job.ID == id {
			return *job, nil
		}
	}
	for _, job := range s.history {
		if job.ID == id {
			return *job, nil
		}
	}
	return Job{}, ErrJobNotFound
}
