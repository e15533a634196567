package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// Scheduler defaults.
const (
	DefaultSyncInterval     = 30 * time.Second
	DefaultSyncInitialDelay = time.Second
	DefaultSyncTimeout      = 20 * time.Second
)

// ErrSchedulerRunning is returned by Start on a scheduler that is already running.
var ErrSchedulerRunning = errors.New("scheduler already running")

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Task runs once per tick.
	Task func(ctx context.Context) error

	Interval     time.Duration
	InitialDelay time.Duration

	// Timeout bounds a single run of Task.
	Timeout time.Duration

	Logger *slog.Logger
}

// Scheduler runs a task after an initial delay and then on every interval
// until stopped. Runs never overlap: a tick that arrives while the task is
// still running is dropped.
type Scheduler struct {
	cfg    SchedulerConfig
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Task == nil {
		panic("app: Scheduler requires a Task")
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSyncInterval
	}

	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSyncTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app.Scheduler")),
	}
}

// Start launches the loop. It stops when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return ErrSchedulerRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx, s.done)

	s.logger.InfoContext(ctx, "scheduler started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("initial_delay", s.cfg.InitialDelay),
	)

	return nil
}

// Stop cancels the loop, including a run in progress, and waits for it to
// exit. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.logger.Info("scheduler stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.done != nil
}

// Interval returns the configured tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.cfg.Interval
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer s.exited(done)

	delay := time.NewTimer(s.cfg.InitialDelay)
	defer delay.Stop()

	select {
	case <-ctx.Done():
		return
	case <-delay.C:
	}

	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// exited clears the running state when the loop ends without Stop, e.g.
// because the parent context was cancelled.
func (s *Scheduler) exited(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != done {
		return
	}

	s.cancel()
	s.cancel, s.done = nil, nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := s.cfg.Task(runCtx)

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSyncInProgress):
		s.logger.DebugContext(ctx, "previous run still in flight, tick skipped")
	case ctx.Err() != nil:
		// stopping
	default:
		s.logger.WarnContext(ctx, "scheduled run failed", slog.Any("error", err))
	}
}
