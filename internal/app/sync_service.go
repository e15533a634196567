package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

const tracerName = "github.com/jsamuelsen/quote-sync/internal/app"

// Sync cycle outcomes, used as metric labels.
const (
	CycleSuccess = "success"
	CycleFailed  = "failed"
	CycleSkipped = "skipped"
)

// SyncRecorder receives sync cycle measurements.
type SyncRecorder interface {
	ObserveCycle(result string, d time.Duration)
	AddConflicts(n int)
	AddPushed(n int)
	AddPushFailures(n int)
	SetStoreSize(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCycle(string, time.Duration) {}
func (nopRecorder) AddConflicts(int)                   {}
func (nopRecorder) AddPushed(int)                      {}
func (nopRecorder) AddPushFailures(int)                {}
func (nopRecorder) SetStoreSize(int)                   {}

// SyncReport describes one finished sync cycle.
type SyncReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Policy     domain.ConflictPolicy
	Fetched    int
	Inserted   int
	Conflicts  []domain.Conflict
	Pushed     int
	PushFailed []string

	// Err is set when the cycle failed before completing.
	Err string
}

// Duration is how long the cycle ran.
func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncService runs sync cycles: fetch, reconcile, push, persist, notify.
// At most one cycle runs at a time.
type SyncService struct {
	store    *RecordStore
	remote   ports.RemoteQuoteSource
	pusher   *Pusher
	notifier ports.Notifier
	metrics  SyncRecorder
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time

	inFlight sync.Mutex

	mu       sync.RWMutex
	policy   domain.ConflictPolicy
	chooser  domain.ConflictResolver
	lastSync *SyncReport
}

// SyncServiceConfig contains the dependencies of a SyncService.
type SyncServiceConfig struct {
	Store    *RecordStore
	Remote   ports.RemoteQuoteSource
	Notifier ports.Notifier
	Metrics  SyncRecorder
	Logger   *slog.Logger
	Clock    func() time.Time

	// Policy defaults to domain.PolicyServerWins.
	Policy domain.ConflictPolicy

	// Chooser settles conflicts under domain.PolicyManual.
	Chooser domain.ConflictResolver
}

// NewSyncService creates a sync service. Store and Remote are required.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	if cfg.Store == nil {
		panic("app: SyncService requires a Store")
	}

	if cfg.Remote == nil {
		panic("app: SyncService requires a Remote")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}

	policy := cfg.Policy
	if policy == "" {
		policy = domain.PolicyServerWins
	}

	chooser := cfg.Chooser
	if chooser == nil {
		chooser = domain.Always(domain.KeepRemote)
	}

	return &SyncService{
		store:    cfg.Store,
		remote:   cfg.Remote,
		pusher:   NewPusher(cfg.Remote, clock),
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "app.SyncService")),
		tracer:   otel.Tracer(tracerName),
		now:      clock,
		policy:   policy,
		chooser:  chooser,
	}
}

// Policy returns the conflict policy used by the next cycle.
func (s *SyncService) Policy() domain.ConflictPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.policy
}

// SetPolicy switches the conflict policy for subsequent cycles.
func (s *SyncService) SetPolicy(ctx context.Context, policy domain.ConflictPolicy) error {
	var msg string

	switch policy {
	case domain.PolicyServerWins:
		msg = "Server-wins conflict resolve enabled."
	case domain.PolicyManual:
		msg = "Manual conflict resolve enabled."
	default:
		return domain.NewValidationErrorWithValue("policy", "must be server_wins or manual", policy)
	}

	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()

	s.notify(ctx, ports.LevelInfo, msg)

	return nil
}

// LastReport returns the report of the most recent cycle, or nil.
func (s *SyncService) LastReport() *SyncReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastSync
}

// Pending returns the number of records awaiting upload.
func (s *SyncService) Pending() int {
	return len(s.store.Snapshot().Dirty())
}

// Sync runs one cycle. It returns domain.ErrSyncInProgress without doing any
// work when another cycle is running. A failed fetch leaves the store
// untouched; failed uploads and a failed persist are reported but do not fail
// the cycle.
func (s *SyncService) Sync(ctx context.Context) (*SyncReport, error) {
	if !s.inFlight.TryLock() {
		s.metrics.ObserveCycle(CycleSkipped, 0)
		return nil, domain.ErrSyncInProgress
	}
	defer s.inFlight.Unlock()

	ctx, span := s.tracer.Start(ctx, "sync.cycle")
	defer span.End()

	ctx = logging.WithContext(ctx, logging.FromContext(ctx).With(slog.String("component", "app.SyncService")))

	policy, resolver := s.resolver()
	report := &SyncReport{StartedAt: s.now(), Policy: policy}

	s.notify(ctx, ports.LevelInfo, "Syncing with server…")

	err := s.run(ctx, resolver, report)

	report.FinishedAt = s.now()
	if err != nil {
		report.Err = err.Error()
	}

	// Published reports are read concurrently by LastReport and never
	// written again.
	s.record(report)

	span.SetAttributes(
		attribute.String("sync.policy", string(policy)),
		attribute.Int("sync.fetched", report.Fetched),
		attribute.Int("sync.conflicts", len(report.Conflicts)),
		attribute.Int("sync.pushed", report.Pushed),
	)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveCycle(CycleFailed, report.Duration())

		s.logger.ErrorContext(ctx, "sync cycle failed", slog.Any("error", err))
		s.notify(ctx, ports.LevelError, "Sync failed. Will retry later.")

		return report, err
	}

	s.metrics.ObserveCycle(CycleSuccess, report.Duration())
	s.metrics.AddConflicts(len(report.Conflicts))
	s.metrics.AddPushed(report.Pushed)
	s.metrics.AddPushFailures(len(report.PushFailed))
	s.metrics.SetStoreSize(s.store.Len())

	s.logger.InfoContext(ctx, "sync cycle complete",
		slog.Int("fetched", report.Fetched),
		slog.Int("inserted", report.Inserted),
		slog.Int("conflicts", len(report.Conflicts)),
		slog.Int("pushed", report.Pushed),
		slog.Int("push_failed", len(report.PushFailed)),
		slog.Duration("duration", report.Duration()),
	)

	s.notifyOutcome(ctx, report)

	return report, nil
}

func (s *SyncService) run(ctx context.Context, resolver domain.ConflictResolver, report *SyncReport) error {
	remote, err := s.remote.FetchQuotes(ctx)
	if err != nil {
		return fmt.Errorf("fetching remote quotes: %w", err)
	}

	report.Fetched = len(remote)

	err = s.store.Update(func(current domain.QuoteSet) (domain.QuoteSet, error) {
		now := s.now()
		stamped := stampRemote(remote, current, now)

		result, err := domain.Reconcile(ctx, current, stamped, resolver, now)
		if err != nil {
			return nil, err
		}

		report.Inserted = result.Inserted
		report.Conflicts = result.Conflicts

		return result.Merged, nil
	})
	if err != nil {
		return fmt.Errorf("reconciling: %w", err)
	}

	pushed := s.pusher.Push(ctx, s.store)
	report.Pushed = pushed.Pushed
	report.PushFailed = pushed.Failed

	if err := s.store.Persist(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to persist quotes after sync", slog.Any("error", err))
		s.notify(ctx, ports.LevelWarning, "Synced, but saving locally failed. Changes are kept in memory.")
	}

	return nil
}

// stampRemote gives fetched records a timestamp: the known local one for
// ids already stored, otherwise now.
func stampRemote(remote []domain.Quote, local domain.QuoteSet, now time.Time) []domain.Quote {
	out := make([]domain.Quote, len(remote))

	for i, q := range remote {
		if q.UpdatedAt.IsZero() {
			q.UpdatedAt = now
			if existing, ok := local[q.ID]; ok {
				q.UpdatedAt = existing.UpdatedAt
			}
		}

		out[i] = q
	}

	return out
}

func (s *SyncService) resolver() (domain.ConflictPolicy, domain.ConflictResolver) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.policy == domain.PolicyManual {
		return s.policy, s.chooser
	}

	return s.policy, domain.ServerWins
}

func (s *SyncService) record(report *SyncReport) {
	s.mu.Lock()
	s.lastSync = report
	s.mu.Unlock()
}

func (s *SyncService) notifyOutcome(ctx context.Context, report *SyncReport) {
	switch {
	case len(report.Conflicts) > 0:
		how := "Server version kept."
		if report.Policy == domain.PolicyManual {
			how = "Resolved via prompts."
		}

		s.notify(ctx, ports.LevelWarning,
			fmt.Sprintf("Sync complete with %d conflict(s). %s", len(report.Conflicts), how))

	case report.Pushed > 0:
		s.notify(ctx, ports.LevelSuccess,
			fmt.Sprintf("Sync complete. Pushed %d local change(s).", report.Pushed))

	default:
		s.notify(ctx, ports.LevelSuccess, "Sync complete. Everything is up to date.")
	}
}

func (s *SyncService) notify(ctx context.Context, level ports.Level, msg string) {
	s.notifier.Notify(ctx, ports.Notification{Level: level, Message: msg, At: s.now()})
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, ports.Notification) {}
