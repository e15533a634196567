package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// RecordStore is the in-memory quote collection shared by the quote service,
// the reconciler and the pusher. It is loaded once from a repository and
// written back with Persist.
type RecordStore struct {
	mu     sync.RWMutex
	quotes domain.QuoteSet

	// persistMu orders snapshot-and-save so an older snapshot is never
	// written after a newer one.
	persistMu sync.Mutex

	repo         ports.QuoteRepository
	logger       *slog.Logger
	now          func() time.Time
	seedDefaults bool
}

// RecordStoreConfig contains the dependencies of a RecordStore.
type RecordStoreConfig struct {
	Repository ports.QuoteRepository
	Logger     *slog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time

	// SeedDefaults fills a never-written repository with domain.DefaultQuotes.
	SeedDefaults bool
}

// NewRecordStore creates an empty store. Call Load before serving reads.
func NewRecordStore(cfg RecordStoreConfig) *RecordStore {
	if cfg.Repository == nil {
		panic("app: RecordStore requires a Repository")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &RecordStore{
		quotes:       domain.QuoteSet{},
		repo:         cfg.Repository,
		logger:       logger.With(slog.String("component", "app.RecordStore")),
		now:          clock,
		seedDefaults: cfg.SeedDefaults,
	}
}

// Load replaces the in-memory collection with the repository content.
//
// Load never fails. A repository that was never written is seeded (when
// enabled); unreadable or malformed content leaves the store empty.
func (s *RecordStore) Load(ctx context.Context) {
	set, err := s.repo.Load(ctx)

	switch {
	case err == nil:
		s.replace(set)
		s.logger.InfoContext(ctx, "quotes loaded", slog.Int("count", len(set)))

	case domain.IsNotFound(err) && s.seedDefaults:
		s.replace(domain.NewQuoteSet(domain.DefaultQuotes(s.now())...))
		s.logger.InfoContext(ctx, "store empty, seeded default quotes")

		if err := s.Persist(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to persist seeded quotes", slog.Any("error", err))
		}

	case domain.IsNotFound(err):
		s.replace(domain.QuoteSet{})

	default:
		s.replace(domain.QuoteSet{})
		s.logger.WarnContext(ctx, "stored quotes unreadable, starting empty", slog.Any("error", err))
	}
}

func (s *RecordStore) replace(set domain.QuoteSet) {
	if set == nil {
		set = domain.QuoteSet{}
	}

	s.mu.Lock()
	s.quotes = set
	s.mu.Unlock()
}

// Snapshot returns a copy of the collection.
func (s *RecordStore) Snapshot() domain.QuoteSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.quotes.Clone()
}

// Len returns the number of stored quotes.
func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}

// Get returns the quote with id.
func (s *RecordStore) Get(id string) (domain.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[id]

	return q, ok
}

// Put inserts or replaces quotes by id.
func (s *RecordStore) Put(quotes ...domain.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quotes {
		s.quotes[q.ID] = q
	}
}

// Update runs fn against a copy of the collection while holding the write
// lock and installs the returned set. On error the collection is unchanged.
func (s *RecordStore) Update(fn func(current domain.QuoteSet) (domain.QuoteSet, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.quotes.Clone())
	if err != nil {
		return err
	}

	if next == nil {
		next = domain.QuoteSet{}
	}

	s.quotes = next

	return nil
}

// MarkSynced clears NeedsSync on the stored copy of uploaded and stamps it
// with at. It returns false when the record changed or vanished since the
// upload started; such a record stays flagged.
func (s *RecordStore) MarkSynced(uploaded domain.Quote, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.quotes[uploaded.ID]
	if !ok || !current.SameContent(uploaded) {
		return false
	}

	current.NeedsSync = false
	current.UpdatedAt = at
	s.quotes[current.ID] = current

	return true
}

// Persist writes the collection to the repository. Concurrent calls are
// serialized, each saving a snapshot taken after the previous save ended.
func (s *RecordStore) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	snapshot := s.Snapshot()

	if err := s.repo.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("persisting %d quotes: %w", len(snapshot), err)
	}

	return nil
}
