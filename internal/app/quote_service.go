// Package app contains the application services: the record store, the
// quote use cases and the sync cycle with its scheduler.
package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// PrefSelectedCategory is the preference key of the category filter.
const PrefSelectedCategory = "selectedCategory"

// ImportResult summarises an import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// QuoteService implements the quote use cases on top of a RecordStore.
type QuoteService struct {
	store    *RecordStore
	prefs    ports.PreferenceStore
	notifier ports.Notifier
	archiver ports.SnapshotArchiver
	logger   *slog.Logger
	now      func() time.Time
	pick     func(n int) int

	mu         sync.Mutex
	lastViewed string
}

// QuoteServiceConfig contains the dependencies of a QuoteService.
type QuoteServiceConfig struct {
	Store       *RecordStore
	Preferences ports.PreferenceStore
	Notifier    ports.Notifier

	// Archiver is optional; without it ArchiveSnapshot reports unavailable.
	Archiver ports.SnapshotArchiver

	Logger *slog.Logger
	Clock  func() time.Time

	// Pick returns a random index in [0, n). Defaults to math/rand/v2.
	Pick func(n int) int
}

// NewQuoteService creates a quote service. Store and Preferences are required.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.Store == nil {
		panic("app: QuoteService requires a Store")
	}

	if cfg.Preferences == nil {
		panic("app: QuoteService requires Preferences")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	pick := cfg.Pick
	if pick == nil {
		pick = rand.IntN //nolint:gosec // quote selection needs no crypto randomness
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}

	return &QuoteService{
		store:    cfg.Store,
		prefs:    cfg.Preferences,
		notifier: notifier,
		archiver: cfg.Archiver,
		logger:   logger.With(slog.String("component", "app.QuoteService")),
		now:      clock,
		pick:     pick,
	}
}

// List returns the quotes in category ordered by id. An empty category or
// "all" lists everything.
func (s *QuoteService) List(_ context.Context, category string) []domain.Quote {
	return s.store.Snapshot().Filter(category)
}

// Get returns one quote by id.
func (s *QuoteService) Get(_ context.Context, id string) (domain.Quote, error) {
	q, ok := s.store.Get(id)
	if !ok {
		return domain.Quote{}, domain.NewNotFoundError("quote", id)
	}

	return q, nil
}

// Random picks a quote from category, or from the selected category when
// category is empty, and remembers it as the last viewed quote.
func (s *QuoteService) Random(ctx context.Context, category string) (domain.Quote, error) {
	if strings.TrimSpace(category) == "" {
		category = s.SelectedCategory(ctx)
	}

	candidates := s.store.Snapshot().Filter(category)
	if len(candidates) == 0 {
		if domain.IsAllCategories(category) {
			return domain.Quote{}, domain.NewNotFoundError("quote", "")
		}

		return domain.Quote{}, domain.NewNotFoundError("quote in category "+category, "")
	}

	q := candidates[s.pick(len(candidates))]

	s.mu.Lock()
	s.lastViewed = q.ID
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "random quote picked",
		slog.String("quote_id", q.ID),
		slog.String("category", category),
	)

	return q, nil
}

// LastViewed returns the quote most recently returned by Random in this
// process.
func (s *QuoteService) LastViewed(_ context.Context) (domain.Quote, error) {
	s.mu.Lock()
	id := s.lastViewed
	s.mu.Unlock()

	if id == "" {
		return domain.Quote{}, domain.NewNotFoundError("last viewed quote", "")
	}

	q, ok := s.store.Get(id)
	if !ok {
		return domain.Quote{}, domain.NewNotFoundError("last viewed quote", id)
	}

	return q, nil
}

// Add creates a local quote flagged for upload and persists the store.
func (s *QuoteService) Add(ctx context.Context, text, category string) (domain.Quote, error) {
	q, err := domain.NewLocalQuote(text, category, s.now())
	if err != nil {
		return domain.Quote{}, err
	}

	s.store.Put(q)
	s.persist(ctx)

	s.logger.InfoContext(ctx, "quote added",
		slog.String("quote_id", q.ID),
		slog.String("category", q.Category),
	)
	s.notify(ctx, ports.LevelSuccess, "Quote added locally. Will sync to server.")

	return q, nil
}

// Categories returns the distinct categories in collation order.
func (s *QuoteService) Categories(_ context.Context) []string {
	return s.store.Snapshot().Categories()
}

// SelectedCategory returns the saved category filter. It falls back to
// "all" when nothing is saved, the preference cannot be read, or the saved
// category no longer exists.
func (s *QuoteService) SelectedCategory(ctx context.Context) string {
	value, err := s.prefs.Preference(ctx, PrefSelectedCategory)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.WarnContext(ctx, "failed to read selected category", slog.Any("error", err))
		}

		return domain.AllCategories
	}

	if domain.IsAllCategories(value) || !s.store.Snapshot().HasCategory(value) {
		return domain.AllCategories
	}

	return value
}

// SelectCategory saves the category filter. It must be "all" or an existing
// category.
func (s *QuoteService) SelectCategory(ctx context.Context, category string) (string, error) {
	category = strings.TrimSpace(category)

	if domain.IsAllCategories(category) {
		category = domain.AllCategories
	} else if !s.store.Snapshot().HasCategory(category) {
		return "", domain.NewValidationErrorWithValue("category", "unknown category", category)
	}

	if err := s.prefs.SetPreference(ctx, PrefSelectedCategory, category); err != nil {
		return "", fmt.Errorf("saving selected category: %w", err)
	}

	return category, nil
}

// Import reads a JSON array of quotes and upserts them by id. Every imported
// quote is flagged for upload. Malformed input leaves the store untouched.
func (s *QuoteService) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	quotes, skipped, err := decodeImport(r, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "import rejected", slog.Any("error", err))
		s.notify(ctx, ports.LevelError, "Import failed. The file must contain a JSON array of quotes.")

		return ImportResult{}, err
	}

	s.store.Put(quotes...)
	s.persist(ctx)

	result := ImportResult{Imported: len(quotes), Skipped: skipped}

	s.logger.InfoContext(ctx, "quotes imported",
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
	)
	s.notify(ctx, ports.LevelSuccess, fmt.Sprintf("Imported %d quote(s). They will sync on the next cycle.", result.Imported))

	return result, nil
}

// Export writes every quote, ordered by id, as an indented JSON array.
func (s *QuoteService) Export(_ context.Context, w io.Writer) (int, error) {
	quotes := s.store.Snapshot().Sorted()

	if err := encodeQuotes(w, quotes); err != nil {
		return 0, fmt.Errorf("encoding export: %w", err)
	}

	return len(quotes), nil
}

// ArchiveSnapshot exports the collection to the snapshot archive and returns
// the object location.
func (s *QuoteService) ArchiveSnapshot(ctx context.Context) (string, error) {
	if s.archiver == nil {
		return "", domain.NewUnavailableError("archive", "snapshot archive is not configured")
	}

	var buf bytes.Buffer
	if _, err := s.Export(ctx, &buf); err != nil {
		return "", err
	}

	name := fmt.Sprintf("quotes-%s.json", s.now().UTC().Format("20060102T150405Z"))

	location, err := s.archiver.Archive(ctx, name, buf.Bytes())
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot archive failed", slog.Any("error", err))
		return "", err
	}

	s.logger.InfoContext(ctx, "snapshot archived", slog.String("location", location))
	s.notify(ctx, ports.LevelSuccess, "Snapshot archived to "+location)

	return location, nil
}

func (s *QuoteService) persist(ctx context.Context) {
	if err := s.store.Persist(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to persist quotes", slog.Any("error", err))
		s.notify(ctx, ports.LevelWarning, "Saving locally failed. Changes are kept in memory.")
	}
}

func (s *QuoteService) notify(ctx context.Context, level ports.Level, msg string) {
	s.notifier.Notify(ctx, ports.Notification{Level: level, Message: msg, At: s.now()})
}
