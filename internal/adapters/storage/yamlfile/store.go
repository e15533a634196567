// Package yamlfile persists the quote collection and preferences in a single
// human-editable YAML document.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var _ ports.Store = (*Store)(nil)

const formatVersion = 1

// document is the on-disk layout. SavedAt stays nil until the collection is
// written, so a file holding only preferences still loads as never written.
type document struct {
	Version     int               `yaml:"version"`
	SavedAt     *time.Time        `yaml:"saved_at,omitempty"`
	Preferences map[string]string `yaml:"preferences,omitempty"`
	Quotes      []record          `yaml:"quotes"`
}

type record struct {
	ID        string    `yaml:"id"`
	Text      string    `yaml:"text"`
	Category  string    `yaml:"category"`
	UpdatedAt time.Time `yaml:"updated_at"`
	Source    string    `yaml:"source"`
	NeedsSync bool      `yaml:"needs_sync,omitempty"`
}

// Store is a ports.Store backed by one YAML file. Every write replaces the
// file atomically.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// New returns a store for path. The file is created on first write.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		path:   path,
		logger: logger.With(slog.String("component", "storage.yamlfile")),
	}
}

func (s *Store) Load(ctx context.Context) (domain.QuoteSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	if doc.SavedAt == nil {
		return nil, domain.NewNotFoundError("stored quotes", "")
	}

	set := make(domain.QuoteSet, len(doc.Quotes))

	for _, rec := range doc.Quotes {
		q := domain.Quote{
			ID:        rec.ID,
			Text:      rec.Text,
			Category:  rec.Category,
			UpdatedAt: rec.UpdatedAt.UTC(),
			Source:    domain.Source(rec.Source),
			NeedsSync: rec.NeedsSync,
		}

		if err := q.Validate(); err != nil {
			s.logger.WarnContext(ctx, "skipping invalid stored quote",
				slog.String("quote_id", q.ID),
				slog.Any("error", err),
			)

			continue
		}

		set[q.ID] = q
	}

	return set, nil
}

// Save replaces the quotes and keeps the stored preferences. A malformed
// existing file is overwritten.
func (s *Store) Save(ctx context.Context, set domain.QuoteSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		if !domain.IsMalformed(err) {
			return err
		}

		s.logger.WarnContext(ctx, "overwriting malformed store file", slog.Any("error", err))

		doc = &document{}
	}

	now := time.Now().UTC()
	doc.SavedAt = &now
	doc.Quotes = make([]record, 0, len(set))

	for _, q := range set.Sorted() {
		doc.Quotes = append(doc.Quotes, record{
			ID:        q.ID,
			Text:      q.Text,
			Category:  q.Category,
			UpdatedAt: q.UpdatedAt.UTC(),
			Source:    string(q.Source),
			NeedsSync: q.NeedsSync,
		})
	}

	return s.write(doc)
}

func (s *Store) Preference(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", err
	}

	value, ok := doc.Preferences[key]
	if !ok {
		return "", domain.NewNotFoundError("preference", key)
	}

	return value, nil
}

func (s *Store) SetPreference(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	if doc.Preferences == nil {
		doc.Preferences = map[string]string{}
	}

	doc.Preferences[key] = value

	return s.write(doc)
}

// Close is a no-op; nothing is held open between calls.
func (s *Store) Close() error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "store" }

// Check verifies the parent directory is reachable.
func (s *Store) Check(context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return domain.NewUnavailableError("store", err.Error())
	}

	if !info.IsDir() {
		return domain.NewUnavailableError("store", filepath.Dir(s.path)+" is not a directory")
	}

	return nil
}

// read returns an empty document when the file does not exist.
func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &document{Version: formatVersion}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, domain.NewMalformedError("store file "+s.path, err)
	}

	if doc.Version > formatVersion {
		return nil, domain.NewMalformedError("store file "+s.path,
			fmt.Errorf("unsupported format version %d", doc.Version))
	}

	return &doc, nil
}

// write marshals doc to a temporary file next to the target and renames it
// into place.
func (s *Store) write(doc *document) error {
	doc.Version = formatVersion

	data, err := yaml.MarshalWithOptions(doc,
		yaml.Indent(2),
		yaml.IndentSequence(true),
	)
	if err != nil {
		return fmt.Errorf("encoding store file: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}

	return nil
}
