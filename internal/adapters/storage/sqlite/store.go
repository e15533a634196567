// Package sqlite persists the quote collection and preferences in a SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var _ ports.Store = (*Store)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS quotes (
		id         TEXT PRIMARY KEY,
		text       TEXT NOT NULL,
		category   TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		source     TEXT NOT NULL,
		needs_sync INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_quotes_needs_sync ON quotes(needs_sync);
	CREATE TABLE IF NOT EXISTS preferences (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	PRAGMA journal_mode=WAL;
	PRAGMA synchronous=NORMAL;
	PRAGMA temp_store=MEMORY;
`

// metaSavedAt marks that the collection has been written at least once. An
// empty quotes table without it means the store was never initialized.
const metaSavedAt = "quotes_saved_at"

// Store is a ports.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// between our own goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logger.Debug("sqlite store opened", slog.String("path", path))

	return &Store{
		db:     db,
		path:   path,
		logger: logger.With(slog.String("component", "storage.sqlite")),
	}, nil
}

// Load reads every stored quote. Rows that fail validation are skipped
// and logged.
func (s *Store) Load(ctx context.Context) (domain.QuoteSet, error) {
	var savedAt string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaSavedAt).Scan(&savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("stored quotes", "")
	}

	if err != nil {
		return nil, fmt.Errorf("reading store metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, category, updated_at, source, needs_sync
		FROM quotes
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying quotes: %w", err)
	}
	defer rows.Close()

	set := domain.QuoteSet{}
	skipped := 0

	for rows.Next() {
		var (
			q         domain.Quote
			updatedAt int64
			source    string
		)

		if err := rows.Scan(&q.ID, &q.Text, &q.Category, &updatedAt, &source, &q.NeedsSync); err != nil {
			return nil, domain.NewMalformedError("sqlite quotes table", err)
		}

		q.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		q.Source = domain.Source(source)

		if err := q.Validate(); err != nil {
			skipped++
			s.logger.WarnContext(ctx, "skipping invalid stored quote",
				slog.String("quote_id", q.ID),
				slog.Any("error", err),
			)

			continue
		}

		set[q.ID] = q
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quotes: %w", err)
	}

	s.logger.DebugContext(ctx, "quotes loaded",
		slog.Int("count", len(set)),
		slog.Int("skipped", skipped),
	)

	return set, nil
}

// Save replaces the stored collection in one transaction.
func (s *Store) Save(ctx context.Context, set domain.QuoteSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM quotes`); err != nil {
		return fmt.Errorf("clearing quotes: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quotes (id, text, category, updated_at, source, needs_sync)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, q := range set.Sorted() {
		if _, err := stmt.ExecContext(ctx,
			q.ID, q.Text, q.Category, q.UpdatedAt.UnixMilli(), string(q.Source), q.NeedsSync,
		); err != nil {
			return fmt.Errorf("inserting quote %s: %w", q.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, metaSavedAt, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("updating store metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing quotes: %w", err)
	}

	return nil
}

func (s *Store) Preference(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.NewNotFoundError("preference", key)
	}

	if err != nil {
		return "", fmt.Errorf("reading preference %s: %w", key, err)
	}

	return value, nil
}

func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}

	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "store" }

// Check pings the database.
func (s *Store) Check(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.NewUnavailableError("store", err.Error())
	}

	return nil
}
