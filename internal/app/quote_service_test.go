package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/mocks"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

type stubArchiver struct {
	name string
	data []byte
	err  error
}

func (s *stubArchiver) Archive(_ context.Context, name string, data []byte) (string, error) {
	s.name, s.data = name, data
	if s.err != nil {
		return "", s.err
	}

	return "s3://snapshots/" + name, nil
}

func newQuoteService(t *testing.T, quotes ...domain.Quote) (*QuoteService, *RecordStore, *memory.Store, *recordingNotifier) {
	t.Helper()

	store, repo := loadedStore(quotes...)
	notifier := &recordingNotifier{}

	svc := NewQuoteService(QuoteServiceConfig{
		Store:       store,
		Preferences: repo,
		Notifier:    notifier,
		Logger:      discardLogger(),
		Clock:       fixedClock,
		Pick:        func(int) int { return 0 },
	})

	return svc, store, repo, notifier
}

func sampleQuotes() []domain.Quote {
	return []domain.Quote{
		localQuote("loc-1", "Begin doing.", "Motivation", false),
		localQuote("loc-2", "Get up.", "Perseverance", false),
		localQuote("loc-3", "Keep going.", "motivation", true),
	}
}

func TestNewQuoteService_Panics(t *testing.T) {
	store, repo := loadedStore()

	assert.Panics(t, func() { NewQuoteService(QuoteServiceConfig{Preferences: repo}) })
	assert.Panics(t, func() { NewQuoteService(QuoteServiceConfig{Store: store}) })
}

func TestQuoteService_List(t *testing.T) {
	svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

	tests := []struct {
		category string
		wantIDs  []string
	}{
		{"", []string{"loc-1", "loc-2", "loc-3"}},
		{"all", []string{"loc-1", "loc-2", "loc-3"}},
		{"MOTIVATION", []string{"loc-1", "loc-3"}},
		{"Zen", nil},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			var ids []string
			for _, q := range svc.List(context.Background(), tt.category) {
				ids = append(ids, q.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestQuoteService_Random(t *testing.T) {
	ctx := context.Background()

	t.Run("picks from the filtered set and remembers it", func(t *testing.T) {
		svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

		q, err := svc.Random(ctx, "Perseverance")
		require.NoError(t, err)
		assert.Equal(t, "loc-2", q.ID)

		last, err := svc.LastViewed(ctx)
		require.NoError(t, err)
		assert.Equal(t, q, last)
	})

	t.Run("empty category uses the selected one", func(t *testing.T) {
		svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

		_, err := svc.SelectCategory(ctx, "perseverance")
		require.NoError(t, err)

		q, err := svc.Random(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "Perseverance", q.Category)
	})

	t.Run("no quotes in category", func(t *testing.T) {
		svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

		_, err := svc.Random(ctx, "Zen")
		require.True(t, domain.IsNotFound(err))
		assert.Contains(t, err.Error(), "Zen")
	})

	t.Run("empty store", func(t *testing.T) {
		svc, _, _, _ := newQuoteService(t)

		_, err := svc.Random(ctx, "all")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestQuoteService_LastViewed_NothingViewed(t *testing.T) {
	svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

	_, err := svc.LastViewed(context.Background())
	assert.True(t, domain.IsNotFound(err))
}

func TestQuoteService_Get(t *testing.T) {
	svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

	q, err := svc.Get(context.Background(), "loc-2")
	require.NoError(t, err)
	assert.Equal(t, "Get up.", q.Text)

	_, err = svc.Get(context.Background(), "loc-404")
	assert.True(t, domain.IsNotFound(err))
}

func TestQuoteService_Add(t *testing.T) {
	svc, store, repo, notifier := newQuoteService(t, sampleQuotes()...)

	q, err := svc.Add(context.Background(), "  Stay hungry. ", "Motivation")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(q.ID, domain.LocalIDPrefix))
	assert.Equal(t, "Stay hungry.", q.Text)
	assert.True(t, q.NeedsSync)
	assert.Equal(t, fixedAt, q.UpdatedAt)
	assert.Equal(t, 4, store.Len())

	saved, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, saved, q.ID)

	assert.Equal(t, ports.LevelSuccess, notifier.last().Level)
	assert.Equal(t, "Quote added locally. Will sync to server.", notifier.last().Message)
}

func TestQuoteService_Add_Validation(t *testing.T) {
	svc, store, _, _ := newQuoteService(t)

	_, err := svc.Add(context.Background(), "", "Motivation")
	require.True(t, domain.IsValidation(err))
	assert.Zero(t, store.Len())
}

func TestQuoteService_Add_PersistFailureKeepsQuote(t *testing.T) {
	svc, store, repo, notifier := newQuoteService(t)
	repo.SaveErr = errors.New("disk full")

	_, err := svc.Add(context.Background(), "Stay hungry.", "Motivation")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())

	var levels []ports.Level
	for _, n := range notifier.msgs {
		levels = append(levels, n.Level)
	}
	assert.Equal(t, []ports.Level{ports.LevelWarning, ports.LevelSuccess}, levels)
}

func TestQuoteService_Categories(t *testing.T) {
	svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

	assert.Equal(t, []string{"Motivation", "Perseverance"}, svc.Categories(context.Background()))
}

func TestQuoteService_SelectCategory(t *testing.T) {
	ctx := context.Background()
	svc, _, repo, _ := newQuoteService(t, sampleQuotes()...)

	assert.Equal(t, domain.AllCategories, svc.SelectedCategory(ctx), "defaults to all")

	got, err := svc.SelectCategory(ctx, " Motivation ")
	require.NoError(t, err)
	assert.Equal(t, "Motivation", got)
	assert.Equal(t, "Motivation", svc.SelectedCategory(ctx))

	_, err = svc.SelectCategory(ctx, "Zen")
	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, "Motivation", svc.SelectedCategory(ctx))

	got, err = svc.SelectCategory(ctx, "ALL")
	require.NoError(t, err)
	assert.Equal(t, domain.AllCategories, got)

	require.NoError(t, repo.SetPreference(ctx, PrefSelectedCategory, "Vanished"))
	assert.Equal(t, domain.AllCategories, svc.SelectedCategory(ctx), "unknown saved category falls back to all")
}

func TestQuoteService_Import(t *testing.T) {
	tests := []struct {
		name         string
		payload      string
		wantErr      func(error) bool
		wantImported int
		wantSkipped  int
		check        func(t *testing.T, store *RecordStore)
	}{
		{
			name: "fills defaults and flags for upload",
			payload: `[
				{"text": "Imported one"},
				{"id": "loc-1", "text": "Replaced", "category": "Motivation", "updatedAt": 1700000000000, "source": "server", "needsSync": false}
			]`,
			wantImported: 2,
			check: func(t *testing.T, store *RecordStore) {
				assert.Equal(t, 4, store.Len())

				replaced, _ := store.Get("loc-1")
				assert.Equal(t, "Replaced", replaced.Text)
				assert.Equal(t, domain.SourceServer, replaced.Source)
				assert.True(t, replaced.NeedsSync)
				assert.Equal(t, int64(1700000000000), replaced.UpdatedAt.UnixMilli())

				var added domain.Quote
				for _, q := range store.Snapshot() {
					if q.Text == "Imported one" {
						added = q
					}
				}
				assert.True(t, strings.HasPrefix(added.ID, domain.LocalIDPrefix))
				assert.Equal(t, domain.DefaultCategory, added.Category)
				assert.Equal(t, domain.SourceLocal, added.Source)
				assert.Equal(t, fixedAt, added.UpdatedAt)
			},
		},
		{
			name:         "skips entries without text and non-objects",
			payload:      `[{"category": "Empty"}, 42, "text", {"text": "ok", "source": "fax"}]`,
			wantImported: 1,
			wantSkipped:  3,
		},
		{
			name:    "object instead of array",
			payload: `{"text": "lonely"}`,
			wantErr: domain.IsValidation,
		},
		{
			name:    "broken JSON",
			payload: `[{"text": "unterminated"`,
			wantErr: domain.IsValidation,
		},
		{
			name:    "empty body",
			payload: ``,
			wantErr: domain.IsValidation,
		},
		{
			name:         "empty array",
			payload:      `[]`,
			wantImported: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, notifier := newQuoteService(t, sampleQuotes()...)

			result, err := svc.Import(context.Background(), strings.NewReader(tt.payload))

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				assert.Equal(t, 3, store.Len(), "store must be untouched")
				assert.Equal(t, ports.LevelError, notifier.last().Level)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantImported, result.Imported)
			assert.Equal(t, tt.wantSkipped, result.Skipped)

			if tt.check != nil {
				tt.check(t, store)
			}
		})
	}
}

func TestQuoteService_ExportImportRoundTrip(t *testing.T) {
	svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

	var buf bytes.Buffer
	n, err := svc.Export(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, buf.String(), "\n  {\n    \"id\": \"loc-1\"", "export is indented with two spaces")

	var records []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 3)
	assert.Equal(t, "loc-1", records[0]["id"])
	assert.InDelta(t, float64(t0.UnixMilli()), records[0]["updatedAt"], 0)
	assert.Equal(t, true, records[2]["needsSync"])

	other, store, _, _ := newQuoteService(t)
	result, err := other.Import(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 3, store.Len())
}

func TestQuoteService_ArchiveSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		svc, _, _, _ := newQuoteService(t, sampleQuotes()...)

		_, err := svc.ArchiveSnapshot(ctx)
		assert.True(t, domain.IsUnavailable(err))
	})

	t.Run("uploads the export", func(t *testing.T) {
		store, repo := loadedStore(sampleQuotes()...)
		archiver := &stubArchiver{}
		notifier := mocks.NewMockNotifier(t)
		notifier.EXPECT().Notify(mock.Anything, mock.MatchedBy(func(n ports.Notification) bool {
			return n.Level == ports.LevelSuccess
		})).Return().Once()

		svc := NewQuoteService(QuoteServiceConfig{
			Store:       store,
			Preferences: repo,
			Notifier:    notifier,
			Archiver:    archiver,
			Logger:      discardLogger(),
			Clock:       fixedClock,
		})

		location, err := svc.ArchiveSnapshot(ctx)
		require.NoError(t, err)

		assert.Equal(t, "quotes-20260301T100000Z.json", archiver.name)
		assert.Equal(t, "s3://snapshots/quotes-20260301T100000Z.json", location)
		assert.True(t, json.Valid(archiver.data))
	})

	t.Run("archive failure", func(t *testing.T) {
		store, repo := loadedStore(sampleQuotes()...)
		svc := NewQuoteService(QuoteServiceConfig{
			Store:       store,
			Preferences: repo,
			Archiver:    &stubArchiver{err: domain.NewUnavailableError("minio", "bucket missing")},
			Logger:      discardLogger(),
		})

		_, err := svc.ArchiveSnapshot(ctx)
		assert.True(t, domain.IsUnavailable(err))
	})
}
