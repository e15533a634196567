package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var (
	t0      = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fixedAt = t0.Add(time.Hour)
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock() time.Time { return fixedAt }

// recordingNotifier collects notifications in order.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []ports.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n ports.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.msgs = append(r.msgs, n)
}

func (r *recordingNotifier) last() ports.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.msgs) == 0 {
		return ports.Notification{}
	}

	return r.msgs[len(r.msgs)-1]
}

func localQuote(id, text, category string, dirty bool) domain.Quote {
	return domain.Quote{
		ID:        id,
		Text:      text,
		Category:  category,
		UpdatedAt: t0,
		Source:    domain.SourceLocal,
		NeedsSync: dirty,
	}
}

func serverQuote(id, text, category string) domain.Quote {
	return domain.Quote{ID: id, Text: text, Category: category, Source: domain.SourceServer}
}

// loadedStore returns a RecordStore backed by a memory repository holding quotes.
func loadedStore(quotes ...domain.Quote) (*RecordStore, *memory.Store) {
	repo := memory.NewWithQuotes(quotes...)
	store := NewRecordStore(RecordStoreConfig{
		Repository: repo,
		Logger:     discardLogger(),
		Clock:      fixedClock,
	})
	store.Load(context.Background())

	return store, repo
}
