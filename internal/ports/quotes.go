// Package ports defines the contracts between the application layer and the
// adapters. Ports speak in domain types and domain errors; they never expose
// transport or storage details.
package ports

import (
	"context"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// QuoteRepository persists the whole quote collection.
type QuoteRepository interface {
	// Load returns the stored collection. It returns domain.ErrNotFound when
	// nothing has ever been saved and a domain.MalformedError when the stored
	// content cannot be decoded.
	Load(ctx context.Context) (domain.QuoteSet, error)

	// Save replaces the stored collection with set.
	Save(ctx context.Context, set domain.QuoteSet) error
}

// PreferenceStore keeps small user preferences such as the selected category.
type PreferenceStore interface {
	// Preference returns domain.ErrNotFound for unknown keys.
	Preference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
}

// Store is a repository that also keeps preferences. Every storage adapter
// implements it.
type Store interface {
	QuoteRepository
	PreferenceStore
	Close() error
}

// RemoteQuoteSource is the remote side of the sync cycle.
type RemoteQuoteSource interface {
	// FetchQuotes returns a bounded list of candidate records. UpdatedAt is
	// left zero; the caller stamps it.
	FetchQuotes(ctx context.Context) ([]domain.Quote, error)

	// UploadQuote sends one record. A nil error is an acknowledgement.
	UploadQuote(ctx context.Context, q domain.Quote) error
}

// Level is the severity of a status notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient status message.
type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier displays status messages. It never fails from the caller's view.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// SnapshotArchiver uploads an exported collection to long-term storage and
// returns the object location.
type SnapshotArchiver interface {
	Archive(ctx context.Context, name string, data []byte) (string, error)
}
