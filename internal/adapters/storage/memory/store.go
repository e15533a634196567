// Package memory provides a process-local quote store for tests and
// ephemeral runs.
package memory

import (
	"context"
	"sync"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var _ ports.Store = (*Store)(nil)

// Store keeps the collection and preferences in memory.
type Store struct {
	mu     sync.RWMutex
	quotes domain.QuoteSet
	prefs  map[string]string

	// LoadErr and SaveErr, when set, are returned by Load and Save.
	LoadErr error
	SaveErr error
}

// New returns a store that has never been written.
func New() *Store {
	return &Store{prefs: map[string]string{}}
}

// NewWithQuotes returns a store already holding quotes.
func NewWithQuotes(quotes ...domain.Quote) *Store {
	s := New()
	s.quotes = domain.NewQuoteSet(quotes...)

	return s
}

func (s *Store) Load(_ context.Context) (domain.QuoteSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.LoadErr != nil {
		return nil, s.LoadErr
	}

	if s.quotes == nil {
		return nil, domain.NewNotFoundError("stored quotes", "")
	}

	return s.quotes.Clone(), nil
}

func (s *Store) Save(_ context.Context, set domain.QuoteSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return s.SaveErr
	}

	s.quotes = set.Clone()

	return nil
}

func (s *Store) Preference(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.prefs[key]
	if !ok {
		return "", domain.NewNotFoundError("preference", key)
	}

	return v, nil
}

func (s *Store) SetPreference(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs[key] = value

	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "store" }

// Check implements ports.HealthChecker.
func (s *Store) Check(context.Context) error { return nil }
