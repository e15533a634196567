package yamlfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "quotes.yaml")

	return New(path, nil), path
}

func sampleSet() domain.QuoteSet {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	return domain.NewQuoteSet(
		domain.Quote{ID: "loc-1", Text: "Stay hungry.", Category: "Motivation", UpdatedAt: at, Source: domain.SourceLocal, NeedsSync: true},
		domain.Quote{ID: "srv-2", Text: "Post: with a colon", Category: "Category 1", UpdatedAt: at.Add(time.Minute), Source: domain.SourceServer},
	)
}

func TestStore_LoadNeverWritten(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_SaveAndLoad(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	want := sampleSet()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loaded set mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version: 1")
	assert.Contains(t, string(data), "id: loc-1")

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files must not be left behind")
}

func TestStore_PreferencesOnlyFileIsNeverWritten(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetPreference(ctx, "selectedCategory", "Motivation"))

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, domain.ErrNotFound, "preferences alone do not initialize the collection")

	require.NoError(t, store.Save(ctx, sampleSet()))

	pref, err := store.Preference(ctx, "selectedCategory")
	require.NoError(t, err)
	assert.Equal(t, "Motivation", pref, "saving quotes keeps preferences")
}

func TestStore_Preferences(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Preference(ctx, "selectedCategory")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SetPreference(ctx, "selectedCategory", "all"))

	got, err := store.Preference(ctx, "selectedCategory")
	require.NoError(t, err)
	assert.Equal(t, "all", got)
}

func TestStore_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "quotes: [unterminated\n"},
		{"future version", "version: 99\nquotes: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, path := newTestStore(t)
			ctx := context.Background()

			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := store.Load(ctx)
			require.ErrorIs(t, err, domain.ErrMalformed)

			require.NoError(t, store.Save(ctx, sampleSet()), "a malformed file is overwritten")

			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})
	}
}

func TestStore_LoadSkipsInvalidRecords(t *testing.T) {
	store, path := newTestStore(t)

	content := `version: 1
saved_at: 2026-03-01T09:00:00Z
quotes:
  - id: loc-1
    text: Keep going.
    category: Motivation
    updated_at: 2026-03-01T09:00:00Z
    source: local
  - id: loc-2
    text: ""
    category: Motivation
    updated_at: 2026-03-01T09:00:00Z
    source: local
`
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Keep going.", got["loc-1"].Text)
}

func TestStore_Check(t *testing.T) {
	store, path := newTestStore(t)

	assert.Equal(t, "store", store.Name())
	require.ErrorIs(t, store.Check(context.Background()), domain.ErrUnavailable, "directory not created yet")

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, store.Check(context.Background()))
}
