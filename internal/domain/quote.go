package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Source marks where a quote came from. It is informational only.
type Source string

const (
	SourceLocal  Source = "local"
	SourceServer Source = "server"
)

// Valid reports whether s is a known provenance marker.
func (s Source) Valid() bool {
	return s == SourceLocal || s == SourceServer
}

// ID prefixes keep locally minted and remotely sourced ids from colliding.
const (
	LocalIDPrefix  = "loc-"
	RemoteIDPrefix = "srv-"
)

const (
	// DefaultCategory is applied to imported quotes that carry no category.
	DefaultCategory = "General"

	// AllCategories is the filter value that matches every quote.
	AllCategories = "all"
)

// Quote is a single record in the collection.
type Quote struct {
	ID        string
	Text      string
	Category  string
	UpdatedAt time.Time
	Source    Source

	// NeedsSync is set while the record has local changes the remote side
	// has not acknowledged.
	NeedsSync bool
}

// NewLocalID mints an id in the local namespace.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}

// NewLocalQuote builds a locally created quote flagged for upload.
func NewLocalQuote(text, category string, now time.Time) (Quote, error) {
	q := Quote{
		ID:        NewLocalID(),
		Text:      strings.TrimSpace(text),
		Category:  strings.TrimSpace(category),
		UpdatedAt: now,
		Source:    SourceLocal,
		NeedsSync: true,
	}

	if err := q.Validate(); err != nil {
		return Quote{}, err
	}

	return q, nil
}

// Validate checks the record invariants.
func (q Quote) Validate() error {
	switch {
	case q.ID == "":
		return NewValidationError("id", "must not be empty")
	case strings.TrimSpace(q.Text) == "":
		return NewValidationError("text", "must not be empty")
	case strings.TrimSpace(q.Category) == "":
		return NewValidationError("category", "must not be empty")
	case !q.Source.Valid():
		return NewValidationErrorWithValue("source", "must be local or server", q.Source)
	}

	return nil
}

// SameContent reports whether both records carry the same text and category.
// Other fields are ignored.
func (q Quote) SameContent(other Quote) bool {
	return q.Text == other.Text && q.Category == other.Category
}

var categoryFolder = cases.Fold()

// CategoryKey returns the case-folded form used to compare categories.
func CategoryKey(category string) string {
	return categoryFolder.String(strings.TrimSpace(category))
}

// IsAllCategories reports whether category selects every quote.
func IsAllCategories(category string) bool {
	category = strings.TrimSpace(category)
	return category == "" || strings.EqualFold(category, AllCategories)
}

// InCategory reports whether q belongs to category. An empty category or
// "all" matches every quote.
func (q Quote) InCategory(category string) bool {
	if IsAllCategories(category) {
		return true
	}

	return CategoryKey(q.Category) == CategoryKey(category)
}

// QuoteSet is the collection keyed by id. Iteration order carries no meaning.
type QuoteSet map[string]Quote

// NewQuoteSet indexes quotes by id. Later duplicates replace earlier ones.
func NewQuoteSet(quotes ...Quote) QuoteSet {
	set := make(QuoteSet, len(quotes))
	for _, q := range quotes {
		set[q.ID] = q
	}

	return set
}

// Clone returns a shallow copy; Quote has no reference fields.
func (s QuoteSet) Clone() QuoteSet {
	out := make(QuoteSet, len(s))
	for id, q := range s {
		out[id] = q
	}

	return out
}

// Sorted lists the quotes ordered by id.
func (s QuoteSet) Sorted() []Quote {
	out := make([]Quote, 0, len(s))
	for _, q := range s {
		out = append(out, q)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Filter lists the quotes in category, ordered by id.
func (s QuoteSet) Filter(category string) []Quote {
	all := s.Sorted()
	if IsAllCategories(category) {
		return all
	}

	out := all[:0]
	for _, q := range all {
		if q.InCategory(category) {
			out = append(out, q)
		}
	}

	return out
}

// Dirty lists the quotes awaiting upload, ordered by id.
func (s QuoteSet) Dirty() []Quote {
	var out []Quote
	for _, q := range s.Sorted() {
		if q.NeedsSync {
			out = append(out, q)
		}
	}

	return out
}

// Categories returns the distinct category names in collation order.
// Names differing only by case collapse to the first spelling seen in id order.
func (s QuoteSet) Categories() []string {
	seen := make(map[string]struct{}, len(s))

	var out []string
	for _, q := range s.Sorted() {
		key := CategoryKey(q.Category)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, q.Category)
	}

	collate.New(language.English, collate.IgnoreCase).SortStrings(out)

	return out
}

// HasCategory reports whether any quote belongs to category.
func (s QuoteSet) HasCategory(category string) bool {
	key := CategoryKey(category)
	for _, q := range s {
		if CategoryKey(q.Category) == key {
			return true
		}
	}

	return false
}

// DefaultQuotes is the collection a fresh store starts with.
func DefaultQuotes(now time.Time) []Quote {
	return []Quote{
		{
			ID:        seedID(now, 1),
			Text:      "The best way to get started is to quit talking and begin doing.",
			Category:  "Motivation",
			UpdatedAt: now,
			Source:    SourceLocal,
		},
		{
			ID:        seedID(now, 2),
			Text:      "Don't let yesterday take up too much of today.",
			Category:  "Motivation",
			UpdatedAt: now,
			Source:    SourceLocal,
		},
		{
			ID:        seedID(now, 3),
			Text:      "It's not whether you get knocked down, it's whether you get up.",
			Category:  "Perseverance",
			UpdatedAt: now,
			Source:    SourceLocal,
		},
	}
}

func seedID(now time.Time, n int) string {
	return fmt.Sprintf("%s%d-%d", LocalIDPrefix, now.UnixMilli(), n)
}
