package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

// quoteRecord is the JSON shape of a quote in import and export files.
// UpdatedAt is epoch milliseconds.
type quoteRecord struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Category  string `json:"category"`
	UpdatedAt int64  `json:"updatedAt"`
	Source    string `json:"source"`
	NeedsSync bool   `json:"needsSync"`
}

func toRecord(q domain.Quote) quoteRecord {
	return quoteRecord{
		ID:        q.ID,
		Text:      q.Text,
		Category:  q.Category,
		UpdatedAt: q.UpdatedAt.UnixMilli(),
		Source:    string(q.Source),
		NeedsSync: q.NeedsSync,
	}
}

// encodeQuotes writes quotes as an indented JSON array.
func encodeQuotes(w io.Writer, quotes []domain.Quote) error {
	records := make([]quoteRecord, 0, len(quotes))
	for _, q := range quotes {
		records = append(records, toRecord(q))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(records)
}

// decodeImport parses an import file. The top level must be a JSON array;
// otherwise a domain.ValidationError is returned. Elements that are not
// objects or have no text are skipped and counted. Missing fields take
// defaults and every accepted record is flagged for upload.
func decodeImport(r io.Reader, now time.Time) (quotes []domain.Quote, skipped int, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, domain.NewMalformedError("import payload", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, 0, domain.NewValidationError("", "import file must contain a JSON array of quotes")
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, 0, domain.NewValidationError("", "import file is not valid JSON")
		}

		return nil, 0, domain.NewMalformedError("import payload", err)
	}

	for _, raw := range elements {
		q, ok := decodeImportElement(raw, now)
		if !ok {
			skipped++
			continue
		}

		quotes = append(quotes, q)
	}

	return quotes, skipped, nil
}

func decodeImportElement(raw json.RawMessage, now time.Time) (domain.Quote, bool) {
	var rec struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		Category  string `json:"category"`
		UpdatedAt *int64 `json:"updatedAt"`
		Source    string `json:"source"`
	}

	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Quote{}, false
	}

	q := domain.Quote{
		ID:        strings.TrimSpace(rec.ID),
		Text:      strings.TrimSpace(rec.Text),
		Category:  strings.TrimSpace(rec.Category),
		UpdatedAt: now,
		Source:    domain.Source(rec.Source),
		NeedsSync: true,
	}

	if q.ID == "" {
		q.ID = domain.NewLocalID()
	}

	if q.Category == "" {
		q.Category = domain.DefaultCategory
	}

	if rec.UpdatedAt != nil && *rec.UpdatedAt > 0 {
		q.UpdatedAt = time.UnixMilli(*rec.UpdatedAt).UTC()
	}

	if !q.Source.Valid() {
		q.Source = domain.SourceLocal
	}

	if q.Validate() != nil {
		return domain.Quote{}, false
	}

	return q, true
}
