package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"sort"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for a cursor this API did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// PageRequest is the query of a paginated list.
type PageRequest struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"  validate:"omitempty,gte=1,lte=100"`
}

// PageLimit returns the limit with the default applied.
func (p *PageRequest) PageLimit() int {
	if p.Limit <= 0 {
		return DefaultLimit
	}

	return min(p.Limit, MaxLimit)
}

// Page is one page of a list ordered by id.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

type cursor struct {
	After string `json:"after"`
}

// EncodeCursor returns the opaque cursor positioned after id.
func EncodeCursor(id string) string {
	data, _ := json.Marshal(cursor{After: id})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor returns the id a cursor points after. An empty cursor is
// the first page and decodes to "".
func DecodeCursor(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCursor
	}

	var c cursor
	if err := json.Unmarshal(data, &c); err != nil || c.After == "" {
		return "", ErrInvalidCursor
	}

	return c.After, nil
}

// Paginate returns the page of items (sorted by idOf) that follows the
// request cursor, converted with convert.
func Paginate[S, T any](items []S, req PageRequest, idOf func(S) string, convert func(S) T) (*Page[T], error) {
	after, err := DecodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	start := sort.Search(len(items), func(i int) bool { return idOf(items[i]) > after })
	if after == "" {
		start = 0
	}

	limit := req.PageLimit()
	end := min(start+limit, len(items))

	page := &Page[T]{Items: make([]T, 0, end-start)}
	for _, item := range items[start:end] {
		page.Items = append(page.Items, convert(item))
	}

	if end < len(items) {
		page.HasMore = true
		page.NextCursor = EncodeCursor(idOf(items[end-1]))
	}

	return page, nil
}
