package dto

import (
	"time"

	"github.com/jsamuelsen/quote-sync/internal/app"
	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// QuoteResponse is a quote on the wire. UpdatedAt is epoch milliseconds,
// matching the export format.
type QuoteResponse struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Category  string `json:"category"`
	UpdatedAt int64  `json:"updatedAt"`
	Source    string `json:"source"`
	NeedsSync bool   `json:"needsSync"`
}

// NewQuoteResponse converts a domain quote.
func NewQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		ID:        q.ID,
		Text:      q.Text,
		Category:  q.Category,
		UpdatedAt: q.UpdatedAt.UnixMilli(),
		Source:    string(q.Source),
		NeedsSync: q.NeedsSync,
	}
}

// ListQuotesRequest is the query of GET /quotes.
type ListQuotesRequest struct {
	PageRequest

	Category string `form:"category"`
}

// CreateQuoteRequest is the body of POST /quotes.
type CreateQuoteRequest struct {
	Text     string `json:"text"     validate:"required,notblank,max=2000"`
	Category string `json:"category" validate:"required,notblank,max=100"`
}

// CategoriesResponse lists the distinct categories.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// CategoryPreference is the selected category filter.
type CategoryPreference struct {
	Category string `json:"category" validate:"required,notblank"`
}

// ImportResponse summarises an import.
type ImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// NewImportResponse converts an import result.
func NewImportResponse(r app.ImportResult) ImportResponse {
	return ImportResponse(r)
}

// ArchiveResponse is the location of an archived snapshot.
type ArchiveResponse struct {
	Location string `json:"location"`
}

// ConflictResponse is one conflict of a sync report.
type ConflictResponse struct {
	ID         string        `json:"id"`
	Local      QuoteResponse `json:"local"`
	Remote     QuoteResponse `json:"remote"`
	Resolution string        `json:"resolution"`
}

// SyncReportResponse is a finished sync cycle.
type SyncReportResponse struct {
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	DurationMS int64              `json:"durationMs"`
	Policy     string             `json:"policy"`
	Fetched    int                `json:"fetched"`
	Inserted   int                `json:"inserted"`
	Conflicts  []ConflictResponse `json:"conflicts"`
	Pushed     int                `json:"pushed"`
	PushFailed []string           `json:"pushFailed,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// NewSyncReportResponse converts a report; nil stays nil.
func NewSyncReportResponse(r *app.SyncReport) *SyncReportResponse {
	if r == nil {
		return nil
	}

	conflicts := make([]ConflictResponse, 0, len(r.Conflicts))
	for _, c := range r.Conflicts {
		conflicts = append(conflicts, ConflictResponse{
			ID:         c.ID,
			Local:      NewQuoteResponse(c.Local),
			Remote:     NewQuoteResponse(c.Remote),
			Resolution: string(c.Resolution),
		})
	}

	return &SyncReportResponse{
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
		Policy:     string(r.Policy),
		Fetched:    r.Fetched,
		Inserted:   r.Inserted,
		Conflicts:  conflicts,
		Pushed:     r.Pushed,
		PushFailed: r.PushFailed,
		Error:      r.Err,
	}
}

// SyncStatusResponse is GET /sync/status.
type SyncStatusResponse struct {
	Policy           string              `json:"policy"`
	SchedulerRunning bool                `json:"schedulerRunning"`
	Interval         string              `json:"interval"`
	PendingUploads   int                 `json:"pendingUploads"`
	LastReport       *SyncReportResponse `json:"lastReport,omitempty"`
}

// SyncPolicyRequest is the body of PUT /sync/policy.
type SyncPolicyRequest struct {
	Policy string `json:"policy" validate:"required,oneof=server_wins manual"`
}

// NotificationResponse is one status message.
type NotificationResponse struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// NewNotificationsResponse converts a feed snapshot, newest last.
func NewNotificationsResponse(notes []ports.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, NotificationResponse{Level: string(n.Level), Message: n.Message, At: n.At})
	}

	return out
}
