package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// PushResult summarises one push pass.
type PushResult struct {
	// Pushed counts records whose NeedsSync flag was cleared.
	Pushed int

	// Failed lists the ids whose upload failed; they stay flagged.
	Failed []string
}

// Pusher uploads the records flagged NeedsSync.
type Pusher struct {
	remote ports.RemoteQuoteSource
	now    func() time.Time
}

// NewPusher creates a pusher. A nil clock defaults to time.Now.
func NewPusher(remote ports.RemoteQuoteSource, clock func() time.Time) *Pusher {
	if remote == nil {
		panic("app: Pusher requires a RemoteQuoteSource")
	}

	if clock == nil {
		clock = time.Now
	}

	return &Pusher{remote: remote, now: clock}
}

// Push uploads every flagged record in id order, one at a time. A failed
// upload leaves its record flagged and the pass moves on. The pass stops
// early only when ctx is done.
func (p *Pusher) Push(ctx context.Context, store *RecordStore) PushResult {
	logger := logging.FromContext(ctx)

	var result PushResult

	for _, q := range store.Snapshot().Dirty() {
		if ctx.Err() != nil {
			result.Failed = append(result.Failed, q.ID)
			continue
		}

		if err := p.remote.UploadQuote(ctx, q); err != nil {
			logger.WarnContext(ctx, "quote upload failed, will retry next cycle",
				slog.String("quote_id", q.ID),
				slog.Any("error", err),
			)
			result.Failed = append(result.Failed, q.ID)
			continue
		}

		if store.MarkSynced(q, p.now()) {
			result.Pushed++
			continue
		}

		logger.DebugContext(ctx, "quote changed during upload, keeping it flagged",
			slog.String("quote_id", q.ID),
		)
	}

	return result
}
