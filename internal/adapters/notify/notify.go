// Package notify provides the status message sinks: a structured log writer,
// a bounded in-memory feed served over HTTP and a fan-out combining them.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

var (
	_ ports.Notifier = (*LogNotifier)(nil)
	_ ports.Notifier = (*Feed)(nil)
	_ ports.Notifier = Fanout(nil)
)

// LogNotifier writes every notification to the context logger.
type LogNotifier struct {
	fallback *slog.Logger
}

// NewLogNotifier uses fallback when the context carries no logger.
func NewLogNotifier(fallback *slog.Logger) *LogNotifier {
	if fallback == nil {
		fallback = slog.Default()
	}

	return &LogNotifier{fallback: fallback}
}

func (n *LogNotifier) Notify(ctx context.Context, note ports.Notification) {
	logging.FromContextOr(ctx, n.fallback).Log(ctx, levelFor(note.Level), note.Message,
		slog.String("notification_level", string(note.Level)),
	)
}

func levelFor(l ports.Level) slog.Level {
	switch l {
	case ports.LevelWarning:
		return slog.LevelWarn
	case ports.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Feed keeps the most recent notifications in a ring buffer. Entries older
// than the TTL are hidden from readers.
type Feed struct {
	mu    sync.Mutex
	buf   []ports.Notification
	next  int
	count int
	ttl   time.Duration
	now   func() time.Time
}

// NewFeed creates a feed holding at most capacity entries. A zero ttl keeps
// entries until they are overwritten.
func NewFeed(capacity int, ttl time.Duration) *Feed {
	if capacity < 1 {
		capacity = 1
	}

	return &Feed{
		buf: make([]ports.Notification, capacity),
		ttl: ttl,
		now: time.Now,
	}
}

func (f *Feed) Notify(_ context.Context, note ports.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if note.At.IsZero() {
		note.At = f.now()
	}

	f.buf[f.next] = note
	f.next = (f.next + 1) % len(f.buf)

	if f.count < len(f.buf) {
		f.count++
	}
}

// Recent returns the live notifications, oldest first.
func (f *Feed) Recent() []ports.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]ports.Notification, 0, f.count)

	start := (f.next - f.count + len(f.buf)) % len(f.buf)
	for i := range f.count {
		note := f.buf[(start+i)%len(f.buf)]
		if f.ttl > 0 && now.Sub(note.At) > f.ttl {
			continue
		}

		out = append(out, note)
	}

	return out
}

// Latest returns the newest live notification.
func (f *Feed) Latest() (ports.Notification, bool) {
	recent := f.Recent()
	if len(recent) == 0 {
		return ports.Notification{}, false
	}

	return recent[len(recent)-1], true
}

// Fanout delivers each notification to every sink in order.
type Fanout []ports.Notifier

func (f Fanout) Notify(ctx context.Context, note ports.Notification) {
	for _, n := range f {
		n.Notify(ctx, note)
	}
}
