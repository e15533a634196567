package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	return entry
}

func TestFromContext(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		ctx  context.Context
		want *slog.Logger
	}{
		{"nil context", nil, defaultLogger},
		{"no logger stored", context.Background(), defaultLogger},
		{"stored logger", WithContext(context.Background(), custom), custom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, FromContext(tt.ctx))
		})
	}
}

func TestContextIDs(t *testing.T) {
	tests := []struct {
		name  string
		apply func(context.Context) context.Context
		key   string
		value string
	}{
		{"request id", func(ctx context.Context) context.Context { return WithRequestID(ctx, "req-123") }, "request_id", "req-123"},
		{"trace id", func(ctx context.Context) context.Context { return WithTraceID(ctx, "trace-456") }, "trace_id", "trace-456"},
		{"correlation id", func(ctx context.Context) context.Context { return WithCorrelationID(ctx, "corr-789") }, "correlation_id", "corr-789"},
		{"sync cycle", func(ctx context.Context) context.Context { return WithSyncCycle(ctx, "cycle-1") }, "sync_cycle", "cycle-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			ctx := tt.apply(WithContext(context.Background(), jsonLogger(&buf)))

			FromContext(ctx).InfoContext(ctx, "quote synced")

			assert.Equal(t, tt.value, decodeLine(t, &buf)[tt.key])
		})
	}
}

func TestContextIDs_Accumulate(t *testing.T) {
	var buf bytes.Buffer

	ctx := WithContext(context.Background(), jsonLogger(&buf))
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithSyncCycle(ctx, "cycle-7")
	ctx = WithAttrs(ctx, slog.String("quote_id", "loc-1"))

	FromContext(ctx).Info("upload failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "cycle-7", entry["sync_cycle"])
	assert.Equal(t, "loc-1", entry["quote_id"])
}

func TestSetDefault(t *testing.T) {
	original := defaultLogger
	t.Cleanup(func() { SetDefault(original) })

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	SetDefault(custom)

	assert.Same(t, custom, FromContext(context.Background()))
	assert.Same(t, custom, slog.Default())
}
