package logging

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// sensitiveKeys are attribute keys and struct field names whose values never
// reach a log sink: archive credentials, the auth headers the write-scope
// check reads, and anything token shaped the remote client may echo back.
var sensitiveKeys = []string{
	"access_key", "accessKey", "AccessKey",
	"secret_key", "secretKey", "SecretKey",
	"authorization", "Authorization",
	"cookie", "password", "token",
	"api_key", "apiKey",
}

var sensitiveValues = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^(bearer|basic)\s+.+$`),
}

// Redactor returns a ReplaceAttr hook masking sensitiveKeys, any key
// starting with "secret", and bearer, basic or JWT values. extra adds
// caller-specific rules.
func Redactor(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	opts := make([]masq.Option, 0, len(sensitiveKeys)+len(sensitiveValues)+1+len(extra))

	for _, key := range sensitiveKeys {
		opts = append(opts, masq.WithFieldName(key))
	}

	opts = append(opts, masq.WithFieldPrefix("secret"))

	for _, re := range sensitiveValues {
		opts = append(opts, masq.WithRegex(re))
	}

	return masq.New(append(opts, extra...)...)
}

// scrubHandler runs the redactor over attributes for handlers that have no
// ReplaceAttr hook, such as the charm pretty printer.
type scrubHandler struct {
	slog.Handler
	replace func(groups []string, a slog.Attr) slog.Attr
}

func (h *scrubHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(h.replace(nil, a))
		return true
	})

	return h.Handler.Handle(ctx, clean)
}

func (h *scrubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.replace(nil, a)
	}

	return &scrubHandler{Handler: h.Handler.WithAttrs(clean), replace: h.replace}
}

func (h *scrubHandler) WithGroup(name string) slog.Handler {
	return &scrubHandler{Handler: h.Handler.WithGroup(name), replace: h.replace}
}

// teeHandler copies each record to every sink that accepts its level.
type teeHandler []slog.Handler

// Tee combines the console handler with extra sinks such as the rolling
// file. Every sink sees every record it is enabled for.
func Tee(sinks ...slog.Handler) slog.Handler {
	if len(sinks) == 1 {
		return sinks[0]
	}

	return teeHandler(sinks)
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value
	var errs []error

	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}

	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}

	return out
}
