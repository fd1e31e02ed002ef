package security

import (
	"context"
	"log/slog"
)

// RedactingHandler is a slog.Handler that scrubs secrets before records
// reach the wrapped handler. The message and every string, error or
// Stringer value go through the Redactor. An attribute whose key looks
// like a secret (private_key, token, ...) loses its value entirely.
type RedactingHandler struct {
	next slog.Handler
	r    *Redactor
}

var _ slog.Handler = (*RedactingHandler)(nil)

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler, r *Redactor) *RedactingHandler {
	return &RedactingHandler{next: next, r: r}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, h.r.Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.scrub(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs scrubs attrs once, up front, so the wrapped handler can
// preformat them.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.scrub(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(clean), r: h.r}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name), r: h.r}
}

func (h *RedactingHandler) scrub(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch {
	case v.Kind() == slog.KindGroup:
		members := v.Group()
		clean := make([]slog.Attr, len(members))
		for i, m := range members {
			clean[i] = h.scrub(m)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
	case IsSecretKey(a.Key):
		return slog.String(a.Key, RedactPlaceholder)
	case v.Kind() == slog.KindString:
		return slog.String(a.Key, h.r.Redact(v.String()))
	case v.Kind() == slog.KindAny:
		// Errors and Stringers are flattened only when they leak something.
		if s := v.String(); h.r.Redact(s) != s {
			return slog.String(a.Key, h.r.Redact(s))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
