package loghandler

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler sends each record to every wrapped handler that accepts its level,
// typically the terminal handler and the daily log file.
type MultiHandler []slog.Handler

// NewMultiHandler returns a handler that writes to all given handlers.
func NewMultiHandler(handlers ...slog.Handler) MultiHandler {
	return MultiHandler(handlers)
}

// Enabled reports whether any wrapped handler handles records at the given level.
func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes r to every accepting handler. A failing handler does not keep the others from writing.
func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies attrs to each wrapped handler.
func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup applies the group to each wrapped handler.
func (m MultiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m MultiHandler) each(fn func(slog.Handler) slog.Handler) MultiHandler {
	out := make(MultiHandler, len(m))
	for i, h := range m {
		out[i] = fn(h)
	}
	return out
}

var _ slog.Handler = MultiHandler(nil)
