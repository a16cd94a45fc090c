// Package loghandler provides the compact slog handler used for terminal and log file output.
package loghandler

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	colorReset   = "\033[0m"
	colorDim     = "\033[2m"
	colorCyan    = "\033[36m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorBoldRed = "\033[1;31m"
)

// Options configures the Handler.
type Options struct {
	Level    slog.Level
	UseColor bool
}

// Handler writes one line per record:
//
//	14:32:05 INF Copied files copied=12 elapsed=1.3s
//
// Attributes named "error" or holding an error value are highlighted when colors are on.
type Handler struct {
	out    *lockedWriter
	opts   Options
	prefix string // pre-rendered attrs from WithAttrs
	group  string // dotted group path ending in '.', or empty
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) write(p []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := lw.w.Write(p)
	return err
}

// NewHandler creates a new Handler writing to w.
func NewHandler(w io.Writer, opts *Options) *Handler {
	h := &Handler{out: &lockedWriter{w: w}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

// Handle formats and writes the log record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 128+len(h.prefix))
	buf = h.appendClock(buf, r.Time)
	buf = append(buf, ' ')
	buf = h.appendLevel(buf, r.Level)
	if r.Message != "" {
		buf = append(buf, ' ')
		buf = append(buf, r.Message...)
	}
	buf = append(buf, h.prefix...)
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, h.group, a)
		return true
	})
	buf = append(buf, '\n')
	return h.out.write(buf)
}

// WithAttrs returns a Handler that renders attrs on every record.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	buf := []byte(h.prefix)
	for _, a := range attrs {
		buf = h.appendAttr(buf, h.group, a)
	}
	h2.prefix = string(buf)
	return &h2
}

// WithGroup returns a Handler that qualifies later attribute keys with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = h.group + name + "."
	return &h2
}

func (h *Handler) colored(buf []byte, color string, fn func([]byte) []byte) []byte {
	if !h.opts.UseColor {
		return fn(buf)
	}
	buf = append(buf, color...)
	buf = fn(buf)
	return append(buf, colorReset...)
}

func (h *Handler) appendClock(buf []byte, t time.Time) []byte {
	return h.colored(buf, colorDim, func(b []byte) []byte {
		hour, minute, sec := t.Clock()
		b = appendPad2(b, hour)
		b = append(b, ':')
		b = appendPad2(b, minute)
		b = append(b, ':')
		return appendPad2(b, sec)
	})
}

func (h *Handler) appendLevel(buf []byte, level slog.Level) []byte {
	label, color := levelLabel(level)
	return h.colored(buf, color, func(b []byte) []byte { return append(b, label...) })
}

func levelLabel(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "ERR", colorBoldRed
	case level >= slog.LevelWarn:
		return "WRN", colorYellow
	case level >= slog.LevelInfo:
		return "INF", colorGreen
	default:
		return "DBG", colorCyan
	}
}

func (h *Handler) appendAttr(buf []byte, group string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return buf
		}
		sub := group
		if a.Key != "" {
			sub = group + a.Key + "."
		}
		for _, ga := range attrs {
			buf = h.appendAttr(buf, sub, ga)
		}
		return buf
	}

	color := colorDim
	if isErrorAttr(a) {
		color = colorRed
	}
	buf = append(buf, ' ')
	return h.colored(buf, color, func(b []byte) []byte {
		b = append(b, group...)
		b = append(b, a.Key...)
		b = append(b, '=')
		return appendValue(b, a.Value)
	})
}

func isErrorAttr(a slog.Attr) bool {
	if a.Key == "error" || a.Key == "err" {
		return true
	}
	if a.Value.Kind() != slog.KindAny {
		return false
	}
	_, ok := a.Value.Any().(error)
	return ok
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendMaybeQuoted(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindDuration:
		return append(buf, formatDuration(v.Duration())...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	default:
		if err, ok := v.Any().(error); ok {
			return appendMaybeQuoted(buf, err.Error())
		}
		return appendMaybeQuoted(buf, v.String())
	}
}

func appendMaybeQuoted(buf []byte, s string) []byte {
	if needsQuoting(s) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r <= ' ' || r == '"' || r == '\\' || r == '=' || r == utf8.RuneError {
			return true
		}
	}
	return false
}

// formatDuration keeps phase timings readable: sub-second values in ms, longer ones to 0.1s.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

func appendPad2(buf []byte, n int) []byte {
	if n < 10 {
		buf = append(buf, '0')
	}
	return strconv.AppendInt(buf, int64(n), 10)
}

var _ slog.Handler = (*Handler)(nil)
