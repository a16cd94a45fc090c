// Package progress renders single-line terminal progress bars for long sync phases.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"

	"github.com/arumata/backsync/internal/usecase"
)

const (
	barWidth       = 40
	renderInterval = 100 * time.Millisecond
)

// Adapter implements ProgressPort.
type Adapter struct {
	logger  *slog.Logger
	writer  io.Writer
	enabled bool
}

// New creates a progress adapter drawing on stderr. Bars are only drawn when stderr is a terminal.
func New(logger *slog.Logger) *Adapter {
	return NewWithWriter(logger, os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewWithWriter creates a progress adapter drawing on w.
func NewWithWriter(logger *slog.Logger, w io.Writer, enabled bool) *Adapter {
	if logger == nil {
		panic("progress adapter requires logger")
	}
	return &Adapter{logger: logger, writer: w, enabled: enabled}
}

// Start begins a new bar. A zero total or a non-terminal writer yields a silent tracker.
func (a *Adapter) Start(label string, total int) usecase.ProgressTracker {
	if !a.enabled || total <= 0 {
		a.logger.Debug("Progress", "phase", label, "total", total)
		return silent{}
	}
	return &Bar{label: label, total: total, writer: a.writer}
}

// Bar is one running progress line.
type Bar struct {
	mu         sync.Mutex
	label      string
	total      int
	current    int
	writer     io.Writer
	lastRender time.Time
	finished   bool
}

// Increment advances the bar by one item.
func (b *Bar) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.current++
	now := time.Now()
	if now.Sub(b.lastRender) >= renderInterval || b.current >= b.total {
		b.lastRender = now
		b.render()
	}
}

// Finish draws the final state and ends the line. Further calls are ignored.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return
	}
	b.finished = true
	b.render()
	_, _ = fmt.Fprint(b.writer, "\n")
}

// render must be called with mu held.
func (b *Bar) render() {
	current := min(b.current, b.total)
	filled := barWidth * current / b.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	percent := 100 * current / b.total
	_, _ = fmt.Fprintf(b.writer, "\r\033[K%-8s [%s] %3d%% (%d/%d)", b.label, bar, percent, current, b.total)
}

type silent struct{}

func (silent) Increment() {}

func (silent) Finish() {}
