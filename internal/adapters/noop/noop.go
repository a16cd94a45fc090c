// Package noop provides silent implementations of the optional output ports.
package noop

import (
	"context"
	"log/slog"

	"github.com/arumata/backsync/internal/usecase"
)

// Adapter implements ProgressPort and NotificationPort without producing output.
// It replaces the terminal progress bar for --no-progress and non-interactive runs.
type Adapter struct {
	logger *slog.Logger
}

// New creates a new no-op adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		panic("noop adapter requires logger")
	}
	return &Adapter{logger: logger}
}

// Start returns a tracker that ignores updates.
func (a *Adapter) Start(label string, total int) usecase.ProgressTracker {
	a.logger.Debug("Progress display disabled", "phase", label, "total", total)
	return tracker{}
}

// Send drops the notification.
func (a *Adapter) Send(ctx context.Context, title, message, sound string) error {
	return nil
}

type tracker struct{}

func (tracker) Increment() {}

func (tracker) Finish() {}

var (
	_ usecase.ProgressPort     = (*Adapter)(nil)
	_ usecase.NotificationPort = (*Adapter)(nil)
)
