package app

import (
	"log/slog"

	"github.com/arumata/backsync/internal/adapters/config"
	"github.com/arumata/backsync/internal/adapters/filesystem"
	"github.com/arumata/backsync/internal/adapters/hasher"
	"github.com/arumata/backsync/internal/adapters/lock"
	"github.com/arumata/backsync/internal/adapters/noop"
	"github.com/arumata/backsync/internal/adapters/notification"
	"github.com/arumata/backsync/internal/adapters/process"
	"github.com/arumata/backsync/internal/adapters/progress"
	"github.com/arumata/backsync/internal/usecase"
)

// NewDefaultDependencies creates dependencies with real adapters.
func NewDefaultDependencies(logger *slog.Logger) *usecase.Dependencies {
	if logger == nil {
		panic("default dependencies require logger")
	}
	return &usecase.Dependencies{
		FileSystem:   filesystem.New(logger),
		Hasher:       hasher.New(logger),
		Lock:         lock.New(logger),
		Process:      process.New(logger),
		Config:       config.New(logger),
		Progress:     progress.New(logger),
		Notification: notification.New(logger),
	}
}

// DisableProgress swaps the progress port for a silent one.
func DisableProgress(deps *usecase.Dependencies, logger *slog.Logger) {
	if deps == nil || logger == nil {
		return
	}
	deps.Progress = noop.New(logger)
}
