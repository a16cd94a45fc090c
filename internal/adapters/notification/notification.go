// Package notification sends desktop notifications at the end of a sync run.
package notification

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	appName         = "backsync"
	maxMessageRunes = 200
)

// Adapter implements NotificationPort.
type Adapter struct {
	logger *slog.Logger
}

// New creates a new notification adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

// prepare normalizes title and message for single-line desktop popups.
func prepare(title, message string) (string, string) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = appName
	}
	message = strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(message) > maxMessageRunes {
		runes := []rune(message)
		message = string(runes[:maxMessageRunes-1]) + "…"
	}
	return title, message
}
