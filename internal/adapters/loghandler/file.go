package loghandler

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OpenDailyFile opens dir/<prefix>-YYYY-MM-DD.log for appending, creating dir when needed.
func OpenDailyFile(dir, prefix string, day time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := prefix + "-" + day.Format("2006-01-02") + ".log"
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
