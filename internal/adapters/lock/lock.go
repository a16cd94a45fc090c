//nolint:gci,gofumpt
package lock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/arumata/backsync/internal/usecase"
)

const (
	osLinux  = "linux"
	osDarwin = "darwin"
)

const (
	infoFileName = "info"
	// DefaultMaxAge is the age after which an unrefreshed lock is considered stale.
	DefaultMaxAge = 24 * time.Hour
	// DefaultInfoGrace is how long a lock directory without an info file still counts as held.
	// The owner creates the directory first and writes the info file right after.
	DefaultInfoGrace = 10 * time.Second
)

// Adapter implements usecase.LockPort with a lock directory holding a JSON info file.
// Directory creation is atomic, so at most one process owns the lock.
type Adapter struct {
	logger    *slog.Logger
	maxAge    time.Duration
	infoGrace time.Duration
}

// New creates a new lock adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		panic("lock adapter requires logger")
	}
	return &Adapter{logger: logger, maxAge: DefaultMaxAge, infoGrace: DefaultInfoGrace}
}

// AcquireLock attempts to acquire exclusive lock. A live holder yields an error wrapping usecase.ErrLockBusy.
func (a *Adapter) AcquireLock(ctx context.Context, path string, info usecase.LockInfo) error {
	if err := os.Mkdir(path, 0o750); err == nil {
		return a.writeLockInfo(path, info)
	} else if !os.IsExist(err) {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	holder, err := a.readLockInfo(path)
	if err == nil && a.isActive(holder) {
		return fmt.Errorf("lock is held by pid %d on %s since %s (source %s): %w",
			holder.PID, holder.Hostname, holder.StartTime.Format(time.RFC3339), holder.SourceDir, usecase.ErrLockBusy)
	}
	if os.IsNotExist(err) && a.isBeingCreated(path) {
		return fmt.Errorf("lock directory %s is being set up by another process: %w", path, usecase.ErrLockBusy)
	}

	a.logger.Warn("Replacing stale lock", "path", path, "pid", holder.PID)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove stale lock: %w", err)
	}
	if err := os.Mkdir(path, 0o750); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("lock was taken while replacing a stale one: %w", usecase.ErrLockBusy)
		}
		return fmt.Errorf("failed to create lock after cleanup: %w", err)
	}
	return a.writeLockInfo(path, info)
}

// isBeingCreated reports whether the lock directory is younger than the info grace period.
func (a *Adapter) isBeingCreated(path string) bool {
	st, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(st.ModTime()) < a.infoGrace
}

// ReleaseLock releases held lock
func (a *Adapter) ReleaseLock(ctx context.Context, path string) error {
	return os.RemoveAll(path)
}

// IsLocked reports whether path holds an active lock and returns its info.
func (a *Adapter) IsLocked(ctx context.Context, path string) (bool, usecase.LockInfo, error) {
	if _, err := os.Stat(filepath.Join(path, infoFileName)); os.IsNotExist(err) {
		return false, usecase.LockInfo{}, nil
	}

	info, err := a.readLockInfo(path)
	if err != nil {
		return false, usecase.LockInfo{}, err
	}
	return a.isActive(info), info, nil
}

// RefreshLock updates lock timestamp
func (a *Adapter) RefreshLock(ctx context.Context, path string) error {
	info, err := a.readLockInfo(path)
	if err != nil {
		return fmt.Errorf("failed to read lock info: %w", err)
	}
	info.StartTime = time.Now()
	return a.writeLockInfo(path, info)
}

// writeLockInfo fills missing process details and replaces the info file atomically.
func (a *Adapter) writeLockInfo(lockDir string, info usecase.LockInfo) error {
	if info.PID == 0 {
		info.PID = os.Getpid()
	}
	if info.StartTime.IsZero() {
		info.StartTime = time.Now()
	}
	if info.Hostname == "" {
		hostname, _ := os.Hostname()
		info.Hostname = hostname
	}
	if info.ProcessStartTicks == 0 {
		if ticks, ok := getProcessStartTicks(info.PID); ok {
			info.ProcessStartTicks = ticks
		}
	}
	if info.ProcessStartID == "" {
		if id, ok := getProcessStartID(info.PID); ok {
			info.ProcessStartID = id
		}
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock info: %w", err)
	}

	target := filepath.Join(lockDir, infoFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

func (a *Adapter) readLockInfo(lockDir string) (usecase.LockInfo, error) {
	// #nosec G304 - lockDir is controlled by the adapter
	data, err := os.ReadFile(filepath.Join(lockDir, infoFileName))
	if err != nil {
		return usecase.LockInfo{}, err
	}
	var info usecase.LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return usecase.LockInfo{}, fmt.Errorf("invalid lock file: %w", err)
	}
	return info, nil
}

// isActive reports whether the holder described by info is still running.
// Locks from other hosts are trusted until they expire.
func (a *Adapter) isActive(info usecase.LockInfo) bool {
	if time.Since(info.StartTime) > a.maxAge {
		return false
	}

	if info.Hostname != "" {
		if hostname, err := os.Hostname(); err == nil && hostname != info.Hostname {
			return true
		}
	}

	if info.ProcessStartID != "" {
		if id, ok := getProcessStartID(info.PID); ok {
			return id == info.ProcessStartID
		}
	}

	if info.ProcessStartTicks != 0 {
		if ticks, ok := getProcessStartTicks(info.PID); ok {
			return ticks == info.ProcessStartTicks
		}
	}

	return a.isProcessRunning(info.PID)
}

func getProcessStartTicks(pid int) (int64, bool) {
	if pid <= 0 || runtime.GOOS != osLinux {
		return 0, false
	}
	// #nosec G304 -- reading /proc/<pid>/stat from controlled path.
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, false
	}
	// The command name in field 2 may contain spaces; fields after it start past the last ')'.
	stat := string(data)
	if idx := strings.LastIndexByte(stat, ')'); idx >= 0 {
		stat = stat[idx+1:]
	}
	parts := strings.Fields(stat)
	// starttime is field 22 overall, field 20 after "pid (comm)".
	if len(parts) < 20 {
		return 0, false
	}
	startTicks, err := strconv.ParseInt(parts[19], 10, 64)
	if err != nil {
		return 0, false
	}
	return startTicks, true
}

func getProcessStartID(pid int) (string, bool) {
	if pid <= 0 {
		return "", false
	}
	if runtime.GOOS == osLinux {
		if ticks, ok := getProcessStartTicks(pid); ok {
			return fmt.Sprintf("ticks:%d", ticks), true
		}
		return "", false
	}
	startTime, ok := processStartTime(pid)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s:%d", processStartPrefix, startTime.UnixNano()), true
}
