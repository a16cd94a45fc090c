package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

//nolint:gochecknoglobals // configurable in tests to speed up lock refresh.
var lockRefreshInterval = time.Hour

//nolint:gochecknoglobals // overridden in tests for deterministic reports.
var (
	runNow   = time.Now
	newRunID = uuid.NewString
)

type syncRoots struct {
	source string
	dest   string
}

// Sync backs up every source file that has no byte-identical counterpart in the destination tree
// into a freshly allocated destination subdirectory.
func Sync(ctx context.Context, cfg *Config, deps *Dependencies, logger *slog.Logger) (*RunReport, error) {
	if logger == nil {
		panic("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required: %w", ErrCritical)
	}
	if err := validateSyncDependencies(ctx, cfg, deps, logger); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ErrInterrupted
	}

	roots, err := resolveRoots(ctx, deps.FileSystem, cfg)
	if err != nil {
		return nil, err
	}
	filter, err := NewFileFilter(cfg.Extensions, cfg.Excludes)
	if err != nil {
		return nil, err
	}
	if err := ValidateBaseName(cfg.BaseName); err != nil {
		return nil, err
	}

	report := &RunReport{
		RunID:      newRunID(),
		StartedAt:  runNow(),
		DryRun:     cfg.DryRun,
		SourceRoot: roots.source,
		DestRoot:   roots.dest,
	}
	logger.InfoContext(ctx, "Starting sync",
		"source", roots.source, "destination", roots.dest, "dry_run", cfg.DryRun, "run_id", report.RunID)
	printSyncConfig(ctx, cfg, logger)

	if !cfg.DryRun {
		lockPath, releaseLock, err := acquireDestLock(ctx, deps, roots, report.RunID, logger)
		if err != nil {
			return nil, err
		}
		defer releaseLock()

		stopRefresh := startLockRefresh(ctx, deps, lockPath, logger)
		defer stopRefresh()
	}

	runErr := runSync(ctx, cfg, deps, roots, filter, report, logger)
	report.Duration = runNow().Sub(report.StartedAt)

	if cfg.ReportPath != "" {
		if err := WriteReport(ctx, deps.FileSystem, cfg.ReportPath, report); err != nil {
			logger.WarnContext(ctx, "Failed to write report", "error", err)
		}
	}
	notifyRunResult(ctx, cfg, deps, report, runErr, logger)

	if runErr != nil {
		return report, runErr
	}
	if cfg.FailOnCopyError && report.Failed > 0 {
		return report, fmt.Errorf("%d file(s) failed to copy: %w", report.Failed, ErrPartial)
	}
	return report, nil
}

func runSync(
	ctx context.Context,
	cfg *Config,
	deps *Dependencies,
	roots syncRoots,
	filter *FileFilter,
	report *RunReport,
	logger *slog.Logger,
) error {
	source, dest, err := indexRoots(ctx, deps.FileSystem, roots.source, roots.dest, filter, logger)
	if err != nil {
		return classifyRunError(ctx, "index", err, logger)
	}
	report.addIndexes(source, dest)
	for _, ix := range []*TreeIndex{source, dest} {
		for _, scanErr := range ix.Errors {
			logger.WarnContext(ctx, "Skipped unreadable entry", "path", scanErr.Path, "error", scanErr.Err)
		}
	}

	match, err := MatchTrees(ctx, deps.Hasher, source, dest, MatchOptions{
		Workers:  cfg.HashWorkers,
		Progress: deps.Progress,
	})
	if err != nil {
		return classifyRunError(ctx, "match", err, logger)
	}
	report.addMatch(match)
	report.addPlan(deps.FileSystem, match.Plan)
	for _, hashErr := range match.Errors {
		logger.WarnContext(ctx, "Hash failed", "path", hashErr.Path, "error", hashErr.Err)
	}
	logger.InfoContext(ctx, "Compared trees",
		"matched", match.Matched, "planned", match.Plan.Len(), "hashed", match.Hashed)

	if cfg.DryRun {
		return handleDryRun(ctx, deps, roots, cfg.BaseName, match.Plan, report, logger)
	}
	if match.Plan.Len() == 0 {
		logger.InfoContext(ctx, "Nothing to back up")
		return nil
	}

	target, err := AllocateDestination(ctx, deps.FileSystem, roots.dest, cfg.BaseName)
	if err != nil {
		var namingErr *NamingError
		if errors.As(err, &namingErr) {
			logger.ErrorContext(ctx, "Failed to allocate destination", "error", err)
			return fmt.Errorf("allocate destination: %w", ErrCritical)
		}
		return classifyRunError(ctx, "allocate", err, logger)
	}
	report.Destination = target
	logger.InfoContext(ctx, "Allocated destination", "path", target)

	clone, cloneErr := ClonePlan(ctx, deps.FileSystem, match.Plan, roots.source, target, CloneOptions{
		Workers:  cfg.Workers,
		Progress: deps.Progress,
		Logger:   logger,
	})
	report.addClone(clone)
	if clone.Copied == 0 {
		logger.DebugContext(ctx, "Removing empty destination", "path", target)
		if err := deps.FileSystem.RemoveAll(context.WithoutCancel(ctx), target); err == nil {
			report.Destination = ""
		}
	}
	if cloneErr != nil {
		return classifyRunError(ctx, "clone", cloneErr, logger)
	}
	logger.InfoContext(ctx, "Sync completed",
		"copied", clone.Copied, "failed", clone.Failed, "bytes", clone.Bytes, "destination", target)
	return nil
}

func handleDryRun(
	ctx context.Context,
	deps *Dependencies,
	roots syncRoots,
	baseName string,
	plan BackupPlan,
	report *RunReport,
	logger *slog.Logger,
) error {
	reportDestLock(ctx, deps, roots, report, logger)
	for _, entry := range report.Plan {
		logger.InfoContext(ctx, "Would copy", "path", entry.Path, "size", entry.Size, "reason", string(entry.Reason))
	}
	if plan.Len() == 0 {
		logger.InfoContext(ctx, "Nothing to back up")
		return nil
	}
	target, err := PreviewDestination(ctx, deps.FileSystem, roots.dest, baseName)
	if err != nil {
		logger.WarnContext(ctx, "Failed to preview destination", "error", err)
		return nil
	}
	report.Destination = target
	logger.InfoContext(ctx, "Dry run: would copy into", "path", target, "files", plan.Len())
	return nil
}

// reportDestLock records a live lock on the destination. A dry run never takes the lock,
// but a real run started now would fail with ErrLockBusy.
func reportDestLock(ctx context.Context, deps *Dependencies, roots syncRoots, report *RunReport, logger *slog.Logger) {
	if deps.Lock == nil {
		return
	}
	lockPath := deps.FileSystem.Join(roots.dest, LockDirName)
	locked, info, err := deps.Lock.IsLocked(ctx, lockPath)
	if err != nil {
		logger.DebugContext(ctx, "Failed to check destination lock", "path", lockPath, "error", err)
		return
	}
	if !locked {
		return
	}
	report.DestLockedBy = &info
	logger.WarnContext(ctx, "Destination is locked by another sync",
		"pid", info.PID, "hostname", info.Hostname, "since", info.StartTime, "source", info.SourceDir)
}

// classifyRunError maps context cancellation to ErrInterrupted and keeps sentinel-tagged errors.
func classifyRunError(ctx context.Context, phase string, err error, logger *slog.Logger) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		logger.WarnContext(context.WithoutCancel(ctx), "Sync interrupted", "phase", phase)
		return ErrInterrupted
	}
	if errors.Is(err, ErrUsage) || errors.Is(err, ErrCritical) {
		return err
	}
	logger.ErrorContext(ctx, "Sync failed", "phase", phase, "error", err)
	return fmt.Errorf("%s: %v: %w", phase, err, ErrCritical)
}

func validateSyncDependencies(
	ctx context.Context,
	cfg *Config,
	deps *Dependencies,
	logger *slog.Logger,
) error {
	if deps == nil {
		return fmt.Errorf("dependencies are required: %w", ErrCritical)
	}
	if deps.FileSystem == nil {
		logger.ErrorContext(ctx, "FileSystem adapter not available")
		return fmt.Errorf("filesystem adapter not available: %w", ErrCritical)
	}
	if deps.Hasher == nil {
		logger.ErrorContext(ctx, "Hasher adapter not available")
		return fmt.Errorf("hasher adapter not available: %w", ErrCritical)
	}
	if cfg.DryRun {
		return nil
	}
	if deps.Lock == nil {
		logger.ErrorContext(ctx, "Lock adapter not available")
		return fmt.Errorf("lock adapter not available: %w", ErrCritical)
	}
	if deps.Process == nil {
		logger.ErrorContext(ctx, "Process adapter not available")
		return fmt.Errorf("process adapter not available: %w", ErrCritical)
	}
	return nil
}

// resolveRoots makes both roots absolute with symlinks resolved and checks that they are
// distinct, non-nested directories.
func resolveRoots(ctx context.Context, fs FileSystemPort, cfg *Config) (syncRoots, error) {
	if strings.TrimSpace(cfg.SourceDir) == "" || strings.TrimSpace(cfg.DestDir) == "" {
		return syncRoots{}, fmt.Errorf("source and destination are required: %w", ErrUsage)
	}
	source, err := resolveRootDir(ctx, fs, "source", cfg.SourceDir)
	if err != nil {
		return syncRoots{}, err
	}
	dest, err := resolveRootDir(ctx, fs, "destination", cfg.DestDir)
	if err != nil {
		return syncRoots{}, err
	}
	if source == dest {
		return syncRoots{}, fmt.Errorf("source and destination are the same directory: %w", ErrUsage)
	}
	if isWithin(fs, source, dest) || isWithin(fs, dest, source) {
		return syncRoots{}, fmt.Errorf("source and destination must not be nested: %w", ErrUsage)
	}
	return syncRoots{source: source, dest: dest}, nil
}

func resolveRootDir(ctx context.Context, fs FileSystemPort, label, path string) (string, error) {
	abs, err := fs.Abs(ctx, path)
	if err != nil {
		return "", fmt.Errorf("resolve %s %s: %w", label, path, ErrUsage)
	}
	abs = fs.Clean(abs)
	resolved, err := fs.EvalSymlinks(ctx, abs)
	if err != nil {
		if fs.IsNotExist(err) {
			return "", fmt.Errorf("%s %s does not exist: %w", label, abs, ErrUsage)
		}
		return "", fmt.Errorf("%w: %w", &ScanError{Path: abs, Err: err}, ErrUsage)
	}
	abs = resolved
	info, err := fs.Stat(ctx, abs)
	if err != nil {
		if fs.IsNotExist(err) {
			return "", fmt.Errorf("%s %s does not exist: %w", label, abs, ErrUsage)
		}
		return "", fmt.Errorf("%w: %w", &ScanError{Path: abs, Err: err}, ErrUsage)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s %s is not a directory: %w", label, abs, ErrUsage)
	}
	return abs, nil
}

// isWithin reports whether path lies strictly inside root.
func isWithin(fs FileSystemPort, root, path string) bool {
	rel, err := fs.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	sep := string(fs.PathSeparator())
	return rel != ".." && !strings.HasPrefix(rel, ".."+sep)
}

func printSyncConfig(ctx context.Context, cfg *Config, logger *slog.Logger) {
	exts := "all files"
	if len(cfg.Extensions) > 0 {
		exts = strings.Join(cfg.Extensions, ",")
	}
	logger.DebugContext(ctx, "Configuration",
		"extensions", exts,
		"excludes", strings.Join(cfg.Excludes, ","),
		"base_name", cfg.BaseName,
		"workers", cfg.Workers,
		"hash_workers", cfg.HashWorkers,
		"fail_on_copy_error", cfg.FailOnCopyError)
}

func acquireDestLock(
	ctx context.Context,
	deps *Dependencies,
	roots syncRoots,
	runID string,
	logger *slog.Logger,
) (string, func(), error) {
	lockPath := deps.FileSystem.Join(roots.dest, LockDirName)
	lockInfo := LockInfo{
		PID:       deps.Process.GetPID(),
		StartTime: runNow(),
		RunID:     runID,
		SourceDir: roots.source,
		DestDir:   roots.dest,
	}

	if err := deps.Lock.AcquireLock(ctx, lockPath, lockInfo); err != nil {
		logger.WarnContext(ctx, "Failed to acquire lock", "error", err)
		if errors.Is(err, ErrLockBusy) {
			return "", nil, fmt.Errorf("destination %s: %w", roots.dest, err)
		}
		return "", nil, fmt.Errorf("failed to acquire lock: %w", ErrCritical)
	}

	release := func() {
		_ = deps.Lock.ReleaseLock(context.WithoutCancel(ctx), lockPath)
	}
	return lockPath, release, nil
}

func startLockRefresh(
	ctx context.Context,
	deps *Dependencies,
	lockPath string,
	logger *slog.Logger,
) func() {
	refreshCtx, stopRefresh := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(lockRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if err := deps.Lock.RefreshLock(refreshCtx, lockPath); err != nil {
					logger.WarnContext(refreshCtx, "Failed to refresh lock", "error", err)
				}
			}
		}
	}()
	return stopRefresh
}

func notifyRunResult(
	ctx context.Context,
	cfg *Config,
	deps *Dependencies,
	report *RunReport,
	runErr error,
	logger *slog.Logger,
) {
	if !cfg.Notify || cfg.DryRun || deps.Notification == nil {
		return
	}
	title := "backsync"
	var message string
	switch {
	case errors.Is(runErr, ErrInterrupted):
		title = "backsync: sync interrupted"
		message = fmt.Sprintf("Copied %d of %d files", report.Copied, report.Planned)
	case runErr != nil:
		title = "backsync: sync failed"
		message = runErr.Error()
	case report.Failed > 0:
		title = "backsync: completed with errors"
		message = fmt.Sprintf("Copied %d files, %d failed", report.Copied, report.Failed)
	case report.Planned == 0:
		message = "Nothing to back up"
	default:
		message = fmt.Sprintf("Copied %d files (%s)", report.Copied, humanBytes(report.BytesCopied))
	}
	if err := deps.Notification.Send(context.WithoutCancel(ctx), title, message, cfg.NotifySound); err != nil {
		logger.DebugContext(ctx, "Notification failed", "error", err)
	}
}
