package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

var errOutsideRoot = errors.New("path is outside the source root")

// CloneOptions tunes ClonePlan.
type CloneOptions struct {
	Workers  int
	Progress ProgressPort
	Logger   *slog.Logger
}

// CloneReport summarizes a ClonePlan call. Failures are in plan order.
type CloneReport struct {
	Total          int
	Copied         int
	Failed         int
	Bytes          int64
	PermissionErrs int
	Failures       []*CopyError
}

// NotAttempted returns the number of planned files skipped because the run was cancelled.
func (r *CloneReport) NotAttempted() int {
	return r.Total - r.Copied - r.Failed
}

type cloneOutcome struct {
	done   bool
	target string
	err    error
}

type cloneState struct {
	fs         FileSystemPort
	sourceRoot string
	destRoot   string
	entries    []PlanEntry
	outcomes   []cloneOutcome
	tracker    ProgressTracker
	logger     *slog.Logger
}

// ClonePlan copies every plan entry to destRoot, keeping its path relative to sourceRoot.
// Per-file failures are recorded and do not stop the remaining copies.
func ClonePlan(
	ctx context.Context,
	fs FileSystemPort,
	plan BackupPlan,
	sourceRoot, destRoot string,
	opts CloneOptions,
) (*CloneReport, error) {
	report := &CloneReport{Total: plan.Len()}
	if plan.Len() == 0 {
		return report, nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers(0)
	}
	if workers > plan.Len() {
		workers = plan.Len()
	}
	var tracker ProgressTracker = nopTracker{}
	if opts.Progress != nil {
		tracker = opts.Progress.Start("copy", plan.Len())
	}

	state := &cloneState{
		fs:         fs,
		sourceRoot: sourceRoot,
		destRoot:   destRoot,
		entries:    plan.Entries,
		outcomes:   make([]cloneOutcome, plan.Len()),
		tracker:    tracker,
		logger:     logger,
	}

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go cloneWorker(ctx, jobs, &wg, state)
	}
feed:
	for i := range plan.Entries {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	tracker.Finish()

	for i, out := range state.outcomes {
		if !out.done {
			continue
		}
		entry := plan.Entries[i]
		if out.err != nil {
			report.Failed++
			if fs.IsPermission(out.err) {
				report.PermissionErrs++
			}
			report.Failures = append(report.Failures, &CopyError{Source: entry.Path, Target: out.target, Err: out.err})
			continue
		}
		report.Copied++
		report.Bytes += entry.Size
	}
	return report, ctx.Err()
}

func cloneWorker(ctx context.Context, jobs <-chan int, wg *sync.WaitGroup, state *cloneState) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case idx, ok := <-jobs:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			entry := state.entries[idx]
			target, err := cloneEntry(ctx, state.fs, entry, state.sourceRoot, state.destRoot)
			state.outcomes[idx] = cloneOutcome{done: true, target: target, err: err}
			state.tracker.Increment()
			if err != nil {
				state.logger.WarnContext(ctx, "Copy failed", "path", entry.Path, "error", err)
				continue
			}
			state.logger.DebugContext(ctx, "Copied", "path", entry.Path, "target", target)
		}
	}
}

// cloneEntry copies one file to destRoot/rel(sourceRoot, entry) and returns the target path.
func cloneEntry(ctx context.Context, fs FileSystemPort, entry PlanEntry, sourceRoot, destRoot string) (string, error) {
	rel, err := fs.Rel(sourceRoot, entry.Path)
	if err != nil {
		return "", fmt.Errorf("relative path: %w", err)
	}
	sep := string(fs.PathSeparator())
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return "", errOutsideRoot
	}
	target := fs.Join(destRoot, rel)
	if err := fs.CreateDir(ctx, fs.Dir(target), 0o755); err != nil {
		return target, fmt.Errorf("mkdir %s: %w", fs.Dir(rel), err)
	}
	if err := fs.CopyFile(ctx, entry.Path, target); err != nil {
		return target, err
	}
	return target, nil
}
