package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PlanReason explains why a source file is part of the backup plan.
type PlanReason string

const (
	// ReasonNoSizeMatch means no destination file has the same size. No hash was computed.
	ReasonNoSizeMatch PlanReason = "no-size-match"
	// ReasonContentDiffers means every same-size destination file differs or was already consumed.
	ReasonContentDiffers PlanReason = "content-differs"
	// ReasonHashError means the source file could not be hashed and is backed up to be safe.
	ReasonHashError PlanReason = "hash-error"
)

// PlanEntry is a source file selected for backup.
type PlanEntry struct {
	ScannedEntry
	Reason PlanReason
	Digest Digest
}

// BackupPlan lists the source files that need backup, in source bucket order.
type BackupPlan struct {
	Entries []PlanEntry
}

// Len returns the number of planned files.
func (p BackupPlan) Len() int { return len(p.Entries) }

// Bytes returns the total size of planned files.
func (p BackupPlan) Bytes() int64 {
	var total int64
	for _, e := range p.Entries {
		total += e.Size
	}
	return total
}

// MatchResult is the outcome of comparing a source index against a destination index.
type MatchResult struct {
	Plan    BackupPlan
	Matched int
	Hashed  int
	Errors  []*HashError
}

// MatchOptions tunes MatchTrees.
type MatchOptions struct {
	Workers  int
	Progress ProgressPort
}

// MatchTrees decides which source files have no byte-identical counterpart in dest.
// Files are hashed only when their size occurs in both trees, and every destination
// file can satisfy at most one source file.
func MatchTrees(
	ctx context.Context,
	hasher HasherPort,
	source, dest *TreeIndex,
	opts MatchOptions,
) (*MatchResult, error) {
	hashed, failed, err := hashEntries(ctx, hasher, entriesToHash(source, dest), opts)
	if err != nil {
		return nil, err
	}

	result := &MatchResult{Hashed: len(hashed), Errors: failed}

	for _, size := range source.Sizes {
		srcBucket := source.Bucket(size)
		dstBucket := dest.Bucket(size)
		if len(dstBucket) == 0 {
			for _, entry := range srcBucket {
				result.Plan.Entries = append(result.Plan.Entries, PlanEntry{
					ScannedEntry: entry,
					Reason:       ReasonNoSizeMatch,
				})
			}
			continue
		}

		available := make(map[Digest]int, len(dstBucket))
		for _, entry := range dstBucket {
			if he, ok := hashed[entry.Path]; ok {
				available[he.Digest]++
			}
		}
		for _, entry := range srcBucket {
			he, ok := hashed[entry.Path]
			if !ok {
				result.Plan.Entries = append(result.Plan.Entries, PlanEntry{
					ScannedEntry: entry,
					Reason:       ReasonHashError,
				})
				continue
			}
			if available[he.Digest] > 0 {
				available[he.Digest]--
				result.Matched++
				continue
			}
			result.Plan.Entries = append(result.Plan.Entries, PlanEntry{
				ScannedEntry: entry,
				Reason:       ReasonContentDiffers,
				Digest:       he.Digest,
			})
		}
	}
	return result, nil
}

// entriesToHash lists every file of every size present in both trees, source first, without duplicates.
func entriesToHash(source, dest *TreeIndex) []ScannedEntry {
	var entries []ScannedEntry
	seen := make(map[string]struct{})
	appendBucket := func(bucket []ScannedEntry) {
		for _, entry := range bucket {
			if _, ok := seen[entry.Path]; ok {
				continue
			}
			seen[entry.Path] = struct{}{}
			entries = append(entries, entry)
		}
	}
	for _, size := range source.Sizes {
		dstBucket := dest.Bucket(size)
		if len(dstBucket) == 0 {
			continue
		}
		appendBucket(source.Bucket(size))
		appendBucket(dstBucket)
	}
	return entries
}

// hashEntries hashes every entry once with a bounded pool and returns the digests keyed by path.
// Per-file failures are returned in input order; only cancellation aborts the whole batch.
func hashEntries(
	ctx context.Context,
	hasher HasherPort,
	entries []ScannedEntry,
	opts MatchOptions,
) (map[string]HashedEntry, []*HashError, error) {
	hashed := make(map[string]HashedEntry, len(entries))
	if len(entries) == 0 {
		return hashed, nil, nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultHashWorkers(0)
	}
	var tracker ProgressTracker = nopTracker{}
	if opts.Progress != nil {
		tracker = opts.Progress.Start("hash", len(entries))
	}
	defer tracker.Finish()

	errs := make([]error, len(entries))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(workers)
	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			digest, err := hasher.HashFile(ctx, entry.Path)
			if err != nil {
				errs[i] = err
			} else {
				mu.Lock()
				hashed[entry.Path] = HashedEntry{ScannedEntry: entry, Digest: digest}
				mu.Unlock()
			}
			tracker.Increment()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var failed []*HashError
	for i, err := range errs {
		if err != nil {
			failed = append(failed, &HashError{Path: entries[i].Path, Err: err})
		}
	}
	return hashed, failed, nil
}

type nopTracker struct{}

func (nopTracker) Increment() {}
func (nopTracker) Finish()    {}
