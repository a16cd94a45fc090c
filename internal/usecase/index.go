package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// TreeIndex groups the files of one root by exact byte size.
type TreeIndex struct {
	Root    string
	Buckets map[int64][]ScannedEntry
	// Sizes lists bucket keys in first-discovery order.
	Sizes  []int64
	Files  int
	Bytes  int64
	Errors []*ScanError
}

func newTreeIndex(root string) *TreeIndex {
	return &TreeIndex{Root: root, Buckets: make(map[int64][]ScannedEntry)}
}

func (ix *TreeIndex) add(entry ScannedEntry) {
	bucket, ok := ix.Buckets[entry.Size]
	if !ok {
		ix.Sizes = append(ix.Sizes, entry.Size)
	}
	ix.Buckets[entry.Size] = append(bucket, entry)
	ix.Files++
	ix.Bytes += entry.Size
}

// Bucket returns the entries of the given size in discovery order.
func (ix *TreeIndex) Bucket(size int64) []ScannedEntry {
	return ix.Buckets[size]
}

// IndexTree walks root without following symlinks and indexes the regular files accepted by filter.
// Unreadable entries are collected as ScanErrors; a missing or non-directory root is fatal.
func IndexTree(ctx context.Context, fs FileSystemPort, root string, filter *FileFilter) (*TreeIndex, error) {
	if filter == nil {
		filter = &FileFilter{}
	}
	info, err := fs.Stat(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", &ScanError{Path: root, Err: err}, ErrUsage)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory: %w", root, ErrUsage)
	}

	ix := newTreeIndex(root)
	stack := []string{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := fs.ReadDir(ctx, dir)
		if err != nil {
			ix.Errors = append(ix.Errors, &ScanError{Path: dir, Err: err})
			continue
		}

		var subdirs []string
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			path := fs.Join(dir, entry.Name())
			rel := relSlash(fs, root, path)
			if entry.IsDir() {
				if filter.IncludeDir(rel, entry.Name()) {
					subdirs = append(subdirs, path)
				}
				continue
			}
			if !filter.IncludeFile(rel, entry.Name()) {
				continue
			}
			fi, err := fs.Lstat(ctx, path)
			if err != nil {
				ix.Errors = append(ix.Errors, &ScanError{Path: path, Err: err})
				continue
			}
			if !fi.IsRegular() {
				continue
			}
			ix.add(ScannedEntry{Path: path, Size: fi.Size(), ModTime: fi.ModTime()})
		}
		// Push in reverse so subdirectories are visited in ReadDir order.
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}
	return ix, nil
}

// indexRoots indexes source and destination concurrently.
func indexRoots(
	ctx context.Context,
	fs FileSystemPort,
	sourceRoot, destRoot string,
	filter *FileFilter,
	logger *slog.Logger,
) (*TreeIndex, *TreeIndex, error) {
	if filter == nil {
		filter = &FileFilter{}
	}
	destFilter := filter.ForDestination()
	var source, dest *TreeIndex
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ix, err := IndexTree(gctx, fs, sourceRoot, filter)
		if err != nil {
			return fmt.Errorf("index source: %w", err)
		}
		source = ix
		return nil
	})
	g.Go(func() error {
		ix, err := IndexTree(gctx, fs, destRoot, destFilter)
		if err != nil {
			return fmt.Errorf("index destination: %w", err)
		}
		dest = ix
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	logger.DebugContext(ctx, "Indexed trees",
		"source_files", source.Files, "source_sizes", len(source.Sizes),
		"dest_files", dest.Files, "dest_sizes", len(dest.Sizes))
	return source, dest, nil
}

// relSlash returns path relative to root with forward slashes, or path itself if it is outside root.
func relSlash(fs FileSystemPort, root, path string) string {
	rel, err := fs.Rel(root, path)
	if err != nil {
		return path
	}
	if sep := fs.PathSeparator(); sep != '/' {
		rel = strings.ReplaceAll(rel, string(sep), "/")
	}
	return rel
}
