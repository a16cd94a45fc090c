package usecase

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileFilter decides which entries of a tree are indexed.
type FileFilter struct {
	extensions []string
	excludes   []string
	// skipRoot holds relative paths pruned only at the top of the walked root.
	skipRoot map[string]struct{}
}

// NewFileFilter builds a filter from extension suffixes and doublestar exclude globs.
// An empty extension list accepts every regular file.
func NewFileFilter(extensions, excludes []string) (*FileFilter, error) {
	f := &FileFilter{
		extensions: NormalizeExtensions(extensions),
	}
	for _, pattern := range excludes {
		clean := strings.TrimSpace(pattern)
		if clean == "" {
			continue
		}
		if !doublestar.ValidatePattern(clean) {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", clean, ErrUsage)
		}
		f.excludes = append(f.excludes, clean)
	}
	return f, nil
}

// ForDestination returns a copy of f that also prunes the lock directory at the destination root.
// A directory of the same name anywhere else is indexed normally.
func (f *FileFilter) ForDestination() *FileFilter {
	d := *f
	d.skipRoot = map[string]struct{}{LockDirName: {}}
	return &d
}

// IncludeDir reports whether the walk should descend into the directory at rel.
func (f *FileFilter) IncludeDir(rel, name string) bool {
	if _, skip := f.skipRoot[rel]; skip {
		return false
	}
	return !f.excluded(rel, true)
}

// IncludeFile reports whether the file at rel should be indexed.
func (f *FileFilter) IncludeFile(rel, name string) bool {
	if !f.matchesExtension(name) {
		return false
	}
	return !f.excluded(rel, false)
}

func (f *FileFilter) matchesExtension(name string) bool {
	if len(f.extensions) == 0 {
		return true
	}
	for _, ext := range f.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// excluded matches rel against every pattern. A pattern ending in "/" only matches directories.
func (f *FileFilter) excluded(rel string, isDir bool) bool {
	for _, pattern := range f.excludes {
		if strings.HasSuffix(pattern, "/") {
			if !isDir {
				continue
			}
			pattern = strings.TrimSuffix(pattern, "/")
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
