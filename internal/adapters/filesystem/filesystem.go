package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/arumata/backsync/internal/usecase"
)

// copyBufferSize is the buffer used for streaming file copies.
const copyBufferSize = 256 * 1024

// Adapter implements usecase.FileSystemPort on the local filesystem.
type Adapter struct {
	logger *slog.Logger
}

// New creates a new filesystem adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		panic("filesystem adapter requires logger")
	}
	return &Adapter{logger: logger}
}

func safePerm(perm int, fallback fs.FileMode) fs.FileMode {
	if perm < 0 || perm > 0o777 {
		return fallback
	}
	// #nosec G115 - perm is validated to be within safe range
	return fs.FileMode(perm)
}

// WriteFile writes content to file
func (a *Adapter) WriteFile(ctx context.Context, path string, data []byte, perm int) error {
	return os.WriteFile(path, data, safePerm(perm, 0o644))
}

// CreateDir creates directory and any missing parents
func (a *Adapter) CreateDir(ctx context.Context, path string, perm int) error {
	return os.MkdirAll(path, safePerm(perm, 0o755))
}

// CreateDirExclusive creates directory only if it does not exist
func (a *Adapter) CreateDirExclusive(ctx context.Context, path string, perm int) error {
	return os.Mkdir(path, safePerm(perm, 0o755))
}

// RemoveAll removes directory and all contents
func (a *Adapter) RemoveAll(ctx context.Context, path string) error {
	return os.RemoveAll(path)
}

// Stat returns file info
func (a *Adapter) Stat(ctx context.Context, path string) (usecase.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &fileInfoWrapper{info}, nil
}

// Lstat returns file info without following symlinks
func (a *Adapter) Lstat(ctx context.Context, path string) (usecase.FileInfo, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return &fileInfoWrapper{info}, nil
}

// ReadDir lists directory entries sorted by name
func (a *Adapter) ReadDir(ctx context.Context, path string) ([]usecase.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	result := make([]usecase.DirEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, &dirEntryWrapper{entry})
	}
	return result, nil
}

// CopyFile copies a regular file into a new file at dst, keeping permission bits and modification time.
// dst must not exist; on failure no partial dst is left behind.
func (a *Adapter) CopyFile(ctx context.Context, src, dst string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	srcFile, err := os.Open(src) // #nosec G304 - paths are controlled by usecase
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close() // Ignore close error in defer
	}()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}
	if !srcInfo.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	// #nosec G304 - paths are controlled by usecase
	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = dstFile.Close()
		}
		if rmErr := os.Remove(dst); rmErr != nil && !os.IsNotExist(rmErr) {
			a.logger.Warn("Failed to remove partial copy", "path", dst, "error", rmErr)
		}
	}()

	buf := make([]byte, copyBufferSize)
	if _, err = io.CopyBuffer(dstFile, srcFile, buf); err != nil {
		return err
	}
	closed = true
	if err = dstFile.Close(); err != nil {
		return err
	}
	// Mode passed to OpenFile is filtered by umask.
	if err = os.Chmod(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, time.Now(), srcInfo.ModTime())
}

// Move moves file from src to dst
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	return os.Rename(src, dst)
}

// Abs returns absolute path
func (a *Adapter) Abs(ctx context.Context, path string) (string, error) {
	return filepath.Abs(path)
}

// EvalSymlinks resolves every symbolic link in path.
func (a *Adapter) EvalSymlinks(ctx context.Context, path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// Join joins path elements
func (a *Adapter) Join(elements ...string) string {
	return filepath.Join(elements...)
}

// Base returns last element of path
func (a *Adapter) Base(path string) string {
	return filepath.Base(path)
}

// Dir returns directory of path
func (a *Adapter) Dir(path string) string {
	return filepath.Dir(path)
}

// Rel returns a relative path.
func (a *Adapter) Rel(basepath, targpath string) (string, error) {
	return filepath.Rel(basepath, targpath)
}

// Clean returns the cleaned path.
func (a *Adapter) Clean(path string) string {
	return filepath.Clean(path)
}

// PathSeparator returns the OS-specific path separator.
func (a *Adapter) PathSeparator() byte {
	return os.PathSeparator
}

// IsNotExist reports whether err indicates that a path does not exist.
// Also covers syscall.ENOTDIR (path component is not a directory).
func (a *Adapter) IsNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR)
}

// IsExist reports whether err indicates that a path already exists.
func (a *Adapter) IsExist(err error) bool {
	return os.IsExist(err) || errors.Is(err, fs.ErrExist)
}

// IsPermission reports whether err indicates a permission error.
func (a *Adapter) IsPermission(err error) bool {
	return os.IsPermission(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}

// fileInfoWrapper wraps os.FileInfo to implement usecase.FileInfo
type fileInfoWrapper struct {
	fs.FileInfo
}

// Mode returns the file mode
func (w *fileInfoWrapper) Mode() int {
	return int(w.FileInfo.Mode())
}

// IsSymlink returns true if the file is a symbolic link
func (w *fileInfoWrapper) IsSymlink() bool {
	return w.FileInfo.Mode()&os.ModeSymlink != 0
}

// IsRegular returns true if the file is a regular file
func (w *fileInfoWrapper) IsRegular() bool {
	return w.FileInfo.Mode().IsRegular()
}

type dirEntryWrapper struct {
	fs.DirEntry
}
