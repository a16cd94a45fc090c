package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// maxAllocationAttempts bounds the suffix search against a filesystem that reports "exists" forever.
const maxAllocationAttempts = 1 << 20

var errNoFreeName = errors.New("no free name")

// ValidateBaseName checks that name is a single, non-special path element.
func ValidateBaseName(name string) error {
	clean := strings.TrimSpace(name)
	if clean == "" || clean == "." || clean == ".." {
		return fmt.Errorf("invalid destination name %q: %w", name, ErrUsage)
	}
	if strings.ContainsAny(clean, `/\`) {
		return fmt.Errorf("destination name %q must not contain path separators: %w", name, ErrUsage)
	}
	if clean == LockDirName {
		return fmt.Errorf("destination name %q is reserved: %w", name, ErrUsage)
	}
	return nil
}

func candidateName(baseName string, attempt int) string {
	if attempt < 0 {
		return baseName
	}
	return fmt.Sprintf("%s_%d", baseName, attempt)
}

// AllocateDestination reserves destRoot/baseName, or the first free baseName_N, by creating it.
// The returned directory did not exist before the call.
func AllocateDestination(ctx context.Context, fs FileSystemPort, destRoot, baseName string) (string, error) {
	if err := ValidateBaseName(baseName); err != nil {
		return "", err
	}
	for attempt := -1; attempt < maxAllocationAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path := fs.Join(destRoot, candidateName(baseName, attempt))
		err := fs.CreateDirExclusive(ctx, path, 0o755)
		if err == nil {
			return path, nil
		}
		if fs.IsExist(err) {
			continue
		}
		return "", &NamingError{Root: destRoot, Name: baseName, Err: err}
	}
	return "", &NamingError{Root: destRoot, Name: baseName, Err: errNoFreeName}
}

// PreviewDestination returns the path AllocateDestination would reserve, without creating it.
func PreviewDestination(ctx context.Context, fs FileSystemPort, destRoot, baseName string) (string, error) {
	if err := ValidateBaseName(baseName); err != nil {
		return "", err
	}
	for attempt := -1; attempt < maxAllocationAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		path := fs.Join(destRoot, candidateName(baseName, attempt))
		_, err := fs.Lstat(ctx, path)
		if err == nil {
			continue
		}
		if fs.IsNotExist(err) {
			return path, nil
		}
		return "", &NamingError{Root: destRoot, Name: baseName, Err: err}
	}
	return "", &NamingError{Root: destRoot, Name: baseName, Err: errNoFreeName}
}
