package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrUsage indicates user input/usage errors.
	ErrUsage = errors.New("usage error")
	// ErrCritical indicates critical failures that should exit with error.
	ErrCritical = errors.New("critical error")
	// ErrLockBusy indicates an active lock held by another process.
	ErrLockBusy = errors.New("lock busy")
	// ErrInterrupted indicates a canceled or interrupted operation.
	ErrInterrupted = errors.New("interrupted")
	// ErrPartial indicates a finished run in which some files could not be copied.
	ErrPartial = errors.New("partial backup")
)

// ScanError reports a file or directory that could not be stat'd or listed while indexing.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// HashError reports a file whose content digest could not be computed.
type HashError struct {
	Path string
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("hash %s: %v", e.Path, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

// NamingError reports that no fresh destination directory could be reserved.
type NamingError struct {
	Root string
	Name string
	Err  error
}

func (e *NamingError) Error() string {
	return fmt.Sprintf("allocate %s under %s: %v", e.Name, e.Root, e.Err)
}

func (e *NamingError) Unwrap() error { return e.Err }

// CopyError reports a planned file that could not be cloned into the destination.
type CopyError struct {
	Source string
	Target string
	Err    error
}

func (e *CopyError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("copy %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("copy %s -> %s: %v", e.Source, e.Target, e.Err)
}

func (e *CopyError) Unwrap() error { return e.Err }
