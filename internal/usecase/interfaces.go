package usecase

import (
	"context"
)

// Dependencies represents all external dependencies needed by use cases
type Dependencies struct {
	FileSystem   FileSystemPort
	Hasher       HasherPort
	Lock         LockPort
	Process      ProcessPort
	Config       ConfigPort
	Progress     ProgressPort
	Notification NotificationPort
}

// Ports define the interfaces that use cases need (hexagonal architecture)

// FileSystemPort defines filesystem operations needed by use cases
type FileSystemPort interface {
	// Core file operations
	WriteFile(ctx context.Context, path string, data []byte, perm int) error
	CreateDir(ctx context.Context, path string, perm int) error
	CreateDirExclusive(ctx context.Context, path string, perm int) error
	RemoveAll(ctx context.Context, path string) error
	Stat(ctx context.Context, path string) (FileInfo, error)
	Lstat(ctx context.Context, path string) (FileInfo, error)
	ReadDir(ctx context.Context, path string) ([]DirEntry, error)

	// CopyFile copies bytes, permission bits and modification time of src into a new file dst.
	// It fails if dst already exists and never leaves a partial dst behind.
	CopyFile(ctx context.Context, src, dst string) error
	Move(ctx context.Context, src, dst string) error

	// Path operations
	Abs(ctx context.Context, path string) (string, error)
	// EvalSymlinks returns path with every symbolic link resolved.
	EvalSymlinks(ctx context.Context, path string) (string, error)
	Join(elements ...string) string
	Base(path string) string
	Dir(path string) string
	Rel(basepath, targpath string) (string, error)
	Clean(path string) string
	PathSeparator() byte

	// Error classification
	IsNotExist(err error) bool
	IsExist(err error) bool
	IsPermission(err error) bool
}

// HasherPort computes full-content digests of files.
type HasherPort interface {
	HashFile(ctx context.Context, path string) (Digest, error)
}

// ConfigPort defines configuration operations needed by use cases
type ConfigPort interface {
	Load(ctx context.Context, path string) (ConfigFile, error)
	Save(ctx context.Context, path string, cfg ConfigFile) error
}

// LockPort defines locking operations needed by use cases
type LockPort interface {
	AcquireLock(ctx context.Context, path string, info LockInfo) error
	ReleaseLock(ctx context.Context, path string) error
	IsLocked(ctx context.Context, path string) (bool, LockInfo, error)
	RefreshLock(ctx context.Context, path string) error
}

// ProcessPort defines process operations needed by use cases
type ProcessPort interface {
	GetPID() int
}

// ProgressPort starts progress displays for long phases.
type ProgressPort interface {
	Start(label string, total int) ProgressTracker
}

// ProgressTracker receives one Increment per processed item.
type ProgressTracker interface {
	Increment()
	Finish()
}

// NotificationPort defines desktop notification operations needed by use cases
type NotificationPort interface {
	// Send sends a desktop notification. sound can be empty.
	Send(ctx context.Context, title, message, sound string) error
}
