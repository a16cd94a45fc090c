package usecase

import "time"

// Config contains the runtime configuration of a single sync run.
type Config struct {
	SourceDir       string
	DestDir         string
	Extensions      []string
	Excludes        []string
	BaseName        string
	Workers         int
	HashWorkers     int
	FailOnCopyError bool
	DryRun          bool
	Verbose         bool
	NoProgress      bool
	ReportPath      string
	Notify          bool
	NotifySound     string
}

// FileInfo represents file information.
type FileInfo interface {
	Name() string
	Size() int64
	Mode() int
	ModTime() time.Time
	IsDir() bool
	IsSymlink() bool
	IsRegular() bool
	Sys() interface{}
}

// DirEntry represents a directory entry.
type DirEntry interface {
	Name() string
	IsDir() bool
}

// Digest is the lowercase hex encoding of a file's content hash.
type Digest string

// ScannedEntry is a file discovered by IndexTree. It is never modified after the scan.
type ScannedEntry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// HashedEntry is a ScannedEntry whose content digest has been computed.
type HashedEntry struct {
	ScannedEntry
	Digest Digest
}

// LockInfo represents lock file information.
type LockInfo struct {
	PID               int       `json:"pid"`
	StartTime         time.Time `json:"start_time"`
	RunID             string    `json:"run_id"`
	SourceDir         string    `json:"source_dir"`
	DestDir           string    `json:"dest_dir"`
	Hostname          string    `json:"hostname"`
	ProcessStartTicks int64     `json:"process_start_ticks"`
	ProcessStartID    string    `json:"process_start_id"`
}
