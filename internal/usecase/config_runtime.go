package usecase

import (
	"fmt"
	"runtime"
	"strings"
)

// RuntimeConfigFromFile converts file config into runtime config for a sync run.
// Source and destination roots come from the command line and are left empty.
func RuntimeConfigFromFile(cfg ConfigFile, homeDir string) (*Config, error) {
	if strings.TrimSpace(homeDir) == "" {
		return nil, fmt.Errorf("home directory is empty: %w", ErrCritical)
	}

	baseName := strings.TrimSpace(cfg.Sync.BaseName)
	if baseName == "" {
		baseName = DefaultBaseName
	}
	if cfg.Sync.Workers < 0 || cfg.Sync.HashWorkers < 0 {
		return nil, fmt.Errorf("worker counts must not be negative: %w", ErrUsage)
	}

	excludes := make([]string, 0, len(cfg.Sync.Exclude))
	for _, pattern := range cfg.Sync.Exclude {
		if p := strings.TrimSpace(pattern); p != "" {
			excludes = append(excludes, p)
		}
	}

	return &Config{
		Extensions:      NormalizeExtensions(cfg.Sync.Extensions),
		Excludes:        excludes,
		BaseName:        baseName,
		Workers:         DefaultWorkers(cfg.Sync.Workers),
		HashWorkers:     DefaultHashWorkers(cfg.Sync.HashWorkers),
		FailOnCopyError: cfg.Sync.FailOnCopyError,
		Notify:          cfg.Notifications.Enabled,
		NotifySound:     strings.TrimSpace(cfg.Notifications.Sound),
	}, nil
}

// NormalizeExtensions trims entries, drops empty ones and adds the leading dot.
// Matching stays case-sensitive so ".JPG" and ".jpg" are distinct.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		clean := strings.TrimSpace(ext)
		if clean == "" {
			continue
		}
		if !strings.HasPrefix(clean, ".") {
			clean = "." + clean
		}
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	return out
}

// DefaultWorkers returns n, or twice the CPU count when n is not positive.
func DefaultWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() * 2
}

// DefaultHashWorkers returns n, or the CPU count when n is not positive.
func DefaultHashWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// ExpandHomeDirPublic expands ~ and $HOME prefixes in path.
func ExpandHomeDirPublic(path, homeDir string) string {
	return expandHomeDir(path, homeDir)
}

func expandHomeDir(path, homeDir string) string {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return clean
	}
	home := strings.TrimRight(homeDir, "/")
	for _, prefix := range []string{"~", "$HOME", "${HOME}"} {
		if clean == prefix {
			return homeDir
		}
		if strings.HasPrefix(clean, prefix+"/") {
			return home + clean[len(prefix):]
		}
	}
	return clean
}
