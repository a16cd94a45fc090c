package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const initBackupTimeFormat = "20060102-150405"

//nolint:gochecknoglobals // overridden in tests for deterministic backups.
var initNow = time.Now

// InitOptions describes init behavior.
type InitOptions struct {
	// ConfigPath overrides the default ~/.config/backsync/config.toml location.
	ConfigPath string
	Extensions []string
	BaseName   string
	LogDir     string
	Force      bool
	DryRun     bool
	HomeDir    string
}

// InitResult reports what Init did.
type InitResult struct {
	ConfigPath string
	BackupPath string
	Written    bool
}

// DefaultConfigPath returns the default config file location under homeDir.
func DefaultConfigPath(fs FileSystemPort, homeDir string) string {
	return fs.Join(homeDir, ".config", "backsync", "config.toml")
}

// Init writes a default configuration file.
func Init(ctx context.Context, opts InitOptions, deps *Dependencies, logger *slog.Logger) (*InitResult, error) {
	if logger == nil {
		panic("logger is required")
	}
	if ctx.Err() != nil {
		return nil, ErrInterrupted
	}
	if err := validateInitDependencies(deps); err != nil {
		return nil, err
	}

	homeDir := strings.TrimSpace(opts.HomeDir)
	if homeDir == "" {
		return nil, fmt.Errorf("home directory is empty: %w", ErrCritical)
	}

	configPath := strings.TrimSpace(opts.ConfigPath)
	if configPath == "" {
		configPath = DefaultConfigPath(deps.FileSystem, homeDir)
	} else {
		configPath = deps.FileSystem.Clean(expandHomeDir(configPath, homeDir))
	}

	cfg, err := buildInitConfig(opts)
	if err != nil {
		return nil, err
	}

	result := &InitResult{ConfigPath: configPath}
	if err := ensureConfig(ctx, opts, deps, result, cfg); err != nil {
		return nil, err
	}

	if opts.DryRun {
		logger.InfoContext(ctx, "Dry run: config would be written", "path", configPath)
	} else {
		logger.InfoContext(ctx, "Init completed", "config", configPath)
	}
	return result, nil
}

func validateInitDependencies(deps *Dependencies) error {
	if deps == nil {
		return fmt.Errorf("dependencies are required: %w", ErrCritical)
	}
	if deps.FileSystem == nil {
		return fmt.Errorf("filesystem adapter not available: %w", ErrCritical)
	}
	if deps.Config == nil {
		return fmt.Errorf("config adapter not available: %w", ErrCritical)
	}
	return nil
}

func buildInitConfig(opts InitOptions) (ConfigFile, error) {
	cfg := DefaultConfigFile()
	if len(opts.Extensions) > 0 {
		cfg.Sync.Extensions = NormalizeExtensions(opts.Extensions)
	}
	if name := strings.TrimSpace(opts.BaseName); name != "" {
		if err := ValidateBaseName(name); err != nil {
			return ConfigFile{}, err
		}
		cfg.Sync.BaseName = name
	}
	if dir := strings.TrimSpace(opts.LogDir); dir != "" {
		cfg.Logging.Dir = dir
	}
	return cfg, nil
}

func ensureConfig(ctx context.Context, opts InitOptions, deps *Dependencies, result *InitResult, cfg ConfigFile) error {
	exists, err := pathExists(ctx, deps.FileSystem, result.ConfigPath)
	if err != nil {
		return fmt.Errorf("check config path: %w", ErrCritical)
	}
	if !exists {
		if opts.DryRun {
			return nil
		}
		return writeConfig(ctx, deps, result, cfg)
	}
	info, err := deps.FileSystem.Stat(ctx, result.ConfigPath)
	if err != nil {
		return fmt.Errorf("stat config: %w", ErrCritical)
	}
	if info.IsDir() {
		return fmt.Errorf("config path is a directory: %w", ErrUsage)
	}
	if !opts.Force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite): %w", result.ConfigPath, ErrUsage)
	}
	if opts.DryRun {
		return nil
	}
	backupPath, err := backupConfig(ctx, deps.FileSystem, result.ConfigPath)
	if err != nil {
		return err
	}
	result.BackupPath = backupPath
	return writeConfig(ctx, deps, result, cfg)
}

func backupConfig(ctx context.Context, fs FileSystemPort, configPath string) (string, error) {
	backupPath := configPath + ".bak." + initNow().Format(initBackupTimeFormat)
	if err := fs.Move(ctx, configPath, backupPath); err != nil {
		return "", fmt.Errorf("backup config: %w", ErrCritical)
	}
	return backupPath, nil
}

func writeConfig(ctx context.Context, deps *Dependencies, result *InitResult, cfg ConfigFile) error {
	if err := deps.FileSystem.CreateDir(ctx, deps.FileSystem.Dir(result.ConfigPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", ErrCritical)
	}
	if err := deps.Config.Save(ctx, result.ConfigPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", ErrCritical)
	}
	result.Written = true
	return nil
}

func pathExists(ctx context.Context, fs FileSystemPort, path string) (bool, error) {
	info, err := fs.Stat(ctx, path)
	if err != nil {
		if fs.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info != nil, nil
}
