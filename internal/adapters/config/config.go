package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/arumata/backsync/internal/usecase"
)

// Adapter implements ConfigPort using TOML or YAML files on disk.
// Files ending in .yaml or .yml are YAML; everything else is TOML.
type Adapter struct {
	logger *slog.Logger
}

// New creates a new config adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		panic("config adapter requires logger")
	}
	return &Adapter{logger: logger}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads config from path or returns defaults when file is missing.
func (a *Adapter) Load(ctx context.Context, path string) (usecase.ConfigFile, error) {
	_ = ctx
	if strings.TrimSpace(path) == "" {
		return usecase.ConfigFile{}, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is controlled by usecase
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return usecase.DefaultConfigFile(), nil
		}
		return usecase.ConfigFile{}, err
	}

	cfg := usecase.DefaultConfigFile()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return usecase.ConfigFile{}, fmt.Errorf("parse config yaml: %w", err)
		}
		return cfg, nil
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return usecase.ConfigFile{}, fmt.Errorf("parse config toml: %w", err)
	}
	for _, key := range md.Undecoded() {
		a.logger.Warn("Unknown config key", "key", key.String(), "path", path)
	}
	return cfg, nil
}

// Save writes config to path, TOML with inline documentation or plain YAML.
func (a *Adapter) Save(ctx context.Context, path string, cfg usecase.ConfigFile) error {
	_ = ctx
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is empty")
	}

	var content []byte
	if isYAML(path) {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config yaml: %w", err)
		}
		content = append([]byte("# backsync configuration\n"), data...)
	} else {
		content = []byte(renderCommentedTOML(cfg))
	}

	// #nosec G306 G304 - config is not secret, path is controlled by usecase.
	return os.WriteFile(path, content, 0o644)
}

func tomlStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("%q", v))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

//nolint:lll // template readability is more important than line length.
func renderCommentedTOML(cfg usecase.ConfigFile) string {
	return fmt.Sprintf(`# backsync configuration
# Command-line flags override every value below.

# ── Sync Settings ────────────────────────────────────────────────
[sync]

# File name suffixes to back up, case-sensitive, leading dot included.
# Empty list backs up every regular file.
# Example: [".jpg", ".JPG", ".png", ".mov"]
extensions = %[1]s

# Glob patterns (doublestar syntax, relative to each root) to skip.
# A trailing "/" matches directories only.
# Example: ["**/.cache/", "**/*.tmp"]
exclude = %[2]s

# Name of the per-run subdirectory created in the destination.
# Taken names get a numeric suffix: COPYME, COPYME_0, COPYME_1, ...
base_name = %[3]q

# Parallel file copies. 0 = twice the number of CPUs.
workers = %[4]d

# Parallel hash computations. 0 = number of CPUs.
hash_workers = %[5]d

# Exit with status 3 when any file could not be copied.
fail_on_copy_error = %[6]t

# ── Logging ──────────────────────────────────────────────────────
[logging]

# Log directory for daily log files. Empty disables file logging.
# Supports ~, $HOME, ${HOME}. Created automatically.
dir = %[7]q

# Minimum log level: debug, info, warn, error.
level = %[8]q

# ── Desktop Notifications ────────────────────────────────────────
[notifications]

# Enable notifications after a sync completes.
enabled = %[9]t

# Notification sound ("default" = system default).
sound = %[10]q
`,
		tomlStringArray(cfg.Sync.Extensions),
		tomlStringArray(cfg.Sync.Exclude),
		cfg.Sync.BaseName,
		cfg.Sync.Workers,
		cfg.Sync.HashWorkers,
		cfg.Sync.FailOnCopyError,
		cfg.Logging.Dir,
		cfg.Logging.Level,
		cfg.Notifications.Enabled,
		cfg.Notifications.Sound,
	)
}
