package usecase

// ConfigFile describes the on-disk configuration structure (TOML or YAML).
type ConfigFile struct {
	Sync          SyncConfig          `toml:"sync" yaml:"sync"`
	Logging       LoggingConfig       `toml:"logging" yaml:"logging"`
	Notifications NotificationsConfig `toml:"notifications" yaml:"notifications"`
}

// SyncConfig holds sync-related settings.
type SyncConfig struct {
	Extensions      []string `toml:"extensions" yaml:"extensions"`
	Exclude         []string `toml:"exclude" yaml:"exclude"`
	BaseName        string   `toml:"base_name" yaml:"base_name"`
	Workers         int      `toml:"workers" yaml:"workers"`
	HashWorkers     int      `toml:"hash_workers" yaml:"hash_workers"`
	FailOnCopyError bool     `toml:"fail_on_copy_error" yaml:"fail_on_copy_error"`
}

// NotificationsConfig holds notification settings.
type NotificationsConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Sound   string `toml:"sound" yaml:"sound"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Dir   string `toml:"dir" yaml:"dir"`
	Level string `toml:"level" yaml:"level"`
}

// DefaultBaseName is the name of the per-run destination subdirectory.
const DefaultBaseName = "COPYME"

// LockDirName is the lock directory at the destination root. It is not indexed there.
const LockDirName = ".backsync.lock"

// DefaultConfigFile returns default configuration.
func DefaultConfigFile() ConfigFile {
	return ConfigFile{
		Sync: SyncConfig{
			Extensions:      []string{},
			Exclude:         []string{},
			BaseName:        DefaultBaseName,
			Workers:         0,
			HashWorkers:     0,
			FailOnCopyError: false,
		},
		Logging: LoggingConfig{
			Dir:   "",
			Level: "info",
		},
		Notifications: NotificationsConfig{
			Enabled: false,
			Sound:   "default",
		},
	}
}
