package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/spf13/cobra"

	"github.com/arumata/backsync/internal/adapters/loghandler"
	"github.com/arumata/backsync/internal/app"
	"github.com/arumata/backsync/internal/usecase"
)

type syncFunc func(context.Context, *usecase.Config, *usecase.Dependencies, *slog.Logger) (*usecase.RunReport, error)

// rootFlags holds command line values; file config is only overridden by flags the user actually set.
type rootFlags struct {
	configPath  string
	extensions  []string
	excludes    []string
	baseName    string
	workers     int
	hashWorkers int
	failOnError bool
	dryRun      bool
	verbose     bool
	noProgress  bool
	reportPath  string
	notify      bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		syscall.SIGHUP,
	)
	defer stop()

	cmd, exitCode := newRootCmd(app.NewDefaultDependencies, usecase.Sync, os.Stdout)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsageError
	}
	return *exitCode
}

func newRootCmd(
	depsFactory func(*slog.Logger) *usecase.Dependencies,
	run syncFunc,
	stdout io.Writer,
) (*cobra.Command, *int) {
	exitCode := 0
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "backsync [flags] <source> <destination>",
		Short: "Back up source files that have no identical copy in the destination",
		Long: "backsync copies every source file without a byte-identical counterpart anywhere in the\n" +
			"destination tree into a fresh destination subdirectory (COPYME, COPYME_0, ...).",
		SilenceUsage:  false,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			exitCode = runRootCommand(cmd, args, flags, depsFactory, run, stdout)
		},
	}
	cmd.SetErr(os.Stderr)

	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/backsync/config.toml)")
	f.StringSliceVar(&flags.extensions, "ext", nil, "case-sensitive file extensions to back up, e.g. --ext .jpg,.png (default: all files)")
	f.StringArrayVar(&flags.excludes, "exclude", nil, "glob of relative paths to skip (repeatable)")
	f.StringVar(&flags.baseName, "name", usecase.DefaultBaseName, "base name of the destination subdirectory")
	f.IntVar(&flags.workers, "workers", 0, "parallel copy workers (default 2x CPU)")
	f.IntVar(&flags.hashWorkers, "hash-workers", 0, "parallel hash workers (default CPU count)")
	f.BoolVar(&flags.failOnError, "fail-on-error", false, "exit with code 3 when any file failed to copy")
	f.BoolVar(&flags.dryRun, "dry-run", false, "plan only, copy nothing")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	f.BoolVar(&flags.noProgress, "no-progress", false, "disable progress bars")
	f.StringVar(&flags.reportPath, "report-json", "", "write a JSON run report to this path")
	f.BoolVar(&flags.notify, "notify", false, "send a desktop notification when the run ends")

	_ = cmd.RegisterFlagCompletionFunc("report-json",
		func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return []string{"json"}, cobra.ShellCompDirectiveFilterFileExt
		},
	)

	cmd.AddCommand(newInitCmd(depsFactory, &exitCode))
	cmd.AddCommand(newVersionCmd())

	return cmd, &exitCode
}

func runRootCommand(
	cmd *cobra.Command,
	args []string,
	flags *rootFlags,
	depsFactory func(*slog.Logger) *usecase.Dependencies,
	run syncFunc,
	stdout io.Writer,
) int {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := setupLogger(flags.verbose)
	deps := depsFactory(logger)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return mapExitCodeWithLog(fmt.Errorf("resolve home dir: %v: %w", err, usecase.ErrCritical))
	}
	configFile, err := loadConfigFile(ctx, deps, flags.configPath, homeDir)
	if err != nil {
		return mapExitCodeWithLog(err)
	}
	cfg, err := usecase.RuntimeConfigFromFile(configFile, homeDir)
	if err != nil {
		return mapExitCodeWithLog(err)
	}
	if err := applyFlags(cmd, cfg, flags); err != nil {
		return mapExitCodeWithLog(err)
	}
	cfg.SourceDir = args[0]
	cfg.DestDir = args[1]
	if cfg.ReportPath != "" {
		cfg.ReportPath = usecase.ExpandHomeDirPublic(cfg.ReportPath, homeDir)
	}

	fileLogger, cleanup := withFileLogging(logger, configFile.Logging, homeDir, cfg.Verbose)
	defer cleanup()
	logger = fileLogger
	if cfg.NoProgress {
		app.DisableProgress(deps, logger)
	}

	report, runErr := run(ctx, cfg, deps, logger)
	if report != nil && shouldPrintSummary(runErr) {
		if err := usecase.WriteSummary(stdout, report); err != nil {
			logger.Warn("Cannot print summary", "error", err)
		}
	}
	return mapExitCodeWithLog(runErr)
}

func shouldPrintSummary(err error) bool {
	return err == nil || errors.Is(err, usecase.ErrPartial) || errors.Is(err, usecase.ErrInterrupted)
}

func applyFlags(cmd *cobra.Command, cfg *usecase.Config, flags *rootFlags) error {
	f := cmd.Flags()
	if f.Changed("ext") {
		cfg.Extensions = usecase.NormalizeExtensions(flags.extensions)
	}
	if f.Changed("exclude") {
		cfg.Excludes = append(cfg.Excludes, flags.excludes...)
	}
	if f.Changed("name") {
		cfg.BaseName = strings.TrimSpace(flags.baseName)
	}
	if f.Changed("workers") {
		if flags.workers <= 0 {
			return fmt.Errorf("--workers must be positive: %w", usecase.ErrUsage)
		}
		cfg.Workers = flags.workers
	}
	if f.Changed("hash-workers") {
		if flags.hashWorkers <= 0 {
			return fmt.Errorf("--hash-workers must be positive: %w", usecase.ErrUsage)
		}
		cfg.HashWorkers = flags.hashWorkers
	}
	if f.Changed("fail-on-error") {
		cfg.FailOnCopyError = flags.failOnError
	}
	if f.Changed("notify") {
		cfg.Notify = flags.notify
	}
	cfg.DryRun = flags.dryRun
	cfg.Verbose = flags.verbose
	cfg.NoProgress = flags.noProgress
	cfg.ReportPath = strings.TrimSpace(flags.reportPath)
	return nil
}

func mapExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	switch {
	case errors.Is(err, usecase.ErrUsage):
		return exitUsageError
	case errors.Is(err, usecase.ErrLockBusy):
		return exitLockBusy
	case errors.Is(err, usecase.ErrInterrupted):
		return exitInterrupted
	case errors.Is(err, usecase.ErrPartial):
		return exitPartial
	default:
		return exitCriticalError
	}
}

// loadConfigFile reads the config file. A missing default file yields defaults;
// a missing file named with --config is a usage error.
func loadConfigFile(
	ctx context.Context,
	deps *usecase.Dependencies,
	explicitPath string,
	homeDir string,
) (usecase.ConfigFile, error) {
	if deps == nil || deps.Config == nil || deps.FileSystem == nil {
		return usecase.ConfigFile{}, fmt.Errorf("dependencies not available: %w", usecase.ErrCritical)
	}
	configPath := usecase.DefaultConfigPath(deps.FileSystem, homeDir)
	explicit := strings.TrimSpace(explicitPath) != ""
	if explicit {
		configPath = usecase.ExpandHomeDirPublic(strings.TrimSpace(explicitPath), homeDir)
	}

	info, err := deps.FileSystem.Stat(ctx, configPath)
	switch {
	case err == nil:
		if info != nil && info.IsDir() {
			return usecase.ConfigFile{}, fmt.Errorf("config path is a directory: %w", usecase.ErrUsage)
		}
	case deps.FileSystem.IsNotExist(err):
		if explicit {
			return usecase.ConfigFile{}, fmt.Errorf("config file %s not found: %w", configPath, usecase.ErrUsage)
		}
	default:
		return usecase.ConfigFile{}, fmt.Errorf("stat config: %w", usecase.ErrCritical)
	}

	cfg, err := deps.Config.Load(ctx, configPath)
	if err != nil {
		return usecase.ConfigFile{}, fmt.Errorf("load config %s: %v: %w", configPath, err, usecase.ErrUsage)
	}
	return cfg, nil
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := loghandler.NewHandler(os.Stderr, &loghandler.Options{
		Level:    level,
		UseColor: shouldUseColor(os.Stderr),
	})
	return slog.New(handler)
}

func withFileLogging(
	logger *slog.Logger,
	logCfg usecase.LoggingConfig,
	homeDir string,
	verbose bool,
) (*slog.Logger, func()) {
	dir := strings.TrimSpace(logCfg.Dir)
	if dir == "" {
		return logger, func() {}
	}
	expanded := usecase.ExpandHomeDirPublic(dir, homeDir)
	f, err := loghandler.OpenDailyFile(expanded, "backsync", time.Now())
	if err != nil {
		logger.Warn("Cannot open log file", "dir", expanded, "error", err)
		return logger, func() {}
	}

	fileLevel := parseLogLevel(logCfg.Level)
	if verbose && fileLevel > slog.LevelDebug {
		fileLevel = slog.LevelDebug
	}
	fileHandler := loghandler.NewHandler(f, &loghandler.Options{
		Level:    fileLevel,
		UseColor: false,
	})

	combined := loghandler.NewMultiHandler(logger.Handler(), fileHandler)
	return slog.New(combined), func() { _ = f.Close() }
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func shouldUseColor(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
