package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/arumata/backsync/internal/usecase"
)

func newInitCmd(depsFactory func(*slog.Logger) *usecase.Dependencies, exitCode *int) *cobra.Command {
	var (
		configPath string
		extensions []string
		baseName   string
		logDir     string
		force      bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := setupLogger(false)
			deps := depsFactory(logger)
			homeDir, err := os.UserHomeDir()
			if err != nil {
				handleCmdError(exitCode, fmt.Errorf("resolve home dir: %w", usecase.ErrCritical))
				return
			}
			opts := usecase.InitOptions{
				ConfigPath: configPath,
				Extensions: extensions,
				BaseName:   baseName,
				LogDir:     logDir,
				Force:      force,
				DryRun:     dryRun,
				HomeDir:    homeDir,
			}
			result, err := usecase.Init(cmd.Context(), opts, deps, logger)
			if err != nil {
				handleCmdError(exitCode, err)
				return
			}
			out := cmd.OutOrStdout()
			if result.BackupPath != "" {
				_, _ = fmt.Fprintf(out, "Previous config saved to %s\n", result.BackupPath)
			}
			if result.Written {
				_, _ = fmt.Fprintf(out, "Config written to %s\n", result.ConfigPath)
			} else {
				_, _ = fmt.Fprintf(out, "Would write config to %s\n", result.ConfigPath)
			}
			handleCmdError(exitCode, nil)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file to write (default ~/.config/backsync/config.toml)")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "extensions to store in the config, e.g. .jpg,.png")
	cmd.Flags().StringVar(&baseName, "name", "", "destination subdirectory base name (default COPYME)")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "directory for daily log files")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config (the old one is kept as .bak)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be written")

	_ = cmd.RegisterFlagCompletionFunc("log-dir",
		func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveFilterDirs
		},
	)

	return cmd
}
