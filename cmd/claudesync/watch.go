package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/daemon"
	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/output"
)

// loopFlags holds the flags shared by watch and daemon.
type loopFlags struct {
	logLevel string
	noPull   bool
}

func (f *loopFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config, else info)")
	cmd.Flags().BoolVar(&f.noPull, "no-pull", false, "Skip the start-up pull")
}

// newWatchCmd creates the foreground watch command.
func newWatchCmd() *cobra.Command {
	flags := &loopFlags{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch workspaces in the foreground and sync changes",
		Long: `Watch registered workspaces and the global skills and agents directories,
syncing every settled change. Logs go to stderr. Stop with Ctrl-C.

On start the repository is pulled once (failures are logged and watching
continues on local state) and existing global skills and agents are published.

Examples:
  claudesync watch
  claudesync watch --log-level debug`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoop(cmd, flags, cmd.ErrOrStderr(), false)
		},
	}
	flags.register(cmd)
	return cmd
}

// newDaemonCmd creates the daemon command.
func newDaemonCmd() *cobra.Command {
	flags := &loopFlags{}
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync loop for a service manager, logging JSON to a file",
		Long: `Run the same loop as 'watch', writing JSON log lines to daemon.log in the
configuration directory. Intended for launchd, systemd or a scheduled task;
claudesync does not install itself as a service.

Examples:
  claudesync daemon
  CLAUDESYNC_CONFIG_HOME=/srv/claudesync claudesync daemon`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.DefaultStore().LogPath()
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fail(newPrinter(cmd), output.NewSystemErrorWithCause("creating config directory", err))
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fail(newPrinter(cmd), output.NewSystemErrorWithCause("opening daemon log", err))
			}
			defer file.Close() //nolint:errcheck // append-only log
			return runLoop(cmd, flags, file, true)
		},
	}
	flags.register(cmd)
	return cmd
}

// runLoop runs the daemon until SIGINT or SIGTERM.
func runLoop(cmd *cobra.Command, flags *loopFlags, logOut io.Writer, jsonLog bool) error {
	printer := newPrinter(cmd)

	store := config.DefaultStore()
	level := flags.logLevel
	if level == "" {
		if cfg, err := store.Load(); err == nil {
			level = cfg.LogLevel
		}
	}
	logger := output.NewLogger(logOut, output.LoggerOptions{
		Level:      level,
		JSON:       jsonLog,
		Prefix:     "claudesync",
		Timestamps: true,
	})

	eng, err := engine.New(engine.Options{Store: store, Logger: logger})
	if err != nil {
		return fail(printer, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(eng, daemon.Options{Logger: logger, SkipPull: flags.noPull})
	if err := d.Run(ctx); err != nil {
		return fail(printer, fmt.Errorf("sync loop: %w", err))
	}
	return nil
}
