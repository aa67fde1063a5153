// Package main provides the entry point for the claudesync CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/envfile"
	"github.com/gorewood/claudesync/internal/output"
	"github.com/gorewood/claudesync/internal/repo"
)

// Build info set via ldflags at build time by goreleaser.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// isJSONMode reads the --json persistent flag from the command hierarchy.
func isJSONMode(cmd *cobra.Command) bool {
	flag := cmd.Flags().Lookup("json")
	if flag == nil {
		flag = cmd.Root().PersistentFlags().Lookup("json")
	}
	return flag != nil && flag.Value.String() == "true"
}

// useColor resolves --color against TTY detection of the command's output.
func useColor(cmd *cobra.Command) bool {
	mode := "auto"
	if flag := cmd.Root().PersistentFlags().Lookup("color"); flag != nil {
		mode = flag.Value.String()
	}
	return output.ResolveColorMode(mode, output.IsTTY(cmd.OutOrStdout()))
}

// newPrinter returns a printer honoring --json and --color.
func newPrinter(cmd *cobra.Command) *output.Printer {
	return output.NewPrinter(cmd.OutOrStdout(), isJSONMode(cmd), useColor(cmd)).WithStderr(cmd.ErrOrStderr())
}

// fail maps err onto an exit-coded error, prints it and returns it.
func fail(printer *output.Printer, err error) error {
	err = repo.AsExitError(err)
	printer.Error(err)
	return err
}

// buildVersion returns the full version string including commit and date.
func buildVersion() string {
	if commit == "none" && date == "unknown" {
		return version
	}
	shortCommit := commit
	if len(commit) > 7 {
		shortCommit = commit[:7]
	}
	return fmt.Sprintf("%s (%s, %s)", version, shortCommit, date)
}

func main() {
	code := run()
	os.Exit(code)
}

func run() int {
	cmd := newRootCmd()
	err := fang.Execute(context.Background(), cmd, fang.WithVersion(buildVersion()))
	return output.GetExitCode(err)
}

// newRootCmd creates the root command for the claudesync CLI.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claudesync",
		Short: "Keep Claude configuration consistent across workspaces and machines",
		Long: `claudesync keeps CLAUDE.md rules, skills and agents in step across every
registered workspace, using a git repository as the shared store.

  CLAUDE.shared.md  team rules, pushed to the repository and fanned out
  CLAUDE.local.md   private rules, never leave this machine
  CLAUDE.md         generated from the two above

Global skills (~/.claude/skills) and agents (~/.claude/agents) are published
to the repository and installed on every machine that pulls.

All commands support --json for structured output.`,
		Version:       buildVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if isJSONMode(cmd) {
				printer := output.NewPrinter(cmd.OutOrStdout(), true, false)
				err := output.NewUserError("no command specified. Run 'claudesync --help' for usage")
				printer.Error(err)
				return err
			}
			return cmd.Help()
		},
	}

	// The env file lets a supervised daemon receive GIT_SSH_COMMAND, proxy
	// settings and the like. Variables already set always take precedence.
	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		_, _ = envfile.Load(config.DefaultStore().EnvPath())
		return nil
	}

	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("color", "auto", "Color output: auto, always, never")

	lipgloss.SetHasDarkBackground(true)

	addCommandGroups(cmd)
	addCommands(cmd)

	return cmd
}

// addCommandGroups defines the command groups for help output.
func addCommandGroups(cmd *cobra.Command) {
	cmd.AddGroup(&cobra.Group{ID: "sync", Title: "Sync Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "workspace", Title: "Workspace Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "agent", Title: "Agent Commands:"})
	cmd.AddGroup(&cobra.Group{ID: "admin", Title: "Admin Commands:"})
}

// addCommands adds all subcommands with their group assignments.
func addCommands(cmd *cobra.Command) {
	addGroupedCommand(cmd, newWatchCmd(), "sync")
	addGroupedCommand(cmd, newDaemonCmd(), "sync")
	addGroupedCommand(cmd, newPullCmd(), "sync")
	addGroupedCommand(cmd, newSyncCmd(), "sync")
	addGroupedCommand(cmd, newMergeCmd(), "sync")

	addGroupedCommand(cmd, newWorkspaceCmd(), "workspace")
	addGroupedCommand(cmd, newStatusCmd(), "workspace")

	addGroupedCommand(cmd, newServeCmd(), "agent")

	addGroupedCommand(cmd, newUnlockCmd(), "admin")
	addGroupedCommand(cmd, newDoctorCmd(), "admin")
}

// addGroupedCommand adds a subcommand with a group assignment.
func addGroupedCommand(parent *cobra.Command, child *cobra.Command, groupID string) {
	child.GroupID = groupID
	parent.AddCommand(child)
}

// openEngine builds the engine for the default configuration directory.
// One-shot commands log warnings (retries, skipped workspaces) to stderr.
func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	return engine.NewDefault(output.NewLogger(cmd.ErrOrStderr(), output.LoggerOptions{Level: "warn"}))
}
