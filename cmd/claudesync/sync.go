package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/output"
	"github.com/gorewood/claudesync/internal/propagate"
)

// newSyncCmd creates the sync command.
func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [workspace]",
		Short: "Publish global skills and agents, or one workspace's shared rules",
		Long: `Without an argument, publish every global skill and agent to the shared
repository and regenerate CLAUDE.md in every registered workspace. A failing
item is reported and the rest continue.

With a workspace, publish its CLAUDE.shared.md and fan the result out to
every other registered workspace.

Examples:
  claudesync sync
  claudesync sync ~/src/api
  claudesync sync --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newPrinter(cmd)
			eng, err := openEngine(cmd)
			if err != nil {
				return fail(printer, err)
			}
			if len(args) == 1 {
				return runSyncWorkspace(cmd, printer, eng, args[0])
			}
			return runSyncAll(cmd, printer, eng)
		},
	}
}

func runSyncAll(cmd *cobra.Command, printer *output.Printer, eng *engine.Engine) error {
	report, err := eng.Sync(cmd.Context())
	if err != nil {
		return fail(printer, err)
	}
	if printer.IsJSON() {
		if err := printer.WriteJSON(report); err != nil {
			return err
		}
	} else {
		printBulk(printer, "Skills", report.Skills)
		printBulk(printer, "Agents", report.Agents)
		printer.Println(fmt.Sprintf("Regenerated %d workspace(s)", len(report.Regenerated)))
		for _, ws := range report.Missing {
			printer.Warn("workspace missing: %s", ws)
		}
	}

	if failed := report.Skills.Failed() + report.Agents.Failed(); failed > 0 {
		err := output.NewSystemError(fmt.Sprintf("%d item(s) failed to sync", failed)).
			WithHint("see the reasons above, then run 'claudesync sync' again")
		if printer.IsJSON() {
			return err // the report already lists the failures
		}
		return fail(printer, err)
	}
	return nil
}

func printBulk(printer *output.Printer, title string, report propagate.BulkReport) {
	printer.Section(fmt.Sprintf("%s (%d synced, %d skipped, %d failed)", title, report.Synced(), report.Skipped(), report.Failed()))
	rows := make([][]string, 0, len(report.Items))
	for _, it := range report.Items {
		rows = append(rows, []string{it.ID, printer.State(string(it.Status)), it.Reason})
	}
	if len(rows) > 0 {
		printer.Table([]string{"ID", "STATUS", "REASON"}, rows)
	}
}

func runSyncWorkspace(cmd *cobra.Command, printer *output.Printer, eng *engine.Engine, arg string) error {
	ws, err := resolveWorkspace(eng, arg)
	if err != nil {
		return fail(printer, err)
	}
	if err := eng.RequireRepo(cmd.Context()); err != nil {
		return fail(printer, err)
	}
	report, err := eng.Coordinator.PropagateSharedRules(cmd.Context(), ws)
	if err != nil {
		return fail(printer, err)
	}
	if printer.IsJSON() {
		return printer.Success(map[string]any{
			"workspace": ws,
			"pushed":    report.Pushed,
			"updated":   nonNil(report.Updated),
			"skipped":   nonNil(report.Skipped),
		})
	}
	printer.Println(fmt.Sprintf("%s: %s", filepath.Base(ws), report))
	return nil
}

// resolveWorkspace finds a registered workspace by path or name.
func resolveWorkspace(eng *engine.Engine, arg string) (string, error) {
	cfg, err := eng.Store.Load()
	if err != nil {
		return "", err
	}
	abs, _ := filepath.Abs(arg)
	if w, ok := cfg.Workspace(abs); ok {
		return w.Path, nil
	}
	for _, w := range cfg.Workspaces {
		if w.Name == arg {
			return w.Path, nil
		}
	}
	return "", output.NewUserError("unknown workspace: " + arg).
		WithHint("register it with 'claudesync workspace add " + arg + "'")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
