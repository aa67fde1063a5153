package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newPullCmd creates the pull command.
func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull the shared repository and install its content locally",
		Long: `Pull the shared repository once, then install what it holds:

  CLAUDE.md          copied to every workspace's CLAUDE.shared.md (merged output regenerated)
  skills/<id>/...    installed under ~/.claude/skills
  agents/*.md        installed under ~/.claude/agents

Files removed upstream are not removed locally.

Examples:
  claudesync pull
  claudesync pull --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			eng, err := openEngine(cmd)
			if err != nil {
				return fail(printer, err)
			}
			report, err := eng.Pull(cmd.Context())
			if err != nil {
				return fail(printer, err)
			}

			if printer.IsJSON() {
				return printer.WriteJSON(report)
			}
			printer.Println(fmt.Sprintf("Pulled: %d workspace(s), %d skill(s), %d agent(s) updated",
				len(report.Workspaces), len(report.Skills), len(report.Agents)))
			for _, ws := range report.Skipped {
				printer.Warn("workspace missing: %s", ws)
			}
			return nil
		},
	}
}
