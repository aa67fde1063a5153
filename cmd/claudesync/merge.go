package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newMergeCmd creates the merge command.
func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge [workspace]",
		Short: "Regenerate CLAUDE.md from shared and private rules",
		Long: `Regenerate the merged CLAUDE.md of one workspace, or of every registered
workspace, from CLAUDE.shared.md and CLAUDE.local.md. Purely local: nothing
is committed or pushed.

Examples:
  claudesync merge
  claudesync merge api`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newPrinter(cmd)
			eng, err := openEngine(cmd)
			if err != nil {
				return fail(printer, err)
			}

			var changed, missing []string
			if len(args) == 1 {
				ws, err := resolveWorkspace(eng, args[0])
				if err != nil {
					return fail(printer, err)
				}
				ok, err := eng.Coordinator.Regenerate(ws)
				if err != nil {
					return fail(printer, err)
				}
				if ok {
					changed = append(changed, ws)
				}
			} else if changed, missing, err = eng.RegenerateAll(); err != nil {
				return fail(printer, err)
			}

			if printer.IsJSON() {
				return printer.Success(map[string]any{
					"regenerated": nonNil(changed),
					"missing":     nonNil(missing),
				})
			}
			for _, ws := range changed {
				printer.Println("regenerated " + ws)
			}
			for _, ws := range missing {
				printer.Warn("workspace missing: %s", ws)
			}
			printer.Println(fmt.Sprintf("%d file(s) changed", len(changed)))
			return nil
		},
	}
}
