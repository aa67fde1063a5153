package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/output"
)

// newWorkspaceCmd creates the workspace command group.
func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workspace",
		Aliases: []string{"ws"},
		Short:   "Manage registered workspaces",
		Long: `Manage the workspaces claudesync keeps in step. A running watcher picks up
changes to the list without a restart.

Examples:
  claudesync workspace add ~/src/api
  claudesync workspace add . --name web
  claudesync workspace remove api
  claudesync workspace list --json`,
	}
	cmd.AddCommand(newWorkspaceAddCmd(), newWorkspaceRemoveCmd(), newWorkspaceListCmd())
	return cmd
}

func newWorkspaceAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <dir>",
		Short: "Register a workspace directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newPrinter(cmd)
			ws, added, err := config.DefaultStore().AddWorkspace(args[0], name)
			if err != nil {
				return fail(printer, output.NewUserError(err.Error()))
			}
			msg := "Registered " + ws.Name + " (" + ws.Path + ")"
			if !added {
				msg = ws.Path + " is already registered as " + ws.Name
			}
			return printer.Success(map[string]any{
				"message": msg,
				"path":    ws.Path,
				"name":    ws.Name,
				"added":   added,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name (default: directory name)")
	return cmd
}

func newWorkspaceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <dir|name>",
		Aliases: []string{"rm"},
		Short:   "Unregister a workspace (its files are left alone)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newPrinter(cmd)
			ws, err := config.DefaultStore().RemoveWorkspace(args[0])
			if errors.Is(err, config.ErrWorkspaceNotFound) {
				return fail(printer, output.NewUserError(err.Error()).
					WithHint("run 'claudesync workspace list' to see registered workspaces"))
			}
			if err != nil {
				return fail(printer, err)
			}
			return printer.Success(map[string]any{
				"message": "Unregistered " + ws.Name + " (" + ws.Path + ")",
				"path":    ws.Path,
				"name":    ws.Name,
			})
		},
	}
}

func newWorkspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered workspaces",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			list, err := config.DefaultStore().Workspaces()
			if err != nil {
				return fail(printer, output.NewUserError(err.Error()))
			}
			if printer.IsJSON() {
				if list == nil {
					list = []config.Workspace{}
				}
				return printer.WriteJSON(map[string]any{"workspaces": list})
			}
			if len(list) == 0 {
				printer.Println("No workspaces registered. Add one with 'claudesync workspace add <dir>'.")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, w := range list {
				rows = append(rows, []string{w.Name, w.Path, w.AddedAt.Format("2006-01-02")})
			}
			printer.Table([]string{"NAME", "PATH", "ADDED"}, rows)
			return nil
		},
	}
}
