package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/lock"
	"github.com/gorewood/claudesync/internal/output"
)

// newUnlockCmd creates the unlock command.
func newUnlockCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Remove a leftover repository lock",
		Long: `Remove the repository lock file. Stale locks (older than five minutes, or
held by a process on this machine that no longer exists) are removed
directly; a live lock needs --force.

Only force-remove a live lock when you are sure no other claudesync process
is mid-commit.

Examples:
  claudesync unlock
  claudesync unlock --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			l := lock.New(config.DefaultStore().LockPath(), lock.Options{})

			st, err := l.Inspect()
			if err != nil {
				return fail(printer, err)
			}
			if st == nil {
				return printer.Success(map[string]any{"message": "No lock held", "removed": false})
			}
			if !st.Stale && !force {
				holder := "unknown holder"
				if st.Marker != nil {
					holder = fmt.Sprintf("pid %d on %s", st.Marker.PID, st.Marker.Host)
				}
				err := output.NewLockedError(
					fmt.Sprintf("lock %s is held by %s (%s old)", l.Path(), holder, st.Age.Round(time.Second)),
					"wait for that process to finish, or run 'claudesync unlock --force'", nil)
				printer.Error(err)
				return err
			}
			if err := l.ForceRemove(); err != nil {
				return fail(printer, err)
			}
			return printer.Success(map[string]any{
				"message": "Removed lock " + l.Path(),
				"removed": true,
				"stale":   st.Stale,
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Remove the lock even if its holder looks alive")
	return cmd
}
