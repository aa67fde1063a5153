package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/output"
)

// newStatusCmd creates the status command.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show workspaces, repository state and the lock holder",
		Long: `Show the local sync state: registered workspaces (and whether their
directories exist), the repository clone with its last commit and any
unpushed work, and who holds the repository lock.

Examples:
  claudesync status
  claudesync status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := newPrinter(cmd)
			eng, err := openEngine(cmd)
			if err != nil {
				return fail(printer, err)
			}
			st, err := eng.Status(cmd.Context())
			if err != nil {
				return fail(printer, err)
			}
			if printer.IsJSON() {
				return printer.WriteJSON(st)
			}
			printHumanStatus(printer, st)
			return nil
		},
	}
}

func printHumanStatus(printer *output.Printer, st *engine.Status) {
	printer.Section("Repository")
	printer.KeyValue("Config", st.ConfigPath)
	printer.KeyValue("Clone", st.RepoPath)
	if !st.Cloned {
		printer.KeyValue("State", "not cloned")
	} else {
		printer.KeyValue("Remote", st.Remote+"/"+st.Branch)
		if c := st.LastCommit; c != nil {
			printer.KeyValue("Last commit", fmt.Sprintf("%s %s (%s)", c.Short, c.Subject, c.Date.Format("2006-01-02 15:04")))
		}
		printer.KeyValue("Pending", strconv.FormatBool(st.Pending))
	}

	printer.Section("Lock")
	if l := st.Lock; l == nil {
		printer.KeyValue("Holder", "none")
	} else {
		printer.KeyValue("Holder", fmt.Sprintf("pid %d on %s for %s", l.PID, l.Host, l.Age.Round(time.Second)))
		if l.Stale {
			printer.KeyValue("Stale", l.Reason)
		}
	}

	printer.Section(fmt.Sprintf("Workspaces (%d)", len(st.Workspaces)))
	rows := make([][]string, 0, len(st.Workspaces))
	for _, w := range st.Workspaces {
		state := "ok"
		if !w.Exists {
			state = "missing"
		}
		rows = append(rows, []string{w.Name, w.Path, printer.State(state)})
	}
	if len(rows) > 0 {
		printer.Table([]string{"NAME", "PATH", "STATE"}, rows)
	}
}
