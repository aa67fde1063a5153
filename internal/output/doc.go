// Package output provides structured output handling for the claudesync CLI.
//
// Every command writes through a Printer so that humans get styled text and
// scripts (or the MCP server) get JSON with the same fields.
//
// # Printer
//
//	color := output.ResolveColorMode(flag, output.IsTTY(cmd.OutOrStdout()))
//	printer := output.NewPrinter(cmd.OutOrStdout(), jsonFlag, color).WithStderr(cmd.ErrOrStderr())
//
//	printer.Success(map[string]any{"message": "Pulled 3 changes", "synced": 3})
//	printer.Error(err)
//	printer.Table([]string{"ID", "KIND"}, rows)
//
// # JSON Mode
//
//	// Success: {"message": "...", ...}
//	// Error:   {"error": "message", "code": N, "hint": "..."}
//
// # Logging
//
// Long-running work (the watcher daemon, propagation, git retries) logs
// through a charmbracelet/log logger built with NewLogger. Log lines go to
// stderr or the daemon log file, never to the Printer's writer.
//
// # Exit Codes
//
//	output.ExitSuccess     // 0: Success
//	output.ExitUserError   // 1: User error (bad args, unknown workspace)
//	output.ExitSystemError // 2: System error (git failed, I/O error)
//	output.ExitConflict    // 3: Conflict (merge conflict, stash recovery)
//	output.ExitLocked      // 4: Repository lock not acquired in time
//	output.ExitInvariant   // 5: Internal contract violated
//
// Errors that need a manual fix carry a Hint naming the exact commands to run:
//
//	output.NewLockedError("timed out waiting for lock", "claudesync unlock", err)
package output
