package main

import (
	"github.com/spf13/cobra"

	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/output"
)

// checkStatus represents the result of a health check.
type checkStatus string

const (
	checkPass checkStatus = "pass"
	checkWarn checkStatus = "warn"
	checkFail checkStatus = "fail"
)

// checkResult holds the result of a single health check.
type checkResult struct {
	Name    string      `json:"name"`
	Status  checkStatus `json:"status"`
	Message string      `json:"message"`
	Hint    string      `json:"hint,omitempty"`
}

// doctorResult holds all check results organized by category.
type doctorResult struct {
	Version    string        `json:"version"`
	Core       []checkResult `json:"core"`
	Workspaces []checkResult `json:"workspaces"`
	Global     []checkResult `json:"global"`
	Summary    doctorSummary `json:"summary"`
}

// doctorSummary holds the counts of check results.
type doctorSummary struct {
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Failed   int `json:"failed"`
}

type doctorFlags struct {
	fix   bool
	quiet bool
}

// newDoctorCmd creates the doctor command.
func newDoctorCmd() *cobra.Command {
	flags := &doctorFlags{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check installation health and suggest fixes",
		Long: `Check claudesync health without touching the network.

  CORE       - git binary, configuration, repository clone, lock file
  WORKSPACES - registered directories and their merged CLAUDE.md
  GLOBAL     - global skills and agents directories

Examples:
  claudesync doctor           # Run all health checks
  claudesync doctor --fix     # Remove stale locks, create missing dirs, regenerate
  claudesync doctor --quiet   # Only show failures and warnings
  claudesync doctor --json    # Output results as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.fix, "fix", false, "Fix what can be fixed locally")
	cmd.Flags().BoolVar(&flags.quiet, "quiet", false, "Only show failures and warnings")
	return cmd
}

func runDoctor(cmd *cobra.Command, flags *doctorFlags) error {
	printer := newPrinter(cmd)

	eng, err := openEngine(cmd)
	if err != nil {
		return fail(printer, err)
	}

	result := gatherDoctorChecks(cmd, eng, flags)
	if printer.IsJSON() {
		if err := printer.WriteJSON(result); err != nil {
			return err
		}
	} else {
		outputDoctorHuman(printer, result, flags.quiet)
	}

	if result.Summary.Failed > 0 {
		return output.NewUserError("doctor found problems")
	}
	return nil
}

func gatherDoctorChecks(cmd *cobra.Command, eng *engine.Engine, flags *doctorFlags) *doctorResult {
	result := &doctorResult{
		Version:    buildVersion(),
		Core:       runCoreChecks(cmd.Context(), eng, flags),
		Workspaces: runWorkspaceChecks(eng, flags),
		Global:     runGlobalChecks(eng, flags),
	}

	all := append(append(append([]checkResult{}, result.Core...), result.Workspaces...), result.Global...)
	for _, check := range all {
		switch check.Status {
		case checkPass:
			result.Summary.Passed++
		case checkWarn:
			result.Summary.Warnings++
		case checkFail:
			result.Summary.Failed++
		}
	}
	return result
}

func outputDoctorHuman(printer *output.Printer, result *doctorResult, quiet bool) {
	printer.Println()
	printer.Print("claudesync doctor %s\n", result.Version)

	printCheckSection(printer, "CORE", result.Core, quiet)
	printCheckSection(printer, "WORKSPACES", result.Workspaces, quiet)
	printCheckSection(printer, "GLOBAL", result.Global, quiet)

	printer.Println()
	printer.Print("%s %d passed  %s %d warnings  %s %d failed\n",
		statusIcon(checkPass), result.Summary.Passed,
		statusIcon(checkWarn), result.Summary.Warnings,
		statusIcon(checkFail), result.Summary.Failed,
	)
}

func printCheckSection(printer *output.Printer, title string, checks []checkResult, quiet bool) {
	if quiet && allPassed(checks) {
		return
	}

	printer.Println()
	printer.Println(title)
	for _, check := range checks {
		if quiet && check.Status == checkPass {
			continue
		}
		printer.Print("  %s  %s %s\n", statusIcon(check.Status), check.Name, check.Message)
		if check.Hint != "" {
			printer.Print("     -> %s\n", check.Hint)
		}
	}
}

func allPassed(checks []checkResult) bool {
	for _, check := range checks {
		if check.Status != checkPass {
			return false
		}
	}
	return true
}

func statusIcon(status checkStatus) string {
	switch status {
	case checkPass:
		return "ok"
	case checkWarn:
		return "!!"
	case checkFail:
		return "XX"
	default:
		return "??"
	}
}
