// Package output provides structured output and error handling for the claudesync CLI.
package output

import "errors"

// Exit codes:
// 0 = Success
// 1 = User error (bad args, unknown workspace)
// 2 = System error (git failed, I/O error)
// 3 = Conflict (merge conflict, stash needs manual recovery)
// 4 = Locked (repository lock could not be acquired in time)
// 5 = Invariant violation (a bug: e.g. private rules routed to the repository)
const (
	ExitSuccess     = 0
	ExitUserError   = 1
	ExitSystemError = 2
	ExitConflict    = 3
	ExitLocked      = 4
	ExitInvariant   = 5
)

// ExitError is an error that carries an exit code for the CLI.
// Hint, when set, names the exact recovery action for the user.
type ExitError struct {
	Code    int
	Message string
	Hint    string
	Cause   error
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/errors.As support.
func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUserError creates an error for user-caused issues (exit code 1).
// Use for: bad arguments, unknown workspace, missing config.
func NewUserError(message string) *ExitError {
	return &ExitError{
		Code:    ExitUserError,
		Message: message,
	}
}

// NewSystemError creates an error for system failures (exit code 2).
// Use for: git operation failures, I/O errors.
func NewSystemError(message string) *ExitError {
	return &ExitError{
		Code:    ExitSystemError,
		Message: message,
	}
}

// NewSystemErrorWithCause creates a system error wrapping an underlying cause.
func NewSystemErrorWithCause(message string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitSystemError,
		Message: message,
		Cause:   cause,
	}
}

// NewConflictError creates an error for conflict situations (exit code 3).
func NewConflictError(message string) *ExitError {
	return &ExitError{
		Code:    ExitConflict,
		Message: message,
	}
}

// NewRecoveryError creates a conflict error that needs manual repository
// surgery. The hint must spell out the recovery commands.
func NewRecoveryError(message, hint string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConflict,
		Message: message,
		Hint:    hint,
		Cause:   cause,
	}
}

// NewLockedError creates an error for lock acquisition timeouts (exit code 4).
func NewLockedError(message, hint string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitLocked,
		Message: message,
		Hint:    hint,
		Cause:   cause,
	}
}

// NewInvariantError creates an error for programming-contract violations (exit code 5).
// These are never retried.
func NewInvariantError(message string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvariant,
		Message: message,
		Hint:    "this is a bug in claudesync; please report it with the daemon log",
		Cause:   cause,
	}
}

// WithHint returns a copy of e with the hint replaced.
func (e *ExitError) WithHint(hint string) *ExitError {
	clone := *e
	clone.Hint = hint
	return &clone
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil, ExitUserError for non-ExitError errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	// Default to user error for untyped errors
	return ExitUserError
}

// GetHint returns the recovery hint carried by err, if any.
func GetHint(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Hint
	}
	return ""
}
