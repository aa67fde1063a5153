package repo

import (
	"errors"
	"fmt"

	"github.com/gorewood/claudesync/internal/lock"
	"github.com/gorewood/claudesync/internal/output"
	"github.com/gorewood/claudesync/internal/retry"
)

// Sentinel errors.
var (
	// ErrPrivateRules is a contract violation: private rules were routed to
	// the repository. It is never retried.
	ErrPrivateRules = errors.New("private rules file must never be sent to the shared repository")

	// ErrMergeConflict means a pull stopped on conflicts and was aborted.
	ErrMergeConflict = errors.New("merge conflict while pulling shared repository")

	// ErrStashRecovery means local changes stashed before a pull could not be
	// re-applied. The stash entry is still there.
	ErrStashRecovery = errors.New("stashed local changes could not be restored")
)

// RecoveryError is a failure that needs manual repository surgery. Hint
// spells out the commands.
type RecoveryError struct {
	Err   error // ErrMergeConflict or ErrStashRecovery
	Hint  string
	Cause error
}

func (e *RecoveryError) Error() string {
	if e.Cause == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %v", e.Err, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying git failure.
func (e *RecoveryError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}

func mergeConflict(dir, remote, branch string, cause error) error {
	return &RecoveryError{
		Err: ErrMergeConflict,
		Hint: fmt.Sprintf("cd %s && git pull --no-rebase %s %s, resolve the conflicts, git commit, then run 'claudesync sync'",
			dir, remote, branch),
		Cause: cause,
	}
}

func stashRecovery(dir string, cause error) error {
	return &RecoveryError{
		Err: ErrStashRecovery,
		Hint: fmt.Sprintf("cd %s && git status && git stash list; resolve the conflicts, then 'git stash drop' once your changes are back",
			dir),
		Cause: cause,
	}
}

// AsExitError maps gateway failures onto CLI exit codes and recovery hints.
// Unknown errors become system errors.
func AsExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *output.ExitError
	var recErr *RecoveryError
	var lockErr *lock.TimeoutError
	switch {
	case errors.As(err, &lockErr):
		return lock.AsExitError(err)
	case errors.Is(err, ErrPrivateRules):
		return output.NewInvariantError(err.Error(), err)
	case errors.As(err, &recErr):
		return output.NewRecoveryError(err.Error(), recErr.Hint, err)
	case errors.Is(err, retry.ErrExhausted):
		return output.NewSystemErrorWithCause(err.Error(), err).
			WithHint("check your network connection, then run 'claudesync pull' and 'claudesync sync' again")
	case errors.As(err, &exitErr):
		return err
	}
	return output.NewSystemErrorWithCause(err.Error(), err)
}
