// Package output provides structured output and error handling for the claudesync CLI.
package output

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeConstants(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitUserError", ExitUserError, 1},
		{"ExitSystemError", ExitSystemError, 2},
		{"ExitConflict", ExitConflict, 3},
		{"ExitLocked", ExitLocked, 4},
		{"ExitInvariant", ExitInvariant, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("%s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestExitError(t *testing.T) {
	tests := []struct {
		name        string
		err         *ExitError
		wantCode    int
		wantMessage string
		wantHint    string
	}{
		{
			name:        "user error",
			err:         NewUserError("unknown workspace: api"),
			wantCode:    ExitUserError,
			wantMessage: "unknown workspace: api",
		},
		{
			name:        "system error",
			err:         NewSystemError("git operation failed"),
			wantCode:    ExitSystemError,
			wantMessage: "git operation failed",
		},
		{
			name:        "recovery error",
			err:         NewRecoveryError("stash pop conflicted", "cd /repo && git stash list", nil),
			wantCode:    ExitConflict,
			wantMessage: "stash pop conflicted",
			wantHint:    "cd /repo && git stash list",
		},
		{
			name:        "locked error",
			err:         NewLockedError("timed out waiting for lock", "delete lock file at /x/repo.lock", nil),
			wantCode:    ExitLocked,
			wantMessage: "timed out waiting for lock",
			wantHint:    "delete lock file at /x/repo.lock",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", tt.err.Code, tt.wantCode)
			}
			if tt.err.Error() != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantMessage)
			}
			if tt.err.Hint != tt.wantHint {
				t.Errorf("Hint = %q, want %q", tt.err.Hint, tt.wantHint)
			}
		})
	}
}

func TestInvariantErrorAlwaysHasHint(t *testing.T) {
	err := NewInvariantError("private rules routed to repository", nil)
	if err.Code != ExitInvariant {
		t.Errorf("Code = %d, want %d", err.Code, ExitInvariant)
	}
	if err.Hint == "" {
		t.Error("invariant errors must carry a hint")
	}
}

func TestExitErrorWrapping(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewSystemErrorWithCause("git push failed", underlying)

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error")
	}

	wrapped := fmt.Errorf("publishing skill: %w", err)
	if got := GetExitCode(wrapped); got != ExitSystemError {
		t.Errorf("GetExitCode(wrapped) = %d, want %d", got, ExitSystemError)
	}
}

func TestWithHint(t *testing.T) {
	base := NewSystemError("pull failed")
	hinted := base.WithHint("run 'claudesync pull' again")

	if base.Hint != "" {
		t.Error("WithHint must not mutate the receiver")
	}
	if hinted.Hint != "run 'claudesync pull' again" {
		t.Errorf("Hint = %q", hinted.Hint)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: ExitSuccess},
		{name: "user", err: NewUserError("bad input"), expected: ExitUserError},
		{name: "system", err: NewSystemError("git failed"), expected: ExitSystemError},
		{name: "locked", err: NewLockedError("locked", "", nil), expected: ExitLocked},
		{name: "invariant", err: NewInvariantError("bug", nil), expected: ExitInvariant},
		{name: "plain error defaults to user error", err: errors.New("some error"), expected: ExitUserError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.expected {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestGetHint(t *testing.T) {
	err := fmt.Errorf("sync: %w", NewLockedError("locked", "run 'claudesync unlock'", nil))
	if got := GetHint(err); got != "run 'claudesync unlock'" {
		t.Errorf("GetHint() = %q", got)
	}
	if got := GetHint(errors.New("plain")); got != "" {
		t.Errorf("GetHint(plain) = %q, want empty", got)
	}
}
