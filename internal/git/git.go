// Package git provides the repository primitives the sync engine orchestrates.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gorewood/claudesync/internal/output"
)

// ErrConflict is returned by Pull when the merge stops on conflicts.
var ErrConflict = errors.New("merge conflict")

// RunContext executes git with the given arguments inside dir.
// It returns trimmed stdout. On failure the error message carries git's
// stderr and stdout so callers can classify it.
func RunContext(ctx context.Context, dir string, args ...string) (string, error) {
	if dir != "" {
		args = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, "git", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", output.NewSystemError("git not found: ensure git is installed and in PATH")
		}

		errMsg := strings.TrimSpace(stderr.String())
		if out := strings.TrimSpace(stdout.String()); out != "" {
			errMsg = strings.TrimSpace(errMsg + "\n" + out)
		}
		if errMsg == "" {
			errMsg = err.Error()
		}
		return "", output.NewSystemErrorWithCause("git "+firstArg(args)+" failed: "+errMsg, err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

func firstArg(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-C" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}

// Available reports whether a git executable is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// Version returns the output of 'git version'.
func Version(ctx context.Context) (string, error) {
	return RunContext(ctx, "", "version")
}

// Clone clones url into dir.
func Clone(ctx context.Context, url, dir string) error {
	_, err := RunContext(ctx, "", "clone", url, dir)
	return err
}

// Repository is a working copy driven through the git CLI for mutations and
// go-git for read-only inspection.
type Repository struct {
	dir string
}

// Open returns a Repository for dir. It does not validate the directory.
func Open(dir string) *Repository {
	return &Repository{dir: dir}
}

// Dir returns the working copy root.
func (r *Repository) Dir() string {
	return r.dir
}

// IsRepo reports whether dir is inside a git working copy.
func (r *Repository) IsRepo(ctx context.Context) bool {
	_, err := RunContext(ctx, r.dir, "rev-parse", "--git-dir")
	return err == nil
}

func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	return RunContext(ctx, r.dir, args...)
}

// Pull merges remote/branch into the current branch without rebasing.
// A remote branch that does not exist yet is not an error. When the merge
// stops on conflicts it is aborted and an error wrapping ErrConflict is
// returned, leaving the working copy as it was before the pull.
func (r *Repository) Pull(ctx context.Context, remote, branch string) error {
	_, err := r.run(ctx, "pull", "--no-rebase", "--no-edit", remote, branch)
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "couldn't find remote ref"):
		return nil
	case strings.Contains(msg, "CONFLICT") || strings.Contains(msg, "Automatic merge failed"):
		_, _ = r.run(ctx, "merge", "--abort")
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

// Add stages paths, including deletions.
func (r *Repository) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "-A", "--"}, paths...)
	_, err := r.run(ctx, args...)
	return err
}

// Remove unstages and untracks paths. Paths that are not tracked are ignored.
func (r *Repository) Remove(ctx context.Context, paths ...string) error {
	args := append([]string{"rm", "-r", "--cached", "--ignore-unmatch", "--quiet", "--"}, paths...)
	_, err := r.run(ctx, args...)
	return err
}

// Commit commits the index. It reports false without error when nothing is
// staged.
func (r *Repository) Commit(ctx context.Context, message string) (bool, error) {
	staged, err := r.run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return false, err
	}
	if staged == "" {
		return false, nil
	}
	if _, err := r.run(ctx, "commit", "--no-verify", "-m", message); err != nil {
		return false, err
	}
	return true, nil
}

// Push pushes HEAD to remote/branch.
func (r *Repository) Push(ctx context.Context, remote, branch string) error {
	_, err := r.run(ctx, "push", remote, "HEAD:refs/heads/"+branch)
	return err
}

// StashPush stashes tracked and untracked changes. It reports whether
// anything was stashed.
func (r *Repository) StashPush(ctx context.Context, message string) (bool, error) {
	out, err := r.run(ctx, "stash", "push", "--include-untracked", "-m", message)
	if err != nil {
		return false, err
	}
	return !strings.Contains(out, "No local changes to save"), nil
}

// StashPop restores the most recent stash.
func (r *Repository) StashPop(ctx context.Context) error {
	_, err := r.run(ctx, "stash", "pop")
	return err
}

// Unpushed counts local commits not on remote/branch. When the remote branch
// does not exist every local commit counts.
func (r *Repository) Unpushed(ctx context.Context, remote, branch string) (int, error) {
	if _, err := r.run(ctx, "rev-parse", "--verify", "--quiet", "HEAD"); err != nil {
		return 0, nil
	}
	rangeSpec := "HEAD"
	if _, err := r.run(ctx, "rev-parse", "--verify", "--quiet", remote+"/"+branch); err == nil {
		rangeSpec = remote + "/" + branch + "..HEAD"
	}
	out, err := r.run(ctx, "rev-list", "--count", rangeSpec)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", out, err)
	}
	return n, nil
}
