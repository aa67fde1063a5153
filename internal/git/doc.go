// Package git provides the repository primitives the sync engine orchestrates.
//
// Mutations (pull, add, rm, commit, push, stash) shell out to the git
// executable so they honor the user's credentials helpers, SSH config and
// hooks. Read-only inspection (status, log) goes through go-git and needs no
// subprocess.
//
//	repo := git.Open(dir)
//	if err := repo.Pull(ctx, "origin", "main"); errors.Is(err, git.ErrConflict) {
//	    // manual resolution required
//	}
//	committed, err := repo.Commit(ctx, "sync: update CLAUDE.md")
//
// # Error Handling
//
// Failures from the git executable are *output.ExitError values with
// ExitSystemError and git's own output in the message, so transient network
// failures can be recognized by the retry package.
package git
