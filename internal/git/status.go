package git

import (
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
)

// FileChange is one entry of the working copy status.
type FileChange struct {
	Path     string
	Staging  byte // git porcelain code for the index
	Worktree byte // git porcelain code for the working tree
}

// Status lists changed and untracked files, sorted by path. A clean working
// copy yields an empty slice.
func (r *Repository) Status() ([]FileChange, error) {
	repo, err := gogit.PlainOpenWithOptions(r.dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", r.dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}

	changes := make([]FileChange, 0, len(st))
	for path, fs := range st {
		if fs.Staging == gogit.Unmodified && fs.Worktree == gogit.Unmodified {
			continue
		}
		changes = append(changes, FileChange{Path: path, Staging: byte(fs.Staging), Worktree: byte(fs.Worktree)})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}
