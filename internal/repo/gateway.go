// Package repo is the gateway to the shared repository clone. Every mutation
// runs under the repository lock, and network steps retry transient failures.
package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/gorewood/claudesync/internal/classify"
	"github.com/gorewood/claudesync/internal/fsutil"
	"github.com/gorewood/claudesync/internal/git"
	"github.com/gorewood/claudesync/internal/output"
	"github.com/gorewood/claudesync/internal/retry"
)

// Primitives are the repository operations the gateway orchestrates.
// *git.Repository implements it.
type Primitives interface {
	Pull(ctx context.Context, remote, branch string) error
	Add(ctx context.Context, paths ...string) error
	Remove(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string) (bool, error)
	Push(ctx context.Context, remote, branch string) error
	StashPush(ctx context.Context, message string) (bool, error)
	StashPop(ctx context.Context) error
	Status() ([]git.FileChange, error)
	LastCommit() (*git.Commit, error)
	Unpushed(ctx context.Context, remote, branch string) (int, error)
}

// Locker serializes mutations. *lock.Lock implements it.
type Locker interface {
	WithLock(ctx context.Context, fn func(ctx context.Context) error) error
}

// Options configure a Gateway.
type Options struct {
	Remote string // default "origin"
	Branch string // default "main"

	// Forbidden lists file names that must never reach the repository.
	// The private rules file is always included.
	Forbidden []string

	Retry  retry.Policy
	Logger *log.Logger
}

// Gateway wraps one repository clone.
type Gateway struct {
	dir  string
	git  Primitives
	lock Locker
	opts Options
	log  *log.Logger
}

// New creates a Gateway for the clone at dir.
func New(dir string, prims Primitives, locker Locker, opts Options) *Gateway {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if !slices.ContainsFunc(opts.Forbidden, func(name string) bool {
		return strings.EqualFold(name, classify.PrivateRulesFile)
	}) {
		opts.Forbidden = append(slices.Clone(opts.Forbidden), classify.PrivateRulesFile)
	}
	logger := output.OrDiscard(opts.Logger)
	if opts.Retry.Logger == nil {
		opts.Retry.Logger = logger
	}
	return &Gateway{dir: dir, git: prims, lock: locker, opts: opts, log: logger}
}

// Dir returns the clone root.
func (g *Gateway) Dir() string {
	return g.dir
}

// Path returns the absolute path of a slash-separated repository path.
func (g *Gateway) Path(rel string) string {
	return filepath.Join(g.dir, filepath.FromSlash(rel))
}

// CommitResult reports what CommitAndPush did.
type CommitResult struct {
	Committed bool
	Pushed    bool
}

// NothingToDo reports an empty diff with nothing left to push.
func (r CommitResult) NothingToDo() bool {
	return !r.Committed && !r.Pushed
}

// Pull brings the clone up to date. Dirty local state is stashed first and
// re-applied afterwards whatever the pull outcome.
func (g *Gateway) Pull(ctx context.Context) error {
	return g.lock.WithLock(ctx, g.pull)
}

func (g *Gateway) pull(ctx context.Context) (err error) {
	dirty, err := g.dirty()
	if err != nil {
		return err
	}

	if dirty {
		stashed, serr := g.git.StashPush(ctx, "claudesync: auto-stash before pull")
		if serr != nil {
			return fmt.Errorf("stash local changes: %w", serr)
		}
		if stashed {
			g.log.Debug("stashed local changes before pull", "repo", g.dir)
			defer func() {
				if perr := g.git.StashPop(ctx); perr != nil {
					err = errors.Join(err, stashRecovery(g.dir, perr))
				}
			}()
		}
	}

	err = g.opts.Retry.Do(ctx, "pull", func(ctx context.Context) error {
		return g.git.Pull(ctx, g.opts.Remote, g.opts.Branch)
	})
	if errors.Is(err, git.ErrConflict) {
		return mergeConflict(g.dir, g.opts.Remote, g.opts.Branch, err)
	}
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	return nil
}

// CommitAndPush commits whatever is staged and pushes. An empty diff with
// nothing unpushed is not an error: the result reports NothingToDo.
func (g *Gateway) CommitAndPush(ctx context.Context, description string) (CommitResult, error) {
	var res CommitResult
	err := g.lock.WithLock(ctx, func(ctx context.Context) error {
		var err error
		res, err = g.commitAndPush(ctx, description)
		return err
	})
	return res, err
}

func (g *Gateway) commitAndPush(ctx context.Context, description string) (CommitResult, error) {
	var res CommitResult
	committed, err := g.git.Commit(ctx, commitMessage(description))
	if err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	res.Committed = committed

	if !committed {
		ahead, err := g.git.Unpushed(ctx, g.opts.Remote, g.opts.Branch)
		if err != nil {
			return res, fmt.Errorf("count unpushed commits: %w", err)
		}
		if ahead == 0 {
			g.log.Debug("nothing to commit", "description", description)
			return res, nil
		}
	}

	var last error
	err = g.opts.Retry.Do(ctx, "push", func(ctx context.Context) error {
		if retry.IsRejected(last) {
			if perr := g.git.Pull(ctx, g.opts.Remote, g.opts.Branch); perr != nil {
				if errors.Is(perr, git.ErrConflict) {
					return mergeConflict(g.dir, g.opts.Remote, g.opts.Branch, perr)
				}
				last = perr
				return perr
			}
		}
		last = g.git.Push(ctx, g.opts.Remote, g.opts.Branch)
		return last
	})
	if err != nil {
		return res, fmt.Errorf("push: %w", err)
	}
	res.Pushed = true
	g.log.Info("pushed", "description", description)
	return res, nil
}

// StageOrRemove stages a repository path, or stages its removal when the
// file no longer exists.
func (g *Gateway) StageOrRemove(ctx context.Context, rel string) error {
	if err := g.checkAllowed(rel); err != nil {
		return err
	}
	return g.lock.WithLock(ctx, func(ctx context.Context) error {
		return g.stageOrRemove(ctx, rel)
	})
}

func (g *Gateway) stageOrRemove(ctx context.Context, rel string) error {
	if fsutil.Exists(g.Path(rel)) {
		return g.git.Add(ctx, rel)
	}
	return g.git.Remove(ctx, rel)
}

// Publish copies src into the repository at rel, then commits and pushes it.
func (g *Gateway) Publish(ctx context.Context, src, rel, description string) (CommitResult, error) {
	if err := g.checkAllowed(src); err != nil {
		return CommitResult{}, err
	}
	if err := g.checkAllowed(rel); err != nil {
		return CommitResult{}, err
	}

	var res CommitResult
	err := g.lock.WithLock(ctx, func(ctx context.Context) error {
		if _, err := fsutil.CopyFile(src, g.Path(rel)); err != nil {
			return err
		}
		if err := g.stageOrRemove(ctx, rel); err != nil {
			return fmt.Errorf("stage %s: %w", rel, err)
		}
		var err error
		res, err = g.commitAndPush(ctx, description)
		return err
	})
	return res, err
}

// Unpublish removes rel from the repository, prunes directories left empty,
// then commits and pushes the removal.
func (g *Gateway) Unpublish(ctx context.Context, rel, description string) (CommitResult, error) {
	if err := g.checkAllowed(rel); err != nil {
		return CommitResult{}, err
	}

	var res CommitResult
	err := g.lock.WithLock(ctx, func(ctx context.Context) error {
		path := g.Path(rel)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", rel, err)
		}
		if err := fsutil.RemoveEmptyDirs(filepath.Dir(path), g.dir); err != nil {
			return err
		}
		if err := g.git.Remove(ctx, rel); err != nil {
			return fmt.Errorf("stage removal of %s: %w", rel, err)
		}
		var err error
		res, err = g.commitAndPush(ctx, description)
		return err
	})
	return res, err
}

// Status lists uncommitted changes in the clone.
func (g *Gateway) Status() ([]git.FileChange, error) {
	return g.git.Status()
}

// LastCommit returns the newest commit, or nil for an empty repository.
func (g *Gateway) LastCommit() (*git.Commit, error) {
	return g.git.LastCommit()
}

// HasPendingState reports uncommitted changes or commits not yet pushed.
func (g *Gateway) HasPendingState(ctx context.Context) (bool, error) {
	dirty, err := g.dirty()
	if err != nil || dirty {
		return dirty, err
	}
	ahead, err := g.git.Unpushed(ctx, g.opts.Remote, g.opts.Branch)
	if err != nil {
		return false, err
	}
	return ahead > 0, nil
}

// ReadFile returns the content of a repository path and whether it exists.
func (g *Gateway) ReadFile(rel string) (string, bool, error) {
	path := g.Path(rel)
	if !fsutil.Exists(path) {
		return "", false, nil
	}
	content, err := fsutil.ReadOptional(path)
	if err != nil {
		return "", false, err
	}
	return content, true, nil
}

// List returns the sorted entry names of a repository directory. A missing
// directory yields nil.
func (g *Gateway) List(relDir string) ([]string, error) {
	entries, err := os.ReadDir(g.Path(relDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", relDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (g *Gateway) dirty() (bool, error) {
	changes, err := g.git.Status()
	if err != nil {
		return false, fmt.Errorf("read repository status: %w", err)
	}
	return len(changes) > 0, nil
}

// checkAllowed fails when path names a forbidden file.
func (g *Gateway) checkAllowed(path string) error {
	base := filepath.Base(filepath.FromSlash(path))
	for _, name := range g.opts.Forbidden {
		if strings.EqualFold(base, name) {
			g.log.Error("refusing to send private rules to repository", "path", path)
			return fmt.Errorf("%w: %s", ErrPrivateRules, path)
		}
	}
	return nil
}

func commitMessage(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		description = "update shared configuration"
	}
	return "claudesync: " + description
}
