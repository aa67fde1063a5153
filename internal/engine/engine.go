// Package engine assembles the sync components for one configuration
// directory: store, lock, repository gateway and propagation coordinator.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gorewood/claudesync/internal/classify"
	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/fsutil"
	"github.com/gorewood/claudesync/internal/git"
	"github.com/gorewood/claudesync/internal/lock"
	"github.com/gorewood/claudesync/internal/output"
	"github.com/gorewood/claudesync/internal/propagate"
	"github.com/gorewood/claudesync/internal/repo"
	"github.com/gorewood/claudesync/internal/resource"
	"github.com/gorewood/claudesync/internal/retry"
)

// Options configure New. Zero values select the defaults.
type Options struct {
	Store  *config.Store
	Home   string // root for the global skills and agents directories
	Logger *log.Logger

	Lock  lock.Options
	Retry *retry.Policy
}

// Engine holds the wired components.
type Engine struct {
	Store       *config.Store
	Layout      classify.Layout
	Lock        *lock.Lock
	Repo        *repo.Gateway
	Coordinator *propagate.Coordinator
	Config      *config.Config // as loaded by New

	git *git.Repository
	log *log.Logger
}

// NewDefault builds an engine for the default configuration directory and
// the user's home directory.
func NewDefault(logger *log.Logger) (*Engine, error) {
	return New(Options{Logger: logger})
}

// New builds an engine. The repository settings are read once; the
// workspace list is re-read on every use.
func New(opts Options) (*Engine, error) {
	logger := output.OrDiscard(opts.Logger)
	store := opts.Store
	if store == nil {
		store = config.DefaultStore()
	}
	home := opts.Home
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil, output.NewSystemErrorWithCause("cannot determine home directory", err)
		}
		home = h
	}

	cfg, err := store.Load()
	if err != nil {
		return nil, output.NewUserError(err.Error()).WithHint("fix or remove " + store.Path())
	}

	layout := classify.DefaultLayout(home)
	lockOpts := opts.Lock
	lockOpts.Logger = logger.WithPrefix("lock")
	l := lock.New(store.LockPath(), lockOpts)

	policy := retry.Default(logger.WithPrefix("retry"))
	if opts.Retry != nil {
		policy = *opts.Retry
	}

	prims := git.Open(cfg.Repo.Path)
	gw := repo.New(cfg.Repo.Path, prims, l, repo.Options{
		Remote:    cfg.Repo.Remote,
		Branch:    cfg.Repo.Branch,
		Forbidden: []string{layout.PrivateRules},
		Retry:     policy,
		Logger:    logger.WithPrefix("repo"),
	})

	coord := propagate.New(gw, layout, store.Workspaces, logger.WithPrefix("propagate"))

	return &Engine{
		Store:       store,
		Layout:      layout,
		Lock:        l,
		Repo:        gw,
		Coordinator: coord,
		Config:      cfg,
		git:         prims,
		log:         logger,
	}, nil
}

// RequireRepo fails with a user error when the repository clone is missing.
func (e *Engine) RequireRepo(ctx context.Context) error {
	if !fsutil.IsDir(e.Repo.Dir()) || !e.git.IsRepo(ctx) {
		return output.NewUserError("no repository clone at " + e.Repo.Dir()).
			WithHint("git clone <your-config-repo> " + e.Repo.Dir())
	}
	return nil
}

// EnsureGlobalRoots creates the global skills and agents directories.
func (e *Engine) EnsureGlobalRoots() error {
	for _, dir := range []string{e.Layout.GlobalSkillsRoot, e.Layout.GlobalAgentsRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// SyncReport summarizes Sync.
type SyncReport struct {
	Skills      propagate.BulkReport `json:"skills"`
	Agents      propagate.BulkReport `json:"agents"`
	Regenerated []string             `json:"regenerated"`
	Missing     []string             `json:"missing_workspaces,omitempty"`
}

// Sync publishes every global skill and agent and regenerates the merged
// output of every registered workspace. Item failures are recorded in the
// report, not returned.
func (e *Engine) Sync(ctx context.Context) (SyncReport, error) {
	var report SyncReport
	if err := e.RequireRepo(ctx); err != nil {
		return report, err
	}
	var err error
	if report.Skills, err = e.Coordinator.SyncAllGlobalSkills(ctx); err != nil {
		return report, err
	}
	if report.Agents, err = e.Coordinator.SyncAllGlobalAgents(ctx); err != nil {
		return report, err
	}
	report.Regenerated, report.Missing, err = e.RegenerateAll()
	return report, err
}

// Pull pulls the repository once and installs its content locally.
func (e *Engine) Pull(ctx context.Context) (propagate.PullReport, error) {
	if err := e.RequireRepo(ctx); err != nil {
		return propagate.PullReport{}, err
	}
	return e.Coordinator.PullAndPropagate(ctx)
}

// RegenerateAll rebuilds the merged output of every registered workspace and
// returns the ones that changed and the ones whose directory is missing.
func (e *Engine) RegenerateAll() (changed, missing []string, err error) {
	list, err := e.Store.Workspaces()
	if err != nil {
		return nil, nil, err
	}
	for _, w := range list {
		if !fsutil.IsDir(w.Path) {
			e.log.Warn("workspace missing", "workspace", w.Path)
			missing = append(missing, w.Path)
			continue
		}
		ok, err := e.Coordinator.Regenerate(w.Path)
		if err != nil {
			return changed, missing, err
		}
		if ok {
			changed = append(changed, w.Path)
		}
	}
	return changed, missing, nil
}

// Resources lists the global skills and agents.
func (e *Engine) Resources() ([]resource.Resource, error) {
	skills, err := resource.ListSkills(e.Layout.GlobalSkillsRoot, e.Layout.SkillManifest)
	if err != nil {
		return nil, err
	}
	agents, err := resource.ListAgents(e.Layout.GlobalAgentsRoot)
	if err != nil {
		return nil, err
	}
	return append(skills, agents...), nil
}

// WorkspaceStatus is one registered workspace.
type WorkspaceStatus struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// LockStatus describes the current lock holder.
type LockStatus struct {
	PID    int           `json:"pid"`
	Host   string        `json:"host"`
	Age    time.Duration `json:"age"`
	Stale  bool          `json:"stale"`
	Reason string        `json:"reason,omitempty"`
}

// Status is a snapshot of the local sync state.
type Status struct {
	ConfigPath string            `json:"config_path"`
	RepoPath   string            `json:"repo_path"`
	Remote     string            `json:"remote"`
	Branch     string            `json:"branch"`
	Cloned     bool              `json:"cloned"`
	LastCommit *git.Commit       `json:"last_commit,omitempty"`
	Pending    bool              `json:"pending"`
	Workspaces []WorkspaceStatus `json:"workspaces"`
	Lock       *LockStatus       `json:"lock,omitempty"`
}

// Status gathers a snapshot. Repository details are omitted when there is
// no clone.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		ConfigPath: e.Store.Path(),
		RepoPath:   e.Config.Repo.Path,
		Remote:     e.Config.Repo.Remote,
		Branch:     e.Config.Repo.Branch,
		Workspaces: []WorkspaceStatus{},
	}

	list, err := e.Store.Workspaces()
	if err != nil {
		return nil, err
	}
	for _, w := range list {
		st.Workspaces = append(st.Workspaces, WorkspaceStatus{Path: w.Path, Name: w.Name, Exists: fsutil.IsDir(w.Path)})
	}

	held, err := e.Lock.Inspect()
	if err != nil {
		return nil, err
	}
	if held != nil {
		st.Lock = &LockStatus{Age: held.Age.Round(time.Second), Stale: held.Stale, Reason: held.Reason}
		if held.Marker != nil {
			st.Lock.PID, st.Lock.Host = held.Marker.PID, held.Marker.Host
		}
	}

	if e.RequireRepo(ctx) != nil {
		return st, nil
	}
	st.Cloned = true
	if st.LastCommit, err = e.Repo.LastCommit(); err != nil {
		return nil, err
	}
	if st.Pending, err = e.Repo.HasPendingState(ctx); err != nil {
		return nil, err
	}
	return st, nil
}
