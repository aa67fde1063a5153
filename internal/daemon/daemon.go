// Package daemon runs the long-lived sync loop: one pull at start-up, a
// sweep of existing global resources, then change detection until the
// context is cancelled.
package daemon

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gorewood/claudesync/internal/classify"
	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/output"
	"github.com/gorewood/claudesync/internal/propagate"
	"github.com/gorewood/claudesync/internal/watch"
)

// Options configure a Daemon.
type Options struct {
	Backend  watch.Backend // nil selects the notify backend
	Debounce time.Duration // zero uses the configured value
	Logger   *log.Logger

	// SkipPull disables the start-up pull.
	SkipPull bool
}

// Daemon wires an engine to a change detector.
type Daemon struct {
	eng        *engine.Engine
	classifier *classify.Classifier
	detector   *watch.Detector
	log        *log.Logger
	opts       Options
	started    chan struct{}
}

// New creates a Daemon.
func New(eng *engine.Engine, opts Options) *Daemon {
	d := &Daemon{
		eng:        eng,
		classifier: classify.New(eng.Layout),
		log:        output.OrDiscard(opts.Logger),
		opts:       opts,
		started:    make(chan struct{}),
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = eng.Config.DebounceDuration()
	}
	d.detector = watch.New(d.handle, watch.Options{
		Debounce:       debounce,
		Backend:        opts.Backend,
		Logger:         d.log.WithPrefix("watch"),
		ConfigPath:     eng.Store.Path(),
		OnConfigChange: d.reload,
		Filter:         d.relevant,
	})
	return d
}

// Started is closed once watching has begun.
func (d *Daemon) Started() <-chan struct{} {
	return d.started
}

// Run blocks until ctx is cancelled. Start-up failures other than a broken
// watch setup are logged and the daemon keeps going on local state.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info("daemon starting", "config", d.eng.Store.Path(), "repo", d.eng.Repo.Dir())

	if err := d.eng.EnsureGlobalRoots(); err != nil {
		return err
	}
	if !d.opts.SkipPull {
		d.startupPull(ctx)
	}
	d.sweep(ctx)

	if err := d.detector.SetPaths(d.targets()); err != nil {
		d.log.Warn("some paths could not be watched", "error", err)
	}
	d.log.Info("watching", "paths", len(d.detector.Paths()))
	close(d.started)

	err := d.detector.Run(ctx)
	d.log.Info("daemon stopped")
	return err
}

func (d *Daemon) startupPull(ctx context.Context) {
	if err := d.eng.RequireRepo(ctx); err != nil {
		d.log.Warn("no repository clone, continuing with local files", "error", err)
		return
	}
	report, err := d.eng.Coordinator.PullAndPropagate(ctx)
	if err != nil {
		d.log.Warn("start-up pull failed, continuing with local files", "error", err, "hint", output.GetHint(err))
		return
	}
	d.log.Info("start-up pull done", "workspaces", len(report.Workspaces), "skills", len(report.Skills), "agents", len(report.Agents))
}

// sweep converges what is already on disk before the first event.
func (d *Daemon) sweep(ctx context.Context) {
	if d.eng.RequireRepo(ctx) == nil {
		if _, err := d.eng.Coordinator.SyncAllGlobalSkills(ctx); err != nil {
			d.log.Warn("skill sweep failed", "error", err)
		}
		if _, err := d.eng.Coordinator.SyncAllGlobalAgents(ctx); err != nil {
			d.log.Warn("agent sweep failed", "error", err)
		}
	}
	if _, _, err := d.eng.RegenerateAll(); err != nil {
		d.log.Warn("regenerating merged output failed", "error", err)
	}
}

// targets derives the watch set from the current workspace list.
func (d *Daemon) targets() []watch.Target {
	targets := []watch.Target{
		{Path: d.eng.Layout.GlobalSkillsRoot, Recursive: true},
		{Path: d.eng.Layout.GlobalAgentsRoot, Recursive: true},
	}
	list, err := d.eng.Store.Workspaces()
	if err != nil {
		d.log.Error("loading workspaces", "error", err)
		return targets
	}
	for _, w := range list {
		targets = append(targets,
			watch.Target{Path: w.Path},
			watch.Target{Path: classify.WorkspaceSkillsDir(w.Path), Recursive: true},
			watch.Target{Path: classify.WorkspaceAgentsDir(w.Path), Recursive: true},
		)
	}
	return targets
}

func (d *Daemon) reload(context.Context) {
	d.log.Info("configuration changed, rebuilding watch set")
	if err := d.detector.SetPaths(d.targets()); err != nil {
		d.log.Warn("some paths could not be watched", "error", err)
	}
	if _, _, err := d.eng.RegenerateAll(); err != nil {
		d.log.Warn("regenerating merged output failed", "error", err)
	}
}

// relevant drops events the coordinator would ignore anyway.
func (d *Daemon) relevant(path string) bool {
	if d.classifier.Classify(path).Category != classify.Unrelated {
		return true
	}
	return classify.SamePath(filepath.Dir(path), d.eng.Layout.GlobalSkillsRoot, d.eng.Layout.FoldCase)
}

func (d *Daemon) handle(ctx context.Context, ev watch.Event) {
	op := propagate.Changed
	if ev.Op == watch.Removed {
		op = propagate.Removed
	}
	// Errors are logged by the coordinator; the next event runs normally.
	_, _ = d.eng.Coordinator.Handle(ctx, propagate.Event{Path: ev.Path, Op: op})
}
