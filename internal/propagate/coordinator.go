// Package propagate turns classified file changes into merged output,
// repository updates and fan-out to sibling workspaces.
//
// Each change runs as a linear pipeline: classify, act, report. A failed
// step stops its own flow and is returned to the caller; it never affects
// the next event.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/gorewood/claudesync/internal/classify"
	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/fsutil"
	"github.com/gorewood/claudesync/internal/output"
	"github.com/gorewood/claudesync/internal/repo"
)

// ErrNotFound marks a missing workspace directory or manifest. Batch
// operations log and skip it.
var ErrNotFound = errors.New("not found")

// Gateway is the part of the repository gateway the coordinator needs.
// *repo.Gateway implements it.
type Gateway interface {
	Pull(ctx context.Context) error
	Publish(ctx context.Context, src, rel, description string) (repo.CommitResult, error)
	Unpublish(ctx context.Context, rel, description string) (repo.CommitResult, error)
	ReadFile(rel string) (string, bool, error)
	List(relDir string) ([]string, error)
	Path(rel string) string
}

// WorkspaceSource returns the current workspace list. It is called on every
// use so registry edits are picked up without a restart.
type WorkspaceSource func() ([]config.Workspace, error)

// Coordinator routes changes and runs propagation flows.
type Coordinator struct {
	gw         Gateway
	classifier *classify.Classifier
	layout     classify.Layout
	workspaces WorkspaceSource
	log        *log.Logger
}

// New creates a Coordinator.
func New(gw Gateway, layout classify.Layout, workspaces WorkspaceSource, logger *log.Logger) *Coordinator {
	return &Coordinator{
		gw:         gw,
		classifier: classify.New(layout),
		layout:     layout,
		workspaces: workspaces,
		log:        output.OrDiscard(logger),
	}
}

// Op is what happened to a path.
type Op int

// Operations.
const (
	Changed Op = iota
	Removed
)

func (o Op) String() string {
	if o == Removed {
		return "removed"
	}
	return "changed"
}

// Event is a settled file change.
type Event struct {
	Path string
	Op   Op
}

// Action is what the coordinator did for an event.
type Action string

// Actions.
const (
	ActionNone        Action = "none"
	ActionMerged      Action = "merged"
	ActionPropagated  Action = "propagated"
	ActionPublished   Action = "published"
	ActionUnpublished Action = "unpublished"
	ActionLocalOnly   Action = "local-only"
)

// Outcome reports one handled event.
type Outcome struct {
	Path     string
	Category classify.Category
	Action   Action
	Detail   string
}

// Handle classifies ev and runs the matching flow.
func (c *Coordinator) Handle(ctx context.Context, ev Event) (Outcome, error) {
	res := c.classifier.Classify(ev.Path)
	out := Outcome{Path: res.Path, Category: res.Category, Action: ActionNone}

	var err error
	switch res.Category {
	case classify.SharedRule, classify.PrivateRule:
		out, err = c.handleRule(ctx, ev, res, out)
	case classify.GlobalSkill:
		out, err = c.handleSkill(ctx, ev, res.ID, out)
	case classify.GlobalAgent:
		out, err = c.handleAgent(ctx, ev, res.Path, out)
	case classify.LocalSkill, classify.LocalAgent:
		out.Action = ActionLocalOnly
		out.Detail = "workspace-local resource, not synced"
	case classify.Unrelated:
		// A whole skill directory removed under the global root arrives as
		// a directory event.
		if ev.Op == Removed && c.isGlobalSkillDir(res.Path) {
			out.Category = classify.GlobalSkill
			out, err = c.handleSkill(ctx, ev, filepath.Base(res.Path), out)
		}
	}

	c.report(ev, out, err)
	return out, err
}

func (c *Coordinator) handleRule(ctx context.Context, ev Event, res classify.Result, out Outcome) (Outcome, error) {
	registered, err := c.isRegistered(res.Workspace)
	if err != nil {
		return out, err
	}
	if !registered {
		out.Detail = "workspace not registered"
		return out, nil
	}

	// Private rules, and any removal, stay local.
	if res.Category == classify.PrivateRule || ev.Op == Removed {
		changed, err := c.Regenerate(res.Workspace)
		if err != nil {
			return out, err
		}
		out.Action = ActionMerged
		out.Detail = changedDetail(changed)
		return out, nil
	}

	report, err := c.PropagateSharedRules(ctx, res.Workspace)
	if err != nil {
		return out, err
	}
	out.Action = ActionPropagated
	out.Detail = report.String()
	return out, nil
}

func (c *Coordinator) handleSkill(ctx context.Context, ev Event, id string, out Outcome) (Outcome, error) {
	if ev.Op == Removed {
		// An editor's save-by-rename can surface as a removal of a file
		// that is back on disk by the time the debounce settles.
		if _, ok := c.localManifest(id); !ok {
			item, err := c.RemoveSkill(ctx, id)
			return removalOutcome(out, item), err
		}
	}
	item, err := c.SyncSkill(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return syncOutcome(out, item), nil
	}
	return syncOutcome(out, item), err
}

func (c *Coordinator) handleAgent(ctx context.Context, ev Event, src string, out Outcome) (Outcome, error) {
	if ev.Op == Removed && !fsutil.Exists(src) {
		item, err := c.RemoveAgent(ctx, filepath.Base(src))
		return removalOutcome(out, item), err
	}
	item, err := c.syncAgentFile(ctx, src)
	return syncOutcome(out, item), err
}

func syncOutcome(out Outcome, item ItemResult) Outcome {
	if item.Status == StatusSynced && item.Reason != ReasonUnchanged {
		out.Action = ActionPublished
	}
	out.Detail = item.Reason
	return out
}

func removalOutcome(out Outcome, item ItemResult) Outcome {
	if item.Status == StatusSynced && item.Reason == ReasonRemoved {
		out.Action = ActionUnpublished
	}
	out.Detail = item.Reason
	return out
}

func (c *Coordinator) report(ev Event, out Outcome, err error) {
	if out.Category == classify.Unrelated && err == nil {
		return
	}
	kv := []any{"path", out.Path, "category", out.Category, "op", ev.Op, "action", out.Action}
	if out.Detail != "" {
		kv = append(kv, "detail", out.Detail)
	}
	if err != nil {
		c.log.Error("change handling failed", append(kv, "error", err)...)
		return
	}
	c.log.Info("change handled", kv...)
}

func (c *Coordinator) isGlobalSkillDir(path string) bool {
	return classify.SamePath(filepath.Dir(path), c.layout.GlobalSkillsRoot, c.layout.FoldCase)
}

// isRegistered reports whether dir is a registered workspace.
func (c *Coordinator) isRegistered(dir string) (bool, error) {
	list, err := c.workspaces()
	if err != nil {
		return false, fmt.Errorf("loading workspaces: %w", err)
	}
	for _, w := range list {
		if c.samePath(w.Path, dir) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Coordinator) samePath(a, b string) bool {
	return classify.SamePath(a, b, c.layout.FoldCase)
}

func changedDetail(changed bool) string {
	if changed {
		return "merged output rewritten"
	}
	return "merged output unchanged"
}
