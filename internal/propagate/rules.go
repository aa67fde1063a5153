package propagate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gorewood/claudesync/internal/config"
	"github.com/gorewood/claudesync/internal/fsutil"
	"github.com/gorewood/claudesync/internal/merge"
)

// StepError tags a propagation failure with the step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Propagation steps.
const (
	StepMerge   = "merge"
	StepPush    = "push"
	StepFetch   = "fetch canonical"
	StepFanOut  = "fan-out"
	StepPull    = "pull"
	StepInstall = "install"
)

// Report summarizes a fan-out.
type Report struct {
	Source  string
	Pushed  bool
	Updated []string // workspaces whose shared rules or merged output changed
	Skipped []string // workspaces whose directory is missing
}

func (r Report) String() string {
	var parts []string
	if r.Pushed {
		parts = append(parts, "pushed")
	} else {
		parts = append(parts, "repository unchanged")
	}
	parts = append(parts, fmt.Sprintf("%d workspace(s) updated", len(r.Updated)))
	if len(r.Skipped) > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", len(r.Skipped)))
	}
	return strings.Join(parts, ", ")
}

// Regenerate rebuilds a workspace's merged output from its shared and
// private rules. It reports whether the file changed. A workspace with
// neither rules file is left alone.
func (c *Coordinator) Regenerate(workspace string) (bool, error) {
	sharedPath := filepath.Join(workspace, c.layout.SharedRules)
	privatePath := filepath.Join(workspace, c.layout.PrivateRules)
	if !fsutil.Exists(sharedPath) && !fsutil.Exists(privatePath) {
		return false, nil
	}

	shared, err := fsutil.ReadOptional(sharedPath)
	if err != nil {
		return false, err
	}
	private, err := fsutil.ReadOptional(privatePath)
	if err != nil {
		return false, err
	}

	target := filepath.Join(workspace, c.layout.MergedOutput)
	changed, err := fsutil.WriteIfChanged(target, []byte(merge.Merge(shared, private)))
	if err != nil {
		return false, fmt.Errorf("write %s: %w", target, err)
	}
	if changed {
		c.log.Debug("merged output written", "workspace", workspace)
	}
	return changed, nil
}

// PropagateSharedRules publishes a workspace's shared rules and fans the
// canonical copy out to every other registered workspace. Steps run in
// order and a failed step stops the flow.
func (c *Coordinator) PropagateSharedRules(ctx context.Context, workspace string) (Report, error) {
	report := Report{Source: workspace}

	if _, err := c.Regenerate(workspace); err != nil {
		return report, &StepError{Step: StepMerge, Err: err}
	}

	src := filepath.Join(workspace, c.layout.SharedRules)
	res, err := c.gw.Publish(ctx, src, c.layout.RepoRules, "update shared rules from "+filepath.Base(workspace))
	if err != nil {
		return report, &StepError{Step: StepPush, Err: err}
	}
	report.Pushed = !res.NothingToDo()

	canonical, ok, err := c.gw.ReadFile(c.layout.RepoRules)
	if err != nil {
		return report, &StepError{Step: StepFetch, Err: err}
	}
	if !ok {
		return report, &StepError{Step: StepFetch, Err: fmt.Errorf("%s: %w", c.layout.RepoRules, ErrNotFound)}
	}

	list, err := c.workspaces()
	if err != nil {
		return report, &StepError{Step: StepFanOut, Err: err}
	}
	var others []config.Workspace
	for _, w := range list {
		if !c.samePath(w.Path, workspace) {
			others = append(others, w)
		}
	}
	if err := c.fanOut(canonical, others, &report); err != nil {
		return report, &StepError{Step: StepFanOut, Err: err}
	}
	return report, nil
}

// fanOut writes canonical shared rules into each workspace and re-merges.
// A missing workspace is skipped; other failures are collected so one bad
// workspace does not starve the rest.
func (c *Coordinator) fanOut(canonical string, targets []config.Workspace, report *Report) error {
	var errs []error
	for _, w := range targets {
		updated, err := c.installRules(w.Path, canonical)
		switch {
		case errors.Is(err, ErrNotFound):
			c.log.Warn("workspace missing, skipping", "workspace", w.Path)
			report.Skipped = append(report.Skipped, w.Path)
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", w.Path, err))
		case updated:
			report.Updated = append(report.Updated, w.Path)
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) installRules(workspace, canonical string) (bool, error) {
	if !fsutil.IsDir(workspace) {
		return false, fmt.Errorf("workspace %s: %w", workspace, ErrNotFound)
	}
	wrote, err := fsutil.WriteIfChanged(filepath.Join(workspace, c.layout.SharedRules), []byte(canonical))
	if err != nil {
		return false, err
	}
	merged, err := c.Regenerate(workspace)
	if err != nil {
		return false, err
	}
	return wrote || merged, nil
}
