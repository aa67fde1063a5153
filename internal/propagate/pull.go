package propagate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gorewood/claudesync/internal/classify"
	"github.com/gorewood/claudesync/internal/fsutil"
)

// PullReport summarizes PullAndPropagate.
type PullReport struct {
	Workspaces []string `json:"workspaces_updated"`
	Skipped    []string `json:"workspaces_skipped,omitempty"`
	Skills     []string `json:"skills_installed"`
	Agents     []string `json:"agents_installed"`
}

// PullAndPropagate pulls the repository once, then installs its content
// locally: canonical shared rules into every workspace, skills and agents
// into the global roots. Item failures are collected; only a failed pull
// stops the flow. Files deleted upstream are not deleted locally.
func (c *Coordinator) PullAndPropagate(ctx context.Context) (PullReport, error) {
	var report PullReport
	if err := c.gw.Pull(ctx); err != nil {
		return report, &StepError{Step: StepPull, Err: err}
	}

	var errs []error
	if err := c.installCanonicalRules(&report); err != nil {
		errs = append(errs, err)
	}
	if err := c.installSkills(&report); err != nil {
		errs = append(errs, err)
	}
	if err := c.installAgents(&report); err != nil {
		errs = append(errs, err)
	}

	c.log.Info("pull propagated",
		"workspaces", len(report.Workspaces),
		"skills", len(report.Skills),
		"agents", len(report.Agents),
		"skipped", len(report.Skipped))
	if err := errors.Join(errs...); err != nil {
		return report, &StepError{Step: StepInstall, Err: err}
	}
	return report, nil
}

func (c *Coordinator) installCanonicalRules(report *PullReport) error {
	canonical, ok, err := c.gw.ReadFile(c.layout.RepoRules)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	list, err := c.workspaces()
	if err != nil {
		return err
	}
	var fan Report
	err = c.fanOut(canonical, list, &fan)
	report.Workspaces = append(report.Workspaces, fan.Updated...)
	report.Skipped = append(report.Skipped, fan.Skipped...)
	return err
}

func (c *Coordinator) installSkills(report *PullReport) error {
	ids, err := c.gw.List(classify.RepoSkillsDir)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		names, err := c.gw.List(classify.RepoSkillsDir + "/" + id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, name := range names {
			if !sameName(name, c.layout.SkillManifest) {
				continue
			}
			// Keep the local manifest's spelling when one exists.
			dst := filepath.Join(c.layout.GlobalSkillsRoot, id, name)
			if local, ok := c.localManifest(id); ok {
				dst = local
			}
			changed, err := fsutil.CopyFile(c.gw.Path(classify.RepoSkillPath(id, name)), dst)
			if err != nil {
				errs = append(errs, fmt.Errorf("skill %s: %w", id, err))
				continue
			}
			if changed {
				report.Skills = append(report.Skills, id)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) installAgents(report *PullReport) error {
	files, err := c.gw.List(classify.RepoAgentsDir)
	if err != nil {
		return err
	}
	var errs []error
	for _, file := range files {
		if !sameName(filepath.Ext(file), ".md") {
			continue
		}
		changed, err := fsutil.CopyFile(c.gw.Path(classify.RepoAgentPath(file)), filepath.Join(c.layout.GlobalAgentsRoot, file))
		if err != nil {
			errs = append(errs, fmt.Errorf("agent %s: %w", file, err))
			continue
		}
		if changed {
			report.Agents = append(report.Agents, agentID(file))
		}
	}
	return errors.Join(errs...)
}
