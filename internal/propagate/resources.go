package propagate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gorewood/claudesync/internal/classify"
	"github.com/gorewood/claudesync/internal/resource"
)

// ItemStatus is the per-item result of a sync.
type ItemStatus string

// Item statuses.
const (
	StatusSynced  ItemStatus = "synced"
	StatusSkipped ItemStatus = "skipped"
	StatusFailed  ItemStatus = "failed"
)

// Reasons attached to item results.
const (
	ReasonPublished  = "published"
	ReasonUnchanged  = "unchanged"
	ReasonRemoved    = "removed"
	ReasonNotInRepo  = "not in repository"
	ReasonNoManifest = "no manifest"
)

// ItemResult is the outcome for one skill or agent.
type ItemResult struct {
	Kind   resource.Kind `json:"kind"`
	ID     string        `json:"id"`
	Status ItemStatus    `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// BulkReport collects item results from a batch sync.
type BulkReport struct {
	Items []ItemResult `json:"items"`
}

func (r BulkReport) count(s ItemStatus) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// Synced counts synced items.
func (r BulkReport) Synced() int { return r.count(StatusSynced) }

// Skipped counts skipped items.
func (r BulkReport) Skipped() int { return r.count(StatusSkipped) }

// Failed counts failed items.
func (r BulkReport) Failed() int { return r.count(StatusFailed) }

func (c *Coordinator) localManifest(id string) (string, bool) {
	return resource.FindManifest(filepath.Join(c.layout.GlobalSkillsRoot, id), c.layout.SkillManifest)
}

// SyncSkill publishes the manifest of a global skill.
func (c *Coordinator) SyncSkill(ctx context.Context, id string) (ItemResult, error) {
	item := ItemResult{Kind: resource.Skill, ID: id}
	src, ok := c.localManifest(id)
	if !ok {
		item.Status, item.Reason = StatusSkipped, ReasonNoManifest
		return item, fmt.Errorf("skill %s: %w", id, ErrNotFound)
	}
	rel := classify.RepoSkillPath(id, filepath.Base(src))
	return c.publish(ctx, item, src, rel, "sync skill "+id)
}

// SyncAgent publishes a global agent file, named by its base name.
func (c *Coordinator) SyncAgent(ctx context.Context, file string) (ItemResult, error) {
	return c.syncAgentFile(ctx, filepath.Join(c.layout.GlobalAgentsRoot, file))
}

// syncAgentFile publishes src, which may sit in a subdirectory of the
// global agents root. The repository keeps agents flat.
func (c *Coordinator) syncAgentFile(ctx context.Context, src string) (ItemResult, error) {
	file := filepath.Base(src)
	item := ItemResult{Kind: resource.Agent, ID: agentID(file)}
	return c.publish(ctx, item, src, classify.RepoAgentPath(file), "sync agent "+item.ID)
}

func (c *Coordinator) publish(ctx context.Context, item ItemResult, src, rel, desc string) (ItemResult, error) {
	res, err := c.gw.Publish(ctx, src, rel, desc)
	if err != nil {
		item.Status, item.Reason = StatusFailed, err.Error()
		return item, err
	}
	item.Status, item.Reason = StatusSynced, ReasonPublished
	if res.NothingToDo() {
		item.Reason = ReasonUnchanged
	}
	return item, nil
}

// RemoveSkill removes a skill's manifest from the repository.
func (c *Coordinator) RemoveSkill(ctx context.Context, id string) (ItemResult, error) {
	item := ItemResult{Kind: resource.Skill, ID: id}
	names, err := c.gw.List(classify.RepoSkillsDir + "/" + id)
	if err != nil {
		item.Status, item.Reason = StatusFailed, err.Error()
		return item, err
	}
	for _, name := range names {
		if strings.EqualFold(name, c.layout.SkillManifest) {
			return c.unpublish(ctx, item, classify.RepoSkillPath(id, name), "remove skill "+id)
		}
	}
	item.Status, item.Reason = StatusSkipped, ReasonNotInRepo
	return item, nil
}

// RemoveAgent removes an agent file from the repository.
func (c *Coordinator) RemoveAgent(ctx context.Context, file string) (ItemResult, error) {
	item := ItemResult{Kind: resource.Agent, ID: agentID(file)}
	rel := classify.RepoAgentPath(file)
	if _, ok, err := c.gw.ReadFile(rel); err != nil || !ok {
		if err != nil {
			item.Status, item.Reason = StatusFailed, err.Error()
			return item, err
		}
		item.Status, item.Reason = StatusSkipped, ReasonNotInRepo
		return item, nil
	}
	return c.unpublish(ctx, item, rel, "remove agent "+item.ID)
}

func (c *Coordinator) unpublish(ctx context.Context, item ItemResult, rel, desc string) (ItemResult, error) {
	if _, err := c.gw.Unpublish(ctx, rel, desc); err != nil {
		item.Status, item.Reason = StatusFailed, err.Error()
		return item, err
	}
	item.Status, item.Reason = StatusSynced, ReasonRemoved
	return item, nil
}

// SyncAllGlobalSkills publishes every global skill. A failing or
// manifest-less skill is recorded and the batch continues.
func (c *Coordinator) SyncAllGlobalSkills(ctx context.Context) (BulkReport, error) {
	skills, err := resource.ListSkills(c.layout.GlobalSkillsRoot, c.layout.SkillManifest)
	if err != nil {
		return BulkReport{}, err
	}
	var report BulkReport
	for _, s := range skills {
		if !s.HasManifest() {
			report.Items = append(report.Items, ItemResult{Kind: resource.Skill, ID: s.ID, Status: StatusSkipped, Reason: ReasonNoManifest})
			continue
		}
		item, err := c.SyncSkill(ctx, s.ID)
		if err != nil {
			c.log.Warn("skill sync failed", "skill", s.ID, "error", err)
		}
		report.Items = append(report.Items, item)
	}
	c.logBulk(resource.Skill, report)
	return report, nil
}

// SyncAllGlobalAgents publishes every global agent, continuing past failures.
func (c *Coordinator) SyncAllGlobalAgents(ctx context.Context) (BulkReport, error) {
	agents, err := resource.ListAgents(c.layout.GlobalAgentsRoot)
	if err != nil {
		return BulkReport{}, err
	}
	var report BulkReport
	for _, a := range agents {
		item, err := c.SyncAgent(ctx, filepath.Base(a.Path))
		if err != nil {
			c.log.Warn("agent sync failed", "agent", a.ID, "error", err)
		}
		report.Items = append(report.Items, item)
	}
	c.logBulk(resource.Agent, report)
	return report, nil
}

func (c *Coordinator) logBulk(kind resource.Kind, r BulkReport) {
	c.log.Info("bulk sync finished", "kind", kind, "synced", r.Synced(), "skipped", r.Skipped(), "failed", r.Failed())
}

func agentID(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

func sameName(a, b string) bool {
	return strings.EqualFold(a, b)
}
