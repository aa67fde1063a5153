package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gorewood/claudesync/internal/propagate"
)

// --- Status tool ---

// StatusInput is the input for the status tool (no parameters needed).
type StatusInput struct{}

// WorkspaceInfo is a registered workspace.
type WorkspaceInfo struct {
	Path   string `json:"path"   jsonschema:"absolute workspace directory"`
	Name   string `json:"name"   jsonschema:"display name"`
	Exists bool   `json:"exists" jsonschema:"whether the directory is present"`
}

// CommitInfo is a simplified commit for output.
type CommitInfo struct {
	Short   string `json:"short"   jsonschema:"short SHA (7 chars)"`
	Subject string `json:"subject" jsonschema:"commit subject line"`
	Date    string `json:"date"    jsonschema:"commit timestamp"`
}

// LockInfo describes the lock holder.
type LockInfo struct {
	PID   int    `json:"pid"   jsonschema:"holder process id"`
	Host  string `json:"host"  jsonschema:"holder host name"`
	Age   string `json:"age"   jsonschema:"how long the lock has been held"`
	Stale bool   `json:"stale" jsonschema:"whether the next waiter will reclaim it"`
}

// StatusOutput is the output for the status tool.
type StatusOutput struct {
	RepoPath   string          `json:"repo_path"             jsonschema:"repository clone directory"`
	Cloned     bool            `json:"cloned"                jsonschema:"whether the clone exists"`
	Pending    bool            `json:"pending"               jsonschema:"uncommitted or unpushed repository changes"`
	LastCommit *CommitInfo     `json:"last_commit,omitempty" jsonschema:"newest repository commit"`
	Workspaces []WorkspaceInfo `json:"workspaces"            jsonschema:"registered workspaces"`
	Lock       *LockInfo       `json:"lock,omitempty"        jsonschema:"current lock holder, if any"`
}

func handleStatus(eng Engine) mcp.ToolHandlerFor[StatusInput, StatusOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
		st, err := eng.Status(ctx)
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("getting status: %w", err)
		}

		out := StatusOutput{
			RepoPath:   st.RepoPath,
			Cloned:     st.Cloned,
			Pending:    st.Pending,
			Workspaces: make([]WorkspaceInfo, 0, len(st.Workspaces)),
		}
		for _, w := range st.Workspaces {
			out.Workspaces = append(out.Workspaces, WorkspaceInfo(w))
		}
		if c := st.LastCommit; c != nil {
			out.LastCommit = &CommitInfo{Short: c.Short, Subject: c.Subject, Date: c.Date.Format(time.RFC3339)}
		}
		if l := st.Lock; l != nil {
			out.Lock = &LockInfo{PID: l.PID, Host: l.Host, Age: l.Age.String(), Stale: l.Stale}
		}
		return nil, out, nil
	}
}

// --- Resources tool ---

// ResourcesInput is the input for the resources tool.
type ResourcesInput struct {
	Kind string `json:"kind,omitempty" jsonschema:"filter by kind: skill or agent"`
}

// ResourceInfo is one skill or agent.
type ResourceInfo struct {
	Kind        string `json:"kind"                  jsonschema:"skill or agent"`
	ID          string `json:"id"                    jsonschema:"skill directory or agent file name without extension"`
	Name        string `json:"name"                  jsonschema:"frontmatter name, or the id when unset"`
	Description string `json:"description,omitempty" jsonschema:"frontmatter description"`
	Model       string `json:"model,omitempty"       jsonschema:"frontmatter model"`
	Path        string `json:"path,omitempty"        jsonschema:"manifest or agent file"`
	Syncable    bool   `json:"syncable"              jsonschema:"false when a skill has no manifest"`
	Problem     string `json:"problem,omitempty"     jsonschema:"frontmatter parse error"`
}

// ResourcesOutput is the output for the resources tool.
type ResourcesOutput struct {
	Count     int            `json:"count"     jsonschema:"number of resources returned"`
	Resources []ResourceInfo `json:"resources" jsonschema:"global skills and agents"`
}

func handleResources(eng Engine) mcp.ToolHandlerFor[ResourcesInput, ResourcesOutput] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ResourcesInput) (*mcp.CallToolResult, ResourcesOutput, error) {
		kind, err := parseKind(input.Kind)
		if err != nil {
			return nil, ResourcesOutput{}, err
		}
		list, err := eng.Resources()
		if err != nil {
			return nil, ResourcesOutput{}, fmt.Errorf("listing resources: %w", err)
		}
		out := ResourcesOutput{Resources: make([]ResourceInfo, 0, len(list))}
		for _, r := range list {
			if kind != "" && r.Kind != kind {
				continue
			}
			out.Resources = append(out.Resources, ResourceInfo{
				Kind:        string(r.Kind),
				ID:          r.ID,
				Name:        r.Name,
				Description: r.Description,
				Model:       r.Model,
				Path:        r.Path,
				Syncable:    r.HasManifest(),
				Problem:     r.Problem,
			})
		}
		out.Count = len(out.Resources)
		return nil, out, nil
	}
}

// --- Pull tool ---

// PullInput is the input for the pull tool (no parameters needed).
type PullInput struct{}

// PullOutput is the output for the pull tool.
type PullOutput struct {
	Workspaces []string `json:"workspaces_updated"           jsonschema:"workspaces whose rules changed"`
	Skipped    []string `json:"workspaces_skipped,omitempty" jsonschema:"registered workspaces that are missing"`
	Skills     []string `json:"skills_installed"             jsonschema:"skills written to the global root"`
	Agents     []string `json:"agents_installed"             jsonschema:"agents written to the global root"`
}

func handlePull(eng Engine) mcp.ToolHandlerFor[PullInput, PullOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ PullInput) (*mcp.CallToolResult, PullOutput, error) {
		report, err := eng.Pull(ctx)
		if err != nil {
			return nil, PullOutput{}, withHint("pull failed", err)
		}
		return nil, PullOutput{
			Workspaces: nonNil(report.Workspaces),
			Skipped:    report.Skipped,
			Skills:     nonNil(report.Skills),
			Agents:     nonNil(report.Agents),
		}, nil
	}
}

// --- Sync tool ---

// SyncInput is the input for the sync tool (no parameters needed).
type SyncInput struct{}

// SyncOutput is the output for the sync tool.
type SyncOutput struct {
	Synced      int                    `json:"synced"      jsonschema:"items published or already current"`
	Skipped     int                    `json:"skipped"     jsonschema:"items without a manifest"`
	Failed      int                    `json:"failed"      jsonschema:"items that could not be published"`
	Items       []propagate.ItemResult `json:"items"       jsonschema:"per-item outcome"`
	Regenerated []string               `json:"regenerated" jsonschema:"workspaces whose CLAUDE.md changed"`
}

func handleSync(eng Engine) mcp.ToolHandlerFor[SyncInput, SyncOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ SyncInput) (*mcp.CallToolResult, SyncOutput, error) {
		report, err := eng.Sync(ctx)
		if err != nil {
			return nil, SyncOutput{}, withHint("sync failed", err)
		}
		items := append(append([]propagate.ItemResult{}, report.Skills.Items...), report.Agents.Items...)
		all := propagate.BulkReport{Items: items}
		return nil, SyncOutput{
			Synced:      all.Synced(),
			Skipped:     all.Skipped(),
			Failed:      all.Failed(),
			Items:       items,
			Regenerated: nonNil(report.Regenerated),
		}, nil
	}
}
