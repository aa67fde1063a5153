// Package mcp provides a Model Context Protocol server for claudesync.
// It exposes sync operations as MCP tools that any MCP-capable agent can use.
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gorewood/claudesync/internal/engine"
	"github.com/gorewood/claudesync/internal/propagate"
	"github.com/gorewood/claudesync/internal/resource"
)

// Engine is the part of *engine.Engine the tools call.
type Engine interface {
	Status(ctx context.Context) (*engine.Status, error)
	Resources() ([]resource.Resource, error)
	Pull(ctx context.Context) (propagate.PullReport, error)
	Sync(ctx context.Context) (engine.SyncReport, error)
}

// NewServer creates an MCP server with all claudesync tools registered.
func NewServer(version string, eng Engine) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "claudesync",
		Version: version,
	}, nil)
	registerTools(server, eng)
	return server
}

// boolPtr returns a pointer to a bool value.
func boolPtr(b bool) *bool {
	return &b
}

// readOnlyAnnotations returns annotations for read-only tools.
func readOnlyAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		ReadOnlyHint:   true,
		IdempotentHint: true,
		OpenWorldHint:  boolPtr(false),
	}
}

// syncAnnotations returns annotations for tools that talk to the remote.
// They overwrite local copies with repository content but never delete.
func syncAnnotations() *mcp.ToolAnnotations {
	return &mcp.ToolAnnotations{
		DestructiveHint: boolPtr(false),
		IdempotentHint:  true,
		OpenWorldHint:   boolPtr(true),
	}
}

// registerTools adds all claudesync tools to the server.
func registerTools(server *mcp.Server, eng Engine) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Show sync state: registered workspaces, repository clone, last commit, unpushed work and the current lock holder.",
		Annotations: readOnlyAnnotations(),
	}, handleStatus(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resources",
		Description: "List global skills and agents, marking skills that have no manifest and therefore are not synced.",
		Annotations: readOnlyAnnotations(),
	}, handleResources(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "pull",
		Description: "Pull the shared repository once and install its shared rules, skills and agents locally.",
		Annotations: syncAnnotations(),
	}, handlePull(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync",
		Description: "Publish every global skill and agent to the shared repository and regenerate each workspace's CLAUDE.md.",
		Annotations: syncAnnotations(),
	}, handleSync(eng))
}
