package main

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/gorewood/claudesync/internal/engine"
	claudesyncmcp "github.com/gorewood/claudesync/internal/mcp"
)

// newServeCmd creates the serve command for running as an MCP server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run as MCP server (stdio transport)",
		Long: `Run claudesync as a Model Context Protocol (MCP) server over stdio.

Configure in your agent's MCP settings:
  {
    "mcpServers": {
      "claudesync": {
        "command": "claudesync",
        "args": ["serve"]
      }
    }
  }

Available tools: status, resources, pull, sync`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := engine.NewDefault(nil)
			if err != nil {
				return err
			}
			server := claudesyncmcp.NewServer(buildVersion(), eng)
			return server.Run(cmd.Context(), &mcp.StdioTransport{})
		},
	}
}
