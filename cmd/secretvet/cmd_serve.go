package main

import (
	"context"

	"github.com/spf13/cobra"

	mcpserver "secretvet/internal/mcp"

	"secretvet/internal/logging"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var serveFlags struct {
	adapter string
	stubDir string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing start_validation,
get_progress and get_outcome tools, so an MCP host can drive validations
and poll them without blocking.

The server watches the parent process and self-terminates when the host
disconnects, to avoid zombie servers.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.adapter, "adapter", "stub", "Session adapter (stub)")
	f.StringVar(&serveFlags.stubDir, "stub-dir", ".secretvet/stub", "Directory of canned responses for the stub adapter")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	factory, err := buildFactory(serveFlags.adapter, serveFlags.stubDir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := mcpserver.NewServer(cfg, factory, version)
	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting secretvet MCP server over stdio")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
