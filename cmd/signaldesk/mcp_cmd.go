package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve engine operations as MCP tools over stdio",
	Long: `Runs a Model Context Protocol server on stdin/stdout. Every engine operation is
exposed as a tool. The server uses the configured database directly, so it
does not need the daemon. Logs go to stderr.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close(cmd.Context())

	srv := mcpserver.New(rt.engine, logger, version)
	logger.Info("serving MCP over stdio", zap.Int("tools", len(srv.Tools())))
	return srv.ServeStdio()
}
