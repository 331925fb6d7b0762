// Package mcpserver exposes every engine operation as an MCP tool.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/NivraSD/SignalDesk-sub028/internal/engine"
)

// Executor runs named engine operations.
type Executor interface {
	Execute(ctx context.Context, name string, raw json.RawMessage) (any, error)
}

// Server wraps an mcp-go server whose tools call the engine.
type Server struct {
	mcpServer *mcpserver.MCPServer
	engine    Executor
	logger    *zap.Logger
	tools     []string
}

// New creates an MCP server with one tool per operation.
func New(eng Executor, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: eng,
		logger: logger.Named("mcp"),
	}
	s.mcpServer = mcpserver.NewMCPServer(
		"signaldesk",
		version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithLogging(),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Tools lists the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	for _, def := range toolDefs {
		tool := mcplib.NewToolWithRawSchema(def.name, def.description, json.RawMessage(def.schema))
		s.mcpServer.AddTool(tool, s.handler(def.name))
		s.tools = append(s.tools, def.name)
	}
}

// handler adapts an engine operation to an MCP tool call. Engine failures are
// tool errors, not protocol errors.
func (s *Server) handler(op string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		args := request.Params.Arguments
		if args == nil {
			args = map[string]any{}
		}
		raw, err := json.Marshal(args)
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := s.engine.Execute(ctx, op, raw)
		if err != nil {
			s.logger.Debug("tool failed", zap.String("tool", op), zap.Error(err))
			return mcplib.NewToolResultError(fmt.Sprintf("%s: %v", engine.ErrorCode(err), err)), nil
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return mcplib.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
		}
		return mcplib.NewToolResultText(string(out)), nil
	}
}
