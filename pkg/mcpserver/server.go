// Package mcpserver exposes the tool set as a Model Context Protocol server.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tidwall/gjson"
	"github.com/tmoody1973/tribe-ai/chatmodel"
	"github.com/tmoody1973/tribe-ai/toolset"
)

var logger = xlog.NewPackageLogger("github.com/tmoody1973/tribe-ai/pkg", "mcpserver")

// ServerName is the MCP server name.
const ServerName = "tribe-tools"

var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Server wraps the tool set.
type Server struct {
	set       *toolset.Toolset
	mcpServer *server.MCPServer
}

// New returns a server exposing every tool of set.
func New(set *toolset.Toolset) (*Server, error) {
	s := &Server{
		set:       set,
		mcpServer: server.NewMCPServer(ServerName, toolset.Version),
	}
	for _, t := range set.Tools() {
		raw := emptySchema
		if params := t.Parameters(); params != nil {
			js, err := json.Marshal(params)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to encode parameters of %s", t.Name())
			}
			raw = js
		}
		s.mcpServer.AddTool(mcp.NewToolWithRawSchema(t.Name(), t.Description(), raw), s.Handler(t.Name()))
	}
	return s, nil
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on Stdin/Stdout until the input is closed.
func (s *Server) ServeStdio() error {
	logger.KV(xlog.INFO, "status", "serving", "transport", "stdio", "tools", s.set.Names())
	return server.ServeStdio(s.mcpServer)
}

// Handler returns the MCP handler calling the named tool.
// Tool failures are returned as error results carrying the failure JSON.
// Request _meta fields are the session user context.
func (s *Server) Handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
		}

		if meta := req.Params.Meta; meta != nil && len(meta.AdditionalFields) > 0 {
			uc, err := chatmodel.FromProperties(meta.AdditionalFields)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			ctx = chatmodel.WithUserContext(ctx, uc)
		}

		out, err := s.set.Call(ctx, name, string(args))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res := mcp.NewToolResultText(out)
		res.IsError = gjson.Get(out, "error").Bool()
		return res, nil
	}
}
