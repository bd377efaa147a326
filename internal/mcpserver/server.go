// Package mcpserver exposes the shared store operations as MCP tools over stdio,
// so an agent runner can call them as romp_<operation>.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/dyluth/romp/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates an MCP server with one tool per operation in ops. An empty ops
// registers every operation.
func New(invoker store.Invoker, agentID string, ops []store.Operation) (*server.MCPServer, error) {
	if invoker == nil {
		return nil, fmt.Errorf("store invoker cannot be nil")
	}
	if len(ops) == 0 {
		ops = store.Operations
	}

	s := server.NewMCPServer(
		store.ServerName,
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions(agentID)),
	)

	for _, op := range ops {
		t, err := newTool(invoker, op)
		if err != nil {
			return nil, err
		}
		s.AddTool(t.Definition(), t.Handle)
	}

	log.Printf("[INFO] MCP store server ready: agent=%s tools=%d", agentID, len(ops))
	return s, nil
}

// Serve runs s on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}

// tool adapts one store operation to an MCP tool.
type tool struct {
	invoker store.Invoker
	op      store.Operation
}

func newTool(invoker store.Invoker, op store.Operation) (*tool, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	return &tool{invoker: invoker, op: op}, nil
}

// Definition returns the MCP tool schema.
func (t *tool) Definition() mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(t.op.Description())}, parameters[t.op]...)
	return mcp.NewTool(t.op.ToolName(), opts...)
}

// Handle forwards the call's arguments to the store. Store errors are returned
// as tool errors so the agent sees them and can correct its call.
func (t *tool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	out, err := t.invoker.Invoke(ctx, t.op, args)
	if err != nil {
		log.Printf("[WARN] Store operation failed: op=%s error=%v", t.op, err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	log.Printf("[DEBUG] Store operation served: op=%s bytes=%d", t.op, len(out))
	return mcp.NewToolResultText(out), nil
}

func instructions(agentID string) string {
	return fmt.Sprintf(`These tools read and write the shared review blackboard.
You are agent %q; every record you write is attributed to you.
Assemble context before you start, post what you find, record decisions with the
alternatives you considered, and hand off or delegate what remains.`, agentID)
}
