// Package mcpserver exposes the query surface over the Model Context
// Protocol so coding agents can inspect plans and tasks from inside their
// sessions. The server is read-only: every tool delegates to internal/query
// and never mutates the store.
//
// Tool failures are returned inline as {"error": "..."} JSON results rather
// than protocol faults, so agents can read and recover from them.
package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/taskctl/taskctl/internal/query"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with every taskctl tool registered.
func New(svc *query.Service) *server.MCPServer {
	s := server.NewMCPServer(
		"taskctl",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	getPlan := NewGetPlanTool(svc)
	s.AddTool(getPlan.Definition(), getPlan.Handle)

	listPlans := NewListPlansTool(svc)
	s.AddTool(listPlans.Definition(), listPlans.Handle)

	getTask := NewGetTaskTool(svc)
	s.AddTool(getTask.Definition(), getTask.Handle)

	listTasks := NewListTasksTool(svc)
	s.AddTool(listTasks.Definition(), listTasks.Handle)

	currentTask := NewCurrentTaskTool(svc)
	s.AddTool(currentTask.Definition(), currentTask.Handle)

	return s
}

// Serve runs the server over stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult wraps an error as an inline {"error": "..."} result.
func errorResult(err error) *mcp.CallToolResult {
	data, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": %q}`, err.Error()))
	}
	return mcp.NewToolResultText(string(data))
}

const serverInstructions = `taskctl tracks a plan of interdependent tasks,
each implemented on its own branch and merged through its own pull request.

Use get_current_task with your branch name or session handle to find the
task you are working on, including its description, dependencies, and PR
state. Use get_plan to see overall progress and list_tasks to see what else
is in flight. All tools are read-only; task state is advanced through the
taskctl CLI, not through this server.

Entity references accept unique id prefixes (the 8-character short form
shown in CLI output is always enough).`
