package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/query"
)

// GetPlanTool handles the get_plan MCP tool.
type GetPlanTool struct {
	svc *query.Service
}

// NewGetPlanTool creates a GetPlanTool.
func NewGetPlanTool(svc *query.Service) *GetPlanTool {
	return &GetPlanTool{svc: svc}
}

// Definition returns the MCP tool definition for get_plan.
func (t *GetPlanTool) Definition() mcp.Tool {
	return mcp.NewTool("get_plan",
		mcp.WithDescription(
			"Get one plan with all of its tasks, all dependency edges, and "+
				"computed progress (total, completed, in_progress, pending, percent).",
		),
		mcp.WithString("plan",
			mcp.Required(),
			mcp.Description("Plan id or unique id prefix"),
		),
	)
}

// Handle processes the get_plan tool call.
func (t *GetPlanTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planRef := req.GetString("plan", "")
	if planRef == "" {
		return errorResult(fmt.Errorf("'plan' is required")), nil
	}
	detail, err := t.svc.PlanWithProgress(ctx, planRef)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(detail)
}

// ListPlansTool handles the list_plans MCP tool.
type ListPlansTool struct {
	svc *query.Service
}

// NewListPlansTool creates a ListPlansTool.
func NewListPlansTool(svc *query.Service) *ListPlansTool {
	return &ListPlansTool{svc: svc}
}

// Definition returns the MCP tool definition for list_plans.
func (t *ListPlansTool) Definition() mcp.Tool {
	return mcp.NewTool("list_plans",
		mcp.WithDescription("List plans, optionally filtered by project and status."),
		mcp.WithString("project",
			mcp.Description("Project id or unique id prefix"),
		),
		mcp.WithString("status",
			mcp.Description("Filter by status: draft, planning, ready, in_progress, completed, archived"),
		),
	)
}

// Handle processes the list_plans tool call.
func (t *ListPlansTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plans, err := t.svc.Plans(ctx, query.PlanListFilter{
		ProjectRef: req.GetString("project", ""),
		Status:     constants.PlanStatus(req.GetString("status", "")),
	})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"plans": plans})
}

// GetTaskTool handles the get_task MCP tool.
type GetTaskTool struct {
	svc *query.Service
}

// NewGetTaskTool creates a GetTaskTool.
func NewGetTaskTool(svc *query.Service) *GetTaskTool {
	return &GetTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for get_task.
func (t *GetTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("get_task",
		mcp.WithDescription(
			"Get one task with its plan header, dependencies, dependents, "+
				"and pull request (if one exists).",
		),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("Task id or unique id prefix"),
		),
	)
}

// Handle processes the get_task tool call.
func (t *GetTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskRef := req.GetString("task", "")
	if taskRef == "" {
		return errorResult(fmt.Errorf("'task' is required")), nil
	}
	detail, err := t.svc.TaskWithNeighbors(ctx, taskRef)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(detail)
}

// ListTasksTool handles the list_tasks MCP tool.
type ListTasksTool struct {
	svc *query.Service
}

// NewListTasksTool creates a ListTasksTool.
func NewListTasksTool(svc *query.Service) *ListTasksTool {
	return &ListTasksTool{svc: svc}
}

// Definition returns the MCP tool definition for list_tasks.
func (t *ListTasksTool) Definition() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription(
			"List tasks ordered by dependency level, optionally filtered "+
				"by plan, status, and level.",
		),
		mcp.WithString("plan",
			mcp.Description("Plan id or unique id prefix"),
		),
		mcp.WithString("status",
			mcp.Description("Filter by status: pending, ready, assigned, in_progress, pr_created, in_review, completed, blocked"),
		),
		mcp.WithNumber("level",
			mcp.Description("Filter by DAG level (0 = root tasks)"),
		),
	)
}

// Handle processes the list_tasks tool call.
func (t *ListTasksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := query.TaskListFilter{
		PlanRef: req.GetString("plan", ""),
		Status:  constants.TaskStatus(req.GetString("status", "")),
	}
	if level := int(req.GetFloat("level", -1)); level >= 0 {
		filter.Level = level
		filter.HasLevel = true
	}
	tasks, err := t.svc.Tasks(ctx, filter)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"tasks": tasks})
}

// CurrentTaskTool handles the get_current_task MCP tool.
type CurrentTaskTool struct {
	svc *query.Service
}

// NewCurrentTaskTool creates a CurrentTaskTool.
func NewCurrentTaskTool(svc *query.Service) *CurrentTaskTool {
	return &CurrentTaskTool{svc: svc}
}

// Definition returns the MCP tool definition for get_current_task.
func (t *CurrentTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("get_current_task",
		mcp.WithDescription(
			"Find the task a working session belongs to, by session handle "+
				"first and branch name second. Returns {\"current_task\": null} "+
				"when neither matches.",
		),
		mcp.WithString("branch",
			mcp.Description("Git branch name checked out in the working tree"),
		),
		mcp.WithString("session",
			mcp.Description("Session handle previously attached with 'taskctl task attach-session'"),
		),
	)
}

// Handle processes the get_current_task tool call.
func (t *CurrentTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	branch := req.GetString("branch", "")
	session := req.GetString("session", "")
	if branch == "" && session == "" {
		return errorResult(fmt.Errorf("either 'branch' or 'session' is required")), nil
	}
	detail, err := t.svc.CurrentTask(ctx, branch, session)
	if err != nil {
		return errorResult(err), nil
	}
	// detail is nil when no task matches; serialise that explicitly so the
	// agent can tell "no current task" apart from a failure.
	return jsonResult(map[string]any{"current_task": detail})
}
