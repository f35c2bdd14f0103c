// Package domain provides shared entity types for the taskctl coordination
// core. These types are used across all internal packages to ensure
// consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"time"

	"github.com/taskctl/taskctl/internal/constants"
)

// Project represents one managed repository. Projects own plans and slots;
// removing a project cascades to both.
type Project struct {
	// ID is the unique ULID identifier.
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// RepoPath is the absolute path to the repository root. Unique per store.
	RepoPath string `json:"repo_path"`

	// RemoteURL is the git remote URL, if any.
	RemoteURL string `json:"remote_url,omitempty"`

	// MainBranch is the repository's main branch name (default "main").
	MainBranch string `json:"main_branch"`

	// MaxConcurrent caps how many tasks may hold slots at once.
	// Zero means use the global default.
	MaxConcurrent int `json:"max_concurrent,omitempty"`

	// CreatedAt is when the project was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the project was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Plan is a cohesive unit of work owned by a project. Task branches fork
// from the plan's source branch, and PRs target it.
type Plan struct {
	// ID is the unique ULID identifier.
	ID string `json:"id"`

	// ProjectID links the plan to its owning project.
	ProjectID string `json:"project_id"`

	// Title is the human-readable plan title.
	Title string `json:"title"`

	// Description explains the overall change, if provided.
	Description string `json:"description,omitempty"`

	// SourceBranch is the base branch task branches fork from.
	SourceBranch string `json:"source_branch"`

	// Status is the plan lifecycle state.
	Status constants.PlanStatus `json:"status"`

	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the plan was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a leaf unit of work owned by a plan; one task corresponds to one
// pull request.
type Task struct {
	// ID is the unique ULID identifier.
	ID string `json:"id"`

	// PlanID links the task to its owning plan.
	PlanID string `json:"plan_id"`

	// Title is the short task title used for branch slugs and display.
	Title string `json:"title"`

	// Description is the full task description handed to the implementer.
	Description string `json:"description"`

	// Status is the task lifecycle state.
	Status constants.TaskStatus `json:"status"`

	// Level is the DAG depth: 0 for roots, 1+max(dependency levels) otherwise.
	Level int `json:"level"`

	// EstimatedLines is the planner's line-count estimate, if any.
	EstimatedLines int `json:"estimated_lines,omitempty"`

	// BranchName is set while the task is in an active state and cleared
	// when it returns to pending/ready or completes.
	BranchName string `json:"branch_name,omitempty"`

	// SlotID references the slot currently executing this task, if any.
	// The slot's back-reference is kept symmetric in store transactions.
	SlotID string `json:"slot_id,omitempty"`

	// SessionID is an opaque handle set by the out-of-band implementer,
	// used only for current-task lookup. Never a scheduling resource.
	SessionID string `json:"session_id,omitempty"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the task was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the task currently holds a slot and branch.
func (t *Task) IsActive() bool {
	return constants.ActiveTaskStatuses[t.Status]
}

// Dependency is a directed edge: Task depends on DependsOn. Both tasks
// belong to the same plan. No self-loops, duplicates, or cycles.
type Dependency struct {
	// TaskID is the dependent task.
	TaskID string `json:"task_id"`

	// DependsOnID is the prerequisite task.
	DependsOnID string `json:"depends_on_id"`
}

// Slot is a reusable execution workspace (git worktree) bound to a project.
// A slot references at most one task at a time.
type Slot struct {
	// ID is the unique ULID identifier.
	ID string `json:"id"`

	// ProjectID links the slot to its owning project.
	ProjectID string `json:"project_id"`

	// Name is the stable slot name, used for ordering and worktree paths.
	Name string `json:"name"`

	// Path is the absolute worktree path on disk.
	Path string `json:"path"`

	// Branch is the branch currently checked out in the worktree.
	Branch string `json:"branch,omitempty"`

	// Status is the slot lifecycle state.
	Status constants.SlotStatus `json:"status"`

	// TaskID references the task currently assigned to this slot, if any.
	TaskID string `json:"task_id,omitempty"`

	// CreatedAt is when the slot was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the slot was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// PullRequest is a forge-side artifact bound 1:1 to a task.
type PullRequest struct {
	// ID is the unique ULID identifier.
	ID string `json:"id"`

	// TaskID links the PR to its task. Unique per store.
	TaskID string `json:"task_id"`

	// Number is the forge-assigned PR number.
	Number int `json:"number"`

	// URL is the full URL to the PR.
	URL string `json:"url"`

	// Status is the internal PR lifecycle state.
	Status constants.PRStatus `json:"status"`

	// BaseBranch is the PR target branch (the plan's source branch).
	BaseBranch string `json:"base_branch"`

	// HeadBranch is the PR source branch (the task's branch name at creation).
	HeadBranch string `json:"head_branch"`

	// CreatedAt is when the PR row was recorded.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the PR row was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress summarises plan completion for the query surface.
type Progress struct {
	// Total is the number of tasks in the plan.
	Total int `json:"total"`

	// Completed counts tasks in the completed state.
	Completed int `json:"completed"`

	// InProgress counts tasks in an active state.
	InProgress int `json:"in_progress"`

	// Pending counts every other task.
	Pending int `json:"pending"`

	// Percent is Completed/Total as a 0-100 value; 0 for empty plans.
	Percent float64 `json:"percent"`
}
