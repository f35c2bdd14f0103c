// Package planner turns a plan description into a validated task
// decomposition via an LLM CLI, and persists the result through the store.
//
// The planner is an external adapter like git and forge: it shells out to
// the claude binary with an injectable executor, parses a strict JSON
// contract, and normalises the result before anything touches the store.
package planner

import (
	"context"
)

// TaskSpec is one task in the planner's decomposition. IDs are local to the
// planner output; persistence translates them into store ids.
type TaskSpec struct {
	// ID is the planner-local identifier other tasks reference in DependsOn.
	ID string `json:"id"`

	// Title is the short task title.
	Title string `json:"title"`

	// Description is the full implementation instruction.
	Description string `json:"description"`

	// EstimatedLines is the expected diff size.
	EstimatedLines int `json:"estimated_lines"`

	// DependsOn lists planner-local ids of prerequisite tasks.
	DependsOn []string `json:"depends_on"`
}

// Result is the planner's full output.
type Result struct {
	// Summary describes the overall decomposition.
	Summary string `json:"summary"`

	// Tasks is the ordered task list; order is preserved into the store.
	Tasks []TaskSpec `json:"tasks"`
}

// Snippet is one context file excerpt included in the planner prompt.
type Snippet struct {
	// Path is the file path shown to the model.
	Path string

	// Content is the file content; truncated to MaxContextSnippetBytes
	// before prompting.
	Content string
}

// Request carries everything the planner needs to decompose a plan.
type Request struct {
	// Title is the plan title.
	Title string

	// Description is the plan description, if any.
	Description string

	// RepoPath is the repository the change targets; used as the working
	// directory so the model can be pointed at real code.
	RepoPath string

	// StructureDigest is an optional summary of the project layout,
	// typically a tracked-file listing.
	StructureDigest string

	// ContextFiles are optional file snippets to ground the decomposition.
	ContextFiles []Snippet

	// MaxLinesPerTask overrides the per-task diff size target when positive.
	MaxLinesPerTask int
}

// Planner produces a task decomposition for a plan.
type Planner interface {
	// GeneratePlan invokes the model and returns a validated Result.
	GeneratePlan(ctx context.Context, req Request) (*Result, error)
}
