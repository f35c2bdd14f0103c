// Package constants provides shared constants for the taskctl coordination core.
// This package has no dependencies on other internal packages.
package constants

import "time"

// AppName is the canonical application name, used for data directories,
// config files, and log files.
const AppName = "taskctl"

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

// Plan lifecycle states.
// Flow: draft -> planning -> ready -> in_progress -> completed.
// Archived is a terminal sink reachable from any non-terminal state.
const (
	PlanStatusDraft      PlanStatus = "draft"
	PlanStatusPlanning   PlanStatus = "planning"
	PlanStatusReady      PlanStatus = "ready"
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusCompleted  PlanStatus = "completed"
	PlanStatusArchived   PlanStatus = "archived"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Task lifecycle states.
// Flow: pending -> ready -> assigned -> in_progress -> pr_created -> in_review -> completed.
// Blocked is reachable from pending/ready when a dependency becomes infeasible.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusReady      TaskStatus = "ready"
	TaskStatusAssigned   TaskStatus = "assigned"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusPRCreated  TaskStatus = "pr_created"
	TaskStatusInReview   TaskStatus = "in_review"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusBlocked    TaskStatus = "blocked"
)

// SlotStatus represents the lifecycle state of an execution slot (git worktree).
type SlotStatus string

// Slot lifecycle states.
// Flow: available -> assigned -> in_progress -> pr_pending -> completed -> available.
// Error is reachable from any active state.
const (
	SlotStatusAvailable  SlotStatus = "available"
	SlotStatusAssigned   SlotStatus = "assigned"
	SlotStatusInProgress SlotStatus = "in_progress"
	SlotStatusPRPending  SlotStatus = "pr_pending"
	SlotStatusCompleted  SlotStatus = "completed"
	SlotStatusError      SlotStatus = "error"
)

// PRStatus represents the internal lifecycle state of a pull request.
type PRStatus string

// Pull request lifecycle states.
// Flow: draft -> open -> in_review -> approved -> merged.
// Closed is reachable from open/in_review.
const (
	PRStatusDraft    PRStatus = "draft"
	PRStatusOpen     PRStatus = "open"
	PRStatusInReview PRStatus = "in_review"
	PRStatusApproved PRStatus = "approved"
	PRStatusMerged   PRStatus = "merged"
	PRStatusClosed   PRStatus = "closed"
)

// ActiveTaskStatuses are the task states that count as "in progress" for
// scheduling purposes. A task in one of these states holds a slot and a branch.
//
//nolint:gochecknoglobals // Read-only lookup table
var ActiveTaskStatuses = map[TaskStatus]bool{
	TaskStatusAssigned:   true,
	TaskStatusInProgress: true,
	TaskStatusPRCreated:  true,
	TaskStatusInReview:   true,
}

// Timeouts for external process invocation. Network git operations get the
// extended timeout; everything else uses the defaults.
const (
	// DefaultGitTimeout applies to local git commands.
	DefaultGitTimeout = 60 * time.Second

	// NetworkGitTimeout applies to push, pull, fetch, and clone.
	NetworkGitTimeout = 300 * time.Second

	// DefaultForgeTimeout applies to gh CLI invocations.
	DefaultForgeTimeout = 60 * time.Second

	// DefaultPlannerTimeout applies to LLM planner invocations.
	DefaultPlannerTimeout = 180 * time.Second
)

// Scheduling defaults.
const (
	// DefaultMaxConcurrent is the slot concurrency cap used when a project
	// does not specify one.
	DefaultMaxConcurrent = 2

	// ShortIDLength is the number of leading identifier characters used for
	// human display and prefix lookup.
	ShortIDLength = 8

	// BranchPrefix is the leading segment of generated task branch names.
	BranchPrefix = "feature"

	// MaxSlugLength caps the slug portion of generated branch names.
	MaxSlugLength = 30

	// DefaultEstimatedLines is assumed when the planner omits an estimate.
	DefaultEstimatedLines = 50

	// MaxContextSnippetBytes caps each context file snippet handed to the
	// planner prompt.
	MaxContextSnippetBytes = 4096

	// MaxStructureDigestBytes caps the project structure digest handed to
	// the planner prompt.
	MaxStructureDigestBytes = 4096

	// DefaultMainBranch is the assumed main branch when none is configured.
	DefaultMainBranch = "main"
)

// Environment variable names for overrides.
const (
	// EnvDBPath overrides the store location.
	EnvDBPath = "TASKCTL_DB_PATH"

	// EnvLogLevel overrides the log level.
	EnvLogLevel = "TASKCTL_LOG_LEVEL"

	// EnvAnthropicAPIKey is the LLM credential consumed by the claude CLI.
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
)

// Process exit codes.
const (
	// ExitOK indicates success.
	ExitOK = 0
	// ExitUserError indicates a domain error (not found, invalid arg, bad state).
	ExitUserError = 1
	// ExitExternalError indicates a git, forge, or planner failure.
	ExitExternalError = 2
	// ExitInternalError indicates a store backend failure or invariant violation.
	ExitInternalError = 3
)
