// Package errors provides centralized error handling for taskctl.
//
// This package defines sentinel errors used for programmatic error
// categorization throughout the application. All error types can be checked
// using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguous indicates an identifier prefix matched more than one entity.
	ErrAmbiguous = errors.New("ambiguous identifier prefix")

	// ErrAlreadyExists indicates an attempt to create an entity that already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition indicates an attempt to make an invalid state transition.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrCycle indicates a dependency cycle in a plan's edge set.
	ErrCycle = errors.New("dependency cycle detected")

	// ErrDependencyUnmet indicates a dependency edge references an unknown task.
	ErrDependencyUnmet = errors.New("dependency references unknown task")

	// ErrSelfDependency indicates a task depends on itself.
	ErrSelfDependency = errors.New("task cannot depend on itself")

	// ErrDuplicateDependency indicates a duplicate dependency edge.
	ErrDuplicateDependency = errors.New("duplicate dependency edge")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrGitOperation indicates that a git command failed during execution.
	ErrGitOperation = errors.New("git operation failed")

	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrBranchExists indicates the branch already exists.
	ErrBranchExists = errors.New("branch already exists")

	// ErrBranchNotFound indicates the specified branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrBranchOwned indicates a branch name is already owned by another task.
	ErrBranchOwned = errors.New("branch owned by another task")

	// ErrWorktreeExists indicates the worktree path already exists.
	ErrWorktreeExists = errors.New("worktree already exists")

	// ErrNotAWorktree indicates the path is not a valid git worktree.
	ErrNotAWorktree = errors.New("not a git worktree")

	// ErrForgeOperation indicates that a forge CLI operation failed.
	ErrForgeOperation = errors.New("forge operation failed")

	// ErrForgeAuthFailed indicates that forge authentication failed.
	ErrForgeAuthFailed = errors.New("forge authentication failed")

	// ErrForgeUnavailable indicates the forge CLI is not installed or not authenticated.
	ErrForgeUnavailable = errors.New("forge CLI unavailable")

	// ErrPRNotFound indicates that the requested PR was not found.
	ErrPRNotFound = errors.New("pull request not found")

	// ErrPRCreationFailed indicates that PR creation failed.
	ErrPRCreationFailed = errors.New("pull request creation failed")

	// ErrPlannerInvocation indicates that the planner CLI failed to execute.
	ErrPlannerInvocation = errors.New("planner invocation failed")

	// ErrPlannerParse indicates the planner response was not valid JSON.
	ErrPlannerParse = errors.New("planner response parse failed")

	// ErrPlannerSchema indicates the planner response lacked the tasks array.
	ErrPlannerSchema = errors.New("planner response missing tasks")

	// ErrConflict indicates a unique or foreign key constraint violation.
	ErrConflict = errors.New("constraint conflict")

	// ErrBackend indicates an underlying storage failure.
	ErrBackend = errors.New("storage backend failure")

	// ErrSlotBusy indicates the slot is already bound to a task.
	ErrSlotBusy = errors.New("slot already assigned")

	// ErrNoAvailableSlots indicates scheduling found no free slots.
	ErrNoAvailableSlots = errors.New("no available slots")

	// ErrPlanNotReady indicates a plan operation requires a different plan status.
	ErrPlanNotReady = errors.New("plan not in required status")

	// ErrMergeRequired indicates task completion requires a merged PR or force.
	ErrMergeRequired = errors.New("task completion requires a merged pull request")

	// ErrTimeout indicates an external operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// domainErrors are the categories that map to exit code 1: the user asked
// for something that does not exist or is not allowed in the current state.
//
//nolint:gochecknoglobals // Read-only lookup table
var domainErrors = []error{
	ErrNotFound,
	ErrAmbiguous,
	ErrAlreadyExists,
	ErrInvalidTransition,
	ErrCycle,
	ErrDependencyUnmet,
	ErrSelfDependency,
	ErrDuplicateDependency,
	ErrInvalidArgument,
	ErrEmptyValue,
	ErrBranchOwned,
	ErrSlotBusy,
	ErrPlanNotReady,
	ErrMergeRequired,
	ErrPRNotFound,
}

// externalErrors map to exit code 2: a collaborating process failed.
//
//nolint:gochecknoglobals // Read-only lookup table
var externalErrors = []error{
	ErrGitOperation,
	ErrNotGitRepo,
	ErrBranchExists,
	ErrBranchNotFound,
	ErrWorktreeExists,
	ErrNotAWorktree,
	ErrForgeOperation,
	ErrForgeAuthFailed,
	ErrForgeUnavailable,
	ErrPRCreationFailed,
	ErrPlannerInvocation,
	ErrPlannerParse,
	ErrPlannerSchema,
	ErrTimeout,
}

// ExitCode classifies an error into a process exit code:
// 0 for nil, 1 for domain errors, 2 for external failures,
// 3 for store backend failures and anything unrecognized.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return 1
		}
	}
	for _, target := range externalErrors {
		if errors.Is(err, target) {
			return 2
		}
	}
	return 3
}
