// Package lifecycle implements the state-machine guardrails for taskctl.
//
// Every status transition on plans, tasks, slots, and pull requests is
// mediated by the validators in this package, which encode the lifecycle
// edges of each entity and reject any out-of-band change with a wrapped
// ErrInvalidTransition. Cross-entity consistency (branch<->task,
// slot<->task, PR<->task) is enforced by the store inside the same
// transaction that applies the transition.
//
// Import rules:
//   - CAN import: internal/constants, internal/errors, std lib
//   - MUST NOT import: internal/store, internal/scheduler, internal/cli
package lifecycle

import (
	"fmt"

	"github.com/taskctl/taskctl/internal/constants"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// PlanTransitions defines all allowed plan state transitions.
// Format: from_status -> []to_statuses
//
// The plan lifecycle:
//
//	Draft → Planning, Archived
//	Planning → Ready, Draft (planner failure restore), Archived
//	Ready → InProgress, Archived
//	InProgress → Completed, Ready, Archived
//	Completed, Archived → (terminal)
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var PlanTransitions = map[constants.PlanStatus][]constants.PlanStatus{
	constants.PlanStatusDraft:    {constants.PlanStatusPlanning, constants.PlanStatusArchived},
	constants.PlanStatusPlanning: {constants.PlanStatusReady, constants.PlanStatusDraft, constants.PlanStatusArchived},
	constants.PlanStatusReady:    {constants.PlanStatusInProgress, constants.PlanStatusArchived},
	constants.PlanStatusInProgress: {
		constants.PlanStatusCompleted,
		constants.PlanStatusReady, // All active work rolled back
		constants.PlanStatusArchived,
	},
}

// TaskTransitions defines all allowed task state transitions.
//
// The task lifecycle:
//
//	Pending → Ready, Blocked
//	Ready → Assigned, Blocked, Pending
//	Assigned → InProgress, Ready (rollback)
//	InProgress → PRCreated, Ready (rollback)
//	PRCreated → InReview, Completed
//	InReview → Completed, InProgress (changes requested)
//	Blocked → Pending, Ready
//	Completed → (terminal)
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var TaskTransitions = map[constants.TaskStatus][]constants.TaskStatus{
	constants.TaskStatusPending: {constants.TaskStatusReady, constants.TaskStatusBlocked},
	constants.TaskStatusReady: {
		constants.TaskStatusAssigned,
		constants.TaskStatusBlocked,
		constants.TaskStatusPending,
	},
	constants.TaskStatusAssigned:   {constants.TaskStatusInProgress, constants.TaskStatusReady},
	constants.TaskStatusInProgress: {constants.TaskStatusPRCreated, constants.TaskStatusReady},
	constants.TaskStatusPRCreated:  {constants.TaskStatusInReview, constants.TaskStatusCompleted},
	constants.TaskStatusInReview:   {constants.TaskStatusCompleted, constants.TaskStatusInProgress},
	constants.TaskStatusBlocked:    {constants.TaskStatusPending, constants.TaskStatusReady},
}

// SlotTransitions defines all allowed slot state transitions.
//
// The slot lifecycle:
//
//	Available → Assigned
//	Assigned → InProgress, Available (rollback), Error
//	InProgress → PRPending, Available (rollback), Error
//	PRPending → Completed, Error
//	Completed → Available
//	Error → Available (manual reset)
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var SlotTransitions = map[constants.SlotStatus][]constants.SlotStatus{
	constants.SlotStatusAvailable: {constants.SlotStatusAssigned},
	constants.SlotStatusAssigned: {
		constants.SlotStatusInProgress,
		constants.SlotStatusAvailable,
		constants.SlotStatusError,
	},
	constants.SlotStatusInProgress: {
		constants.SlotStatusPRPending,
		constants.SlotStatusAvailable,
		constants.SlotStatusError,
	},
	constants.SlotStatusPRPending: {constants.SlotStatusCompleted, constants.SlotStatusError},
	constants.SlotStatusCompleted: {constants.SlotStatusAvailable},
	constants.SlotStatusError:     {constants.SlotStatusAvailable},
}

// PRTransitions defines all allowed pull request state transitions.
//
// The PR lifecycle:
//
//	Draft → Open, Closed
//	Open → InReview, Approved, Merged, Closed
//	InReview → Approved, Open, Closed
//	Approved → Merged, InReview
//	Merged, Closed → (terminal)
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var PRTransitions = map[constants.PRStatus][]constants.PRStatus{
	constants.PRStatusDraft: {constants.PRStatusOpen, constants.PRStatusClosed},
	constants.PRStatusOpen: {
		constants.PRStatusInReview,
		constants.PRStatusApproved,
		constants.PRStatusMerged,
		constants.PRStatusClosed,
	},
	constants.PRStatusInReview: {
		constants.PRStatusApproved,
		constants.PRStatusOpen,
		constants.PRStatusClosed,
	},
	constants.PRStatusApproved: {constants.PRStatusMerged, constants.PRStatusInReview},
}

// contains reports whether target appears in the transition list.
func contains[S ~string](targets []S, target S) bool {
	for _, t := range targets {
		if t == target {
			return true
		}
	}
	return false
}

// CanTransitionPlan reports whether a plan may move from one status to another.
func CanTransitionPlan(from, to constants.PlanStatus) bool {
	return from != to && contains(PlanTransitions[from], to)
}

// CanTransitionTask reports whether a task may move from one status to another.
func CanTransitionTask(from, to constants.TaskStatus) bool {
	return from != to && contains(TaskTransitions[from], to)
}

// CanTransitionSlot reports whether a slot may move from one status to another.
func CanTransitionSlot(from, to constants.SlotStatus) bool {
	return from != to && contains(SlotTransitions[from], to)
}

// CanTransitionPR reports whether a PR may move from one status to another.
func CanTransitionPR(from, to constants.PRStatus) bool {
	return from != to && contains(PRTransitions[from], to)
}

// transitionError builds the canonical wrapped error for a rejected transition.
func transitionError(entity string, from, to string) error {
	return fmt.Errorf("%w: %s cannot transition from %s to %s",
		taskctlerrors.ErrInvalidTransition, entity, from, to)
}

// ValidatePlan returns a wrapped ErrInvalidTransition unless from→to is a
// legal plan transition.
func ValidatePlan(from, to constants.PlanStatus) error {
	if !CanTransitionPlan(from, to) {
		return transitionError("plan", string(from), string(to))
	}
	return nil
}

// ValidateTask returns a wrapped ErrInvalidTransition unless from→to is a
// legal task transition.
func ValidateTask(from, to constants.TaskStatus) error {
	if !CanTransitionTask(from, to) {
		return transitionError("task", string(from), string(to))
	}
	return nil
}

// ValidateSlot returns a wrapped ErrInvalidTransition unless from→to is a
// legal slot transition.
func ValidateSlot(from, to constants.SlotStatus) error {
	if !CanTransitionSlot(from, to) {
		return transitionError("slot", string(from), string(to))
	}
	return nil
}

// ValidatePR returns a wrapped ErrInvalidTransition unless from→to is a
// legal PR transition.
func ValidatePR(from, to constants.PRStatus) error {
	if !CanTransitionPR(from, to) {
		return transitionError("pull_request", string(from), string(to))
	}
	return nil
}

// IsTerminalTask reports whether no further task transitions are allowed.
func IsTerminalTask(status constants.TaskStatus) bool {
	_, exists := TaskTransitions[status]
	return !exists
}

// IsTerminalPlan reports whether no further plan transitions are allowed.
func IsTerminalPlan(status constants.PlanStatus) bool {
	_, exists := PlanTransitions[status]
	return !exists
}

// RequiresBranch reports whether a task in the given status must carry a
// branch name. The branch is set on assignment and cleared on rollback or
// completion.
func RequiresBranch(status constants.TaskStatus) bool {
	return constants.ActiveTaskStatuses[status]
}
