package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskctl/taskctl/internal/constants"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

func TestTaskTransitions_HappyPath(t *testing.T) {
	path := []constants.TaskStatus{
		constants.TaskStatusPending,
		constants.TaskStatusReady,
		constants.TaskStatusAssigned,
		constants.TaskStatusInProgress,
		constants.TaskStatusPRCreated,
		constants.TaskStatusInReview,
		constants.TaskStatusCompleted,
	}

	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransitionTask(path[i], path[i+1]),
			"expected %s -> %s to be valid", path[i], path[i+1])
	}
}

func TestTaskTransitions_Rejected(t *testing.T) {
	tests := []struct {
		name string
		from constants.TaskStatus
		to   constants.TaskStatus
	}{
		{"skip ready", constants.TaskStatusPending, constants.TaskStatusAssigned},
		{"skip assignment", constants.TaskStatusReady, constants.TaskStatusInProgress},
		{"complete from ready", constants.TaskStatusReady, constants.TaskStatusCompleted},
		{"reopen completed", constants.TaskStatusCompleted, constants.TaskStatusReady},
		{"same status", constants.TaskStatusReady, constants.TaskStatusReady},
		{"block active", constants.TaskStatusInProgress, constants.TaskStatusBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, CanTransitionTask(tt.from, tt.to))

			err := ValidateTask(tt.from, tt.to)
			require.Error(t, err)
			assert.ErrorIs(t, err, taskctlerrors.ErrInvalidTransition)
		})
	}
}

func TestTaskTransitions_Rollback(t *testing.T) {
	assert.True(t, CanTransitionTask(constants.TaskStatusAssigned, constants.TaskStatusReady))
	assert.True(t, CanTransitionTask(constants.TaskStatusInProgress, constants.TaskStatusReady))
	assert.True(t, CanTransitionTask(constants.TaskStatusInReview, constants.TaskStatusInProgress))
}

func TestPlanTransitions(t *testing.T) {
	assert.True(t, CanTransitionPlan(constants.PlanStatusDraft, constants.PlanStatusPlanning))
	assert.True(t, CanTransitionPlan(constants.PlanStatusPlanning, constants.PlanStatusReady))
	assert.True(t, CanTransitionPlan(constants.PlanStatusPlanning, constants.PlanStatusDraft),
		"planner failure must be able to restore draft")
	assert.True(t, CanTransitionPlan(constants.PlanStatusReady, constants.PlanStatusInProgress))
	assert.True(t, CanTransitionPlan(constants.PlanStatusInProgress, constants.PlanStatusCompleted))

	// Archived is reachable from every non-terminal state.
	for from := range PlanTransitions {
		assert.True(t, CanTransitionPlan(from, constants.PlanStatusArchived),
			"%s -> archived must be valid", from)
	}

	// Terminal states stay terminal.
	assert.False(t, CanTransitionPlan(constants.PlanStatusCompleted, constants.PlanStatusReady))
	assert.False(t, CanTransitionPlan(constants.PlanStatusArchived, constants.PlanStatusDraft))
	assert.True(t, IsTerminalPlan(constants.PlanStatusArchived))
	assert.True(t, IsTerminalPlan(constants.PlanStatusCompleted))
}

func TestSlotTransitions_FullCycle(t *testing.T) {
	cycle := []constants.SlotStatus{
		constants.SlotStatusAvailable,
		constants.SlotStatusAssigned,
		constants.SlotStatusInProgress,
		constants.SlotStatusPRPending,
		constants.SlotStatusCompleted,
		constants.SlotStatusAvailable,
	}

	for i := 0; i < len(cycle)-1; i++ {
		assert.True(t, CanTransitionSlot(cycle[i], cycle[i+1]),
			"expected %s -> %s to be valid", cycle[i], cycle[i+1])
	}
}

func TestSlotTransitions_ErrorReachableFromActiveStates(t *testing.T) {
	active := []constants.SlotStatus{
		constants.SlotStatusAssigned,
		constants.SlotStatusInProgress,
		constants.SlotStatusPRPending,
	}
	for _, from := range active {
		assert.True(t, CanTransitionSlot(from, constants.SlotStatusError),
			"%s -> error must be valid", from)
	}

	assert.False(t, CanTransitionSlot(constants.SlotStatusAvailable, constants.SlotStatusError))
	assert.True(t, CanTransitionSlot(constants.SlotStatusError, constants.SlotStatusAvailable))
}

func TestPRTransitions(t *testing.T) {
	assert.True(t, CanTransitionPR(constants.PRStatusDraft, constants.PRStatusOpen))
	assert.True(t, CanTransitionPR(constants.PRStatusOpen, constants.PRStatusInReview))
	assert.True(t, CanTransitionPR(constants.PRStatusInReview, constants.PRStatusApproved))
	assert.True(t, CanTransitionPR(constants.PRStatusApproved, constants.PRStatusMerged))

	// Closed only from open/in_review (and draft abandonment).
	assert.True(t, CanTransitionPR(constants.PRStatusOpen, constants.PRStatusClosed))
	assert.True(t, CanTransitionPR(constants.PRStatusInReview, constants.PRStatusClosed))
	assert.False(t, CanTransitionPR(constants.PRStatusMerged, constants.PRStatusClosed))
	assert.False(t, CanTransitionPR(constants.PRStatusClosed, constants.PRStatusOpen))
}

func TestValidate_ErrorMentionsStates(t *testing.T) {
	err := ValidateSlot(constants.SlotStatusAvailable, constants.SlotStatusCompleted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available")
	assert.Contains(t, err.Error(), "completed")
	assert.Contains(t, err.Error(), "slot")
}

func TestRequiresBranch(t *testing.T) {
	assert.True(t, RequiresBranch(constants.TaskStatusAssigned))
	assert.True(t, RequiresBranch(constants.TaskStatusInProgress))
	assert.True(t, RequiresBranch(constants.TaskStatusPRCreated))
	assert.True(t, RequiresBranch(constants.TaskStatusInReview))

	assert.False(t, RequiresBranch(constants.TaskStatusPending))
	assert.False(t, RequiresBranch(constants.TaskStatusReady))
	assert.False(t, RequiresBranch(constants.TaskStatusCompleted))
	assert.False(t, RequiresBranch(constants.TaskStatusBlocked))
}
