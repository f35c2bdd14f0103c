// Package scheduler coordinates parallel task execution for one plan.
// This file drives individual task transitions and plan progress.
package scheduler

import (
	"context"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
)

// Start moves an assigned task and its slot to in_progress. This is the
// explicit trigger fired when the implementer picks the task up.
func (s *Scheduler) Start(ctx context.Context, state *State, taskID string) error {
	task, err := state.taskOrFail(taskID)
	if err != nil {
		return err
	}
	if err := s.store.StartTask(ctx, taskID); err != nil {
		return err
	}
	task.Status = constants.TaskStatusInProgress
	return nil
}

// MarkPRCreated records the forge PR for a task and advances task and slot.
func (s *Scheduler) MarkPRCreated(ctx context.Context, state *State, taskID string, pr *domain.PullRequest) error {
	task, err := state.taskOrFail(taskID)
	if err != nil {
		return err
	}
	if err := s.store.MarkTaskPRCreated(ctx, taskID, pr); err != nil {
		return err
	}
	task.Status = constants.TaskStatusPRCreated
	return nil
}

// Complete finishes a task, frees its slot, and promotes any dependents
// whose prerequisites are now all completed. State sets are updated to
// match, so a following NextBatch sees the promoted tasks.
func (s *Scheduler) Complete(ctx context.Context, state *State, taskID string, force bool) error {
	task, err := state.taskOrFail(taskID)
	if err != nil {
		return err
	}
	if err := s.store.CompleteTask(ctx, taskID, force); err != nil {
		return err
	}

	task.Status = constants.TaskStatusCompleted
	task.BranchName = ""
	task.SlotID = ""
	state.Completed[taskID] = true
	delete(state.InProgress, taskID)
	delete(state.Assignment, taskID)

	// Mirror the store-side dependent promotion in the in-memory view.
	for _, depID := range state.Graph.Dependents(taskID) {
		dependent := state.Tasks[depID]
		if dependent.Status != constants.TaskStatusPending {
			continue
		}
		ready := true
		for _, prereq := range state.Graph.Dependencies(depID) {
			if !state.Completed[prereq] {
				ready = false
				break
			}
		}
		if ready {
			dependent.Status = constants.TaskStatusReady
		}
	}

	s.logger.Info().Str("task_id", taskID).Msg("task completed")
	return s.UpdatePlanProgress(ctx, state)
}

// UpdatePlanProgress moves the plan forward when its tasks warrant it:
// ready plans with active work become in_progress, and in_progress plans
// whose tasks have all completed become completed.
func (s *Scheduler) UpdatePlanProgress(ctx context.Context, state *State) error {
	switch state.Plan.Status {
	case constants.PlanStatusReady:
		if len(state.InProgress) == 0 && !state.IsComplete() {
			return nil
		}
		if err := s.store.TransitionPlan(ctx, state.Plan.ID, constants.PlanStatusInProgress); err != nil {
			return err
		}
		state.Plan.Status = constants.PlanStatusInProgress
		if !state.IsComplete() {
			return nil
		}
		fallthrough
	case constants.PlanStatusInProgress:
		if !state.IsComplete() {
			return nil
		}
		if err := s.store.TransitionPlan(ctx, state.Plan.ID, constants.PlanStatusCompleted); err != nil {
			return err
		}
		state.Plan.Status = constants.PlanStatusCompleted
		s.logger.Info().Str("plan_id", state.Plan.ID).Msg("plan completed")
	}
	return nil
}
