// Package scheduler coordinates parallel task execution for one plan.
// This file implements batch selection and assignment.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/ctxutil"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/store"
)

// Pairing is one planned task-to-slot assignment.
type Pairing struct {
	// Task is the ready task to assign.
	Task *domain.Task

	// Slot is the available slot that will execute it.
	Slot *domain.Slot

	// Branch is the deterministic branch name for the task.
	Branch string
}

// NextBatch selects the next set of assignments without mutating anything:
// ready tasks minus in-progress ones, in (level asc, id asc) order, zipped
// with available slots in name order, capped by the remaining concurrency
// headroom. Calling it repeatedly without an intervening Assign returns the
// same batch.
func (s *Scheduler) NextBatch(ctx context.Context, state *State) ([]Pairing, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	headroom := state.MaxConcurrent() - len(state.InProgress)
	if headroom <= 0 {
		return nil, nil
	}

	var ready []*domain.Task
	for _, taskID := range state.Graph.ReadySet(state.Completed) {
		if state.InProgress[taskID] {
			continue
		}
		task := state.Tasks[taskID]
		// Only ready tasks are assignable; pending ones still wait on a
		// promotion even if their dependencies have all completed.
		if task.Status != constants.TaskStatusReady {
			continue
		}
		ready = append(ready, task)
	}
	if len(ready) == 0 {
		return nil, nil
	}

	slots, err := s.store.ListAvailableSlots(ctx, state.Project.ID)
	if err != nil {
		return nil, err
	}

	n := min(headroom, len(ready), len(slots))
	batch := make([]Pairing, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, Pairing{
			Task:   ready[i],
			Slot:   slots[i],
			Branch: state.TaskBranch(ready[i]),
		})
	}
	return batch, nil
}

// Assign applies a batch: branch preparation fans out in parallel, and only
// after every branch is in place does the store record all pairings in one
// transaction, so either the whole batch is assigned or none of it is. A
// preparation failure aborts before any store mutation. A successful batch
// moves a ready plan to in_progress.
func (s *Scheduler) Assign(ctx context.Context, state *State, batch []Pairing) error {
	if len(batch) == 0 {
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for _, pairing := range batch {
		eg.Go(func() error {
			return s.prepareBranch(egCtx, state, pairing)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	assignments := make([]store.Assignment, 0, len(batch))
	for _, pairing := range batch {
		assignments = append(assignments, store.Assignment{
			TaskID: pairing.Task.ID,
			SlotID: pairing.Slot.ID,
			Branch: pairing.Branch,
		})
	}
	if err := s.store.AssignTasks(ctx, assignments); err != nil {
		return fmt.Errorf("assign batch: %w", err)
	}

	for _, pairing := range batch {
		s.logger.Info().
			Str("task_id", pairing.Task.ID).
			Str("slot", pairing.Slot.Name).
			Str("branch", pairing.Branch).
			Msg("task assigned")

		task := state.Tasks[pairing.Task.ID]
		task.Status = constants.TaskStatusAssigned
		task.BranchName = pairing.Branch
		task.SlotID = pairing.Slot.ID
		state.InProgress[task.ID] = true
		state.Assignment[task.ID] = pairing.Slot.ID
	}
	return s.UpdatePlanProgress(ctx, state)
}

// prepareBranch creates the task branch from the plan's source branch and
// checks it out in the slot worktree. If the branch already exists, it is
// adopted via plain checkout only when the store confirms no other task
// owns it.
func (s *Scheduler) prepareBranch(ctx context.Context, state *State, pairing Pairing) error {
	err := s.git.CreateBranch(ctx, pairing.Slot.Path, pairing.Branch, state.Plan.SourceBranch)
	if err != nil {
		if !errors.Is(err, taskctlerrors.ErrBranchExists) {
			return fmt.Errorf("prepare branch %s: %w", pairing.Branch, err)
		}
		owner, lookupErr := s.store.GetTaskByBranchName(ctx, pairing.Branch)
		if lookupErr == nil && owner.ID != pairing.Task.ID {
			return fmt.Errorf("%w: branch %s owned by task %s",
				taskctlerrors.ErrConflict, pairing.Branch, owner.ID)
		}
		if lookupErr != nil && !errors.Is(lookupErr, taskctlerrors.ErrNotFound) {
			return lookupErr
		}
	}
	if err := s.git.CheckoutBranch(ctx, pairing.Slot.Path, pairing.Branch); err != nil {
		return fmt.Errorf("checkout %s in %s: %w", pairing.Branch, pairing.Slot.Name, err)
	}
	return nil
}
