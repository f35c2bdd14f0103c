package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/id"
	"github.com/taskctl/taskctl/internal/lifecycle"
)

// Composite transitions: every method here validates the lifecycle edges of
// all entities it touches and applies the coupled mutations inside one SQL
// transaction, keeping the task<->slot<->PR references symmetric. A failed
// validation rolls back the whole transition.

// Assignment is one task-slot-branch triple for AssignTasks.
type Assignment struct {
	TaskID string
	SlotID string
	Branch string
}

// AssignTask pairs a ready task with an available slot and records the
// branch on both sides (task ready→assigned, slot available→assigned).
func (s *Store) AssignTask(ctx context.Context, taskID, slotID, branch string) error {
	return s.AssignTasks(ctx, []Assignment{{TaskID: taskID, SlotID: slotID, Branch: branch}})
}

// AssignTasks applies a whole batch of pairings in one transaction: either
// every task is assigned or none is. A failed validation on any pairing
// rolls back the entire batch.
func (s *Store) AssignTasks(ctx context.Context, batch []Assignment) error {
	for _, a := range batch {
		if a.Branch == "" {
			return fmt.Errorf("%w: branch name", taskctlerrors.ErrEmptyValue)
		}
	}
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range batch {
			if err := assignTaskTx(ctx, tx, a, stamp(now)); err != nil {
				return err
			}
		}
		return nil
	})
}

// assignTaskTx validates and applies one pairing inside the batch
// transaction.
func assignTaskTx(ctx context.Context, tx *sql.Tx, a Assignment, ts string) error {
	task, err := taskTx(ctx, tx, a.TaskID)
	if err != nil {
		return err
	}
	slot, err := slotTx(ctx, tx, a.SlotID)
	if err != nil {
		return err
	}
	if err := lifecycle.ValidateTask(task.Status, constants.TaskStatusAssigned); err != nil {
		return err
	}
	if err := lifecycle.ValidateSlot(slot.Status, constants.SlotStatusAssigned); err != nil {
		return err
	}

	// The branch may be owned by this task (crash recovery) but never
	// by another.
	if err := checkBranchFree(ctx, tx, a.Branch, a.TaskID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET status = ?, branch_name = ?, slot_id = ?, updated_at = ?
		WHERE id = ?`,
		string(constants.TaskStatusAssigned), a.Branch, a.SlotID, ts, a.TaskID); err != nil {
		return mapError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE slots SET status = ?, task_id = ?, branch = ?, updated_at = ?
		WHERE id = ?`,
		string(constants.SlotStatusAssigned), a.TaskID, a.Branch, ts, a.SlotID); err != nil {
		return mapError(err)
	}
	return nil
}

// StartTask moves an assigned task and its slot into in_progress.
func (s *Store) StartTask(ctx context.Context, taskID string) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := taskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateTask(task.Status, constants.TaskStatusInProgress); err != nil {
			return err
		}
		if task.SlotID == "" {
			return fmt.Errorf("%w: task %s has no slot", taskctlerrors.ErrConflict, taskID)
		}
		slot, err := slotTx(ctx, tx, task.SlotID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateSlot(slot.Status, constants.SlotStatusInProgress); err != nil {
			return err
		}

		if err := setTaskStatus(ctx, tx, taskID, constants.TaskStatusInProgress, stamp(now)); err != nil {
			return err
		}
		return setSlotStatus(ctx, tx, task.SlotID, constants.SlotStatusInProgress, stamp(now))
	})
}

// MarkTaskPRCreated records the forge pull request and moves the task to
// pr_created and its slot to pr_pending, all in one transaction.
func (s *Store) MarkTaskPRCreated(ctx context.Context, taskID string, pr *domain.PullRequest) error {
	if pr == nil {
		return fmt.Errorf("%w: pull request", taskctlerrors.ErrEmptyValue)
	}
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := taskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateTask(task.Status, constants.TaskStatusPRCreated); err != nil {
			return err
		}
		if task.SlotID == "" {
			return fmt.Errorf("%w: task %s has no slot", taskctlerrors.ErrConflict, taskID)
		}
		slot, err := slotTx(ctx, tx, task.SlotID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateSlot(slot.Status, constants.SlotStatusPRPending); err != nil {
			return err
		}

		pr.TaskID = taskID
		if pr.ID == "" {
			pr.ID = id.New()
		}
		if pr.Status == "" {
			pr.Status = constants.PRStatusOpen
		}
		if pr.HeadBranch == "" {
			pr.HeadBranch = task.BranchName
		}
		pr.CreatedAt = now
		pr.UpdatedAt = now
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO prs (id, task_id, number, url, status, base_branch, head_branch, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pr.ID, pr.TaskID, pr.Number, pr.URL, string(pr.Status),
			pr.BaseBranch, pr.HeadBranch, stamp(now), stamp(now)); err != nil {
			return mapError(err)
		}

		if err := setTaskStatus(ctx, tx, taskID, constants.TaskStatusPRCreated, stamp(now)); err != nil {
			return err
		}
		return setSlotStatus(ctx, tx, task.SlotID, constants.SlotStatusPRPending, stamp(now))
	})
}

// MarkTaskInReview moves a pr_created task to in_review, mirroring forge
// review state. The slot stays in pr_pending.
func (s *Store) MarkTaskInReview(ctx context.Context, taskID string) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := taskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateTask(task.Status, constants.TaskStatusInReview); err != nil {
			return err
		}
		return setTaskStatus(ctx, tx, taskID, constants.TaskStatusInReview, stamp(now))
	})
}

// CompleteTask finishes a task whose PR merged: the task completes and drops
// its branch and slot references, the slot passes through completed back to
// available in the same transaction, and dependents whose prerequisites are
// now all completed are promoted pending→ready.
//
// Completion requires a merged PR unless force is set.
func (s *Store) CompleteTask(ctx context.Context, taskID string, force bool) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := taskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateTask(task.Status, constants.TaskStatusCompleted); err != nil {
			return err
		}

		if !force {
			var prStatus string
			err := tx.QueryRowContext(ctx,
				"SELECT status FROM prs WHERE task_id = ?", taskID).Scan(&prStatus)
			if err != nil {
				return fmt.Errorf("%w: task %s has no merged pull request", taskctlerrors.ErrMergeRequired, taskID)
			}
			if constants.PRStatus(prStatus) != constants.PRStatusMerged {
				return fmt.Errorf("%w: pull request for task %s is %s", taskctlerrors.ErrMergeRequired, taskID, prStatus)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?, branch_name = NULL, slot_id = NULL, updated_at = ?
			WHERE id = ?`,
			string(constants.TaskStatusCompleted), stamp(now), taskID); err != nil {
			return mapError(err)
		}

		if task.SlotID != "" {
			slot, err := slotTx(ctx, tx, task.SlotID)
			if err != nil {
				return err
			}
			if err := lifecycle.ValidateSlot(slot.Status, constants.SlotStatusCompleted); err != nil {
				return err
			}
			// completed is a transient state; the slot frees up immediately.
			if _, err := tx.ExecContext(ctx, `
				UPDATE slots SET status = ?, task_id = NULL, branch = NULL, updated_at = ?
				WHERE id = ?`,
				string(constants.SlotStatusAvailable), stamp(now), task.SlotID); err != nil {
				return mapError(err)
			}
		}

		return promoteReadyDependents(ctx, tx, taskID, stamp(now))
	})
}

// ReleaseSlot rolls an active pairing back: the slot returns to available
// and its task, if any, returns to ready with branch and slot cleared.
// Used for crash recovery and manual unsticking; also resets error slots.
func (s *Store) ReleaseSlot(ctx context.Context, slotID string) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		slot, err := slotTx(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateSlot(slot.Status, constants.SlotStatusAvailable); err != nil {
			return err
		}

		if slot.TaskID != "" {
			task, err := taskTx(ctx, tx, slot.TaskID)
			if err != nil {
				return err
			}
			if err := lifecycle.ValidateTask(task.Status, constants.TaskStatusReady); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE tasks SET status = ?, branch_name = NULL, slot_id = NULL, updated_at = ?
				WHERE id = ?`,
				string(constants.TaskStatusReady), stamp(now), slot.TaskID); err != nil {
				return mapError(err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE slots SET status = ?, task_id = NULL, branch = NULL, updated_at = ?
			WHERE id = ?`,
			string(constants.SlotStatusAvailable), stamp(now), slotID); err != nil {
			return mapError(err)
		}
		return nil
	})
}

// MarkSlotError moves an active slot into the error state, leaving its task
// untouched for manual inspection.
func (s *Store) MarkSlotError(ctx context.Context, slotID string) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		slot, err := slotTx(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateSlot(slot.Status, constants.SlotStatusError); err != nil {
			return err
		}
		return setSlotStatus(ctx, tx, slotID, constants.SlotStatusError, stamp(now))
	})
}

// BlockTask marks a pending or ready task blocked.
func (s *Store) BlockTask(ctx context.Context, taskID string) error {
	return s.transitionTaskOnly(ctx, taskID, constants.TaskStatusBlocked)
}

// ResetTask returns a blocked task to pending.
func (s *Store) ResetTask(ctx context.Context, taskID string) error {
	return s.transitionTaskOnly(ctx, taskID, constants.TaskStatusPending)
}

// PromoteTask moves a pending task to ready. The scheduler calls this when
// all of a task's dependencies have completed.
func (s *Store) PromoteTask(ctx context.Context, taskID string) error {
	return s.transitionTaskOnly(ctx, taskID, constants.TaskStatusReady)
}

// transitionTaskOnly applies a status-only task move with validation.
func (s *Store) transitionTaskOnly(ctx context.Context, taskID string, to constants.TaskStatus) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		task, err := taskTx(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidateTask(task.Status, to); err != nil {
			return err
		}
		return setTaskStatus(ctx, tx, taskID, to, stamp(now))
	})
}

// checkBranchFree rejects a branch already owned by a different task.
func checkBranchFree(ctx context.Context, tx *sql.Tx, branch, taskID string) error {
	var ownerID string
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM tasks WHERE branch_name = ?", branch).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return mapError(err)
	}
	if ownerID != taskID {
		return fmt.Errorf("%w: branch %s owned by task %s", taskctlerrors.ErrBranchOwned, branch, ownerID)
	}
	return nil
}

// promoteReadyDependents promotes every pending dependent of the completed
// task whose dependencies are now all completed.
func promoteReadyDependents(ctx context.Context, tx *sql.Tx, completedID, ts string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT t.id
		FROM task_deps d
		JOIN tasks t ON t.id = d.task_id
		WHERE d.depends_on_id = ? AND t.status = ?
		ORDER BY t.id`, completedID, string(constants.TaskStatusPending))
	if err != nil {
		return mapError(err)
	}
	var dependents []string
	for rows.Next() {
		var depID string
		if err := rows.Scan(&depID); err != nil {
			_ = rows.Close()
			return mapError(err)
		}
		dependents = append(dependents, depID)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return mapError(err)
	}

	for _, depID := range dependents {
		var unmet int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*)
			FROM task_deps d
			JOIN tasks p ON p.id = d.depends_on_id
			WHERE d.task_id = ? AND p.status != ?`,
			depID, string(constants.TaskStatusCompleted)).Scan(&unmet)
		if err != nil {
			return mapError(err)
		}
		if unmet > 0 {
			continue
		}
		if err := setTaskStatus(ctx, tx, depID, constants.TaskStatusReady, ts); err != nil {
			return err
		}
	}
	return nil
}

// setTaskStatus writes a task status without further checks; callers
// validate first.
func setTaskStatus(ctx context.Context, tx *sql.Tx, taskID string, to constants.TaskStatus, ts string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?",
		string(to), ts, taskID)
	return mapError(err)
}

// setSlotStatus writes a slot status without further checks; callers
// validate first.
func setSlotStatus(ctx context.Context, tx *sql.Tx, slotID string, to constants.SlotStatus, ts string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE slots SET status = ?, updated_at = ? WHERE id = ?",
		string(to), ts, slotID)
	return mapError(err)
}
