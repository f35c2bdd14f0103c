package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/id"
)

const taskColumns = "id, plan_id, title, description, status, level, estimated_lines, " +
	"branch_name, slot_id, session_id, created_at, updated_at"

// scanTask reads one task row.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t              domain.Task
		status         string
		estimatedLines sql.NullInt64
		branchName     sql.NullString
		slotID         sql.NullString
		sessionID      sql.NullString
		createdAt      string
		updatedAt      string
	)
	if err := row.Scan(&t.ID, &t.PlanID, &t.Title, &t.Description, &status, &t.Level,
		&estimatedLines, &branchName, &slotID, &sessionID, &createdAt, &updatedAt); err != nil {
		return nil, mapError(err)
	}
	t.Status = constants.TaskStatus(status)
	t.EstimatedLines = intOrZero(estimatedLines)
	t.BranchName = textOrEmpty(branchName)
	t.SlotID = textOrEmpty(slotID)
	t.SessionID = textOrEmpty(sessionID)
	t.CreatedAt = parseStamp(createdAt)
	t.UpdatedAt = parseStamp(updatedAt)
	return &t, nil
}

// CreateTask inserts a new task in pending status unless one is set.
func (s *Store) CreateTask(ctx context.Context, t *domain.Task) error {
	if t.Title == "" {
		return fmt.Errorf("%w: task title", taskctlerrors.ErrEmptyValue)
	}
	if t.PlanID == "" {
		return fmt.Errorf("%w: task plan_id", taskctlerrors.ErrEmptyValue)
	}
	if t.ID == "" {
		t.ID = id.New()
	}
	if t.Status == "" {
		t.Status = constants.TaskStatusPending
	}

	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, plan_id, title, description, status, level, estimated_lines,
				branch_name, slot_id, session_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.PlanID, t.Title, t.Description, string(t.Status), t.Level,
			nullableInt(t.EstimatedLines), nullable(t.BranchName), nullable(t.SlotID),
			nullable(t.SessionID), stamp(now), stamp(now))
		return mapError(err)
	})
}

// GetTask returns the task with the exact id.
func (s *Store) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", taskID)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}
	return t, nil
}

// GetTaskByBranchName returns the task that owns the branch, if any.
func (s *Store) GetTaskByBranchName(ctx context.Context, branch string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE branch_name = ?", branch)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task for branch %s: %w", branch, err)
	}
	return t, nil
}

// GetTaskBySessionID returns the task attached to the session handle, if any.
func (s *Store) GetTaskBySessionID(ctx context.Context, sessionID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE session_id = ?", sessionID)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task for session %s: %w", sessionID, err)
	}
	return t, nil
}

// TaskFilter narrows ListTasks. Zero values match everything; Level filters
// only when HasLevel is set, so level 0 remains expressible.
type TaskFilter struct {
	PlanID   string
	Status   constants.TaskStatus
	Level    int
	HasLevel bool
}

// ListTasks returns tasks matching the filter, ordered by (level asc, id asc).
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks WHERE 1=1"
	var args []any
	if filter.PlanID != "" {
		query += " AND plan_id = ?"
		args = append(args, filter.PlanID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.HasLevel {
		query += " AND level = ?"
		args = append(args, filter.Level)
	}
	query += " ORDER BY level, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, mapError(rows.Err())
}

// ListTasksByPlan returns every task of a plan in (level asc, id asc) order.
func (s *Store) ListTasksByPlan(ctx context.Context, planID string) ([]*domain.Task, error) {
	return s.ListTasks(ctx, TaskFilter{PlanID: planID})
}

// UpdateTask persists mutable task fields without changing status or
// slot/branch bindings. Status moves go through the transition methods.
func (s *Store) UpdateTask(ctx context.Context, t *domain.Task) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET title = ?, description = ?, level = ?, estimated_lines = ?, updated_at = ?
			WHERE id = ?`,
			t.Title, t.Description, t.Level, nullableInt(t.EstimatedLines), stamp(now), t.ID)
		if err != nil {
			return mapError(err)
		}
		if err := requireRow(res, "task", t.ID); err != nil {
			return err
		}
		t.UpdatedAt = now
		return nil
	})
}

// AttachSession records the out-of-band session handle on a task. Only one
// task may carry a given session; re-attaching moves the handle.
func (s *Store) AttachSession(ctx context.Context, taskID, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id", taskctlerrors.ErrEmptyValue)
	}
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"UPDATE tasks SET session_id = NULL, updated_at = ? WHERE session_id = ?",
			stamp(now), sessionID); err != nil {
			return mapError(err)
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE tasks SET session_id = ?, updated_at = ? WHERE id = ?",
			sessionID, stamp(now), taskID)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res, "task", taskID)
	})
}

// DeleteTask removes the task; dependency edges on either side and its PR
// cascade.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res, "task", taskID)
	})
}

// taskTx reads one task row inside a transaction.
func taskTx(ctx context.Context, tx *sql.Tx, taskID string) (*domain.Task, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", taskID)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", taskID, err)
	}
	return t, nil
}
