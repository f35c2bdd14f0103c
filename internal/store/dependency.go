package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// CreateDependency records that a task depends on another. Self-edges are
// rejected here; duplicates surface as ErrConflict via the UNIQUE constraint.
// Cycle detection is the graph package's job before edges are persisted.
func (s *Store) CreateDependency(ctx context.Context, d domain.Dependency) error {
	if d.TaskID == d.DependsOnID {
		return fmt.Errorf("%w: %s", taskctlerrors.ErrSelfDependency, d.TaskID)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO task_deps (task_id, depends_on_id) VALUES (?, ?)",
			d.TaskID, d.DependsOnID)
		return mapError(err)
	})
}

// ListDependencies returns every edge of a plan, ordered by (task_id,
// depends_on_id) for deterministic graph builds.
func (s *Store) ListDependencies(ctx context.Context, planID string) ([]domain.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.task_id, d.depends_on_id
		FROM task_deps d
		JOIN tasks t ON t.id = d.task_id
		WHERE t.plan_id = ?
		ORDER BY d.task_id, d.depends_on_id`, planID)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var edges []domain.Dependency
	for rows.Next() {
		var d domain.Dependency
		if err := rows.Scan(&d.TaskID, &d.DependsOnID); err != nil {
			return nil, mapError(err)
		}
		edges = append(edges, d)
	}
	return edges, mapError(rows.Err())
}

// GetDependencies returns the tasks the given task depends on, in id order.
func (s *Store) GetDependencies(ctx context.Context, taskID string) ([]*domain.Task, error) {
	return s.dependencyNeighbors(ctx, `
		SELECT `+prefixedTaskColumns("t")+`
		FROM task_deps d
		JOIN tasks t ON t.id = d.depends_on_id
		WHERE d.task_id = ?
		ORDER BY t.id`, taskID)
}

// GetDependents returns the tasks that depend on the given task, in id order.
func (s *Store) GetDependents(ctx context.Context, taskID string) ([]*domain.Task, error) {
	return s.dependencyNeighbors(ctx, `
		SELECT `+prefixedTaskColumns("t")+`
		FROM task_deps d
		JOIN tasks t ON t.id = d.task_id
		WHERE d.depends_on_id = ?
		ORDER BY t.id`, taskID)
}

func (s *Store) dependencyNeighbors(ctx context.Context, query, taskID string) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, taskID)
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

// DeleteDependency removes one edge.
func (s *Store) DeleteDependency(ctx context.Context, d domain.Dependency) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM task_deps WHERE task_id = ? AND depends_on_id = ?",
			d.TaskID, d.DependsOnID)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res, "dependency", d.TaskID+"->"+d.DependsOnID)
	})
}

// prefixedTaskColumns qualifies the task column list with a table alias.
func prefixedTaskColumns(alias string) string {
	return alias + ".id, " + alias + ".plan_id, " + alias + ".title, " + alias + ".description, " +
		alias + ".status, " + alias + ".level, " + alias + ".estimated_lines, " +
		alias + ".branch_name, " + alias + ".slot_id, " + alias + ".session_id, " +
		alias + ".created_at, " + alias + ".updated_at"
}
