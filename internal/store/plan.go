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

const planColumns = "id, project_id, title, description, source_branch, status, created_at, updated_at"

// scanPlan reads one plan row.
func scanPlan(row rowScanner) (*domain.Plan, error) {
	var (
		p           domain.Plan
		description sql.NullString
		status      string
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Title, &description,
		&p.SourceBranch, &status, &createdAt, &updatedAt); err != nil {
		return nil, mapError(err)
	}
	p.Description = textOrEmpty(description)
	p.Status = constants.PlanStatus(status)
	p.CreatedAt = parseStamp(createdAt)
	p.UpdatedAt = parseStamp(updatedAt)
	return &p, nil
}

// CreatePlan inserts a new plan in draft status unless one is set.
func (s *Store) CreatePlan(ctx context.Context, p *domain.Plan) error {
	if p.Title == "" {
		return fmt.Errorf("%w: plan title", taskctlerrors.ErrEmptyValue)
	}
	if p.ProjectID == "" {
		return fmt.Errorf("%w: plan project_id", taskctlerrors.ErrEmptyValue)
	}
	if p.ID == "" {
		p.ID = id.New()
	}
	if p.Status == "" {
		p.Status = constants.PlanStatusDraft
	}

	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plans (id, project_id, title, description, source_branch, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ProjectID, p.Title, nullable(p.Description), p.SourceBranch,
			string(p.Status), stamp(now), stamp(now))
		return mapError(err)
	})
}

// GetPlan returns the plan with the exact id.
func (s *Store) GetPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+planColumns+" FROM plans WHERE id = ?", planID)
	p, err := scanPlan(row)
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", planID, err)
	}
	return p, nil
}

// ListPlans returns plans, optionally filtered by project and status.
// Empty filters match everything. Ordered by id (creation order).
func (s *Store) ListPlans(ctx context.Context, projectID string, status constants.PlanStatus) ([]*domain.Plan, error) {
	query := "SELECT " + planColumns + " FROM plans WHERE 1=1"
	var args []any
	if projectID != "" {
		query += " AND project_id = ?"
		args = append(args, projectID)
	}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var plans []*domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, mapError(rows.Err())
}

// UpdatePlan persists mutable plan fields without changing status.
func (s *Store) UpdatePlan(ctx context.Context, p *domain.Plan) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE plans SET title = ?, description = ?, source_branch = ?, updated_at = ?
			WHERE id = ?`,
			p.Title, nullable(p.Description), p.SourceBranch, stamp(now), p.ID)
		if err != nil {
			return mapError(err)
		}
		if err := requireRow(res, "plan", p.ID); err != nil {
			return err
		}
		p.UpdatedAt = now
		return nil
	})
}

// TransitionPlan moves the plan to a new status, validating the edge against
// the plan lifecycle inside the transaction that applies it.
func (s *Store) TransitionPlan(ctx context.Context, planID string, to constants.PlanStatus) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		from, err := planStatusTx(ctx, tx, planID)
		if err != nil {
			return err
		}
		if err := lifecycle.ValidatePlan(from, to); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE plans SET status = ?, updated_at = ? WHERE id = ?",
			string(to), stamp(now), planID)
		return mapError(err)
	})
}

// DeletePlan removes the plan; tasks, edges, and PRs cascade.
func (s *Store) DeletePlan(ctx context.Context, planID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM plans WHERE id = ?", planID)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res, "plan", planID)
	})
}

// planStatusTx reads the current plan status inside a transaction.
func planStatusTx(ctx context.Context, tx *sql.Tx, planID string) (constants.PlanStatus, error) {
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM plans WHERE id = ?", planID).Scan(&status)
	if err != nil {
		return "", fmt.Errorf("plan %s: %w", planID, mapError(err))
	}
	return constants.PlanStatus(status), nil
}
