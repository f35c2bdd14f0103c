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

const prColumns = "id, task_id, number, url, status, base_branch, head_branch, created_at, updated_at"

// scanPR reads one pull request row.
func scanPR(row rowScanner) (*domain.PullRequest, error) {
	var (
		pr        domain.PullRequest
		status    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&pr.ID, &pr.TaskID, &pr.Number, &pr.URL, &status,
		&pr.BaseBranch, &pr.HeadBranch, &createdAt, &updatedAt); err != nil {
		return nil, mapError(err)
	}
	pr.Status = constants.PRStatus(status)
	pr.CreatedAt = parseStamp(createdAt)
	pr.UpdatedAt = parseStamp(updatedAt)
	return &pr, nil
}

// CreatePR records a forge pull request for a task. A second PR for the same
// task violates the UNIQUE constraint and surfaces as ErrConflict.
func (s *Store) CreatePR(ctx context.Context, pr *domain.PullRequest) error {
	if pr.TaskID == "" {
		return fmt.Errorf("%w: pr task_id", taskctlerrors.ErrEmptyValue)
	}
	if pr.ID == "" {
		pr.ID = id.New()
	}
	if pr.Status == "" {
		pr.Status = constants.PRStatusOpen
	}

	now := s.now()
	pr.CreatedAt = now
	pr.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO prs (id, task_id, number, url, status, base_branch, head_branch, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			pr.ID, pr.TaskID, pr.Number, pr.URL, string(pr.Status),
			pr.BaseBranch, pr.HeadBranch, stamp(now), stamp(now))
		return mapError(err)
	})
}

// GetPR returns the pull request with the exact id.
func (s *Store) GetPR(ctx context.Context, prID string) (*domain.PullRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+prColumns+" FROM prs WHERE id = ?", prID)
	pr, err := scanPR(row)
	if err != nil {
		return nil, fmt.Errorf("get pr %s: %w", prID, err)
	}
	return pr, nil
}

// GetPRByTask returns the pull request bound to a task, if any.
func (s *Store) GetPRByTask(ctx context.Context, taskID string) (*domain.PullRequest, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+prColumns+" FROM prs WHERE task_id = ?", taskID)
	pr, err := scanPR(row)
	if err != nil {
		return nil, fmt.Errorf("get pr for task %s: %w", taskID, err)
	}
	return pr, nil
}

// ListPRsByPlan returns every pull request of a plan's tasks, in id order.
func (s *Store) ListPRsByPlan(ctx context.Context, planID string) ([]*domain.PullRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.task_id, p.number, p.url, p.status, p.base_branch, p.head_branch, p.created_at, p.updated_at
		FROM prs p
		JOIN tasks t ON t.id = p.task_id
		WHERE t.plan_id = ?
		ORDER BY p.id`, planID)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var prs []*domain.PullRequest
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, err
		}
		prs = append(prs, pr)
	}
	return prs, mapError(rows.Err())
}

// TransitionPR moves the pull request to a new status, validating the edge
// against the PR lifecycle inside the transaction that applies it.
func (s *Store) TransitionPR(ctx context.Context, prID string, to constants.PRStatus) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, "SELECT status FROM prs WHERE id = ?", prID).Scan(&status)
		if err != nil {
			return fmt.Errorf("pr %s: %w", prID, mapError(err))
		}
		if err := lifecycle.ValidatePR(constants.PRStatus(status), to); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE prs SET status = ?, updated_at = ? WHERE id = ?",
			string(to), stamp(now), prID)
		return mapError(err)
	})
}
