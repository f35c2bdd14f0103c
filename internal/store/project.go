package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/id"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const projectColumns = "id, name, repo_path, remote_url, main_branch, max_concurrent, created_at, updated_at"

// scanProject reads one project row.
func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p             domain.Project
		remoteURL     sql.NullString
		maxConcurrent sql.NullInt64
		createdAt     string
		updatedAt     string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.RepoPath, &remoteURL, &p.MainBranch,
		&maxConcurrent, &createdAt, &updatedAt); err != nil {
		return nil, mapError(err)
	}
	p.RemoteURL = textOrEmpty(remoteURL)
	p.MaxConcurrent = intOrZero(maxConcurrent)
	p.CreatedAt = parseStamp(createdAt)
	p.UpdatedAt = parseStamp(updatedAt)
	return &p, nil
}

// CreateProject inserts a new project. A missing ID is generated; timestamps
// are always set by the store.
func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	if p.Name == "" {
		return fmt.Errorf("%w: project name", taskctlerrors.ErrEmptyValue)
	}
	if p.RepoPath == "" {
		return fmt.Errorf("%w: project repo_path", taskctlerrors.ErrEmptyValue)
	}
	if p.ID == "" {
		p.ID = id.New()
	}

	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, repo_path, remote_url, main_branch, max_concurrent, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.RepoPath, nullable(p.RemoteURL), p.MainBranch,
			nullableInt(p.MaxConcurrent), stamp(now), stamp(now))
		return mapError(err)
	})
}

// GetProject returns the project with the exact id.
func (s *Store) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", projectID)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return p, nil
}

// GetProjectByRepoPath returns the project registered for the repository path.
func (s *Store) GetProjectByRepoPath(ctx context.Context, repoPath string) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE repo_path = ?", repoPath)
	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("get project for %s: %w", repoPath, err)
	}
	return p, nil
}

// ListProjects returns all projects ordered by creation.
func (s *Store) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+projectColumns+" FROM projects ORDER BY id")
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, mapError(rows.Err())
}

// UpdateProject persists mutable project fields.
func (s *Store) UpdateProject(ctx context.Context, p *domain.Project) error {
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE projects SET name = ?, remote_url = ?, main_branch = ?, max_concurrent = ?, updated_at = ?
			WHERE id = ?`,
			p.Name, nullable(p.RemoteURL), p.MainBranch, nullableInt(p.MaxConcurrent),
			stamp(now), p.ID)
		if err != nil {
			return mapError(err)
		}
		if err := requireRow(res, "project", p.ID); err != nil {
			return err
		}
		p.UpdatedAt = now
		return nil
	})
}

// DeleteProject removes the project; plans and slots cascade.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", projectID)
		if err != nil {
			return mapError(err)
		}
		return requireRow(res, "project", projectID)
	})
}

// requireRow converts a zero-row update/delete into ErrNotFound.
func requireRow(res sql.Result, entity, entityID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, entityID, taskctlerrors.ErrNotFound)
	}
	return nil
}
