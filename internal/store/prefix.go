package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/id"
)

// Prefix lookup: every user-facing reference accepts a unique id prefix.
// Zero matches is ErrNotFound; two or more is ErrAmbiguous listing the
// short ids of the candidates so the caller can disambiguate.

// resolvePrefix returns the full ids matching a prefix in one table.
// ULIDs are uppercase, so the prefix is normalised before matching.
func (s *Store) resolvePrefix(ctx context.Context, table, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: id prefix", taskctlerrors.ErrEmptyValue)
	}
	prefix = strings.ToUpper(prefix)

	// Three rows are enough to distinguish unique from ambiguous while
	// keeping the error message bounded.
	rows, err := s.db.QueryContext(ctx,
		//nolint:gosec // table is a compile-time constant, never user input
		"SELECT id FROM "+table+" WHERE id LIKE ? || '%' ORDER BY id LIMIT 3", prefix)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var matched string
		if err := rows.Scan(&matched); err != nil {
			return nil, mapError(err)
		}
		ids = append(ids, matched)
	}
	return ids, mapError(rows.Err())
}

// matchPrefix narrows resolvePrefix results to exactly one id.
func (s *Store) matchPrefix(ctx context.Context, table, entity, prefix string) (string, error) {
	ids, err := s.resolvePrefix(ctx, table, prefix)
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%s %q: %w", entity, prefix, taskctlerrors.ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		shorts := make([]string, len(ids))
		for i, full := range ids {
			shorts[i] = id.Short(full)
		}
		return "", fmt.Errorf("%s %q matches %s: %w",
			entity, prefix, strings.Join(shorts, ", "), taskctlerrors.ErrAmbiguous)
	}
}

// FindProjectByPrefix returns the single project whose id starts with prefix.
func (s *Store) FindProjectByPrefix(ctx context.Context, prefix string) (*domain.Project, error) {
	projectID, err := s.matchPrefix(ctx, "projects", "project", prefix)
	if err != nil {
		return nil, err
	}
	return s.GetProject(ctx, projectID)
}

// FindPlanByPrefix returns the single plan whose id starts with prefix.
func (s *Store) FindPlanByPrefix(ctx context.Context, prefix string) (*domain.Plan, error) {
	planID, err := s.matchPrefix(ctx, "plans", "plan", prefix)
	if err != nil {
		return nil, err
	}
	return s.GetPlan(ctx, planID)
}

// FindTaskByPrefix returns the single task whose id starts with prefix.
func (s *Store) FindTaskByPrefix(ctx context.Context, prefix string) (*domain.Task, error) {
	taskID, err := s.matchPrefix(ctx, "tasks", "task", prefix)
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, taskID)
}
