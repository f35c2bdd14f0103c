// Package planner turns a plan description into a validated task
// decomposition via an LLM CLI.
// This file persists a validated result through the store.
package planner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	"github.com/taskctl/taskctl/internal/graph"
	"github.com/taskctl/taskctl/internal/store"
)

// Generate drives the full planning flow for a draft plan: move it to
// planning, invoke the planner, persist the decomposition, and move the plan
// to ready. Any failure restores the plan to draft and removes tasks written
// before the failure, so a failed run leaves the plan re-plannable.
//
// req carries the optional prompt inputs (repo path, structure digest,
// context snippets, line target); title and description are taken from the
// plan itself.
func Generate(ctx context.Context, p Planner, s *store.Store, plan *domain.Plan, req Request, logger zerolog.Logger) error {
	if err := s.TransitionPlan(ctx, plan.ID, constants.PlanStatusPlanning); err != nil {
		return err
	}

	restore := func() {
		if err := s.TransitionPlan(ctx, plan.ID, constants.PlanStatusDraft); err != nil {
			logger.Warn().Err(err).Str("plan_id", plan.ID).Msg("restore draft failed")
		}
	}

	req.Title = plan.Title
	req.Description = plan.Description
	result, err := p.GeneratePlan(ctx, req)
	if err != nil {
		restore()
		return err
	}

	if err := Persist(ctx, s, plan.ID, result); err != nil {
		restore()
		return err
	}

	if err := s.TransitionPlan(ctx, plan.ID, constants.PlanStatusReady); err != nil {
		restore()
		return err
	}

	logger.Info().Str("plan_id", plan.ID).Int("tasks", len(result.Tasks)).Msg("plan ready")
	return nil
}

// Persist writes a validated decomposition under the plan in two passes.
//
// Levels are computed over the planner-local ids first, which also rejects
// cyclic decompositions before any row is written. Pass one inserts tasks in
// input order (ready at level 0, pending otherwise) while recording the
// local-to-store id translation; pass two inserts the edges through that
// map. On failure the tasks inserted so far are removed.
func Persist(ctx context.Context, s *store.Store, planID string, result *Result) (err error) {
	locals := make([]*domain.Task, 0, len(result.Tasks))
	var edges []domain.Dependency
	for _, spec := range result.Tasks {
		locals = append(locals, &domain.Task{ID: spec.ID, Title: spec.Title, Status: constants.TaskStatusPending})
		for _, dep := range spec.DependsOn {
			edges = append(edges, domain.Dependency{TaskID: spec.ID, DependsOnID: dep})
		}
	}

	g, err := graph.Build(locals, edges)
	if err != nil {
		return fmt.Errorf("plan decomposition invalid: %w", err)
	}

	var inserted []string
	defer func() {
		if err == nil {
			return
		}
		for _, taskID := range inserted {
			_ = s.DeleteTask(ctx, taskID)
		}
	}()

	translate := make(map[string]string, len(result.Tasks))
	for _, spec := range result.Tasks {
		level := g.Level(spec.ID)
		status := constants.TaskStatusPending
		if level == 0 {
			status = constants.TaskStatusReady
		}
		task := &domain.Task{
			PlanID:         planID,
			Title:          spec.Title,
			Description:    spec.Description,
			Status:         status,
			Level:          level,
			EstimatedLines: spec.EstimatedLines,
		}
		if err = s.CreateTask(ctx, task); err != nil {
			return fmt.Errorf("persist task %s: %w", spec.ID, err)
		}
		inserted = append(inserted, task.ID)
		translate[spec.ID] = task.ID
	}

	for _, edge := range edges {
		dep := domain.Dependency{
			TaskID:      translate[edge.TaskID],
			DependsOnID: translate[edge.DependsOnID],
		}
		if err = s.CreateDependency(ctx, dep); err != nil {
			return fmt.Errorf("persist edge %s -> %s: %w", edge.TaskID, edge.DependsOnID, err)
		}
	}

	return nil
}
