// Package query provides read-only projections over the store for the CLI
// and the MCP server. Every entity reference accepts a unique id prefix.
// Projections never mutate; all writes go through the store and scheduler.
package query

import (
	"context"
	"errors"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/store"
)

// Service answers read queries against one store.
type Service struct {
	store *store.Store
}

// New creates a query Service over the store.
func New(st *store.Store) *Service {
	return &Service{store: st}
}

// TaskRef is the compact neighbor representation used in task projections.
type TaskRef struct {
	ID     string               `json:"id"`
	Title  string               `json:"title"`
	Status constants.TaskStatus `json:"status"`
}

// PlanDetail is the full plan projection: the plan, every task, every
// dependency edge, and the computed progress.
type PlanDetail struct {
	Plan     *domain.Plan        `json:"plan"`
	Tasks    []*domain.Task      `json:"tasks"`
	Edges    []domain.Dependency `json:"edges"`
	Progress domain.Progress     `json:"progress"`
}

// TaskDetail is a task with its plan header, dependency neighbors, and PR.
// PR is nil until one exists.
type TaskDetail struct {
	Task       *domain.Task        `json:"task"`
	Plan       *domain.Plan        `json:"plan"`
	DependsOn  []TaskRef           `json:"depends_on"`
	Dependents []TaskRef           `json:"dependents"`
	PR         *domain.PullRequest `json:"pr,omitempty"`
}

// PlanWithProgress resolves a plan reference and assembles the full
// projection: tasks in (level asc, id asc) order, dependency edges, and
// progress computed from the current task statuses.
func (q *Service) PlanWithProgress(ctx context.Context, planRef string) (*PlanDetail, error) {
	plan, err := q.store.FindPlanByPrefix(ctx, planRef)
	if err != nil {
		return nil, err
	}
	tasks, err := q.store.ListTasksByPlan(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	edges, err := q.store.ListDependencies(ctx, plan.ID)
	if err != nil {
		return nil, err
	}
	return &PlanDetail{Plan: plan, Tasks: tasks, Edges: edges, Progress: progressOf(tasks)}, nil
}

// TaskWithNeighbors resolves a task reference and loads its plan header,
// dependency neighbors, and PR (nil when none exists yet).
func (q *Service) TaskWithNeighbors(ctx context.Context, taskRef string) (*TaskDetail, error) {
	task, err := q.store.FindTaskByPrefix(ctx, taskRef)
	if err != nil {
		return nil, err
	}
	return q.detail(ctx, task)
}

// CurrentTask finds the task an implementer session is working on: by
// session handle first, then by branch name. Both misses return (nil, nil)
// rather than an error so callers can render "no current task".
func (q *Service) CurrentTask(ctx context.Context, branch, session string) (*TaskDetail, error) {
	if session != "" {
		task, err := q.store.GetTaskBySessionID(ctx, session)
		if err == nil {
			return q.detail(ctx, task)
		}
		if !errors.Is(err, taskctlerrors.ErrNotFound) {
			return nil, err
		}
	}
	if branch != "" {
		task, err := q.store.GetTaskByBranchName(ctx, branch)
		if err == nil {
			return q.detail(ctx, task)
		}
		if !errors.Is(err, taskctlerrors.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// TaskListFilter narrows Tasks. PlanRef accepts an id prefix.
type TaskListFilter struct {
	PlanRef  string
	Status   constants.TaskStatus
	Level    int
	HasLevel bool
}

// Tasks lists tasks in (level asc, id asc) order, optionally narrowed by
// plan, status, and level.
func (q *Service) Tasks(ctx context.Context, filter TaskListFilter) ([]*domain.Task, error) {
	sf := store.TaskFilter{Status: filter.Status, Level: filter.Level, HasLevel: filter.HasLevel}
	if filter.PlanRef != "" {
		plan, err := q.store.FindPlanByPrefix(ctx, filter.PlanRef)
		if err != nil {
			return nil, err
		}
		sf.PlanID = plan.ID
	}
	return q.store.ListTasks(ctx, sf)
}

// PlanListFilter narrows Plans. ProjectRef accepts an id prefix.
type PlanListFilter struct {
	ProjectRef string
	Status     constants.PlanStatus
}

// Plans lists plans in id order, optionally narrowed by project and status.
func (q *Service) Plans(ctx context.Context, filter PlanListFilter) ([]*domain.Plan, error) {
	projectID := ""
	if filter.ProjectRef != "" {
		project, err := q.store.FindProjectByPrefix(ctx, filter.ProjectRef)
		if err != nil {
			return nil, err
		}
		projectID = project.ID
	}
	return q.store.ListPlans(ctx, projectID, filter.Status)
}

// detail assembles the full task projection.
func (q *Service) detail(ctx context.Context, task *domain.Task) (*TaskDetail, error) {
	plan, err := q.store.GetPlan(ctx, task.PlanID)
	if err != nil {
		return nil, err
	}
	deps, err := q.store.GetDependencies(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	dependents, err := q.store.GetDependents(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	d := &TaskDetail{
		Task:       task,
		Plan:       plan,
		DependsOn:  refs(deps),
		Dependents: refs(dependents),
	}

	pr, err := q.store.GetPRByTask(ctx, task.ID)
	switch {
	case err == nil:
		d.PR = pr
	case !errors.Is(err, taskctlerrors.ErrNotFound):
		return nil, err
	}
	return d, nil
}

func refs(tasks []*domain.Task) []TaskRef {
	out := make([]TaskRef, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskRef{ID: t.ID, Title: t.Title, Status: t.Status})
	}
	return out
}

// progressOf computes the progress tuple from a task snapshot. An empty
// plan reports zero percent.
func progressOf(tasks []*domain.Task) domain.Progress {
	p := domain.Progress{Total: len(tasks)}
	for _, task := range tasks {
		switch {
		case task.Status == constants.TaskStatusCompleted:
			p.Completed++
		case task.IsActive():
			p.InProgress++
		default:
			p.Pending++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}
