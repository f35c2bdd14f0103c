// Package scheduler coordinates parallel task execution for one plan: it
// pairs ready tasks with available slots, prepares their branches, and
// drives task, slot, plan, and PR state forward as work completes.
//
// A Scheduler is stateless between invocations; all durable state lives in
// the store. Initialize loads a point-in-time State for one plan, and the
// remaining operations take that State and keep it consistent with the
// store as they mutate.
package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/forge"
	"github.com/taskctl/taskctl/internal/git"
	"github.com/taskctl/taskctl/internal/graph"
	"github.com/taskctl/taskctl/internal/id"
	"github.com/taskctl/taskctl/internal/store"
)

// Scheduler wires the store and the external adapters together.
type Scheduler struct {
	store  *store.Store
	git    git.Runner
	forge  forge.Runner
	logger zerolog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger for scheduling operations.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithForge sets the forge adapter; required for Sync.
func WithForge(forgeRunner forge.Runner) Option {
	return func(s *Scheduler) {
		s.forge = forgeRunner
	}
}

// New creates a Scheduler over the store and git adapter.
func New(st *store.Store, gitRunner git.Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  st,
		git:    gitRunner,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State is the point-in-time scheduling view of one plan.
type State struct {
	// Project owns the plan and the slot pool.
	Project *domain.Project

	// Plan is the plan being scheduled.
	Plan *domain.Plan

	// Graph is the dependency graph built from the plan's tasks.
	Graph *graph.Graph

	// Tasks indexes the plan's tasks by id.
	Tasks map[string]*domain.Task

	// Completed holds ids of completed tasks.
	Completed map[string]bool

	// InProgress holds ids of tasks in an active state
	// (assigned, in_progress, pr_created, in_review).
	InProgress map[string]bool

	// Assignment maps active task ids to their slot ids.
	Assignment map[string]string
}

// MaxConcurrent returns the effective concurrency cap for the project.
func (st *State) MaxConcurrent() int {
	if st.Project.MaxConcurrent > 0 {
		return st.Project.MaxConcurrent
	}
	return constants.DefaultMaxConcurrent
}

// TaskBranch returns the deterministic branch name for a task in this plan.
func (st *State) TaskBranch(task *domain.Task) string {
	return git.BranchName(id.Short(st.Plan.ID), id.Short(task.ID), task.Title)
}

// Initialize loads the scheduling state for a plan and reconciles it
// against the repository: a task still ready whose deterministic branch
// already exists (a previous invocation crashed between branch creation and
// the store write) is re-paired with an available slot.
func (s *Scheduler) Initialize(ctx context.Context, planID string) (*State, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, plan.ProjectID)
	if err != nil {
		return nil, err
	}

	state := &State{Project: project, Plan: plan}
	if err := s.reload(ctx, state); err != nil {
		return nil, err
	}

	if err := s.reconcile(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// reload rebuilds the graph and partitions from the store.
func (s *Scheduler) reload(ctx context.Context, state *State) error {
	tasks, err := s.store.ListTasksByPlan(ctx, state.Plan.ID)
	if err != nil {
		return err
	}
	edges, err := s.store.ListDependencies(ctx, state.Plan.ID)
	if err != nil {
		return err
	}

	g, err := graph.Build(tasks, edges)
	if err != nil {
		return fmt.Errorf("plan %s: %w", state.Plan.ID, err)
	}

	state.Graph = g
	state.Tasks = make(map[string]*domain.Task, len(tasks))
	state.Completed = make(map[string]bool)
	state.InProgress = make(map[string]bool)
	state.Assignment = make(map[string]string)
	for _, task := range tasks {
		state.Tasks[task.ID] = task
		switch {
		case task.Status == constants.TaskStatusCompleted:
			state.Completed[task.ID] = true
		case task.IsActive():
			state.InProgress[task.ID] = true
			if task.SlotID != "" {
				state.Assignment[task.ID] = task.SlotID
			}
		}
	}
	return nil
}

// reconcile re-pairs ready tasks whose branch survived a crashed
// invocation. The branch is adopted only if the store confirms no other
// task owns it; a branch owned by another task is left alone.
func (s *Scheduler) reconcile(ctx context.Context, state *State) error {
	for _, taskID := range state.Graph.TaskIDs() {
		task := state.Tasks[taskID]
		if task.Status != constants.TaskStatusReady {
			continue
		}
		branch := state.TaskBranch(task)
		exists, err := s.git.BranchExists(ctx, state.Project.RepoPath, branch)
		if err != nil || !exists {
			continue
		}
		if owner, err := s.store.GetTaskByBranchName(ctx, branch); err == nil && owner.ID != task.ID {
			continue
		}

		slots, err := s.store.ListAvailableSlots(ctx, state.Project.ID)
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			return nil
		}
		slot := slots[0]
		if err := s.store.AssignTask(ctx, task.ID, slot.ID, branch); err != nil {
			return fmt.Errorf("reconcile task %s: %w", task.ID, err)
		}
		s.logger.Info().Str("task_id", task.ID).Str("branch", branch).
			Str("slot", slot.Name).Msg("recovered orphaned branch")

		task.Status = constants.TaskStatusAssigned
		task.SlotID = slot.ID
		task.BranchName = branch
		state.InProgress[task.ID] = true
		state.Assignment[task.ID] = slot.ID
	}
	return nil
}

// Refresh reloads the state from the store, keeping the plan row current.
func (s *Scheduler) Refresh(ctx context.Context, state *State) error {
	plan, err := s.store.GetPlan(ctx, state.Plan.ID)
	if err != nil {
		return err
	}
	state.Plan = plan
	return s.reload(ctx, state)
}

// HasWorkAvailable reports whether any task could be scheduled now.
func (st *State) HasWorkAvailable() bool {
	for _, taskID := range st.Graph.ReadySet(st.Completed) {
		if !st.InProgress[taskID] {
			return true
		}
	}
	return false
}

// IsComplete reports whether every task in the plan has completed.
func (st *State) IsComplete() bool {
	return st.Graph.Size() > 0 && len(st.Completed) == st.Graph.Size()
}

// Progress summarises plan completion.
func (st *State) Progress() domain.Progress {
	p := domain.Progress{Total: st.Graph.Size()}
	for _, task := range st.Tasks {
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

// CriticalPath exposes the longest dependency chain of the plan.
func (st *State) CriticalPath() []string {
	return st.Graph.CriticalPath()
}

// taskOrFail returns the state's task or ErrNotFound.
func (st *State) taskOrFail(taskID string) (*domain.Task, error) {
	task, ok := st.Tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s not in plan %s: %w", taskID, st.Plan.ID, taskctlerrors.ErrNotFound)
	}
	return task, nil
}
