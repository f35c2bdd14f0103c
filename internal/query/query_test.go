package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/store"
)

type fixture struct {
	store   *store.Store
	svc     *Service
	project *domain.Project
	plan    *domain.Plan
	a, b, c *domain.Task
}

// newFixture seeds one plan with a chain a -> b -> c, a completed, b in
// progress on a slot, c pending.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "taskctl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	project := &domain.Project{Name: "demo", RepoPath: t.TempDir(), MainBranch: "main"}
	require.NoError(t, s.CreateProject(ctx, project))
	plan := &domain.Plan{ProjectID: project.ID, Title: "demo plan", SourceBranch: "main"}
	require.NoError(t, s.CreatePlan(ctx, plan))

	a := &domain.Task{PlanID: plan.ID, Title: "extract parser", Description: "x",
		Status: constants.TaskStatusCompleted, Level: 0}
	b := &domain.Task{PlanID: plan.ID, Title: "wire cache", Description: "x",
		Status: constants.TaskStatusReady, Level: 1}
	c := &domain.Task{PlanID: plan.ID, Title: "update docs", Description: "x",
		Status: constants.TaskStatusPending, Level: 2}
	for _, task := range []*domain.Task{a, b, c} {
		require.NoError(t, s.CreateTask(ctx, task))
	}
	require.NoError(t, s.CreateDependency(ctx, domain.Dependency{TaskID: b.ID, DependsOnID: a.ID}))
	require.NoError(t, s.CreateDependency(ctx, domain.Dependency{TaskID: c.ID, DependsOnID: b.ID}))

	slot := &domain.Slot{ProjectID: project.ID, Name: "slot-1", Path: t.TempDir()}
	require.NoError(t, s.CreateSlot(ctx, slot))
	require.NoError(t, s.AssignTask(ctx, b.ID, slot.ID, "feature/p/t-wire-cache"))
	require.NoError(t, s.StartTask(ctx, b.ID))

	return &fixture{store: s, svc: New(s), project: project, plan: plan, a: a, b: b, c: c}
}

func TestPlanWithProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.svc.PlanWithProgress(ctx, f.plan.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, f.plan.ID, detail.Plan.ID)
	assert.Equal(t, 3, detail.Progress.Total)
	assert.Equal(t, 1, detail.Progress.Completed)
	assert.Equal(t, 1, detail.Progress.InProgress)
	assert.Equal(t, 1, detail.Progress.Pending)
	assert.InDelta(t, 33.33, detail.Progress.Percent, 0.01)

	// The projection carries every task and every edge, not just counts.
	require.Len(t, detail.Tasks, 3)
	assert.Equal(t, f.a.ID, detail.Tasks[0].ID, "tasks ordered by level")
	assert.Equal(t, "feature/p/t-wire-cache", detail.Tasks[1].BranchName)
	assert.ElementsMatch(t, []domain.Dependency{
		{TaskID: f.b.ID, DependsOnID: f.a.ID},
		{TaskID: f.c.ID, DependsOnID: f.b.ID},
	}, detail.Edges)
}

func TestPlanWithProgress_UnknownRef(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PlanWithProgress(context.Background(), "ZZZZZZ")
	require.ErrorIs(t, err, taskctlerrors.ErrNotFound)
}

func TestTaskWithNeighbors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	detail, err := f.svc.TaskWithNeighbors(ctx, f.b.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, f.b.ID, detail.Task.ID)
	assert.Equal(t, f.plan.ID, detail.Plan.ID)
	require.Len(t, detail.DependsOn, 1)
	assert.Equal(t, TaskRef{ID: f.a.ID, Title: "extract parser",
		Status: constants.TaskStatusCompleted}, detail.DependsOn[0])
	require.Len(t, detail.Dependents, 1)
	assert.Equal(t, f.c.ID, detail.Dependents[0].ID)
	assert.Nil(t, detail.PR, "no PR recorded yet")
}

func TestTaskWithNeighbors_IncludesPR(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pr := &domain.PullRequest{Number: 7, URL: "https://example.com/pull/7", BaseBranch: "main"}
	require.NoError(t, f.store.MarkTaskPRCreated(ctx, f.b.ID, pr))

	detail, err := f.svc.TaskWithNeighbors(ctx, f.b.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.PR)
	assert.Equal(t, 7, detail.PR.Number)
}

func TestCurrentTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("by branch", func(t *testing.T) {
		detail, err := f.svc.CurrentTask(ctx, "feature/p/t-wire-cache", "")
		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.Equal(t, f.b.ID, detail.Task.ID)
	})

	t.Run("session wins over branch", func(t *testing.T) {
		require.NoError(t, f.store.AttachSession(ctx, f.c.ID, "sess-42"))
		detail, err := f.svc.CurrentTask(ctx, "feature/p/t-wire-cache", "sess-42")
		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.Equal(t, f.c.ID, detail.Task.ID)
	})

	t.Run("no match is nil, not an error", func(t *testing.T) {
		detail, err := f.svc.CurrentTask(ctx, "feature/nope", "sess-nope")
		require.NoError(t, err)
		assert.Nil(t, detail)
	})
}

func TestTasks_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.svc.Tasks(ctx, TaskListFilter{PlanRef: f.plan.ID[:6]})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, f.a.ID, all[0].ID, "ordered by level")

	pending, err := f.svc.Tasks(ctx, TaskListFilter{
		PlanRef: f.plan.ID[:6], Status: constants.TaskStatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, f.c.ID, pending[0].ID)

	roots, err := f.svc.Tasks(ctx, TaskListFilter{PlanRef: f.plan.ID[:6], HasLevel: true})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, f.a.ID, roots[0].ID)
}

func TestPlans_Filters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	drafts, err := f.svc.Plans(ctx, PlanListFilter{
		ProjectRef: f.project.ID[:6], Status: constants.PlanStatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, f.plan.ID, drafts[0].ID)

	none, err := f.svc.Plans(ctx, PlanListFilter{Status: constants.PlanStatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, none)
}
