package cli

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

// env gives each test an isolated config dir and database.
type env struct {
	dbPath string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	return &env{dbPath: filepath.Join(t.TempDir(), "taskctl.db")}
}

// run executes the CLI against the test database and returns the exit code.
func (e *env) run(args ...string) int {
	full := append([]string{"--db", e.dbPath}, args...)
	a := &app{}
	defer a.close()
	cmd := newRootCmd(a, BuildInfo{})
	cmd.SetArgs(full)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return taskctlerrors.ExitCode(err)
	}
	return 0
}

// seed opens the store directly to arrange fixtures, then closes it so the
// CLI invocation can take the lock.
func (e *env) seed(t *testing.T, fn func(ctx context.Context, s *store.Store)) {
	t.Helper()
	s, err := store.Open(e.dbPath)
	require.NoError(t, err)
	fn(context.Background(), s)
	require.NoError(t, s.Close())
}

func (e *env) inspect(t *testing.T, fn func(ctx context.Context, s *store.Store)) {
	e.seed(t, fn)
}

func TestInit_OutsideRepository(t *testing.T) {
	e := newEnv(t)
	code := e.run("init", t.TempDir())
	assert.Equal(t, constants.ExitExternalError, code)
}

func TestPlanCreateAndArchive(t *testing.T) {
	e := newEnv(t)

	var projectID string
	e.seed(t, func(ctx context.Context, s *store.Store) {
		project := &domain.Project{Name: "demo", RepoPath: t.TempDir(), MainBranch: "main"}
		require.NoError(t, s.CreateProject(ctx, project))
		projectID = project.ID
	})

	code := e.run("plan", "create", "--project", projectID[:8], "--title", "demo plan")
	require.Equal(t, constants.ExitOK, code)

	var planID string
	e.inspect(t, func(ctx context.Context, s *store.Store) {
		plans, err := s.ListPlans(ctx, projectID, "")
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, constants.PlanStatusDraft, plans[0].Status)
		assert.Equal(t, "main", plans[0].SourceBranch, "source branch defaults to project main")
		planID = plans[0].ID
	})

	code = e.run("plan", "archive", planID[:8])
	require.Equal(t, constants.ExitOK, code)

	e.inspect(t, func(ctx context.Context, s *store.Store) {
		plan, err := s.GetPlan(ctx, planID)
		require.NoError(t, err)
		assert.Equal(t, constants.PlanStatusArchived, plan.Status)
	})
}

func TestPlanCreate_UnknownProject(t *testing.T) {
	e := newEnv(t)
	e.seed(t, func(ctx context.Context, s *store.Store) {})

	code := e.run("plan", "create", "--project", "ZZZZ", "--title", "x")
	assert.Equal(t, constants.ExitUserError, code)
}

func TestTaskAttachSessionAndComplete(t *testing.T) {
	e := newEnv(t)

	var taskID string
	e.seed(t, func(ctx context.Context, s *store.Store) {
		project := &domain.Project{Name: "demo", RepoPath: t.TempDir(), MainBranch: "main"}
		require.NoError(t, s.CreateProject(ctx, project))
		plan := &domain.Plan{ProjectID: project.ID, Title: "p", SourceBranch: "main"}
		require.NoError(t, s.CreatePlan(ctx, plan))
		task := &domain.Task{PlanID: plan.ID, Title: "t", Description: "t",
			Status: constants.TaskStatusReady}
		require.NoError(t, s.CreateTask(ctx, task))
		slot := &domain.Slot{ProjectID: project.ID, Name: "slot-1", Path: t.TempDir()}
		require.NoError(t, s.CreateSlot(ctx, slot))
		require.NoError(t, s.AssignTask(ctx, task.ID, slot.ID, "feature/p/t-t"))
		require.NoError(t, s.StartTask(ctx, task.ID))
		pr := &domain.PullRequest{Number: 1, URL: "https://example.com/pull/1", BaseBranch: "main"}
		require.NoError(t, s.MarkTaskPRCreated(ctx, task.ID, pr))
		taskID = task.ID
	})

	code := e.run("task", "attach-session", taskID[:8], "sess-1")
	require.Equal(t, constants.ExitOK, code)

	e.inspect(t, func(ctx context.Context, s *store.Store) {
		task, err := s.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", task.SessionID)
	})

	// Completing without a merged PR is rejected, forced completion works.
	code = e.run("task", "complete", taskID[:8])
	assert.Equal(t, constants.ExitUserError, code)

	code = e.run("task", "complete", taskID[:8], "--force")
	require.Equal(t, constants.ExitOK, code)

	e.inspect(t, func(ctx context.Context, s *store.Store) {
		task, err := s.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusCompleted, task.Status)
	})
}

func TestInvalidOutputFlag(t *testing.T) {
	e := newEnv(t)
	code := e.run("--output", "yaml", "plan", "list")
	assert.Equal(t, constants.ExitUserError, code)
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "dev (commit: none, built: unknown)", formatVersion(BuildInfo{}))
	assert.Equal(t, "1.2.3 (commit: abc, built: today)",
		formatVersion(BuildInfo{Version: "1.2.3", Commit: "abc", Date: "today"}))
}
