package planner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/store"
)

// mockExecutor plays back one canned planner invocation.
type mockExecutor struct {
	stdin string
	out   []byte
	err   error
}

func (m *mockExecutor) Execute(_ context.Context, _, stdin, _ string, _ ...string) ([]byte, error) {
	m.stdin = stdin
	return m.out, m.err
}

// mockPlanner returns a fixed result without any CLI.
type mockPlanner struct {
	result *Result
	err    error
	req    Request
}

func (m *mockPlanner) GeneratePlan(_ context.Context, req Request) (*Result, error) {
	m.req = req
	return m.result, m.err
}

const validOutput = `{
	"summary": "split into storage and api work",
	"tasks": [
		{"id": "task_001", "title": "Add schema", "description": "create tables", "estimated_lines": 40, "depends_on": []},
		{"id": "task_002", "title": "Add store layer", "depends_on": ["task_001"]},
		{"id": "task_003", "title": "Wire API", "depends_on": ["task_002", "task_001"]}
	]
}`

func TestNormalize_FillsDefaults(t *testing.T) {
	result := &Result{Tasks: []TaskSpec{
		{Title: "first"},
		{ID: "task_001", Title: "second", DependsOn: []string{"task_001"}},
	}}

	require.NoError(t, Normalize(result))

	// Generated id skips the explicitly taken task_001.
	assert.Equal(t, "task_002", result.Tasks[0].ID)
	assert.Equal(t, "first", result.Tasks[0].Description, "description defaults to title")
	assert.Equal(t, constants.DefaultEstimatedLines, result.Tasks[0].EstimatedLines)
	assert.Empty(t, result.Tasks[1].DependsOn, "self-reference dropped")
}

func TestNormalize_CollapsesDuplicateDeps(t *testing.T) {
	result := &Result{Tasks: []TaskSpec{
		{ID: "a", Title: "a"},
		{ID: "b", Title: "b", DependsOn: []string{"a", "a", "b"}},
	}}

	require.NoError(t, Normalize(result))
	assert.Equal(t, []string{"a"}, result.Tasks[1].DependsOn)
}

func TestNormalize_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   error
	}{
		{"nil result", nil, taskctlerrors.ErrPlannerSchema},
		{"no tasks", &Result{Summary: "s"}, taskctlerrors.ErrPlannerSchema},
		{"duplicate ids", &Result{Tasks: []TaskSpec{
			{ID: "a", Title: "x"}, {ID: "a", Title: "y"},
		}}, taskctlerrors.ErrPlannerSchema},
		{"missing title", &Result{Tasks: []TaskSpec{{ID: "a"}}}, taskctlerrors.ErrPlannerSchema},
		{"unknown dependency", &Result{Tasks: []TaskSpec{
			{ID: "a", Title: "a", DependsOn: []string{"ghost"}},
		}}, taskctlerrors.ErrDependencyUnmet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Normalize(tt.result)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseResult_BareObject(t *testing.T) {
	result, err := parseResult([]byte(validOutput))
	require.NoError(t, err)
	assert.Len(t, result.Tasks, 3)
	assert.Equal(t, "split into storage and api work", result.Summary)
}

func TestParseResult_CLIEnvelope(t *testing.T) {
	envelope := `{"result": "here is the plan:\n{\"summary\":\"s\",\"tasks\":[{\"id\":\"a\",\"title\":\"a\"}]}"}`
	result, err := parseResult([]byte(envelope))
	require.NoError(t, err)
	require.Len(t, result.Tasks, 1)
	assert.Equal(t, "a", result.Tasks[0].ID)
}

func TestParseResult_Malformed(t *testing.T) {
	for _, bad := range []string{"", "not json", `{"tasks": "oops"}`} {
		_, err := parseResult([]byte(bad))
		require.Error(t, err, "input %q", bad)
		assert.ErrorIs(t, err, taskctlerrors.ErrPlannerParse)
	}
}

func TestGeneratePlan_HappyPath(t *testing.T) {
	t.Setenv(constants.EnvAnthropicAPIKey, "test-key")

	exec := &mockExecutor{out: []byte(validOutput)}
	r := NewClaudeRunner(WithCommandExecutor(exec))

	result, err := r.GeneratePlan(context.Background(), Request{Title: "add rate limiting"})
	require.NoError(t, err)
	assert.Len(t, result.Tasks, 3)
	assert.Contains(t, exec.stdin, "add rate limiting", "prompt carries the plan title")
}

func TestGeneratePlan_PromptCarriesContext(t *testing.T) {
	t.Setenv(constants.EnvAnthropicAPIKey, "test-key")

	exec := &mockExecutor{out: []byte(validOutput)}
	r := NewClaudeRunner(WithCommandExecutor(exec))

	_, err := r.GeneratePlan(context.Background(), Request{
		Title:           "add rate limiting",
		StructureDigest: "cmd/api/main.go\ninternal/limit/limit.go",
		ContextFiles: []Snippet{
			{Path: "internal/limit/limit.go", Content: "package limit"},
		},
		MaxLinesPerTask: 120,
	})
	require.NoError(t, err)

	assert.Contains(t, exec.stdin, "roughly 120 changed lines")
	assert.Contains(t, exec.stdin, "Project structure:\ncmd/api/main.go")
	assert.Contains(t, exec.stdin, "Context file internal/limit/limit.go:\npackage limit")
}

func TestBuildPrompt_Defaults(t *testing.T) {
	prompt := buildPrompt(Request{Title: "x"})
	assert.Contains(t, prompt, "roughly 50 changed lines")
	assert.NotContains(t, prompt, "Project structure:")
	assert.NotContains(t, prompt, "Context file")
}

func TestBuildPrompt_TruncatesSnippets(t *testing.T) {
	long := strings.Repeat("y", constants.MaxContextSnippetBytes+100)
	prompt := buildPrompt(Request{
		Title:        "x",
		ContextFiles: []Snippet{{Path: "big.go", Content: long}},
	})

	assert.Contains(t, prompt, "[truncated]")
	assert.NotContains(t, prompt, long, "snippet capped before prompting")
}

func TestGeneratePlan_RequiresAPIKey(t *testing.T) {
	t.Setenv(constants.EnvAnthropicAPIKey, "")

	r := NewClaudeRunner(WithCommandExecutor(&mockExecutor{}))
	_, err := r.GeneratePlan(context.Background(), Request{Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, taskctlerrors.ErrPlannerInvocation)
}

func TestGeneratePlan_CLIFailure(t *testing.T) {
	t.Setenv(constants.EnvAnthropicAPIKey, "test-key")

	r := NewClaudeRunner(WithCommandExecutor(&mockExecutor{err: errors.New("boom")}))
	_, err := r.GeneratePlan(context.Background(), Request{Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, taskctlerrors.ErrPlannerInvocation)
}

// newPlanFixture opens a store with one project and one draft plan.
func newPlanFixture(t *testing.T) (*store.Store, *domain.Plan) {
	t.Helper()
	ctx := context.Background()

	s, err := store.Open(filepath.Join(t.TempDir(), "taskctl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	project := &domain.Project{Name: "demo", RepoPath: t.TempDir(), MainBranch: "main"}
	require.NoError(t, s.CreateProject(ctx, project))
	plan := &domain.Plan{ProjectID: project.ID, Title: "add rate limiting", SourceBranch: "main"}
	require.NoError(t, s.CreatePlan(ctx, plan))
	return s, plan
}

func TestGenerate_PersistsLevelsAndStatuses(t *testing.T) {
	s, plan := newPlanFixture(t)
	ctx := context.Background()

	result, err := parseResult([]byte(validOutput))
	require.NoError(t, err)
	require.NoError(t, Normalize(result))

	p := &mockPlanner{result: result}
	require.NoError(t, Generate(ctx, p, s, plan, Request{MaxLinesPerTask: 80}, zerolog.Nop()))
	assert.Equal(t, plan.Title, p.req.Title, "title comes from the plan")
	assert.Equal(t, 80, p.req.MaxLinesPerTask)

	got, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PlanStatusReady, got.Status)

	tasks, err := s.ListTasksByPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	// Chain task_001 <- task_002 <- task_003 (with a shortcut edge).
	assert.Equal(t, 0, tasks[0].Level)
	assert.Equal(t, constants.TaskStatusReady, tasks[0].Status, "roots start ready")
	assert.Equal(t, 1, tasks[1].Level)
	assert.Equal(t, constants.TaskStatusPending, tasks[1].Status)
	assert.Equal(t, 2, tasks[2].Level)

	edges, err := s.ListDependencies(ctx, plan.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 3)
}

func TestGenerate_PlannerFailureRestoresDraft(t *testing.T) {
	s, plan := newPlanFixture(t)
	ctx := context.Background()

	p := &mockPlanner{err: taskctlerrors.ErrPlannerParse}
	err := Generate(ctx, p, s, plan, Request{}, zerolog.Nop())
	require.Error(t, err)

	got, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PlanStatusDraft, got.Status)
}

func TestGenerate_CyclicDecompositionRollsBack(t *testing.T) {
	s, plan := newPlanFixture(t)
	ctx := context.Background()

	cyclic := &Result{Tasks: []TaskSpec{
		{ID: "a", Title: "a", DependsOn: []string{"b"}},
		{ID: "b", Title: "b", DependsOn: []string{"a"}},
	}}
	require.NoError(t, Normalize(cyclic))

	err := Generate(ctx, &mockPlanner{result: cyclic}, s, plan, Request{}, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, taskctlerrors.ErrCycle)

	got, err := s.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PlanStatusDraft, got.Status)

	tasks, err := s.ListTasksByPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks, "no tasks persisted for an invalid decomposition")
}
