package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// mkTasks builds pending tasks with the given ids, in order.
func mkTasks(ids ...string) []*domain.Task {
	tasks := make([]*domain.Task, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, &domain.Task{
			ID:     id,
			Title:  id,
			Status: constants.TaskStatusPending,
		})
	}
	return tasks
}

// dep is shorthand for a dependency edge.
func dep(task, dependsOn string) domain.Dependency {
	return domain.Dependency{TaskID: task, DependsOnID: dependsOn}
}

func TestBuild_EmptyPlan(t *testing.T) {
	g, err := Build(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, g.Size())
	assert.Equal(t, 0, g.MaxLevel())
	assert.Empty(t, g.ReadySet(nil))
	assert.Nil(t, g.CriticalPath())
}

func TestBuild_SingleTaskNoDeps(t *testing.T) {
	g, err := Build(mkTasks("a"), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, g.Level("a"))
	assert.Equal(t, []string{"a"}, g.ReadySet(map[string]bool{}))
	assert.Equal(t, []string{"a"}, g.CriticalPath())
}

func TestBuild_LinearChain(t *testing.T) {
	// e depends on d depends on c ... down to a.
	tasks := mkTasks("a", "b", "c", "d", "e")
	edges := []domain.Dependency{
		dep("b", "a"), dep("c", "b"), dep("d", "c"), dep("e", "d"),
	}

	g, err := Build(tasks, edges)
	require.NoError(t, err)

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		assert.Equal(t, i, g.Level(id), "level of %s", id)
	}
	assert.Equal(t, 4, g.MaxLevel())
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, g.CriticalPath())
	assert.Equal(t, []string{"a"}, g.ReadySet(map[string]bool{}),
		"only the root is initially ready")
}

func TestBuild_Diamond(t *testing.T) {
	// B and C depend on A; D depends on B and C.
	tasks := mkTasks("A", "B", "C", "D")
	edges := []domain.Dependency{
		dep("B", "A"), dep("C", "A"), dep("D", "B"), dep("D", "C"),
	}

	g, err := Build(tasks, edges)
	require.NoError(t, err)

	assert.Equal(t, 0, g.Level("A"))
	assert.Equal(t, 1, g.Level("B"))
	assert.Equal(t, 1, g.Level("C"))
	assert.Equal(t, 2, g.Level("D"))

	assert.Equal(t, []string{"A"}, g.ReadySet(map[string]bool{}))
	assert.Equal(t, []string{"B", "C"}, g.ReadySet(map[string]bool{"A": true}),
		"after A completes the ready set is exactly {B, C}")
	assert.Equal(t, []string{"D"}, g.ReadySet(map[string]bool{"A": true, "B": true, "C": true}))

	// Critical path: D at max level, ties broken first-seen.
	assert.Equal(t, []string{"A", "B", "D"}, g.CriticalPath())
}

func TestBuild_CycleRejected(t *testing.T) {
	tasks := mkTasks("A", "B", "C")
	edges := []domain.Dependency{
		dep("A", "B"), dep("B", "C"), dep("C", "A"),
	}

	_, err := Build(tasks, edges)
	require.Error(t, err)
	assert.ErrorIs(t, err, taskctlerrors.ErrCycle)
	// The DFS starts at A (insertion order), so A is the reported node.
	assert.Contains(t, err.Error(), "A")
}

func TestBuild_SelfEdgeRejected(t *testing.T) {
	_, err := Build(mkTasks("a"), []domain.Dependency{dep("a", "a")})
	require.Error(t, err)
	assert.ErrorIs(t, err, taskctlerrors.ErrSelfDependency)
}

func TestBuild_DuplicateEdgeRejected(t *testing.T) {
	_, err := Build(mkTasks("a", "b"), []domain.Dependency{dep("b", "a"), dep("b", "a")})
	require.Error(t, err)
	assert.ErrorIs(t, err, taskctlerrors.ErrDuplicateDependency)
}

func TestBuild_UnknownEndpointRejected(t *testing.T) {
	_, err := Build(mkTasks("a"), []domain.Dependency{dep("a", "ghost")})
	require.Error(t, err)
	assert.ErrorIs(t, err, taskctlerrors.ErrDependencyUnmet)
}

func TestBuild_LevelMonotonicity(t *testing.T) {
	tasks := mkTasks("a", "b", "c", "d", "e", "f")
	edges := []domain.Dependency{
		dep("c", "a"), dep("c", "b"), dep("d", "c"),
		dep("e", "a"), dep("f", "d"), dep("f", "e"),
	}

	g, err := Build(tasks, edges)
	require.NoError(t, err)

	// For every edge task -> dependency, level(task) > level(dependency).
	for _, e := range edges {
		assert.Greater(t, g.Level(e.TaskID), g.Level(e.DependsOnID),
			"edge %s -> %s", e.TaskID, e.DependsOnID)
	}
}

func TestReadySet_Idempotent(t *testing.T) {
	tasks := mkTasks("a", "b", "c")
	edges := []domain.Dependency{dep("c", "a"), dep("c", "b")}

	g, err := Build(tasks, edges)
	require.NoError(t, err)

	completed := map[string]bool{"a": true}
	first := g.ReadySet(completed)
	second := g.ReadySet(completed)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"b"}, first, "c is not ready while b is incomplete")
}

func TestReadySet_ExcludesNonPendingStatuses(t *testing.T) {
	tasks := mkTasks("a", "b", "c")
	tasks[0].Status = constants.TaskStatusInProgress
	tasks[1].Status = constants.TaskStatusReady
	tasks[2].Status = constants.TaskStatusBlocked

	g, err := Build(tasks, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, g.ReadySet(map[string]bool{}))
}

func TestDependenciesAndDependents(t *testing.T) {
	tasks := mkTasks("a", "b", "c")
	edges := []domain.Dependency{dep("c", "a"), dep("c", "b")}

	g, err := Build(tasks, edges)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, g.Dependencies("c"))
	assert.Equal(t, []string{"c"}, g.Dependents("a"))
	assert.Empty(t, g.Dependencies("a"))
	assert.Equal(t, []string{"a", "b"}, g.TasksAtLevel(0))
	assert.Equal(t, []string{"c"}, g.TasksAtLevel(1))
}

func TestCriticalPath_TieBreakFirstSeen(t *testing.T) {
	// Two parallel chains of equal length; the first-seen chain wins.
	tasks := mkTasks("a1", "a2", "b1", "b2")
	edges := []domain.Dependency{dep("a2", "a1"), dep("b2", "b1")}

	g, err := Build(tasks, edges)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2"}, g.CriticalPath())
}

func TestValidateEdges(t *testing.T) {
	tasks := mkTasks("a", "b")

	assert.NoError(t, ValidateEdges(tasks, []domain.Dependency{dep("b", "a")}))
	assert.ErrorIs(t, ValidateEdges(tasks, []domain.Dependency{dep("a", "a")}),
		taskctlerrors.ErrSelfDependency)
	assert.ErrorIs(t, ValidateEdges(tasks, []domain.Dependency{dep("a", "b"), dep("b", "a")}),
		taskctlerrors.ErrCycle)
}
