// Package graph implements the dependency-graph engine for plans.
//
// A Graph is an immutable value built from one plan's tasks and dependency
// edges. Building computes per-task levels (longest dependency-chain
// distance from a root), forward and reverse adjacency, level buckets, and
// the maximum level, rejecting cyclic edge sets. Build failures are fatal
// for their plan but never mutate store state.
//
// Determinism: all traversals follow the insertion order of the input task
// slice, so repeated builds over the same inputs produce identical levels,
// ready sets, and critical paths.
package graph

import (
	"fmt"
	"sort"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// Graph is the immutable dependency graph of one plan.
type Graph struct {
	order      []string                           // task ids in insertion order
	index      map[string]int                     // id -> insertion index
	statuses   map[string]constants.TaskStatus    // status captured at build time
	deps       map[string][]string                // forward adjacency (dependencies)
	dependents map[string][]string                // reverse adjacency
	levels     map[string]int                     // id -> DAG level
	buckets    map[int][]string                   // level -> ids in insertion order
	maxLevel   int
}

// Build constructs the graph from a plan's tasks and edges.
//
// It validates the edge set (known endpoints, no self-loops, no duplicates)
// and then runs a depth-first traversal from every unvisited node to detect
// cycles and assign levels: level(v) = 0 for roots, 1 + max(level(d)) over
// dependencies otherwise. The visiting set is per-DFS-path so diamond shapes
// traverse correctly.
func Build(tasks []*domain.Task, edges []domain.Dependency) (*Graph, error) {
	g := &Graph{
		order:      make([]string, 0, len(tasks)),
		index:      make(map[string]int, len(tasks)),
		statuses:   make(map[string]constants.TaskStatus, len(tasks)),
		deps:       make(map[string][]string, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
		levels:     make(map[string]int, len(tasks)),
		buckets:    make(map[int][]string),
	}

	for _, t := range tasks {
		if _, ok := g.index[t.ID]; ok {
			return nil, fmt.Errorf("%w: task %s listed twice", taskctlerrors.ErrInvalidArgument, t.ID)
		}
		g.index[t.ID] = len(g.order)
		g.order = append(g.order, t.ID)
		g.statuses[t.ID] = t.Status
	}

	if err := g.addEdges(edges); err != nil {
		return nil, err
	}
	if err := g.assignLevels(); err != nil {
		return nil, err
	}

	for _, taskID := range g.order {
		level := g.levels[taskID]
		g.buckets[level] = append(g.buckets[level], taskID)
		if level > g.maxLevel {
			g.maxLevel = level
		}
	}
	return g, nil
}

// addEdges validates and records the edge set.
func (g *Graph) addEdges(edges []domain.Dependency) error {
	seen := make(map[domain.Dependency]bool, len(edges))
	for _, e := range edges {
		if _, ok := g.index[e.TaskID]; !ok {
			return fmt.Errorf("%w: edge references %s", taskctlerrors.ErrDependencyUnmet, e.TaskID)
		}
		if _, ok := g.index[e.DependsOnID]; !ok {
			return fmt.Errorf("%w: edge references %s", taskctlerrors.ErrDependencyUnmet, e.DependsOnID)
		}
		if e.TaskID == e.DependsOnID {
			return fmt.Errorf("%w: %s", taskctlerrors.ErrSelfDependency, e.TaskID)
		}
		if seen[e] {
			return fmt.Errorf("%w: %s -> %s", taskctlerrors.ErrDuplicateDependency, e.TaskID, e.DependsOnID)
		}
		seen[e] = true
		g.deps[e.TaskID] = append(g.deps[e.TaskID], e.DependsOnID)
		g.dependents[e.DependsOnID] = append(g.dependents[e.DependsOnID], e.TaskID)
	}

	// Keep adjacency in insertion order for deterministic traversal.
	for _, adj := range []map[string][]string{g.deps, g.dependents} {
		for taskID := range adj {
			ids := adj[taskID]
			sort.SliceStable(ids, func(i, j int) bool {
				return g.index[ids[i]] < g.index[ids[j]]
			})
		}
	}
	return nil
}

// dfsState tracks traversal marks during level assignment.
type dfsState int

const (
	unvisited dfsState = iota
	visiting           // on the current DFS path
	visited
)

// assignLevels runs the cycle-detecting DFS and computes levels in
// post-order.
func (g *Graph) assignLevels() error {
	state := make(map[string]dfsState, len(g.order))

	var visit func(taskID string) error
	visit = func(taskID string) error {
		switch state[taskID] {
		case visiting:
			return fmt.Errorf("%w: involving task %s", taskctlerrors.ErrCycle, taskID)
		case visited:
			return nil
		}
		state[taskID] = visiting

		level := 0
		for _, depID := range g.deps[taskID] {
			if err := visit(depID); err != nil {
				return err
			}
			if dl := g.levels[depID] + 1; dl > level {
				level = dl
			}
		}

		state[taskID] = visited
		g.levels[taskID] = level
		return nil
	}

	for _, taskID := range g.order {
		if state[taskID] == unvisited {
			if err := visit(taskID); err != nil {
				return err
			}
		}
	}
	return nil
}

// Size returns the number of tasks in the graph.
func (g *Graph) Size() int {
	return len(g.order)
}

// Level returns the DAG level of a task, or -1 if unknown.
func (g *Graph) Level(taskID string) int {
	if level, ok := g.levels[taskID]; ok {
		return level
	}
	return -1
}

// MaxLevel returns the maximum level in the graph (0 for an empty graph).
func (g *Graph) MaxLevel() int {
	return g.maxLevel
}

// Dependencies returns the tasks the given task depends on, in insertion order.
func (g *Graph) Dependencies(taskID string) []string {
	return append([]string(nil), g.deps[taskID]...)
}

// Dependents returns the tasks that depend on the given task, in insertion order.
func (g *Graph) Dependents(taskID string) []string {
	return append([]string(nil), g.dependents[taskID]...)
}

// TasksAtLevel returns the task ids at the given level, in insertion order.
func (g *Graph) TasksAtLevel(level int) []string {
	return append([]string(nil), g.buckets[level]...)
}

// TaskIDs returns all task ids in insertion order.
func (g *Graph) TaskIDs() []string {
	return append([]string(nil), g.order...)
}

// Contains reports whether the task is part of the graph.
func (g *Graph) Contains(taskID string) bool {
	_, ok := g.index[taskID]
	return ok
}

// ReadySet returns the ids of tasks that are ready to be scheduled: status
// pending or ready at build time, not already completed, and every
// dependency contained in completed. The result is in (level asc, insertion
// order) order. The operation is pure and idempotent.
func (g *Graph) ReadySet(completed map[string]bool) []string {
	var ready []string
	for level := 0; level <= g.maxLevel; level++ {
		for _, taskID := range g.buckets[level] {
			if completed[taskID] {
				continue
			}
			status := g.statuses[taskID]
			if status != constants.TaskStatusPending && status != constants.TaskStatusReady {
				continue
			}
			if g.depsCompleted(taskID, completed) {
				ready = append(ready, taskID)
			}
		}
	}
	return ready
}

// depsCompleted reports whether every dependency of the task is completed.
func (g *Graph) depsCompleted(taskID string, completed map[string]bool) bool {
	for _, depID := range g.deps[taskID] {
		if !completed[depID] {
			return false
		}
	}
	return true
}

// CriticalPath returns the longest dependency chain from a root to a leaf,
// in root-to-leaf order. Starting from the first task (insertion order) at
// the maximum level, it repeatedly follows the dependency with the highest
// level, breaking ties by insertion order. Returns nil for an empty graph.
func (g *Graph) CriticalPath() []string {
	if len(g.order) == 0 {
		return nil
	}

	current := g.buckets[g.maxLevel][0]
	path := []string{current}
	for {
		next, ok := g.highestDependency(current)
		if !ok {
			break
		}
		path = append(path, next)
		current = next
	}

	// Built leaf-to-root; return root-to-leaf.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// highestDependency returns the dependency with the highest level,
// first-seen wins on ties.
func (g *Graph) highestDependency(taskID string) (string, bool) {
	deps := g.deps[taskID]
	if len(deps) == 0 {
		return "", false
	}
	best := deps[0]
	for _, depID := range deps[1:] {
		if g.levels[depID] > g.levels[best] {
			best = depID
		}
	}
	return best, true
}

// ValidateEdges checks an externally-supplied edge set against a task set
// without retaining the graph: every endpoint must exist, no self-edges, no
// duplicates, and the set must be acyclic.
func ValidateEdges(tasks []*domain.Task, edges []domain.Dependency) error {
	_, err := Build(tasks, edges)
	return err
}
