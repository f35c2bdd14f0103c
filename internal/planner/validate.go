// Package planner turns a plan description into a validated task
// decomposition via an LLM CLI.
// This file normalises raw planner output into the strict contract.
package planner

import (
	"fmt"

	"github.com/taskctl/taskctl/internal/constants"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// Normalize validates and repairs a planner result in place:
//
//   - a missing or empty tasks array is ErrPlannerSchema
//   - empty ids are filled sequentially (task_001, task_002, ...), skipping
//     ids already taken
//   - duplicate ids are ErrPlannerSchema
//   - empty titles are ErrPlannerSchema
//   - empty descriptions default to the title
//   - estimated_lines defaults when missing or non-positive
//   - self-references in depends_on are dropped, duplicates collapsed
//   - a depends_on referencing an unknown id is ErrDependencyUnmet
//
// Cycle detection is not done here; persistence builds the dependency graph
// which rejects cycles before any row is written.
func Normalize(result *Result) error {
	if result == nil || len(result.Tasks) == 0 {
		return fmt.Errorf("%w: planner returned no tasks", taskctlerrors.ErrPlannerSchema)
	}

	taken := make(map[string]bool, len(result.Tasks))
	for _, t := range result.Tasks {
		if t.ID != "" {
			if taken[t.ID] {
				return fmt.Errorf("%w: duplicate task id %s", taskctlerrors.ErrPlannerSchema, t.ID)
			}
			taken[t.ID] = true
		}
	}

	// Fill missing ids after uniqueness is known, so generated ids cannot
	// collide with explicit ones.
	next := 1
	for i := range result.Tasks {
		t := &result.Tasks[i]
		if t.ID == "" {
			for {
				candidate := fmt.Sprintf("task_%03d", next)
				next++
				if !taken[candidate] {
					t.ID = candidate
					taken[candidate] = true
					break
				}
			}
		}
		if t.Title == "" {
			return fmt.Errorf("%w: task %s has no title", taskctlerrors.ErrPlannerSchema, t.ID)
		}
		if t.Description == "" {
			t.Description = t.Title
		}
		if t.EstimatedLines <= 0 {
			t.EstimatedLines = constants.DefaultEstimatedLines
		}
	}

	for i := range result.Tasks {
		t := &result.Tasks[i]
		seen := make(map[string]bool, len(t.DependsOn))
		deps := t.DependsOn[:0]
		for _, dep := range t.DependsOn {
			if dep == t.ID || seen[dep] {
				continue
			}
			if !taken[dep] {
				return fmt.Errorf("%w: task %s depends on unknown %s", taskctlerrors.ErrDependencyUnmet, t.ID, dep)
			}
			seen[dep] = true
			deps = append(deps, dep)
		}
		t.DependsOn = deps
	}

	return nil
}
