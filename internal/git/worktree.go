// Package git provides the local git adapter for taskctl.
// This file provides worktree management and porcelain parsing.
package git

import (
	"context"
	"fmt"
	"strings"

	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// WorktreeEntry contains information about a git worktree.
type WorktreeEntry struct {
	// Path is the absolute path to the worktree directory.
	Path string
	// Branch is the branch name (without refs/heads/ prefix).
	Branch string
	// Head is the HEAD commit SHA.
	Head string
	// IsPrunable indicates if the worktree directory is missing.
	IsPrunable bool
	// IsLocked indicates if the worktree has a lock file.
	IsLocked bool
}

// AddWorktree attaches a new worktree at wtPath checked out to branch.
func (r *CLIRunner) AddWorktree(ctx context.Context, repoPath, wtPath, branch string) error {
	entries, err := r.ListWorktrees(ctx, repoPath)
	if err != nil {
		return err
	}
	for _, wt := range entries {
		if wt.Path == wtPath {
			return fmt.Errorf("%w: %s", taskctlerrors.ErrWorktreeExists, wtPath)
		}
	}
	_, err = RunCommand(ctx, repoPath, "worktree", "add", wtPath, branch)
	return err
}

// RemoveWorktree detaches the worktree at wtPath.
func (r *CLIRunner) RemoveWorktree(ctx context.Context, repoPath, wtPath string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, wtPath)
	_, err := RunCommand(ctx, repoPath, args...)
	return err
}

// ListWorktrees returns all worktrees of the repository.
func (r *CLIRunner) ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeEntry, error) {
	output, err := RunCommand(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}
	return parseWorktreeListOutput(output), nil
}

// PruneWorktrees removes stale worktree bookkeeping.
func (r *CLIRunner) PruneWorktrees(ctx context.Context, repoPath string) error {
	_, err := RunCommand(ctx, repoPath, "worktree", "prune")
	return err
}

// parseWorktreeListOutput parses git worktree list --porcelain output.
func parseWorktreeListOutput(output string) []WorktreeEntry {
	var worktrees []WorktreeEntry
	var current *WorktreeEntry

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if current != nil {
				worktrees = append(worktrees, *current)
			}
			current = &WorktreeEntry{
				Path: strings.TrimPrefix(line, "worktree "),
			}
		case strings.HasPrefix(line, "HEAD ") && current != nil:
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch ") && current != nil:
			// refs/heads/feature/x/a -> feature/x/a
			current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		case line == "prunable" && current != nil:
			current.IsPrunable = true
		case strings.HasPrefix(line, "locked") && current != nil:
			current.IsLocked = true
		}
	}

	if current != nil {
		worktrees = append(worktrees, *current)
	}
	return worktrees
}
