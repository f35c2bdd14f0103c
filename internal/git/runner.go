// Package git provides the local git adapter for taskctl.
// This file defines the Runner interface and its CLI implementation.
package git

import (
	"context"
	"fmt"

	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// Runner abstracts git operations so the scheduler and CLI can be tested
// without a real repository.
type Runner interface {
	// IsRepo reports whether path is inside a git working tree.
	IsRepo(ctx context.Context, path string) bool

	// RepoRoot returns the top-level directory of the working tree at path.
	RepoRoot(ctx context.Context, path string) (string, error)

	// MainRepoPath resolves the main repository root even when path is a
	// linked worktree.
	MainRepoPath(ctx context.Context, path string) (string, error)

	// CurrentBranch returns the checked-out branch name at path.
	CurrentBranch(ctx context.Context, path string) (string, error)

	// BranchExists reports whether a local branch exists.
	BranchExists(ctx context.Context, path, name string) (bool, error)

	// CreateBranch creates a branch from base without checking it out.
	CreateBranch(ctx context.Context, path, name, base string) error

	// CheckoutBranch switches the working tree at path to the branch.
	CheckoutBranch(ctx context.Context, path, name string) error

	// AddWorktree attaches a new worktree at wtPath checked out to branch.
	AddWorktree(ctx context.Context, repoPath, wtPath, branch string) error

	// RemoveWorktree detaches the worktree at wtPath.
	RemoveWorktree(ctx context.Context, repoPath, wtPath string, force bool) error

	// ListWorktrees returns all worktrees of the repository.
	ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeEntry, error)

	// PruneWorktrees removes stale worktree bookkeeping.
	PruneWorktrees(ctx context.Context, repoPath string) error

	// RemoteURL returns the origin remote URL, empty if unset.
	RemoteURL(ctx context.Context, path string) (string, error)

	// Push pushes a branch, optionally setting upstream.
	Push(ctx context.Context, path, remote, branch string, setUpstream bool) error

	// Fetch updates remote-tracking refs.
	Fetch(ctx context.Context, path, remote string) error

	// Pull fast-forwards the current branch.
	Pull(ctx context.Context, path string) error

	// Dirty reports whether the working tree has uncommitted changes.
	Dirty(ctx context.Context, path string) (bool, error)

	// AheadBehind returns commits ahead/behind upstream for the current
	// branch. When no upstream is configured it returns (-1, -1, nil)
	// rather than failing.
	AheadBehind(ctx context.Context, path string) (ahead, behind int, err error)
}

// CLIRunner implements Runner by shelling out to the git binary.
type CLIRunner struct{}

// NewCLIRunner returns a Runner backed by the git CLI.
func NewCLIRunner() *CLIRunner {
	return &CLIRunner{}
}

// Ensure CLIRunner implements Runner.
var _ Runner = (*CLIRunner)(nil)

// IsRepo reports whether path is inside a git working tree.
func (r *CLIRunner) IsRepo(ctx context.Context, path string) bool {
	out, err := RunCommand(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// RepoRoot returns the top-level directory of the working tree at path.
func (r *CLIRunner) RepoRoot(ctx context.Context, path string) (string, error) {
	root, err := RunCommand(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %w", taskctlerrors.ErrNotGitRepo, err)
	}
	return root, nil
}

// CurrentBranch returns the checked-out branch name at path.
func (r *CLIRunner) CurrentBranch(ctx context.Context, path string) (string, error) {
	return RunCommand(ctx, path, "branch", "--show-current")
}

// BranchExists reports whether a local branch exists.
func (r *CLIRunner) BranchExists(ctx context.Context, path, name string) (bool, error) {
	_, err := RunCommand(ctx, path, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err == nil {
		return true, nil
	}
	// show-ref exits non-zero for a missing ref with empty stderr; any
	// diagnostic output means a real failure.
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

// CreateBranch creates a branch from base without checking it out.
func (r *CLIRunner) CreateBranch(ctx context.Context, path, name, base string) error {
	exists, err := r.BranchExists(ctx, path, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", taskctlerrors.ErrBranchExists, name)
	}
	_, err = RunCommand(ctx, path, "branch", name, base)
	return err
}

// CheckoutBranch switches the working tree at path to the branch.
func (r *CLIRunner) CheckoutBranch(ctx context.Context, path, name string) error {
	_, err := RunCommand(ctx, path, "checkout", name)
	return err
}

// RemoteURL returns the origin remote URL, empty if unset.
func (r *CLIRunner) RemoteURL(ctx context.Context, path string) (string, error) {
	out, err := RunCommand(ctx, path, "remote", "get-url", "origin")
	if err != nil {
		// A repository without an origin remote is not an error for us.
		return "", nil
	}
	return out, nil
}

// Push pushes a branch, optionally setting upstream.
func (r *CLIRunner) Push(ctx context.Context, path, remote, branch string, setUpstream bool) error {
	args := []string{"push"}
	if setUpstream {
		args = append(args, "--set-upstream")
	}
	args = append(args, remote, branch)
	_, err := RunCommand(ctx, path, args...)
	return err
}

// Fetch updates remote-tracking refs.
func (r *CLIRunner) Fetch(ctx context.Context, path, remote string) error {
	_, err := RunCommand(ctx, path, "fetch", remote)
	return err
}

// Pull fast-forwards the current branch.
func (r *CLIRunner) Pull(ctx context.Context, path string) error {
	_, err := RunCommand(ctx, path, "pull", "--ff-only")
	return err
}
