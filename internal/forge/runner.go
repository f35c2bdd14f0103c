// Package forge provides the pull-request forge adapter for taskctl,
// implemented over the gh CLI.
// This file defines the Runner interface and the GHRunner implementation.
package forge

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/taskctl/taskctl/internal/constants"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// PR is the forge-side view of a pull request, shaped by the JSON fields
// requested from gh.
type PR struct {
	Number         int    `json:"number"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	State          string `json:"state"` // OPEN, MERGED, CLOSED
	HeadRefName    string `json:"headRefName"`
	BaseRefName    string `json:"baseRefName"`
	IsDraft        bool   `json:"isDraft"`
	ReviewDecision string `json:"reviewDecision"` // APPROVED, CHANGES_REQUESTED, ...
}

// CreateOptions configures PR creation.
type CreateOptions struct {
	// Title is the PR title (required).
	Title string
	// Body is the PR description.
	Body string
	// BaseBranch is the target branch (required).
	BaseBranch string
	// HeadBranch is the source branch with changes (required).
	HeadBranch string
	// Draft creates the PR as a draft if true.
	Draft bool
}

// MergeMethod selects how a PR is merged.
type MergeMethod string

// Supported merge methods.
const (
	MergeSquash MergeMethod = "squash"
	MergeRebase MergeMethod = "rebase"
	MergeCommit MergeMethod = "merge"
)

// MergeOptions configures PR merging.
type MergeOptions struct {
	// Method is the merge strategy; squash when empty.
	Method MergeMethod
	// DeleteBranch removes the head branch after merging.
	DeleteBranch bool
}

// Runner abstracts forge operations so the scheduler and CLI can be tested
// without gh installed.
type Runner interface {
	// CheckAvailability verifies gh is installed and authenticated.
	CheckAvailability(ctx context.Context) error

	// CreatePR opens a pull request for the head branch.
	CreatePR(ctx context.Context, opts CreateOptions) (*PR, error)

	// GetPR fetches one pull request by number.
	GetPR(ctx context.Context, number int) (*PR, error)

	// ListPRs lists pull requests in the given state (open, closed,
	// merged, all).
	ListPRs(ctx context.Context, state string) ([]PR, error)

	// MergePR merges a pull request.
	MergePR(ctx context.Context, number int, opts MergeOptions) error

	// ClosePR closes a pull request without merging.
	ClosePR(ctx context.Context, number int) error

	// MarkReady converts a draft PR to ready for review.
	MarkReady(ctx context.Context, number int) error
}

// CommandExecutor executes shell commands. Used for testing.
type CommandExecutor interface {
	// Execute runs a command and returns its stdout.
	Execute(ctx context.Context, workDir, name string, args ...string) ([]byte, error)
}

// GHRunner implements Runner using the gh CLI.
type GHRunner struct {
	workDir string
	logger  zerolog.Logger
	cmdExec CommandExecutor
}

// GHRunnerOption configures a GHRunner.
type GHRunnerOption func(*GHRunner)

// NewGHRunner creates a GHRunner operating in the given repository directory.
func NewGHRunner(workDir string, opts ...GHRunnerOption) *GHRunner {
	r := &GHRunner{
		workDir: workDir,
		logger:  zerolog.Nop(),
		cmdExec: &defaultCommandExecutor{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithLogger sets the logger for forge operations.
func WithLogger(logger zerolog.Logger) GHRunnerOption {
	return func(r *GHRunner) {
		r.logger = logger
	}
}

// WithCommandExecutor sets a custom command executor (for testing).
func WithCommandExecutor(cmdExec CommandExecutor) GHRunnerOption {
	return func(r *GHRunner) {
		r.cmdExec = cmdExec
	}
}

// Ensure GHRunner implements Runner.
var _ Runner = (*GHRunner)(nil)

// run executes gh with the forge timeout and classifies failures.
func (r *GHRunner) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultForgeTimeout)
	defer cancel()

	out, err := r.cmdExec.Execute(ctx, r.workDir, "gh", args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("gh %s: %w: %w", args[0], taskctlerrors.ErrTimeout, taskctlerrors.ErrForgeUnavailable)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyError(err)
	}
	return out, nil
}

// defaultCommandExecutor is the production executor using exec.Command.
// Unit tests mock the CommandExecutor interface to avoid external
// dependencies.
type defaultCommandExecutor struct{}

// Execute runs a command and returns its stdout, with stderr folded into
// the error.
func (e *defaultCommandExecutor) Execute(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //#nosec G204 -- args are constructed internally, not user input
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s %s failed: %s", name, args[0], strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s %s failed: %w", name, args[0], err)
	}
	return stdout.Bytes(), nil
}
