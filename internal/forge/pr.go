// Package forge provides the pull-request forge adapter for taskctl.
// This file implements the gh-backed pull request operations.
package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// prJSONFields is the field set requested from gh for every PR query.
const prJSONFields = "number,title,url,state,headRefName,baseRefName,isDraft,reviewDecision"

// CheckAvailability verifies gh is installed and authenticated.
func (r *GHRunner) CheckAvailability(ctx context.Context) error {
	if _, err := r.run(ctx, "auth", "status"); err != nil {
		return fmt.Errorf("gh unavailable: %w", err)
	}
	return nil
}

// CreatePR opens a pull request for the head branch and reads it back to
// return the forge-assigned number.
func (r *GHRunner) CreatePR(ctx context.Context, opts CreateOptions) (*PR, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("%w: pr title", taskctlerrors.ErrEmptyValue)
	}
	if opts.HeadBranch == "" {
		return nil, fmt.Errorf("%w: pr head branch", taskctlerrors.ErrEmptyValue)
	}
	if opts.BaseBranch == "" {
		return nil, fmt.Errorf("%w: pr base branch", taskctlerrors.ErrEmptyValue)
	}

	args := []string{"pr", "create",
		"--title", opts.Title,
		"--body", opts.Body,
		"--base", opts.BaseBranch,
		"--head", opts.HeadBranch,
	}
	if opts.Draft {
		args = append(args, "--draft")
	}

	if _, err := r.run(ctx, args...); err != nil {
		return nil, fmt.Errorf("%w: %w", taskctlerrors.ErrPRCreationFailed, err)
	}

	// gh pr create prints the URL; fetch the structured view by branch to
	// get the number and state in one schema.
	out, err := r.run(ctx, "pr", "view", opts.HeadBranch, "--json", prJSONFields)
	if err != nil {
		return nil, fmt.Errorf("%w: read back created pr: %w", taskctlerrors.ErrPRCreationFailed, err)
	}
	return parsePR(out)
}

// GetPR fetches one pull request by number.
func (r *GHRunner) GetPR(ctx context.Context, number int) (*PR, error) {
	if number <= 0 {
		return nil, fmt.Errorf("%w: pr number %d", taskctlerrors.ErrInvalidArgument, number)
	}
	out, err := r.run(ctx, "pr", "view", strconv.Itoa(number), "--json", prJSONFields)
	if err != nil {
		return nil, fmt.Errorf("get pr #%d: %w", number, err)
	}
	return parsePR(out)
}

// ListPRs lists pull requests in the given state (open, closed, merged, all).
func (r *GHRunner) ListPRs(ctx context.Context, state string) ([]PR, error) {
	if state == "" {
		state = "open"
	}
	out, err := r.run(ctx, "pr", "list", "--state", state, "--json", prJSONFields)
	if err != nil {
		return nil, fmt.Errorf("list %s prs: %w", state, err)
	}

	var prs []PR
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("%w: parse pr list: %s", taskctlerrors.ErrForgeOperation, err)
	}
	return prs, nil
}

// MergePR merges a pull request.
func (r *GHRunner) MergePR(ctx context.Context, number int, opts MergeOptions) error {
	if number <= 0 {
		return fmt.Errorf("%w: pr number %d", taskctlerrors.ErrInvalidArgument, number)
	}
	method := opts.Method
	if method == "" {
		method = MergeSquash
	}

	args := []string{"pr", "merge", strconv.Itoa(number), "--" + string(method)}
	if opts.DeleteBranch {
		args = append(args, "--delete-branch")
	}

	if _, err := r.run(ctx, args...); err != nil {
		return fmt.Errorf("merge pr #%d: %w", number, err)
	}
	return nil
}

// ClosePR closes a pull request without merging.
func (r *GHRunner) ClosePR(ctx context.Context, number int) error {
	if number <= 0 {
		return fmt.Errorf("%w: pr number %d", taskctlerrors.ErrInvalidArgument, number)
	}
	if _, err := r.run(ctx, "pr", "close", strconv.Itoa(number)); err != nil {
		return fmt.Errorf("close pr #%d: %w", number, err)
	}
	return nil
}

// MarkReady converts a draft PR to ready for review.
func (r *GHRunner) MarkReady(ctx context.Context, number int) error {
	if number <= 0 {
		return fmt.Errorf("%w: pr number %d", taskctlerrors.ErrInvalidArgument, number)
	}
	if _, err := r.run(ctx, "pr", "ready", strconv.Itoa(number)); err != nil {
		return fmt.Errorf("mark pr #%d ready: %w", number, err)
	}
	return nil
}

// parsePR decodes one PR from gh JSON output.
func parsePR(out []byte) (*PR, error) {
	var pr PR
	if err := json.Unmarshal(out, &pr); err != nil {
		return nil, fmt.Errorf("%w: parse pr: %s", taskctlerrors.ErrForgeOperation, err)
	}
	return &pr, nil
}
