// Package git provides the local git adapter for taskctl.
// This file provides repository inspection with worktree support.
package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// MainRepoPath resolves the main repository root even when path is inside a
// linked worktree, using the shared git common dir.
func (r *CLIRunner) MainRepoPath(ctx context.Context, path string) (string, error) {
	commonDir, err := RunCommand(ctx, path, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(path, commonDir)
	}
	// The common dir is the main repo's .git directory.
	return filepath.Dir(filepath.Clean(commonDir)), nil
}

// Dirty reports whether the working tree has uncommitted changes.
func (r *CLIRunner) Dirty(ctx context.Context, path string) (bool, error) {
	out, err := RunCommand(ctx, path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// AheadBehind returns how many commits the current branch is ahead of and
// behind its upstream. When no upstream is configured, the counts are
// unknowable and it returns (-1, -1, nil) instead of an error.
func (r *CLIRunner) AheadBehind(ctx context.Context, path string) (int, int, error) {
	out, err := RunCommand(ctx, path, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if err != nil {
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		// No upstream configured.
		return -1, -1, nil
	}

	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output %q", out)
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse ahead count: %w", err)
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse behind count: %w", err)
	}
	return ahead, behind, nil
}
