// Package git provides the local git adapter for taskctl.
// This file provides shared git command execution utilities.
package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/taskctl/taskctl/internal/constants"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// networkSubcommands are git operations that hit the remote and get the
// longer timeout.
//
//nolint:gochecknoglobals // Read-only lookup table
var networkSubcommands = map[string]bool{
	"push":      true,
	"pull":      true,
	"fetch":     true,
	"clone":     true,
	"ls-remote": true,
}

// commandTimeout returns the per-call timeout for a git subcommand.
func commandTimeout(subcommand string) time.Duration {
	if networkSubcommands[subcommand] {
		return constants.NetworkGitTimeout
	}
	return constants.DefaultGitTimeout
}

// RunCommand executes a git command in the specified directory and returns
// its trimmed stdout. Output is captured into in-memory buffers so large
// output cannot deadlock a pipe. All failures are wrapped with
// ErrGitOperation and include trimmed stderr for debugging.
func RunCommand(ctx context.Context, workDir string, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: git arguments", taskctlerrors.ErrEmptyValue)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout(args[0]))
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...) //#nosec G204 -- args are constructed internally, not user input
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s: %w: %w", args[0], taskctlerrors.ErrTimeout, taskctlerrors.ErrGitOperation)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if stderr.Len() > 0 {
			return "", fmt.Errorf("git %s failed: %s: %w", args[0], strings.TrimSpace(stderr.String()), taskctlerrors.ErrGitOperation)
		}
		return "", fmt.Errorf("git %s failed: %w", args[0], taskctlerrors.ErrGitOperation)
	}

	return strings.TrimSpace(stdout.String()), nil
}
