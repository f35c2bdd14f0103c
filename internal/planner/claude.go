// Package planner turns a plan description into a validated task
// decomposition via an LLM CLI.
// This file implements the claude CLI runner.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/taskctl/taskctl/internal/constants"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// CommandExecutor executes the planner CLI. Used for testing.
type CommandExecutor interface {
	// Execute runs a command with the prompt on stdin and returns stdout.
	Execute(ctx context.Context, workDir, stdin, name string, args ...string) ([]byte, error)
}

// ClaudeRunner implements Planner over the claude CLI.
type ClaudeRunner struct {
	logger  zerolog.Logger
	cmdExec CommandExecutor
}

// ClaudeRunnerOption configures a ClaudeRunner.
type ClaudeRunnerOption func(*ClaudeRunner)

// NewClaudeRunner creates a ClaudeRunner with the given options.
func NewClaudeRunner(opts ...ClaudeRunnerOption) *ClaudeRunner {
	r := &ClaudeRunner{
		logger:  zerolog.Nop(),
		cmdExec: &defaultCommandExecutor{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithLogger sets the logger for planner operations.
func WithLogger(logger zerolog.Logger) ClaudeRunnerOption {
	return func(r *ClaudeRunner) {
		r.logger = logger
	}
}

// WithCommandExecutor sets a custom command executor (for testing).
func WithCommandExecutor(cmdExec CommandExecutor) ClaudeRunnerOption {
	return func(r *ClaudeRunner) {
		r.cmdExec = cmdExec
	}
}

// Ensure ClaudeRunner implements Planner.
var _ Planner = (*ClaudeRunner)(nil)

// GeneratePlan invokes claude and returns the validated decomposition.
func (r *ClaudeRunner) GeneratePlan(ctx context.Context, req Request) (*Result, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("%w: plan title", taskctlerrors.ErrEmptyValue)
	}
	if os.Getenv(constants.EnvAnthropicAPIKey) == "" {
		return nil, fmt.Errorf("%w: %s not set", taskctlerrors.ErrPlannerInvocation, constants.EnvAnthropicAPIKey)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DefaultPlannerTimeout)
	defer cancel()

	prompt := buildPrompt(req)
	out, err := r.cmdExec.Execute(ctx, req.RepoPath, prompt,
		"claude", "-p", "--output-format", "json")
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %w", taskctlerrors.ErrPlannerInvocation, taskctlerrors.ErrTimeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", taskctlerrors.ErrPlannerInvocation, err)
	}

	result, err := parseResult(out)
	if err != nil {
		return nil, err
	}
	if err := Normalize(result); err != nil {
		return nil, err
	}

	r.logger.Debug().Int("tasks", len(result.Tasks)).Msg("plan generated")
	return result, nil
}

// buildPrompt renders the decomposition instruction handed to the model.
func buildPrompt(req Request) string {
	target := req.MaxLinesPerTask
	if target <= 0 {
		target = constants.DefaultEstimatedLines
	}

	var b strings.Builder
	b.WriteString("Decompose the following software change into small, independent tasks.\n")
	b.WriteString("Each task should be implementable as one pull request of roughly ")
	fmt.Fprintf(&b, "%d changed lines.\n\n", target)
	fmt.Fprintf(&b, "Change title: %s\n", req.Title)
	if req.Description != "" {
		fmt.Fprintf(&b, "Change description:\n%s\n", req.Description)
	}
	if req.StructureDigest != "" {
		fmt.Fprintf(&b, "\nProject structure:\n%s\n",
			truncate(req.StructureDigest, constants.MaxStructureDigestBytes))
	}
	for _, snippet := range req.ContextFiles {
		fmt.Fprintf(&b, "\nContext file %s:\n%s\n",
			snippet.Path, truncate(snippet.Content, constants.MaxContextSnippetBytes))
	}
	b.WriteString(`
Respond with a single JSON object and nothing else, in this shape:
{
  "summary": "one-paragraph overview",
  "tasks": [
    {
      "id": "task_001",
      "title": "short title",
      "description": "what to implement and where",
      "estimated_lines": 50,
      "depends_on": ["task_000"]
    }
  ]
}
List a dependency only when one task's code builds directly on another's.
`)
	return b.String()
}

// truncate caps s at n bytes, marking the cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n[truncated]"
}

// cliEnvelope is the wrapper claude prints in json output mode; the payload
// is a string in the result field.
type cliEnvelope struct {
	Result string `json:"result"`
}

// parseResult decodes planner output, accepting either the bare contract
// object or the CLI envelope around it.
func parseResult(out []byte) (*Result, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty planner output", taskctlerrors.ErrPlannerParse)
	}

	var envelope cliEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Result != "" {
		trimmed = []byte(extractJSONObject(envelope.Result))
	}

	var result Result
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("%w: %s", taskctlerrors.ErrPlannerParse, err)
	}
	return &result, nil
}

// extractJSONObject trims any prose the model wrapped around the object.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// defaultCommandExecutor is the production executor using exec.Command.
type defaultCommandExecutor struct{}

// Execute runs the planner CLI with the prompt on stdin.
func (e *defaultCommandExecutor) Execute(ctx context.Context, workDir, stdin, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //#nosec G204 -- args are constructed internally, not user input
	cmd.Dir = workDir
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s failed: %s", name, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}
