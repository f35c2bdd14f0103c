package git

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taskctl/taskctl/internal/constants"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "add cache", "add-cache"},
		{"mixed case", "Add OAuth2 Support", "add-oauth2-support"},
		{"punctuation runs", "fix: parser / lexer!!", "fix-parser-lexer"},
		{"leading and trailing noise", "  --weird title--  ", "weird-title"},
		{"empty", "", "task"},
		{"only symbols", "!!!", "task"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.title))
		})
	}
}

func TestSlug_CapsLength(t *testing.T) {
	long := strings.Repeat("abcde ", 20)
	got := Slug(long)
	assert.LessOrEqual(t, len(got), constants.MaxSlugLength)
	assert.NotEqual(t, "-", got[len(got)-1:], "truncation must not leave a trailing hyphen")
}

func TestBranchName(t *testing.T) {
	got := BranchName("01HXPLAN", "01HXTASK", "Add rate limiting")
	assert.Equal(t, "feature/01hxplan/01hxtask-add-rate-limiting", got)
}

func TestBranchName_Deterministic(t *testing.T) {
	a := BranchName("P1", "T1", "Same Title")
	b := BranchName("P1", "T1", "Same Title")
	assert.Equal(t, a, b)
}

func TestCommandTimeout(t *testing.T) {
	assert.Equal(t, constants.NetworkGitTimeout, commandTimeout("push"))
	assert.Equal(t, constants.NetworkGitTimeout, commandTimeout("fetch"))
	assert.Equal(t, constants.DefaultGitTimeout, commandTimeout("status"))
	assert.Equal(t, constants.DefaultGitTimeout, commandTimeout("worktree"))
}

func TestParseWorktreeListOutput(t *testing.T) {
	output := strings.Join([]string{
		"worktree /repo",
		"HEAD abc123",
		"branch refs/heads/main",
		"",
		"worktree /repo-slots/slot-1",
		"HEAD def456",
		"branch refs/heads/feature/p/t-add-cache",
		"locked",
		"",
		"worktree /repo-slots/slot-2",
		"HEAD 789abc",
		"prunable",
	}, "\n")

	entries := parseWorktreeListOutput(output)
	if assert.Len(t, entries, 3) {
		assert.Equal(t, "/repo", entries[0].Path)
		assert.Equal(t, "main", entries[0].Branch)
		assert.Equal(t, "abc123", entries[0].Head)

		assert.Equal(t, "feature/p/t-add-cache", entries[1].Branch)
		assert.True(t, entries[1].IsLocked)

		assert.True(t, entries[2].IsPrunable)
		assert.Empty(t, entries[2].Branch, "detached worktree has no branch line")
	}
}

func TestParseWorktreeListOutput_Empty(t *testing.T) {
	assert.Empty(t, parseWorktreeListOutput(""))
}
