package forge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskctl/taskctl/internal/constants"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
)

// mockExecutor records gh invocations and plays back canned responses.
type mockExecutor struct {
	calls     [][]string
	responses []mockResponse
}

type mockResponse struct {
	out []byte
	err error
}

func (m *mockExecutor) Execute(_ context.Context, _, _ string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, args)
	if len(m.responses) == 0 {
		return nil, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp.out, resp.err
}

func newMockRunner(responses ...mockResponse) (*GHRunner, *mockExecutor) {
	exec := &mockExecutor{responses: responses}
	return NewGHRunner("/repo", WithCommandExecutor(exec)), exec
}

func TestTranslateStatus_Table(t *testing.T) {
	tests := []struct {
		name string
		pr   PR
		want constants.PRStatus
	}{
		{"merged", PR{State: "MERGED"}, constants.PRStatusMerged},
		{"closed", PR{State: "CLOSED"}, constants.PRStatusClosed},
		{"merged wins over draft", PR{State: "MERGED", IsDraft: true}, constants.PRStatusMerged},
		{"draft", PR{State: "OPEN", IsDraft: true}, constants.PRStatusDraft},
		{"draft wins over approval", PR{State: "OPEN", IsDraft: true, ReviewDecision: "APPROVED"}, constants.PRStatusDraft},
		{"approved", PR{State: "OPEN", ReviewDecision: "APPROVED"}, constants.PRStatusApproved},
		{"changes requested", PR{State: "OPEN", ReviewDecision: "CHANGES_REQUESTED"}, constants.PRStatusInReview},
		{"plain open", PR{State: "OPEN"}, constants.PRStatusOpen},
		{"open review required", PR{State: "OPEN", ReviewDecision: "REVIEW_REQUIRED"}, constants.PRStatusOpen},
		{"unknown state", PR{State: "WEIRD"}, constants.PRStatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TranslateStatus(&tt.pr))
		})
	}
}

func TestGetPR_ParsesJSON(t *testing.T) {
	body := `{"number":42,"title":"Add cache","url":"https://example.com/pull/42",` +
		`"state":"OPEN","headRefName":"feature/p/t-add-cache","baseRefName":"main",` +
		`"isDraft":false,"reviewDecision":"APPROVED"}`
	r, exec := newMockRunner(mockResponse{out: []byte(body)})

	pr, err := r.GetPR(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "feature/p/t-add-cache", pr.HeadRefName)
	assert.Equal(t, constants.PRStatusApproved, TranslateStatus(pr))

	require.Len(t, exec.calls, 1)
	assert.Equal(t, []string{"pr", "view", "42", "--json", prJSONFields}, exec.calls[0])
}

func TestGetPR_RejectsBadNumber(t *testing.T) {
	r, _ := newMockRunner()
	_, err := r.GetPR(context.Background(), 0)
	assert.ErrorIs(t, err, taskctlerrors.ErrInvalidArgument)
}

func TestCreatePR_ValidatesAndReadsBack(t *testing.T) {
	created := `{"number":7,"title":"t","url":"https://example.com/pull/7",` +
		`"state":"OPEN","headRefName":"feature/p/t-x","baseRefName":"main","isDraft":true}`
	r, exec := newMockRunner(
		mockResponse{out: []byte("https://example.com/pull/7\n")},
		mockResponse{out: []byte(created)},
	)

	pr, err := r.CreatePR(context.Background(), CreateOptions{
		Title:      "t",
		BaseBranch: "main",
		HeadBranch: "feature/p/t-x",
		Draft:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.True(t, pr.IsDraft)

	require.Len(t, exec.calls, 2)
	assert.Contains(t, exec.calls[0], "--draft")
	assert.Equal(t, "create", exec.calls[0][1])
	assert.Equal(t, "view", exec.calls[1][1])
}

func TestCreatePR_MissingFields(t *testing.T) {
	r, _ := newMockRunner()
	ctx := context.Background()

	_, err := r.CreatePR(ctx, CreateOptions{BaseBranch: "main", HeadBranch: "h"})
	assert.ErrorIs(t, err, taskctlerrors.ErrEmptyValue)

	_, err = r.CreatePR(ctx, CreateOptions{Title: "t", BaseBranch: "main"})
	assert.ErrorIs(t, err, taskctlerrors.ErrEmptyValue)
}

func TestListPRs_DefaultsToOpen(t *testing.T) {
	r, exec := newMockRunner(mockResponse{out: []byte(`[{"number":1,"state":"OPEN"}]`)})

	prs, err := r.ListPRs(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Contains(t, exec.calls[0], "open")
}

func TestMergePR_BuildsArgs(t *testing.T) {
	r, exec := newMockRunner(mockResponse{})

	err := r.MergePR(context.Background(), 9, MergeOptions{Method: MergeRebase, DeleteBranch: true})
	require.NoError(t, err)

	joined := strings.Join(exec.calls[0], " ")
	assert.Contains(t, joined, "pr merge 9")
	assert.Contains(t, joined, "--rebase")
	assert.Contains(t, joined, "--delete-branch")
}

func TestMergePR_DefaultsToSquash(t *testing.T) {
	r, exec := newMockRunner(mockResponse{})

	require.NoError(t, r.MergePR(context.Background(), 9, MergeOptions{}))
	assert.Contains(t, exec.calls[0], "--squash")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want error
	}{
		{"auth", "gh: To get started with GitHub CLI, please run: gh auth login", taskctlerrors.ErrForgeAuthFailed},
		{"network", "dial tcp: connection refused", taskctlerrors.ErrForgeUnavailable},
		{"not found", "no pull requests found for branch feature/x", taskctlerrors.ErrPRNotFound},
		{"other", "something exploded", taskctlerrors.ErrForgeOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.msg))
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestRun_WrapsExecutorErrors(t *testing.T) {
	r, _ := newMockRunner(mockResponse{err: errors.New("bad credentials (401)")})

	err := r.CheckAvailability(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, taskctlerrors.ErrForgeAuthFailed)
}
