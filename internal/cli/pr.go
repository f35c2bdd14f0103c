package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/forge"
	"github.com/taskctl/taskctl/internal/git"
	"github.com/taskctl/taskctl/internal/id"
	"github.com/taskctl/taskctl/internal/lifecycle"
	"github.com/taskctl/taskctl/internal/store"
)

// taskPREnv bundles the records every PR operation resolves first.
type taskPREnv struct {
	task    *domain.Task
	plan    *domain.Plan
	project *domain.Project
}

// loadTaskPREnv resolves a task reference to the task, its plan, and the
// owning project.
func loadTaskPREnv(ctx context.Context, s *store.Store, taskRef string) (*taskPREnv, error) {
	task, err := s.FindTaskByPrefix(ctx, taskRef)
	if err != nil {
		return nil, err
	}
	plan, err := s.GetPlan(ctx, task.PlanID)
	if err != nil {
		return nil, err
	}
	project, err := s.GetProject(ctx, plan.ProjectID)
	if err != nil {
		return nil, err
	}
	return &taskPREnv{task: task, plan: plan, project: project}, nil
}

// newForgeRunner builds the gh-backed forge for a project and verifies gh
// is usable before any PR operation runs.
func newForgeRunner(ctx context.Context, a *app, project *domain.Project) (forge.Runner, error) {
	runner := forge.NewGHRunner(project.RepoPath, forge.WithLogger(a.logger.Logger))
	if err := runner.CheckAvailability(ctx); err != nil {
		return nil, err
	}
	return runner, nil
}

// addTaskPRCmd registers "taskctl task pr" and its subcommands.
func addTaskPRCmd(parent *cobra.Command, a *app) {
	var (
		title string
		body  string
		draft bool
	)

	cmd := &cobra.Command{
		Use:   "pr <task>",
		Short: "Open a pull request for a task",
		Long: `Push the task branch from its slot worktree and open a pull request
against the plan's source branch. The task moves to pr_created and its
slot to pr_pending. Title and body default to the task's title and
description.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			env, err := loadTaskPREnv(ctx, s, args[0])
			if err != nil {
				return err
			}
			forgeRunner, err := newForgeRunner(ctx, a, env.project)
			if err != nil {
				return err
			}
			pr, err := openTaskPR(ctx, s, git.NewCLIRunner(), forgeRunner, env,
				prCreateOptions{Title: title, Body: body, Draft: draft})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Opened PR #%d for task %s: %s\n",
				pr.Number, id.Short(env.task.ID), pr.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "PR title (defaults to the task title)")
	cmd.Flags().StringVar(&body, "body", "", "PR body (defaults to the task description)")
	cmd.Flags().BoolVar(&draft, "draft", false, "open as a draft")

	addTaskPRMergeCmd(cmd, a)
	addTaskPRReadyCmd(cmd, a)
	parent.AddCommand(cmd)
}

// prCreateOptions carries the optional overrides for PR creation.
type prCreateOptions struct {
	Title string
	Body  string
	Draft bool
}

// openTaskPR pushes the task branch upstream from its slot worktree, opens
// the pull request with the plan's source branch as base, and records it,
// moving the task to pr_created.
func openTaskPR(ctx context.Context, s *store.Store, gitRunner git.Runner,
	forgeRunner forge.Runner, env *taskPREnv, opts prCreateOptions) (*domain.PullRequest, error) {
	task := env.task
	if task.BranchName == "" || task.SlotID == "" {
		return nil, fmt.Errorf("%w: task %s is not assigned to a slot",
			taskctlerrors.ErrConflict, task.ID)
	}
	slot, err := s.GetSlot(ctx, task.SlotID)
	if err != nil {
		return nil, err
	}
	if err := gitRunner.Push(ctx, slot.Path, "origin", task.BranchName, true); err != nil {
		return nil, fmt.Errorf("push %s: %w", task.BranchName, err)
	}

	title := opts.Title
	if title == "" {
		title = task.Title
	}
	body := opts.Body
	if body == "" {
		body = task.Description
	}

	created, err := forgeRunner.CreatePR(ctx, forge.CreateOptions{
		Title:      title,
		Body:       body,
		BaseBranch: env.plan.SourceBranch,
		HeadBranch: task.BranchName,
		Draft:      opts.Draft,
	})
	if err != nil {
		return nil, err
	}

	pr := &domain.PullRequest{
		Number:     created.Number,
		URL:        created.URL,
		Status:     forge.TranslateStatus(created),
		BaseBranch: created.BaseRefName,
		HeadBranch: created.HeadRefName,
	}
	if pr.BaseBranch == "" {
		pr.BaseBranch = env.plan.SourceBranch
	}
	if err := s.MarkTaskPRCreated(ctx, task.ID, pr); err != nil {
		return nil, err
	}
	return pr, nil
}

// addTaskPRMergeCmd registers "taskctl task pr merge".
func addTaskPRMergeCmd(parent *cobra.Command, a *app) {
	var (
		method       string
		deleteBranch bool
	)

	cmd := &cobra.Command{
		Use:   "merge <task>",
		Short: "Merge a task's pull request and complete the task",
		Long: `Merge the task's pull request on the forge, record the merge, and
complete the task, freeing its slot and promoting dependents.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			env, err := loadTaskPREnv(ctx, s, args[0])
			if err != nil {
				return err
			}
			forgeRunner, err := newForgeRunner(ctx, a, env.project)
			if err != nil {
				return err
			}
			pr, err := mergeTaskPR(ctx, s, forgeRunner, env, forge.MergeOptions{
				Method:       forge.MergeMethod(method),
				DeleteBranch: deleteBranch,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Merged PR #%d, completed task %s\n",
				pr.Number, id.Short(env.task.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "",
		"merge method: squash, rebase, or merge (default squash)")
	cmd.Flags().BoolVar(&deleteBranch, "delete-branch", false,
		"delete the head branch after merging")
	parent.AddCommand(cmd)
}

// mergeTaskPR merges the task's PR and completes the task. The lifecycle
// edge is checked before touching the forge so an unmergeable PR (a draft,
// or one with changes requested) fails without a remote side effect.
func mergeTaskPR(ctx context.Context, s *store.Store, forgeRunner forge.Runner,
	env *taskPREnv, opts forge.MergeOptions) (*domain.PullRequest, error) {
	pr, err := s.GetPRByTask(ctx, env.task.ID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.ValidatePR(pr.Status, constants.PRStatusMerged); err != nil {
		return nil, err
	}
	if err := forgeRunner.MergePR(ctx, pr.Number, opts); err != nil {
		return nil, err
	}
	if err := s.TransitionPR(ctx, pr.ID, constants.PRStatusMerged); err != nil {
		return nil, err
	}
	if err := s.CompleteTask(ctx, env.task.ID, false); err != nil {
		return nil, err
	}
	pr.Status = constants.PRStatusMerged
	return pr, nil
}

// addTaskPRReadyCmd registers "taskctl task pr ready".
func addTaskPRReadyCmd(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "ready <task>",
		Short: "Mark a task's draft pull request ready for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			env, err := loadTaskPREnv(ctx, s, args[0])
			if err != nil {
				return err
			}
			forgeRunner, err := newForgeRunner(ctx, a, env.project)
			if err != nil {
				return err
			}
			pr, err := readyTaskPR(ctx, s, forgeRunner, env)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "PR #%d is ready for review\n", pr.Number)
			return nil
		},
	}
	parent.AddCommand(cmd)
}

// readyTaskPR converts the task's draft PR to open on the forge and in the
// store.
func readyTaskPR(ctx context.Context, s *store.Store, forgeRunner forge.Runner,
	env *taskPREnv) (*domain.PullRequest, error) {
	pr, err := s.GetPRByTask(ctx, env.task.ID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.ValidatePR(pr.Status, constants.PRStatusOpen); err != nil {
		return nil, err
	}
	if err := forgeRunner.MarkReady(ctx, pr.Number); err != nil {
		return nil, err
	}
	if err := s.TransitionPR(ctx, pr.ID, constants.PRStatusOpen); err != nil {
		return nil, err
	}
	pr.Status = constants.PRStatusOpen
	return pr, nil
}
