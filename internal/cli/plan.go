package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	"github.com/taskctl/taskctl/internal/git"
	"github.com/taskctl/taskctl/internal/id"
	"github.com/taskctl/taskctl/internal/planner"
	"github.com/taskctl/taskctl/internal/query"
)

// addPlanCommand registers the "taskctl plan" command group.
func addPlanCommand(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage plans",
	}
	addPlanCreateCmd(cmd, a)
	addPlanGenerateCmd(cmd, a)
	addPlanListCmd(cmd, a)
	addPlanShowCmd(cmd, a)
	addPlanArchiveCmd(cmd, a)
	parent.AddCommand(cmd)
}

func addPlanCreateCmd(parent *cobra.Command, a *app) {
	var (
		projectRef   string
		title        string
		description  string
		sourceBranch string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft plan",
		Long: `Create a draft plan for a project. Run "taskctl plan generate" afterwards
to decompose it into tasks.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			project, err := s.FindProjectByPrefix(ctx, projectRef)
			if err != nil {
				return err
			}
			if sourceBranch == "" {
				sourceBranch = project.MainBranch
			}

			plan := &domain.Plan{
				ProjectID:    project.ID,
				Title:        title,
				Description:  description,
				SourceBranch: sourceBranch,
			}
			if err := s.CreatePlan(ctx, plan); err != nil {
				return fmt.Errorf("create plan: %w", err)
			}
			fmt.Fprintf(os.Stdout, "Created plan %s: %s\n", id.Short(plan.ID), title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectRef, "project", "p", "", "project id or prefix")
	cmd.Flags().StringVarP(&title, "title", "t", "", "plan title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "plan description")
	cmd.Flags().StringVar(&sourceBranch, "source-branch", "", "base branch (default: project main branch)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	parent.AddCommand(cmd)
}

func addPlanGenerateCmd(parent *cobra.Command, a *app) {
	var (
		maxLines     int
		contextFiles []string
	)

	cmd := &cobra.Command{
		Use:   "generate <plan>",
		Short: "Decompose a draft plan into tasks",
		Long: `Invoke the planner to decompose a draft plan into a DAG of tasks.
Requires the claude CLI on PATH and ` + constants.EnvAnthropicAPIKey + ` set.

The prompt carries the project's tracked-file listing; --context adds file
snippets and --max-lines overrides the per-task diff size target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlanGenerate(cmd.Context(), a, args[0], maxLines, contextFiles)
		},
	}

	cmd.Flags().IntVar(&maxLines, "max-lines", 0, "target changed lines per task")
	cmd.Flags().StringArrayVar(&contextFiles, "context", nil,
		"file to include in the planner prompt (repeatable)")
	parent.AddCommand(cmd)
}

func runPlanGenerate(ctx context.Context, a *app, planRef string, maxLines int, contextFiles []string) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	plan, err := s.FindPlanByPrefix(ctx, planRef)
	if err != nil {
		return err
	}
	project, err := s.GetProject(ctx, plan.ProjectID)
	if err != nil {
		return err
	}

	req := planner.Request{
		RepoPath:        project.RepoPath,
		StructureDigest: structureDigest(ctx, project.RepoPath),
		MaxLinesPerTask: maxLines,
	}
	for _, path := range contextFiles {
		content, err := os.ReadFile(path) //#nosec G304 -- path supplied by the operator
		if err != nil {
			return fmt.Errorf("read context file %s: %w", path, err)
		}
		req.ContextFiles = append(req.ContextFiles, planner.Snippet{
			Path:    path,
			Content: string(content),
		})
	}

	runner := planner.NewClaudeRunner(planner.WithLogger(a.logger.Logger))
	if err := planner.Generate(ctx, runner, s, plan, req, a.logger.Logger); err != nil {
		return err
	}

	tasks, err := s.ListTasksByPlan(ctx, plan.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Plan %s decomposed into %d tasks\n", id.Short(plan.ID), len(tasks))
	return nil
}

// structureDigest lists the repository's tracked files for the planner
// prompt. Best effort; planning proceeds without it.
func structureDigest(ctx context.Context, repoPath string) string {
	out, err := git.RunCommand(ctx, repoPath, "ls-files")
	if err != nil {
		return ""
	}
	return out
}

func addPlanListCmd(parent *cobra.Command, a *app) {
	var (
		projectRef string
		status     string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List plans",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			plans, err := query.New(s).Plans(ctx, query.PlanListFilter{
				ProjectRef: projectRef,
				Status:     constants.PlanStatus(status),
			})
			if err != nil {
				return err
			}
			if a.flags.Output == OutputJSON {
				return printJSON(os.Stdout, plans)
			}
			if len(plans) == 0 {
				fmt.Fprintln(os.Stdout, "No plans. Run 'taskctl plan create' to create one.")
				return nil
			}
			return renderPlans(os.Stdout, plans)
		},
	}

	cmd.Flags().StringVarP(&projectRef, "project", "p", "", "filter by project id or prefix")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	parent.AddCommand(cmd)
}

func addPlanShowCmd(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "show <plan>",
		Short: "Show a plan with its progress and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			detail, err := query.New(s).PlanWithProgress(ctx, args[0])
			if err != nil {
				return err
			}

			if a.flags.Output == OutputJSON {
				return printJSON(os.Stdout, detail)
			}

			fmt.Fprintf(os.Stdout, "Plan %s: %s [%s]\n",
				id.Short(detail.Plan.ID), detail.Plan.Title, detail.Plan.Status)
			if detail.Plan.Description != "" {
				fmt.Fprintln(os.Stdout, detail.Plan.Description)
			}
			renderProgress(os.Stdout, detail.Progress)
			if len(detail.Tasks) > 0 {
				fmt.Fprintln(os.Stdout)
				return renderTasks(os.Stdout, detail.Tasks)
			}
			return nil
		},
	}
	parent.AddCommand(cmd)
}

func addPlanArchiveCmd(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "archive <plan>",
		Short: "Archive a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			plan, err := s.FindPlanByPrefix(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.TransitionPlan(ctx, plan.ID, constants.PlanStatusArchived); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Archived plan %s\n", id.Short(plan.ID))
			return nil
		},
	}
	parent.AddCommand(cmd)
}
