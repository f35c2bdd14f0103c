package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/id"
	"github.com/taskctl/taskctl/internal/query"
)

// addTaskCommand registers the "taskctl task" command group.
func addTaskCommand(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}
	addTaskListCmd(cmd, a)
	addTaskShowCmd(cmd, a)
	addTaskStartCmd(cmd, a)
	addTaskAttachSessionCmd(cmd, a)
	addTaskCompleteCmd(cmd, a)
	addTaskPRCmd(cmd, a)
	addTaskCurrentCmd(cmd, a)
	parent.AddCommand(cmd)
}

func addTaskListCmd(parent *cobra.Command, a *app) {
	var (
		planRef string
		status  string
		level   int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List tasks",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			filter := query.TaskListFilter{
				PlanRef: planRef,
				Status:  constants.TaskStatus(status),
			}
			if cmd.Flags().Changed("level") {
				filter.Level = level
				filter.HasLevel = true
			}
			tasks, err := query.New(s).Tasks(ctx, filter)
			if err != nil {
				return err
			}
			if a.flags.Output == OutputJSON {
				return printJSON(os.Stdout, tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(os.Stdout, "No tasks.")
				return nil
			}
			return renderTasks(os.Stdout, tasks)
		},
	}

	cmd.Flags().StringVarP(&planRef, "plan", "p", "", "filter by plan id or prefix")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&level, "level", 0, "filter by DAG level")
	parent.AddCommand(cmd)
}

func addTaskShowCmd(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "show <task>",
		Short: "Show a task with its dependencies and PR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			detail, err := query.New(s).TaskWithNeighbors(ctx, args[0])
			if err != nil {
				return err
			}
			if a.flags.Output == OutputJSON {
				return printJSON(os.Stdout, detail)
			}
			printTaskDetail(detail)
			return nil
		},
	}
	parent.AddCommand(cmd)
}

// printTaskDetail renders the full task projection for humans.
func printTaskDetail(detail *query.TaskDetail) {
	task := detail.Task
	fmt.Fprintf(os.Stdout, "Task %s: %s [%s]\n", id.Short(task.ID), task.Title, task.Status)
	fmt.Fprintf(os.Stdout, "Plan: %s (%s)\n", detail.Plan.Title, id.Short(detail.Plan.ID))
	if task.Description != "" {
		fmt.Fprintln(os.Stdout, task.Description)
	}
	if task.BranchName != "" {
		fmt.Fprintf(os.Stdout, "Branch: %s\n", task.BranchName)
	}
	if len(detail.DependsOn) > 0 {
		fmt.Fprintln(os.Stdout, "Depends on:")
		for _, dep := range detail.DependsOn {
			fmt.Fprintf(os.Stdout, "  %s %s [%s]\n", id.Short(dep.ID), dep.Title, dep.Status)
		}
	}
	if len(detail.Dependents) > 0 {
		fmt.Fprintln(os.Stdout, "Unlocks:")
		for _, dep := range detail.Dependents {
			fmt.Fprintf(os.Stdout, "  %s %s [%s]\n", id.Short(dep.ID), dep.Title, dep.Status)
		}
	}
	if detail.PR != nil {
		fmt.Fprintf(os.Stdout, "PR #%d [%s] %s\n", detail.PR.Number, detail.PR.Status, detail.PR.URL)
	}
}

func addTaskStartCmd(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "start <task>",
		Short: "Mark an assigned task as in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			task, err := s.FindTaskByPrefix(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.StartTask(ctx, task.ID); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Started task %s on branch %s\n",
				id.Short(task.ID), task.BranchName)
			return nil
		},
	}
	parent.AddCommand(cmd)
}

func addTaskAttachSessionCmd(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "attach-session <task> <session>",
		Short: "Attach an implementer session handle to a task",
		Long: `Attach an opaque session handle to a task so "taskctl task current" and
the MCP get_current_task tool can find it. A handle is attached to at most
one task; attaching it elsewhere moves it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			task, err := s.FindTaskByPrefix(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.AttachSession(ctx, task.ID, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Attached session to task %s\n", id.Short(task.ID))
			return nil
		},
	}
	parent.AddCommand(cmd)
}

func addTaskCompleteCmd(parent *cobra.Command, a *app) {
	var force bool

	cmd := &cobra.Command{
		Use:   "complete <task>",
		Short: "Complete a task and free its slot",
		Long: `Complete a task whose PR has merged, free its slot, and promote any
dependent tasks whose prerequisites are now all completed. Use --force to
complete without a merged PR.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			task, err := s.FindTaskByPrefix(ctx, args[0])
			if err != nil {
				return err
			}
			if err := s.CompleteTask(ctx, task.ID, force); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Completed task %s\n", id.Short(task.ID))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "complete without a merged PR")
	parent.AddCommand(cmd)
}

func addTaskCurrentCmd(parent *cobra.Command, a *app) {
	var (
		branch  string
		session string
	)

	cmd := &cobra.Command{
		Use:   "current",
		Short: "Show the task for a branch or session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore()
			if err != nil {
				return err
			}
			detail, err := query.New(s).CurrentTask(ctx, branch, session)
			if err != nil {
				return err
			}
			if detail == nil {
				if a.flags.Output == OutputJSON {
					return printJSON(os.Stdout, map[string]any{"current_task": nil})
				}
				fmt.Fprintln(os.Stdout, "No current task.")
				return nil
			}
			if a.flags.Output == OutputJSON {
				return printJSON(os.Stdout, detail)
			}
			printTaskDetail(detail)
			return nil
		},
	}

	cmd.Flags().StringVar(&branch, "branch", "", "branch name to look up")
	cmd.Flags().StringVar(&session, "session", "", "session handle to look up")
	parent.AddCommand(cmd)
}
