package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/forge"
	"github.com/taskctl/taskctl/internal/git"
	"github.com/taskctl/taskctl/internal/id"
	"github.com/taskctl/taskctl/internal/scheduler"
)

// addScheduleCommand registers "taskctl schedule".
func addScheduleCommand(parent *cobra.Command, a *app) {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "schedule <plan>",
		Short: "Assign ready tasks to available slots",
		Long: `Select the next batch of ready tasks, pair each with an available slot,
create its branch from the plan's source branch, and check it out in the
slot worktree. With --dry-run the batch is printed without assigning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd.Context(), a, args[0], dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the batch without assigning")
	parent.AddCommand(cmd)
}

func runSchedule(ctx context.Context, a *app, planRef string, dryRun bool) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	plan, err := s.FindPlanByPrefix(ctx, planRef)
	if err != nil {
		return err
	}

	sched := scheduler.New(s, git.NewCLIRunner(), scheduler.WithLogger(a.logger.Logger))
	state, err := sched.Initialize(ctx, plan.ID)
	if err != nil {
		return err
	}

	batch, err := sched.NextBatch(ctx, state)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		if state.IsComplete() {
			fmt.Fprintln(os.Stdout, "Plan complete.")
		} else {
			fmt.Fprintln(os.Stdout, "Nothing to schedule.")
		}
		return nil
	}

	if dryRun {
		fmt.Fprintf(os.Stdout, "Would assign %d task(s):\n", len(batch))
		printBatch(batch)
		return nil
	}

	if err := sched.Assign(ctx, state, batch); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Assigned %d task(s):\n", len(batch))
	printBatch(batch)
	return nil
}

func printBatch(batch []scheduler.Pairing) {
	for _, pairing := range batch {
		fmt.Fprintf(os.Stdout, "  %s %s -> slot %s on %s\n",
			id.Short(pairing.Task.ID), pairing.Task.Title, pairing.Slot.Name, pairing.Branch)
	}
}

// addSyncCommand registers "taskctl sync".
func addSyncCommand(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "sync <plan>",
		Short: "Reconcile PR state against the forge",
		Long: `Poll the forge for every task holding a PR, record status changes, and
complete tasks whose PR merged. Completing a task frees its slot and
promotes dependents, so a following "taskctl schedule" can assign them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), a, args[0])
		},
	}
	parent.AddCommand(cmd)
}

func runSync(ctx context.Context, a *app, planRef string) error {
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

	forgeRunner := forge.NewGHRunner(project.RepoPath, forge.WithLogger(a.logger.Logger))
	if err := forgeRunner.CheckAvailability(ctx); err != nil {
		return err
	}

	sched := scheduler.New(s, git.NewCLIRunner(),
		scheduler.WithLogger(a.logger.Logger),
		scheduler.WithForge(forgeRunner),
	)
	state, err := sched.Initialize(ctx, plan.ID)
	if err != nil {
		return err
	}

	result, err := sched.Sync(ctx, state)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Polled %d PR(s), %d updated, %d task(s) completed\n",
		result.Polled, result.Updated, len(result.Completed))
	for _, taskID := range result.Completed {
		fmt.Fprintf(os.Stdout, "  completed %s\n", id.Short(taskID))
	}
	return nil
}
