package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/constants"
	"github.com/taskctl/taskctl/internal/domain"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/git"
	"github.com/taskctl/taskctl/internal/id"
)

// addSlotCommand registers the "taskctl slot" command group.
func addSlotCommand(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage execution slots (git worktrees)",
	}
	addSlotAddCmd(cmd, a)
	addSlotListCmd(cmd, a)
	addSlotRemoveCmd(cmd, a)
	parent.AddCommand(cmd)
}

func addSlotAddCmd(parent *cobra.Command, a *app) {
	var (
		projectRef string
		name       string
		path       string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an execution slot",
		Long: `Add an execution slot to a project: a git worktree in which one task at
a time is implemented. The worktree is created next to the repository as
<repo>-slots/<name> unless --path is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSlotAdd(cmd.Context(), a, projectRef, name, path)
		},
	}

	cmd.Flags().StringVarP(&projectRef, "project", "p", "", "project id or prefix")
	cmd.Flags().StringVarP(&name, "name", "n", "", "slot name")
	cmd.Flags().StringVar(&path, "path", "", "worktree path (default: <repo>-slots/<name>)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	parent.AddCommand(cmd)
}

func runSlotAdd(ctx context.Context, a *app, projectRef, name, path string) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	project, err := s.FindProjectByPrefix(ctx, projectRef)
	if err != nil {
		return err
	}
	if path == "" {
		path = project.RepoPath + "-slots/" + name
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path %s: %w", path, err)
	}

	runner := git.NewCLIRunner()
	if err := runner.AddWorktree(ctx, project.RepoPath, absPath, project.MainBranch); err != nil {
		return err
	}

	slot := &domain.Slot{
		ProjectID: project.ID,
		Name:      name,
		Path:      absPath,
		Branch:    project.MainBranch,
	}
	if err := s.CreateSlot(ctx, slot); err != nil {
		// The worktree exists but the row does not; remove it so slot add
		// can be retried.
		_ = runner.RemoveWorktree(ctx, project.RepoPath, absPath, true)
		return fmt.Errorf("create slot: %w", err)
	}

	a.logger.Info().Str("slot_id", slot.ID).Str("path", absPath).Msg("slot added")
	fmt.Fprintf(os.Stdout, "Added slot %s (%s) at %s\n", name, id.Short(slot.ID), absPath)
	return nil
}

func addSlotListCmd(parent *cobra.Command, a *app) {
	var projectRef string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List slots",
		Aliases: []string{"ls"},
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
			slots, err := s.ListSlots(ctx, project.ID)
			if err != nil {
				return err
			}
			if a.flags.Output == OutputJSON {
				return printJSON(os.Stdout, slots)
			}
			if len(slots) == 0 {
				fmt.Fprintln(os.Stdout, "No slots. Run 'taskctl slot add' to create one.")
				return nil
			}
			return renderSlots(os.Stdout, slots)
		},
	}

	cmd.Flags().StringVarP(&projectRef, "project", "p", "", "project id or prefix")
	_ = cmd.MarkFlagRequired("project")
	parent.AddCommand(cmd)
}

func addSlotRemoveCmd(parent *cobra.Command, a *app) {
	var (
		projectRef string
		force      bool
	)

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Short:   "Remove a slot and its worktree",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlotRemove(cmd.Context(), a, projectRef, args[0], force)
		},
	}

	cmd.Flags().StringVarP(&projectRef, "project", "p", "", "project id or prefix")
	cmd.Flags().BoolVar(&force, "force", false, "remove even with uncommitted changes")
	_ = cmd.MarkFlagRequired("project")
	parent.AddCommand(cmd)
}

func runSlotRemove(ctx context.Context, a *app, projectRef, name string, force bool) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	project, err := s.FindProjectByPrefix(ctx, projectRef)
	if err != nil {
		return err
	}
	slots, err := s.ListSlots(ctx, project.ID)
	if err != nil {
		return err
	}

	var slot *domain.Slot
	for _, candidate := range slots {
		if candidate.Name == name {
			slot = candidate
			break
		}
	}
	if slot == nil {
		return fmt.Errorf("slot %q: %w", name, taskctlerrors.ErrNotFound)
	}
	if slot.Status != constants.SlotStatusAvailable && slot.Status != constants.SlotStatusError {
		return fmt.Errorf("%w: slot %s is %s", taskctlerrors.ErrSlotBusy, name, slot.Status)
	}

	if err := s.DeleteSlot(ctx, slot.ID); err != nil {
		return err
	}
	runner := git.NewCLIRunner()
	if err := runner.RemoveWorktree(ctx, project.RepoPath, slot.Path, force); err != nil {
		a.logger.Warn().Err(err).Str("path", slot.Path).Msg("worktree removal failed")
	}

	fmt.Fprintf(os.Stdout, "Removed slot %s\n", name)
	return nil
}
