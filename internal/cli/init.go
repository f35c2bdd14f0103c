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

// addInitCommand registers "taskctl init".
func addInitCommand(parent *cobra.Command, a *app) {
	var (
		name          string
		mainBranch    string
		maxConcurrent int
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Register a repository as a taskctl project",
		Long: `Register the repository at path (default: current directory) as a
taskctl project. The repository must already be a git working tree.

Examples:
  taskctl init                        # register the current repository
  taskctl init ~/src/widget --name widget --max-concurrent 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(cmd.Context(), a, path, name, mainBranch, maxConcurrent)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name (default: repository directory name)")
	cmd.Flags().StringVar(&mainBranch, "main-branch", "", "main branch name (default: detected)")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0,
		fmt.Sprintf("concurrency cap (default %d)", constants.DefaultMaxConcurrent))
	parent.AddCommand(cmd)
}

func runInit(ctx context.Context, a *app, path, name, mainBranch string, maxConcurrent int) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path %s: %w", path, err)
	}

	runner := git.NewCLIRunner()
	if !runner.IsRepo(ctx, absPath) {
		return fmt.Errorf("%w: %s", taskctlerrors.ErrNotGitRepo, absPath)
	}
	root, err := runner.RepoRoot(ctx, absPath)
	if err != nil {
		return err
	}

	if name == "" {
		name = filepath.Base(root)
	}
	if mainBranch == "" {
		branch, branchErr := runner.CurrentBranch(ctx, root)
		if branchErr != nil || branch == "" {
			branch = constants.DefaultMainBranch
		}
		mainBranch = branch
	}
	remoteURL, err := runner.RemoteURL(ctx, root)
	if err != nil {
		return err
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}

	project := &domain.Project{
		Name:          name,
		RepoPath:      root,
		RemoteURL:     remoteURL,
		MainBranch:    mainBranch,
		MaxConcurrent: maxConcurrent,
	}
	if err := s.CreateProject(ctx, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	a.logger.Info().Str("project_id", project.ID).Str("repo", root).Msg("project registered")
	fmt.Fprintf(os.Stdout, "Registered project %s (%s) at %s\n", name, id.Short(project.ID), root)
	return nil
}
