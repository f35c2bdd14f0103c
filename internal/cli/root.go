// Package cli provides the command-line interface for taskctl.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/config"
	taskctlerrors "github.com/taskctl/taskctl/internal/errors"
	"github.com/taskctl/taskctl/internal/logging"
	"github.com/taskctl/taskctl/internal/store"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// Output format values for the --output flag.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	// DBPath overrides the configured database location.
	DBPath string

	// Output selects the rendering format: table or json.
	Output string

	// Verbose raises the log level to debug.
	Verbose bool

	// Quiet lowers the log level to warn.
	Quiet bool
}

// app holds the dependencies resolved once per invocation. The store is
// opened lazily because it takes an exclusive cross-process lock.
type app struct {
	flags  GlobalFlags
	cfg    *config.Config
	logger *logging.Logger
	store  *store.Store
}

// init resolves configuration and the logger from the global flags.
func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.flags.DBPath != "" {
		cfg.DBPath = a.flags.DBPath
	}

	level := cfg.LogLevel
	switch {
	case a.flags.Verbose:
		level = zerolog.LevelDebugValue
	case a.flags.Quiet:
		level = zerolog.LevelWarnValue
	}

	logger, err := logging.Init(logging.Options{Level: level, Dir: cfg.LogDir})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// openStore opens the database on first use and caches it for the rest of
// the invocation.
func (a *app) openStore() (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.Open(a.cfg.DBPath, store.WithLogger(a.logger.Logger))
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", a.cfg.DBPath, err)
	}
	a.store = s
	return s, nil
}

// close releases the store and the log file.
func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		a.logger.Close()
	}
}

// newRootCmd creates the root command and wires every subcommand.
func newRootCmd(a *app, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taskctl",
		Short: "taskctl - parallel task orchestration for AI-assisted development",
		Long: `taskctl decomposes a software change into a DAG of small tasks and
coordinates their lifecycle: each task gets its own branch in an isolated
worktree slot, its own pull request, and completes when that PR merges.

Dependent tasks unlock automatically as their prerequisites finish, so
independent work proceeds in parallel up to a configurable concurrency cap.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.flags.Output != OutputTable && a.flags.Output != OutputJSON {
				return fmt.Errorf("%w: output %q must be table or json",
					taskctlerrors.ErrInvalidArgument, a.flags.Output)
			}
			return a.init()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.flags.DBPath, "db", "", "database path (overrides config)")
	flags.StringVarP(&a.flags.Output, "output", "o", OutputTable, "output format: table or json")
	flags.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "debug logging")
	flags.BoolVarP(&a.flags.Quiet, "quiet", "q", false, "warnings and errors only")

	addInitCommand(cmd, a)
	addPlanCommand(cmd, a)
	addTaskCommand(cmd, a)
	addSlotCommand(cmd, a)
	addScheduleCommand(cmd, a)
	addSyncCommand(cmd, a)
	addMCPCommand(cmd, a)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context, info BuildInfo) int {
	a := &app{}
	defer a.close()

	cmd := newRootCmd(a, info)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return taskctlerrors.ExitCode(err)
	}
	return 0
}
