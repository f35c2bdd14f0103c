package cli

import (
	"github.com/spf13/cobra"

	"github.com/taskctl/taskctl/internal/mcpserver"
	"github.com/taskctl/taskctl/internal/query"
)

// addMCPCommand registers the "taskctl mcp" command group.
func addMCPCommand(parent *cobra.Command, a *app) {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Model Context Protocol server",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve read-only plan and task queries over stdio",
		Long: `Start an MCP server on stdio exposing get_plan, list_plans, get_task,
list_tasks, and get_current_task. Intended to be launched by an AI coding
tool, for example:

  {
    "mcpServers": {
      "taskctl": {
        "command": "taskctl",
        "args": ["mcp", "serve"]
      }
    }
  }`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore()
			if err != nil {
				return err
			}
			a.logger.Info().Msg("mcp server listening on stdio")
			return mcpserver.Serve(mcpserver.New(query.New(s)))
		},
	}

	cmd.AddCommand(serve)
	parent.AddCommand(cmd)
}
