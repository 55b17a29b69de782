package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/heatmap/pkg/mcp"
	"github.com/Sumatoshi-tech/heatmap/pkg/observability"
	"github.com/Sumatoshi-tech/heatmap/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(global *GlobalOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes heatmap calendars as tools that AI agents can
discover and invoke:
  - heatmap_projects: List the projects with commit data
  - heatmap_calendar: Calendar of a project in one view mode
  - heatmap_day: Detail of one day, including long-idle file changes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if debug {
				global.Verbose = true
			}

			ctx := cmd.Context()

			sess, err := global.openSession(ctx, observability.ModeMCP, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() {
				closeErr := sess.Close(ctx)
				if closeErr != nil {
					sess.logger().Warn("observability shutdown failed", "error", closeErr)
				}
			}()

			red, err := observability.NewREDMetrics(sess.providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Source:      sess.repo,
				DefaultMode: sess.cfg.DefaultMode(),
				Version:     version.Version,
				Logger:      sess.logger(),
				Metrics:     red,
				Tracer:      sess.providers.Tracer,
			})

			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
