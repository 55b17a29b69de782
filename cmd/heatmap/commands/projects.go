package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/heatmap/pkg/observability"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
	"github.com/Sumatoshi-tech/heatmap/pkg/render"
)

// NewProjectsCommand creates the projects command.
func NewProjectsCommand(global *GlobalOptions) *cobra.Command {
	var (
		recent  bool
		support bool
		format  string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the projects with commit data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			sess, err := global.openSession(ctx, observability.ModeCLI, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() {
				closeErr := sess.Close(ctx)
				if closeErr != nil {
					sess.logger().Warn("shutdown failed", "error", closeErr)
				}
			}()

			filter := project.Filter{Recent: recent, Support: support}
			out := cmd.OutOrStdout()

			switch outFormat {
			case render.FormatJSON:
				return render.WriteJSON(out, render.NewProjectList(sess.repo.Catalog(), filter))
			case render.FormatYAML:
				return render.WriteYAML(out, render.NewProjectList(sess.repo.Catalog(), filter))
			case render.FormatHTML:
				return fmt.Errorf("%w: %s is not available for the project list", render.ErrUnknownFormat, outFormat)
			case render.FormatText:
			}

			return render.Projects(out, sess.repo.Catalog().Filter(filter), render.Options{Color: !noColor && !color.NoColor})
		},
	}

	cmd.Flags().BoolVar(&recent, "recent", true, "Only list recently active projects")
	cmd.Flags().BoolVar(&support, "support", false, "Include support projects")
	cmd.Flags().StringVarP(&format, "format", "f", string(render.FormatText), "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}
