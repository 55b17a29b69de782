package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/observability"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
	"github.com/Sumatoshi-tech/heatmap/pkg/render"
)

// ErrNoProject is returned when no project was named and the catalog has no default.
var ErrNoProject = errors.New("no project selected and no default project available")

// RenderCommand holds the flags of the render command.
type RenderCommand struct {
	global  *GlobalOptions
	project string
	mode    string
	format  string
	output  string
	date    string
	noColor bool
}

// NewRenderCommand creates the render command.
func NewRenderCommand(global *GlobalOptions) *cobra.Command {
	rc := &RenderCommand{global: global}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the calendar heatmap of a project",
		Long: `Render the calendar heatmap of a project.

Modes: total-commits, commits-per-developer, file-changes.
With --date only the detail of that day is printed.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().StringVarP(&rc.project, "project", "p", "", "Project key (default: first recent core project)")
	cmd.Flags().StringVarP(&rc.mode, "mode", "m", "", "View mode (default: calendar.default_mode)")
	cmd.Flags().StringVarP(&rc.format, "format", "f", string(render.FormatText), "Output format: html, text, json, yaml")
	cmd.Flags().StringVarP(&rc.output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&rc.date, "date", "", "Print the detail of one day (YYYY-MM-DD)")
	cmd.Flags().Bool("overlay", false, "Show temperature readings (default: calendar.show_temperature)")
	cmd.Flags().BoolVar(&rc.noColor, "no-color", false, "Disable colored text output")

	return cmd
}

func (rc *RenderCommand) run(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(rc.format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	sess, err := rc.global.openSession(ctx, observability.ModeCLI, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer func() {
		closeErr := sess.Close(ctx)
		if closeErr != nil {
			sess.logger().Warn("shutdown failed", "error", closeErr)
		}
	}()

	overlay := sess.cfg.Calendar.ShowTemperature
	if cmd.Flags().Changed("overlay") {
		overlay, _ = cmd.Flags().GetBool("overlay")
	}

	p, err := rc.resolveProject(sess)
	if err != nil {
		return err
	}

	view, err := rc.resolveView(ctx, sess, p.Key(), overlay)
	if err != nil {
		return err
	}

	return rc.write(cmd.OutOrStdout(), func(w io.Writer, opts render.Options) error {
		if rc.date == "" {
			return render.View(w, format, view, p, opts)
		}

		return rc.writeDay(w, format, view, opts)
	})
}

func (rc *RenderCommand) resolveProject(sess *session) (project.Project, error) {
	catalog := sess.repo.Catalog()

	if rc.project == "" {
		p, ok := catalog.Default(project.DefaultFilter())
		if !ok {
			return project.Project{}, ErrNoProject
		}

		return p, nil
	}

	if p, ok := catalog.Lookup(rc.project); ok {
		return p, nil
	}

	return project.Project{Metadata: project.Metadata{Name: rc.project}}, nil
}

func (rc *RenderCommand) resolveView(ctx context.Context, sess *session, key string, overlay bool) (*calendar.View, error) {
	mode := sess.cfg.DefaultMode()

	if rc.mode != "" {
		parsed, err := calendar.ParseMode(rc.mode)
		if err != nil {
			return nil, err
		}

		mode = parsed
	}

	ctrl := calendar.NewModeController(sess.repo, calendar.ControllerOptions{
		Mode:    mode,
		Overlay: overlay,
		Logger:  sess.logger(),
	})

	return ctrl.SelectProject(ctx, key)
}

func (rc *RenderCommand) writeDay(w io.Writer, format render.Format, view *calendar.View, opts render.Options) error {
	date, err := calendar.ParseDate(rc.date)
	if err != nil {
		return err
	}

	snap := render.NewDaySnapshot(view, date)

	switch format {
	case render.FormatText:
		return render.Day(w, snap, opts)
	case render.FormatJSON:
		return render.WriteJSON(w, snap)
	case render.FormatYAML:
		return render.WriteYAML(w, snap)
	case render.FormatHTML:
		return fmt.Errorf("%w: %s is not available for a single day", render.ErrUnknownFormat, format)
	}

	return fmt.Errorf("%w: %q", render.ErrUnknownFormat, format)
}

// write runs fn against stdout or the --output file. Colors are only used
// on stdout.
func (rc *RenderCommand) write(stdout io.Writer, fn func(io.Writer, render.Options) error) error {
	if rc.output == "" {
		return fn(stdout, render.Options{Color: !rc.noColor && !color.NoColor})
	}

	file, err := os.Create(rc.output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	err = fn(file, render.Options{})

	closeErr := file.Close()
	if closeErr != nil && err == nil {
		err = fmt.Errorf("close output file: %w", closeErr)
	}

	return err
}
