package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
	"github.com/Sumatoshi-tech/heatmap/pkg/render"
)

// Tool name constants.
const (
	ToolNameProjects = "heatmap_projects"
	ToolNameCalendar = "heatmap_calendar"
	ToolNameDay      = "heatmap_day"
)

// Sentinel errors for tool input validation.
var (
	// ErrEmptyProject indicates the project parameter is empty.
	ErrEmptyProject = errors.New("project parameter is required and must not be empty")
	// ErrEmptyDate indicates the date parameter is empty.
	ErrEmptyDate = errors.New("date parameter is required and must not be empty")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Input types (auto-generate JSON schemas via struct tags).

// ProjectsInput is the input schema for the heatmap_projects tool.
type ProjectsInput struct {
	Recent  *bool `json:"recent,omitempty"  jsonschema:"only recently active projects (default: true)"`
	Support *bool `json:"support,omitempty" jsonschema:"include support projects besides core ones (default: false)"`
}

// CalendarInput is the input schema for the heatmap_calendar tool.
type CalendarInput struct {
	Project string `json:"project"           jsonschema:"project key as listed by heatmap_projects"`
	Mode    string `json:"mode,omitempty"    jsonschema:"view mode: total-commits, commits-per-developer or file-changes"`
	Overlay bool   `json:"overlay,omitempty" jsonschema:"attach temperature readings to the days when the mode allows it"`
}

// DayInput is the input schema for the heatmap_day tool.
type DayInput struct {
	Project string `json:"project"        jsonschema:"project key as listed by heatmap_projects"`
	Date    string `json:"date"           jsonschema:"date as YYYY-MM-DD"`
	Mode    string `json:"mode,omitempty" jsonschema:"view mode used for the value and tooltip (default: total-commits)"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

type toolHandlers struct {
	source      Source
	defaultMode calendar.Mode
	logger      *slog.Logger
}

func (h *toolHandlers) handleProjects(
	_ context.Context, _ *mcpsdk.CallToolRequest, input ProjectsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	filter := project.DefaultFilter()

	if input.Recent != nil {
		filter.Recent = *input.Recent
	}

	if input.Support != nil {
		filter.Support = *input.Support
	}

	return jsonResult(render.NewProjectList(h.source.Catalog(), filter))
}

func (h *toolHandlers) handleCalendar(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input CalendarInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	view, err := h.view(ctx, input.Project, input.Mode, input.Overlay)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(render.NewSnapshot(view, h.projectOf(input.Project)))
}

func (h *toolHandlers) handleDay(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input DayInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Date == "" {
		return errorResult(ErrEmptyDate)
	}

	date, err := calendar.ParseDate(input.Date)
	if err != nil {
		return errorResult(err)
	}

	view, err := h.view(ctx, input.Project, input.Mode, false)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(render.NewDaySnapshot(view, date))
}

func (h *toolHandlers) view(ctx context.Context, key, modeName string, overlay bool) (*calendar.View, error) {
	if key == "" {
		return nil, ErrEmptyProject
	}

	mode := h.defaultMode

	if modeName != "" {
		parsed, err := calendar.ParseMode(modeName)
		if err != nil {
			return nil, err
		}

		mode = parsed
	}

	ctrl := calendar.NewModeController(h.source, calendar.ControllerOptions{
		Mode:    mode,
		Overlay: overlay,
		Logger:  h.logger,
	})

	return ctrl.SelectProject(ctx, key)
}

func (h *toolHandlers) projectOf(key string) project.Project {
	if p, ok := h.source.Catalog().Lookup(key); ok {
		return p
	}

	return project.Project{Metadata: project.Metadata{Name: key}}
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
