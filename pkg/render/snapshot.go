package render

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Snapshot is the serializable form of a view.
type Snapshot struct {
	Project    string                `json:"project"              yaml:"project"`
	Name       string                `json:"name"                 yaml:"name"`
	Repository string                `json:"repository,omitempty" yaml:"repository,omitempty"`
	Mode       string                `json:"mode"                 yaml:"mode"`
	Years      []int                 `json:"years"                yaml:"years"`
	Legend     []LegendEntry         `json:"legend"               yaml:"legend"`
	Palette    []string              `json:"palette"              yaml:"palette"`
	Overlay    calendar.OverlayState `json:"overlay"              yaml:"overlay"`
	Days       []CellSnapshot        `json:"days"                 yaml:"days"`
}

// LegendEntry is the color domain upper bound of one year.
type LegendEntry struct {
	Year int     `json:"year" yaml:"year"`
	Max  float64 `json:"max"  yaml:"max"`
}

// CellSnapshot is one day with data.
type CellSnapshot struct {
	Date        string            `json:"date"                  yaml:"date"`
	Value       float64           `json:"value"                 yaml:"value"`
	Bucket      int               `json:"bucket"                yaml:"bucket"`
	Color       string            `json:"color"                 yaml:"color"`
	Tooltip     *calendar.Tooltip `json:"tooltip,omitempty"     yaml:"tooltip,omitempty"`
	Temperature *float64          `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// DaySnapshot is the full detail of a single date.
type DaySnapshot struct {
	Date        string                 `json:"date"                   yaml:"date"`
	Mode        string                 `json:"mode"                   yaml:"mode"`
	HasData     bool                   `json:"has_data"               yaml:"has_data"`
	Value       float64                `json:"value"                  yaml:"value"`
	Color       string                 `json:"color"                  yaml:"color"`
	Commits     *float64               `json:"commits,omitempty"      yaml:"commits,omitempty"`
	Developers  *float64               `json:"developers,omitempty"   yaml:"developers,omitempty"`
	FileChanges int                    `json:"file_changes"           yaml:"file_changes"`
	Tooltip     *calendar.Tooltip      `json:"tooltip,omitempty"      yaml:"tooltip,omitempty"`
	Temperature *float64               `json:"temperature,omitempty"  yaml:"temperature,omitempty"`
	Repos       []calendar.RepoChanges `json:"repos,omitempty"        yaml:"repos,omitempty"`
}

// NewSnapshot captures view.
func NewSnapshot(view *calendar.View, p project.Project) Snapshot {
	snap := Snapshot{
		Project:    view.Project,
		Name:       p.DisplayName(),
		Repository: p.Sources.VCSURL,
		Mode:       view.Mode.Name(),
		Years:      append([]int{}, view.Years...),
		Legend:     make([]LegendEntry, 0, len(view.Years)),
		Palette:    append([]string{}, view.Palette...),
		Overlay:    view.Overlay,
		Days:       []CellSnapshot{},
	}

	if snap.Name == "" {
		snap.Name = view.Project
	}

	for _, y := range view.Years {
		snap.Legend = append(snap.Legend, LegendEntry{Year: y, Max: view.Legend[y]})
	}

	for _, cell := range view.Cells() {
		snap.Days = append(snap.Days, CellSnapshot{
			Date:        cell.Date.String(),
			Value:       cell.Value,
			Bucket:      cell.Bucket,
			Color:       cell.Color,
			Tooltip:     cell.Tooltip,
			Temperature: cell.Temperature,
		})
	}

	return snap
}

// NewDaySnapshot captures date d of view.
func NewDaySnapshot(view *calendar.View, d calendar.Date) DaySnapshot {
	day := view.Day(d)
	cell := view.Cell(d)

	snap := DaySnapshot{
		Date:        d.String(),
		Mode:        view.Mode.Name(),
		HasData:     cell.HasData,
		Value:       cell.Value,
		Color:       cell.Color,
		FileChanges: day.FileChanges.DistinctFiles(),
		Tooltip:     cell.Tooltip,
		Temperature: cell.Temperature,
		Repos:       view.Detail(d),
	}

	if day.HasCommits {
		snap.Commits = &day.Commits
	}

	if day.HasDevelopers {
		snap.Developers = &day.Developers
	}

	return snap
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// WriteYAML writes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	return nil
}

// ProjectSummary is one entry of a project list.
type ProjectSummary struct {
	Key        string `json:"key"                  yaml:"key"`
	Name       string `json:"name"                 yaml:"name"`
	Recent     bool   `json:"recent"               yaml:"recent"`
	Core       bool   `json:"core"                 yaml:"core"`
	Main       bool   `json:"main"                 yaml:"main"`
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`
}

// ProjectList is the filtered project catalog.
type ProjectList struct {
	Projects []ProjectSummary `json:"projects"          yaml:"projects"`
	// Default is the project selected initially; empty when none passes the filter.
	Default string `json:"default,omitempty" yaml:"default,omitempty"`
	// Filtered reports whether the filter was applied; without metadata it is ignored.
	Filtered bool `json:"filtered"          yaml:"filtered"`
}

// NewProjectList applies f to catalog.
func NewProjectList(catalog *project.Catalog, f project.Filter) ProjectList {
	list := ProjectList{Projects: []ProjectSummary{}, Filtered: catalog.HasMetadata()}

	for _, p := range catalog.Filter(f) {
		list.Projects = append(list.Projects, ProjectSummary{
			Key:        p.Key(),
			Name:       p.DisplayName(),
			Recent:     p.Recent,
			Core:       p.Core,
			Main:       p.Main,
			Repository: p.Sources.VCSURL,
		})
	}

	if p, ok := catalog.Default(f); ok {
		list.Default = p.Key()
	}

	return list
}
