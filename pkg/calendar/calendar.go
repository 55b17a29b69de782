package calendar

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Input is the raw data of one project.
type Input struct {
	Project     string
	Commits     []DayRecord
	Developers  []DayRecord
	Temperature TemperatureSeries
}

// Calendar is the aggregated state of one project: its dataset, the color
// domains of every mode and the lazily loaded file changes.
// A Calendar is safe for concurrent use.
type Calendar struct {
	project     string
	cfg         Config
	temperature TemperatureSeries
	files       *FileChangeAggregator
	logger      *slog.Logger

	mu      sync.RWMutex
	dataset *Dataset
	domains *DomainTable
}

// NewCalendar aggregates in and computes the domains of all modes. File
// changes are fetched from source on the first call to LoadFileChanges.
func NewCalendar(in Input, source FileChangeSource, cfg Config, logger *slog.Logger) *Calendar {
	if logger == nil {
		logger = slog.Default()
	}

	cfg = cfg.withDefaults()

	cal := &Calendar{
		project:     in.Project,
		cfg:         cfg,
		temperature: in.Temperature,
		files:       NewFileChangeAggregator(source, logger),
		logger:      logger,
		dataset:     NewDataset(in.Commits, in.Developers),
		domains:     NewDomainTable(),
	}

	for _, m := range Modes {
		cal.domains.Recompute(m, cal.dataset.Years, cal.dataset, cfg.FileChangeCap)
	}

	return cal
}

// Project returns the project key.
func (c *Calendar) Project() string {
	return c.project
}

// Config returns the effective settings.
func (c *Calendar) Config() Config {
	return c.cfg
}

// Years returns the calendar years with commit data, ascending.
func (c *Calendar) Years() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.dataset.Years)
}

// HasTemperature reports whether any temperature reading is available.
func (c *Calendar) HasTemperature() bool {
	return len(c.temperature) > 0
}

// FileChangesLoaded reports whether file changes were attached.
func (c *Calendar) FileChangesLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.dataset.HasFileChanges()
}

// LoadFileChanges fetches the project's file changes once and recomputes
// the file-changes domain. Later calls return immediately.
func (c *Calendar) LoadFileChanges(ctx context.Context) error {
	if c.FileChangesLoaded() {
		return nil
	}

	idx, err := c.files.Load(ctx, c.project)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dataset.HasFileChanges() {
		return nil
	}

	// Views keep the dataset they were built from.
	next := *c.dataset
	next.FileChanges = idx
	c.dataset = &next

	c.domains.Recompute(FileChanges{}, next.Years, c.dataset, c.cfg.FileChangeCap)

	c.logger.DebugContext(ctx, "file changes attached", "project", c.project, "dates", len(idx))

	return nil
}

// View returns a snapshot of the calendar in mode. overlay is the user's
// toggle state; it only takes effect when the overlay is available.
func (c *Calendar) View(mode Mode, overlay bool) *View {
	c.mu.RLock()
	defer c.mu.RUnlock()

	available := mode.SupportsTemperatureOverlay() && c.HasTemperature()

	return &View{
		Project: c.project,
		Mode:    mode,
		Years:   slices.Clone(c.dataset.Years),
		Legend:  c.domains.Legend(mode, c.dataset.Years),
		Palette: slices.Clone(c.cfg.Palette),
		Overlay: OverlayState{
			Enabled:   overlay && available,
			Available: available,
		},
		dataset:     c.dataset,
		temperature: c.temperature,
		unit:        c.cfg.TemperatureUnit,
	}
}

// --- View ---.

// OverlayState describes the temperature overlay toggle.
type OverlayState struct {
	// Enabled reports whether temperature bars are shown.
	Enabled bool `json:"enabled"   yaml:"enabled"`
	// Available reports whether the toggle can be switched on.
	Available bool `json:"available" yaml:"available"`
}

// View is an immutable snapshot of a calendar in one mode.
type View struct {
	Project string
	Mode    Mode
	Years   []int
	// Legend maps each year to the upper bound of its color domain.
	Legend  map[int]float64
	Palette Palette
	Overlay OverlayState

	dataset     *Dataset
	temperature TemperatureSeries
	unit        string
}

// Cell is the rendered state of one date.
type Cell struct {
	Date    Date
	HasData bool
	Value   float64
	Bucket  int
	Color   string
	// Tooltip is nil when the date has no data in the view's mode.
	Tooltip *Tooltip
	// Temperature is set when the overlay is enabled and a reading exists.
	Temperature *float64
}

// Empty reports whether the project has no commit data.
func (v *View) Empty() bool {
	return len(v.Years) == 0
}

// Day returns the aggregated data of d.
func (v *View) Day(d Date) AggregatedDay {
	return v.dataset.Day(d)
}

// Cell returns the state of date d.
func (v *View) Cell(d Date) Cell {
	day := v.dataset.Day(d)
	cell := Cell{Date: d}

	cell.Value, cell.HasData = v.Mode.Metric(day)
	if cell.HasData {
		cell.Bucket = Quantize(cell.Value, v.Legend[d.Year], len(v.Palette))
	}

	cell.Color = v.Palette.Color(cell.Bucket)

	temp, hasTemp := v.temperature.Lookup(d)

	if tip, ok := FormatTooltip(day, v.Mode, Temperature{Value: temp, Valid: hasTemp}, v.unit); ok {
		cell.Tooltip = &tip
	}

	if v.Overlay.Enabled && hasTemp {
		cell.Temperature = &temp
	}

	return cell
}

// Days returns the cells of every date in year.
func (v *View) Days(year int) []Cell {
	dates := DaysOfYear(year)
	cells := make([]Cell, len(dates))

	for i, d := range dates {
		cells[i] = v.Cell(d)
	}

	return cells
}

// Cells returns the cells with data in the view's mode, ordered by date.
func (v *View) Cells() []Cell {
	var cells []Cell

	for _, y := range v.Years {
		for _, cell := range v.Days(y) {
			if cell.HasData {
				cells = append(cells, cell)
			}
		}
	}

	return cells
}

// Detail returns the file-change listing of d; nil when nothing was fetched
// or nothing changed that day.
func (v *View) Detail(d Date) []RepoChanges {
	return v.dataset.Day(d).FileChanges.Detail()
}

// TemperatureRange returns the lowest and highest reading within the view's
// years; ok is false when there is none.
func (v *View) TemperatureRange() (lo, hi float64, ok bool) {
	years := make(map[int]struct{}, len(v.Years))
	for _, y := range v.Years {
		years[y] = struct{}{}
	}

	for d, t := range v.temperature {
		if _, in := years[d.Year]; !in {
			continue
		}

		if !ok {
			lo, hi, ok = t, t, true

			continue
		}

		lo, hi = min(lo, t), max(hi, t)
	}

	return lo, hi, ok
}
