package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

const (
	glyphNoData  = "··"
	glyphOutside = "  "
	hoursPerDay  = 24
	hexColorLen  = 7
)

// shades are used for buckets, lightest first, so grids stay readable without color.
var shades = []string{"░░", "▒▒", "▓▓", "██"}

// Text writes a terminal grid per year followed by a legend table.
func Text(w io.Writer, view *calendar.View, p project.Project, opts Options) error {
	tw := &textWriter{w: w, opts: opts}

	name := p.DisplayName()
	if name == "" {
		name = view.Project
	}

	tw.heading("%s: %s", name, modeTitle(view.Mode))

	if p.Sources.VCSURL != "" {
		tw.printf("%s\n", p.Sources.VCSURL)
	}

	if view.Empty() {
		tw.printf("%s\n", EmptyMessage)

		return tw.err
	}

	for _, year := range view.Years {
		tw.printf("\n")
		tw.heading("%d", year)
		tw.grid(view, year)
	}

	tw.printf("\n%s\n", legendTable(view, opts))

	days := len(view.Cells())
	tw.printf("%s days with data\n", humanize.Comma(int64(days)))

	if view.Overlay.Enabled {
		if lo, hi, ok := view.TemperatureRange(); ok {
			tw.printf("Temperature %s to %s\n", formatValue(lo), formatValue(hi))
		}
	}

	return tw.err
}

// Day writes the detail of one date.
func Day(w io.Writer, snap DaySnapshot, opts Options) error {
	tw := &textWriter{w: w, opts: opts}

	if snap.Tooltip == nil {
		tw.heading("%s", snap.Date)
		tw.printf("No data\n")

		return tw.err
	}

	tw.heading("%s", snap.Tooltip.Title)
	tw.printf("%s\n", snap.Tooltip.Message)

	for _, repo := range snap.Repos {
		if repo.Collapsed {
			tw.printf("\n%s (%d files, collapsed)\n", repo.Repo, repo.Count)

			continue
		}

		tw.printf("\n%s (%d files)\n", repo.Repo, repo.Count)

		for _, file := range repo.Files {
			tw.printf("  %s  idle %s\n", file.File, idlePeriod(file.IdleDays))
		}
	}

	return tw.err
}

// Projects writes the project list as a table.
func Projects(w io.Writer, projects []project.Project, opts Options) error {
	tw := &textWriter{w: w, opts: opts}

	if len(projects) == 0 {
		tw.printf("No projects\n")

		return tw.err
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"Key", "Name", "Recent", "Core", "Repository"})

	for _, p := range projects {
		tbl.AppendRow(table.Row{p.Key(), p.DisplayName(), yesNo(p.Recent), yesNo(p.Core), p.Sources.VCSURL})
	}

	tw.printf("%s\n", tbl.Render())

	return tw.err
}

type textWriter struct {
	w    io.Writer
	opts Options
	err  error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}

	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (tw *textWriter) heading(format string, args ...any) {
	c := color.New(color.Bold, color.FgMagenta)
	tw.paint(c)
	tw.printf("%s\n", c.Sprintf(format, args...))
}

func (tw *textWriter) paint(c *color.Color) {
	if tw.opts.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
}

// grid prints seven weekday rows with one column per week.
func (tw *textWriter) grid(view *calendar.View, year int) {
	days := view.Days(year)
	weeks := days[len(days)-1].Date.WeekOfYear() + 1

	rows := make([][]string, len(weekdayLabels))
	for i := range rows {
		rows[i] = make([]string, weeks)
		for j := range rows[i] {
			rows[i][j] = glyphOutside
		}
	}

	for _, cell := range days {
		rows[cell.Date.Weekday()][cell.Date.WeekOfYear()] = tw.glyph(cell, len(view.Palette))
	}

	for i, row := range rows {
		tw.printf("%s %s\n", weekdayLabels[i], strings.Join(row, ""))
	}
}

func (tw *textWriter) glyph(cell calendar.Cell, buckets int) string {
	if !cell.HasData {
		return glyphNoData
	}

	g := shades[cell.Bucket*len(shades)/max(buckets, 1)]
	if !tw.opts.Color {
		return g
	}

	r, gr, b, ok := parseHexColor(cell.Color)
	if !ok {
		return g
	}

	c := color.RGB(r, gr, b)
	c.EnableColor()

	return c.Sprint(g)
}

func legendTable(view *calendar.View, opts Options) string {
	tbl := newTable()
	tbl.AppendHeader(table.Row{"Year", "Domain max", "Days", "Scale"})

	scale := make([]string, len(view.Palette))
	for i := range view.Palette {
		tw := &textWriter{opts: opts}
		scale[i] = tw.glyph(calendar.Cell{HasData: true, Bucket: i, Color: view.Palette[i]}, len(view.Palette))
	}

	for _, year := range view.Years {
		count := 0

		for _, cell := range view.Days(year) {
			if cell.HasData {
				count++
			}
		}

		tbl.AppendRow(table.Row{year, formatValue(view.Legend[year]), count, strings.Join(scale, "")})
	}

	return tbl.Render()
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func parseHexColor(hex string) (r, g, b int, ok bool) {
	if len(hex) != hexColorLen || hex[0] != '#' {
		return 0, 0, 0, false
	}

	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}

	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}

func idlePeriod(days int) string {
	start := time.Unix(0, 0).UTC()
	end := start.Add(time.Duration(days) * hoursPerDay * time.Hour)

	return strings.TrimSpace(humanize.RelTime(start, end, "", ""))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
