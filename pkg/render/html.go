package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

const (
	echartsAsset      = "https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"
	yearChartHeight   = "220px"
	temperatureHeight = "260px"
	chartWidth        = "100%"
	weeksPerYear      = 54
	styleTagLen       = 8 // len("</style>").

	// EmptyMessage is shown for projects without commit data.
	EmptyMessage = "No commit data for this project."
)

//go:embed templates/page.html
var templateFS embed.FS

var (
	pageTemplate     *template.Template
	pageTemplateOnce sync.Once
	errPageTemplate  error
)

func getPageTemplate() (*template.Template, error) {
	pageTemplateOnce.Do(func() {
		pageTemplate, errPageTemplate = template.ParseFS(templateFS, "templates/page.html")
		if errPageTemplate != nil {
			errPageTemplate = fmt.Errorf("parsing templates: %w", errPageTemplate)
		}
	})

	return pageTemplate, errPageTemplate
}

// pageData holds data for the page template.
type pageData struct {
	Title        string
	Subtitle     string
	Repository   string
	EChartsAsset string
	EmptyMessage string
	Palette      []string
	Sections     []sectionData
}

// sectionData holds data for one chart section.
type sectionData struct {
	Title    string
	Subtitle string
	Chart    template.HTML
}

// renderable is implemented by go-echarts charts.
type renderable interface {
	Render(w io.Writer) error
}

// HTML writes a standalone page with one heatmap per year. When the
// temperature overlay is enabled a line chart of the readings follows.
func HTML(w io.Writer, view *calendar.View, p project.Project) error {
	tmpl, err := getPageTemplate()
	if err != nil {
		return err
	}

	name := p.DisplayName()
	if name == "" {
		name = view.Project
	}

	data := pageData{
		Title:        name,
		Subtitle:     pageSubtitle(view),
		Repository:   p.Sources.VCSURL,
		EChartsAsset: echartsAsset,
		EmptyMessage: EmptyMessage,
		Palette:      view.Palette,
	}

	// Newest year first.
	for i := len(view.Years) - 1; i >= 0; i-- {
		year := view.Years[i]

		chart, chartErr := renderChart(yearHeatMap(view, year))
		if chartErr != nil {
			return fmt.Errorf("render %d: %w", year, chartErr)
		}

		data.Sections = append(data.Sections, sectionData{
			Title:    strconv.Itoa(year),
			Subtitle: "Domain 0 to " + formatValue(view.Legend[year]),
			Chart:    chart,
		})
	}

	if view.Overlay.Enabled && !view.Empty() {
		chart, chartErr := renderChart(temperatureLine(view))
		if chartErr != nil {
			return fmt.Errorf("render temperature: %w", chartErr)
		}

		data.Sections = append(data.Sections, sectionData{Title: "Temperature", Chart: chart})
	}

	var buf bytes.Buffer

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return fmt.Errorf("executing template page.html: %w", err)
	}

	_, err = w.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("writing page: %w", err)
	}

	return nil
}

func pageSubtitle(view *calendar.View) string {
	parts := []string{modeTitle(view.Mode)}

	switch {
	case view.Overlay.Enabled:
		parts = append(parts, "temperature shown")
	case view.Overlay.Available:
		parts = append(parts, "temperature available")
	}

	return strings.Join(parts, " · ")
}

func modeTitle(mode calendar.Mode) string {
	switch mode.(type) {
	case calendar.CommitsPerDeveloper:
		return "Commits per developer"
	case calendar.FileChanges:
		return "Files changed after a long wait"
	default:
		return "Total commits"
	}
}

// yearHeatMap lays out year as weeks (columns) by weekdays (rows). The value
// of each point is its palette bucket, so the visual map reproduces the
// calendar's quantization exactly.
func yearHeatMap(view *calendar.View, year int) *charts.HeatMap {
	weeks := make([]string, weeksPerYear)
	for i := range weeks {
		weeks[i] = strconv.Itoa(i + 1)
	}

	weekdays := weekdayLabels[:]

	var data []opts.HeatMapData

	for _, cell := range view.Days(year) {
		if !cell.HasData {
			continue
		}

		label := cell.Date.Long()
		if cell.Tooltip != nil {
			label = cell.Tooltip.Title + ": " + cell.Tooltip.Message
		}

		data = append(data, opts.HeatMapData{
			Name:  label,
			Value: []any{cell.Date.WeekOfYear(), int(cell.Date.Weekday()), cell.Bucket},
		})
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Formatter: "{b}"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: yearChartHeight}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category", Data: weeks,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "category", Data: weekdays,
			SplitArea: &opts.SplitArea{Show: opts.Bool(true)},
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Min: 0, Max: float32(len(view.Palette) - 1),
			InRange: &opts.VisualMapInRange{Color: view.Palette},
			Orient:  "horizontal", Left: "center", Bottom: "0",
		}),
		charts.WithGridOpts(opts.Grid{Left: "40", Right: "10", Top: "10", Bottom: "50"}),
	)
	hm.AddSeries(view.Mode.Name(), data)

	return hm
}

var weekdayLabels = [...]string{
	time.Sunday:    "Sun",
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
}

func temperatureLine(view *calendar.View) *charts.Line {
	var (
		labels []string
		data   []opts.LineData
	)

	for _, year := range view.Years {
		for _, cell := range view.Days(year) {
			if cell.Temperature == nil {
				continue
			}

			labels = append(labels, cell.Date.String())
			data = append(data, opts.LineData{Value: *cell.Temperature})
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: temperatureHeight}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}, opts.DataZoom{Type: "inside"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("temperature", data)

	return line
}

func renderChart(chart renderable) (template.HTML, error) {
	var buf bytes.Buffer

	err := chart.Render(&buf)
	if err != nil {
		return "", fmt.Errorf("rendering chart: %w", err)
	}

	//nolint:gosec // go-echarts output.
	return template.HTML(extractChartContent(buf.String())), nil
}

// extractChartContent keeps the chart div and script of a full go-echarts page.
func extractChartContent(html string) string {
	start := strings.Index(html, `<div class="container">`)
	if start == -1 {
		return html
	}

	end := strings.Index(html, `</body>`)
	if end == -1 {
		return html
	}

	content := html[start:end]
	content = strings.ReplaceAll(content, `class="container"`, `class="echart-box"`)

	return removeStyleTags(content)
}

func removeStyleTags(content string) string {
	for {
		i := strings.Index(content, `<style>`)
		if i == -1 {
			return content
		}

		j := strings.Index(content[i:], `</style>`)
		if j == -1 {
			return content
		}

		content = content[:i] + content[i+j+styleTagLen:]
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
