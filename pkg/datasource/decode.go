package datasource

import (
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type rawDayRecord struct {
	Day   string  `json:"day"`
	Value float64 `json:"value"`
}

type rawFileChange struct {
	LaterDate   string `json:"later_date"`
	EarlierDate string `json:"earlier_date"`
	RepoName    string `json:"repo_name"`
	File        string `json:"file"`
	URL         string `json:"url"`
}

// DecodeSeries decodes a project → records document. Records with an
// unparsable date are skipped.
func DecodeSeries(data []byte, logger *slog.Logger) (map[string][]calendar.DayRecord, error) {
	var raw map[string][]rawDayRecord

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}

	out := make(map[string][]calendar.DayRecord, len(raw))

	for key, records := range raw {
		series := make([]calendar.DayRecord, 0, len(records))

		for _, r := range records {
			d, parseErr := calendar.ParseDate(r.Day)
			if parseErr != nil {
				loggerOrDefault(logger).Warn("skipping record", "project", key, "error", parseErr)

				continue
			}

			series = append(series, calendar.DayRecord{Date: d, Value: r.Value})
		}

		out[key] = series
	}

	return out, nil
}

// DecodeTemperature decodes a date → degrees document.
func DecodeTemperature(data []byte, logger *slog.Logger) (calendar.TemperatureSeries, error) {
	var raw map[string]float64

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode temperature: %w", err)
	}

	out := make(calendar.TemperatureSeries, len(raw))

	for key, v := range raw {
		d, parseErr := calendar.ParseDate(key)
		if parseErr != nil {
			loggerOrDefault(logger).Warn("skipping temperature", "error", parseErr)

			continue
		}

		if _, dup := out[d]; !dup {
			out[d] = v
		}
	}

	return out, nil
}

// DecodeMetadata decodes the project metadata list.
func DecodeMetadata(data []byte) ([]project.Metadata, error) {
	var out []project.Metadata

	err := json.Unmarshal(data, &out)
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	return out, nil
}

// DecodeSources decodes the project → sources document.
func DecodeSources(data []byte) (map[string]project.Sources, error) {
	var out map[string]project.Sources

	err := json.Unmarshal(data, &out)
	if err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}

	return out, nil
}

// DecodeFileChanges decodes a file-change event list.
func DecodeFileChanges(data []byte) ([]calendar.FileChangeEvent, error) {
	var raw []rawFileChange

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode file changes: %w", err)
	}

	events := make([]calendar.FileChangeEvent, 0, len(raw))

	for i, r := range raw {
		later, err := calendar.ParseDate(r.LaterDate)
		if err != nil {
			return nil, fmt.Errorf("file change %d: later date: %w", i, err)
		}

		earlier, err := calendar.ParseDate(r.EarlierDate)
		if err != nil {
			return nil, fmt.Errorf("file change %d: earlier date: %w", i, err)
		}

		events = append(events, calendar.FileChangeEvent{
			LaterDate:   later,
			EarlierDate: earlier,
			Repo:        r.RepoName,
			File:        r.File,
			URL:         r.URL,
		})
	}

	return events, nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}

	return logger
}
