package datasource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

// Bundle is the set of documents shared by all projects.
type Bundle struct {
	Commits     map[string][]calendar.DayRecord
	Developers  map[string][]calendar.DayRecord
	Temperature calendar.TemperatureSeries
	Projects    []project.Metadata
	Sources     map[string]project.Sources
}

// Load fetches and decodes the bundle. Commits and developers are required;
// the other documents fall back to empty values with a warning.
func Load(ctx context.Context, f Fetcher, logger *slog.Logger) (*Bundle, error) {
	logger = loggerOrDefault(logger)
	b := &Bundle{}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	required := func(name string, decode func([]byte) error) {
		g.Go(func() error {
			data, err := f.Fetch(gctx, name)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}

			mu.Lock()
			defer mu.Unlock()

			err = decode(data)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}

			return nil
		})
	}

	optional := func(name string, decode func([]byte) error) {
		g.Go(func() error {
			data, err := f.Fetch(gctx, name)
			if err == nil {
				mu.Lock()
				err = decode(data)
				mu.Unlock()
			}

			if err != nil {
				if gctx.Err() != nil {
					return nil
				}

				level := slog.LevelWarn
				if errors.Is(err, ErrNotFound) {
					level = slog.LevelInfo
				}

				logger.Log(gctx, level, "optional document unavailable", "document", name, "error", err)
			}

			return nil
		})
	}

	required(CommitsPath, func(data []byte) (err error) {
		b.Commits, err = DecodeSeries(data, logger)

		return err
	})

	required(DevelopersPath, func(data []byte) (err error) {
		b.Developers, err = DecodeSeries(data, logger)

		return err
	})

	optional(WeatherPath, func(data []byte) (err error) {
		b.Temperature, err = DecodeTemperature(data, logger)

		return err
	})

	optional(MetadataPath, func(data []byte) (err error) {
		b.Projects, err = DecodeMetadata(data)

		return err
	})

	optional(SourcesPath, func(data []byte) (err error) {
		b.Sources, err = DecodeSources(data)

		return err
	})

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	b.fillEmpty()

	logger.DebugContext(ctx, "data bundle loaded",
		"projects", len(b.Commits), "temperature_days", len(b.Temperature), "metadata", len(b.Projects))

	return b, nil
}

// fillEmpty replaces nil documents and documents whose decode failed.
func (b *Bundle) fillEmpty() {
	if b.Commits == nil {
		b.Commits = map[string][]calendar.DayRecord{}
	}

	if b.Developers == nil {
		b.Developers = map[string][]calendar.DayRecord{}
	}

	if b.Temperature == nil {
		b.Temperature = calendar.TemperatureSeries{}
	}

	if b.Sources == nil {
		b.Sources = map[string]project.Sources{}
	}
}

// ProjectKeys returns the projects with commit data, sorted.
func (b *Bundle) ProjectKeys() []string {
	keys := make([]string, 0, len(b.Commits))
	for k := range b.Commits {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

// Catalog builds the project catalog of the bundle.
func (b *Bundle) Catalog() *project.Catalog {
	return project.NewCatalog(b.ProjectKeys(), b.Projects, b.Sources)
}

// Input returns the calendar input of key.
func (b *Bundle) Input(key string) (calendar.Input, bool) {
	commits, ok := b.Commits[key]
	if !ok {
		return calendar.Input{}, false
	}

	return calendar.Input{
		Project:     key,
		Commits:     commits,
		Developers:  b.Developers[key],
		Temperature: b.Temperature,
	}, true
}
