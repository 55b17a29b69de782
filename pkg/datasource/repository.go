package datasource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

// FileChangeSource fetches file-change documents on demand.
type FileChangeSource struct {
	fetcher Fetcher
}

// NewFileChangeSource creates a source reading from f.
func NewFileChangeSource(f Fetcher) *FileChangeSource {
	return &FileChangeSource{fetcher: f}
}

// FetchFileChanges implements calendar.FileChangeSource.
func (s *FileChangeSource) FetchFileChanges(ctx context.Context, key string) ([]calendar.FileChangeEvent, error) {
	data, err := s.fetcher.Fetch(ctx, FileChangesPath(key))
	if err != nil {
		return nil, err
	}

	return DecodeFileChanges(data)
}

// Repository builds calendars from a loaded bundle.
type Repository struct {
	bundle  *Bundle
	catalog *project.Catalog
	source  calendar.FileChangeSource
	cfg     calendar.Config
	logger  *slog.Logger
}

// NewRepository creates a repository over b; file changes are fetched through f.
func NewRepository(b *Bundle, f Fetcher, cfg calendar.Config, logger *slog.Logger) *Repository {
	return &Repository{
		bundle:  b,
		catalog: b.Catalog(),
		source:  NewFileChangeSource(f),
		cfg:     cfg,
		logger:  loggerOrDefault(logger),
	}
}

// Open loads the bundle from f and returns a repository over it.
func Open(ctx context.Context, f Fetcher, cfg calendar.Config, logger *slog.Logger) (*Repository, error) {
	b, err := Load(ctx, f, logger)
	if err != nil {
		return nil, err
	}

	return NewRepository(b, f, cfg, logger), nil
}

// Catalog returns the project catalog.
func (r *Repository) Catalog() *project.Catalog {
	return r.catalog
}

// Bundle returns the loaded documents.
func (r *Repository) Bundle() *Bundle {
	return r.bundle
}

// Calendar implements calendar.Provider. Every call aggregates a fresh calendar.
func (r *Repository) Calendar(_ context.Context, key string) (*calendar.Calendar, error) {
	if _, ok := r.catalog.Lookup(key); !ok {
		return nil, fmt.Errorf("%w: %s", calendar.ErrUnknownProject, key)
	}

	in, ok := r.bundle.Input(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", calendar.ErrUnknownProject, key)
	}

	return calendar.NewCalendar(in, r.source, r.cfg, r.logger), nil
}
