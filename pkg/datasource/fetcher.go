// Package datasource loads the heatmap documents from a directory or an
// HTTP server and decodes them into calendar and project inputs.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrUnexpectedStatus is returned for non-success HTTP responses other than 404.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrInvalidPath is returned for document paths escaping the data root.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrUnsupportedScheme is returned for base URLs other than http and https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrDocumentTooLarge is returned for HTTP bodies above the size limit.
	ErrDocumentTooLarge = errors.New("document too large")
)

// Document paths relative to the data root.
const (
	CommitsPath    = "commit_volume.json"
	DevelopersPath = "developers.json"
	WeatherPath    = "weather.json"
	MetadataPath   = "projects_meta.json"
	SourcesPath    = "projects_sources.json"
	fileChangesDir = "long_waiting_commits"
	documentSuffix = ".json"
)

// FileChangesPath returns the path of the file-change document of project.
func FileChangesPath(project string) string {
	return path.Join(fileChangesDir, project+documentSuffix)
}

// Fetcher retrieves raw documents by slash-separated relative path.
type Fetcher interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, name string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}

// cleanPath validates name and returns it in canonical form.
func cleanPath(name string) (string, error) {
	cleaned := path.Clean("/" + name)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(name, "./") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	return cleaned, nil
}

// DirFetcher reads documents from a local directory.
type DirFetcher struct {
	root string
}

// NewDirFetcher creates a fetcher rooted at dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{root: dir}
}

// Root returns the data directory.
func (f *DirFetcher) Root() string {
	return f.root
}

// Fetch reads root/name.
func (f *DirFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	cleaned, err := cleanPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(cleaned)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}

		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}
