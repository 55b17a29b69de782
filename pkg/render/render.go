// Package render turns calendar views into HTML pages, terminal grids and
// JSON or YAML snapshots.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
	"github.com/Sumatoshi-tech/heatmap/pkg/project"
)

// ErrUnknownFormat is returned for output formats that are not supported.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output format.
type Format string

// Supported formats.
const (
	FormatHTML Format = "html"
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatHTML, FormatText, FormatJSON, FormatYAML}

// ParseFormat returns the format with the given name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Options tune the text renderer.
type Options struct {
	// Color enables ANSI colors in text output.
	Color bool
}

// View writes view in format. p supplies the display name and repository link.
func View(w io.Writer, format Format, view *calendar.View, p project.Project, opts Options) error {
	switch format {
	case FormatHTML:
		return HTML(w, view, p)
	case FormatText:
		return Text(w, view, p, opts)
	case FormatJSON:
		return WriteJSON(w, NewSnapshot(view, p))
	case FormatYAML:
		return WriteYAML(w, NewSnapshot(view, p))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
