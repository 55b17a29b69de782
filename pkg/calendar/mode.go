package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownMode is returned when a mode name does not match any mode.
var ErrUnknownMode = errors.New("unknown mode")

// Mode names as used on the wire and in configuration.
const (
	NameTotalCommits        = "total-commits"
	NameCommitsPerDeveloper = "commits-per-developer"
	NameFileChanges         = "file-changes"
)

// Mode is a view mode of the calendar. The set of modes is closed: only the
// types of this package implement it.
type Mode interface {
	// Name returns the machine-readable identifier.
	Name() string
	// Metric returns the value used for coloring and whether the day has data for this mode.
	Metric(day AggregatedDay) (float64, bool)
	// Describe returns the tooltip body for a day that has data for this mode.
	Describe(day AggregatedDay) string
	// SupportsTemperatureOverlay reports whether temperature readings may be shown.
	SupportsTemperatureOverlay() bool
	// RequiresAsyncFetch reports whether the mode needs lazily fetched data.
	RequiresAsyncFetch() bool

	maxDomain(ds *Dataset, year int, fileChangeCap float64) float64
}

// TotalCommits colors days by their raw commit count.
type TotalCommits struct{}

// CommitsPerDeveloper colors days by commits divided by active developers.
type CommitsPerDeveloper struct{}

// FileChanges colors days by the number of files changed after a long idle period.
type FileChanges struct{}

// Modes lists all modes in display order.
var Modes = []Mode{TotalCommits{}, CommitsPerDeveloper{}, FileChanges{}}

// DefaultMode is the mode a new controller starts in.
var DefaultMode Mode = TotalCommits{}

// ParseMode returns the mode with the given name.
func ParseMode(name string) (Mode, error) {
	for _, m := range Modes {
		if m.Name() == strings.TrimSpace(name) {
			return m, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// ModeNames returns the names of all modes in display order.
func ModeNames() []string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = m.Name()
	}

	return names
}

// Name implements Mode.
func (TotalCommits) Name() string { return NameTotalCommits }

// Metric implements Mode.
func (TotalCommits) Metric(day AggregatedDay) (float64, bool) {
	return day.Commits, day.HasCommits
}

// Describe implements Mode.
func (TotalCommits) Describe(day AggregatedDay) string {
	return formatNumber(day.Commits) + " commits"
}

// SupportsTemperatureOverlay implements Mode.
func (TotalCommits) SupportsTemperatureOverlay() bool { return true }

// RequiresAsyncFetch implements Mode.
func (TotalCommits) RequiresAsyncFetch() bool { return false }

// Name implements Mode.
func (CommitsPerDeveloper) Name() string { return NameCommitsPerDeveloper }

// Metric implements Mode.
func (CommitsPerDeveloper) Metric(day AggregatedDay) (float64, bool) {
	return day.CommitsPerDeveloper(), day.HasCommits
}

// Describe implements Mode.
func (CommitsPerDeveloper) Describe(day AggregatedDay) string {
	ratio := strconv.FormatFloat(roundToOneDecimal(day.CommitsPerDeveloper()), 'f', 1, 64)

	return ratio + " commits/developer, " + formatNumber(day.Developers) + " developers"
}

// SupportsTemperatureOverlay implements Mode.
func (CommitsPerDeveloper) SupportsTemperatureOverlay() bool { return true }

// RequiresAsyncFetch implements Mode.
func (CommitsPerDeveloper) RequiresAsyncFetch() bool { return false }

// Name implements Mode.
func (FileChanges) Name() string { return NameFileChanges }

// Metric implements Mode.
func (FileChanges) Metric(day AggregatedDay) (float64, bool) {
	if day.FileChanges == nil {
		return 0, false
	}

	return float64(day.FileChanges.Total), true
}

// Describe implements Mode.
func (FileChanges) Describe(day AggregatedDay) string {
	return strconv.Itoa(day.FileChanges.DistinctFiles()) + " changed files"
}

// SupportsTemperatureOverlay implements Mode.
func (FileChanges) SupportsTemperatureOverlay() bool { return false }

// RequiresAsyncFetch implements Mode.
func (FileChanges) RequiresAsyncFetch() bool { return true }
