package calendar

import "slices"

// DayLookup maps a date to its aggregated value.
type DayLookup map[Date]float64

// Lookup returns the value for d, if any.
func (l DayLookup) Lookup(d Date) (float64, bool) {
	v, ok := l[d]

	return v, ok
}

// AggregateDays builds a per-day lookup from raw records.
// The first record seen for a date wins; later duplicates are ignored.
// A nil or empty input yields an empty lookup.
func AggregateDays(records []DayRecord) DayLookup {
	lookup := make(DayLookup, len(records))

	for _, rec := range records {
		if _, seen := lookup[rec.Date]; seen {
			continue
		}

		lookup[rec.Date] = rec.Value
	}

	return lookup
}

// Years returns the sorted, deduplicated set of years present in records.
func Years(records []DayRecord) []int {
	seen := make(map[int]struct{})
	years := make([]int, 0)

	for _, rec := range records {
		if _, ok := seen[rec.Date.Year]; ok {
			continue
		}

		seen[rec.Date.Year] = struct{}{}
		years = append(years, rec.Date.Year)
	}

	slices.Sort(years)

	return years
}

// AggregatedDay holds everything known about one date.
type AggregatedDay struct {
	Date Date

	Commits    float64
	HasCommits bool

	Developers    float64
	HasDevelopers bool

	// FileChanges is nil when no file changes happened on Date or
	// the events have not been fetched.
	FileChanges *DayFileChanges
}

// CommitsPerDeveloper returns commits divided by developers, or 0 when the
// developer count is missing or zero.
func (d AggregatedDay) CommitsPerDeveloper() float64 {
	if !d.HasDevelopers || d.Developers == 0 {
		return 0
	}

	return d.Commits / d.Developers
}

// Dataset is the aggregated data of one project.
type Dataset struct {
	Commits    DayLookup
	Developers DayLookup
	// FileChanges stays nil until the project's events were fetched.
	FileChanges FileChangeIndex
	Years       []int
}

// NewDataset aggregates commit and developer series.
func NewDataset(commits, developers []DayRecord) *Dataset {
	return &Dataset{
		Commits:    AggregateDays(commits),
		Developers: AggregateDays(developers),
		Years:      Years(commits),
	}
}

// Day returns the aggregated view of date d.
func (ds *Dataset) Day(d Date) AggregatedDay {
	day := AggregatedDay{Date: d}
	day.Commits, day.HasCommits = ds.Commits.Lookup(d)
	day.Developers, day.HasDevelopers = ds.Developers.Lookup(d)

	if ds.FileChanges != nil {
		day.FileChanges = ds.FileChanges[d]
	}

	return day
}

// HasFileChanges reports whether file-change events were attached.
func (ds *Dataset) HasFileChanges() bool {
	return ds.FileChanges != nil
}

// Empty reports whether the dataset holds no commit data.
func (ds *Dataset) Empty() bool {
	return len(ds.Commits) == 0
}
