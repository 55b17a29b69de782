package calendar

import (
	"math"
)

// DefaultFileChangeCap bounds the file-changes domain so one outlier date
// cannot compress the rest of the scale.
const DefaultFileChangeCap = 100

// domainKey identifies a DomainTable entry.
type domainKey struct {
	mode string
	year int
}

// DomainTable holds the color-scale upper bound per (mode, year).
type DomainTable struct {
	entries map[domainKey]float64
}

// NewDomainTable returns an empty table.
func NewDomainTable() *DomainTable {
	return &DomainTable{entries: make(map[domainKey]float64)}
}

// Max returns the domain maximum of mode in year; 0 when unknown.
func (t *DomainTable) Max(mode Mode, year int) float64 {
	return t.entries[domainKey{mode.Name(), year}]
}

// Legend returns year → maximum for mode over the given years.
func (t *DomainTable) Legend(mode Mode, years []int) map[int]float64 {
	legend := make(map[int]float64, len(years))
	for _, y := range years {
		legend[y] = t.Max(mode, y)
	}

	return legend
}

// Recompute replaces the entries of mode for all years.
func (t *DomainTable) Recompute(mode Mode, years []int, ds *Dataset, fileChangeCap float64) {
	for _, y := range years {
		t.entries[domainKey{mode.Name(), y}] = ComputeMaxDomain(mode, y, ds, fileChangeCap)
	}
}

// ComputeMaxDomain returns the maximum metric of mode over the days of year.
// The file-changes maximum is clamped to fileChangeCap; a non-positive cap
// selects DefaultFileChangeCap.
func ComputeMaxDomain(mode Mode, year int, ds *Dataset, fileChangeCap float64) float64 {
	if fileChangeCap <= 0 {
		fileChangeCap = DefaultFileChangeCap
	}

	return mode.maxDomain(ds, year, fileChangeCap)
}

// commitDomain scans the commit days of year; commit-based modes only have
// data on dates with a commit entry.
func commitDomain(mode Mode, ds *Dataset, year int) float64 {
	maxValue := 0.0

	for d := range ds.Commits {
		if d.Year != year {
			continue
		}

		v, _ := mode.Metric(ds.Day(d))
		maxValue = math.Max(maxValue, v)
	}

	return maxValue
}

func (m TotalCommits) maxDomain(ds *Dataset, year int, _ float64) float64 {
	return commitDomain(m, ds, year)
}

func (m CommitsPerDeveloper) maxDomain(ds *Dataset, year int, _ float64) float64 {
	return commitDomain(m, ds, year)
}

func (FileChanges) maxDomain(ds *Dataset, year int, fileChangeCap float64) float64 {
	maxValue := 0.0

	for d, day := range ds.FileChanges {
		if d.Year == year {
			maxValue = math.Max(maxValue, float64(day.Total))
		}
	}

	return math.Min(maxValue, fileChangeCap)
}

// --- Quantization ---.

// DefaultPalette is the six-step purple scale of the heatmap.
var DefaultPalette = Palette{"#f2f0f7", "#dadaeb", "#bcbddc", "#9e9ac8", "#756bb1", "#54278f"}

// Palette is an ordered sequence of discrete colors, lightest first.
type Palette []string

// Color returns the color of bucket i, clamped to the palette.
func (p Palette) Color(i int) string {
	if len(p) == 0 {
		return ""
	}

	return p[min(max(i, 0), len(p)-1)]
}

// Quantize maps v in [0, maxValue] onto n equal-width buckets.
// A zero domain, NaN or negative input maps to bucket 0.
func Quantize(v, maxValue float64, n int) int {
	if n <= 0 || maxValue <= 0 || math.IsNaN(v) || math.IsNaN(maxValue) || v <= 0 {
		return 0
	}

	bucket := math.Floor(v / maxValue * float64(n))
	if math.IsInf(bucket, 0) || bucket >= float64(n) {
		return n - 1
	}

	return int(bucket)
}
