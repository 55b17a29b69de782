package calendar_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
)

// Test constants to avoid magic numbers.
const (
	testYear      = 2021
	testOtherYear = 2022
	testBuckets   = 6
)

func scenarioDataset() *calendar.Dataset {
	return calendar.NewDataset(
		[]calendar.DayRecord{rec("2021-01-01", 3), rec("2021-01-02", 5), rec("2022-07-01", 40)},
		[]calendar.DayRecord{rec("2021-01-01", 1), rec("2021-01-02", 2)},
	)
}

func fileChangeEvents(day string, n int) []calendar.FileChangeEvent {
	events := make([]calendar.FileChangeEvent, n)
	for i := range events {
		events[i] = calendar.FileChangeEvent{
			LaterDate:   calendar.MustParseDate(day),
			EarlierDate: calendar.MustParseDate("2019-01-01"),
			Repo:        "core",
			File:        "file" + string(rune('a'+i%26)),
		}
	}

	return events
}

// --- ComputeMaxDomain Tests ---

func TestComputeMaxDomain_CommitsPerDeveloperScenario(t *testing.T) {
	t.Parallel()

	ds := scenarioDataset()

	assert.InDelta(t, 3.0, calendar.ComputeMaxDomain(calendar.CommitsPerDeveloper{}, testYear, ds, 0), 1e-9)
	assert.InDelta(t, 5.0, calendar.ComputeMaxDomain(calendar.TotalCommits{}, testYear, ds, 0), 0)
	assert.InDelta(t, 40.0, calendar.ComputeMaxDomain(calendar.TotalCommits{}, testOtherYear, ds, 0), 0)
	// No developers recorded in 2022: ratio falls back to 0.
	assert.InDelta(t, 0, calendar.ComputeMaxDomain(calendar.CommitsPerDeveloper{}, testOtherYear, ds, 0), 0)
	assert.InDelta(t, 0, calendar.ComputeMaxDomain(calendar.TotalCommits{}, 1999, ds, 0), 0)
}

func TestComputeMaxDomain_FileChangesCap(t *testing.T) {
	t.Parallel()

	ds := scenarioDataset()
	ds.FileChanges = calendar.NestFileChanges(append(
		fileChangeEvents("2021-03-01", 150),
		fileChangeEvents("2022-03-01", 7)...,
	))

	assert.InDelta(t, 100.0, calendar.ComputeMaxDomain(calendar.FileChanges{}, testYear, ds, 0), 0)
	assert.InDelta(t, 7.0, calendar.ComputeMaxDomain(calendar.FileChanges{}, testOtherYear, ds, 0), 0)
	assert.InDelta(t, 50.0, calendar.ComputeMaxDomain(calendar.FileChanges{}, testYear, ds, 50), 0)
	assert.InDelta(t, 150.0, calendar.ComputeMaxDomain(calendar.FileChanges{}, testYear, ds, 1000), 0)
}

func TestComputeMaxDomain_FileChangesNotLoaded(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0, calendar.ComputeMaxDomain(calendar.FileChanges{}, testYear, scenarioDataset(), 0), 0)
}

func TestComputeMaxDomain_BoundsEveryDay(t *testing.T) {
	t.Parallel()

	ds := calendar.NewDataset(
		[]calendar.DayRecord{rec("2021-01-01", 3), rec("2021-04-01", 12), rec("2021-09-09", 1), rec("2021-12-31", 8)},
		[]calendar.DayRecord{rec("2021-01-01", 3), rec("2021-04-01", 6), rec("2021-09-09", 1)},
	)

	for _, mode := range []calendar.Mode{calendar.TotalCommits{}, calendar.CommitsPerDeveloper{}} {
		maxValue := calendar.ComputeMaxDomain(mode, testYear, ds, 0)
		attained := false

		for d := range ds.Commits {
			v, ok := mode.Metric(ds.Day(d))
			require.True(t, ok)
			assert.LessOrEqual(t, v, maxValue, mode.Name())

			if v == maxValue {
				attained = true
			}
		}

		assert.True(t, attained, mode.Name())
	}
}

func TestDomainTable_RecomputeIdempotent(t *testing.T) {
	t.Parallel()

	ds := scenarioDataset()
	years := []int{testYear, testOtherYear}

	first := calendar.NewDomainTable()
	second := calendar.NewDomainTable()

	for _, mode := range calendar.Modes {
		first.Recompute(mode, years, ds, 0)
		second.Recompute(mode, years, ds, 0)
		second.Recompute(mode, years, ds, 0)
	}

	for _, mode := range calendar.Modes {
		assert.Equal(t, first.Legend(mode, years), second.Legend(mode, years), mode.Name())
	}

	assert.InDelta(t, 3.0, first.Max(calendar.CommitsPerDeveloper{}, testYear), 1e-9)
	assert.InDelta(t, 0, first.Max(calendar.TotalCommits{}, 1990), 0)
}

// --- Quantize Tests ---

func TestQuantize_Buckets(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, calendar.Quantize(0, 6, testBuckets))
	assert.Equal(t, 1, calendar.Quantize(1, 6, testBuckets))
	assert.Equal(t, 3, calendar.Quantize(3.5, 6, testBuckets))
	assert.Equal(t, 5, calendar.Quantize(6, 6, testBuckets))
	assert.Equal(t, 5, calendar.Quantize(150, 100, testBuckets))
}

func TestQuantize_Degenerate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, calendar.Quantize(5, 0, testBuckets))
	assert.Equal(t, 0, calendar.Quantize(-1, 10, testBuckets))
	assert.Equal(t, 0, calendar.Quantize(math.NaN(), 10, testBuckets))
	assert.Equal(t, 0, calendar.Quantize(5, math.NaN(), testBuckets))
	assert.Equal(t, 0, calendar.Quantize(5, 10, 0))
	assert.Equal(t, testBuckets-1, calendar.Quantize(math.Inf(1), 10, testBuckets))
}

func TestQuantize_Monotonic(t *testing.T) {
	t.Parallel()

	const maxValue = 17.0

	prev := 0

	for v := 0.0; v <= maxValue; v += 0.25 {
		bucket := calendar.Quantize(v, maxValue, testBuckets)
		assert.GreaterOrEqual(t, bucket, prev, "v=%v", v)
		assert.Less(t, bucket, testBuckets)

		prev = bucket
	}
}

func TestPalette_Color(t *testing.T) {
	t.Parallel()

	p := calendar.DefaultPalette

	assert.Equal(t, "#f2f0f7", p.Color(0))
	assert.Equal(t, "#54278f", p.Color(5))
	assert.Equal(t, "#54278f", p.Color(99))
	assert.Equal(t, "#f2f0f7", p.Color(-1))
	assert.Empty(t, calendar.Palette(nil).Color(0))
}
