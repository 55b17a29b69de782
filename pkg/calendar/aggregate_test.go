package calendar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/heatmap/pkg/calendar"
)

func rec(day string, value float64) calendar.DayRecord {
	return calendar.DayRecord{Date: calendar.MustParseDate(day), Value: value}
}

func TestAggregateDays_FirstWins(t *testing.T) {
	t.Parallel()

	lookup := calendar.AggregateDays([]calendar.DayRecord{
		rec("2021-01-02", 5),
		rec("2021-01-01", 3),
		rec("2021-01-02", 9),
		rec("2021-01-01 12:00:00", 7),
	})

	require.Len(t, lookup, 2)

	v, ok := lookup.Lookup(calendar.MustParseDate("2021-01-01"))
	assert.True(t, ok)
	assert.InDelta(t, 3, v, 0)

	v, ok = lookup.Lookup(calendar.MustParseDate("2021-01-02"))
	assert.True(t, ok)
	assert.InDelta(t, 5, v, 0)

	_, ok = lookup.Lookup(calendar.MustParseDate("2021-01-03"))
	assert.False(t, ok)
}

func TestAggregateDays_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, calendar.AggregateDays(nil))
	assert.NotNil(t, calendar.AggregateDays(nil))
	assert.Empty(t, calendar.AggregateDays([]calendar.DayRecord{}))
}

func TestAggregateDays_Idempotent(t *testing.T) {
	t.Parallel()

	records := []calendar.DayRecord{rec("2021-01-01", 3), rec("2021-01-01", 4), rec("2022-05-05", 1)}

	assert.Equal(t, calendar.AggregateDays(records), calendar.AggregateDays(records))
}

func TestYears_SortedUnique(t *testing.T) {
	t.Parallel()

	years := calendar.Years([]calendar.DayRecord{
		rec("2022-01-01", 1),
		rec("2019-06-01", 1),
		rec("2022-03-01", 1),
		rec("2020-01-01", 1),
	})

	assert.Equal(t, []int{2019, 2020, 2022}, years)
	assert.Empty(t, calendar.Years(nil))
}

func TestAggregatedDay_CommitsPerDeveloper(t *testing.T) {
	t.Parallel()

	ds := calendar.NewDataset(
		[]calendar.DayRecord{rec("2021-01-01", 3), rec("2021-01-02", 5), rec("2021-01-03", 4)},
		[]calendar.DayRecord{rec("2021-01-01", 1), rec("2021-01-02", 2), rec("2021-01-03", 0)},
	)

	assert.InDelta(t, 3.0, ds.Day(calendar.MustParseDate("2021-01-01")).CommitsPerDeveloper(), 1e-9)
	assert.InDelta(t, 2.5, ds.Day(calendar.MustParseDate("2021-01-02")).CommitsPerDeveloper(), 1e-9)
	assert.InDelta(t, 0, ds.Day(calendar.MustParseDate("2021-01-03")).CommitsPerDeveloper(), 0)
	assert.InDelta(t, 0, ds.Day(calendar.MustParseDate("2021-01-04")).CommitsPerDeveloper(), 0)
}

func TestDataset_DeveloperOnlyDate(t *testing.T) {
	t.Parallel()

	ds := calendar.NewDataset(
		[]calendar.DayRecord{rec("2021-01-01", 3)},
		[]calendar.DayRecord{rec("2021-01-01", 1), rec("2021-01-05", 2)},
	)

	day := ds.Day(calendar.MustParseDate("2021-01-05"))
	assert.False(t, day.HasCommits)
	assert.True(t, day.HasDevelopers)

	_, ok := calendar.TotalCommits{}.Metric(day)
	assert.False(t, ok)

	assert.False(t, ds.Empty())
	assert.True(t, calendar.NewDataset(nil, nil).Empty())
	assert.False(t, ds.HasFileChanges())
}
