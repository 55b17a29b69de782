// Package calendar implements the aggregation and view-mode engine behind the
// repository activity heatmap: per-day lookups, per-year color domains,
// tooltip text and the mode state machine that ties them together.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a date string cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// dateLayout is the ISO calendar date format used as lookup key.
const dateLayout = "2006-01-02"

// longDateLayout formats tooltip titles.
const longDateLayout = "January 2, 2006"

// timestampLayouts are accepted in addition to dateLayout; only the date part is kept.
var timestampLayouts = []string{
	dateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// Date is a civil calendar date without time zone.
// The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the normalized date for the given components.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()

	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses an ISO date; timestamps are truncated to their date part.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)

	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return DateOf(t), nil
		}
	}

	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// MustParseDate is like ParseDate but panics on error. Intended for tests and constants.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}

	return d
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

// Long formats d for display, e.g. "January 2, 2006".
func (d Date) Long() string {
	return d.Time().Format(longDateLayout)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / hoursPerDay)
}

// Weekday returns the day of the week of d.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// WeekOfYear returns the number of Sunday-based week boundaries crossed between
// January 1st and d; January 1st is always in week 0.
func (d Date) WeekOfYear() int {
	jan1 := time.Date(d.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	offset := int(jan1.Weekday())

	return (d.Time().YearDay() - 1 + offset) / daysPerWeek
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

const (
	hoursPerDay = 24
	daysPerWeek = 7
)

// DaysOfYear returns every date of the given year in order.
func DaysOfYear(year int) []Date {
	start := NewDate(year, time.January, 1)
	end := NewDate(year+1, time.January, 1)
	days := make([]Date, 0, start.DaysUntil(end))

	for d := start; d.Before(end); d = d.AddDays(1) {
		days = append(days, d)
	}

	return days
}
