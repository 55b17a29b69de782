package calendar

import (
	"math"
	"strconv"
)

// DefaultTemperatureUnit is appended to temperature readings.
const DefaultTemperatureUnit = "°C"

// Tooltip is the hover text of a day cell.
type Tooltip struct {
	Title   string `json:"title"   yaml:"title"`
	Message string `json:"message" yaml:"message"`
}

// Temperature is an optional reading passed to FormatTooltip.
type Temperature struct {
	Value float64
	Valid bool
}

// FormatTooltip renders the tooltip of day for mode. The temperature is
// appended when the mode supports the overlay and a reading is present.
// It returns false when the day has no data for mode; no tooltip should be
// attached in that case.
func FormatTooltip(day AggregatedDay, mode Mode, temp Temperature, unit string) (Tooltip, bool) {
	if _, ok := mode.Metric(day); !ok {
		return Tooltip{}, false
	}

	message := mode.Describe(day)

	if mode.SupportsTemperatureOverlay() && temp.Valid {
		if unit == "" {
			unit = DefaultTemperatureUnit
		}

		message += ", " + strconv.FormatFloat(roundHalfUp(temp.Value), 'f', 0, 64) + unit
	}

	return Tooltip{Title: day.Date.Long(), Message: message}, true
}

// roundHalfUp rounds to the nearest integer, halves towards positive infinity.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

// roundToOneDecimal rounds half-up at the tenths digit.
func roundToOneDecimal(v float64) float64 {
	const tenths = 10

	return roundHalfUp(v*tenths) / tenths
}

// formatNumber prints integral values without a fractional part.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
