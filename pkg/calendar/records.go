package calendar

// DayRecord is one raw commit or developer-count observation.
type DayRecord struct {
	Date  Date    `json:"day"`
	Value float64 `json:"value"`
}

// FileChangeEvent is a file modified after a long idle period.
type FileChangeEvent struct {
	LaterDate   Date   `json:"later_date"`
	EarlierDate Date   `json:"earlier_date"`
	Repo        string `json:"repo_name"`
	File        string `json:"file"`
	URL         string `json:"url,omitempty"`
}

// IdleDays returns the number of days the file stayed untouched.
func (e FileChangeEvent) IdleDays() int {
	return e.EarlierDate.DaysUntil(e.LaterDate)
}

// TemperatureSeries maps a date to a temperature reading.
type TemperatureSeries map[Date]float64

// Lookup returns the reading for d, if any.
func (ts TemperatureSeries) Lookup(d Date) (float64, bool) {
	v, ok := ts[d]

	return v, ok
}
