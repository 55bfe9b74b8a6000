package daykey

import "time"

// Cell is one slot of a month grid. Blank cells pad the first week and the tail.
type Cell struct {
	Day   int    `json:"day,omitempty"`
	Key   DayKey `json:"key,omitempty"`
	Blank bool   `json:"blank,omitempty"`
}

// MonthGrid lays out a month Sunday-first. The first row is padded with blank
// cells up to the weekday of the 1st and the total is padded to a multiple of 7.
func MonthGrid(year int, month time.Month, loc *time.Location) []Cell {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lead := int(first.Weekday())
	days := DaysIn(year, month, loc)

	cells := make([]Cell, 0, lead+days+6)
	for i := 0; i < lead; i++ {
		cells = append(cells, Cell{Blank: true})
	}
	for d := 1; d <= days; d++ {
		cells = append(cells, Cell{
			Day: d,
			Key: Of(time.Date(year, month, d, 0, 0, 0, 0, loc)),
		})
	}
	for len(cells)%7 != 0 {
		cells = append(cells, Cell{Blank: true})
	}
	return cells
}

// MonthRange returns the first day of the month and the first day of the next month.
func MonthRange(year int, month time.Month, loc *time.Location) (from, to DayKey) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return Of(start), Of(start.AddDate(0, 1, 0))
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
