package calendar

import (
	"time"

	"kalena/internal/model"
)

// GridCell is the view model of one slot in the month grid.
type GridCell struct {
	Index int `json:"index"`

	// Day is relative to the displayed month and may be <1 or >DaysInMonth
	// for filler cells. Date is the resolved calendar date.
	Day  int          `json:"day"`
	Date CalendarDate `json:"-"`

	InMonth bool `json:"in_month"`
	Weekend bool `json:"weekend"`
	Today   bool `json:"today"`

	Events    []model.Event `json:"-"`
	Summaries Summaries     `json:"summaries"`
}

// IsToday reports whether day of (year, month) is the calendar date of now.
// now is in the display location already.
func IsToday(day int, year int, month time.Month, now time.Time) bool {
	year, month = NormalizeMonth(year, month)
	y, m, d := now.Date()
	return d == day && m == month && y == year
}

// BuildGrid produces one cell per grid index in index order. Filler cells
// carry no events and are never today.
func BuildGrid(layout MonthLayout, events []model.Event, now time.Time, loc *time.Location, limit int) []GridCell {
	if loc != nil {
		now = now.In(loc)
	}
	idx := IndexByDay(events, loc)
	first := CalendarDate{Year: layout.Year, Month: layout.Month, Day: 1}.Time(time.UTC)

	cells := make([]GridCell, layout.Cells())
	for i := range cells {
		day := i - layout.FirstWeekdayOffset + 1
		inMonth := day >= 1 && day <= layout.DaysInMonth
		c := GridCell{
			Index:   i,
			Day:     day,
			Date:    DateOf(first.AddDate(0, 0, day-1), time.UTC),
			InMonth: inMonth,
			Weekend: i%7 == 0 || i%7 == 6,
		}
		if inMonth {
			c.Today = IsToday(day, layout.Year, layout.Month, now)
			c.Events = idx[c.Date]
		}
		if c.Events == nil {
			c.Events = []model.Event{}
		}
		c.Summaries = SummariesForDay(c.Events, limit)
		cells[i] = c
	}
	return cells
}
