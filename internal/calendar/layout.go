// Package calendar computes month-grid layouts and maps events onto grid
// cells. Everything here is pure: callers pass in the events snapshot, the
// display location and the current instant.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CalendarDate is a year/month/day triple. Month is 1-based.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) CalendarDate {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// Compare returns -1, 0 or +1.
func (d CalendarDate) Compare(o CalendarDate) int {
	switch {
	case d.Year != o.Year:
		return sign(d.Year - o.Year)
	case d.Month != o.Month:
		return sign(int(d.Month) - int(o.Month))
	default:
		return sign(d.Day - o.Day)
	}
}

func (d CalendarDate) Before(o CalendarDate) bool {
	return d.Compare(o) < 0
}

func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns midnight of d in loc.
func (d CalendarDate) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// MonthLayout is the shape of a Sunday-first, seven-column month grid.
type MonthLayout struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`

	// FirstWeekdayOffset is the weekday of day 1, 0=Sunday..6=Saturday.
	FirstWeekdayOffset int `json:"first_weekday_offset"`
	DaysInMonth        int `json:"days_in_month"`
	WeekRows           int `json:"week_rows"`
}

// NormalizeMonth carries an out-of-range month into adjacent years, so month
// 0 is December of year-1 and month 13 is January of year+1.
func NormalizeMonth(year int, month time.Month) (int, time.Month) {
	m := int(month) - 1
	q, r := m/12, m%12
	if r < 0 {
		r += 12
		q--
	}
	return year + q, time.Month(r + 1)
}

// AddMonths moves n months from (year, month), normalising the result.
func AddMonths(year int, month time.Month, n int) (int, time.Month) {
	y, m := NormalizeMonth(year, month)
	return NormalizeMonth(y, m+time.Month(n))
}

// IsLeapYear applies the proleptic Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthDays = [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysIn returns the number of days in (year, month) after normalisation.
func DaysIn(year int, month time.Month) int {
	year, month = NormalizeMonth(year, month)
	if month == time.February && IsLeapYear(year) {
		return 29
	}
	return monthDays[month-1]
}

// weekdayOf returns the Sunday-first weekday of (year, month, 1) using
// Sakamoto's method. It is exact while year+year/4 does not overflow, which
// holds for every year ParseMonth accepts.
func weekdayOf(year int, month time.Month) int {
	t := [...]int{0, 3, 2, 5, 0, 3, 5, 1, 4, 6, 2, 4}
	y := year
	if month < time.March {
		y--
	}
	w := (floorDiv(y, 1) + floorDiv(y, 4) - floorDiv(y, 100) + floorDiv(y, 400) + t[month-1] + 1) % 7
	if w < 0 {
		w += 7
	}
	return w
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// ComputeMonthLayout returns the grid layout for (year, month). It never
// fails: out-of-range months are normalised first.
func ComputeMonthLayout(year int, month time.Month) MonthLayout {
	year, month = NormalizeMonth(year, month)
	offset := weekdayOf(year, month)
	days := DaysIn(year, month)
	return MonthLayout{
		Year:               year,
		Month:              month,
		FirstWeekdayOffset: offset,
		DaysInMonth:        days,
		WeekRows:           (offset + days + 6) / 7,
	}
}

// Cells is the number of grid cells, WeekRows*7.
func (l MonthLayout) Cells() int {
	return l.WeekRows * 7
}

// Prev returns the layout of the previous month.
func (l MonthLayout) Prev() MonthLayout {
	y, m := AddMonths(l.Year, l.Month, -1)
	return ComputeMonthLayout(y, m)
}

// Next returns the layout of the following month.
func (l MonthLayout) Next() MonthLayout {
	y, m := AddMonths(l.Year, l.Month, 1)
	return ComputeMonthLayout(y, m)
}

// Key formats the layout month as YYYY-MM, the format ParseMonth accepts.
func (l MonthLayout) Key() string {
	return fmt.Sprintf("%04d-%02d", l.Year, int(l.Month))
}

// Title is the human heading, e.g. "February 2024".
func (l MonthLayout) Title() string {
	return fmt.Sprintf("%s %d", l.Month, l.Year)
}

// MinYear and MaxYear bound the years ParseMonth accepts, after
// normalisation. They match the four-digit years Key produces.
const (
	MinYear = 1
	MaxYear = 9999
)

// ParseMonth parses a YYYY-MM value. The month part may be out of range and
// is normalised, so "2024-13" is January 2025. Years outside
// [MinYear, MaxYear] are rejected.
func ParseMonth(s string) (int, time.Month, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, "-")
	if i <= 0 || i == len(s)-1 {
		return 0, 0, fmt.Errorf("calendar: invalid month %q, want YYYY-MM", s)
	}
	year, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, 0, fmt.Errorf("calendar: invalid year in %q: %w", s, err)
	}
	month, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return 0, 0, fmt.Errorf("calendar: invalid month in %q: %w", s, err)
	}
	if year < MinYear || year > MaxYear || month < -12*MaxYear || month > 12*MaxYear {
		return 0, 0, fmt.Errorf("calendar: year out of range in %q", s)
	}
	y, m := NormalizeMonth(year, time.Month(month))
	if y < MinYear || y > MaxYear {
		return 0, 0, fmt.Errorf("calendar: year out of range in %q", s)
	}
	return y, m, nil
}
