package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMonthLayoutKnownMonths(t *testing.T) {
	tests := []struct {
		name   string
		year   int
		month  time.Month
		offset int
		days   int
		rows   int
	}{
		{"leap february", 2024, time.February, 4, 29, 5},
		{"common february", 2023, time.February, 3, 28, 5},
		{"january 2024 starts monday", 2024, time.January, 1, 31, 5},
		{"four-row february", 2015, time.February, 0, 28, 4},
		{"six-row month", 2023, time.December, 5, 31, 6},
		{"century not leap", 1900, time.February, 4, 28, 5},
		{"four-century leap", 2000, time.February, 2, 29, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ComputeMonthLayout(tt.year, tt.month)
			assert.Equal(t, tt.offset, l.FirstWeekdayOffset)
			assert.Equal(t, tt.days, l.DaysInMonth)
			assert.Equal(t, tt.rows, l.WeekRows)
		})
	}
}

func TestComputeMonthLayoutMatchesTimePackage(t *testing.T) {
	for year := 1590; year <= 2410; year += 7 {
		for m := time.January; m <= time.December; m++ {
			l := ComputeMonthLayout(year, m)
			first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
			require.Equal(t, int(first.Weekday()), l.FirstWeekdayOffset, "%d-%02d", year, m)
			require.Equal(t, first.AddDate(0, 1, -1).Day(), l.DaysInMonth, "%d-%02d", year, m)

			need := l.FirstWeekdayOffset + l.DaysInMonth
			require.GreaterOrEqual(t, l.WeekRows*7, need)
			require.Less(t, (l.WeekRows-1)*7, need, "WeekRows must be minimal")
		}
	}
}

func TestComputeMonthLayoutNormalizes(t *testing.T) {
	l := ComputeMonthLayout(2024, 0)
	assert.Equal(t, 2023, l.Year)
	assert.Equal(t, time.December, l.Month)

	l = ComputeMonthLayout(2024, 13)
	assert.Equal(t, 2025, l.Year)
	assert.Equal(t, time.January, l.Month)

	l = ComputeMonthLayout(2024, -23)
	assert.Equal(t, 2022, l.Year)
	assert.Equal(t, time.January, l.Month)

	// Negative years still resolve without panicking.
	l = ComputeMonthLayout(-1, time.March)
	assert.Equal(t, 31, l.DaysInMonth)
	assert.GreaterOrEqual(t, l.FirstWeekdayOffset, 0)
	assert.Less(t, l.FirstWeekdayOffset, 7)
}

func TestNavigationRoundTrip(t *testing.T) {
	jan := ComputeMonthLayout(2024, time.January)
	prev := jan.Prev()
	assert.Equal(t, 2023, prev.Year)
	assert.Equal(t, time.December, prev.Month)
	assert.Equal(t, jan, prev.Next())

	dec := ComputeMonthLayout(2024, time.December)
	next := dec.Next()
	assert.Equal(t, 2025, next.Year)
	assert.Equal(t, time.January, next.Month)
	assert.Equal(t, dec, next.Prev())

	y, m := AddMonths(2024, time.March, -15)
	assert.Equal(t, 2022, y)
	assert.Equal(t, time.December, m)
}

func TestComputeMonthLayoutIdempotent(t *testing.T) {
	assert.Equal(t, ComputeMonthLayout(2031, time.July), ComputeMonthLayout(2031, time.July))
}

func TestParseMonth(t *testing.T) {
	y, m, err := ParseMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, 2024, y)
	assert.Equal(t, time.February, m)

	y, m, err = ParseMonth("2024-13")
	require.NoError(t, err)
	assert.Equal(t, 2025, y)
	assert.Equal(t, time.January, m)

	y, m, err = ParseMonth("9999-12")
	require.NoError(t, err)
	assert.Equal(t, 9999, y)
	assert.Equal(t, time.December, m)

	for _, bad := range []string{
		"", "2024", "2024-", "-02", "abcd-02", "2024-xx",
		"0000-12", "10000-01", "9999-13", "0001-00",
		"-9223372036854775808-01", "9223372036854775807-12", "2024-9223372036854775807",
	} {
		_, _, err := ParseMonth(bad)
		assert.Error(t, err, bad)
	}
}

func TestCalendarDateCompare(t *testing.T) {
	a := CalendarDate{2024, time.February, 28}
	b := CalendarDate{2024, time.February, 29}
	c := CalendarDate{2025, time.January, 1}
	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.Equal(t, 0, a.Compare(a))
	assert.Equal(t, 1, c.Compare(a))
	assert.Equal(t, "2024-02-29", b.String())
}

func TestLayoutKeyAndTitle(t *testing.T) {
	l := ComputeMonthLayout(2024, time.February)
	assert.Equal(t, "2024-02", l.Key())
	assert.Equal(t, "February 2024", l.Title())
	assert.Equal(t, 35, l.Cells())
}
