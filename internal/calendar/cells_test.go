package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalena/internal/model"
)

func TestBuildGridShape(t *testing.T) {
	layout := ComputeMonthLayout(2024, time.February)
	now := at(2024, time.February, 14, 10, time.UTC)
	cells := BuildGrid(layout, nil, now, time.UTC, DefaultDisplayCap)

	require.Len(t, cells, layout.WeekRows*7)
	today := 0
	for i, c := range cells {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, i-layout.FirstWeekdayOffset+1, c.Day)
		assert.Equal(t, c.Day >= 1 && c.Day <= 29, c.InMonth)
		assert.Equal(t, i%7 == 0 || i%7 == 6, c.Weekend)
		assert.NotNil(t, c.Events)
		assert.True(t, c.Summaries.Empty())
		if c.Today {
			today++
			assert.Equal(t, 14, c.Day)
		}
	}
	assert.Equal(t, 1, today)

	// Feb 2024 starts on a Thursday: the first cell is Sunday Jan 28th.
	assert.Equal(t, CalendarDate{2024, time.January, 28}, cells[0].Date)
	assert.Equal(t, CalendarDate{2024, time.March, 2}, cells[len(cells)-1].Date)
}

func TestBuildGridTodayOutsideMonth(t *testing.T) {
	layout := ComputeMonthLayout(2024, time.February)
	// Jan 30th is visible as a filler cell but must not be highlighted.
	now := at(2024, time.January, 30, 10, time.UTC)
	for _, c := range BuildGrid(layout, nil, now, time.UTC, DefaultDisplayCap) {
		assert.False(t, c.Today, "cell %d", c.Index)
	}
}

func TestBuildGridMatchesEventsForDay(t *testing.T) {
	layout := ComputeMonthLayout(2024, time.May)
	events := []model.Event{
		{Summary: "A", Start: at(2024, time.May, 5, 9, time.UTC)},
		{Summary: "B", Start: at(2024, time.May, 5, 10, time.UTC)},
		{Summary: "C", Start: at(2024, time.May, 5, 11, time.UTC)},
		{Summary: "prev", Start: at(2024, time.April, 29, 9, time.UTC)},
		{Summary: "bad"},
	}
	cells := BuildGrid(layout, events, at(2024, time.May, 1, 0, time.UTC), time.UTC, DefaultDisplayCap)
	for _, c := range cells {
		want := EventsForDay(events, layout.Year, layout.Month, c.Day, time.UTC)
		assert.Equal(t, want, c.Events, "cell %d", c.Index)
		if c.Day == 5 {
			assert.Equal(t, []string{"A", "B", "1 more events"}, c.Summaries.Lines())
		}
	}
}

func TestIsToday(t *testing.T) {
	now := at(2024, time.March, 3, 23, time.UTC)
	assert.True(t, IsToday(3, 2024, time.March, now))
	assert.False(t, IsToday(3, 2024, time.April, now))
	assert.False(t, IsToday(3, 2023, time.March, now))
	assert.False(t, IsToday(4, 2024, time.March, now))
	// Normalised month: 2023-15 is 2024-03.
	assert.True(t, IsToday(3, 2023, 15, now))
}
