package calendar

import (
	"fmt"
	"time"

	"kalena/internal/model"
)

// DefaultDisplayCap is how many summaries a grid cell shows before it
// collapses the rest into an "N more events" line.
const DefaultDisplayCap = 2

// EventsForDay returns the events whose start falls on (year, month, day) in
// loc, preserving input order. Events without a start never match, nor do day
// numbers outside the month.
func EventsForDay(events []model.Event, year int, month time.Month, day int, loc *time.Location) []model.Event {
	out := []model.Event{}
	year, month = NormalizeMonth(year, month)
	if day < 1 || day > DaysIn(year, month) {
		return out
	}
	target := CalendarDate{Year: year, Month: month, Day: day}
	for _, ev := range events {
		if !ev.HasStart() {
			continue
		}
		if DateOf(ev.Start, loc) == target {
			out = append(out, ev)
		}
	}
	return out
}

// CountForDay is len(EventsForDay(...)) without allocating.
func CountForDay(events []model.Event, year int, month time.Month, day int, loc *time.Location) int {
	year, month = NormalizeMonth(year, month)
	if day < 1 || day > DaysIn(year, month) {
		return 0
	}
	target := CalendarDate{Year: year, Month: month, Day: day}
	n := 0
	for _, ev := range events {
		if ev.HasStart() && DateOf(ev.Start, loc) == target {
			n++
		}
	}
	return n
}

// IndexByDay buckets events by the local calendar day of their start. Each
// bucket keeps input order.
func IndexByDay(events []model.Event, loc *time.Location) map[CalendarDate][]model.Event {
	idx := make(map[CalendarDate][]model.Event)
	for _, ev := range events {
		if !ev.HasStart() {
			continue
		}
		d := DateOf(ev.Start, loc)
		idx[d] = append(idx[d], ev)
	}
	return idx
}

// Summaries is the display view of one day's events.
type Summaries struct {
	Shown []string `json:"shown"`
	More  int      `json:"more"`
	Total int      `json:"total"`
}

// Empty reports the "no events" state.
func (s Summaries) Empty() bool {
	return s.Total == 0
}

// MoreLine is the synthesized overflow entry, or "" when nothing overflows.
func (s Summaries) MoreLine() string {
	if s.More <= 0 {
		return ""
	}
	return fmt.Sprintf("%d more events", s.More)
}

// Lines returns the shown summaries followed by the overflow entry, if any.
func (s Summaries) Lines() []string {
	lines := make([]string, 0, len(s.Shown)+1)
	lines = append(lines, s.Shown...)
	if l := s.MoreLine(); l != "" {
		lines = append(lines, l)
	}
	return lines
}

// SummariesForDay truncates a day's events to limit summaries. A limit <= 0
// uses DefaultDisplayCap.
func SummariesForDay(events []model.Event, limit int) Summaries {
	if limit <= 0 {
		limit = DefaultDisplayCap
	}
	s := Summaries{Shown: []string{}, Total: len(events)}
	for i, ev := range events {
		if i == limit {
			s.More = len(events) - limit
			break
		}
		s.Shown = append(s.Shown, ev.Summary)
	}
	return s
}
