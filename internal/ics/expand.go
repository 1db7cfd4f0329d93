package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "kalena/internal/log"
	"kalena/internal/model"
)

// DefaultMaxOccurrences caps how many instances one recurring UID may
// produce inside a single window.
const DefaultMaxOccurrences = 1000

// Expand turns components into concrete events overlapping [from, to),
// converted to loc. Recurring components are expanded with their RRULE;
// EXDATEs remove instances and RECURRENCE-ID overrides replace them. The
// second result lists UIDs whose expansion hit max.
func Expand(components []Component, from, to time.Time, loc *time.Location, max int) ([]model.Event, []string) {
	if loc == nil {
		loc = time.Local
	}
	if max <= 0 {
		max = DefaultMaxOccurrences
	}
	events := make([]model.Event, 0)
	if !to.After(from) {
		return events, nil
	}

	type key struct{ source, uid string }
	bases := make(map[key][]Component)
	overrides := make(map[key][]Component)
	var order []key
	for _, c := range components {
		k := key{c.Source.ID, c.UID}
		if c.IsOverride() {
			overrides[k] = append(overrides[k], c)
			continue
		}
		if _, seen := bases[k]; !seen {
			order = append(order, k)
		}
		bases[k] = append(bases[k], c)
	}

	var truncated []string
	for _, k := range order {
		for _, base := range bases[k] {
			out, hitCap := expandOne(base, overrides[k], from, to, loc, max)
			events = append(events, out...)
			if hitCap {
				truncated = append(truncated, k.uid)
				appLog.Error("ics expansion truncated", errors.New("occurrence cap reached"), "uid", k.uid, "cap", max)
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, truncated
}

func expandOne(base Component, overrides []Component, from, to time.Time, loc *time.Location, max int) ([]model.Event, bool) {
	if base.RRule == "" {
		if !overlaps(base.Start, base.End, from, to) {
			return nil, false
		}
		return []model.Event{toEvent(base, base.Start, base.End, loc)}, false
	}

	opt, err := rrule.StrToROption(base.RRule)
	if err != nil {
		appLog.Error("ics RRULE rejected", err, "uid", base.UID, "rrule", base.RRule)
		return nil, false
	}
	opt.Dtstart = base.Start
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		appLog.Error("ics RRULE rejected", err, "uid", base.UID, "rrule", base.RRule)
		return nil, false
	}

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range base.ExDates {
		set.ExDate(alignExDate(ex, base))
	}

	// Instances that started before the window may still overlap it.
	dur := base.End.Sub(base.Start)
	starts := set.Between(from.Add(-dur), to, true)
	hitCap := false
	if len(starts) > max {
		starts = starts[:max]
		hitCap = true
	}

	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		start, end := s, s.Add(dur)
		src := base
		if ov, ok := findOverride(overrides, s); ok {
			src, start, end = ov, ov.Start, ov.End
		}
		if !overlaps(start, end, from, to) {
			continue
		}
		out = append(out, toEvent(src, start, end, loc))
	}
	return out, hitCap
}

// alignExDate moves a DATE-valued EXDATE onto the instance clock time of an
// all-day series so the set can match it exactly.
func alignExDate(ex time.Time, base Component) time.Time {
	if !base.AllDay {
		return ex
	}
	l := base.Start.Location()
	return time.Date(ex.Year(), ex.Month(), ex.Day(), base.Start.Hour(), base.Start.Minute(), base.Start.Second(), 0, l)
}

func findOverride(overrides []Component, start time.Time) (Component, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.Equal(start) {
			return ov, true
		}
	}
	return Component{}, false
}

// overlaps treats zero-length events as occupying their start instant.
func overlaps(start, end, from, to time.Time) bool {
	if !end.After(start) {
		return !start.Before(from) && start.Before(to)
	}
	return start.Before(to) && end.After(from)
}

func toEvent(c Component, start, end time.Time, loc *time.Location) model.Event {
	ev := model.Event{
		ID:          c.UID + "@" + start.UTC().Format("20060102T150405Z"),
		SourceID:    c.Source.ID,
		Summary:     c.Summary,
		Description: c.Description,
		Location:    c.Location,
		AllDay:      c.AllDay,
		Start:       start.In(loc),
		End:         end.In(loc),
	}
	if c.AllDay {
		// All-day dates are calendar days, not instants; keep the day.
		ev.Start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		ev.End = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	}
	return ev
}
