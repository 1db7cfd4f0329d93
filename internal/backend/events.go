package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	appLog "kalena/internal/log"
	"kalena/internal/model"
)

// SourceID tags events that came from the backend.
const SourceID = "backend"

// UpcomingEvents fetches the user's events and adapts them into the
// canonical model. Items whose start cannot be parsed are kept with a zero
// Start so the grid simply never places them. The result is stable-sorted by
// start, with unparsable items last.
func (c *Client) UpcomingEvents(ctx context.Context, token string) ([]model.Event, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, token, "/calendar/upcoming-events", &raw); err != nil {
		return nil, err
	}
	items, err := decodeEventList(raw)
	if err != nil {
		return nil, err
	}
	events := make([]model.Event, 0, len(items))
	bad := 0
	for _, it := range items {
		ev := it.toModel(c.loc)
		if !ev.HasStart() {
			bad++
		}
		events = append(events, ev)
	}
	if bad > 0 {
		appLog.Info("backend events with unparsable start", "count", bad, "total", len(events))
	}
	SortByStart(events)
	return events, nil
}

// SortByStart orders events by start time, keeping input order for ties and
// putting events without a start at the end.
func SortByStart(events []model.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.HasStart() || !b.HasStart() {
			return a.HasStart() && !b.HasStart()
		}
		return a.Start.Before(b.Start)
	})
}

// decodeEventList accepts null, a bare array, or an object with an "events"
// (or "items") member that may itself be null.
func decodeEventList(raw json.RawMessage) ([]eventPayload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var items []eventPayload
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("backend: decode events: %w", err)
		}
		return items, nil
	}
	var env struct {
		Events []eventPayload `json:"events"`
		Items  []eventPayload `json:"items"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("backend: decode events: %w", err)
	}
	if env.Events != nil {
		return env.Events, nil
	}
	return env.Items, nil
}

// eventPayload covers the shapes the backend has produced: summary/start/end
// with string or {dateTime,date} values, and the older title/date form.
type eventPayload struct {
	ID          string          `json:"id"`
	Summary     string          `json:"summary"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Start       json.RawMessage `json:"start"`
	End         json.RawMessage `json:"end"`
	Date        json.RawMessage `json:"date"`
}

func (p eventPayload) toModel(loc *time.Location) model.Event {
	ev := model.Event{
		ID:          p.ID,
		SourceID:    SourceID,
		Summary:     p.Summary,
		Description: p.Description,
		Location:    p.Location,
	}
	if ev.Summary == "" {
		ev.Summary = p.Title
	}
	startRaw := p.Start
	if len(bytes.TrimSpace(startRaw)) == 0 {
		startRaw = p.Date
	}
	if t, allDay, ok := parseWhen(startRaw, loc); ok {
		ev.Start, ev.AllDay = t, allDay
	}
	if t, _, ok := parseWhen(p.End, loc); ok {
		ev.End = t
	}
	return ev
}

// parseWhen decodes a JSON string timestamp or a Google-style
// {"dateTime": ..., "date": ..., "timeZone": ...} object.
func parseWhen(raw json.RawMessage, loc *time.Location) (time.Time, bool, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseTimestamp(s, loc)
	}
	var obj struct {
		DateTime string `json:"dateTime"`
		Date     string `json:"date"`
		TimeZone string `json:"timeZone"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return time.Time{}, false, false
	}
	if obj.DateTime == "" {
		// All-day dates belong to the display zone, not the organiser's.
		return ParseTimestamp(obj.Date, loc)
	}
	if obj.TimeZone != "" {
		if l, err := time.LoadLocation(obj.TimeZone); err == nil {
			loc = l
		}
	}
	return ParseTimestamp(obj.DateTime, loc)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses ISO-8601 date-times and dates. Values without an
// offset are interpreted in loc. The second result reports a date-only
// (all-day) value.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, true
		}
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}
