// Package ics subscribes to public iCalendar feeds (holidays, shared team
// calendars) and turns them into canonical events for the month grid. It
// also exports a month of events back to iCalendar.
package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "kalena/internal/log"
)

// Component is a VEVENT before recurrence expansion.
type Component struct {
	Source Source

	UID      string
	Sequence int

	Summary     string
	Description string
	Location    string
	Status      string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set on overrides of a single recurring instance.
	RecurrenceID *time.Time
}

// IsOverride reports whether c replaces one instance of a recurring event.
func (c Component) IsOverride() bool {
	return c.RecurrenceID != nil
}

// ParseFeed parses an ICS body. A VEVENT that cannot be understood is logged
// and skipped; the rest of the feed is still returned.
func ParseFeed(src Source, body []byte) ([]Component, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ics: empty feed body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]Component, 0)
	for _, ve := range cal.Events() {
		c, err := parseEvent(src, ve)
		if err != nil {
			appLog.Error("ics event skipped", err, "id", src.ID)
			continue
		}
		if strings.EqualFold(c.Status, "CANCELLED") {
			continue
		}
		out = append(out, c)
	}
	appLog.Debug("ics feed parsed", "id", src.ID, "events", len(out))
	return out, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func param(prop *ical.IANAProperty, name string) string {
	if prop == nil || prop.ICalParameters == nil {
		return ""
	}
	if vs := prop.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func parseEvent(src Source, ve *ical.VEvent) (Component, error) {
	c := Component{
		Source:      src,
		UID:         propValue(ve, ical.ComponentPropertyUniqueId),
		Summary:     propValue(ve, ical.ComponentPropertySummary),
		Description: propValue(ve, ical.ComponentPropertyDescription),
		Location:    propValue(ve, ical.ComponentPropertyLocation),
		Status:      propValue(ve, ical.ComponentPropertyStatus),
		RRule:       propValue(ve, ical.ComponentPropertyRrule),
	}
	if c.UID == "" {
		return c, errors.New("ics: VEVENT without UID")
	}
	if n, err := strconv.Atoi(strings.TrimSpace(propValue(ve, ical.ComponentPropertySequence))); err == nil {
		c.Sequence = n
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return c, errors.New("ics: VEVENT without DTSTART")
	}
	c.AllDay = strings.EqualFold(param(dtStart, "VALUE"), "DATE") || !strings.Contains(dtStart.Value, "T")

	var err error
	if c.AllDay {
		c.Start, err = ve.GetAllDayStartAt()
	} else {
		c.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return c, err
	}

	if c.AllDay {
		c.End, err = ve.GetAllDayEndAt()
	} else {
		c.End, err = ve.GetEndAt()
	}
	if err != nil || !c.End.After(c.Start) {
		// DTEND is optional; all-day events default to one day.
		if c.AllDay {
			c.End = c.Start.AddDate(0, 0, 1)
		} else {
			c.End = c.Start
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := param(p, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseDateTime(part, tzid); err == nil {
				c.ExDates = append(c.ExDates, t)
			}
		}
	}
	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if t, err := parseDateTime(rid.Value, param(rid, "TZID")); err == nil {
			c.RecurrenceID = &t
		}
	}
	return c, nil
}

// parseDateTime handles the DATE, floating DATE-TIME and UTC DATE-TIME forms
// used by EXDATE and RECURRENCE-ID. Floating values use tzid when it names a
// known zone, otherwise time.Local.
func parseDateTime(v, tzid string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("ics: empty date-time")
	}
	loc := time.Local
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
