package ics

import (
	"io"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"

	"kalena/internal/model"
)

const productID = "-//kalena//month export//EN"

// EncodeMonth writes events as a VCALENDAR named name. Events without a
// start are skipped.
func EncodeMonth(w io.Writer, name string, events []model.Event) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	stamp := time.Now().UTC()
	for i, ev := range events {
		if !ev.HasStart() {
			continue
		}
		uid := ev.ID
		if uid == "" {
			uid = ev.SourceID + "-" + ev.Start.UTC().Format("20060102T150405Z") + "-" + strconv.Itoa(i)
		}
		ve := cal.AddEvent(uid)
		ve.SetDtStampTime(stamp)
		ve.SetSummary(ev.Summary)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		end := ev.End
		if ev.AllDay {
			if !end.After(ev.Start) {
				end = ev.Start.AddDate(0, 0, 1)
			}
			ve.SetAllDayStartAt(ev.Start)
			ve.SetAllDayEndAt(end)
			continue
		}
		if end.Before(ev.Start) {
			end = ev.Start
		}
		ve.SetStartAt(ev.Start)
		ve.SetEndAt(end)
	}
	_, err := io.WriteString(w, cal.Serialize())
	return err
}
