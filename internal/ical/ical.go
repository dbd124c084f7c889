// Package ical renders a user's slots as an iCalendar feed.
package ical

import (
	"fmt"
	"io"
	"time"

	goical "github.com/emersion/go-ical"

	"doodle/backend/internal/domain"
)

const productID = "-//doodle//booking//EN"

// Entry is one slot in the feed. Summary is the title of the meeting bound
// to the slot, empty for free slots.
type Entry struct {
	Slot    domain.Slot
	Summary string
}

// Encode writes owner's slots to w. Free slots are exported as transparent
// events so calendar clients do not treat them as busy time.
func Encode(w io.Writer, owner domain.User, entries []Entry, now time.Time) error {
	cal := goical.NewCalendar()
	cal.Props.SetText(goical.PropVersion, "2.0")
	cal.Props.SetText(goical.PropProductID, productID)
	cal.Props.SetText("X-WR-CALNAME", owner.Name)

	for _, e := range entries {
		cal.Children = append(cal.Children, toEvent(owner, e, now))
	}

	if err := goical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func toEvent(owner domain.User, e Entry, now time.Time) *goical.Component {
	s := e.Slot
	ve := goical.NewComponent(goical.CompEvent)
	ve.Props.SetText(goical.PropUID, s.ID.String()+"@doodle")
	ve.Props.SetDateTime(goical.PropDateTimeStamp, now.UTC())
	ve.Props.SetDateTime(goical.PropDateTimeStart, s.StartTime.UTC())
	ve.Props.SetDateTime(goical.PropDateTimeEnd, s.EndTime.UTC())

	summary := e.Summary
	switch s.Status {
	case domain.SlotStatusAvailable:
		summary = "Available"
		ve.Props.SetText(goical.PropTransparency, "TRANSPARENT")
	case domain.SlotStatusBooked:
		ve.Props.SetText(goical.PropStatus, "TENTATIVE")
		ve.Props.SetText(goical.PropTransparency, "OPAQUE")
	case domain.SlotStatusBusy:
		ve.Props.SetText(goical.PropStatus, "CONFIRMED")
		ve.Props.SetText(goical.PropTransparency, "OPAQUE")
	}
	if summary == "" {
		summary = "Busy"
	}
	ve.Props.SetText(goical.PropSummary, summary)

	if owner.Email != "" {
		p := goical.NewProp(goical.PropOrganizer)
		p.SetText(fmt.Sprintf("mailto:%s", owner.Email))
		ve.Props.Add(p)
	}
	return ve
}
