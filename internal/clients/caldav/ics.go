package caldav

import (
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tazhate/planner/internal/domain"
)

const productID = "-//Planner//CalDAV//EN"

// ScheduleEvent converts a schedule to an all-day event spanning its days
func ScheduleEvent(sc *domain.Schedule) *Event {
	return &Event{
		UID:         sc.ID + "@planner",
		Summary:     sc.Title,
		Description: sc.Description,
		Category:    sc.Category,
		Start:       domain.DateOf(sc.StartDate),
		End:         domain.DateOf(sc.EndDate).AddDate(0, 0, 1),
	}
}

// HolidayEvent converts one holiday to a transparent all-day event
func HolidayEvent(day time.Time, name string) *Event {
	key := domain.DateKey(day)
	return &Event{
		UID:         "holiday-" + key + "@planner",
		Summary:     name,
		Category:    "holiday",
		Start:       domain.DateOf(day),
		End:         domain.DateOf(day).AddDate(0, 0, 1),
		Transparent: true,
	}
}

// NewCalendar builds a VCALENDAR holding the events
func NewCalendar(stamp time.Time, events ...*Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, e := range events {
		cal.Children = append(cal.Children, eventComponent(e, stamp))
	}
	return cal
}

func eventComponent(event *Event, stamp time.Time) *ical.Component {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, event.UID)
	vevent.Props.SetText(ical.PropSummary, event.Summary)

	if event.Description != "" {
		vevent.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Category != "" {
		vevent.Props.SetText(ical.PropCategories, event.Category)
	}
	if event.Transparent {
		vevent.Props.SetText(ical.PropTransparency, "TRANSPARENT")
	}

	vevent.Props.SetDate(ical.PropDateTimeStart, event.Start)
	vevent.Props.SetDate(ical.PropDateTimeEnd, event.End)
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	return vevent.Component
}

// Encode writes the calendar in iCalendar text form
func Encode(w io.Writer, cal *ical.Calendar) error {
	return ical.NewEncoder(w).Encode(cal)
}
