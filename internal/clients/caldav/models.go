package caldav

import "time"

// Calendar represents a remote calendar collection
type Calendar struct {
	ID          string // Calendar path/URL
	DisplayName string
	URL         string
}

// Event is an all-day calendar event. End is exclusive, as in iCalendar.
type Event struct {
	UID         string
	Summary     string
	Description string
	Category    string
	Start       time.Time
	End         time.Time
	Transparent bool // does not block time, used for holidays
}
