package domain

import (
	"fmt"
	"time"
)

// DateKeyLayout is the canonical YYYY-MM-DD form used as lookup key and row identity
const DateKeyLayout = "2006-01-02"

// MonthRelation tells which month a grid cell belongs to relative to the viewed month
type MonthRelation int

const (
	MonthPrevious MonthRelation = iota
	MonthCurrent
	MonthNext
)

func (r MonthRelation) String() string {
	switch r {
	case MonthPrevious:
		return "previous"
	case MonthCurrent:
		return "current"
	case MonthNext:
		return "next"
	}
	return "unknown"
}

// MarshalText lets the relation travel as a plain string in JSON
func (r MonthRelation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// DayCell is one cell of the month grid
type DayCell struct {
	Date        time.Time     `json:"date"`
	Day         int           `json:"day"`
	Relation    MonthRelation `json:"relation"`
	Key         string        `json:"key"`
	Weekday     time.Weekday  `json:"weekday"`
	IsWeekend   bool          `json:"is_weekend"`
	HolidayName string        `json:"holiday_name,omitempty"`
}

// IsCurrentMonth reports whether the cell belongs to the viewed month
func (c DayCell) IsCurrentMonth() bool {
	return c.Relation == MonthCurrent
}

// IsHoliday reports whether a holiday name was merged into the cell
func (c DayCell) IsHoliday() bool {
	return c.HolidayName != ""
}

// Date returns a civil date at UTC midnight
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping its calendar day in t's location
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// DateKey formats a date as YYYY-MM-DD
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a YYYY-MM-DD string into a civil date
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateKeyLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// SameDay reports whether both times fall on the same calendar day
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// MonthName returns the Korean label for a zero-based month
func MonthName(month int) string {
	names := []string{"1월", "2월", "3월", "4월", "5월", "6월", "7월", "8월", "9월", "10월", "11월", "12월"}
	if month >= 0 && month < len(names) {
		return names[month]
	}
	return ""
}

// WeekdayNames are short Korean weekday labels, Sunday first
var WeekdayNames = []string{"일", "월", "화", "수", "목", "금", "토"}
