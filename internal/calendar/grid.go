// Package calendar builds the fixed five-week month grid shown by every planner view.
package calendar

import (
	"time"

	"github.com/tazhate/planner/internal/domain"
)

// GridCells is the fixed size of a month grid: 5 weeks x 7 days.
// A month that would need a sixth row loses that row's overflow.
const GridCells = 35

// Normalize resolves a zero-based month that may be out of 0..11 into a valid
// (year, month) pair, rolling over year boundaries.
func Normalize(year, month int) (int, int) {
	year += month / 12
	month %= 12
	if month < 0 {
		month += 12
		year--
	}
	return year, month
}

// Shift moves (year, month) by delta months
func Shift(year, month, delta int) (int, int) {
	return Normalize(year, month+delta)
}

// DaysInMonth returns the number of days of a zero-based month, rolling over out-of-range months
func DaysInMonth(year, month int) int {
	// day 0 of the following month is the last day of this one
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// FirstWeekday returns the weekday (0 = Sunday) of day 1 of a zero-based month
func FirstWeekday(year, month int) int {
	return int(time.Date(year, time.Month(month+1), 1, 0, 0, 0, 0, time.UTC).Weekday())
}

// BuildGrid returns exactly GridCells day cells for the zero-based month:
// trailing days of the previous month, all days of the month, then leading
// days of the next month.
func BuildGrid(year, month int) []domain.DayCell {
	year, month = Normalize(year, month)

	firstWeekday := FirstWeekday(year, month)
	daysInMonth := DaysInMonth(year, month)
	prevYear, prevMonth := Shift(year, month, -1)
	nextYear, nextMonth := Shift(year, month, 1)
	daysInPrev := DaysInMonth(prevYear, prevMonth)

	cells := make([]domain.DayCell, 0, GridCells)

	for day := daysInPrev - firstWeekday + 1; day <= daysInPrev; day++ {
		cells = append(cells, newCell(prevYear, prevMonth, day, domain.MonthPrevious))
	}

	for day := 1; day <= daysInMonth && len(cells) < GridCells; day++ {
		cells = append(cells, newCell(year, month, day, domain.MonthCurrent))
	}

	for day := 1; len(cells) < GridCells; day++ {
		cells = append(cells, newCell(nextYear, nextMonth, day, domain.MonthNext))
	}

	return cells
}

func newCell(year, month, day int, rel domain.MonthRelation) domain.DayCell {
	date := domain.Date(year, time.Month(month+1), day)
	wd := date.Weekday()
	return domain.DayCell{
		Date:      date,
		Day:       day,
		Relation:  rel,
		Key:       domain.DateKey(date),
		Weekday:   wd,
		IsWeekend: wd == time.Saturday || wd == time.Sunday,
	}
}

// ApplyHolidays sets HolidayName on every cell whose key is in holidays.
// Cells are modified in place; a nil map is a no-op.
func ApplyHolidays(cells []domain.DayCell, holidays domain.HolidayMap) {
	for i := range cells {
		if name, ok := holidays[cells[i].Key]; ok {
			cells[i].HolidayName = name
		}
	}
}

// Years returns the distinct years touched by the grid, in ascending order
func Years(cells []domain.DayCell) []int {
	var years []int
	for _, c := range cells {
		y := c.Date.Year()
		if len(years) == 0 || years[len(years)-1] != y {
			years = append(years, y)
		}
	}
	return years
}

// Range returns the first and last date shown by the grid
func Range(cells []domain.DayCell) (time.Time, time.Time) {
	if len(cells) == 0 {
		return time.Time{}, time.Time{}
	}
	return cells[0].Date, cells[len(cells)-1].Date
}
