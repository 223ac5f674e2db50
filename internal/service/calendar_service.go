package service

import (
	"context"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/calendar"
	"github.com/tazhate/planner/internal/clients/caldav"
	"github.com/tazhate/planner/internal/domain"
)

// maxExportDays bounds one iCalendar export
const maxExportDays = 731

// HolidayProvider returns the holiday map of a year
type HolidayProvider interface {
	Get(ctx context.Context, year int) (domain.HolidayMap, error)
}

// MonthView is the grid of one month with holidays and schedule counts merged in
type MonthView struct {
	Year           int              `json:"year"`
	Month          int              `json:"month"` // zero-based
	Title          string           `json:"title"`
	Cells          []domain.DayCell `json:"cells"`
	ScheduleCounts map[string]int   `json:"schedule_counts"`
	HolidayError   string           `json:"holiday_error,omitempty"`
}

// DayView is one day with its holiday and schedules
type DayView struct {
	Date         time.Time          `json:"date"`
	Key          string             `json:"key"`
	HolidayName  string             `json:"holiday_name,omitempty"`
	HolidayError string             `json:"holiday_error,omitempty"`
	Schedules    []*domain.Schedule `json:"schedules"`
}

// CalendarService composes the grid, holidays and schedules
type CalendarService struct {
	holidays  HolidayProvider
	schedules *ScheduleService
	tz        *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewCalendarService creates a new calendar service
func NewCalendarService(holidays HolidayProvider, schedules *ScheduleService, tz *time.Location, logger *zap.Logger) *CalendarService {
	if tz == nil {
		tz = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{
		holidays:  holidays,
		schedules: schedules,
		tz:        tz,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock replaces the time source
func (s *CalendarService) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns the current civil date in the configured timezone
func (s *CalendarService) Today() time.Time {
	return domain.DateOf(s.now().In(s.tz))
}

// CurrentMonth returns the year and zero-based month of today
func (s *CalendarService) CurrentMonth() (int, int) {
	today := s.Today()
	return today.Year(), int(today.Month()) - 1
}

// Month builds the month view. Holiday failures degrade to a view without
// holiday names and are reported in HolidayError.
func (s *CalendarService) Month(ctx context.Context, year, month int) (*MonthView, error) {
	year, month = calendar.Normalize(year, month)
	cells := calendar.BuildGrid(year, month)

	view := &MonthView{
		Year:           year,
		Month:          month,
		Title:          fmt.Sprintf("%d년 %s", year, domain.MonthName(month)),
		Cells:          cells,
		ScheduleCounts: make(map[string]int),
	}

	holidays, err := s.holidaysFor(ctx, calendar.Years(cells))
	if err != nil {
		view.HolidayError = err.Error()
	}
	calendar.ApplyHolidays(cells, holidays)

	first, last := calendar.Range(cells)
	schedules, err := s.schedules.ListForRange(ctx, first, last)
	if err != nil {
		return nil, err
	}
	for _, sc := range schedules {
		for d := maxDate(sc.StartDate, first); !d.After(minDate(sc.EndDate, last)); d = d.AddDate(0, 0, 1) {
			view.ScheduleCounts[domain.DateKey(d)]++
		}
	}

	return view, nil
}

// Day returns the holiday and schedules of one date
func (s *CalendarService) Day(ctx context.Context, day time.Time) (*DayView, error) {
	day = domain.DateOf(day)
	view := &DayView{Date: day, Key: domain.DateKey(day)}

	holidays, err := s.holidays.Get(ctx, day.Year())
	if err != nil {
		s.logger.Warn("holidays unavailable", zap.Int("year", day.Year()), zap.Error(err))
		view.HolidayError = err.Error()
	} else {
		view.HolidayName = holidays[view.Key]
	}

	schedules, err := s.schedules.ListForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	view.Schedules = schedules
	return view, nil
}

// ExportICS writes schedules overlapping [from, to] as iCalendar, optionally with holidays
func (s *CalendarService) ExportICS(ctx context.Context, w io.Writer, from, to time.Time, withHolidays bool) error {
	from, to = domain.DateOf(from), domain.DateOf(to)
	if to.Before(from) || to.Sub(from) > maxExportDays*24*time.Hour {
		return fmt.Errorf("%w: %s..%s", ErrInvalidRange, domain.DateKey(from), domain.DateKey(to))
	}

	schedules, err := s.schedules.ListForRange(ctx, from, to)
	if err != nil {
		return err
	}

	events := make([]*caldav.Event, 0, len(schedules))
	for _, sc := range schedules {
		events = append(events, caldav.ScheduleEvent(sc))
	}

	if withHolidays {
		var years []int
		for y := from.Year(); y <= to.Year(); y++ {
			years = append(years, y)
		}
		holidays, err := s.holidaysFor(ctx, years)
		if err != nil {
			s.logger.Warn("exporting without some holidays", zap.Error(err))
		}
		keys := make([]string, 0, len(holidays))
		for key := range holidays {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			day, err := domain.ParseDateKey(key)
			if err != nil || day.Before(from) || day.After(to) {
				continue
			}
			events = append(events, caldav.HolidayEvent(day, holidays[key]))
		}
	}

	return caldav.Encode(w, caldav.NewCalendar(s.now(), events...))
}

// holidaysFor merges the maps of several years; the first error is returned
// alongside whatever could be loaded
func (s *CalendarService) holidaysFor(ctx context.Context, years []int) (domain.HolidayMap, error) {
	merged := make(domain.HolidayMap)
	var firstErr error
	for _, year := range years {
		holidays, err := s.holidays.Get(ctx, year)
		if err != nil {
			s.logger.Warn("holidays unavailable", zap.Int("year", year), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for k, v := range holidays {
			merged[k] = v
		}
	}
	return merged, firstErr
}

// FormatMonth renders the month view as a monospace grid for chat output
func (s *CalendarService) FormatMonth(view *MonthView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>🗓 %s</b>\n<pre>", view.Title))
	for _, name := range domain.WeekdayNames {
		sb.WriteString(fmt.Sprintf("%3s", name))
	}
	sb.WriteString("\n")

	today := domain.DateKey(s.Today())
	for i, cell := range view.Cells {
		mark := " "
		switch {
		case cell.Key == today:
			mark = "›"
		case cell.IsHoliday():
			mark = "*"
		case view.ScheduleCounts[cell.Key] > 0:
			mark = "·"
		}

		if cell.IsCurrentMonth() {
			sb.WriteString(fmt.Sprintf("%s%2d", mark, cell.Day))
		} else {
			sb.WriteString("   ")
		}
		if i%7 == 6 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("</pre>")

	var notes []string
	for _, cell := range view.Cells {
		if !cell.IsCurrentMonth() {
			continue
		}
		if cell.IsHoliday() {
			notes = append(notes, fmt.Sprintf("🎌 %d일 %s", cell.Day, html.EscapeString(cell.HolidayName)))
		}
		if n := view.ScheduleCounts[cell.Key]; n > 0 {
			notes = append(notes, fmt.Sprintf("📌 %d일 일정 %d개", cell.Day, n))
		}
	}
	if len(notes) > 0 {
		sb.WriteString("\n" + strings.Join(notes, "\n"))
	}
	if view.HolidayError != "" {
		sb.WriteString("\n\n<i>공휴일 정보를 불러오지 못했습니다</i>")
	}
	return sb.String()
}

// FormatHolidays lists the holidays of a year in date order
func (s *CalendarService) FormatHolidays(year int, holidays domain.HolidayMap) string {
	if len(holidays) == 0 {
		return fmt.Sprintf("%d년 공휴일 정보가 없습니다", year)
	}

	keys := make([]string, 0, len(holidays))
	for k := range holidays {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>🎌 %d년 공휴일</b>\n\n", year))
	for _, k := range keys {
		day, _ := domain.ParseDateKey(k)
		sb.WriteString(fmt.Sprintf("%s (%s) %s\n", day.Format("01/02"), domain.WeekdayNames[day.Weekday()], html.EscapeString(holidays[k])))
	}
	return sb.String()
}

func maxDate(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minDate(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
