package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/domain"
)

type stubHolidays struct {
	byYear map[int]domain.HolidayMap
	err    map[int]error
	calls  []int
}

func (s *stubHolidays) Get(_ context.Context, year int) (domain.HolidayMap, error) {
	s.calls = append(s.calls, year)
	if err := s.err[year]; err != nil {
		return nil, err
	}
	return s.byYear[year], nil
}

func newCalendarService(h HolidayProvider, repo *fakeRepo) (*CalendarService, *ScheduleService) {
	schedules := newScheduleService(repo)
	cal := NewCalendarService(h, schedules, time.UTC, zap.NewNop())
	cal.SetClock(fixedClock(june2025))
	return cal, schedules
}

func TestMonth_MergesHolidaysAndCounts(t *testing.T) {
	holidays := &stubHolidays{byYear: map[int]domain.HolidayMap{
		2025: {"2025-08-15": "광복절", "2025-07-27": "outside"},
	}}
	cal, schedules := newCalendarService(holidays, newFakeRepo())
	ctx := context.Background()

	_, err := schedules.Create(ctx, &domain.Schedule{Title: "Trip", StartDate: domain.Date(2025, 8, 14), EndDate: domain.Date(2025, 8, 16)})
	require.NoError(t, err)
	_, err = schedules.Create(ctx, &domain.Schedule{Title: "Dentist", StartDate: domain.Date(2025, 8, 15)})
	require.NoError(t, err)
	_, err = schedules.Create(ctx, &domain.Schedule{Title: "Long", StartDate: domain.Date(2025, 7, 1), EndDate: domain.Date(2025, 7, 28)})
	require.NoError(t, err)

	view, err := cal.Month(ctx, 2025, 7)
	require.NoError(t, err)
	assert.Equal(t, "2025년 8월", view.Title)
	assert.Empty(t, view.HolidayError)
	require.Len(t, view.Cells, 35)

	byKey := make(map[string]domain.DayCell)
	for _, c := range view.Cells {
		byKey[c.Key] = c
	}
	assert.Equal(t, "광복절", byKey["2025-08-15"].HolidayName)
	assert.Equal(t, "outside", byKey["2025-07-27"].HolidayName)

	assert.Equal(t, 1, view.ScheduleCounts["2025-08-14"])
	assert.Equal(t, 2, view.ScheduleCounts["2025-08-15"])
	assert.Equal(t, 1, view.ScheduleCounts["2025-08-16"])
	assert.Equal(t, 1, view.ScheduleCounts["2025-07-28"])
	assert.Zero(t, view.ScheduleCounts["2025-07-26"])
	assert.Equal(t, []int{2025}, holidays.calls)
}

func TestMonth_SpansTwoYears(t *testing.T) {
	holidays := &stubHolidays{byYear: map[int]domain.HolidayMap{
		2024: {"2024-12-25": "기독탄신일"},
		2025: {"2025-01-01": "1월1일"},
	}}
	cal, _ := newCalendarService(holidays, newFakeRepo())

	view, err := cal.Month(context.Background(), 2024, 12)
	require.NoError(t, err)
	assert.Equal(t, 2025, view.Year)
	assert.Equal(t, 0, view.Month)
	assert.ElementsMatch(t, []int{2024, 2025}, holidays.calls)
	assert.Equal(t, "1월1일", view.Cells[3].HolidayName)
}

func TestMonth_DegradesWhenHolidaysFail(t *testing.T) {
	holidays := &stubHolidays{err: map[int]error{2025: errors.New("holiday API not configured")}}
	cal, _ := newCalendarService(holidays, newFakeRepo())

	view, err := cal.Month(context.Background(), 2025, 7)
	require.NoError(t, err)
	assert.Contains(t, view.HolidayError, "not configured")
	require.Len(t, view.Cells, 35)
	for _, c := range view.Cells {
		assert.False(t, c.IsHoliday())
	}
}

func TestMonth_ScheduleErrorFails(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("db down")
	cal, _ := newCalendarService(&stubHolidays{}, repo)

	_, err := cal.Month(context.Background(), 2025, 7)
	assert.ErrorIs(t, err, repo.err)
}

func TestDay(t *testing.T) {
	holidays := &stubHolidays{byYear: map[int]domain.HolidayMap{2025: {"2025-08-15": "광복절"}}}
	cal, schedules := newCalendarService(holidays, newFakeRepo())
	ctx := context.Background()

	_, err := schedules.Create(ctx, &domain.Schedule{Title: "Parade", StartDate: domain.Date(2025, 8, 15)})
	require.NoError(t, err)

	view, err := cal.Day(ctx, time.Date(2025, 8, 15, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-08-15", view.Key)
	assert.Equal(t, "광복절", view.HolidayName)
	require.Len(t, view.Schedules, 1)
	assert.Equal(t, "Parade", view.Schedules[0].Title)
}

func TestCurrentMonth(t *testing.T) {
	cal, _ := newCalendarService(&stubHolidays{}, newFakeRepo())
	y, m := cal.CurrentMonth()
	assert.Equal(t, 2025, y)
	assert.Equal(t, 5, m)

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	cal = NewCalendarService(&stubHolidays{}, newScheduleService(newFakeRepo()), seoul, nil)
	cal.SetClock(fixedClock(time.Date(2025, 12, 31, 20, 0, 0, 0, time.UTC)))
	y, m = cal.CurrentMonth()
	assert.Equal(t, 2026, y)
	assert.Equal(t, 0, m)
}

func TestExportICS(t *testing.T) {
	holidays := &stubHolidays{byYear: map[int]domain.HolidayMap{
		2025: {"2025-03-01": "삼일절", "2025-05-05": "어린이날"},
	}}
	cal, schedules := newCalendarService(holidays, newFakeRepo())
	ctx := context.Background()

	sc, err := schedules.Create(ctx, &domain.Schedule{Title: "Trip", StartDate: domain.Date(2025, 3, 3), EndDate: domain.Date(2025, 3, 5)})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cal.ExportICS(ctx, &buf, domain.Date(2025, 3, 1), domain.Date(2025, 3, 31), true))
	text := buf.String()

	assert.True(t, strings.HasPrefix(text, "BEGIN:VCALENDAR"))
	assert.Contains(t, text, "UID:"+sc.ID+"@planner")
	assert.Contains(t, text, "DTEND;VALUE=DATE:20250306")
	assert.Contains(t, text, "삼일절")
	assert.NotContains(t, text, "어린이날")
}

func TestExportICS_InvalidRange(t *testing.T) {
	cal, _ := newCalendarService(&stubHolidays{}, newFakeRepo())

	var buf bytes.Buffer
	err := cal.ExportICS(context.Background(), &buf, domain.Date(2025, 3, 5), domain.Date(2025, 3, 4), false)
	assert.ErrorIs(t, err, ErrInvalidRange)

	err = cal.ExportICS(context.Background(), &buf, domain.Date(2020, 1, 1), domain.Date(2025, 1, 1), false)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestFormatMonth(t *testing.T) {
	holidays := &stubHolidays{byYear: map[int]domain.HolidayMap{2025: {"2025-06-06": "현충일"}}}
	cal, schedules := newCalendarService(holidays, newFakeRepo())
	ctx := context.Background()

	_, err := schedules.Create(ctx, &domain.Schedule{Title: "x", StartDate: domain.Date(2025, 6, 20)})
	require.NoError(t, err)

	view, err := cal.Month(ctx, 2025, 5)
	require.NoError(t, err)
	text := cal.FormatMonth(view)

	assert.Contains(t, text, "2025년 6월")
	assert.Contains(t, text, "*")
	assert.Contains(t, text, "›15")
	assert.Contains(t, text, "6일 현충일")
	assert.Contains(t, text, "20일 일정 1개")
	assert.NotContains(t, text, "불러오지 못했습니다")
}

func TestFormatHolidays(t *testing.T) {
	cal, _ := newCalendarService(&stubHolidays{}, newFakeRepo())

	text := cal.FormatHolidays(2025, domain.HolidayMap{"2025-12-25": "기독탄신일", "2025-03-01": "삼일절"})
	assert.Less(t, strings.Index(text, "삼일절"), strings.Index(text, "기독탄신일"))
	assert.Contains(t, text, "03/01 (토)")

	assert.Contains(t, cal.FormatHolidays(2031, nil), "정보가 없습니다")
}
