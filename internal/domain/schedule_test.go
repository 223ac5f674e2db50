package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_OccursOn(t *testing.T) {
	s := &Schedule{
		StartDate: Date(2025, time.August, 14),
		EndDate:   Date(2025, time.August, 16),
	}

	assert.False(t, s.OccursOn(Date(2025, time.August, 13)))
	assert.True(t, s.OccursOn(Date(2025, time.August, 14)))
	assert.True(t, s.OccursOn(time.Date(2025, time.August, 15, 18, 30, 0, 0, time.UTC)))
	assert.True(t, s.OccursOn(Date(2025, time.August, 16)))
	assert.False(t, s.OccursOn(Date(2025, time.August, 17)))
	assert.Equal(t, 3, s.Days())
	assert.True(t, s.IsMultiDay())
	assert.Equal(t, "2025-08-14 ~ 2025-08-16", s.FormatRange())
}

func TestSchedule_Overlaps(t *testing.T) {
	s := &Schedule{
		StartDate: Date(2025, time.March, 10),
		EndDate:   Date(2025, time.March, 12),
	}

	assert.True(t, s.Overlaps(Date(2025, time.March, 1), Date(2025, time.March, 10)))
	assert.True(t, s.Overlaps(Date(2025, time.March, 12), Date(2025, time.March, 31)))
	assert.True(t, s.Overlaps(Date(2025, time.March, 11), Date(2025, time.March, 11)))
	assert.False(t, s.Overlaps(Date(2025, time.March, 13), Date(2025, time.March, 31)))
	assert.False(t, s.Overlaps(Date(2025, time.February, 1), Date(2025, time.March, 9)))
}

func TestScheduleUpdate_Apply(t *testing.T) {
	s := &Schedule{
		Title:     "old",
		StartDate: Date(2025, time.January, 1),
		EndDate:   Date(2025, time.January, 1),
	}
	title := "new"
	end := time.Date(2025, time.January, 3, 15, 0, 0, 0, time.UTC)

	upd := ScheduleUpdate{Title: &title, EndDate: &end}
	require.False(t, upd.IsEmpty())
	upd.Apply(s)

	assert.Equal(t, "new", s.Title)
	assert.Equal(t, Date(2025, time.January, 1), s.StartDate)
	assert.Equal(t, Date(2025, time.January, 3), s.EndDate)
	assert.True(t, ScheduleUpdate{}.IsEmpty())
}

func TestParseDateKey(t *testing.T) {
	d, err := ParseDateKey("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, time.February, 29), d)
	assert.Equal(t, "2024-02-29", DateKey(d))

	_, err = ParseDateKey("2024-13-01")
	assert.Error(t, err)
}
