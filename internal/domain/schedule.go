package domain

import (
	"time"
)

// AnonymousUserID is stored as owner while schedules are not tied to an authenticated user
const AnonymousUserID = "00000000-0000-0000-0000-000000000000"

// Schedule is a dated entry spanning one or more whole days
type Schedule struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title" validate:"required,max=200"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Category    string    `json:"category,omitempty" validate:"max=50"`
	Description string    `json:"description,omitempty" validate:"max=2000"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OccursOn reports whether the schedule covers the given day (start <= day <= end)
func (s *Schedule) OccursOn(day time.Time) bool {
	d := DateOf(day)
	return !DateOf(s.StartDate).After(d) && !DateOf(s.EndDate).Before(d)
}

// Overlaps reports whether the schedule intersects the inclusive range [from, to]
func (s *Schedule) Overlaps(from, to time.Time) bool {
	return !DateOf(s.StartDate).After(DateOf(to)) && !DateOf(s.EndDate).Before(DateOf(from))
}

// Days returns the number of calendar days the schedule spans
func (s *Schedule) Days() int {
	return int(DateOf(s.EndDate).Sub(DateOf(s.StartDate)).Hours()/24) + 1
}

// IsMultiDay reports whether the schedule spans more than one day
func (s *Schedule) IsMultiDay() bool {
	return !SameDay(s.StartDate, s.EndDate)
}

// FormatRange returns "YYYY-MM-DD" or "YYYY-MM-DD ~ YYYY-MM-DD"
func (s *Schedule) FormatRange() string {
	if !s.IsMultiDay() {
		return DateKey(s.StartDate)
	}
	return DateKey(s.StartDate) + " ~ " + DateKey(s.EndDate)
}

// ScheduleUpdate carries a partial update; nil fields are left unchanged
type ScheduleUpdate struct {
	Title       *string    `json:"title,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Description *string    `json:"description,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u ScheduleUpdate) IsEmpty() bool {
	return u.Title == nil && u.StartDate == nil && u.EndDate == nil && u.Category == nil && u.Description == nil
}

// Apply copies the set fields onto s
func (u ScheduleUpdate) Apply(s *Schedule) {
	if u.Title != nil {
		s.Title = *u.Title
	}
	if u.StartDate != nil {
		s.StartDate = DateOf(*u.StartDate)
	}
	if u.EndDate != nil {
		s.EndDate = DateOf(*u.EndDate)
	}
	if u.Category != nil {
		s.Category = *u.Category
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
}
