package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/clients/caldav"
	"github.com/tazhate/planner/internal/domain"
	"github.com/tazhate/planner/internal/metrics"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrInvalidSchedule  = errors.New("invalid schedule")
	ErrInvalidRange     = errors.New("invalid date range")
)

// ScheduleRepository stores schedules. Get returns nil, nil for a missing id.
type ScheduleRepository interface {
	ListByRange(ctx context.Context, from, to time.Time) ([]*domain.Schedule, error)
	Get(ctx context.Context, id string) (*domain.Schedule, error)
	Create(ctx context.Context, s *domain.Schedule) error
	Update(ctx context.Context, s *domain.Schedule) error
	Delete(ctx context.Context, id string) error
}

// CalendarPusher mirrors schedules into an external calendar
type CalendarPusher interface {
	IsConfigured() bool
	PutEvent(ctx context.Context, event *caldav.Event) error
	DeleteEvent(ctx context.Context, uid string) error
}

type ScheduleService struct {
	repo     ScheduleRepository
	validate *validator.Validate
	pusher   CalendarPusher
	logger   *zap.Logger
	metrics  *metrics.Collector
	now      func() time.Time
}

func NewScheduleService(repo ScheduleRepository, logger *zap.Logger, m *metrics.Collector) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &ScheduleService{
		repo:     repo,
		validate: v,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// SetPusher enables mirroring into an external calendar
func (s *ScheduleService) SetPusher(p CalendarPusher) {
	s.pusher = p
}

// SetClock replaces the time source
func (s *ScheduleService) SetClock(now func() time.Time) {
	s.now = now
}

// Create validates and stores a new schedule. ID, owner and timestamps are filled in.
func (s *ScheduleService) Create(ctx context.Context, in *domain.Schedule) (*domain.Schedule, error) {
	now := s.now().UTC()
	sc := &domain.Schedule{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		Title:       strings.TrimSpace(in.Title),
		StartDate:   domain.DateOf(in.StartDate),
		EndDate:     domain.DateOf(in.EndDate),
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.EndDate.IsZero() {
		sc.EndDate = sc.StartDate
	}
	if sc.UserID == "" {
		sc.UserID = domain.AnonymousUserID
	}

	if err := s.check(sc); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, sc); err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	s.metrics.ScheduleCreated()
	s.logger.Info("schedule created",
		zap.String("id", sc.ID),
		zap.String("range", sc.FormatRange()))

	s.push(ctx, sc)
	return sc, nil
}

// Get returns ErrScheduleNotFound for unknown or malformed ids
func (s *ScheduleService) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrScheduleNotFound
	}
	sc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if sc == nil {
		return nil, ErrScheduleNotFound
	}
	return sc, nil
}

// ListForDay returns schedules with start <= day <= end
func (s *ScheduleService) ListForDay(ctx context.Context, day time.Time) ([]*domain.Schedule, error) {
	d := domain.DateOf(day)
	return s.ListForRange(ctx, d, d)
}

// ListForRange returns schedules overlapping the inclusive range
func (s *ScheduleService) ListForRange(ctx context.Context, from, to time.Time) ([]*domain.Schedule, error) {
	from, to = domain.DateOf(from), domain.DateOf(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, domain.DateKey(to), domain.DateKey(from))
	}

	list, err := s.repo.ListByRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	out := list[:0]
	for _, sc := range list {
		if sc.Overlaps(from, to) {
			out = append(out, sc)
		}
	}
	return out, nil
}

// Update applies a partial update. An empty update returns the stored schedule unchanged.
func (s *ScheduleService) Update(ctx context.Context, id string, upd domain.ScheduleUpdate) (*domain.Schedule, error) {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.IsEmpty() {
		return sc, nil
	}

	upd.Apply(sc)
	sc.Title = strings.TrimSpace(sc.Title)
	sc.UpdatedAt = s.now().UTC()

	if err := s.check(sc); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}
	s.logger.Info("schedule updated", zap.String("id", sc.ID))

	s.push(ctx, sc)
	return sc, nil
}

// Delete removes the schedule
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	s.metrics.ScheduleDeleted()
	s.logger.Info("schedule deleted", zap.String("id", id))

	if s.pusher != nil && s.pusher.IsConfigured() {
		if err := s.pusher.DeleteEvent(ctx, caldav.ScheduleEvent(sc).UID); err != nil {
			s.logger.Warn("calendar delete failed", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

// push mirrors the schedule; failures never affect the stored schedule
func (s *ScheduleService) push(ctx context.Context, sc *domain.Schedule) {
	if s.pusher == nil || !s.pusher.IsConfigured() {
		return
	}
	if err := s.pusher.PutEvent(ctx, caldav.ScheduleEvent(sc)); err != nil {
		s.logger.Warn("calendar push failed", zap.String("id", sc.ID), zap.Error(err))
	}
}

func (s *ScheduleService) check(sc *domain.Schedule) error {
	err := s.validate.Struct(sc)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gtefield":
			msgs = append(msgs, "end_date must be greater than or equal to start_date")
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidSchedule, strings.Join(msgs, "; "))
}

// ParseAddArgs parses "2025-03-04 Dentist" or "2025-03-04..2025-03-06 Trip"
func (s *ScheduleService) ParseAddArgs(args string) (start, end time.Time, title string, err error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		err = errors.New("형식: /add YYYY-MM-DD[..YYYY-MM-DD] 제목")
		return
	}

	startStr, endStr, isRange := strings.Cut(parts[0], "..")
	if start, err = domain.ParseDateKey(startStr); err != nil {
		err = errors.New("날짜 형식이 올바르지 않습니다 (YYYY-MM-DD)")
		return
	}
	end = start
	if isRange {
		if end, err = domain.ParseDateKey(endStr); err != nil {
			err = errors.New("종료 날짜 형식이 올바르지 않습니다 (YYYY-MM-DD)")
			return
		}
		if end.Before(start) {
			err = errors.New("종료 날짜는 시작 날짜보다 빠를 수 없습니다")
			return
		}
	}

	title = strings.Join(parts[1:], " ")
	return
}

// FormatDaySchedule formats the schedules of one day for chat output
func (s *ScheduleService) FormatDaySchedule(day time.Time, schedules []*domain.Schedule, holiday string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>📅 %s (%s)</b>\n", domain.DateKey(day), domain.WeekdayNames[day.Weekday()]))
	if holiday != "" {
		sb.WriteString(fmt.Sprintf("🎌 %s\n", html.EscapeString(holiday)))
	}
	sb.WriteString("\n")

	if len(schedules) == 0 {
		sb.WriteString("일정이 없습니다")
		return sb.String()
	}

	for _, sc := range schedules {
		line := "• " + html.EscapeString(sc.Title)
		if sc.IsMultiDay() {
			line += fmt.Sprintf(" <i>(%s)</i>", sc.FormatRange())
		}
		if sc.Category != "" {
			line += " #" + html.EscapeString(sc.Category)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
