package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tazhate/planner/config"
	"github.com/tazhate/planner/internal/service"
)

const jobTimeout = 2 * time.Minute

type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// HolidayWarmer prefetches holiday years into the cache
type HolidayWarmer interface {
	Warm(ctx context.Context, years ...int) error
}

type Scheduler struct {
	cron      *cron.Cron
	cfg       *config.Config
	calendar  *service.CalendarService
	schedules *service.ScheduleService
	holidays  HolidayWarmer
	sender    MessageSender
	logger    *zap.Logger
}

func New(cfg *config.Config, calendarSvc *service.CalendarService, scheduleSvc *service.ScheduleService, holidays HolidayWarmer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(cron.WithLocation(cfg.Timezone))

	return &Scheduler{
		cron:      c,
		cfg:       cfg,
		calendar:  calendarSvc,
		schedules: scheduleSvc,
		holidays:  holidays,
		logger:    logger,
	}
}

func (s *Scheduler) SetSender(sender MessageSender) {
	s.sender = sender
}

// MorningSpec turns "HH:MM" into a daily cron spec
func MorningSpec(hhmm string) (string, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return "", fmt.Errorf("invalid time %q, want HH:MM", hhmm)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Register adds the morning briefing and holiday prefetch jobs
func (s *Scheduler) Register() error {
	morningSpec, err := MorningSpec(s.cfg.MorningTime)
	if err != nil {
		return fmt.Errorf("MORNING_TIME: %w", err)
	}
	if _, err := s.cron.AddFunc(morningSpec, s.morningBriefing); err != nil {
		return fmt.Errorf("add morning briefing: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.HolidayRefreshSpec, s.warmHolidays); err != nil {
		return fmt.Errorf("add holiday prefetch: %w", err)
	}
	return nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Register(); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("tz", s.cfg.Timezone.String()),
		zap.String("morning", s.cfg.MorningTime),
		zap.String("holidayRefresh", s.cfg.HolidayRefreshSpec))

	// Fill the cache for this year and next on boot
	go s.warmHolidays()

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) morningBriefing() {
	if s.sender == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	view, err := s.calendar.Day(ctx, s.calendar.Today())
	if err != nil {
		s.logger.Error("morning briefing", zap.Error(err))
		return
	}

	text := "☀️ <b>좋은 아침입니다!</b>\n\n" + s.schedules.FormatDaySchedule(view.Date, view.Schedules, view.HolidayName)

	s.sendTo(s.cfg.OwnerTelegramID, text)
	if s.cfg.PartnerTelegramID != 0 {
		s.sendTo(s.cfg.PartnerTelegramID, text)
	}
}

func (s *Scheduler) sendTo(telegramID int64, text string) {
	if err := s.sender.SendMessage(telegramID, text); err != nil {
		s.logger.Warn("send morning briefing", zap.Int64("telegramID", telegramID), zap.Error(err))
	}
}

// warmHolidays prefetches the current and next year
func (s *Scheduler) warmHolidays() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	year := s.calendar.Today().Year()
	if err := s.holidays.Warm(ctx, year, year+1); err != nil {
		s.logger.Warn("holiday prefetch", zap.Error(err))
		return
	}
	s.logger.Debug("holiday prefetch done", zap.Int("year", year))
}
