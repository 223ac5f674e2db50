package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tazhate/planner/config"
	"github.com/tazhate/planner/internal/api"
	"github.com/tazhate/planner/internal/bot"
	"github.com/tazhate/planner/internal/clients/caldav"
	"github.com/tazhate/planner/internal/clients/holidayapi"
	"github.com/tazhate/planner/internal/clients/supabase"
	"github.com/tazhate/planner/internal/metrics"
	"github.com/tazhate/planner/internal/scheduler"
	"github.com/tazhate/planner/internal/service"
	"github.com/tazhate/planner/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("planner failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New("planner")

	// SQLite holds users and the holiday cache, and schedules unless Supabase is configured
	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	holidayClient := holidayapi.NewClient(cfg.HolidayAPIURL, cfg.HolidayAPIKey, logger.Named("holidayapi"))
	holidayClient.SetFormat(cfg.HolidayAPIFormat)
	if !holidayClient.IsConfigured() {
		logger.Warn("PUBLIC_DATA_API_KEY not set, holidays come from cache only")
	}
	holidaySvc := service.NewHolidayService(store, holidayClient, cfg.Timezone, logger.Named("holidays"), m)

	var repo service.ScheduleRepository = store.Schedules()
	if cfg.UseSupabase() {
		sb, err := supabase.Connect(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable, logger.Named("supabase"))
		if err != nil {
			return fmt.Errorf("connect supabase: %w", err)
		}
		repo = sb
		logger.Info("schedules stored in supabase", zap.String("table", cfg.SupabaseTable))
	}
	scheduleSvc := service.NewScheduleService(repo, logger.Named("schedules"), m)

	if cfg.CalDAVUsername != "" && cfg.CalDAVPassword != "" {
		scheduleSvc.SetPusher(setupCalDAV(ctx, cfg, logger.Named("caldav")))
	}

	calendarSvc := service.NewCalendarService(holidaySvc, scheduleSvc, cfg.Timezone, logger.Named("calendar"))

	tgBot, err := bot.New(cfg, store, calendarSvc, scheduleSvc, holidaySvc, logger.Named("bot"))
	if err != nil {
		return fmt.Errorf("init bot: %w", err)
	}

	server := api.New(cfg, calendarSvc, scheduleSvc, holidaySvc, m, logger.Named("api"))
	if cfg.UseWebhook() {
		server.SetWebhook(tgBot.WebhookHandler())
	}

	sched := scheduler.New(cfg, calendarSvc, scheduleSvc, holidaySvc, logger.Named("scheduler"))
	sched.SetSender(tgBot)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx) })
	g.Go(func() error { return tgBot.Start(gctx) })
	g.Go(func() error { return sched.Start(gctx) })

	logger.Info("planner started",
		zap.Bool("supabase", cfg.UseSupabase()),
		zap.Bool("webhook", cfg.UseWebhook()),
		zap.Bool("api", cfg.APIEnabled()))

	<-gctx.Done()
	logger.Info("shutting down")

	sched.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("stop http server", zap.Error(err))
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("planner stopped")
	return nil
}

// setupCalDAV picks CALDAV_CALENDAR, or the first calendar the server reports
func setupCalDAV(ctx context.Context, cfg *config.Config, logger *zap.Logger) *caldav.Client {
	client := caldav.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, logger)
	if cfg.CalDAVCalendar != "" {
		client.SetCalendarPath(cfg.CalDAVCalendar)
		return client
	}

	discoverCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	calendars, err := client.DiscoverCalendars(discoverCtx)
	if err != nil {
		logger.Warn("calendar discovery failed, mirroring disabled", zap.Error(err))
		return client
	}
	if len(calendars) == 0 {
		logger.Warn("no calendars found, mirroring disabled")
		return client
	}
	client.SetCalendarPath(calendars[0].URL)
	logger.Info("mirroring schedules", zap.String("calendar", calendars[0].DisplayName))
	return client
}
