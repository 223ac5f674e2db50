// Package api serves the planner REST API, metrics and the Telegram webhook.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tazhate/planner/config"
	"github.com/tazhate/planner/internal/domain"
	"github.com/tazhate/planner/internal/metrics"
	"github.com/tazhate/planner/internal/service"
)

// HolidayService is the part of the holiday cache the API needs
type HolidayService interface {
	Get(ctx context.Context, year int) (domain.HolidayMap, error)
	Refresh(ctx context.Context, year int) (domain.HolidayMap, error)
	Month(ctx context.Context, year, month int) (domain.HolidayMap, error)
}

type Server struct {
	cfg       *config.Config
	calendar  *service.CalendarService
	schedules *service.ScheduleService
	holidays  HolidayService
	metrics   *metrics.Collector
	logger    *zap.Logger
	webhook   http.Handler
	server    *http.Server
}

func New(cfg *config.Config, calendar *service.CalendarService, schedules *service.ScheduleService, holidays HolidayService, m *metrics.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:       cfg,
		calendar:  calendar,
		schedules: schedules,
		holidays:  holidays,
		metrics:   m,
		logger:    logger,
	}
}

// SetWebhook mounts the Telegram update handler at /bot
func (s *Server) SetWebhook(h http.Handler) {
	s.webhook = h
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	if s.webhook != nil {
		r.Method(http.MethodPost, "/bot", s.webhook)
	}

	// API disabled if no credentials
	if s.cfg.APIEnabled() {
		r.Route("/api", func(r chi.Router) {
			r.Use(s.basicAuth)

			r.Get("/calendar", s.apiCalendar)
			r.Get("/calendar.ics", s.apiCalendarICS)
			r.Get("/day", s.apiDay)

			r.Get("/holidays", s.apiHolidays)
			r.Post("/holidays/refresh", s.apiHolidaysRefresh)

			r.Get("/schedules", s.apiSchedules)
			r.Post("/schedules", s.apiScheduleCreate)
			r.Get("/schedules/{id}", s.apiScheduleGet)
			r.Put("/schedules/{id}", s.apiScheduleUpdate)
			r.Delete("/schedules/{id}", s.apiScheduleDelete)
		})
	}

	return r
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              ":" + s.cfg.ServerPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.APIUsername)) != 1 ||
			subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.APIPassword)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="Planner API"`)
			jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe logs each request and records it by route pattern
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(r.Method, route, status, start)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())))
	})
}

// APIResponse is the envelope of every JSON response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}
