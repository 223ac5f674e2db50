package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/clients/holidayapi"
	"github.com/tazhate/planner/internal/domain"
	"github.com/tazhate/planner/internal/service"
)

type ScheduleResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type HolidayResponse struct {
	Year     int               `json:"year"`
	Month    int               `json:"month,omitempty"`
	Holidays domain.HolidayMap `json:"holidays"`
}

type DayResponse struct {
	Date         string             `json:"date"`
	HolidayName  string             `json:"holiday_name,omitempty"`
	HolidayError string             `json:"holiday_error,omitempty"`
	Schedules    []ScheduleResponse `json:"schedules"`
}

// scheduleRequest is the body of create and update; absent fields are left unchanged on update
type scheduleRequest struct {
	Title       *string `json:"title"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
}

func scheduleToResponse(sc *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:          sc.ID,
		UserID:      sc.UserID,
		Title:       sc.Title,
		StartDate:   domain.DateKey(sc.StartDate),
		EndDate:     domain.DateKey(sc.EndDate),
		Category:    sc.Category,
		Description: sc.Description,
		CreatedAt:   sc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   sc.UpdatedAt.Format(time.RFC3339),
	}
}

func schedulesToResponse(list []*domain.Schedule) []ScheduleResponse {
	out := make([]ScheduleResponse, 0, len(list))
	for _, sc := range list {
		out = append(out, scheduleToResponse(sc))
	}
	return out
}

// GET /api/calendar?year=2025&month=7 - month view, month is zero-based
func (s *Server) apiCalendar(w http.ResponseWriter, r *http.Request) {
	year, month := s.calendar.CurrentMonth()
	var err error
	if v := r.URL.Query().Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			jsonError(w, "invalid year", http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil {
			jsonError(w, "invalid month", http.StatusBadRequest)
			return
		}
	}

	view, err := s.calendar.Month(r.Context(), year, month)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, view)
}

// GET /api/day?date=2025-08-15
func (s *Server) apiDay(w http.ResponseWriter, r *http.Request) {
	day := s.calendar.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		var err error
		if day, err = domain.ParseDateKey(v); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	view, err := s.calendar.Day(r.Context(), day)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, DayResponse{
		Date:         view.Key,
		HolidayName:  view.HolidayName,
		HolidayError: view.HolidayError,
		Schedules:    schedulesToResponse(view.Schedules),
	})
}

// GET /api/calendar.ics?from=2025-01-01&to=2025-12-31&holidays=1
func (s *Server) apiCalendarICS(w http.ResponseWriter, r *http.Request) {
	from, to, err := s.parseRange(r, 0, 3)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	withHolidays, _ := strconv.ParseBool(r.URL.Query().Get("holidays"))

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="planner.ics"`)
	if err := s.calendar.ExportICS(r.Context(), w, from, to, withHolidays); err != nil {
		w.Header().Del("Content-Disposition")
		s.serviceError(w, err)
	}
}

// GET /api/holidays?year=2025 or ?year=2025&month=5 (1-12)
func (s *Server) apiHolidays(w http.ResponseWriter, r *http.Request) {
	year, ok := s.yearParam(w, r)
	if !ok {
		return
	}

	if v := r.URL.Query().Get("month"); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			jsonError(w, "invalid month, want 1-12", http.StatusBadRequest)
			return
		}
		holidays, err := s.holidays.Month(r.Context(), year, month)
		if err != nil {
			s.holidayError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, HolidayResponse{Year: year, Month: month, Holidays: holidays})
		return
	}

	holidays, err := s.holidays.Get(r.Context(), year)
	if err != nil {
		s.holidayError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, HolidayResponse{Year: year, Holidays: holidays})
}

// POST /api/holidays/refresh?year=2025
func (s *Server) apiHolidaysRefresh(w http.ResponseWriter, r *http.Request) {
	year, ok := s.yearParam(w, r)
	if !ok {
		return
	}
	holidays, err := s.holidays.Refresh(r.Context(), year)
	if err != nil {
		s.holidayError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, HolidayResponse{Year: year, Holidays: holidays})
}

// GET /api/schedules?date=2025-03-04 or ?from=2025-03-01&to=2025-03-31
func (s *Server) apiSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		list []*domain.Schedule
		err  error
	)
	if date := q.Get("date"); date != "" || (q.Get("from") == "" && q.Get("to") == "") {
		day := s.calendar.Today()
		if date != "" {
			if day, err = domain.ParseDateKey(date); err != nil {
				jsonError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		list, err = s.schedules.ListForDay(r.Context(), day)
	} else {
		from, to, perr := s.parseRange(r, 0, 0)
		if perr != nil {
			jsonError(w, perr.Error(), http.StatusBadRequest)
			return
		}
		list, err = s.schedules.ListForRange(r.Context(), from, to)
	}
	if err != nil {
		s.serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, schedulesToResponse(list))
}

// POST /api/schedules
func (s *Server) apiScheduleCreate(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	upd, err := req.toUpdate()
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	in := &domain.Schedule{}
	upd.Apply(in)

	sc, err := s.schedules.Create(r.Context(), in)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, scheduleToResponse(sc))
}

// GET /api/schedules/{id}
func (s *Server) apiScheduleGet(w http.ResponseWriter, r *http.Request) {
	sc, err := s.schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, scheduleToResponse(sc))
}

// PUT /api/schedules/{id} - partial update
func (s *Server) apiScheduleUpdate(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sc, err := s.schedules.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, scheduleToResponse(sc))
}

// DELETE /api/schedules/{id}
func (s *Server) apiScheduleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.schedules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (req scheduleRequest) toUpdate() (domain.ScheduleUpdate, error) {
	upd := domain.ScheduleUpdate{
		Title:       req.Title,
		Category:    req.Category,
		Description: req.Description,
	}
	if req.StartDate != nil {
		d, err := domain.ParseDateKey(*req.StartDate)
		if err != nil {
			return upd, err
		}
		upd.StartDate = &d
	}
	if req.EndDate != nil {
		d, err := domain.ParseDateKey(*req.EndDate)
		if err != nil {
			return upd, err
		}
		upd.EndDate = &d
	}
	return upd, nil
}

func (s *Server) yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("year")
	if v == "" {
		return s.calendar.Today().Year(), true
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 1900 || year > 2999 {
		jsonError(w, "invalid year", http.StatusBadRequest)
		return 0, false
	}
	return year, true
}

// parseRange reads from/to; a missing bound defaults to today shifted by the given months
func (s *Server) parseRange(r *http.Request, fromMonths, toMonths int) (time.Time, time.Time, error) {
	today := s.calendar.Today()
	from, to := today.AddDate(0, fromMonths, 0), today.AddDate(0, toMonths, 0)

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = domain.ParseDateKey(v); err != nil {
			return from, to, err
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = domain.ParseDateKey(v); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}

func (s *Server) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrInvalidSchedule), errors.Is(err, service.ErrInvalidRange):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) holidayError(w http.ResponseWriter, err error) {
	var apiErr *holidayapi.APIError
	switch {
	case errors.Is(err, holidayapi.ErrNotConfigured):
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &apiErr):
		jsonError(w, fmt.Sprintf("holiday source rejected the request: %s", apiErr.Message), http.StatusBadGateway)
	default:
		s.logger.Warn("holiday lookup failed", zap.Error(err))
		jsonError(w, "holiday source unavailable", http.StatusBadGateway)
	}
}
