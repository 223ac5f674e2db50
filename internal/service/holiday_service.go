package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tazhate/planner/internal/domain"
	"github.com/tazhate/planner/internal/metrics"
)

// ErrMalformedHoliday is returned when a holiday item carries an unusable date
var ErrMalformedHoliday = errors.New("malformed holiday item")

// Cache lifetimes in days, by the year's position relative to now
const (
	PastYearExpiryDays    = 365
	CurrentYearExpiryDays = 30
	FutureYearExpiryDays  = 7
)

const fetchTimeout = time.Minute

// HolidayStore persists cache entries as strings
type HolidayStore interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
}

// HolidaySource fetches the raw holiday list for a full year
type HolidaySource interface {
	FetchYear(ctx context.Context, year int) ([]domain.RawHoliday, error)
}

// MonthSource is implemented by sources that can narrow a fetch to one month
type MonthSource interface {
	FetchMonth(ctx context.Context, year, month int) ([]domain.RawHoliday, error)
}

// ErrInvalidMonth is returned for months outside 1-12
var ErrInvalidMonth = errors.New("month must be 1-12")

// HolidayService returns holiday maps per year, backed by a persisted cache
type HolidayService struct {
	store   HolidayStore
	source  HolidaySource
	tz      *time.Location
	logger  *zap.Logger
	metrics *metrics.Collector
	now     func() time.Time
	group   singleflight.Group
}

// NewHolidayService creates a new holiday service
func NewHolidayService(store HolidayStore, source HolidaySource, tz *time.Location, logger *zap.Logger, m *metrics.Collector) *HolidayService {
	if tz == nil {
		tz = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HolidayService{
		store:   store,
		source:  source,
		tz:      tz,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces the time source
func (s *HolidayService) SetClock(now func() time.Time) {
	s.now = now
}

// ExpiryDays returns how long a cache entry for year stays valid
func ExpiryDays(year int, now time.Time) int {
	current := now.Year()
	switch {
	case year < current:
		return PastYearExpiryDays
	case year == current:
		return CurrentYearExpiryDays
	default:
		return FutureYearExpiryDays
	}
}

// Normalize keeps holiday-flagged items and maps their canonical date key to
// the trimmed name. Two holidays on one day are joined with ", ".
func Normalize(items []domain.RawHoliday) (domain.HolidayMap, error) {
	names := make(map[string][]string)
	for _, item := range items {
		if !item.IsHoliday {
			continue
		}

		compact := strings.TrimSpace(item.Locdate)
		if len(compact) != 8 {
			return nil, fmt.Errorf("%w: locdate %q", ErrMalformedHoliday, item.Locdate)
		}
		day, err := time.ParseInLocation("20060102", compact, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: locdate %q", ErrMalformedHoliday, item.Locdate)
		}

		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}

		key := domain.DateKey(day)
		if !slices.Contains(names[key], name) {
			names[key] = append(names[key], name)
		}
	}

	out := make(domain.HolidayMap, len(names))
	for key, list := range names {
		out[key] = strings.Join(list, ", ")
	}
	return out, nil
}

// Get returns the holidays of year, from cache when still valid
func (s *HolidayService) Get(ctx context.Context, year int) (domain.HolidayMap, error) {
	now := s.now().In(s.tz)

	if entry := s.readCache(ctx, year); entry != nil && entry.IsValid(now, ExpiryDays(year, now)) {
		s.metrics.CacheHit()
		return entry.Holidays, nil
	}
	s.metrics.CacheMiss()

	return s.fetchShared(ctx, year)
}

// Refresh fetches and persists year regardless of the cache state.
// On failure the existing entry is left as it was.
func (s *HolidayService) Refresh(ctx context.Context, year int) (domain.HolidayMap, error) {
	return s.fetchShared(ctx, year)
}

// fetchShared joins callers of one year onto a single fetch. The fetch runs
// detached from any caller, so one caller giving up leaves the others waiting.
func (s *HolidayService) fetchShared(ctx context.Context, year int) (domain.HolidayMap, error) {
	ch := s.group.DoChan(strconv.Itoa(year), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.fetchAndStore(fctx, year)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("holiday fetch shared", zap.Int("year", year))
		}
		return res.Val.(domain.HolidayMap), nil
	}
}

// Month returns the holidays of one month, 1-12. A valid year entry is
// filtered in place; otherwise a month-capable source is asked for just that
// month and the partial answer is not cached.
func (s *HolidayService) Month(ctx context.Context, year, month int) (domain.HolidayMap, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, month)
	}

	now := s.now().In(s.tz)
	if entry := s.readCache(ctx, year); entry != nil && entry.IsValid(now, ExpiryDays(year, now)) {
		s.metrics.CacheHit()
		return filterMonth(entry.Holidays, year, month), nil
	}

	ms, ok := s.source.(MonthSource)
	if !ok {
		holidays, err := s.Get(ctx, year)
		if err != nil {
			return nil, err
		}
		return filterMonth(holidays, year, month), nil
	}
	s.metrics.CacheMiss()

	start := time.Now()
	items, err := ms.FetchMonth(ctx, year, month)
	var holidays domain.HolidayMap
	if err == nil {
		holidays, err = Normalize(items)
	}
	s.metrics.ObserveFetch(start, err)
	if err != nil {
		return nil, fmt.Errorf("fetch holidays %d-%02d: %w", year, month, err)
	}
	return filterMonth(holidays, year, month), nil
}

func filterMonth(holidays domain.HolidayMap, year, month int) domain.HolidayMap {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	out := make(domain.HolidayMap)
	for k, v := range holidays {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

// Warm makes sure every year has a valid cache entry
func (s *HolidayService) Warm(ctx context.Context, years ...int) error {
	var errs []error
	for _, year := range years {
		if _, err := s.Get(ctx, year); err != nil {
			errs = append(errs, fmt.Errorf("year %d: %w", year, err))
		}
	}
	return errors.Join(errs...)
}

// NameFor returns the holiday name of day, or "" when it is a regular day
func (s *HolidayService) NameFor(ctx context.Context, day time.Time) (string, error) {
	holidays, err := s.Get(ctx, day.Year())
	if err != nil {
		return "", err
	}
	return holidays[domain.DateKey(day)], nil
}

func (s *HolidayService) fetchAndStore(ctx context.Context, year int) (domain.HolidayMap, error) {
	start := time.Now()
	items, err := s.source.FetchYear(ctx, year)
	if err == nil {
		var holidays domain.HolidayMap
		if holidays, err = Normalize(items); err == nil {
			s.metrics.ObserveFetch(start, nil)
			s.writeCache(ctx, year, holidays)
			s.logger.Info("holidays fetched",
				zap.Int("year", year),
				zap.Int("holidays", len(holidays)),
				zap.Duration("took", time.Since(start)))
			return holidays, nil
		}
	}

	s.metrics.ObserveFetch(start, err)
	s.logger.Warn("holiday fetch failed", zap.Int("year", year), zap.Error(err))
	return nil, fmt.Errorf("fetch holidays %d: %w", year, err)
}

// readCache treats every failure as a miss
func (s *HolidayService) readCache(ctx context.Context, year int) *domain.HolidayCacheEntry {
	key := domain.HolidayCacheKey(year)
	raw, ok, err := s.store.GetValue(ctx, key)
	if err != nil {
		s.logger.Warn("holiday cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var entry domain.HolidayCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.Warn("holiday cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil
	}
	if entry.Year != year || entry.Holidays == nil {
		return nil
	}
	return &entry
}

// writeCache logs and swallows persistence failures
func (s *HolidayService) writeCache(ctx context.Context, year int, holidays domain.HolidayMap) {
	key := domain.HolidayCacheKey(year)
	entry := domain.HolidayCacheEntry{
		Year:     year,
		Holidays: holidays,
		CachedAt: s.now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		s.logger.Warn("holiday cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.store.SetValue(ctx, key, string(data)); err != nil {
		s.logger.Warn("holiday cache write failed", zap.String("key", key), zap.Error(err))
	}
}
