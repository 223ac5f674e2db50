package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/domain"
	"github.com/tazhate/planner/internal/metrics"
)

var june2025 = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

var sample2025 = []domain.RawHoliday{
	{IsHoliday: true, Locdate: "20250815", Name: " 광복절 "},
	{IsHoliday: false, Locdate: "20250717", Name: "제헌절"},
	{IsHoliday: true, Locdate: "20251225", Name: "기독탄신일"},
}

func newHolidayService(store *fakeStore, source *fakeSource) *HolidayService {
	s := NewHolidayService(store, source, time.UTC, zap.NewNop(), nil)
	s.SetClock(fixedClock(june2025))
	return s
}

func seedEntry(t *testing.T, store *fakeStore, year int, cachedAt time.Time, holidays domain.HolidayMap) {
	t.Helper()
	data, err := json.Marshal(domain.HolidayCacheEntry{Year: year, Holidays: holidays, CachedAt: cachedAt})
	require.NoError(t, err)
	store.values[domain.HolidayCacheKey(year)] = string(data)
}

func TestExpiryDays(t *testing.T) {
	assert.Equal(t, 365, ExpiryDays(2024, june2025))
	assert.Equal(t, 365, ExpiryDays(1999, june2025))
	assert.Equal(t, 30, ExpiryDays(2025, june2025))
	assert.Equal(t, 7, ExpiryDays(2026, june2025))
	assert.Equal(t, 7, ExpiryDays(2030, june2025))
}

func TestNormalize(t *testing.T) {
	got, err := Normalize([]domain.RawHoliday{
		{IsHoliday: true, Locdate: "20250815", Name: " Liberation Day "},
		{IsHoliday: false, Locdate: "20250717", Name: "Constitution Day"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.HolidayMap{"2025-08-15": "Liberation Day"}, got)
}

func TestNormalize_SameDay(t *testing.T) {
	got, err := Normalize([]domain.RawHoliday{
		{IsHoliday: true, Locdate: "20250505", Name: "어린이날"},
		{IsHoliday: true, Locdate: "20250505", Name: "부처님오신날"},
		{IsHoliday: true, Locdate: "20250505", Name: "어린이날"},
	})
	require.NoError(t, err)
	assert.Equal(t, "어린이날, 부처님오신날", got["2025-05-05"])
}

func TestNormalize_SameDayKeepsFirstSeenOrder(t *testing.T) {
	got, err := Normalize([]domain.RawHoliday{
		{IsHoliday: true, Locdate: "20250505", Name: "어린이날"},
		{IsHoliday: true, Locdate: "20250506", Name: "대체공휴일"},
		{IsHoliday: true, Locdate: "20250505", Name: " 부처님오신날"},
		{IsHoliday: true, Locdate: "20250505", Name: "어린이날 "},
		{IsHoliday: true, Locdate: "20250505", Name: "부처님오신날"},
		{IsHoliday: true, Locdate: "20250506", Name: "대체공휴일"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.HolidayMap{
		"2025-05-05": "어린이날, 부처님오신날",
		"2025-05-06": "대체공휴일",
	}, got)
}

func TestNormalize_Malformed(t *testing.T) {
	for _, locdate := range []string{"2025815", "2025-08-15", "20251345", ""} {
		_, err := Normalize([]domain.RawHoliday{{IsHoliday: true, Locdate: locdate, Name: "x"}})
		assert.ErrorIs(t, err, ErrMalformedHoliday, locdate)
	}

	// malformed non-holidays are ignored
	got, err := Normalize([]domain.RawHoliday{{IsHoliday: false, Locdate: "bad"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGet_MissFetchesAndPersists(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{items: sample2025}
	svc := newHolidayService(store, source)

	got, err := svc.Get(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, domain.HolidayMap{"2025-08-15": "광복절", "2025-12-25": "기독탄신일"}, got)
	assert.Equal(t, 1, source.Calls())

	var entry domain.HolidayCacheEntry
	require.NoError(t, json.Unmarshal([]byte(store.values["holidays_2025"]), &entry))
	assert.Equal(t, 2025, entry.Year)
	assert.Equal(t, got, entry.Holidays)
	assert.True(t, entry.CachedAt.Equal(june2025))

	again, err := svc.Get(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, source.Calls())
}

func TestGet_TieredExpiry(t *testing.T) {
	cached := domain.HolidayMap{"2000-01-01": "cached"}
	tests := []struct {
		name      string
		year      int
		age       time.Duration
		wantFetch bool
	}{
		{"current year fresh", 2025, 29 * 24 * time.Hour, false},
		{"current year stale", 2025, 31 * 24 * time.Hour, true},
		{"current year exactly at expiry", 2025, 30 * 24 * time.Hour, true},
		{"past year fresh", 2024, 364 * 24 * time.Hour, false},
		{"past year stale", 2024, 366 * 24 * time.Hour, true},
		{"future year fresh", 2026, 6 * 24 * time.Hour, false},
		{"future year stale", 2026, 8 * 24 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			seedEntry(t, store, tt.year, june2025.Add(-tt.age), cached)
			source := &fakeSource{items: sample2025}
			svc := newHolidayService(store, source)

			got, err := svc.Get(context.Background(), tt.year)
			require.NoError(t, err)
			if tt.wantFetch {
				assert.Equal(t, 1, source.Calls())
				assert.NotEqual(t, cached, got)
			} else {
				assert.Equal(t, 0, source.Calls())
				assert.Equal(t, cached, got)
			}
		})
	}
}

func TestGet_CorruptEntryIsMiss(t *testing.T) {
	store := newFakeStore()
	store.values["holidays_2025"] = "{not json"
	source := &fakeSource{items: sample2025}

	got, err := newHolidayService(store, source).Get(context.Background(), 2025)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, source.Calls())
}

func TestGet_PersistenceErrorsAreSwallowed(t *testing.T) {
	store := newFakeStore()
	store.readErr = errors.New("disk gone")
	store.writeErr = errors.New("disk gone")
	source := &fakeSource{items: sample2025}

	got, err := newHolidayService(store, source).Get(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "광복절", got["2025-08-15"])
	assert.Equal(t, 1, store.writes)
}

func TestGet_SourceErrorPropagates(t *testing.T) {
	store := newFakeStore()
	seedEntry(t, store, 2025, june2025.Add(-40*24*time.Hour), domain.HolidayMap{"2025-01-01": "old"})
	before := store.values["holidays_2025"]

	sourceErr := errors.New("upstream 503")
	svc := newHolidayService(store, &fakeSource{err: sourceErr})

	_, err := svc.Get(context.Background(), 2025)
	assert.ErrorIs(t, err, sourceErr)

	_, err = svc.Refresh(context.Background(), 2025)
	assert.ErrorIs(t, err, sourceErr)
	assert.Equal(t, before, store.values["holidays_2025"])
}

func TestGet_MalformedSourceDataIsNotCached(t *testing.T) {
	store := newFakeStore()
	svc := newHolidayService(store, &fakeSource{items: []domain.RawHoliday{{IsHoliday: true, Locdate: "2025", Name: "x"}}})

	_, err := svc.Get(context.Background(), 2025)
	assert.ErrorIs(t, err, ErrMalformedHoliday)
	assert.Equal(t, 0, store.writes)
}

func TestRefresh_IgnoresValidCache(t *testing.T) {
	store := newFakeStore()
	seedEntry(t, store, 2025, june2025, domain.HolidayMap{"2025-01-01": "old"})
	source := &fakeSource{items: sample2025}
	svc := newHolidayService(store, source)

	got, err := svc.Refresh(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, source.Calls())
	assert.NotContains(t, got, "2025-01-01")
}

func TestGet_ConcurrentSameYearFetchesOnce(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{items: sample2025, release: make(chan struct{})}
	svc := newHolidayService(store, source)

	var wg sync.WaitGroup
	results := make([]domain.HolidayMap, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.Get(context.Background(), 2025)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.Equal(t, 1, source.Calls())
	assert.Equal(t, 1, store.writes)
	for _, r := range results {
		assert.Len(t, r, 2)
	}
}

func TestGet_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{items: sample2025, release: make(chan struct{})}
	svc := newHolidayService(store, source)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Get(ctxA, 2025)
		errA <- err
	}()
	require.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		holidays domain.HolidayMap
		err      error
	}
	resB := make(chan result, 1)
	go func() {
		h, err := svc.Get(context.Background(), 2025)
		resB <- result{h, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting")
	}

	close(source.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Len(t, b.holidays, 2)
	assert.Equal(t, 1, source.Calls())
	assert.Nil(t, source.ctxErr.Load())
	assert.Equal(t, 1, store.writes)
}

func TestRefresh_CancelledContext(t *testing.T) {
	source := &fakeSource{items: sample2025, release: make(chan struct{})}
	t.Cleanup(func() { close(source.release) })
	svc := newHolidayService(newFakeStore(), source)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Refresh(ctx, 2025)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMonth_FiltersValidYearEntry(t *testing.T) {
	store := newFakeStore()
	seedEntry(t, store, 2025, june2025, domain.HolidayMap{
		"2025-05-05": "어린이날",
		"2025-05-06": "대체공휴일",
		"2025-08-15": "광복절",
	})
	source := &fakeMonthSource{}
	svc := newHolidayService(store, &source.fakeSource)
	svc.source = source

	got, err := svc.Month(context.Background(), 2025, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.HolidayMap{"2025-05-05": "어린이날", "2025-05-06": "대체공휴일"}, got)
	assert.Zero(t, source.Calls())
}

func TestMonth_MissAsksSourceForMonthOnly(t *testing.T) {
	store := newFakeStore()
	source := &fakeMonthSource{fakeSource: fakeSource{items: sample2025}}
	svc := newHolidayService(store, &source.fakeSource)
	svc.source = source

	got, err := svc.Month(context.Background(), 2025, 8)
	require.NoError(t, err)
	assert.Equal(t, domain.HolidayMap{"2025-08-15": "광복절"}, got)
	assert.Equal(t, []int{8}, source.months)
	assert.Zero(t, store.writes)
}

func TestMonth_YearOnlySourceFillsCache(t *testing.T) {
	store := newFakeStore()
	svc := newHolidayService(store, &fakeSource{items: sample2025})

	got, err := svc.Month(context.Background(), 2025, 12)
	require.NoError(t, err)
	assert.Equal(t, domain.HolidayMap{"2025-12-25": "기독탄신일"}, got)
	assert.Equal(t, 1, store.writes)

	got, err = svc.Month(context.Background(), 2025, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMonth_Errors(t *testing.T) {
	source := &fakeMonthSource{fakeSource: fakeSource{err: errors.New("boom")}}
	svc := newHolidayService(newFakeStore(), &source.fakeSource)
	svc.source = source

	_, err := svc.Month(context.Background(), 2025, 13)
	assert.ErrorIs(t, err, ErrInvalidMonth)
	_, err = svc.Month(context.Background(), 2025, 0)
	assert.ErrorIs(t, err, ErrInvalidMonth)

	_, err = svc.Month(context.Background(), 2025, 3)
	assert.ErrorContains(t, err, "fetch holidays 2025-03: boom")
}

func TestNameFor(t *testing.T) {
	svc := newHolidayService(newFakeStore(), &fakeSource{items: sample2025})

	name, err := svc.NameFor(context.Background(), domain.Date(2025, time.August, 15))
	require.NoError(t, err)
	assert.Equal(t, "광복절", name)

	name, err = svc.NameFor(context.Background(), domain.Date(2025, time.August, 16))
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestWarm_ReportsFailedYears(t *testing.T) {
	source := &fakeSource{items: sample2025, errYear: map[int]error{2026: errors.New("not yet published")}}
	svc := newHolidayService(newFakeStore(), source)

	err := svc.Warm(context.Background(), 2025, 2026)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "year 2026")
	assert.NotContains(t, err.Error(), "year 2025")
}

func TestGet_Metrics(t *testing.T) {
	m := metrics.New("test")
	svc := NewHolidayService(newFakeStore(), &fakeSource{items: sample2025}, time.UTC, zap.NewNop(), m)
	svc.SetClock(fixedClock(june2025))

	_, _ = svc.Get(context.Background(), 2025)
	_, _ = svc.Get(context.Background(), 2025)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HolidayCacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HolidayCacheHits))
}
