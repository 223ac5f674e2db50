package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tazhate/planner/internal/clients/caldav"
	"github.com/tazhate/planner/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	values   map[string]string
	readErr  error
	writeErr error
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (f *fakeStore) GetValue(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return "", false, f.readErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeStore) SetValue(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.values[key] = value
	return nil
}

type fakeSource struct {
	items   []domain.RawHoliday
	byYear  map[int][]domain.RawHoliday
	err     error
	errYear map[int]error
	release chan struct{}
	calls   int32
	ctxErr  atomic.Value
}

func (f *fakeSource) FetchYear(ctx context.Context, year int) ([]domain.RawHoliday, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		f.ctxErr.Store(err)
		return nil, err
	}
	if err := f.errYear[year]; err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if items, ok := f.byYear[year]; ok {
		return items, nil
	}
	return f.items, nil
}

func (f *fakeSource) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

type fakeMonthSource struct {
	fakeSource
	months []int
}

func (f *fakeMonthSource) FetchMonth(ctx context.Context, year, month int) ([]domain.RawHoliday, error) {
	f.months = append(f.months, month)
	return f.FetchYear(ctx, year)
}

// fakeRepo returns copies so callers cannot mutate stored rows
type fakeRepo struct {
	mu        sync.Mutex
	schedules map[string]domain.Schedule
	err       error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{schedules: make(map[string]domain.Schedule)}
}

func (f *fakeRepo) ListByRange(_ context.Context, from, to time.Time) ([]*domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Schedule
	for _, sc := range f.schedules {
		sc := sc
		if sc.Overlaps(from, to) {
			out = append(out, &sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id string) (*domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	sc, ok := f.schedules[id]
	if !ok {
		return nil, nil
	}
	return &sc, nil
}

func (f *fakeRepo) Create(_ context.Context, sc *domain.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.schedules[sc.ID] = *sc
	return nil
}

func (f *fakeRepo) Update(_ context.Context, sc *domain.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedules[sc.ID]; !ok {
		return errors.New("no such row")
	}
	f.schedules[sc.ID] = *sc
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.schedules, id)
	return nil
}

type fakePusher struct {
	configured bool
	err        error
	put        []string
	deleted    []string
}

func (f *fakePusher) IsConfigured() bool { return f.configured }

func (f *fakePusher) PutEvent(_ context.Context, e *caldav.Event) error {
	f.put = append(f.put, e.UID)
	return f.err
}

func (f *fakePusher) DeleteEvent(_ context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return f.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
