package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/tazhate/planner/internal/domain"
)

// ScheduleStore keeps schedules in the local database.
// Dates are stored as YYYY-MM-DD text so range filters compare lexically.
type ScheduleStore struct {
	db *sql.DB
}

// Schedules returns the local schedule repository
func (s *Storage) Schedules() *ScheduleStore {
	return &ScheduleStore{db: s.db}
}

const scheduleColumns = `id, user_id, title, start_date, end_date, category, description, created_at, updated_at`

// ListByRange returns schedules overlapping [from, to], ordered by start date then creation
func (s *ScheduleStore) ListByRange(ctx context.Context, from, to time.Time) ([]*domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE start_date <= ? AND end_date >= ?
		 ORDER BY start_date ASC, created_at ASC`,
		domain.DateKey(to), domain.DateKey(from),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

// Get returns nil, nil when the schedule does not exist
func (s *ScheduleStore) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sc, err
}

func (s *ScheduleStore) Create(ctx context.Context, sc *domain.Schedule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (id, user_id, title, start_date, end_date, category, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.UserID, sc.Title, domain.DateKey(sc.StartDate), domain.DateKey(sc.EndDate),
		sc.Category, sc.Description, sc.CreatedAt, sc.UpdatedAt,
	)
	return err
}

func (s *ScheduleStore) Update(ctx context.Context, sc *domain.Schedule) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET title = ?, start_date = ?, end_date = ?, category = ?, description = ?, updated_at = ?
		 WHERE id = ?`,
		sc.Title, domain.DateKey(sc.StartDate), domain.DateKey(sc.EndDate),
		sc.Category, sc.Description, sc.UpdatedAt, sc.ID,
	)
	return err
}

func (s *ScheduleStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSchedule(row rowScanner) (*domain.Schedule, error) {
	sc := &domain.Schedule{}
	var start, end string
	var category, description sql.NullString
	err := row.Scan(&sc.ID, &sc.UserID, &sc.Title, &start, &end,
		&category, &description, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sc.Category = category.String
	sc.Description = description.String

	if sc.StartDate, err = domain.ParseDateKey(start); err != nil {
		return nil, err
	}
	if sc.EndDate, err = domain.ParseDateKey(end); err != nil {
		return nil, err
	}
	return sc, nil
}
