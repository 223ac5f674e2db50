// Package supabase stores schedules in a hosted Postgres table through PostgREST.
package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/domain"
)

const DefaultTable = "schedules"

// scheduleRow is the wire shape of one row; date columns are Postgres DATE
type scheduleRow struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// Repository is a thin pass-through to the schedules table.
// PostgREST requests do not take a context; ctx is only checked before each call.
type Repository struct {
	from   func(table string) *postgrest.QueryBuilder
	table  string
	logger *zap.Logger
}

// NewRepository creates a repository over an existing Supabase client
func NewRepository(client *supabase.Client, table string, logger *zap.Logger) *Repository {
	return newRepository(client.From, table, logger)
}

// Connect creates the Supabase client and the repository
func Connect(url, key, table string, logger *zap.Logger) (*Repository, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return NewRepository(client, table, logger), nil
}

func newRepository(from func(string) *postgrest.QueryBuilder, table string, logger *zap.Logger) *Repository {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{from: from, table: table, logger: logger}
}

// ListByRange returns schedules with start_date <= to and end_date >= from
func (r *Repository) ListByRange(ctx context.Context, from, to time.Time) ([]*domain.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []scheduleRow
	_, err := r.from(r.table).
		Select("*", "", false).
		Lte("start_date", domain.DateKey(to)).
		Gte("end_date", domain.DateKey(from)).
		Order("start_date", &postgrest.OrderOpts{Ascending: true}).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	schedules := make([]*domain.Schedule, 0, len(rows))
	for _, row := range rows {
		sc, err := row.toDomain()
		if err != nil {
			r.logger.Warn("skipping malformed schedule row", zap.String("id", row.ID), zap.Error(err))
			continue
		}
		schedules = append(schedules, sc)
	}
	return schedules, nil
}

// Get returns nil, nil when no row matches
func (r *Repository) Get(ctx context.Context, id string) (*domain.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rows []scheduleRow
	_, err := r.from(r.table).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain()
}

func (r *Repository) Create(ctx context.Context, sc *domain.Schedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := r.from(r.table).
		Insert(fromDomain(sc), false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, sc *domain.Schedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch := map[string]interface{}{
		"title":       sc.Title,
		"start_date":  domain.DateKey(sc.StartDate),
		"end_date":    domain.DateKey(sc.EndDate),
		"category":    nullable(sc.Category),
		"description": nullable(sc.Description),
		"updated_at":  sc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, _, err := r.from(r.table).
		Update(patch, "minimal", "").
		Eq("id", sc.ID).
		Execute()
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := r.from(r.table).
		Delete("minimal", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}

func fromDomain(sc *domain.Schedule) scheduleRow {
	row := scheduleRow{
		ID:          sc.ID,
		UserID:      sc.UserID,
		Title:       sc.Title,
		StartDate:   domain.DateKey(sc.StartDate),
		EndDate:     domain.DateKey(sc.EndDate),
		Category:    nullable(sc.Category),
		Description: nullable(sc.Description),
	}
	if !sc.CreatedAt.IsZero() {
		row.CreatedAt = sc.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !sc.UpdatedAt.IsZero() {
		row.UpdatedAt = sc.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return row
}

func (row scheduleRow) toDomain() (*domain.Schedule, error) {
	start, err := parseDate(row.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	end, err := parseDate(row.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}

	sc := &domain.Schedule{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		StartDate: start,
		EndDate:   end,
		CreatedAt: parseTimestamp(row.CreatedAt),
		UpdatedAt: parseTimestamp(row.UpdatedAt),
	}
	if row.Category != nil {
		sc.Category = *row.Category
	}
	if row.Description != nil {
		sc.Description = *row.Description
	}
	return sc, nil
}

// parseDate accepts DATE columns and timestamp columns holding a date
func parseDate(s string) (time.Time, error) {
	if len(s) >= len(domain.DateKeyLayout) {
		return domain.ParseDateKey(s[:len(domain.DateKeyLayout)])
	}
	return domain.ParseDateKey(s)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
