// Package sqlite provides the SQLite-backed analytics projection store. It
// lives in its own database file so an outage there never touches bookings.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/cimillas/seat-inventory/internal/domain"
)

//go:embed schema.sql
var schema string

// Store persists analytics projections in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and creates the schema when missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// New wraps an already-open handle whose schema is managed elsewhere.
func New(sqlDB *sql.DB) *Store {
	return &Store{sqlDB: sqlDB}
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const selectColumns = `SELECT event_id, event_name, category, location, event_date, total_capacity,
       booked_seats, occupancy_rate, total_revenue, total_reservations, source_version, last_updated
  FROM event_analytics`

func (s *Store) GetAnalytics(ctx context.Context, eventID string) (domain.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnalyticsRecord{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, selectColumns+` WHERE event_id = ?`, eventID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AnalyticsRecord{}, domain.ErrAnalyticsNotFound
		}
		return domain.AnalyticsRecord{}, fmt.Errorf("get analytics: %w", err)
	}
	return rec, nil
}

// UpsertMetadata inserts fresh, or on conflict refreshes the descriptive
// columns. Metrics are kept; occupancy is recomputed against the new capacity.
func (s *Store) UpsertMetadata(ctx context.Context, fresh domain.AnalyticsRecord) (domain.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnalyticsRecord{}, err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO event_analytics (
		   event_id, event_name, category, location, event_date, total_capacity,
		   booked_seats, occupancy_rate, total_revenue, total_reservations, source_version, last_updated
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(event_id) DO UPDATE SET
		   event_name = excluded.event_name,
		   category = excluded.category,
		   location = excluded.location,
		   event_date = excluded.event_date,
		   total_capacity = excluded.total_capacity,
		   occupancy_rate = CASE
		     WHEN excluded.total_capacity > 0
		       THEN ROUND(CAST(event_analytics.booked_seats AS REAL) * 100 / excluded.total_capacity, 2)
		     ELSE 0
		   END`,
		fresh.EventID,
		fresh.EventName,
		fresh.Category,
		fresh.Location,
		toMillis(fresh.EventDate),
		fresh.TotalCapacity,
		fresh.BookedSeats,
		fresh.OccupancyRate,
		fresh.TotalRevenue.String(),
		fresh.TotalReservations,
		fresh.SourceVersion,
		toMillis(fresh.LastUpdated),
	)
	if err != nil {
		return domain.AnalyticsRecord{}, fmt.Errorf("upsert analytics metadata: %w", err)
	}
	return s.GetAnalytics(ctx, fresh.EventID)
}

func (s *Store) SaveMetrics(ctx context.Context, rec domain.AnalyticsRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE event_analytics
		    SET booked_seats = ?, occupancy_rate = ?, total_revenue = ?, total_reservations = ?, last_updated = ?
		  WHERE event_id = ?`,
		rec.BookedSeats,
		rec.OccupancyRate,
		rec.TotalRevenue.String(),
		rec.TotalReservations,
		toMillis(rec.LastUpdated),
		rec.EventID,
	)
	if err != nil {
		return fmt.Errorf("save analytics metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save analytics metrics: %w", err)
	}
	if n == 0 {
		return domain.ErrAnalyticsNotFound
	}
	return nil
}

func (s *Store) SaveMetricsIfNewer(ctx context.Context, rec domain.AnalyticsRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE event_analytics
		    SET booked_seats = ?, occupancy_rate = ?, total_revenue = ?, total_reservations = ?,
		        source_version = ?, last_updated = ?
		  WHERE event_id = ? AND source_version < ?`,
		rec.BookedSeats,
		rec.OccupancyRate,
		rec.TotalRevenue.String(),
		rec.TotalReservations,
		rec.SourceVersion,
		toMillis(rec.LastUpdated),
		rec.EventID,
		rec.SourceVersion,
	)
	if err != nil {
		return false, fmt.Errorf("project analytics metrics: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("project analytics metrics: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_analytics WHERE event_id = ?)`, rec.EventID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check analytics: %w", err)
	}
	if !exists {
		return false, domain.ErrAnalyticsNotFound
	}
	return false, nil
}

func (s *Store) ListAnalytics(ctx context.Context) ([]domain.AnalyticsRecord, error) {
	return s.query(ctx, selectColumns+` ORDER BY event_id`)
}

func (s *Store) FindByNameContaining(ctx context.Context, name string) ([]domain.AnalyticsRecord, error) {
	return s.query(ctx, selectColumns+` WHERE event_name LIKE ? ESCAPE '\' ORDER BY event_id`, containsPattern(name))
}

func (s *Store) FindByLocationContaining(ctx context.Context, location string) ([]domain.AnalyticsRecord, error) {
	return s.query(ctx, selectColumns+` WHERE location LIKE ? ESCAPE '\' ORDER BY event_id`, containsPattern(location))
}

func (s *Store) FindByCategoryOrderByOccupancyDesc(ctx context.Context, category string) ([]domain.AnalyticsRecord, error) {
	return s.query(ctx, selectColumns+` WHERE category = ? ORDER BY occupancy_rate DESC, event_id`, category)
}

func (s *Store) FindByOccupancyRateGreaterThan(ctx context.Context, rate float64) ([]domain.AnalyticsRecord, error) {
	return s.query(ctx, selectColumns+` WHERE occupancy_rate > ? ORDER BY occupancy_rate DESC, event_id`, rate)
}

func (s *Store) FindByEventDateBetween(ctx context.Context, start, end time.Time) ([]domain.AnalyticsRecord, error) {
	return s.query(ctx, selectColumns+` WHERE event_date BETWEEN ? AND ? ORDER BY event_date, event_id`,
		toMillis(start), toMillis(end))
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]domain.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analytics: %w", err)
	}
	defer rows.Close()

	records := []domain.AnalyticsRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analytics: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (domain.AnalyticsRecord, error) {
	var (
		rec                    domain.AnalyticsRecord
		eventDate, lastUpdated int64
		revenue                string
	)
	if err := row.Scan(
		&rec.EventID,
		&rec.EventName,
		&rec.Category,
		&rec.Location,
		&eventDate,
		&rec.TotalCapacity,
		&rec.BookedSeats,
		&rec.OccupancyRate,
		&revenue,
		&rec.TotalReservations,
		&rec.SourceVersion,
		&lastUpdated,
	); err != nil {
		return domain.AnalyticsRecord{}, err
	}
	total, err := decimal.NewFromString(revenue)
	if err != nil {
		return domain.AnalyticsRecord{}, fmt.Errorf("parse revenue: %w", err)
	}
	rec.TotalRevenue = total
	rec.EventDate = fromMillis(eventDate)
	rec.LastUpdated = fromMillis(lastUpdated)
	return rec, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
