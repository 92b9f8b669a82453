package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/seat-inventory/internal/clock"
	"github.com/cimillas/seat-inventory/internal/domain"
)

// AnalyticsStore persists projections. It is a separate failure domain from
// the inventory store.
type AnalyticsStore interface {
	GetAnalytics(ctx context.Context, eventID string) (domain.AnalyticsRecord, error)
	// UpsertMetadata inserts fresh when no record exists, otherwise refreshes
	// only the descriptive columns. It returns the stored record.
	UpsertMetadata(ctx context.Context, fresh domain.AnalyticsRecord) (domain.AnalyticsRecord, error)
	SaveMetrics(ctx context.Context, rec domain.AnalyticsRecord) error
	// SaveMetricsIfNewer writes only when the stored source version is lower
	// than rec.SourceVersion and reports whether it wrote.
	SaveMetricsIfNewer(ctx context.Context, rec domain.AnalyticsRecord) (bool, error)
	ListAnalytics(ctx context.Context) ([]domain.AnalyticsRecord, error)
	FindByNameContaining(ctx context.Context, name string) ([]domain.AnalyticsRecord, error)
	FindByLocationContaining(ctx context.Context, location string) ([]domain.AnalyticsRecord, error)
	FindByCategoryOrderByOccupancyDesc(ctx context.Context, category string) ([]domain.AnalyticsRecord, error)
	FindByOccupancyRateGreaterThan(ctx context.Context, rate float64) ([]domain.AnalyticsRecord, error)
	FindByEventDateBetween(ctx context.Context, start, end time.Time) ([]domain.AnalyticsRecord, error)
}

// AnalyticsService owns the derived analytics projection.
type AnalyticsService struct {
	store  AnalyticsStore
	clock  clock.Clock
	logger *zap.Logger
}

func NewAnalyticsService(store AnalyticsStore, clk clock.Clock, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		store:  store,
		clock:  clk,
		logger: logger,
	}
}

// Upsert creates the projection with zeroed metrics, or refreshes metadata on
// an existing one without touching its metrics.
func (s *AnalyticsService) Upsert(ctx context.Context, meta domain.EventMetadata) (domain.AnalyticsRecord, error) {
	if meta.EventID == "" || meta.Name == "" {
		return domain.AnalyticsRecord{}, domain.ErrMissingField
	}
	if meta.Capacity < 0 {
		return domain.AnalyticsRecord{}, domain.ErrInvalidCapacity
	}

	rec, err := s.store.UpsertMetadata(ctx, domain.NewAnalyticsRecord(meta, s.clock.Now()))
	if err != nil {
		return domain.AnalyticsRecord{}, err
	}
	s.logger.Debug("analytics metadata upserted", zap.String("event_id", meta.EventID))
	return rec, nil
}

// ApplyMetrics overwrites the metric fields of an existing projection. It
// never creates one: metadata has to be upserted first.
func (s *AnalyticsService) ApplyMetrics(ctx context.Context, eventID string, m domain.Metrics) (domain.AnalyticsRecord, error) {
	if eventID == "" {
		return domain.AnalyticsRecord{}, domain.ErrMissingField
	}
	if m.BookedSeats < 0 || m.Reservations < 0 || m.Revenue.IsNegative() {
		return domain.AnalyticsRecord{}, domain.ErrInvalidMetrics
	}

	rec, err := s.store.GetAnalytics(ctx, eventID)
	if err != nil {
		return domain.AnalyticsRecord{}, err
	}
	rec = rec.WithMetrics(m, s.clock.Now())
	if err := s.store.SaveMetrics(ctx, rec); err != nil {
		return domain.AnalyticsRecord{}, err
	}

	s.logger.Info("analytics metrics applied",
		zap.String("event_id", eventID),
		zap.Int("booked_seats", m.BookedSeats),
		zap.String("revenue", m.Revenue.StringFixed(2)),
		zap.Int("reservations", m.Reservations),
		zap.Float64("occupancy_rate", rec.OccupancyRate),
	)
	return rec, nil
}

// ApplyDelta projects an inventory delta. Deltas at or below the version the
// projection already reflects are ignored, so redelivery and a late sweep
// are both harmless. It reports whether the projection changed.
func (s *AnalyticsService) ApplyDelta(ctx context.Context, d domain.Delta) (bool, error) {
	rec, err := s.store.GetAnalytics(ctx, d.EventID)
	if err != nil {
		return false, err
	}
	if rec.SourceVersion >= d.Version {
		return false, nil
	}

	rec = rec.WithMetrics(d.Metrics(), s.clock.Now())
	rec.SourceVersion = d.Version
	applied, err := s.store.SaveMetricsIfNewer(ctx, rec)
	if err != nil {
		return false, err
	}
	if applied {
		s.logger.Debug("analytics projected",
			zap.String("event_id", d.EventID),
			zap.Int64("version", d.Version),
			zap.Int("booked_seats", d.BookedSeats),
			zap.Float64("occupancy_rate", rec.OccupancyRate),
		)
	}
	return applied, nil
}

func (s *AnalyticsService) Get(ctx context.Context, eventID string) (domain.AnalyticsRecord, error) {
	if eventID == "" {
		return domain.AnalyticsRecord{}, domain.ErrMissingField
	}
	return s.store.GetAnalytics(ctx, eventID)
}

func (s *AnalyticsService) List(ctx context.Context) ([]domain.AnalyticsRecord, error) {
	return s.store.ListAnalytics(ctx)
}

func (s *AnalyticsService) SearchByName(ctx context.Context, name string) ([]domain.AnalyticsRecord, error) {
	return s.store.FindByNameContaining(ctx, name)
}

func (s *AnalyticsService) SearchByLocation(ctx context.Context, location string) ([]domain.AnalyticsRecord, error) {
	return s.store.FindByLocationContaining(ctx, location)
}

// ByCategory returns the category's events, highest occupancy first.
func (s *AnalyticsService) ByCategory(ctx context.Context, category string) ([]domain.AnalyticsRecord, error) {
	return s.store.FindByCategoryOrderByOccupancyDesc(ctx, category)
}

// HighOccupancy returns events whose occupancy is strictly above minRate.
func (s *AnalyticsService) HighOccupancy(ctx context.Context, minRate float64) ([]domain.AnalyticsRecord, error) {
	return s.store.FindByOccupancyRateGreaterThan(ctx, minRate)
}

func (s *AnalyticsService) Between(ctx context.Context, start, end time.Time) ([]domain.AnalyticsRecord, error) {
	if end.Before(start) {
		start, end = end, start
	}
	return s.store.FindByEventDateBetween(ctx, start, end)
}
