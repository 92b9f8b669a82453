package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cimillas/seat-inventory/internal/domain"
)

// AnalyticsStore is an in-process projection store.
type AnalyticsStore struct {
	mu      sync.RWMutex
	records map[string]domain.AnalyticsRecord
}

func NewAnalyticsStore() *AnalyticsStore {
	return &AnalyticsStore{records: make(map[string]domain.AnalyticsRecord)}
}

func (s *AnalyticsStore) GetAnalytics(ctx context.Context, eventID string) (domain.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnalyticsRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[eventID]
	if !ok {
		return domain.AnalyticsRecord{}, domain.ErrAnalyticsNotFound
	}
	return rec, nil
}

func (s *AnalyticsStore) UpsertMetadata(ctx context.Context, fresh domain.AnalyticsRecord) (domain.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnalyticsRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[fresh.EventID]
	if !ok {
		s.records[fresh.EventID] = fresh
		return fresh, nil
	}
	updated := existing.WithMetadata(domain.EventMetadata{
		EventID:   fresh.EventID,
		Name:      fresh.EventName,
		Capacity:  fresh.TotalCapacity,
		EventDate: fresh.EventDate,
		Location:  fresh.Location,
		Category:  fresh.Category,
	})
	s.records[fresh.EventID] = updated
	return updated, nil
}

func (s *AnalyticsStore) SaveMetrics(ctx context.Context, rec domain.AnalyticsRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[rec.EventID]
	if !ok {
		return domain.ErrAnalyticsNotFound
	}
	s.records[rec.EventID] = withMetricsFrom(existing, rec)
	return nil
}

func (s *AnalyticsStore) SaveMetricsIfNewer(ctx context.Context, rec domain.AnalyticsRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.records[rec.EventID]
	if !ok {
		return false, domain.ErrAnalyticsNotFound
	}
	if existing.SourceVersion >= rec.SourceVersion {
		return false, nil
	}
	updated := withMetricsFrom(existing, rec)
	updated.SourceVersion = rec.SourceVersion
	s.records[rec.EventID] = updated
	return true, nil
}

func (s *AnalyticsStore) ListAnalytics(ctx context.Context) ([]domain.AnalyticsRecord, error) {
	return s.filter(ctx, func(domain.AnalyticsRecord) bool { return true }, byEventID)
}

func (s *AnalyticsStore) FindByNameContaining(ctx context.Context, name string) ([]domain.AnalyticsRecord, error) {
	needle := strings.ToLower(name)
	return s.filter(ctx, func(r domain.AnalyticsRecord) bool {
		return strings.Contains(strings.ToLower(r.EventName), needle)
	}, byEventID)
}

func (s *AnalyticsStore) FindByLocationContaining(ctx context.Context, location string) ([]domain.AnalyticsRecord, error) {
	needle := strings.ToLower(location)
	return s.filter(ctx, func(r domain.AnalyticsRecord) bool {
		return strings.Contains(strings.ToLower(r.Location), needle)
	}, byEventID)
}

func (s *AnalyticsStore) FindByCategoryOrderByOccupancyDesc(ctx context.Context, category string) ([]domain.AnalyticsRecord, error) {
	return s.filter(ctx, func(r domain.AnalyticsRecord) bool {
		return r.Category == category
	}, byOccupancyDesc)
}

func (s *AnalyticsStore) FindByOccupancyRateGreaterThan(ctx context.Context, rate float64) ([]domain.AnalyticsRecord, error) {
	return s.filter(ctx, func(r domain.AnalyticsRecord) bool {
		return r.OccupancyRate > rate
	}, byOccupancyDesc)
}

func (s *AnalyticsStore) FindByEventDateBetween(ctx context.Context, start, end time.Time) ([]domain.AnalyticsRecord, error) {
	return s.filter(ctx, func(r domain.AnalyticsRecord) bool {
		return !r.EventDate.Before(start) && !r.EventDate.After(end)
	}, func(a, b domain.AnalyticsRecord) bool { return a.EventDate.Before(b.EventDate) })
}

func (s *AnalyticsStore) filter(ctx context.Context, keep func(domain.AnalyticsRecord) bool, less func(a, b domain.AnalyticsRecord) bool) ([]domain.AnalyticsRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.AnalyticsRecord, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, nil
}

func byEventID(a, b domain.AnalyticsRecord) bool { return a.EventID < b.EventID }

func byOccupancyDesc(a, b domain.AnalyticsRecord) bool {
	if a.OccupancyRate == b.OccupancyRate {
		return a.EventID < b.EventID
	}
	return a.OccupancyRate > b.OccupancyRate
}

func withMetricsFrom(dst, src domain.AnalyticsRecord) domain.AnalyticsRecord {
	dst.BookedSeats = src.BookedSeats
	dst.OccupancyRate = src.OccupancyRate
	dst.TotalRevenue = src.TotalRevenue
	dst.TotalReservations = src.TotalReservations
	dst.LastUpdated = src.LastUpdated
	return dst
}
