package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// AnalyticsRecord is the read-optimized projection of one event. It may lag
// the inventory and is never used for booking decisions.
type AnalyticsRecord struct {
	EventID           string
	EventName         string
	Category          string
	Location          string
	EventDate         time.Time
	TotalCapacity     int
	BookedSeats       int
	OccupancyRate     float64
	TotalRevenue      decimal.Decimal
	TotalReservations int
	// SourceVersion is the inventory version the metrics reflect; 0 when
	// metrics were never propagated from the inventory.
	SourceVersion int64
	LastUpdated   time.Time
}

// EventMetadata is the descriptive part of an analytics record.
type EventMetadata struct {
	EventID   string
	Name      string
	Capacity  int
	EventDate time.Time
	Location  string
	Category  string
}

// Metrics is the triple applied to a projection.
type Metrics struct {
	BookedSeats  int
	Revenue      decimal.Decimal
	Reservations int
}

// NewAnalyticsRecord returns a record with zeroed metrics.
func NewAnalyticsRecord(meta EventMetadata, now time.Time) AnalyticsRecord {
	return AnalyticsRecord{
		EventID:       meta.EventID,
		EventName:     meta.Name,
		Category:      meta.Category,
		Location:      meta.Location,
		EventDate:     meta.EventDate,
		TotalCapacity: meta.Capacity,
		TotalRevenue:  decimal.Zero,
		LastUpdated:   now,
	}
}

// WithMetadata refreshes descriptive fields. Metrics are kept, but the
// occupancy rate follows the new capacity.
func (a AnalyticsRecord) WithMetadata(meta EventMetadata) AnalyticsRecord {
	a.EventName = meta.Name
	a.Category = meta.Category
	a.Location = meta.Location
	a.EventDate = meta.EventDate
	a.TotalCapacity = meta.Capacity
	a.OccupancyRate = OccupancyRate(a.BookedSeats, a.TotalCapacity)
	return a
}

// WithMetrics sets the metric fields and recomputes the occupancy rate.
func (a AnalyticsRecord) WithMetrics(m Metrics, now time.Time) AnalyticsRecord {
	a.BookedSeats = m.BookedSeats
	a.TotalRevenue = m.Revenue
	a.TotalReservations = m.Reservations
	a.OccupancyRate = OccupancyRate(m.BookedSeats, a.TotalCapacity)
	a.LastUpdated = now
	return a
}

// OccupancyRate is booked/capacity as a percentage rounded to two decimals,
// or 0 when capacity is not positive.
func OccupancyRate(booked, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	rate := float64(booked) / float64(capacity) * 100
	return math.Round(rate*100) / 100
}
