package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SafetyMarginPercent is the share of capacity that is never sold.
const SafetyMarginPercent = 5

// InventoryRecord is the authoritative seat count for one event. Version is
// the concurrency token and grows by one on every committed mutation.
type InventoryRecord struct {
	EventID       string
	TotalCapacity int
	BookedSeats   int
	Reservations  int
	TicketPrice   decimal.Decimal
	Version       int64
	UpdatedAt     time.Time
}

// NewInventoryRecord returns the initial record for a freshly registered event.
func NewInventoryRecord(eventID string, capacity int, price decimal.Decimal, now time.Time) InventoryRecord {
	return InventoryRecord{
		EventID:       eventID,
		TotalCapacity: capacity,
		TicketPrice:   price,
		UpdatedAt:     now,
	}
}

// SafetyMargin returns ceil(capacity * 5%) using integer arithmetic.
func SafetyMargin(capacity int) int {
	if capacity <= 0 {
		return 0
	}
	return (capacity*SafetyMarginPercent + 99) / 100
}

// AvailableSeats is what may still be sold once the safety margin is held back.
// It can be negative for records created before the margin was enforced.
func (r InventoryRecord) AvailableSeats() int {
	return r.TotalCapacity - r.BookedSeats - SafetyMargin(r.TotalCapacity)
}

// CanReserve fails closed on non-positive requests.
func CanReserve(r InventoryRecord, requested int) bool {
	if requested <= 0 {
		return false
	}
	return r.AvailableSeats() >= requested
}

// ApplyReservation returns the record after booking seats. Callers must check
// CanReserve first; the input is never modified.
func ApplyReservation(r InventoryRecord, seats int, now time.Time) InventoryRecord {
	next := r
	next.BookedSeats += seats
	next.Reservations++
	next.Version++
	next.UpdatedAt = now
	return next
}

// ApplyRelease returns the record after giving seats back. Releasing more than
// is booked clamps to zero instead of failing.
func ApplyRelease(r InventoryRecord, seats int, now time.Time) InventoryRecord {
	next := r
	next.BookedSeats = max(0, r.BookedSeats-seats)
	next.Version++
	next.UpdatedAt = now
	return next
}

// OverReleased reports whether releasing seats from r would hit the clamp.
func OverReleased(r InventoryRecord, seats int) bool {
	return seats > r.BookedSeats
}
