package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Delta describes one committed inventory mutation.
type Delta struct {
	EventID      string
	BookedSeats  int
	SeatsDelta   int
	Reservations int
	TicketPrice  decimal.Decimal
	Version      int64
	CommittedAt  time.Time
}

// NewDelta builds the delta for the transition from prev to next.
func NewDelta(prev, next InventoryRecord) Delta {
	return Delta{
		EventID:      next.EventID,
		BookedSeats:  next.BookedSeats,
		SeatsDelta:   next.BookedSeats - prev.BookedSeats,
		Reservations: next.Reservations,
		TicketPrice:  next.TicketPrice,
		Version:      next.Version,
		CommittedAt:  next.UpdatedAt,
	}
}

// DeltaFromRecord describes the full current state of r, as the
// reconciliation sweep sees it.
func DeltaFromRecord(r InventoryRecord) Delta {
	return Delta{
		EventID:      r.EventID,
		BookedSeats:  r.BookedSeats,
		Reservations: r.Reservations,
		TicketPrice:  r.TicketPrice,
		Version:      r.Version,
		CommittedAt:  r.UpdatedAt,
	}
}

// Metrics resolves the delta into the values the analytics projection stores.
func (d Delta) Metrics() Metrics {
	return Metrics{
		BookedSeats:  d.BookedSeats,
		Revenue:      d.TicketPrice.Mul(decimal.NewFromInt(int64(d.BookedSeats))),
		Reservations: d.Reservations,
	}
}
