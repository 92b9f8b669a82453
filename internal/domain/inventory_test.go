package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSafetyMargin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		capacity int
		want     int
	}{
		{capacity: 0, want: 0},
		{capacity: 1, want: 1},
		{capacity: 10, want: 1},
		{capacity: 20, want: 1},
		{capacity: 21, want: 2},
		{capacity: 60, want: 3},
		{capacity: 100, want: 5},
		{capacity: 101, want: 6},
	}
	for _, tt := range tests {
		if got := SafetyMargin(tt.capacity); got != tt.want {
			t.Fatalf("SafetyMargin(%d): expected %d, got %d", tt.capacity, tt.want, got)
		}
	}
}

func TestCanReserve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		capacity  int
		booked    int
		requested int
		want      bool
	}{
		{name: "zero seats fails closed", capacity: 100, requested: 0, want: false},
		{name: "negative seats fails closed", capacity: 100, requested: -3, want: false},
		{name: "up to the margin", capacity: 100, requested: 95, want: true},
		{name: "into the margin", capacity: 100, requested: 96, want: false},
		{name: "after partial booking", capacity: 100, booked: 94, requested: 1, want: true},
		{name: "after partial booking overflow", capacity: 100, booked: 94, requested: 2, want: false},
		{name: "small event margin rounds up", capacity: 10, booked: 6, requested: 4, want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := InventoryRecord{TotalCapacity: tt.capacity, BookedSeats: tt.booked}
			if got := CanReserve(rec, tt.requested); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestApplyReservation(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := InventoryRecord{EventID: "e1", TotalCapacity: 100, BookedSeats: 10, Reservations: 2, Version: 7}

	next := ApplyReservation(rec, 94-10, now)
	if next.BookedSeats != 94 {
		t.Fatalf("expected 94 booked, got %d", next.BookedSeats)
	}
	if next.Version != 8 {
		t.Fatalf("expected version 8, got %d", next.Version)
	}
	if next.Reservations != 3 {
		t.Fatalf("expected 3 reservations, got %d", next.Reservations)
	}
	if !next.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at %v, got %v", now, next.UpdatedAt)
	}
	if rec.BookedSeats != 10 || rec.Version != 7 {
		t.Fatalf("input record mutated: %+v", rec)
	}
}

func TestApplyRelease_ClampsAtZero(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := InventoryRecord{EventID: "e1", TotalCapacity: 50, BookedSeats: 4, Reservations: 1, Version: 3}

	if !OverReleased(rec, 10) {
		t.Fatalf("expected over-release to be detected")
	}
	next := ApplyRelease(rec, 10, now)
	if next.BookedSeats != 0 {
		t.Fatalf("expected clamp to 0, got %d", next.BookedSeats)
	}
	if next.Version != 4 {
		t.Fatalf("expected version 4, got %d", next.Version)
	}
	if next.Reservations != 1 {
		t.Fatalf("release must not touch reservations, got %d", next.Reservations)
	}
}

func TestScenario_BookThenOverflow(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := NewInventoryRecord("e1", 100, decimal.NewFromInt(20), now)

	if !CanReserve(rec, 94) {
		t.Fatalf("expected 94 seats to be bookable")
	}
	rec = ApplyReservation(rec, 94, now)
	if CanReserve(rec, 2) {
		t.Fatalf("expected 2 more seats to be rejected, available=%d", rec.AvailableSeats())
	}
}

func TestDelta_Metrics(t *testing.T) {
	t.Parallel()

	prev := InventoryRecord{EventID: "e1", TotalCapacity: 50, BookedSeats: 40, Reservations: 4, TicketPrice: decimal.RequireFromString("12.50"), Version: 4}
	next := ApplyReservation(prev, 2, time.Now())

	d := NewDelta(prev, next)
	if d.SeatsDelta != 2 || d.BookedSeats != 42 || d.Version != 5 {
		t.Fatalf("unexpected delta: %+v", d)
	}
	m := d.Metrics()
	if !m.Revenue.Equal(decimal.RequireFromString("525")) {
		t.Fatalf("expected revenue 525, got %s", m.Revenue)
	}
	if m.Reservations != 5 {
		t.Fatalf("expected 5 reservations, got %d", m.Reservations)
	}
}
