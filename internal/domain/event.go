package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the descriptive side of a bookable event. Capacity and price are
// fixed at registration; booked seats live on the InventoryRecord.
type Event struct {
	ID            string
	Name          string
	Description   string
	Location      string
	Category      string
	StartsAt      time.Time
	TotalCapacity int
	TicketPrice   decimal.Decimal
	CreatedAt     time.Time
}

// EventWithInventory pairs metadata with the current inventory state.
type EventWithInventory struct {
	Event
	Inventory InventoryRecord
}

// Available reports whether the event is in the future and not sold out.
func (e EventWithInventory) Available(now time.Time) bool {
	return e.StartsAt.After(now) && e.Inventory.TotalCapacity > e.Inventory.BookedSeats
}

// Metadata is what the analytics projection needs to describe the event.
func (e Event) Metadata() EventMetadata {
	return EventMetadata{
		EventID:   e.ID,
		Name:      e.Name,
		Capacity:  e.TotalCapacity,
		EventDate: e.StartsAt,
		Location:  e.Location,
		Category:  e.Category,
	}
}

// WithDetails replaces the descriptive fields. Capacity, price and identity
// are fixed once the event exists.
func (e Event) WithDetails(name, description, location, category string, startsAt time.Time) Event {
	e.Name = name
	e.Description = description
	e.Location = location
	e.Category = category
	e.StartsAt = startsAt
	return e
}
