// Package memory holds in-process stores used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cimillas/seat-inventory/internal/domain"
)

// InventoryStore keeps events and their inventory in a map guarded by a
// mutex. CompareAndSwap follows the same version discipline as the
// persistent stores.
type InventoryStore struct {
	mu        sync.RWMutex
	events    map[string]domain.Event
	inventory map[string]domain.InventoryRecord
}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{
		events:    make(map[string]domain.Event),
		inventory: make(map[string]domain.InventoryRecord),
	}
}

func (s *InventoryStore) CreateEvent(ctx context.Context, event domain.Event, inv domain.InventoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; ok {
		return domain.ErrEventAlreadyExists
	}
	s.events[event.ID] = event
	s.inventory[event.ID] = inv
	return nil
}

// UpdateEvent replaces the stored descriptive fields of an existing event.
// The inventory record is left alone.
func (s *InventoryStore) UpdateEvent(ctx context.Context, event domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.events[event.ID]
	if !ok {
		return domain.ErrEventNotFound
	}
	s.events[event.ID] = current.WithDetails(event.Name, event.Description, event.Location, event.Category, event.StartsAt)
	return nil
}

// DeleteEvent removes the event and its inventory unless seats are booked.
func (s *InventoryStore) DeleteEvent(ctx context.Context, eventID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[eventID]; !ok {
		return domain.ErrEventNotFound
	}
	if s.inventory[eventID].BookedSeats > 0 {
		return domain.ErrEventHasBookings
	}
	delete(s.events, eventID)
	delete(s.inventory, eventID)
	return nil
}

func (s *InventoryStore) GetEvent(ctx context.Context, eventID string) (domain.EventWithInventory, error) {
	if err := ctx.Err(); err != nil {
		return domain.EventWithInventory{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	if !ok {
		return domain.EventWithInventory{}, domain.ErrEventNotFound
	}
	return domain.EventWithInventory{Event: ev, Inventory: s.inventory[eventID]}, nil
}

func (s *InventoryStore) ListEvents(ctx context.Context) ([]domain.EventWithInventory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EventWithInventory, 0, len(s.events))
	for id, ev := range s.events {
		out = append(out, domain.EventWithInventory{Event: ev, Inventory: s.inventory[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})
	return out, nil
}

func (s *InventoryStore) GetInventory(ctx context.Context, eventID string) (domain.InventoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.InventoryRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.inventory[eventID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrEventNotFound
	}
	return rec, nil
}

func (s *InventoryStore) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.InventoryRecord, 0, len(s.inventory))
	for _, rec := range s.inventory {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (s *InventoryStore) CompareAndSwap(ctx context.Context, expectedVersion int64, next domain.InventoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.inventory[next.EventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	s.inventory[next.EventID] = next
	return nil
}

// SetInventory overwrites a record without a version check. Intended for
// seeding test fixtures.
func (s *InventoryStore) SetInventory(rec domain.InventoryRecord) {
	s.mu.Lock()
	s.inventory[rec.EventID] = rec
	s.mu.Unlock()
}
