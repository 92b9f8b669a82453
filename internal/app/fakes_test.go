package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/seat-inventory/internal/domain"
)

// fakeInventory is an in-memory InventoryStore, EventRepository and
// InventorySource with the same CAS rules as the real stores.
type fakeInventory struct {
	mu        sync.Mutex
	events    map[string]domain.Event
	records   map[string]domain.InventoryRecord
	getCalls  int
	swapCalls int
	// alwaysConflict makes every swap lose.
	alwaysConflict bool
	listErr        error
}

func newFakeInventory(records ...domain.InventoryRecord) *fakeInventory {
	f := &fakeInventory{
		events:  make(map[string]domain.Event),
		records: make(map[string]domain.InventoryRecord),
	}
	for _, r := range records {
		f.records[r.EventID] = r
		f.events[r.EventID] = domain.Event{ID: r.EventID, Name: "Event " + r.EventID, TotalCapacity: r.TotalCapacity, TicketPrice: r.TicketPrice}
	}
	return f
}

func (f *fakeInventory) GetInventory(_ context.Context, eventID string) (domain.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	r, ok := f.records[eventID]
	if !ok {
		return domain.InventoryRecord{}, domain.ErrEventNotFound
	}
	return r, nil
}

func (f *fakeInventory) CompareAndSwap(_ context.Context, expected int64, next domain.InventoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swapCalls++
	if f.alwaysConflict {
		return domain.ErrVersionConflict
	}
	cur, ok := f.records[next.EventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if cur.Version != expected {
		return domain.ErrVersionConflict
	}
	f.records[next.EventID] = next
	return nil
}

func (f *fakeInventory) CreateEvent(_ context.Context, event domain.Event, inv domain.InventoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[event.ID]; ok {
		return domain.ErrEventAlreadyExists
	}
	f.events[event.ID] = event
	f.records[event.ID] = inv
	return nil
}

func (f *fakeInventory) UpdateEvent(_ context.Context, event domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.events[event.ID]
	if !ok {
		return domain.ErrEventNotFound
	}
	f.events[event.ID] = cur.WithDetails(event.Name, event.Description, event.Location, event.Category, event.StartsAt)
	return nil
}

func (f *fakeInventory) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[eventID]; !ok {
		return domain.ErrEventNotFound
	}
	if f.records[eventID].BookedSeats > 0 {
		return domain.ErrEventHasBookings
	}
	delete(f.events, eventID)
	delete(f.records, eventID)
	return nil
}

func (f *fakeInventory) GetEvent(_ context.Context, eventID string) (domain.EventWithInventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[eventID]
	if !ok {
		return domain.EventWithInventory{}, domain.ErrEventNotFound
	}
	return domain.EventWithInventory{Event: ev, Inventory: f.records[eventID]}, nil
}

func (f *fakeInventory) ListEvents(context.Context) ([]domain.EventWithInventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.EventWithInventory, 0, len(f.events))
	for id, ev := range f.events {
		out = append(out, domain.EventWithInventory{Event: ev, Inventory: f.records[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeInventory) ListInventory(context.Context) ([]domain.InventoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.InventoryRecord, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (f *fakeInventory) set(r domain.InventoryRecord) {
	f.mu.Lock()
	f.records[r.EventID] = r
	f.mu.Unlock()
}

func (f *fakeInventory) get(eventID string) domain.InventoryRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[eventID]
}

type recordingPublisher struct {
	mu     sync.Mutex
	deltas []domain.Delta
}

func (p *recordingPublisher) Publish(d domain.Delta) {
	p.mu.Lock()
	p.deltas = append(p.deltas, d)
	p.mu.Unlock()
}

func (p *recordingPublisher) all() []domain.Delta {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Delta(nil), p.deltas...)
}

var errStoreDown = errors.New("analytics store unavailable")

// fakeAnalyticsStore is an in-memory AnalyticsStore that can be switched
// into a failing state to simulate an outage of the projection store.
type fakeAnalyticsStore struct {
	mu      sync.Mutex
	records map[string]domain.AnalyticsRecord
	down    bool
	writes  int
}

func newFakeAnalyticsStore() *fakeAnalyticsStore {
	return &fakeAnalyticsStore{records: make(map[string]domain.AnalyticsRecord)}
}

func (f *fakeAnalyticsStore) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeAnalyticsStore) GetAnalytics(_ context.Context, eventID string) (domain.AnalyticsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return domain.AnalyticsRecord{}, errStoreDown
	}
	r, ok := f.records[eventID]
	if !ok {
		return domain.AnalyticsRecord{}, domain.ErrAnalyticsNotFound
	}
	return r, nil
}

func (f *fakeAnalyticsStore) UpsertMetadata(_ context.Context, fresh domain.AnalyticsRecord) (domain.AnalyticsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return domain.AnalyticsRecord{}, errStoreDown
	}
	f.writes++
	existing, ok := f.records[fresh.EventID]
	if !ok {
		f.records[fresh.EventID] = fresh
		return fresh, nil
	}
	existing = existing.WithMetadata(domain.EventMetadata{
		EventID:   fresh.EventID,
		Name:      fresh.EventName,
		Capacity:  fresh.TotalCapacity,
		EventDate: fresh.EventDate,
		Location:  fresh.Location,
		Category:  fresh.Category,
	})
	f.records[fresh.EventID] = existing
	return existing, nil
}

func (f *fakeAnalyticsStore) SaveMetrics(_ context.Context, rec domain.AnalyticsRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errStoreDown
	}
	if _, ok := f.records[rec.EventID]; !ok {
		return domain.ErrAnalyticsNotFound
	}
	f.writes++
	existing := f.records[rec.EventID]
	rec.SourceVersion = existing.SourceVersion
	f.records[rec.EventID] = rec
	return nil
}

func (f *fakeAnalyticsStore) SaveMetricsIfNewer(_ context.Context, rec domain.AnalyticsRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return false, errStoreDown
	}
	existing, ok := f.records[rec.EventID]
	if !ok {
		return false, domain.ErrAnalyticsNotFound
	}
	if existing.SourceVersion >= rec.SourceVersion {
		return false, nil
	}
	f.writes++
	f.records[rec.EventID] = rec
	return true, nil
}

func (f *fakeAnalyticsStore) ListAnalytics(context.Context) ([]domain.AnalyticsRecord, error) {
	return f.filter(func(domain.AnalyticsRecord) bool { return true })
}

func (f *fakeAnalyticsStore) FindByNameContaining(_ context.Context, name string) ([]domain.AnalyticsRecord, error) {
	return f.filter(func(r domain.AnalyticsRecord) bool { return r.EventName == name })
}

func (f *fakeAnalyticsStore) FindByLocationContaining(_ context.Context, location string) ([]domain.AnalyticsRecord, error) {
	return f.filter(func(r domain.AnalyticsRecord) bool { return r.Location == location })
}

func (f *fakeAnalyticsStore) FindByCategoryOrderByOccupancyDesc(_ context.Context, category string) ([]domain.AnalyticsRecord, error) {
	return f.filter(func(r domain.AnalyticsRecord) bool { return r.Category == category })
}

func (f *fakeAnalyticsStore) FindByOccupancyRateGreaterThan(_ context.Context, rate float64) ([]domain.AnalyticsRecord, error) {
	return f.filter(func(r domain.AnalyticsRecord) bool { return r.OccupancyRate > rate })
}

func (f *fakeAnalyticsStore) FindByEventDateBetween(_ context.Context, start, end time.Time) ([]domain.AnalyticsRecord, error) {
	return f.filter(func(r domain.AnalyticsRecord) bool {
		return !r.EventDate.Before(start) && !r.EventDate.After(end)
	})
}

func (f *fakeAnalyticsStore) filter(keep func(domain.AnalyticsRecord) bool) ([]domain.AnalyticsRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errStoreDown
	}
	var out []domain.AnalyticsRecord
	for _, r := range f.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out, nil
}

func (f *fakeAnalyticsStore) record(eventID string) domain.AnalyticsRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[eventID]
}
