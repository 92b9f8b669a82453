package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/seat-inventory/internal/domain"
)

func TestInventoryStore_CompareAndSwap(t *testing.T) {
	t.Parallel()

	store := NewInventoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	event := domain.Event{ID: "evt-1", Name: "Show", TotalCapacity: 100, TicketPrice: decimal.NewFromInt(20), StartsAt: now}
	require.NoError(t, store.CreateEvent(ctx, event, domain.NewInventoryRecord("evt-1", 100, event.TicketPrice, now)))
	assert.ErrorIs(t, store.CreateEvent(ctx, event, domain.InventoryRecord{EventID: "evt-1"}), domain.ErrEventAlreadyExists)

	current, err := store.GetInventory(ctx, "evt-1")
	require.NoError(t, err)
	next := domain.ApplyReservation(current, 5, now)

	require.NoError(t, store.CompareAndSwap(ctx, 0, next))
	assert.ErrorIs(t, store.CompareAndSwap(ctx, 0, next), domain.ErrVersionConflict)
	assert.ErrorIs(t, store.CompareAndSwap(ctx, 0, domain.InventoryRecord{EventID: "nope"}), domain.ErrEventNotFound)

	got, err := store.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Inventory.BookedSeats)
	assert.Equal(t, int64(1), got.Inventory.Version)

	_, err = store.GetEvent(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
}

func TestAnalyticsStore_Queries(t *testing.T) {
	t.Parallel()

	store := NewAnalyticsStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, meta := range []domain.EventMetadata{
		{EventID: "a", Name: "Rock Fest", Capacity: 100, Category: "music", Location: "Berlin"},
		{EventID: "b", Name: "Jazz", Capacity: 100, Category: "music", Location: "Paris"},
		{EventID: "c", Name: "Summit", Capacity: 100, Category: "tech", Location: "berlin"},
	} {
		meta.EventDate = now.Add(time.Duration(i) * 24 * time.Hour)
		_, err := store.UpsertMetadata(ctx, domain.NewAnalyticsRecord(meta, now))
		require.NoError(t, err)
	}

	rec, err := store.GetAnalytics(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.SaveMetrics(ctx, rec.WithMetrics(domain.Metrics{BookedSeats: 84}, now)))
	rec, err = store.GetAnalytics(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, store.SaveMetrics(ctx, rec.WithMetrics(domain.Metrics{BookedSeats: 90}, now)))

	music, err := store.FindByCategoryOrderByOccupancyDesc(ctx, "music")
	require.NoError(t, err)
	require.Len(t, music, 2)
	assert.Equal(t, "b", music[0].EventID)

	high, err := store.FindByOccupancyRateGreaterThan(ctx, 84)
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "b", high[0].EventID)

	berlin, err := store.FindByLocationContaining(ctx, "BERLIN")
	require.NoError(t, err)
	assert.Len(t, berlin, 2)

	between, err := store.FindByEventDateBetween(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, between, 2)

	stale := rec.WithMetrics(domain.Metrics{BookedSeats: 1}, now)
	applied, err := store.SaveMetricsIfNewer(ctx, stale)
	require.NoError(t, err)
	assert.False(t, applied, "equal source version must not overwrite")

	assert.ErrorIs(t, store.SaveMetrics(ctx, domain.AnalyticsRecord{EventID: "zz"}), domain.ErrAnalyticsNotFound)
}

func TestAnalyticsStore_UpsertMetadataRecomputesOccupancy(t *testing.T) {
	t.Parallel()

	store := NewAnalyticsStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	meta := domain.EventMetadata{EventID: "a", Name: "Jazz", Capacity: 50, Category: "music", Location: "Lyon"}
	_, err := store.UpsertMetadata(ctx, domain.NewAnalyticsRecord(meta, now))
	require.NoError(t, err)

	rec, err := store.GetAnalytics(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.SaveMetrics(ctx, rec.WithMetrics(domain.Metrics{BookedSeats: 42}, now)))

	meta.Capacity = 100
	got, err := store.UpsertMetadata(ctx, domain.NewAnalyticsRecord(meta, now))
	require.NoError(t, err)
	assert.Equal(t, 42, got.BookedSeats)
	assert.Equal(t, 42.0, got.OccupancyRate)

	stored, err := store.GetAnalytics(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 42.0, stored.OccupancyRate)
}

func TestInventoryStore_UpdateAndDeleteEvent(t *testing.T) {
	t.Parallel()

	store := NewInventoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	event := domain.Event{ID: "evt-1", Name: "Show", Location: "Hall A", TotalCapacity: 100, TicketPrice: decimal.NewFromInt(20), StartsAt: now}
	require.NoError(t, store.CreateEvent(ctx, event, domain.NewInventoryRecord("evt-1", 100, event.TicketPrice, now)))

	update := event.WithDetails("Show (matinee)", "", "Hall B", "theatre", now.Add(time.Hour))
	update.TotalCapacity = 1
	require.NoError(t, store.UpdateEvent(ctx, update))
	assert.ErrorIs(t, store.UpdateEvent(ctx, domain.Event{ID: "nope"}), domain.ErrEventNotFound)

	got, err := store.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Show (matinee)", got.Name)
	assert.Equal(t, "Hall B", got.Location)
	assert.Equal(t, 100, got.TotalCapacity)

	current, err := store.GetInventory(ctx, "evt-1")
	require.NoError(t, err)
	require.NoError(t, store.CompareAndSwap(ctx, current.Version, domain.ApplyReservation(current, 3, now)))
	assert.ErrorIs(t, store.DeleteEvent(ctx, "evt-1"), domain.ErrEventHasBookings)

	current, err = store.GetInventory(ctx, "evt-1")
	require.NoError(t, err)
	require.NoError(t, store.CompareAndSwap(ctx, current.Version, domain.ApplyRelease(current, 3, now)))
	require.NoError(t, store.DeleteEvent(ctx, "evt-1"))
	assert.ErrorIs(t, store.DeleteEvent(ctx, "evt-1"), domain.ErrEventNotFound)

	_, err = store.GetInventory(ctx, "evt-1")
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
	inventory, err := store.ListInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, inventory)
}
