// Package redisstore keeps the authoritative inventory in Redis hashes. Every
// conditional write runs as a Lua script so the version check and the update
// are atomic on the server.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cimillas/seat-inventory/internal/domain"
)

// createEventScript writes the event hash unless it already exists.
// KEYS[1] = event hash, KEYS[2] = index set
// ARGV[1] = event id, ARGV[2..] = field/value pairs
var createEventScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
    return 0
end
local fields = {}
for i = 2, #ARGV do
    fields[#fields + 1] = ARGV[i]
end
redis.call("HSET", KEYS[1], unpack(fields))
redis.call("SADD", KEYS[2], ARGV[1])
return 1
`)

// casScript updates the mutable inventory fields only when the stored
// version equals the expected one.
// KEYS[1] = event hash
// ARGV[1] = expected version, ARGV[2] = booked, ARGV[3] = reservations,
// ARGV[4] = new version, ARGV[5] = updated_at
// Returns -1 when the event is missing, 0 on version mismatch, 1 on success.
var casScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "version")
if not current then
    return -1
end
if current ~= ARGV[1] then
    return 0
end
redis.call("HSET", KEYS[1],
    "booked_seats", ARGV[2],
    "reservations", ARGV[3],
    "version", ARGV[4],
    "updated_at", ARGV[5])
return 1
`)

// updateEventScript rewrites descriptive fields of an existing event hash.
// KEYS[1] = event hash
// ARGV = field/value pairs
// Returns 0 when the event is missing, 1 on success.
var updateEventScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
    return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV))
return 1
`)

// deleteEventScript drops the event hash and its index entry when no seats
// are booked.
// KEYS[1] = event hash, KEYS[2] = index set
// ARGV[1] = event id
// Returns -1 when the event is missing, 0 when seats are booked, 1 on success.
var deleteEventScript = redis.NewScript(`
local booked = redis.call("HGET", KEYS[1], "booked_seats")
if not booked then
    return -1
end
if tonumber(booked) > 0 then
    return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return 1
`)

// InventoryStore implements the inventory and event repositories on Redis.
type InventoryStore struct {
	client *redis.Client
	prefix string
}

// NewInventoryStore uses prefix to namespace keys; an empty prefix means
// "inventory".
func NewInventoryStore(client *redis.Client, prefix string) *InventoryStore {
	if prefix == "" {
		prefix = "inventory"
	}
	return &InventoryStore{client: client, prefix: prefix}
}

func (s *InventoryStore) eventKey(id string) string { return s.prefix + ":event:" + id }
func (s *InventoryStore) indexKey() string          { return s.prefix + ":events" }

func (s *InventoryStore) CreateEvent(ctx context.Context, event domain.Event, inv domain.InventoryRecord) error {
	args := []any{
		event.ID,
		"name", event.Name,
		"description", event.Description,
		"location", event.Location,
		"category", event.Category,
		"starts_at", formatTime(event.StartsAt),
		"created_at", formatTime(event.CreatedAt),
		"total_capacity", inv.TotalCapacity,
		"booked_seats", inv.BookedSeats,
		"reservations", inv.Reservations,
		"ticket_price", inv.TicketPrice.String(),
		"version", inv.Version,
		"updated_at", formatTime(inv.UpdatedAt),
	}
	created, err := createEventScript.Run(ctx, s.client, []string{s.eventKey(event.ID), s.indexKey()}, args...).Int()
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if created == 0 {
		return domain.ErrEventAlreadyExists
	}
	return nil
}

// UpdateEvent rewrites the descriptive fields. Capacity, price and the
// inventory counters are not part of the write.
func (s *InventoryStore) UpdateEvent(ctx context.Context, event domain.Event) error {
	updated, err := updateEventScript.Run(ctx, s.client, []string{s.eventKey(event.ID)},
		"name", event.Name,
		"description", event.Description,
		"location", event.Location,
		"category", event.Category,
		"starts_at", formatTime(event.StartsAt),
	).Int()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if updated == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (s *InventoryStore) DeleteEvent(ctx context.Context, eventID string) error {
	res, err := deleteEventScript.Run(ctx, s.client, []string{s.eventKey(eventID), s.indexKey()}, eventID).Int()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return domain.ErrEventHasBookings
	default:
		return domain.ErrEventNotFound
	}
}

func (s *InventoryStore) GetEvent(ctx context.Context, eventID string) (domain.EventWithInventory, error) {
	fields, err := s.client.HGetAll(ctx, s.eventKey(eventID)).Result()
	if err != nil {
		return domain.EventWithInventory{}, fmt.Errorf("get event: %w", err)
	}
	if len(fields) == 0 {
		return domain.EventWithInventory{}, domain.ErrEventNotFound
	}
	return decodeEvent(eventID, fields)
}

func (s *InventoryStore) ListEvents(ctx context.Context) ([]domain.EventWithInventory, error) {
	ids, all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]domain.EventWithInventory, 0, len(ids))
	for i, id := range ids {
		if len(all[i]) == 0 {
			continue
		}
		ev, err := decodeEvent(id, all[i])
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartsAt.Equal(events[j].StartsAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].StartsAt.Before(events[j].StartsAt)
	})
	return events, nil
}

func (s *InventoryStore) GetInventory(ctx context.Context, eventID string) (domain.InventoryRecord, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	return ev.Inventory, nil
}

func (s *InventoryStore) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]domain.InventoryRecord, 0, len(events))
	for _, ev := range events {
		records = append(records, ev.Inventory)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EventID < records[j].EventID })
	return records, nil
}

func (s *InventoryStore) CompareAndSwap(ctx context.Context, expectedVersion int64, next domain.InventoryRecord) error {
	res, err := casScript.Run(ctx, s.client, []string{s.eventKey(next.EventID)},
		strconv.FormatInt(expectedVersion, 10),
		next.BookedSeats,
		next.Reservations,
		next.Version,
		formatTime(next.UpdatedAt),
	).Int()
	if err != nil {
		return fmt.Errorf("swap inventory: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return domain.ErrVersionConflict
	default:
		return domain.ErrEventNotFound
	}
}

// Ping reports whether the server is reachable.
func (s *InventoryStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *InventoryStore) loadAll(ctx context.Context) ([]string, []map[string]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("list events: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.eventKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("load events: %w", err)
	}

	all := make([]map[string]string, len(ids))
	for i, cmd := range cmds {
		all[i] = cmd.Val()
	}
	return ids, all, nil
}

func decodeEvent(id string, f map[string]string) (domain.EventWithInventory, error) {
	var (
		ev  domain.EventWithInventory
		err error
	)
	ev.ID = id
	ev.Name = f["name"]
	ev.Description = f["description"]
	ev.Location = f["location"]
	ev.Category = f["category"]
	if ev.StartsAt, err = parseTime(f["starts_at"]); err != nil {
		return ev, fmt.Errorf("decode starts_at: %w", err)
	}
	if ev.CreatedAt, err = parseTime(f["created_at"]); err != nil {
		return ev, fmt.Errorf("decode created_at: %w", err)
	}
	if ev.TicketPrice, err = decimal.NewFromString(f["ticket_price"]); err != nil {
		return ev, fmt.Errorf("decode ticket_price: %w", err)
	}

	inv := &ev.Inventory
	inv.EventID = id
	inv.TicketPrice = ev.TicketPrice
	if inv.TotalCapacity, err = strconv.Atoi(f["total_capacity"]); err != nil {
		return ev, fmt.Errorf("decode total_capacity: %w", err)
	}
	if inv.BookedSeats, err = strconv.Atoi(f["booked_seats"]); err != nil {
		return ev, fmt.Errorf("decode booked_seats: %w", err)
	}
	if inv.Reservations, err = strconv.Atoi(f["reservations"]); err != nil {
		return ev, fmt.Errorf("decode reservations: %w", err)
	}
	if inv.Version, err = strconv.ParseInt(f["version"], 10, 64); err != nil {
		return ev, fmt.Errorf("decode version: %w", err)
	}
	if inv.UpdatedAt, err = parseTime(f["updated_at"]); err != nil {
		return ev, fmt.Errorf("decode updated_at: %w", err)
	}
	ev.TotalCapacity = inv.TotalCapacity
	return ev, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
