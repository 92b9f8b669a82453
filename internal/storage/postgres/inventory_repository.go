package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cimillas/seat-inventory/internal/domain"
)

// InventoryRepository stores events and their authoritative seat counts.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

func (r *InventoryRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// CreateEvent inserts the event and its zeroed inventory row atomically.
func (r *InventoryRepository) CreateEvent(ctx context.Context, event domain.Event, inv domain.InventoryRecord) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		const eventStmt = `
INSERT INTO events (id, name, description, location, category, starts_at, total_capacity, ticket_price, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9)`
		_, err := r.exec(ctx, eventStmt,
			event.ID,
			event.Name,
			event.Description,
			event.Location,
			event.Category,
			event.StartsAt,
			event.TotalCapacity,
			event.TicketPrice.String(),
			event.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrEventAlreadyExists
			}
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("create event: %w", err)
		}

		const inventoryStmt = `
INSERT INTO inventory (event_id, total_capacity, booked_seats, reservations, ticket_price, version, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`
		_, err = r.exec(ctx, inventoryStmt,
			inv.EventID,
			inv.TotalCapacity,
			inv.BookedSeats,
			inv.Reservations,
			inv.TicketPrice.String(),
			inv.Version,
			inv.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create inventory: %w", err)
		}
		return nil
	})
}

// UpdateEvent rewrites the descriptive columns. Capacity and price columns are
// never touched.
func (r *InventoryRepository) UpdateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
UPDATE events
SET name = $2, description = $3, location = $4, category = $5, starts_at = $6
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		event.ID,
		event.Name,
		event.Description,
		event.Location,
		event.Category,
		event.StartsAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

// DeleteEvent removes an event with no booked seats. The inventory row is
// locked first so a concurrent booking either lands before the check or
// finds the row gone.
func (r *InventoryRepository) DeleteEvent(ctx context.Context, eventID string) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		var booked int
		err := r.queryRow(ctx, `SELECT booked_seats FROM inventory WHERE event_id = $1 FOR UPDATE`, eventID).Scan(&booked)
		if err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrEventNotFound
			}
			return fmt.Errorf("lock inventory: %w", err)
		}
		if booked > 0 {
			return domain.ErrEventHasBookings
		}
		// inventory goes with the event through ON DELETE CASCADE.
		if _, err := r.exec(ctx, `DELETE FROM events WHERE id = $1`, eventID); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

const eventColumns = `
e.id, e.name, e.description, e.location, e.category, e.starts_at, e.total_capacity, e.ticket_price::text, e.created_at,
i.total_capacity, i.booked_seats, i.reservations, i.ticket_price::text, i.version, i.updated_at`

func (r *InventoryRepository) GetEvent(ctx context.Context, eventID string) (domain.EventWithInventory, error) {
	query := `SELECT ` + eventColumns + `
FROM events e
JOIN inventory i ON i.event_id = e.id
WHERE e.id = $1`

	ev, err := scanEvent(r.queryRow(ctx, query, eventID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.EventWithInventory{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EventWithInventory{}, domain.ErrEventNotFound
		}
		return domain.EventWithInventory{}, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

func (r *InventoryRepository) ListEvents(ctx context.Context) ([]domain.EventWithInventory, error) {
	query := `SELECT ` + eventColumns + `
FROM events e
JOIN inventory i ON i.event_id = e.id
ORDER BY e.starts_at ASC, e.id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.EventWithInventory
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate events: %w", rows.Err())
	}
	return events, nil
}

const inventoryColumns = `event_id, total_capacity, booked_seats, reservations, ticket_price::text, version, updated_at`

func (r *InventoryRepository) GetInventory(ctx context.Context, eventID string) (domain.InventoryRecord, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory WHERE event_id = $1`

	rec, err := scanInventory(r.queryRow(ctx, query, eventID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.InventoryRecord{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrEventNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("get inventory: %w", err)
	}
	return rec, nil
}

func (r *InventoryRepository) ListInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory ORDER BY event_id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var records []domain.InventoryRecord
	for rows.Next() {
		rec, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate inventory: %w", rows.Err())
	}
	return records, nil
}

// CompareAndSwap writes next only while the row is still at expectedVersion.
// Zero affected rows means either a concurrent writer won or the event does
// not exist; the two are told apart with a follow-up read.
func (r *InventoryRepository) CompareAndSwap(ctx context.Context, expectedVersion int64, next domain.InventoryRecord) error {
	const stmt = `
UPDATE inventory
SET booked_seats = $3, reservations = $4, version = $5, updated_at = $6
WHERE event_id = $1 AND version = $2`

	tag, err := r.exec(ctx, stmt,
		next.EventID,
		expectedVersion,
		next.BookedSeats,
		next.Reservations,
		next.Version,
		next.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isCheckViolation(err) {
			return domain.ErrInsufficientCapacity
		}
		return fmt.Errorf("update inventory: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.GetInventory(ctx, next.EventID); err != nil {
		return err
	}
	return domain.ErrVersionConflict
}

func scanEvent(row pgx.Row) (domain.EventWithInventory, error) {
	var (
		ev                     domain.EventWithInventory
		eventPrice, stockPrice string
		startsAt, createdAt    time.Time
	)
	err := row.Scan(
		&ev.ID, &ev.Name, &ev.Description, &ev.Location, &ev.Category, &startsAt, &ev.TotalCapacity, &eventPrice, &createdAt,
		&ev.Inventory.TotalCapacity, &ev.Inventory.BookedSeats, &ev.Inventory.Reservations, &stockPrice, &ev.Inventory.Version, &ev.Inventory.UpdatedAt,
	)
	if err != nil {
		return domain.EventWithInventory{}, err
	}
	ev.StartsAt = startsAt.UTC()
	ev.CreatedAt = createdAt.UTC()
	ev.Inventory.EventID = ev.ID
	ev.Inventory.UpdatedAt = ev.Inventory.UpdatedAt.UTC()
	if ev.TicketPrice, err = decimal.NewFromString(eventPrice); err != nil {
		return domain.EventWithInventory{}, fmt.Errorf("parse ticket price: %w", err)
	}
	if ev.Inventory.TicketPrice, err = decimal.NewFromString(stockPrice); err != nil {
		return domain.EventWithInventory{}, fmt.Errorf("parse inventory price: %w", err)
	}
	return ev, nil
}

func scanInventory(row pgx.Row) (domain.InventoryRecord, error) {
	var (
		rec   domain.InventoryRecord
		price string
	)
	if err := row.Scan(&rec.EventID, &rec.TotalCapacity, &rec.BookedSeats, &rec.Reservations, &price, &rec.Version, &rec.UpdatedAt); err != nil {
		return domain.InventoryRecord{}, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("parse inventory price: %w", err)
	}
	rec.TicketPrice = p
	return rec, nil
}

func (r *InventoryRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *InventoryRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
