package app

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cimillas/seat-inventory/internal/clock"
	"github.com/cimillas/seat-inventory/internal/domain"
)

type EventRepository interface {
	CreateEvent(ctx context.Context, event domain.Event, inventory domain.InventoryRecord) error
	GetEvent(ctx context.Context, eventID string) (domain.EventWithInventory, error)
	ListEvents(ctx context.Context) ([]domain.EventWithInventory, error)
	UpdateEvent(ctx context.Context, event domain.Event) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// MetadataAnnouncer forwards event metadata to the analytics projection.
type MetadataAnnouncer interface {
	Announce(ctx context.Context, meta domain.EventMetadata) error
}

type EventService struct {
	repo      EventRepository
	announcer MetadataAnnouncer
	clock     clock.Clock
	logger    *zap.Logger
}

func NewEventService(repo EventRepository, announcer MetadataAnnouncer, clk clock.Clock, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		repo:      repo,
		announcer: announcer,
		clock:     clk,
		logger:    logger,
	}
}

type RegisterEventInput struct {
	Name          string
	Description   string
	Location      string
	Category      string
	StartsAt      *time.Time
	TotalCapacity int
	TicketPrice   decimal.Decimal
}

// RegisterEvent creates the event and its inventory record, then announces
// the metadata to analytics. A failed announcement does not fail the call.
func (s *EventService) RegisterEvent(ctx context.Context, in RegisterEventInput) (domain.EventWithInventory, error) {
	name := strings.TrimSpace(in.Name)
	location := strings.TrimSpace(in.Location)
	if name == "" || location == "" || in.StartsAt == nil {
		return domain.EventWithInventory{}, domain.ErrMissingField
	}
	if in.TotalCapacity < 1 {
		return domain.EventWithInventory{}, domain.ErrInvalidCapacity
	}
	if in.TicketPrice.IsNegative() {
		return domain.EventWithInventory{}, domain.ErrInvalidPrice
	}

	now := s.clock.Now()
	event := domain.Event{
		ID:            newID(),
		Name:          name,
		Description:   in.Description,
		Location:      location,
		Category:      strings.TrimSpace(in.Category),
		StartsAt:      in.StartsAt.UTC(),
		TotalCapacity: in.TotalCapacity,
		TicketPrice:   in.TicketPrice,
		CreatedAt:     now,
	}
	inventory := domain.NewInventoryRecord(event.ID, event.TotalCapacity, event.TicketPrice, now)

	if err := s.repo.CreateEvent(ctx, event, inventory); err != nil {
		return domain.EventWithInventory{}, err
	}
	s.logger.Info("event registered",
		zap.String("event_id", event.ID),
		zap.String("name", event.Name),
		zap.Int("total_capacity", event.TotalCapacity),
	)

	if s.announcer != nil {
		// Logged and queued by the announcer.
		_ = s.announcer.Announce(ctx, event.Metadata())
	}
	return domain.EventWithInventory{Event: event, Inventory: inventory}, nil
}

// UpdateEventInput carries the descriptive fields an event may change after
// registration. Capacity and price are not among them.
type UpdateEventInput struct {
	Name        string
	Description string
	Location    string
	Category    string
	StartsAt    *time.Time
}

// UpdateEvent replaces the event's descriptive fields and re-announces the
// metadata so the projection picks up the new name, place and date.
func (s *EventService) UpdateEvent(ctx context.Context, eventID string, in UpdateEventInput) (domain.EventWithInventory, error) {
	if eventID == "" {
		return domain.EventWithInventory{}, domain.ErrInvalidID
	}
	name := strings.TrimSpace(in.Name)
	location := strings.TrimSpace(in.Location)
	if name == "" || location == "" || in.StartsAt == nil {
		return domain.EventWithInventory{}, domain.ErrMissingField
	}

	current, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return domain.EventWithInventory{}, err
	}
	current.Event = current.Event.WithDetails(name, in.Description, location, strings.TrimSpace(in.Category), in.StartsAt.UTC())
	if err := s.repo.UpdateEvent(ctx, current.Event); err != nil {
		return domain.EventWithInventory{}, err
	}
	s.logger.Info("event updated", zap.String("event_id", eventID), zap.String("name", name))

	if s.announcer != nil {
		_ = s.announcer.Announce(ctx, current.Metadata())
	}
	return current, nil
}

// DeleteEvent removes an event that has no booked seats. Its analytics
// projection is kept as history.
func (s *EventService) DeleteEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return domain.ErrInvalidID
	}
	if err := s.repo.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	s.logger.Info("event deleted", zap.String("event_id", eventID))
	return nil
}

func (s *EventService) GetEvent(ctx context.Context, eventID string) (domain.EventWithInventory, error) {
	if eventID == "" {
		return domain.EventWithInventory{}, domain.ErrInvalidID
	}
	return s.repo.GetEvent(ctx, eventID)
}

func (s *EventService) ListEvents(ctx context.Context) ([]domain.EventWithInventory, error) {
	return s.repo.ListEvents(ctx)
}

// ListAvailableEvents returns future events that still have unbooked seats.
func (s *EventService) ListAvailableEvents(ctx context.Context) ([]domain.EventWithInventory, error) {
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]domain.EventWithInventory, 0, len(events))
	for _, ev := range events {
		if ev.Available(now) {
			out = append(out, ev)
		}
	}
	return out, nil
}
