package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/seat-inventory/internal/clock"
	"github.com/cimillas/seat-inventory/internal/domain"
)

// InventoryStore is the authoritative inventory. CompareAndSwap must write
// next only if the stored version still equals expectedVersion, and return
// domain.ErrVersionConflict otherwise.
type InventoryStore interface {
	GetInventory(ctx context.Context, eventID string) (domain.InventoryRecord, error)
	CompareAndSwap(ctx context.Context, expectedVersion int64, next domain.InventoryRecord) error
}

// DeltaPublisher receives committed deltas. Publish must not block on the
// analytics store.
type DeltaPublisher interface {
	Publish(delta domain.Delta)
}

type BookingService struct {
	store       InventoryStore
	publisher   DeltaPublisher
	clock       clock.Clock
	logger      *zap.Logger
	metrics     *Metrics
	maxAttempts int
	backoff     time.Duration
}

const (
	defaultBookingAttempts = 5
	defaultBookingBackoff  = 10 * time.Millisecond
	maxBookingBackoff      = 500 * time.Millisecond
)

func NewBookingService(store InventoryStore, publisher DeltaPublisher, clk clock.Clock, opts ...BookingServiceOption) *BookingService {
	svc := &BookingService{
		store:       store,
		publisher:   publisher,
		clock:       clk,
		logger:      zap.NewNop(),
		maxAttempts: defaultBookingAttempts,
		backoff:     defaultBookingBackoff,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type BookingServiceOption func(*BookingService)

// WithMaxAttempts bounds the read-compute-commit cycles per request.
func WithMaxAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay before the first retry; it doubles per attempt.
// Zero disables the wait.
func WithBackoff(d time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		if d >= 0 {
			s.backoff = d
		}
	}
}

func WithBookingLogger(logger *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithBookingMetrics(m *Metrics) BookingServiceOption {
	return func(s *BookingService) {
		s.metrics = m
	}
}

type BookSeatsInput struct {
	EventID string
	Seats   int
}

type ReleaseSeatsInput struct {
	EventID string
	Seats   int
}

type BookingResult struct {
	EventID     string
	Seats       int
	BookedSeats int
	Version     int64

	// OverReleased is set when a release asked for more than was booked.
	OverReleased bool
}

func (s *BookingService) BookSeats(ctx context.Context, in BookSeatsInput) (BookingResult, error) {
	if in.EventID == "" {
		return BookingResult{}, domain.ErrMissingField
	}
	if in.Seats <= 0 {
		return BookingResult{}, domain.ErrInvalidSeats
	}

	next, err := s.commit(ctx, "book", in.EventID, func(current domain.InventoryRecord, now time.Time) (domain.InventoryRecord, error) {
		if !domain.CanReserve(current, in.Seats) {
			return domain.InventoryRecord{}, domain.ErrInsufficientCapacity
		}
		return domain.ApplyReservation(current, in.Seats, now), nil
	})
	if err != nil {
		return BookingResult{}, err
	}

	s.logger.Info("seats booked",
		zap.String("event_id", in.EventID),
		zap.Int("seats", in.Seats),
		zap.Int("booked_seats", next.BookedSeats),
		zap.Int64("version", next.Version),
	)
	return BookingResult{
		EventID:     in.EventID,
		Seats:       in.Seats,
		BookedSeats: next.BookedSeats,
		Version:     next.Version,
	}, nil
}

func (s *BookingService) ReleaseSeats(ctx context.Context, in ReleaseSeatsInput) (BookingResult, error) {
	if in.EventID == "" {
		return BookingResult{}, domain.ErrMissingField
	}
	if in.Seats <= 0 {
		return BookingResult{}, domain.ErrInvalidSeats
	}

	var overReleased bool
	next, err := s.commit(ctx, "release", in.EventID, func(current domain.InventoryRecord, now time.Time) (domain.InventoryRecord, error) {
		overReleased = domain.OverReleased(current, in.Seats)
		return domain.ApplyRelease(current, in.Seats, now), nil
	})
	if err != nil {
		return BookingResult{}, err
	}

	if overReleased {
		s.metrics.overRelease(ctx)
		s.logger.Warn("release exceeded booked seats, clamped to zero",
			zap.String("event_id", in.EventID),
			zap.Int("seats", in.Seats),
			zap.Int64("version", next.Version),
		)
	}
	s.logger.Info("seats released",
		zap.String("event_id", in.EventID),
		zap.Int("seats", in.Seats),
		zap.Int("booked_seats", next.BookedSeats),
		zap.Int64("version", next.Version),
	)
	return BookingResult{
		EventID:      in.EventID,
		Seats:        in.Seats,
		BookedSeats:  next.BookedSeats,
		Version:      next.Version,
		OverReleased: overReleased,
	}, nil
}

type mutation func(current domain.InventoryRecord, now time.Time) (domain.InventoryRecord, error)

// commit runs read, compute and conditional write until the write lands or
// the attempt budget is spent. A losing writer re-reads and recomputes; no
// lock is held between the read and the write.
func (s *BookingService) commit(ctx context.Context, op, eventID string, mutate mutation) (domain.InventoryRecord, error) {
	delay := s.backoff
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.InventoryRecord{}, err
		}

		current, err := s.store.GetInventory(ctx, eventID)
		if err != nil {
			return domain.InventoryRecord{}, err
		}
		next, err := mutate(current, s.clock.Now())
		if err != nil {
			return domain.InventoryRecord{}, err
		}

		err = s.store.CompareAndSwap(ctx, current.Version, next)
		if err == nil {
			// The caller's success does not depend on the analytics side.
			if s.publisher != nil {
				s.publisher.Publish(domain.NewDelta(current, next))
			}
			return next, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.InventoryRecord{}, err
		}

		s.metrics.conflict(ctx, op)
		s.logger.Debug("inventory version conflict",
			zap.String("operation", op),
			zap.String("event_id", eventID),
			zap.Int64("read_version", current.Version),
			zap.Int("attempt", attempt),
		)
		if attempt == s.maxAttempts {
			break
		}
		if err := sleepContext(ctx, delay); err != nil {
			return domain.InventoryRecord{}, err
		}
		delay = min(delay*2, maxBookingBackoff)
	}

	s.logger.Warn("inventory conflict retries exhausted",
		zap.String("operation", op),
		zap.String("event_id", eventID),
		zap.Int("attempts", s.maxAttempts),
	)
	return domain.InventoryRecord{}, domain.ErrConcurrentUpdate
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
