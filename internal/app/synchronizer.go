package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/seat-inventory/internal/domain"
)

// Projector is the part of the analytics side the synchronizer drives.
type Projector interface {
	Upsert(ctx context.Context, meta domain.EventMetadata) (domain.AnalyticsRecord, error)
	ApplyDelta(ctx context.Context, d domain.Delta) (bool, error)
}

// InventorySource is the read side of the inventory used by the sweep.
type InventorySource interface {
	ListInventory(ctx context.Context) ([]domain.InventoryRecord, error)
	GetEvent(ctx context.Context, eventID string) (domain.EventWithInventory, error)
}

// Synchronizer relays committed inventory deltas to the analytics projection.
// Failures never flow back to the booking caller: a delta that cannot be
// delivered after a few local retries is left to the reconciliation sweep.
type Synchronizer struct {
	projector  Projector
	inventory  InventorySource
	logger     *zap.Logger
	metrics    *Metrics
	attempts   int
	retryDelay time.Duration
	queue      chan domain.Delta

	mu sync.Mutex
	// pending holds the highest undelivered version per event.
	pending map[string]int64
	// unannounced holds events whose metadata never reached the projector.
	unannounced map[string]struct{}
}

const (
	defaultSyncAttempts   = 3
	defaultSyncRetryDelay = 50 * time.Millisecond
	defaultSyncQueueSize  = 256
)

type SynchronizerOption func(*Synchronizer)

func WithSyncAttempts(n int) SynchronizerOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func WithSyncRetryDelay(d time.Duration) SynchronizerOption {
	return func(s *Synchronizer) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

func WithSyncQueueSize(n int) SynchronizerOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.queue = make(chan domain.Delta, n)
		}
	}
}

func WithSyncLogger(logger *zap.Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSyncMetrics(m *Metrics) SynchronizerOption {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

func NewSynchronizer(projector Projector, inventory InventorySource, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		projector:   projector,
		inventory:   inventory,
		logger:      zap.NewNop(),
		attempts:    defaultSyncAttempts,
		retryDelay:  defaultSyncRetryDelay,
		queue:       make(chan domain.Delta, defaultSyncQueueSize),
		pending:     make(map[string]int64),
		unannounced: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish queues a delta for delivery. When the queue is full the delta goes
// straight to the reconciliation backlog.
func (s *Synchronizer) Publish(d domain.Delta) {
	select {
	case s.queue <- d:
	default:
		s.markPending(d)
		s.logger.Warn("analytics sync queue full, deferring to reconciliation",
			zap.String("event_id", d.EventID),
			zap.Int64("version", d.Version),
		)
	}
}

// Propagate delivers one delta with bounded retries. On failure the delta is
// recorded for reconciliation and the last error is returned.
func (s *Synchronizer) Propagate(ctx context.Context, d domain.Delta) error {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		_, err := s.projector.ApplyDelta(ctx, d)
		if err == nil {
			s.clearPending(d.EventID, d.Version)
			return nil
		}
		lastErr = err
		if errors.Is(err, domain.ErrAnalyticsNotFound) || ctx.Err() != nil {
			break
		}
		s.logger.Debug("analytics delta delivery failed",
			zap.String("event_id", d.EventID),
			zap.Int64("version", d.Version),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < s.attempts {
			if err := sleepContext(ctx, s.retryDelay); err != nil {
				break
			}
		}
	}

	s.markPending(d)
	s.metrics.syncFailure(ctx)
	s.logger.Warn("analytics delta deferred to reconciliation",
		zap.String("event_id", d.EventID),
		zap.Int64("version", d.Version),
		zap.Error(lastErr),
	)
	return lastErr
}

// Announce pushes event metadata to the projector with bounded retries. A
// failed announcement is remembered and retried by the sweep.
func (s *Synchronizer) Announce(ctx context.Context, meta domain.EventMetadata) error {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		_, err := s.projector.Upsert(ctx, meta)
		if err == nil {
			s.mu.Lock()
			delete(s.unannounced, meta.EventID)
			s.mu.Unlock()
			return nil
		}
		lastErr = err
		if attempt < s.attempts {
			if err := sleepContext(ctx, s.retryDelay); err != nil {
				break
			}
		}
	}

	s.mu.Lock()
	s.unannounced[meta.EventID] = struct{}{}
	s.mu.Unlock()
	s.metrics.syncFailure(ctx)
	s.logger.Warn("analytics metadata deferred to reconciliation",
		zap.String("event_id", meta.EventID),
		zap.Error(lastErr),
	)
	return lastErr
}

// Reconcile recomputes projections from the current inventory for every
// event whose projection is behind. Events without a projection are
// announced again first. It returns how many projections were corrected.
func (s *Synchronizer) Reconcile(ctx context.Context) (int, error) {
	records, err := s.inventory.ListInventory(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return fixed, err
		}
		if s.isUnannounced(rec.EventID) {
			if !s.reannounce(ctx, rec.EventID) {
				continue
			}
		}

		delta := domain.DeltaFromRecord(rec)
		applied, err := s.projector.ApplyDelta(ctx, delta)
		if errors.Is(err, domain.ErrAnalyticsNotFound) {
			// The projection was never created or was lost; rebuild it from
			// the event and apply the current metrics on top.
			if !s.reannounce(ctx, rec.EventID) {
				continue
			}
			applied, err = s.projector.ApplyDelta(ctx, delta)
		}
		if err != nil {
			s.logger.Warn("reconciliation failed for event",
				zap.String("event_id", rec.EventID),
				zap.Int64("version", rec.Version),
				zap.Error(err),
			)
			continue
		}
		s.clearPending(rec.EventID, rec.Version)
		if applied {
			fixed++
			s.metrics.reconcile(ctx)
		}
	}

	if fixed > 0 {
		s.logger.Info("reconciliation sweep corrected projections", zap.Int("count", fixed))
	}
	return fixed, nil
}

// Run delivers queued deltas and sweeps every interval until ctx is done.
func (s *Synchronizer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		case d := <-s.queue:
			_ = s.Propagate(ctx, d)
		case <-ticker.C:
			if _, err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// Pending returns the number of events waiting for reconciliation.
func (s *Synchronizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) + len(s.unannounced)
}

func (s *Synchronizer) drain() {
	for {
		select {
		case d := <-s.queue:
			s.markPending(d)
		default:
			return
		}
	}
}

func (s *Synchronizer) reannounce(ctx context.Context, eventID string) bool {
	ev, err := s.inventory.GetEvent(ctx, eventID)
	if err != nil {
		s.logger.Warn("reconciliation could not load event", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	if _, err := s.projector.Upsert(ctx, ev.Metadata()); err != nil {
		s.logger.Warn("reconciliation could not announce event", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	s.mu.Lock()
	delete(s.unannounced, eventID)
	s.mu.Unlock()
	return true
}

func (s *Synchronizer) isUnannounced(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unannounced[eventID]
	return ok
}

func (s *Synchronizer) markPending(d domain.Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Version > s.pending[d.EventID] {
		s.pending[d.EventID] = d.Version
	}
}

func (s *Synchronizer) clearPending(eventID string, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.pending[eventID]; ok && v <= version {
		delete(s.pending, eventID)
	}
}
