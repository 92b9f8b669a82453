package app

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope used for all service instruments.
const MeterName = "github.com/cimillas/seat-inventory/internal/app"

// Metrics holds the counters shared by the booking and sync paths. A nil
// *Metrics records nothing.
type Metrics struct {
	conflicts    metric.Int64Counter
	overReleased metric.Int64Counter
	syncFailures metric.Int64Counter
	reconciled   metric.Int64Counter
}

// NewMetrics creates the service instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	conflicts, err := meter.Int64Counter("inventory.booking.conflicts",
		metric.WithDescription("Optimistic commits lost to a concurrent writer"))
	if err != nil {
		return nil, fmt.Errorf("create conflicts counter: %w", err)
	}
	overReleased, err := meter.Int64Counter("inventory.release.over_released",
		metric.WithDescription("Releases that asked for more seats than were booked"))
	if err != nil {
		return nil, fmt.Errorf("create over-release counter: %w", err)
	}
	syncFailures, err := meter.Int64Counter("analytics.sync.failures",
		metric.WithDescription("Deltas that exhausted local retries and wait for reconciliation"))
	if err != nil {
		return nil, fmt.Errorf("create sync failures counter: %w", err)
	}
	reconciled, err := meter.Int64Counter("analytics.reconciled",
		metric.WithDescription("Projections corrected by the reconciliation sweep"))
	if err != nil {
		return nil, fmt.Errorf("create reconciled counter: %w", err)
	}
	return &Metrics{
		conflicts:    conflicts,
		overReleased: overReleased,
		syncFailures: syncFailures,
		reconciled:   reconciled,
	}, nil
}

func (m *Metrics) conflict(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", op)))
}

func (m *Metrics) overRelease(ctx context.Context) {
	if m == nil {
		return
	}
	m.overReleased.Add(ctx, 1)
}

func (m *Metrics) syncFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.syncFailures.Add(ctx, 1)
}

func (m *Metrics) reconcile(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconciled.Add(ctx, 1)
}
