package order

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
	repo "github.com/Additional-Code/purchasing/internal/repository/order"
	"github.com/Additional-Code/purchasing/internal/workflow"
	"github.com/Additional-Code/purchasing/internal/worker"
)

// Counter is the aggregate query the snapshot job needs.
type Counter interface {
	CountByStatus(ctx context.Context) ([]repo.StatusCount, error)
}

// Snapshot keeps the latest per-status order counts and exposes them as the
// purchasing.orders_by_status gauge.
type Snapshot struct {
	counter Counter
	logger  *zap.Logger

	mu     sync.RWMutex
	counts map[workflow.Status]int64
}

// NewSnapshot builds a Snapshot and registers its gauge callback.
func NewSnapshot(counter Counter, logger *zap.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Snapshot{counter: counter, logger: logger, counts: map[workflow.Status]int64{}}

	meter := otel.Meter(instrumentationName)
	gauge, err := meter.Int64ObservableGauge(
		"purchasing.orders_by_status",
		metric.WithDescription("Purchase orders per workflow status at the last snapshot"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders gauge: %w", err)
	}
	if _, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for status, n := range s.Counts() {
			o.ObserveInt64(gauge, n, metric.WithAttributes(attribute.String("estado", string(status))))
		}
		return nil
	}, gauge); err != nil {
		return nil, fmt.Errorf("register orders gauge: %w", err)
	}
	return s, nil
}

// Refresh reloads the counts from storage. Every known status is present in
// the result, with zero for statuses that have no orders.
func (s *Snapshot) Refresh(ctx context.Context) error {
	rows, err := s.counter.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count orders by status: %w", err)
	}

	counts := make(map[workflow.Status]int64, len(workflow.Statuses()))
	for _, status := range workflow.Statuses() {
		counts[status] = 0
	}
	for _, row := range rows {
		status, err := workflow.ParseStatus(row.Status)
		if err != nil {
			s.logger.Warn("orders with unknown status in storage", zap.String("estado", row.Status), zap.Int64("count", row.Count))
			continue
		}
		counts[status] = row.Count
	}

	s.mu.Lock()
	s.counts = counts
	s.mu.Unlock()

	s.logger.Debug("order status snapshot refreshed", zap.Any("counts", counts))
	return nil
}

// Counts returns a copy of the latest snapshot.
func (s *Snapshot) Counts() map[workflow.Status]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[workflow.Status]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// NewSnapshotJob schedules Refresh on the configured cron spec.
func NewSnapshotJob(s *Snapshot, cfg config.Config) worker.Job {
	return worker.Job{
		Name:     "orders_by_status_snapshot",
		Schedule: cfg.Messaging.Workers.SnapshotSchedule,
		Run:      s.Refresh,
	}
}
