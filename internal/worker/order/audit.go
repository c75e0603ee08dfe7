package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/messaging"
	ordersvc "github.com/Additional-Code/purchasing/internal/service/order"
	"github.com/Additional-Code/purchasing/internal/worker"
)

const instrumentationName = "github.com/Additional-Code/purchasing/worker/order"

var workerTracer = otel.Tracer(instrumentationName)

// NewAuditHandler logs every purchase order event as an audit trail entry.
// Undecodable payloads are logged and acknowledged so a poison message never
// blocks the partition.
func NewAuditHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"purchasing.events_consumed",
		metric.WithDescription("Purchase order events processed by the worker"),
	)
	if err != nil {
		logger.Warn("create events counter", zap.Error(err))
	}

	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.purchaseOrders.audit", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.String("messaging.event_type", msg.EventType()),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode purchase order event", zap.Error(err), zap.Int64("offset", msg.Offset))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}

		fields := []zap.Field{
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.String("role", event.Role),
			zap.Time("occurred_at", event.OccurredAt),
		}
		if event.From != "" {
			fields = append(fields, zap.String("from", event.From))
		}
		if event.To != "" {
			fields = append(fields, zap.String("to", event.To))
		}
		logger.Info("purchase order audit", fields...)

		if counter != nil {
			counter.Add(ctx, 1, metric.WithAttributes(attribute.String("type", event.Type)))
		}
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
