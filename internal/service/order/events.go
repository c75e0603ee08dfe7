package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/messaging"
)

// Event types published on the purchase order topic.
const (
	EventCreated       = "order.created"
	EventStatusChanged = "order.status_changed"
	EventDeleted       = "order.deleted"
)

// Event is the envelope emitted after every successful write.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Role       string    `json:"role"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newEvent(eventType string, orderID int64, from, to, role string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    orderID,
		From:       from,
		To:         to,
		Role:       role,
		OccurredAt: at,
	}
}

// MessageKey partitions events so every order's history stays ordered.
func MessageKey(orderID int64) []byte {
	return []byte(fmt.Sprintf("purchase-order-%d", orderID))
}

// publish never fails the command; the write already happened.
func (s *Service) publish(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal purchase order event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	msg := messaging.Message{
		Key:     MessageKey(event.OrderID),
		Value:   payload,
		Headers: map[string]string{messaging.HeaderEventType: event.Type},
		Time:    event.OccurredAt,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.logger.Error("publish purchase order event",
			zap.String("type", event.Type),
			zap.Int64("id", event.OrderID),
			zap.Error(err),
		)
	}
}
