package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromKafkaCopiesPayloadAndHeaders(t *testing.T) {
	key := []byte("purchase-order-7")
	src := kafka.Message{
		Topic:  "purchase-orders.events",
		Key:    key,
		Value:  []byte(`{"type":"order.created"}`),
		Offset: 42,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte("order.created")},
		},
	}

	msg := fromKafka(src)
	key[0] = 'X'

	assert.Equal(t, "purchase-order-7", string(msg.Key))
	assert.Equal(t, "order.created", msg.EventType())
	assert.Equal(t, int64(42), msg.Offset)
	assert.Equal(t, "purchase-orders.events", msg.Topic)
}

func TestFromKafkaWithoutHeaders(t *testing.T) {
	msg := fromKafka(kafka.Message{Value: []byte("x")})
	assert.Nil(t, msg.Headers)
	assert.Equal(t, "", msg.EventType())
}

func TestNoopClient(t *testing.T) {
	client := NewNoop("topic")
	require.NoError(t, client.Publish(context.Background(), Message{Value: []byte("x")}))
	assert.Equal(t, "topic", client.Topic())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := client.Consume(ctx, func(context.Context, Message) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
