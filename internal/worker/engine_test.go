package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/messaging"
)

type feedClient struct {
	messages []messaging.Message
}

func (f *feedClient) Publish(context.Context, messaging.Message) error { return nil }

func (f *feedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	for _, msg := range f.messages {
		_ = handler(ctx, msg)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *feedClient) Topic() string { return "orders" }

func message(eventType string) messaging.Message {
	return messaging.Message{
		Topic:   "orders",
		Headers: map[string]string{messaging.HeaderEventType: eventType},
	}
}

func TestDispatchPrefersEventType(t *testing.T) {
	var typed, fallback int
	engine := NewEngine(Params{
		Client: &feedClient{},
		Logger: zap.NewNop(),
		Registrations: []HandlerRegistration{
			{Topic: "orders", EventType: "order.status_changed", Handler: func(context.Context, messaging.Message) error { typed++; return nil }},
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { fallback++; return nil }},
			{Topic: "", Handler: func(context.Context, messaging.Message) error { t.Fatal("unexpected"); return nil }},
		},
	})

	ctx := context.Background()
	require.NoError(t, engine.Dispatch(ctx, message("order.status_changed")))
	require.NoError(t, engine.Dispatch(ctx, message("order.created")))
	require.NoError(t, engine.Dispatch(ctx, messaging.Message{Topic: "other"}))

	assert.Equal(t, 1, typed)
	assert.Equal(t, 1, fallback)
}

func TestEngineConsumesUntilStopped(t *testing.T) {
	var handled atomic.Int32
	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 1

	engine := NewEngine(Params{
		Client: &feedClient{messages: []messaging.Message{message("order.created"), message("order.deleted")}},
		Logger: zap.NewNop(),
		Config: cfg,
		Registrations: []HandlerRegistration{
			{Topic: "orders", Handler: func(context.Context, messaging.Message) error { handled.Add(1); return nil }},
		},
	})

	require.NoError(t, engine.start(context.Background()))
	assert.Eventually(t, func() bool { return handled.Load() == 2 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.stop(stopCtx))
}

func TestEngineRunsScheduledJobs(t *testing.T) {
	var runs atomic.Int32
	cfg := config.Config{}
	cfg.Messaging.Workers.Enabled = true

	engine := NewEngine(Params{
		Client: &feedClient{},
		Config: cfg,
		Jobs: []Job{{
			Name:     "tick",
			Schedule: "@every 1s",
			Run: func(context.Context) error {
				runs.Add(1)
				return nil
			},
		}},
	})

	require.NoError(t, engine.start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, engine.stop(context.Background()))
}

func TestEngineRejectsBadSchedule(t *testing.T) {
	cfg := config.Config{}
	cfg.Messaging.Workers.Enabled = true

	engine := NewEngine(Params{
		Client: &feedClient{},
		Config: cfg,
		Jobs:   []Job{{Name: "bad", Schedule: "every now and then", Run: func(context.Context) error { return nil }}},
	})
	require.Error(t, engine.start(context.Background()))
}

func TestEngineDisabled(t *testing.T) {
	engine := NewEngine(Params{Client: &feedClient{}})
	require.NoError(t, engine.start(context.Background()))
	require.NoError(t, engine.stop(context.Background()))
}
