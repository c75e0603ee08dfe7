package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/messaging"
)

// HandlerRegistration binds an event type to a handler. An empty EventType
// matches any message on Topic that no typed handler claims.
type HandlerRegistration struct {
	Topic     string
	EventType string
	Handler   messaging.Handler
}

// Job is a scheduled task run by the engine's cron.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
	Jobs          []Job                 `group:"worker.jobs"`
}

type routeKey struct {
	topic     string
	eventType string
}

// Engine orchestrates background message consumption and scheduled jobs.
type Engine struct {
	client   messaging.Client
	logger   *zap.Logger
	cfg      config.Config
	routes   map[routeKey]messaging.Handler
	jobs     []Job
	cron     *cron.Cron
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	baseWait time.Duration
}

// NewEngine constructs the worker Engine.
func NewEngine(p Params) *Engine {
	routes := make(map[routeKey]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.Topic == "" || r.Handler == nil {
			continue
		}
		routes[routeKey{topic: r.Topic, eventType: r.EventType}] = r.Handler
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		client:   p.Client,
		logger:   logger,
		cfg:      p.Config,
		routes:   routes,
		jobs:     p.Jobs,
		baseWait: time.Second,
	}
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

// Dispatch routes msg to the handler registered for its event type, falling
// back to the topic wide handler. Unrouted messages are acknowledged.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	handler, ok := e.routes[routeKey{topic: msg.Topic, eventType: msg.EventType()}]
	if !ok {
		handler, ok = e.routes[routeKey{topic: msg.Topic}]
	}
	if !ok {
		e.logger.Debug("no handler for message",
			zap.String("topic", msg.Topic),
			zap.String("event_type", msg.EventType()),
		)
		return nil
	}
	return handler(ctx, msg)
}

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	if err := e.startJobs(runCtx); err != nil {
		cancel()
		return err
	}

	if !e.cfg.Messaging.Enabled || len(e.routes) == 0 {
		e.logger.Info("worker engine has no consumers; running scheduled jobs only", zap.Int("jobs", len(e.jobs)))

		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency), zap.Int("jobs", len(e.jobs)))

	return nil
}

func (e *Engine) startJobs(ctx context.Context) error {
	if len(e.jobs) == 0 {
		return nil
	}
	e.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	for _, job := range e.jobs {
		job := job
		if _, err := e.cron.AddFunc(job.Schedule, func() { e.runJob(ctx, job) }); err != nil {
			return err
		}
		e.logger.Info("scheduled job registered", zap.String("job", job.Name), zap.String("schedule", job.Schedule))
	}
	e.cron.Start()
	return nil
}

func (e *Engine) runJob(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		e.logger.Error("scheduled job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	e.logger.Debug("scheduled job finished", zap.String("job", job.Name), zap.Duration("duration", time.Since(start)))
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	done := make(chan struct{})
	go func() {
		if e.cron != nil {
			<-e.cron.Stop().Done()
		}
		if e.wg != nil {
			e.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := e.baseWait
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message", zap.String("topic", msg.Topic), zap.Int("worker", workerID))

			return e.Dispatch(msgCtx, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
