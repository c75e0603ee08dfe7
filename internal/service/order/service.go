package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/cache"
	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/entity"
	"github.com/Additional-Code/purchasing/internal/messaging"
	repo "github.com/Additional-Code/purchasing/internal/repository/order"
	"github.com/Additional-Code/purchasing/internal/workflow"
	"github.com/Additional-Code/purchasing/pkg/errorbank"
)

const instrumentationName = "github.com/Additional-Code/purchasing/service/order"

var serviceTracer = otel.Tracer(instrumentationName)

// OrderDateLayout is the accepted fecha_de_orden format.
const OrderDateLayout = "2006-01-02"

// Store is the storage collaborator the service needs.
// GetByID returns repo.ErrNotFound for a missing order.
type Store interface {
	Create(ctx context.Context, order *entity.PurchaseOrder) error
	GetByID(ctx context.Context, id int64, fresh bool) (*entity.PurchaseOrder, error)
	List(ctx context.Context) ([]entity.PurchaseOrder, error)
	UpdateStatus(ctx context.Context, id int64, from, to string, at time.Time) (int64, error)
	Delete(ctx context.Context, id int64, status string) (int64, error)
}

// NewOrder carries the caller supplied fields of an order to create.
// Status is accepted only so it can be ignored.
type NewOrder struct {
	Item      string
	Quantity  float64
	UnitPrice float64
	Supplier  string
	OrderDate string
	Status    string
}

// StatusChange is a single status change intent.
type StatusChange struct {
	OrderID int64
	Status  string
	Role    workflow.Role
	// Confirmed must be set for verdicts that require confirmation.
	Confirmed bool
}

// Outcome describes an executed status change.
type Outcome struct {
	OrderID      int64
	From         workflow.Status
	To           workflow.Status
	Verdict      workflow.Verdict
	AffectedRows int64
	UpdatedAt    time.Time
}

// TransitionOptions lists where an order may go next for a role.
type TransitionOptions struct {
	OrderID              int64
	Current              workflow.Status
	Allowed              []workflow.Status
	RequiresConfirmation []workflow.Status
	Final                bool
}

// Service runs purchase order commands. The workflow policy is the only gate
// in front of every status write.
type Service struct {
	store       Store
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
	publisher   messaging.Client
	messaging   messagingConfig
	transitions metric.Int64Counter
	now         func() time.Time
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store     Store
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"purchasing.status_transitions",
		metric.WithDescription("Status change requests by verdict"),
	)
	if err != nil {
		logger.Warn("create transitions counter", zap.Error(err))
	}

	return &Service{
		store:       p.Store,
		cache:       p.Cache,
		cacheTTL:    p.Config.Cache.DefaultTTL,
		logger:      logger,
		publisher:   p.Publisher,
		transitions: counter,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new order. The stored status is always
// Pendiente whatever the caller sent.
func (s *Service) Create(ctx context.Context, in NewOrder, role workflow.Role) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("actor.role", role.String())))
	defer span.End()

	if err := workflow.Authorize(workflow.ActionCreate, role); err != nil {
		return nil, denyAction(workflow.ActionCreate, role)
	}

	orderDate, appErr := validateNewOrder(in)
	if appErr != nil {
		return nil, appErr
	}

	if in.Status != "" && in.Status != string(workflow.StatusPending) {
		s.logger.Info("ignoring client supplied status on create", zap.String("status", in.Status), zap.String("role", role.String()))
	}

	now := s.now()
	order := &entity.PurchaseOrder{
		Item:      strings.TrimSpace(in.Item),
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Supplier:  strings.TrimSpace(in.Supplier),
		OrderDate: orderDate,
		Status:    string(workflow.StatusPending),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.StorageFailure("failed to create purchase order", err)
	}

	s.storeInCache(ctx, order)
	s.publish(ctx, newEvent(EventCreated, order.ID, "", order.Status, role.String(), now))
	s.logger.Info("purchase order created", zap.Int64("id", order.ID), zap.String("role", role.String()))
	return order, nil
}

// ChangeStatus moves an order to req.Status when the policy allows it.
func (s *Service) ChangeStatus(ctx context.Context, req StatusChange) (*Outcome, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ChangeStatus", trace.WithAttributes(
		attribute.Int64("order.id", req.OrderID),
		attribute.String("order.status.requested", req.Status),
		attribute.String("actor.role", req.Role.String()),
	))
	defer span.End()

	requested, err := workflow.ParseStatus(req.Status)
	if err != nil {
		return nil, errorbank.InvalidStatus(req.Status)
	}

	current, err := s.load(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	verdict, err := workflow.EvaluateRequest(workflow.Request{
		OrderID:   req.OrderID,
		Current:   workflow.Status(current.Status),
		Requested: requested,
		Role:      req.Role,
	})
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.InvalidStatus(current.Status, errorbank.WithDetail("source", "storage"), errorbank.WithCause(err))
	}
	if verdict.Denied() {
		s.recordVerdict(ctx, verdict, string(verdict.Reason))
		return nil, denial(req.OrderID, verdict)
	}
	if verdict.RequiresConfirmation && !req.Confirmed {
		s.recordVerdict(ctx, verdict, "unconfirmed")
		return nil, errorbank.ConfirmationRequired(
			fmt.Sprintf("changing status to %s is irreversible and must be confirmed", verdict.To),
			transitionDetails(req.OrderID, verdict),
		)
	}

	at := s.now()
	affected, err := s.store.UpdateStatus(ctx, req.OrderID, string(verdict.From), string(verdict.To), at)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.StorageFailure("failed to update purchase order status", err, errorbank.WithDetail("order_id", req.OrderID))
	}
	switch {
	case affected == 0:
		s.recordVerdict(ctx, verdict, "lost_race")
		return nil, s.missedWrite(ctx, req.OrderID, verdict)
	case affected != 1:
		return nil, errorbank.Internal("unexpected affected row count", errorbank.WithDetail("affected_rows", affected))
	}

	s.invalidate(ctx, req.OrderID)
	s.recordVerdict(ctx, verdict, "applied")
	s.publish(ctx, newEvent(EventStatusChanged, req.OrderID, string(verdict.From), string(verdict.To), req.Role.String(), at))
	s.logger.Info("purchase order status changed",
		zap.Int64("id", req.OrderID),
		zap.String("from", string(verdict.From)),
		zap.String("to", string(verdict.To)),
		zap.String("role", req.Role.String()),
	)

	return &Outcome{
		OrderID:      req.OrderID,
		From:         verdict.From,
		To:           verdict.To,
		Verdict:      verdict,
		AffectedRows: affected,
		UpdatedAt:    at,
	}, nil
}

// Approve is the explicit approval command.
func (s *Service) Approve(ctx context.Context, id int64, role workflow.Role) (*Outcome, error) {
	return s.ChangeStatus(ctx, StatusChange{OrderID: id, Status: string(workflow.StatusApproved), Role: role})
}

// Reject is the explicit rejection command. Rejection is terminal, so
// confirmed must be true for it to run.
func (s *Service) Reject(ctx context.Context, id int64, role workflow.Role, confirmed bool) (*Outcome, error) {
	return s.ChangeStatus(ctx, StatusChange{OrderID: id, Status: string(workflow.StatusRejected), Role: role, Confirmed: confirmed})
}

// Delete removes an order. Admin only, and only while the order is still
// Pendiente or Rechazado.
func (s *Service) Delete(ctx context.Context, id int64, role workflow.Role) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Delete", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("actor.role", role.String()),
	))
	defer span.End()

	if err := workflow.Authorize(workflow.ActionDelete, role); err != nil {
		return denyAction(workflow.ActionDelete, role, errorbank.WithDetail("order_id", id))
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !workflow.Status(current.Status).Deletable() {
		return undeletable(id, current.Status)
	}

	affected, err := s.store.Delete(ctx, id, current.Status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.StorageFailure("failed to delete purchase order", err, errorbank.WithDetail("order_id", id))
	}
	if affected == 0 {
		return s.missedDelete(ctx, id, current.Status)
	}

	s.invalidate(ctx, id)
	s.publish(ctx, newEvent(EventDeleted, id, current.Status, "", role.String(), s.now()))
	s.logger.Info("purchase order deleted", zap.Int64("id", id), zap.String("role", role.String()))
	return nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64, role workflow.Role) (*entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := workflow.Authorize(workflow.ActionRead, role); err != nil {
		return nil, denyAction(workflow.ActionRead, role)
	}

	order, err := cache.GetJSON[entity.PurchaseOrder](ctx, s.cache, cacheKey(id))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("purchase orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	// The row is cached for the full TTL, so it must not come from a lagging
	// replica.
	order, err = s.fetch(ctx, id, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.storeInCache(ctx, order)
	return order, nil
}

// List returns every order, newest first.
func (s *Service) List(ctx context.Context, role workflow.Role) ([]entity.PurchaseOrder, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	if err := workflow.Authorize(workflow.ActionRead, role); err != nil {
		return nil, denyAction(workflow.ActionRead, role)
	}

	orders, err := s.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.StorageFailure("failed to list purchase orders", err)
	}
	return orders, nil
}

// Transitions reports the statuses role may move the order to next.
func (s *Service) Transitions(ctx context.Context, id int64, role workflow.Role) (*TransitionOptions, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Transitions", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := workflow.Authorize(workflow.ActionRead, role); err != nil {
		return nil, denyAction(workflow.ActionRead, role)
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	status := workflow.Status(current.Status)

	allowed, err := workflow.AllowedNext(status, role)
	if err != nil {
		return nil, errorbank.InvalidStatus(current.Status, errorbank.WithDetail("source", "storage"))
	}

	opts := &TransitionOptions{
		OrderID:              id,
		Current:              status,
		Allowed:              allowed,
		RequiresConfirmation: []workflow.Status{},
		Final:                status.Terminal(),
	}
	for _, next := range allowed {
		if v, err := workflow.Evaluate(status, next, role); err == nil && v.RequiresConfirmation {
			opts.RequiresConfirmation = append(opts.RequiresConfirmation, next)
		}
	}
	return opts, nil
}

// load reads the current order from the writer for a command.
func (s *Service) load(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	return s.fetch(ctx, id, true)
}

func (s *Service) fetch(ctx context.Context, id int64, fresh bool) (*entity.PurchaseOrder, error) {
	order, err := s.store.GetByID(ctx, id, fresh)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errorbank.StorageFailure("failed to load purchase order", err, errorbank.WithDetail("order_id", id))
	}
	return order, nil
}

// missedWrite explains a conditional update that touched no rows.
func (s *Service) missedWrite(ctx context.Context, id int64, verdict workflow.Verdict) error {
	latest, err := s.store.GetByID(ctx, id, true)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound(id)
	}
	if err != nil {
		return errorbank.StorageFailure("failed to reload purchase order", err, errorbank.WithDetail("order_id", id))
	}
	s.invalidate(ctx, id)
	return errorbank.Conflict("purchase order status changed concurrently",
		errorbank.WithDetail("order_id", id),
		errorbank.WithDetail("from", string(verdict.From)),
		errorbank.WithDetail("to", string(verdict.To)),
		errorbank.WithDetail("actual", latest.Status),
	)
}

// missedDelete explains a guarded delete that removed no rows.
func (s *Service) missedDelete(ctx context.Context, id int64, expected string) error {
	latest, err := s.store.GetByID(ctx, id, true)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound(id)
	}
	if err != nil {
		return errorbank.StorageFailure("failed to reload purchase order", err, errorbank.WithDetail("order_id", id))
	}
	s.invalidate(ctx, id)
	if !workflow.Status(latest.Status).Deletable() {
		return undeletable(id, latest.Status)
	}
	return errorbank.Conflict("purchase order status changed concurrently",
		errorbank.WithDetail("order_id", id),
		errorbank.WithDetail("action", string(workflow.ActionDelete)),
		errorbank.WithDetail("from", expected),
		errorbank.WithDetail("actual", latest.Status),
	)
}

func (s *Service) recordVerdict(ctx context.Context, v workflow.Verdict, outcome string) {
	if s.transitions == nil {
		return
	}
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(v.From)),
		attribute.String("to", string(v.To)),
		attribute.String("outcome", outcome),
	))
}

func cacheKey(id int64) string {
	return fmt.Sprintf("purchase_orders:%d", id)
}

func (s *Service) storeInCache(ctx context.Context, order *entity.PurchaseOrder) {
	if err := cache.SetJSON(ctx, s.cache, cacheKey(order.ID), order, s.cacheTTL); err != nil {
		s.logger.Warn("purchase orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
		s.logger.Warn("purchase orders cache delete failed", zap.Int64("id", id), zap.Error(err))
	}
}

func validateNewOrder(in NewOrder) (time.Time, *errorbank.AppError) {
	if strings.TrimSpace(in.Item) == "" {
		return time.Time{}, errorbank.InvalidInput("articulo", "articulo is required")
	}
	if err := checkAmount("cantidad", in.Quantity); err != nil {
		return time.Time{}, err
	}
	if err := checkAmount("precio_por_unidad", in.UnitPrice); err != nil {
		return time.Time{}, err
	}
	if strings.TrimSpace(in.Supplier) == "" {
		return time.Time{}, errorbank.InvalidInput("proveedor", "proveedor is required")
	}
	raw := strings.TrimSpace(in.OrderDate)
	if raw == "" {
		return time.Time{}, errorbank.InvalidInput("fecha_de_orden", "fecha_de_orden is required")
	}
	date, err := time.Parse(OrderDateLayout, raw)
	if err != nil {
		return time.Time{}, errorbank.InvalidInput("fecha_de_orden", "fecha_de_orden must be a YYYY-MM-DD date", errorbank.WithCause(err))
	}
	return date, nil
}

// Amounts are stored as DECIMAL(12, 2).
const (
	amountDecimals = 2
	amountLimit    = 1e10
)

func checkAmount(field string, v float64) *errorbank.AppError {
	if !(v > 0) || math.IsInf(v, 1) {
		return errorbank.InvalidInput(field, field+" must be a positive number")
	}
	if v >= amountLimit {
		return errorbank.InvalidInput(field, field+" must be less than 10000000000",
			errorbank.WithDetail("max", "9999999999.99"))
	}
	// The shortest round-trip form is the decimal the caller sent.
	text := strconv.FormatFloat(v, 'f', -1, 64)
	if dot := strings.IndexByte(text, '.'); dot >= 0 && len(text)-dot-1 > amountDecimals {
		return errorbank.InvalidInput(field, field+" allows at most 2 decimal places")
	}
	return nil
}

func notFound(id int64) *errorbank.AppError {
	return errorbank.NotFound("purchase order not found", errorbank.WithDetail("order_id", id))
}

func denyAction(action workflow.Action, role workflow.Role, opts ...errorbank.Option) *errorbank.AppError {
	opts = append(opts,
		errorbank.WithDetail("action", string(action)),
		errorbank.WithDetail("role", role.String()),
	)
	return errorbank.InsufficientRole(fmt.Sprintf("role %q may not %s purchase orders", role, action), opts...)
}

func undeletable(id int64, status string) *errorbank.AppError {
	return errorbank.Conflict(fmt.Sprintf("purchase order in status %q cannot be deleted", status),
		errorbank.WithDetail("order_id", id),
		errorbank.WithDetail("action", string(workflow.ActionDelete)),
		errorbank.WithDetail("estado", status),
	)
}

func denial(id int64, v workflow.Verdict) *errorbank.AppError {
	switch v.Reason {
	case workflow.ReasonInsufficientRole:
		return errorbank.InsufficientRole(
			fmt.Sprintf("role %q may not change purchase order status", v.Role),
			transitionDetails(id, v),
			errorbank.WithDetail("action", string(workflow.ActionTransition)),
		)
	default:
		return errorbank.IllegalTransition(string(v.From), string(v.To),
			errorbank.WithDetail("order_id", id),
			errorbank.WithDetail("role", v.Role.String()),
		)
	}
}

func transitionDetails(id int64, v workflow.Verdict) errorbank.Option {
	return errorbank.WithDetails(map[string]any{
		"order_id": id,
		"from":     string(v.From),
		"to":       string(v.To),
		"role":     v.Role.String(),
	})
}
