package order

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/dto"
	"github.com/Additional-Code/purchasing/internal/entity"
	"github.com/Additional-Code/purchasing/internal/identity"
	"github.com/Additional-Code/purchasing/internal/presentation/http/response"
	service "github.com/Additional-Code/purchasing/internal/service/order"
	"github.com/Additional-Code/purchasing/internal/workflow"
	"github.com/Additional-Code/purchasing/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/purchasing/transport/http/order")

// Handler exposes purchase order endpoints over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) respond(c echo.Context) *response.Builder {
	return response.New(c).WithLogger(h.logger)
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	api := e.Group("/api")
	api.GET("/user-role", h.userRole)

	g := api.Group("/purchase-orders")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.getByID)
	g.DELETE("/:id", h.delete)
	g.PUT("/:id/status", h.changeStatus)
	g.POST("/:id/approve", h.approve)
	g.POST("/:id/reject", h.reject)
	g.GET("/:id/transitions", h.transitions)
}

type createRequest struct {
	Item      string      `json:"articulo"`
	Quantity  json.Number `json:"cantidad"`
	UnitPrice json.Number `json:"precio_por_unidad"`
	Supplier  string      `json:"proveedor"`
	OrderDate string      `json:"fecha_de_orden"`
	Status    string      `json:"estado"`
}

type statusRequest struct {
	NewStatus string `json:"newStatus"`
	Confirm   bool   `json:"confirm"`
}

type rejectRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *Handler) userRole(c echo.Context) error {
	return h.respond(c).WithData(dto.RoleResponse{Role: identity.Role(c).String()}).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := h.respond(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.list")
	defer span.End()

	orders, err := h.svc.List(ctx, identity.Role(c))
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toDTO(&orders[i]))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := h.respond(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id, identity.Role(c))
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := h.respond(c)

	var payload createRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	quantity, err := parseNumber("cantidad", payload.Quantity)
	if err != nil {
		return b.WithError(err).Build()
	}
	unitPrice, err := parseNumber("precio_por_unidad", payload.UnitPrice)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.create")
	span.SetAttributes(attribute.String("order.supplier", payload.Supplier))
	defer span.End()

	order, err := h.svc.Create(ctx, service.NewOrder{
		Item:      payload.Item,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Supplier:  payload.Supplier,
		OrderDate: payload.OrderDate,
		Status:    payload.Status,
	}, identity.Role(c))
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

func (h *Handler) changeStatus(c echo.Context) error {
	b := h.respond(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload statusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if strings.TrimSpace(payload.NewStatus) == "" {
		return b.WithError(errorbank.BadRequest("newStatus is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.changeStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.requested", payload.NewStatus),
	))
	defer span.End()

	out, err := h.svc.ChangeStatus(ctx, service.StatusChange{
		OrderID:   id,
		Status:    payload.NewStatus,
		Role:      identity.Role(c),
		Confirmed: payload.Confirm,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toStatusDTO(out)).Build()
}

func (h *Handler) approve(c echo.Context) error {
	b := h.respond(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.approve", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	out, err := h.svc.Approve(ctx, id, identity.Role(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toStatusDTO(out)).Build()
}

func (h *Handler) reject(c echo.Context) error {
	b := h.respond(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	// An empty body is an unconfirmed rejection.
	var payload rejectRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.reject", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	out, err := h.svc.Reject(ctx, id, identity.Role(c), payload.Confirm)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toStatusDTO(out)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := h.respond(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id, identity.Role(c)); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(map[string]int64{"id": id}).Build()
}

func (h *Handler) transitions(c echo.Context) error {
	b := h.respond(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "purchaseOrders.transitions", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	opts, err := h.svc.Transitions(ctx, id, identity.Role(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.TransitionsResponse{
		ID:                   opts.OrderID,
		Status:               string(opts.Current),
		Allowed:              statusStrings(opts.Allowed),
		RequiresConfirmation: statusStrings(opts.RequiresConfirmation),
		Final:                opts.Final,
	}).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithDetail("id", c.Param("id")), errorbank.WithCause(err))
	}
	return id, nil
}

// parseNumber accepts both JSON numbers and numeric strings. A missing value
// parses as zero and is rejected by the service.
func parseNumber(field string, raw json.Number) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw.String()), 64)
	if err != nil {
		return 0, errorbank.InvalidInput(field, field+" must be a number", errorbank.WithCause(err))
	}
	return v, nil
}

func statusStrings(in []workflow.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func toDTO(order *entity.PurchaseOrder) dto.OrderResponse {
	return dto.OrderResponse{
		ID:        order.ID,
		Item:      order.Item,
		Quantity:  order.Quantity,
		UnitPrice: order.UnitPrice,
		Total:     order.Total(),
		Supplier:  order.Supplier,
		OrderDate: order.OrderDate.Format(service.OrderDateLayout),
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

func toStatusDTO(out *service.Outcome) dto.StatusChangeResponse {
	return dto.StatusChangeResponse{
		ID:                   out.OrderID,
		PreviousStatus:       string(out.From),
		Status:               string(out.To),
		AffectedRows:         out.AffectedRows,
		RequiresConfirmation: out.Verdict.RequiresConfirmation,
	}
}
