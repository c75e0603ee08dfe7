package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/purchasing/internal/database"
	"github.com/Additional-Code/purchasing/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/purchasing/repository/order")

// ErrNotFound is returned when a purchase order is missing.
var ErrNotFound = errors.New("purchase order not found")

// StatusCount is one row of a count-by-status aggregate.
type StatusCount struct {
	Status string `bun:"estado"`
	Count  int64  `bun:"total"`
}

// Repository encapsulates read/write access for purchase orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create inserts a new order using the write connection and sets its ID.
func (r *Repository) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	if order == nil {
		return errors.New("nil purchase order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.String("order.supplier", order.Supplier),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	return nil
}

// GetByID fetches an order by primary key. Commands pass fresh=true to read
// from the writer and avoid replica lag.
func (r *Repository) GetByID(ctx context.Context, id int64, fresh bool) (*entity.PurchaseOrder, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.Bool("db.fresh", fresh),
	))
	defer span.End()

	db := r.reader
	if fresh {
		db = r.writer
	}

	order := new(entity.PurchaseOrder)
	err := db.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns every order, newest first.
func (r *Repository) List(ctx context.Context) ([]entity.PurchaseOrder, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.PurchaseOrder
	err := r.reader.NewSelect().Model(&orders).
		OrderExpr("created_at DESC").
		OrderExpr("id DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

// UpdateStatus moves the order to status `to` only while it is still in
// `from`, and returns the number of rows written. Zero means the order is
// gone or its status changed since it was read.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to string, at time.Time) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.from", from),
		attribute.String("order.status.to", to),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.PurchaseOrder)(nil)).
		Set("estado = ?", to).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("estado = ?", from).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rows affected unavailable")
		return 0, err
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", affected))
	return affected, nil
}

// Delete removes an order only while it is still in status and returns the
// number of rows deleted.
func (r *Repository) Delete(ctx context.Context, id int64, status string) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", status),
	))
	defer span.End()

	res, err := r.writer.NewDelete().
		Model((*entity.PurchaseOrder)(nil)).
		Where("id = ?", id).
		Where("estado = ?", status).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	return res.RowsAffected()
}

// CountByStatus aggregates order counts per status.
func (r *Repository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByStatus")
	defer span.End()

	var counts []StatusCount
	err := r.reader.NewSelect().
		Model((*entity.PurchaseOrder)(nil)).
		Column("estado").
		ColumnExpr("COUNT(*) AS total").
		Group("estado").
		Scan(ctx, &counts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, err
	}
	return counts, nil
}
