package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/database"
	"github.com/Additional-Code/purchasing/internal/entity"
	"github.com/Additional-Code/purchasing/internal/migration"
)

func setupSQLite(t *testing.T) *Repository {
	t.Helper()
	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	mig, err := migration.NewForDB("sqlite", conns.Writer.DB, nil)
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))
	return NewRepository(conns)
}

func sqliteOrder(item string, created time.Time) *entity.PurchaseOrder {
	return &entity.PurchaseOrder{
		Item:      item,
		Quantity:  3,
		UnitPrice: 4.5,
		Supplier:  "ACME",
		OrderDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:    "Pendiente",
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestSQLiteConditionalUpdate(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()

	order := sqliteOrder("Cable", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, order))
	require.NotZero(t, order.ID)

	n, err := repo.UpdateStatus(ctx, order.ID, "Pendiente", "Aprobado", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.UpdateStatus(ctx, order.ID, "Pendiente", "Rechazado", time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n, "stale from-status must not write")

	n, err = repo.UpdateStatus(ctx, order.ID, "Aprobado", "Aprobado", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "self-loop counts as a matched row")

	got, err := repo.GetByID(ctx, order.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Aprobado", got.Status)
	assert.Equal(t, "2024-02-01", got.OrderDate.UTC().Format("2006-01-02"))
}

func TestSQLiteListCountDelete(t *testing.T) {
	repo := setupSQLite(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	first := sqliteOrder("First", base)
	second := sqliteOrder("Second", base.Add(time.Minute))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	orders, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 1)
	assert.Equal(t, "Pendiente", counts[0].Status)
	assert.Equal(t, int64(2), counts[0].Count)

	n, err := repo.Delete(ctx, first.ID, "Rechazado")
	require.NoError(t, err)
	assert.Zero(t, n, "status guard must not delete a pending order as rejected")

	n, err = repo.Delete(ctx, first.ID, "Pendiente")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByID(ctx, first.ID, false)
	assert.ErrorIs(t, err, ErrNotFound)
}
