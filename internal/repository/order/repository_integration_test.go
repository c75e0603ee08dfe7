//go:build integration

package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/database"
	"github.com/Additional-Code/purchasing/internal/entity"
	"github.com/Additional-Code/purchasing/internal/migration"
)

func setupPostgres(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("purchasing_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conns, err := database.Open(config.Database{Driver: "postgres", WriterDSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	mig, err := migration.NewForDB("postgres", conns.Writer.DB, nil)
	require.NoError(t, err)
	require.NoError(t, mig.Up(ctx))

	return NewRepository(conns)
}

func newOrder(item string) *entity.PurchaseOrder {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &entity.PurchaseOrder{
		Item:      item,
		Quantity:  100,
		UnitPrice: 2.5,
		Supplier:  "ACME",
		OrderDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Status:    "Pendiente",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_CreateAndGetByID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	repo := setupPostgres(t)
	ctx := context.Background()

	order := newOrder("Tornillos")
	require.NoError(t, repo.Create(ctx, order))
	require.NotZero(t, order.ID)

	fetched, err := repo.GetByID(ctx, order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Tornillos", fetched.Item)
	assert.Equal(t, "Pendiente", fetched.Status)
	assert.InDelta(t, 2.5, fetched.UnitPrice, 0.0001)
	assert.Equal(t, "2024-01-15", fetched.OrderDate.Format("2006-01-02"))

	_, err = repo.GetByID(ctx, order.ID+1000, true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_UpdateStatusIsConditional(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	repo := setupPostgres(t)
	ctx := context.Background()

	order := newOrder("Tuercas")
	require.NoError(t, repo.Create(ctx, order))

	at := time.Now().UTC()
	n, err := repo.UpdateStatus(ctx, order.ID, "Pendiente", "Aprobado", at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// stale expectation
	n, err = repo.UpdateStatus(ctx, order.ID, "Pendiente", "Rechazado", at)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// self-loop still counts as a write
	n, err = repo.UpdateStatus(ctx, order.ID, "Aprobado", "Aprobado", at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	fetched, err := repo.GetByID(ctx, order.ID, true)
	require.NoError(t, err)
	assert.Equal(t, "Aprobado", fetched.Status)
	assert.False(t, fetched.UpdatedAt.IsZero())
}

func TestRepository_ListDeleteAndCount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	repo := setupPostgres(t)
	ctx := context.Background()

	first := newOrder("Clavos")
	second := newOrder("Arandelas")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	_, err := repo.UpdateStatus(ctx, second.ID, "Pendiente", "Aprobado", time.Now().UTC())
	require.NoError(t, err)

	orders, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, second.ID, orders[0].ID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	byStatus := map[string]int64{}
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	assert.Equal(t, map[string]int64{"Pendiente": 1, "Aprobado": 1}, byStatus)

	n, err := repo.Delete(ctx, second.ID, "Pendiente")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "status guard must keep the approved order")

	n, err = repo.Delete(ctx, first.ID, "Pendiente")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.Delete(ctx, first.ID, "Pendiente")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
