package seeder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/database"
	"github.com/Additional-Code/purchasing/internal/entity"
	"github.com/Additional-Code/purchasing/internal/migration"
)

func openSQLite(t *testing.T) *database.Connections {
	t.Helper()
	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	mig, err := migration.NewForDB("sqlite", conns.Writer.DB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))
	return conns
}

func TestSamplesArePending(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	samples := Samples(now)
	require.NotEmpty(t, samples)
	for _, s := range samples {
		assert.Equal(t, "Pendiente", s.Status)
		assert.Positive(t, s.Quantity)
		assert.Positive(t, s.UnitPrice)
		assert.False(t, s.OrderDate.After(now))
	}
}

func TestOrdersSeedsOnlyEmptyTable(t *testing.T) {
	conns := openSQLite(t)
	ctx := context.Background()
	s := New(conns, zap.NewNop())

	inserted, err := s.Orders(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Samples(time.Now())), inserted)

	inserted, err = s.Orders(ctx)
	require.NoError(t, err)
	assert.Zero(t, inserted)

	count, err := conns.Writer.NewSelect().Model((*entity.PurchaseOrder)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Samples(time.Now())), count)
}
