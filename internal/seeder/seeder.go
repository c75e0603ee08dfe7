package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/database"
	"github.com/Additional-Code/purchasing/internal/entity"
	"github.com/Additional-Code/purchasing/internal/workflow"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return NewWithDB(conns.Writer, logger)
}

// NewWithDB constructs a Seeder on an explicit connection.
func NewWithDB(db *bun.DB, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Samples returns the demo orders. Every sample starts in Pendiente.
func Samples(now time.Time) []entity.PurchaseOrder {
	day := now.Truncate(24 * time.Hour)
	rows := []struct {
		item     string
		qty      float64
		price    float64
		supplier string
		daysAgo  int
	}{
		{"Laptop Dell Latitude 5440", 5, 1150.00, "Dell Technologies", 6},
		{"Monitor 27\" 4K", 10, 329.99, "LG Electronics", 4},
		{"Silla ergonómica", 12, 210.50, "Herman Miller", 2},
		{"Papel bond A4 (caja)", 40, 18.75, "Office Depot", 0},
	}

	out := make([]entity.PurchaseOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.PurchaseOrder{
			Item:      r.item,
			Quantity:  r.qty,
			UnitPrice: r.price,
			Supplier:  r.supplier,
			OrderDate: day.AddDate(0, 0, -r.daysAgo),
			Status:    string(workflow.StatusPending),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return out
}

// Orders seeds the demo orders when the table is empty. It returns the
// number of rows inserted.
func (s *Seeder) Orders(ctx context.Context) (int, error) {
	existing, err := s.db.NewSelect().Model((*entity.PurchaseOrder)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count purchase orders: %w", err)
	}
	if existing > 0 {
		s.logger.Info("purchase orders present; skipping seed", zap.Int("existing", existing))
		return 0, nil
	}

	samples := Samples(s.now())
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range samples {
			if _, err := tx.NewInsert().Model(&samples[i]).Exec(ctx); err != nil {
				return fmt.Errorf("insert sample %q: %w", samples[i].Item, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("seeded purchase orders", zap.Int("count", len(samples)))
	return len(samples), nil
}
