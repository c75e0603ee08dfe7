package order

import (
	"go.uber.org/fx"

	repo "github.com/Additional-Code/purchasing/internal/repository/order"
)

// Module registers purchase order worker handlers and jobs.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewAuditHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		func(r *repo.Repository) Counter { return r },
		NewSnapshot,
		fx.Annotate(
			NewSnapshotJob,
			fx.ResultTags(`group:"worker.jobs"`),
		),
	),
)
