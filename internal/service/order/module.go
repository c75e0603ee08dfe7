package order

import (
	"go.uber.org/fx"

	repo "github.com/Additional-Code/purchasing/internal/repository/order"
)

// Module provides the order service to Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Provide(func(r *repo.Repository) Store { return r }),
)
