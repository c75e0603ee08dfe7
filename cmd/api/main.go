// Command api runs only the purchase order HTTP surface (plus gRPC health
// when enabled). Operational commands live in cmd/purchasing.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Additional-Code/purchasing/internal/app"
)

func main() {
	fx.New(
		app.HTTP,
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	).Run()
}
