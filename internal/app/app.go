package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/purchasing/internal/cache"
	"github.com/Additional-Code/purchasing/internal/config"
	"github.com/Additional-Code/purchasing/internal/database"
	"github.com/Additional-Code/purchasing/internal/logger"
	"github.com/Additional-Code/purchasing/internal/messaging"
	"github.com/Additional-Code/purchasing/internal/observability"
	repositoryorder "github.com/Additional-Code/purchasing/internal/repository/order"
	grpcserver "github.com/Additional-Code/purchasing/internal/server/grpc"
	httpserver "github.com/Additional-Code/purchasing/internal/server/http"
	serviceorder "github.com/Additional-Code/purchasing/internal/service/order"
	transporthttp "github.com/Additional-Code/purchasing/internal/transport/http"
	"github.com/Additional-Code/purchasing/internal/worker"
	workerorder "github.com/Additional-Code/purchasing/internal/worker/order"
)

// Storage is the minimal graph for migrations and seeding.
var Storage = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Storage,
	cache.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport and the optional gRPC health server on top
// of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	grpcserver.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
