// Package main runs the transport graph API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/soldey/graph-api/domain/edges"
	"github.com/soldey/graph-api/domain/graphs"
	"github.com/soldey/graph-api/domain/health"
	"github.com/soldey/graph-api/domain/nodes"
	"github.com/soldey/graph-api/domain/scheduler"
	"github.com/soldey/graph-api/domain/tracing"
	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/internal/database"
	"github.com/soldey/graph-api/internal/server"
	"github.com/soldey/graph-api/pkg/logger"
)

func main() {
	// .env.local overrides .env; neither overrides the real environment.
	_ = godotenv.Load(".env.local", ".env")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure
		logger.Module,
		config.Module,
		database.Module,
		server.Module,
		tracing.Module,
		bulkload.Module,

		// Domain
		health.Module,
		nodes.Module,
		edges.Module,
		graphs.Module,
		scheduler.Module,
	).Run()
}
