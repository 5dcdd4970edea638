// Command migrate applies or rolls back the database schema.
//
// Usage:
//
//	migrate [up|up-to <version>|down|status|version]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/internal/migrate"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: migrate [up|up-to <version>|down|status|version]")
	}
	flag.Parse()

	_ = godotenv.Load(".env.local", ".env")

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), logger, flag.Args()); err != nil {
		logger.Error("migrate failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, args []string) error {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	var dbCfg config.DatabaseConfig
	if err := env.Parse(&dbCfg); err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	connCfg, err := pgx.ParseConfig(dbCfg.DSN())
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}
	db := stdlib.OpenDB(*connCfg)
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to %s:%d: %w", dbCfg.Host, dbCfg.Port, err)
	}

	m, err := migrate.NewMigrator(db, logger)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		return m.Up(ctx)
	case "up-to":
		if len(args) < 2 {
			return fmt.Errorf("up-to requires a version")
		}
		version, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return m.UpTo(ctx, version)
	case "down":
		return m.Down(ctx)
	case "status":
		return m.Status(ctx)
	case "version":
		version, err := m.Version(ctx)
		if err != nil {
			return err
		}
		logger.Info("current schema version", zap.Int64("version", version))
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
