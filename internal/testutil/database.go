// Package testutil provides an isolated PostGIS database for integration
// tests.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"

	"github.com/soldey/graph-api/internal/config"
	"github.com/soldey/graph-api/internal/migrate"
)

const templateDBName = "graph_test_template"

var (
	templateOnce sync.Once
	templateErr  error
)

// TestDB holds test database resources.
type TestDB struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	DB      *bun.DB
	Name    string
	cleanup func()
}

// Close releases test database resources and drops the database.
func (t *TestDB) Close() {
	if t.cleanup != nil {
		t.cleanup()
	}
}

// Enabled reports whether a database is configured for integration tests.
func Enabled() bool {
	return os.Getenv("POSTGRES_HOST") != ""
}

// SetupTestDB creates an isolated test database from a template that holds
// the migrated schema:
//   - First call: creates the template and runs the migrations
//   - Subsequent calls: CREATE DATABASE ... TEMPLATE
//
// The database is dropped when Close() is called.
func SetupTestDB(ctx context.Context, suffix string) (*TestDB, error) {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	baseCfg, err := config.NewConfig(log)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	templateOnce.Do(func() {
		templateErr = ensureTemplateDB(ctx, baseCfg, log)
	})
	if templateErr != nil {
		return nil, fmt.Errorf("ensure template db: %w", templateErr)
	}

	testDBName := fmt.Sprintf("graph_test_%s_%d", suffix, time.Now().UnixNano())

	adminCfg := *baseCfg
	adminCfg.Database.Database = "postgres"
	adminPool, err := createPool(ctx, &adminCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	_, err = adminPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", testDBName, templateDBName))
	adminPool.Close()
	if err != nil {
		return nil, fmt.Errorf("create test db from template: %w", err)
	}

	testCfg := *baseCfg
	testCfg.Database.Database = testDBName
	testPool, err := createPool(ctx, &testCfg)
	if err != nil {
		dropTestDB(ctx, baseCfg, testDBName)
		return nil, fmt.Errorf("connect to test db: %w", err)
	}

	bunDB := bun.NewDB(stdlib.OpenDBFromPool(testPool), pgdialect.New())

	cleanup := func() {
		bunDB.Close()
		testPool.Close()
		dropTestDB(context.Background(), baseCfg, testDBName)
	}

	return &TestDB{
		Config:  &testCfg,
		Pool:    testPool,
		DB:      bunDB,
		Name:    testDBName,
		cleanup: cleanup,
	}, nil
}

// ensureTemplateDB creates the template database and migrates it, unless it
// already exists.
func ensureTemplateDB(ctx context.Context, baseCfg *config.Config, log *slog.Logger) error {
	adminCfg := *baseCfg
	adminCfg.Database.Database = "postgres"
	adminPool, err := createPool(ctx, &adminCfg)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer adminPool.Close()

	var exists bool
	err = adminPool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", templateDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check template exists: %w", err)
	}
	if exists {
		return nil
	}

	log.Info("creating template database", slog.String("name", templateDBName))
	if _, err := adminPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", templateDBName)); err != nil {
		return fmt.Errorf("create template db: %w", err)
	}

	templateCfg := *baseCfg
	templateCfg.Database.Database = templateDBName
	templatePool, err := createPool(ctx, &templateCfg)
	if err != nil {
		dropTestDB(ctx, baseCfg, templateDBName)
		return fmt.Errorf("connect to template db: %w", err)
	}
	defer templatePool.Close()

	sqldb := stdlib.OpenDBFromPool(templatePool)
	defer sqldb.Close()

	m, err := migrate.NewMigrator(sqldb, zap.NewNop())
	if err == nil {
		err = m.Up(ctx)
	}
	if err != nil {
		dropTestDB(ctx, baseCfg, templateDBName)
		return fmt.Errorf("migrate template db: %w", err)
	}
	return nil
}

func createPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = 5
	return pgxpool.NewWithConfig(ctx, poolConfig)
}

func dropTestDB(ctx context.Context, baseCfg *config.Config, dbName string) {
	adminCfg := *baseCfg
	adminCfg.Database.Database = "postgres"

	pool, err := createPool(ctx, &adminCfg)
	if err != nil {
		return
	}
	defer pool.Close()

	_, _ = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`, dbName)
	_, _ = pool.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
}

// domainTables are emptied between tests, children first.
var domainTables = []string{"graph_edges", "edges", "graphs", "nodes"}

// TruncateTables empties the domain tables and restarts their sequences.
// Bulk loads commit on their own connections, so tests cannot isolate
// themselves with a rolled back transaction.
func TruncateTables(ctx context.Context, db bun.IDB) error {
	_, err := db.NewRaw("TRUNCATE TABLE " + strings.Join(domainTables, ", ") + " RESTART IDENTITY CASCADE").Exec(ctx)
	if err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
