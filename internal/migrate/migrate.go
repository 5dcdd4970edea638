// Package migrate applies the embedded goose migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/soldey/graph-api/migrations"
)

// Migrator runs schema migrations against one database.
type Migrator struct {
	provider *goose.Provider
	logger   *zap.Logger
}

func NewMigrator(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return &Migrator{
		provider: provider,
		logger:   logger.Named("migrator"),
	}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	m.logger.Info("running database migrations")
	results, err := m.provider.Up(ctx)
	m.logResults(results)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	m.logger.Info("migrations completed", zap.Int("applied", len(results)))
	return nil
}

// UpTo applies pending migrations up to and including version.
func (m *Migrator) UpTo(ctx context.Context, version int64) error {
	m.logger.Info("running database migrations", zap.Int64("target", version))
	results, err := m.provider.UpTo(ctx, version)
	m.logResults(results)
	if err != nil {
		return fmt.Errorf("run migrations to %d: %w", version, err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	res, err := m.provider.Down(ctx)
	if res != nil {
		m.logResults([]*goose.MigrationResult{res})
	}
	if err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Status logs every known migration with its state.
func (m *Migrator) Status(ctx context.Context) error {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	for _, s := range statuses {
		m.logger.Info("migration",
			zap.Int64("version", s.Source.Version),
			zap.String("path", s.Source.Path),
			zap.String("state", string(s.State)),
			zap.Time("applied_at", s.AppliedAt),
		)
	}
	return nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

func (m *Migrator) logResults(results []*goose.MigrationResult) {
	for _, r := range results {
		fields := []zap.Field{
			zap.Int64("version", r.Source.Version),
			zap.String("path", r.Source.Path),
			zap.Duration("duration", r.Duration),
		}
		if r.Error != nil {
			m.logger.Error("migration failed", append(fields, zap.Error(r.Error))...)
			continue
		}
		m.logger.Info("migration applied", fields...)
	}
}
