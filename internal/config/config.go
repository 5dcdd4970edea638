package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8000"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// APIPrefix is the root of all domain routes.
	APIPrefix string `env:"API_PREFIX" envDefault:"/api/v1"`

	Database  DatabaseConfig
	Transfer  TransferConfig
	Scheduler SchedulerConfig
	Otel      OtelConfig

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"2m"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// BodyLimit caps request bodies; bulk uploads are large.
	BodyLimit string `env:"SERVER_BODY_LIMIT" envDefault:"256M"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"postgres"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"graph"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// TransferConfig controls the COPY artifacts written during bulk loads.
type TransferConfig struct {
	// Dir receives one artifact per load stage. Empty means os.TempDir().
	Dir string `env:"TRANSFER_DIR" envDefault:""`

	// ArtifactTTL is the age after which the janitor removes a leftover artifact.
	ArtifactTTL time.Duration `env:"TRANSFER_ARTIFACT_TTL" envDefault:"1h"`
}

// SchedulerConfig holds scheduled task settings.
type SchedulerConfig struct {
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`

	// SweepInterval is how often stale transfer artifacts are removed.
	SweepInterval time.Duration `env:"TRANSFER_SWEEP_INTERVAL" envDefault:"15m"`

	// AnalyzeInterval is how often planner statistics of the domain tables
	// are refreshed. Zero disables the task.
	AnalyzeInterval time.Duration `env:"TABLE_ANALYZE_INTERVAL" envDefault:"1h"`

	// Cron overrides take precedence over the intervals when set.
	// Format: "second minute hour day-of-month month day-of-week".
	SweepSchedule   string `env:"TRANSFER_SWEEP_SCHEDULE" envDefault:""`
	AnalyzeSchedule string `env:"TABLE_ANALYZE_SCHEDULE" envDefault:""`
}

func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("transfer_dir", cfg.Transfer.Dir),
	)

	return cfg, nil
}
