// Package postgres persists the console's records in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/migrate"
	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/observability/tracing"
)

// Migrations holds the console schema, applied by pkg/migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the SQL files.
const MigrationsDir = "migrations"

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// DB wraps the connection pool with a per-query timeout.
type DB struct {
	db           *sql.DB
	queryTimeout time.Duration
	log          logger.Logger
}

// Open connects to PostgreSQL with pooling and verifies the connection.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := migrate.Open(pingCtx, cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	log.Info("postgres connection established",
		"max_open_conns", cfg.MaxOpenConns,
		"max_idle_conns", cfg.MaxIdleConns,
		"conn_max_lifetime", cfg.ConnMaxLifetime,
	)
	return New(db, cfg.QueryTimeout, log), nil
}

// New wraps an existing handle.
func New(db *sql.DB, queryTimeout time.Duration, log logger.Logger) *DB {
	if log == nil {
		log = logger.NewNop()
	}
	return &DB{db: db, queryTimeout: queryTimeout, log: log}
}

// SQL returns the underlying handle.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Migrator returns a migrator for the embedded console schema.
func (d *DB) Migrator() (*migrate.SQLManager, error) {
	return migrate.NewSQLManager(d.db, Migrations, MigrationsDir, d.log)
}

// HealthCheck pings the database.
func (d *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		d.log.Error("postgres health check failed", "error", err)
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Close closes the pool.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close database connection: %w", err)
	}
	d.log.Info("postgres connection closed")
	return nil
}

func (d *DB) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

// begin starts a traced, time-bounded database call.
func (d *DB) begin(ctx context.Context, op tracing.SpanOperation, table string) (context.Context, func(error)) {
	ctx, span := tracing.StartDatabaseSpan(ctx, op, table)
	ctx, cancel := d.withQueryTimeout(ctx)
	return ctx, func(err error) {
		cancel()
		endSpan(span, err)
	}
}

// endSpan treats a missing row as a successful lookup.
func endSpan(span trace.Span, err error) {
	if errors.Is(err, console.ErrNotFound) {
		err = nil
	}
	tracing.End(span, err)
}
