// Package migrate applies versioned SQL migrations to the console database.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	// Postgres driver for Open.
	_ "github.com/lib/pq"

	"github.com/lexintake/console/pkg/observability/logger"
)

const (
	defaultSubcommand = "up"
	defaultSteps      = 1
)

// PendingMigration contains an unapplied migration entry for status output.
type PendingMigration struct {
	Version int64
	Name    string
}

// AppliedMigration is a migration recorded in schema_migrations.
type AppliedMigration struct {
	Version   int64
	Name      string
	AppliedAt time.Time
}

// Status lists applied and pending migrations in version order.
type Status struct {
	Applied []AppliedMigration
	Pending []PendingMigration
}

// Migrator applies and reverts migrations.
type Migrator interface {
	Up(ctx context.Context) (int, error)
	Down(ctx context.Context, steps int) (int, error)
	Status(ctx context.Context) (*Status, error)
}

// Open opens a Postgres handle for dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Run executes one migrate subcommand and logs its outcome. It returns the status
// for "status" and nil otherwise.
func Run(ctx context.Context, m Migrator, subcommand string, steps int, log logger.Logger) (*Status, error) {
	if m == nil {
		return nil, errors.New("migrator is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	switch subcommand {
	case "up":
		applied, err := m.Up(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("migrations applied", "count", applied)
		return nil, nil
	case "down":
		if steps <= 0 {
			return nil, errors.New("steps must be greater than zero")
		}
		reverted, err := m.Down(ctx, steps)
		if err != nil {
			return nil, err
		}
		log.Info("migrations reverted", "count", reverted, "steps", steps)
		return nil, nil
	case "status":
		status, err := m.Status(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("migration status", "applied", len(status.Applied), "pending", len(status.Pending))
		return status, nil
	default:
		return nil, fmt.Errorf("unknown migrate command %q (want up, down or status)", subcommand)
	}
}

// ParseArgs parses [up|down|status] [steps], defaulting to "up".
func ParseArgs(args []string) (string, int, error) {
	subcommand := defaultSubcommand
	if len(args) > 0 {
		subcommand = args[0]
	}

	steps := defaultSteps
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("invalid down steps %q", args[1])
		}
		steps = parsed
	}

	return subcommand, steps, nil
}
