package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/observability/tracing"
)

var migrationNamePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_\-]+)\.(up|down)\.sql$`)

// advisoryLockID serializes concurrent migrators across processes.
const advisoryLockID int64 = 72_690_417

// Migration represents a database migration with up and down SQL scripts.
type Migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// SQLManager applies migrations loaded from an fs.FS, one transaction per migration,
// while holding a Postgres advisory lock.
type SQLManager struct {
	db         *sql.DB
	migrations []Migration
	log        logger.Logger
}

var _ Migrator = (*SQLManager)(nil)

// NewSQLManager loads migrations from dir in files.
func NewSQLManager(db *sql.DB, files fs.FS, dir string, log logger.Logger) (*SQLManager, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if files == nil {
		return nil, errors.New("migration files filesystem is required")
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("migration directory is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	migrations, err := loadMigrations(files, dir)
	if err != nil {
		return nil, err
	}
	return &SQLManager{db: db, migrations: migrations, log: log}, nil
}

// Migrations returns the loaded migrations in version order.
func (m *SQLManager) Migrations() []Migration {
	return append([]Migration(nil), m.migrations...)
}

// Up applies all pending migrations in order.
func (m *SQLManager) Up(ctx context.Context) (applied int, err error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBTx, "schema_migrations")
	defer func() { tracing.End(span, err) }()

	err = m.withLock(ctx, func(conn *sql.Conn) error {
		done, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		for _, migration := range m.migrations {
			if _, ok := done[migration.Version]; ok {
				continue
			}
			if err := m.apply(ctx, conn, migration); err != nil {
				return err
			}
			m.log.Info("migration applied", "version", migration.Version, "name", migration.Name)
			applied++
		}
		return nil
	})
	return applied, err
}

// Down reverts the newest steps applied migrations.
func (m *SQLManager) Down(ctx context.Context, steps int) (reverted int, err error) {
	if steps <= 0 {
		steps = 1
	}
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBTx, "schema_migrations")
	defer func() { tracing.End(span, err) }()

	err = m.withLock(ctx, func(conn *sql.Conn) error {
		done, err := appliedVersions(ctx, conn)
		if err != nil {
			return err
		}
		versions := make([]int64, 0, len(done))
		for version := range done {
			versions = append(versions, version)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
		if steps > len(versions) {
			steps = len(versions)
		}

		for _, version := range versions[:steps] {
			migration, ok := m.migrationByVersion(version)
			if !ok {
				return fmt.Errorf("migration definition not found for applied version %d", version)
			}
			if strings.TrimSpace(migration.DownSQL) == "" {
				return fmt.Errorf("down migration missing for version %d", version)
			}
			if err := m.revert(ctx, conn, migration); err != nil {
				return err
			}
			m.log.Info("migration reverted", "version", migration.Version, "name", migration.Name)
			reverted++
		}
		return nil
	})
	return reverted, err
}

// Status reports applied and pending migrations.
func (m *SQLManager) Status(ctx context.Context) (status *Status, err error) {
	ctx, span := tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBQuery, "schema_migrations")
	defer func() { tracing.End(span, err) }()

	if err := ensureMetadataTable(ctx, m.db); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	defer rows.Close()

	status = &Status{Applied: []AppliedMigration{}, Pending: []PendingMigration{}}
	done := make(map[int64]struct{})
	for rows.Next() {
		var a AppliedMigration
		if err := rows.Scan(&a.Version, &a.Name, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		done[a.Version] = struct{}{}
		status.Applied = append(status.Applied, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}

	for _, migration := range m.migrations {
		if _, ok := done[migration.Version]; !ok {
			status.Pending = append(status.Pending, PendingMigration{Version: migration.Version, Name: migration.Name})
		}
	}
	return status, nil
}

func (m *SQLManager) withLock(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, advisoryLockID); err != nil {
			m.log.Warn("release migration lock failed", "error", err)
		}
	}()

	if err := ensureMetadataTable(ctx, conn); err != nil {
		return err
	}
	return fn(conn)
}

func (m *SQLManager) apply(ctx context.Context, conn *sql.Conn, migration Migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration transaction %d: %w", migration.Version, err)
	}
	if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %d_%s: %w", migration.Version, migration.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, NOW())`, migration.Version, migration.Name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %d: %w", migration.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", migration.Version, err)
	}
	return nil
}

func (m *SQLManager) revert(ctx context.Context, conn *sql.Conn, migration Migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rollback transaction %d: %w", migration.Version, err)
	}
	if _, err := tx.ExecContext(ctx, migration.DownSQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("rollback migration %d_%s: %w", migration.Version, migration.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, migration.Version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete migration record %d: %w", migration.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollback %d: %w", migration.Version, err)
	}
	return nil
}

func (m *SQLManager) migrationByVersion(version int64) (Migration, bool) {
	for _, migration := range m.migrations {
		if migration.Version == version {
			return migration, true
		}
	}
	return Migration{}, false
}

type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const createMetadataTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func ensureMetadataTable(ctx context.Context, db execQueryer) error {
	if _, err := db.ExecContext(ctx, createMetadataTable); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, db execQueryer) (map[int64]struct{}, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	defer rows.Close()

	versions := make(map[int64]struct{})
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration version: %w", err)
		}
		versions[version] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

func loadMigrations(files fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("read migration files: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matches := migrationNamePattern.FindStringSubmatch(entry.Name())
		if len(matches) != 4 {
			continue
		}

		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version %q: %w", matches[1], err)
		}
		payload, err := fs.ReadFile(files, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration file %q: %w", entry.Name(), err)
		}

		item, ok := byVersion[version]
		if !ok {
			item = &Migration{Version: version, Name: matches[2]}
			byVersion[version] = item
		} else if item.Name != matches[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, item.Name, matches[2])
		}
		if matches[3] == "up" {
			item.UpSQL = string(payload)
		} else {
			item.DownSQL = string(payload)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, item := range byVersion {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("missing up migration for version %d", item.Version)
		}
		migrations = append(migrations, *item)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
