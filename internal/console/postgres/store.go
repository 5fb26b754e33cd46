package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/repository"
)

// Store implements every console store interface on one database.
type Store struct {
	db *DB
}

var (
	_ console.IntakeStore   = (*Store)(nil)
	_ console.AttorneyStore = (*Store)(nil)
	_ console.PostStore     = (*Store)(nil)
	_ console.SettingsStore = (*Store)(nil)
)

// NewStore creates a store on db.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// mapErr turns driver errors into console store sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return console.ErrNotFound
	case repository.IsUniqueViolation(err), repository.IsForeignKeyViolation(err):
		return errors.Join(console.ErrConflict, err)
	}
	return err
}

// affectedOne returns ErrNotFound when res touched no rows.
func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return console.ErrNotFound
	}
	return nil
}

// guardedOne checks the result of a write guarded on the row's current status. When
// nothing was touched it tells a missing row (ErrNotFound) from one that moved on
// (ErrStaleStatus).
func guardedOne(ctx context.Context, q repository.SQLExecutor, res sql.Result, table string, id uuid.UUID) error {
	err := affectedOne(res)
	if !errors.Is(err, console.ErrNotFound) {
		return err
	}
	var one int
	if err := q.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = $1`, id).Scan(&one); err != nil {
		return mapErr(err)
	}
	return console.ErrStaleStatus
}
