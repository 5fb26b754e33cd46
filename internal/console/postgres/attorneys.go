package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/observability/tracing"
)

const attorneyColumns = `id, full_name, email, bar_number, practice_areas, bio, photo_key, status,
	created_at, updated_at`

func scanAttorney(row rowScanner) (*console.Attorney, error) {
	var a console.Attorney
	if err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.BarNumber, pq.Array(&a.PracticeAreas),
		&a.Bio, &a.PhotoKey, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if a.PracticeAreas == nil {
		a.PracticeAreas = []string{}
	}
	return &a, nil
}

// CreateAttorney inserts an attorney. A taken email or bar number is ErrConflict.
func (s *Store) CreateAttorney(ctx context.Context, a *console.Attorney) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBInsert, "attorneys")
	defer func() { done(err) }()

	_, err = s.db.db.ExecContext(ctx, `INSERT INTO attorneys (`+attorneyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.FullName, a.Email, a.BarNumber, pq.Array(a.PracticeAreas), a.Bio, a.PhotoKey,
		string(a.Status), a.CreatedAt, a.UpdatedAt)
	return mapErr(err)
}

// GetAttorney loads one attorney.
func (s *Store) GetAttorney(ctx context.Context, id uuid.UUID) (a *console.Attorney, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "attorneys")
	defer func() { done(err) }()

	a, err = scanAttorney(s.db.db.QueryRowContext(ctx,
		`SELECT `+attorneyColumns+` FROM attorneys WHERE id = $1`, id))
	return a, mapErr(err)
}

// ListAttorneys returns attorneys by name, optionally filtered by status.
func (s *Store) ListAttorneys(ctx context.Context, status console.AttorneyStatus) (out []console.Attorney, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "attorneys")
	defer func() { done(err) }()

	rows, err := s.db.db.QueryContext(ctx, `SELECT `+attorneyColumns+` FROM attorneys
		WHERE ($1 = '' OR status = $1)
		ORDER BY full_name, id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list attorneys: %w", err)
	}
	defer rows.Close()

	out = []console.Attorney{}
	for rows.Next() {
		a, err := scanAttorney(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attorney: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// SetAttorneyStatus moves the attorney to next while its stored status is one of from.
func (s *Store) SetAttorneyStatus(ctx context.Context, id uuid.UUID, next console.AttorneyStatus, from []console.AttorneyStatus, at time.Time) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBUpdate, "attorneys")
	defer func() { done(err) }()

	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}
	res, err := s.db.db.ExecContext(ctx, `UPDATE attorneys SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)`,
		id, string(next), at, pq.Array(allowed))
	if err != nil {
		return mapErr(err)
	}
	return guardedOne(ctx, s.db.db, res, "attorneys", id)
}

// SetAttorneyPhoto stores the attorney's photo key and leaves every other column alone.
func (s *Store) SetAttorneyPhoto(ctx context.Context, id uuid.UUID, key string, at time.Time) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBUpdate, "attorneys")
	defer func() { done(err) }()

	res, err := s.db.db.ExecContext(ctx, `UPDATE attorneys SET photo_key = $2, updated_at = $3 WHERE id = $1`,
		id, key, at)
	if err != nil {
		return mapErr(err)
	}
	return affectedOne(res)
}

// CountAttorneysByStatus returns the number of attorneys per status.
func (s *Store) CountAttorneysByStatus(ctx context.Context) (counts map[console.AttorneyStatus]int, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "attorneys")
	defer func() { done(err) }()

	rows, err := s.db.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM attorneys GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = make(map[console.AttorneyStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err = rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[console.AttorneyStatus(status)] = n
	}
	return counts, rows.Err()
}
