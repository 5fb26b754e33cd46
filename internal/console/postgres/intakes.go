package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/observability/tracing"
	"github.com/lexintake/console/pkg/repository"
)

const intakeColumns = `id, client_name, client_email, phone, practice_area, description, status,
	assigned_attorney_id, created_at, updated_at`

func scanIntake(row rowScanner) (*console.IntakeRequest, error) {
	var (
		req      console.IntakeRequest
		attorney uuid.NullUUID
	)
	if err := row.Scan(&req.ID, &req.ClientName, &req.ClientEmail, &req.Phone, &req.PracticeArea,
		&req.Description, &req.Status, &attorney, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	if attorney.Valid {
		req.AssignedAttorneyID = &attorney.UUID
	}
	return &req, nil
}

// CreateIntake inserts a request.
func (s *Store) CreateIntake(ctx context.Context, req *console.IntakeRequest) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBInsert, "intake_requests")
	defer func() { done(err) }()

	_, err = s.db.db.ExecContext(ctx, `INSERT INTO intake_requests (`+intakeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		req.ID, req.ClientName, req.ClientEmail, req.Phone, req.PracticeArea, req.Description,
		string(req.Status), req.AssignedAttorneyID, req.CreatedAt, req.UpdatedAt)
	return mapErr(err)
}

// GetIntake loads one request.
func (s *Store) GetIntake(ctx context.Context, id uuid.UUID) (req *console.IntakeRequest, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "intake_requests")
	defer func() { done(err) }()

	req, err = scanIntake(s.db.db.QueryRowContext(ctx,
		`SELECT `+intakeColumns+` FROM intake_requests WHERE id = $1`, id))
	return req, mapErr(err)
}

// ListIntakes returns one page, newest first, and the number of matching rows.
func (s *Store) ListIntakes(ctx context.Context, filter console.IntakeFilter) (items []console.IntakeRequest, total int, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "intake_requests")
	defer func() { done(err) }()

	page := filter.Page.Normalize()
	status := string(filter.Status)

	if err = s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM intake_requests WHERE ($1 = '' OR status = $1)`, status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count intake requests: %w", err)
	}

	rows, err := s.db.db.QueryContext(ctx, `SELECT `+intakeColumns+` FROM intake_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, status, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list intake requests: %w", err)
	}
	defer rows.Close()

	items = make([]console.IntakeRequest, 0, page.Limit())
	for rows.Next() {
		req, err := scanIntake(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan intake request: %w", err)
		}
		items = append(items, *req)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateIntake stores the request's mutable fields. When the request is assigned, the
// attorney row is share-locked and must still be active, else ErrConflict. The write only
// lands while the stored status is still from.
func (s *Store) UpdateIntake(ctx context.Context, req *console.IntakeRequest, from console.IntakeStatus) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBUpdate, "intake_requests")
	defer func() { done(err) }()

	return repository.WithTransaction(ctx, s.db.db, func(ctx context.Context, tx repository.SQLExecutor) error {
		if req.Status == console.IntakeAssigned && req.AssignedAttorneyID != nil {
			var status string
			err := tx.QueryRowContext(ctx,
				`SELECT status FROM attorneys WHERE id = $1 FOR SHARE`, *req.AssignedAttorneyID,
			).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: attorney no longer exists", console.ErrConflict)
			}
			if err != nil {
				return err
			}
			if console.AttorneyStatus(status) != console.AttorneyActive {
				return fmt.Errorf("%w: attorney is %s", console.ErrConflict, status)
			}
		}

		res, err := tx.ExecContext(ctx, `UPDATE intake_requests
			SET status = $2, assigned_attorney_id = $3, updated_at = $4
			WHERE id = $1 AND status = $5`,
			req.ID, string(req.Status), req.AssignedAttorneyID, req.UpdatedAt, string(from))
		if err != nil {
			return mapErr(err)
		}
		return guardedOne(ctx, tx, res, "intake_requests", req.ID)
	})
}

// DeleteIntake removes a request.
func (s *Store) DeleteIntake(ctx context.Context, id uuid.UUID) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBDelete, "intake_requests")
	defer func() { done(err) }()

	res, err := s.db.db.ExecContext(ctx, `DELETE FROM intake_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// CountIntakesByStatus returns the number of requests per status.
func (s *Store) CountIntakesByStatus(ctx context.Context) (counts map[console.IntakeStatus]int, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "intake_requests")
	defer func() { done(err) }()

	rows, err := s.db.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM intake_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts = make(map[console.IntakeStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err = rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[console.IntakeStatus(status)] = n
	}
	return counts, rows.Err()
}
