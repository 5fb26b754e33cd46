package postgres

import (
	"context"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/observability/tracing"
)

// GetSMTPSettings loads the settings row, or ErrNotFound when none was saved.
func (s *Store) GetSMTPSettings(ctx context.Context) (settings *console.SMTPSettings, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "smtp_settings")
	defer func() { done(err) }()

	var out console.SMTPSettings
	err = s.db.db.QueryRowContext(ctx, `SELECT host, port, username, password, from_address, enable_tls, updated_at
		FROM smtp_settings WHERE id = 1`,
	).Scan(&out.Host, &out.Port, &out.Username, &out.Password, &out.FromAddress, &out.EnableTLS, &out.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

// SaveSMTPSettings inserts or replaces the settings row.
func (s *Store) SaveSMTPSettings(ctx context.Context, settings *console.SMTPSettings) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBUpdate, "smtp_settings")
	defer func() { done(err) }()

	_, err = s.db.db.ExecContext(ctx, `INSERT INTO smtp_settings
		(id, host, port, username, password, from_address, enable_tls, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			host = EXCLUDED.host, port = EXCLUDED.port, username = EXCLUDED.username,
			password = EXCLUDED.password, from_address = EXCLUDED.from_address,
			enable_tls = EXCLUDED.enable_tls, updated_at = EXCLUDED.updated_at`,
		settings.Host, settings.Port, settings.Username, settings.Password, settings.FromAddress,
		settings.EnableTLS, settings.UpdatedAt)
	return err
}
