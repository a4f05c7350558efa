package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cappiels/chat-notify-api/internal/models"
)

type TokenRepository interface {
	// Register upserts a token for a user: a re-register of a known (user,
	// token) pair reactivates it and refreshes last_used_at. A token belongs
	// to exactly one user at a time, so registering also deactivates the same
	// token under any other user (the device changed hands).
	Register(ctx context.Context, userID, token string, platform models.Platform, deviceName string) (models.DeviceToken, error)
	// Unregister soft-deactivates; the row is kept for audit.
	Unregister(ctx context.Context, userID, token string) error
	// Refresh rotates oldToken to newToken: the old row is deactivated and
	// the new token registered. A missing oldToken or an already-registered
	// newToken both resolve to the same end state, so a retried or
	// half-applied rotation cannot strand a client.
	Refresh(ctx context.Context, userID, oldToken, newToken string, platform models.Platform, deviceName string) (models.DeviceToken, error)
	// ActiveForUser returns every active token regardless of platform. An
	// empty slice is a normal result, not an error.
	ActiveForUser(ctx context.Context, userID string) ([]models.DeviceToken, error)
	// Deactivate flips one token inactive after the gateway reported it
	// permanently invalid.
	Deactivate(ctx context.Context, userID, token string) error
	// Touch refreshes last_used_at on heartbeat.
	Touch(ctx context.Context, userID, token string) error
	// DeactivateIdle deactivates active tokens unused since before the
	// cutoff and returns how many were affected.
	DeactivateIdle(ctx context.Context, before time.Time) (int64, error)
}

type tokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) TokenRepository {
	return &tokenRepository{db: db}
}

const deviceTokenColumns = "id, user_id, token, platform, device_name, active, last_used_at, created_at, updated_at"

func (r *tokenRepository) Register(ctx context.Context, userID, token string, platform models.Platform, deviceName string) (models.DeviceToken, error) {
	// The reclaim CTE enforces single ownership: the same token string under
	// any other user goes inactive in the same statement.
	const query = `
		WITH reclaimed AS (
			UPDATE notify.device_tokens
			SET active = FALSE, updated_at = NOW()
			WHERE token = $2 AND user_id <> $1 AND active
		)
		INSERT INTO notify.device_tokens (user_id, token, platform, device_name, active, last_used_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (user_id, token) DO UPDATE
		SET platform = EXCLUDED.platform,
		    device_name = EXCLUDED.device_name,
		    active = TRUE,
		    last_used_at = NOW(),
		    updated_at = NOW()
		RETURNING ` + deviceTokenColumns

	row := r.db.QueryRowContext(ctx, query, userID, strings.TrimSpace(token), platform, strings.TrimSpace(deviceName))
	return scanDeviceToken(row)
}

func (r *tokenRepository) Unregister(ctx context.Context, userID, token string) error {
	const query = `
		UPDATE notify.device_tokens
		SET active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND token = $2
	`
	_, err := r.db.ExecContext(ctx, query, userID, token)
	return err
}

func (r *tokenRepository) Refresh(ctx context.Context, userID, oldToken, newToken string, platform models.Platform, deviceName string) (models.DeviceToken, error) {
	// Deactivate-then-register rather than an in-place token swap: a retried
	// rotation whose new token already has a row would otherwise violate the
	// (user_id, token) uniqueness, and a missing old row is simply a no-op.
	if err := r.Unregister(ctx, userID, oldToken); err != nil {
		return models.DeviceToken{}, err
	}
	return r.Register(ctx, userID, newToken, platform, deviceName)
}

func (r *tokenRepository) ActiveForUser(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	const query = `
		SELECT ` + deviceTokenColumns + `
		FROM notify.device_tokens
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []models.DeviceToken
	for rows.Next() {
		tok, err := scanDeviceToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

func (r *tokenRepository) Deactivate(ctx context.Context, userID, token string) error {
	return r.Unregister(ctx, userID, token)
}

func (r *tokenRepository) Touch(ctx context.Context, userID, token string) error {
	const query = `
		UPDATE notify.device_tokens
		SET last_used_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND token = $2 AND active = TRUE
	`
	_, err := r.db.ExecContext(ctx, query, userID, token)
	return err
}

func (r *tokenRepository) DeactivateIdle(ctx context.Context, before time.Time) (int64, error) {
	const query = `
		UPDATE notify.device_tokens
		SET active = FALSE, updated_at = NOW()
		WHERE active = TRUE AND last_used_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanDeviceToken(scanner interface {
	Scan(dest ...interface{}) error
}) (models.DeviceToken, error) {
	var (
		tok        models.DeviceToken
		deviceName sql.NullString
	)
	if err := scanner.Scan(
		&tok.ID,
		&tok.UserID,
		&tok.Token,
		&tok.Platform,
		&deviceName,
		&tok.Active,
		&tok.LastUsedAt,
		&tok.CreatedAt,
		&tok.UpdatedAt,
	); err != nil {
		return models.DeviceToken{}, err
	}
	if deviceName.Valid {
		tok.DeviceName = deviceName.String
	}
	return tok, nil
}
