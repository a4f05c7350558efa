package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cappiels/chat-notify-api/internal/models"
)

type DeliveryLogRepository interface {
	// Insert appends one attempt record. Entries are never updated.
	Insert(ctx context.Context, entry models.DeliveryLogEntry) (models.DeliveryLogEntry, error)
	// ListForIntent returns the attempts recorded for one queue item, oldest
	// first.
	ListForIntent(ctx context.Context, intentID string) ([]models.DeliveryLogEntry, error)
	// DeleteOlderThan purges entries created before the cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type deliveryLogRepository struct {
	db *sql.DB
}

func NewDeliveryLogRepository(db *sql.DB) DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

const deliveryLogColumns = "id, intent_id, token, platform, success, message_id, error_code, error_message, created_at"

func (r *deliveryLogRepository) Insert(ctx context.Context, entry models.DeliveryLogEntry) (models.DeliveryLogEntry, error) {
	const query = `
		INSERT INTO notify.delivery_log (intent_id, token, platform, success, message_id, error_code, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + deliveryLogColumns

	row := r.db.QueryRowContext(ctx, query,
		entry.IntentID, entry.Token, entry.Platform, entry.Success,
		nullIfEmpty(entry.MessageID), nullIfEmpty(entry.ErrorCode), nullIfEmpty(entry.ErrorMessage),
	)
	return scanDeliveryLog(row)
}

func (r *deliveryLogRepository) ListForIntent(ctx context.Context, intentID string) ([]models.DeliveryLogEntry, error) {
	const query = `
		SELECT ` + deliveryLogColumns + `
		FROM notify.delivery_log
		WHERE intent_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, intentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.DeliveryLogEntry
	for rows.Next() {
		entry, err := scanDeliveryLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *deliveryLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM notify.delivery_log WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanDeliveryLog(scanner interface {
	Scan(dest ...interface{}) error
}) (models.DeliveryLogEntry, error) {
	var (
		entry        models.DeliveryLogEntry
		messageID    sql.NullString
		errorCode    sql.NullString
		errorMessage sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID, &entry.IntentID, &entry.Token, &entry.Platform, &entry.Success,
		&messageID, &errorCode, &errorMessage, &entry.CreatedAt,
	); err != nil {
		return models.DeliveryLogEntry{}, err
	}
	entry.MessageID = messageID.String
	entry.ErrorCode = errorCode.String
	entry.ErrorMessage = errorMessage.String
	return entry, nil
}
