package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cappiels/chat-notify-api/internal/models"
)

type QueueRepository interface {
	// Insert persists a freshly-decided intent with status pending.
	Insert(ctx context.Context, intent models.NotificationIntent) (models.NotificationIntent, error)
	// ClaimBatch atomically selects up to limit due pending items, ordered by
	// priority then creation time, and transitions them to processing. Rows
	// locked by a concurrent claimer are skipped, so overlapping workers can
	// never process the same item twice.
	ClaimBatch(ctx context.Context, limit int, now time.Time) ([]models.NotificationIntent, error)
	// Finish records the terminal outcome of one processed item.
	Finish(ctx context.Context, id string, status models.IntentStatus, retryDelta int, deviceErrors []models.DeviceFailure) error
	// Get fetches one intent by id.
	Get(ctx context.Context, id string) (models.NotificationIntent, error)
	// DeleteOlderThan purges terminal items created before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type queueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) QueueRepository {
	return &queueRepository{db: db}
}

const intentColumns = `id, user_id, workspace_id, thread_id, message_id, type, title, body, data,
	badge, priority, status, retry_count, device_errors, scheduled_for, created_at, processed_at`

func (r *queueRepository) Insert(ctx context.Context, intent models.NotificationIntent) (models.NotificationIntent, error) {
	const query = `
		INSERT INTO notify.queue_items
			(user_id, workspace_id, thread_id, message_id, type, title, body, data, badge, priority, status, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending', $11)
		RETURNING ` + intentColumns

	var data interface{}
	if len(intent.Data) > 0 {
		data = []byte(intent.Data)
	}
	row := r.db.QueryRowContext(ctx, query,
		intent.UserID, intent.WorkspaceID, intent.ThreadID, intent.MessageID,
		intent.Type, intent.Title, intent.Body, data,
		intent.Badge, intent.Priority, intent.ScheduledFor,
	)
	return scanIntent(row)
}

func (r *queueRepository) ClaimBatch(ctx context.Context, limit int, now time.Time) ([]models.NotificationIntent, error) {
	if limit <= 0 {
		limit = 25
	}
	const query = `
		UPDATE notify.queue_items
		SET status = 'processing'
		WHERE id IN (
			SELECT id
			FROM notify.queue_items
			WHERE status = 'pending' AND scheduled_for <= $1
			ORDER BY CASE priority WHEN 'high' THEN 0 ELSE 1 END, created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + intentColumns

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intents []models.NotificationIntent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

func (r *queueRepository) Finish(ctx context.Context, id string, status models.IntentStatus, retryDelta int, deviceErrors []models.DeviceFailure) error {
	const query = `
		UPDATE notify.queue_items
		SET status = $2,
		    retry_count = retry_count + $3,
		    device_errors = $4,
		    processed_at = NOW()
		WHERE id = $1
	`
	var ledger interface{}
	if len(deviceErrors) > 0 {
		bytes, err := json.Marshal(deviceErrors)
		if err != nil {
			return fmt.Errorf("marshal device errors: %w", err)
		}
		ledger = bytes
	}
	_, err := r.db.ExecContext(ctx, query, id, status, retryDelta, ledger)
	return err
}

func (r *queueRepository) Get(ctx context.Context, id string) (models.NotificationIntent, error) {
	const query = `SELECT ` + intentColumns + ` FROM notify.queue_items WHERE id = $1`
	return scanIntent(r.db.QueryRowContext(ctx, query, id))
}

func (r *queueRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM notify.queue_items
		WHERE created_at < $1 AND status IN ('sent', 'failed', 'cancelled')
	`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanIntent(scanner interface {
	Scan(dest ...interface{}) error
}) (models.NotificationIntent, error) {
	var (
		intent      models.NotificationIntent
		dataRaw     []byte
		errorsRaw   []byte
		processedAt sql.NullTime
	)
	if err := scanner.Scan(
		&intent.ID, &intent.UserID, &intent.WorkspaceID, &intent.ThreadID, &intent.MessageID,
		&intent.Type, &intent.Title, &intent.Body, &dataRaw,
		&intent.Badge, &intent.Priority, &intent.Status, &intent.RetryCount,
		&errorsRaw, &intent.ScheduledFor, &intent.CreatedAt, &processedAt,
	); err != nil {
		return models.NotificationIntent{}, err
	}
	if len(dataRaw) > 0 {
		intent.Data = dataRaw
	}
	if len(errorsRaw) > 0 {
		if err := json.Unmarshal(errorsRaw, &intent.DeviceErrors); err != nil {
			return models.NotificationIntent{}, fmt.Errorf("unmarshal device errors: %w", err)
		}
	}
	if processedAt.Valid {
		t := processedAt.Time
		intent.ProcessedAt = &t
	}
	return intent, nil
}
