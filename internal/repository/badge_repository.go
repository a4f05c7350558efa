package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cappiels/chat-notify-api/internal/models"
)

type BadgeRepository interface {
	// Adjust atomically adds delta (which may be negative) to one category's
	// counter, clamped so the stored value never drops below zero.
	Adjust(ctx context.Context, userID, workspaceID string, category models.BadgeCategory, delta int) (models.BadgeCount, error)
	// Get returns the counters for one workspace; a missing row reads as all
	// zeroes.
	Get(ctx context.Context, userID, workspaceID string) (models.BadgeCount, error)
	// Total sums every category across all workspaces for the user. It feeds
	// the badge number stamped on intents at enqueue time.
	Total(ctx context.Context, userID string) (int, error)
	// ListForUser returns all workspace rows for the user.
	ListForUser(ctx context.Context, userID string) ([]models.BadgeCount, error)
}

type badgeRepository struct {
	db *sql.DB
}

func NewBadgeRepository(db *sql.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

const badgeColumns = "user_id, workspace_id, unread_messages, mentions, direct_messages, tasks, updated_at"

// badgeColumn maps a category to its column name. Categories come from a
// closed set; anything else is a programming error surfaced to the caller.
func badgeColumn(category models.BadgeCategory) (string, error) {
	switch category {
	case models.BadgeUnreadMessages:
		return "unread_messages", nil
	case models.BadgeMentions:
		return "mentions", nil
	case models.BadgeDirectMessages:
		return "direct_messages", nil
	case models.BadgeTasks:
		return "tasks", nil
	}
	return "", fmt.Errorf("unknown badge category %q", category)
}

func (r *badgeRepository) Adjust(ctx context.Context, userID, workspaceID string, category models.BadgeCategory, delta int) (models.BadgeCount, error) {
	column, err := badgeColumn(category)
	if err != nil {
		return models.BadgeCount{}, err
	}
	query := fmt.Sprintf(`
		INSERT INTO notify.badge_counts (user_id, workspace_id, %[1]s)
		VALUES ($1, $2, GREATEST(0, $3))
		ON CONFLICT (user_id, workspace_id) DO UPDATE SET
			%[1]s = GREATEST(0, notify.badge_counts.%[1]s + $3),
			updated_at = NOW()
		RETURNING `+badgeColumns, column)

	row := r.db.QueryRowContext(ctx, query, userID, workspaceID, delta)
	return scanBadgeCount(row)
}

func (r *badgeRepository) Get(ctx context.Context, userID, workspaceID string) (models.BadgeCount, error) {
	const query = `
		SELECT ` + badgeColumns + `
		FROM notify.badge_counts
		WHERE user_id = $1 AND workspace_id = $2
	`
	count, err := scanBadgeCount(r.db.QueryRowContext(ctx, query, userID, workspaceID))
	if err == sql.ErrNoRows {
		return models.BadgeCount{UserID: userID, WorkspaceID: workspaceID}, nil
	}
	return count, err
}

func (r *badgeRepository) Total(ctx context.Context, userID string) (int, error) {
	const query = `
		SELECT COALESCE(SUM(unread_messages + mentions + direct_messages + tasks), 0)
		FROM notify.badge_counts
		WHERE user_id = $1
	`
	var total int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *badgeRepository) ListForUser(ctx context.Context, userID string) ([]models.BadgeCount, error) {
	const query = `
		SELECT ` + badgeColumns + `
		FROM notify.badge_counts
		WHERE user_id = $1
		ORDER BY workspace_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.BadgeCount
	for rows.Next() {
		count, err := scanBadgeCount(rows)
		if err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

func scanBadgeCount(scanner interface {
	Scan(dest ...interface{}) error
}) (models.BadgeCount, error) {
	var count models.BadgeCount
	if err := scanner.Scan(
		&count.UserID,
		&count.WorkspaceID,
		&count.UnreadMessages,
		&count.Mentions,
		&count.DirectMessages,
		&count.Tasks,
		&count.UpdatedAt,
	); err != nil {
		return models.BadgeCount{}, err
	}
	return count, nil
}
