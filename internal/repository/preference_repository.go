package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cappiels/chat-notify-api/internal/models"
)

// PreferenceTiers bundles the up-to-three records that apply to one
// (user, workspace, thread) lookup. Any of the three may be nil.
type PreferenceTiers struct {
	Global    *models.PreferenceRecord
	Workspace *models.PreferenceRecord
	Thread    *models.PreferenceRecord
}

type PreferenceRepository interface {
	// GetScope fetches the single record at an exact scope, sql.ErrNoRows
	// when none exists.
	GetScope(ctx context.Context, userID string, workspaceID, threadID *string) (models.PreferenceRecord, error)
	// Tiers fetches the global, workspace, and thread records relevant to a
	// lookup in one round trip.
	Tiers(ctx context.Context, userID string, workspaceID, threadID *string) (PreferenceTiers, error)
	// Upsert writes the record for its scope. Nil fields in the patch leave
	// the stored value untouched; they never reset it.
	Upsert(ctx context.Context, patch models.PreferenceRecord) (models.PreferenceRecord, error)
	// Unmute sets the scope's mute level to an explicit none and clears any
	// expiry.
	Unmute(ctx context.Context, userID string, workspaceID, threadID *string) error
	// ClearExpiredMutes unsets mute fields whose expiry has passed and
	// returns the number of rows touched.
	ClearExpiredMutes(ctx context.Context, now time.Time) (int64, error)
}

type preferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

const preferenceColumns = `id, user_id, workspace_id, thread_id,
	push_enabled, sound_enabled, badge_enabled, show_preview,
	notify_mentions, notify_direct_messages, notify_thread_replies,
	notify_task_assigned, notify_task_due, notify_task_completed,
	notify_workspace_invites, notify_every_message,
	mute_level, mute_until,
	dnd_enabled, dnd_start, dnd_end, dnd_timezone, dnd_allow_mentions,
	quiet_enabled, quiet_start, quiet_end, quiet_timezone, quiet_weekends_only,
	created_at, updated_at`

func (r *preferenceRepository) GetScope(ctx context.Context, userID string, workspaceID, threadID *string) (models.PreferenceRecord, error) {
	query := `
		SELECT ` + preferenceColumns + `
		FROM notify.preferences
		WHERE user_id = $1
		  AND workspace_id IS NOT DISTINCT FROM $2
		  AND thread_id IS NOT DISTINCT FROM $3
	`
	row := r.db.QueryRowContext(ctx, query, userID, workspaceID, threadID)
	return scanPreference(row)
}

func (r *preferenceRepository) Tiers(ctx context.Context, userID string, workspaceID, threadID *string) (PreferenceTiers, error) {
	query := `
		SELECT ` + preferenceColumns + `
		FROM notify.preferences
		WHERE user_id = $1
		  AND (
			(workspace_id IS NULL AND thread_id IS NULL)
			OR (workspace_id IS NOT DISTINCT FROM $2 AND thread_id IS NULL)
			OR (workspace_id IS NOT DISTINCT FROM $2 AND thread_id IS NOT DISTINCT FROM $3)
		  )
	`
	rows, err := r.db.QueryContext(ctx, query, userID, workspaceID, threadID)
	if err != nil {
		return PreferenceTiers{}, err
	}
	defer rows.Close()

	var tiers PreferenceTiers
	for rows.Next() {
		rec, err := scanPreference(rows)
		if err != nil {
			return PreferenceTiers{}, err
		}
		record := rec
		switch {
		case record.WorkspaceID == nil && record.ThreadID == nil:
			tiers.Global = &record
		case record.ThreadID == nil:
			if workspaceID != nil {
				tiers.Workspace = &record
			}
		default:
			if workspaceID != nil && threadID != nil {
				tiers.Thread = &record
			}
		}
	}
	return tiers, rows.Err()
}

func (r *preferenceRepository) Upsert(ctx context.Context, patch models.PreferenceRecord) (models.PreferenceRecord, error) {
	// COALESCE on the conflict branch keeps every field the patch left nil.
	query := `
		INSERT INTO notify.preferences (
			user_id, workspace_id, thread_id,
			push_enabled, sound_enabled, badge_enabled, show_preview,
			notify_mentions, notify_direct_messages, notify_thread_replies,
			notify_task_assigned, notify_task_due, notify_task_completed,
			notify_workspace_invites, notify_every_message,
			mute_level, mute_until,
			dnd_enabled, dnd_start, dnd_end, dnd_timezone, dnd_allow_mentions,
			quiet_enabled, quiet_start, quiet_end, quiet_timezone, quiet_weekends_only
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		ON CONFLICT (user_id, COALESCE(workspace_id, ''), COALESCE(thread_id, '')) DO UPDATE SET
			push_enabled = COALESCE(EXCLUDED.push_enabled, notify.preferences.push_enabled),
			sound_enabled = COALESCE(EXCLUDED.sound_enabled, notify.preferences.sound_enabled),
			badge_enabled = COALESCE(EXCLUDED.badge_enabled, notify.preferences.badge_enabled),
			show_preview = COALESCE(EXCLUDED.show_preview, notify.preferences.show_preview),
			notify_mentions = COALESCE(EXCLUDED.notify_mentions, notify.preferences.notify_mentions),
			notify_direct_messages = COALESCE(EXCLUDED.notify_direct_messages, notify.preferences.notify_direct_messages),
			notify_thread_replies = COALESCE(EXCLUDED.notify_thread_replies, notify.preferences.notify_thread_replies),
			notify_task_assigned = COALESCE(EXCLUDED.notify_task_assigned, notify.preferences.notify_task_assigned),
			notify_task_due = COALESCE(EXCLUDED.notify_task_due, notify.preferences.notify_task_due),
			notify_task_completed = COALESCE(EXCLUDED.notify_task_completed, notify.preferences.notify_task_completed),
			notify_workspace_invites = COALESCE(EXCLUDED.notify_workspace_invites, notify.preferences.notify_workspace_invites),
			notify_every_message = COALESCE(EXCLUDED.notify_every_message, notify.preferences.notify_every_message),
			mute_level = COALESCE(EXCLUDED.mute_level, notify.preferences.mute_level),
			mute_until = COALESCE(EXCLUDED.mute_until, notify.preferences.mute_until),
			dnd_enabled = COALESCE(EXCLUDED.dnd_enabled, notify.preferences.dnd_enabled),
			dnd_start = COALESCE(EXCLUDED.dnd_start, notify.preferences.dnd_start),
			dnd_end = COALESCE(EXCLUDED.dnd_end, notify.preferences.dnd_end),
			dnd_timezone = COALESCE(EXCLUDED.dnd_timezone, notify.preferences.dnd_timezone),
			dnd_allow_mentions = COALESCE(EXCLUDED.dnd_allow_mentions, notify.preferences.dnd_allow_mentions),
			quiet_enabled = COALESCE(EXCLUDED.quiet_enabled, notify.preferences.quiet_enabled),
			quiet_start = COALESCE(EXCLUDED.quiet_start, notify.preferences.quiet_start),
			quiet_end = COALESCE(EXCLUDED.quiet_end, notify.preferences.quiet_end),
			quiet_timezone = COALESCE(EXCLUDED.quiet_timezone, notify.preferences.quiet_timezone),
			quiet_weekends_only = COALESCE(EXCLUDED.quiet_weekends_only, notify.preferences.quiet_weekends_only),
			updated_at = NOW()
		RETURNING ` + preferenceColumns

	row := r.db.QueryRowContext(ctx, query,
		patch.UserID, patch.WorkspaceID, patch.ThreadID,
		patch.PushEnabled, patch.SoundEnabled, patch.BadgeEnabled, patch.ShowPreview,
		patch.NotifyMentions, patch.NotifyDirectMessages, patch.NotifyThreadReplies,
		patch.NotifyTaskAssigned, patch.NotifyTaskDue, patch.NotifyTaskCompleted,
		patch.NotifyWorkspaceInvites, patch.NotifyEveryMessage,
		patch.MuteLevel, patch.MuteUntil,
		patch.DNDEnabled, patch.DNDStart, patch.DNDEnd, patch.DNDTimezone, patch.DNDAllowMentions,
		patch.QuietEnabled, patch.QuietStart, patch.QuietEnd, patch.QuietTimezone, patch.QuietWeekendsOnly,
	)
	return scanPreference(row)
}

func (r *preferenceRepository) Unmute(ctx context.Context, userID string, workspaceID, threadID *string) error {
	const query = `
		INSERT INTO notify.preferences (user_id, workspace_id, thread_id, mute_level, mute_until)
		VALUES ($1, $2, $3, 'none', NULL)
		ON CONFLICT (user_id, COALESCE(workspace_id, ''), COALESCE(thread_id, '')) DO UPDATE SET
			mute_level = 'none',
			mute_until = NULL,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, userID, workspaceID, threadID)
	return err
}

func (r *preferenceRepository) ClearExpiredMutes(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE notify.preferences
		SET mute_level = NULL, mute_until = NULL, updated_at = NOW()
		WHERE mute_until IS NOT NULL AND mute_until < $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanPreference(scanner interface {
	Scan(dest ...interface{}) error
}) (models.PreferenceRecord, error) {
	var (
		rec         models.PreferenceRecord
		workspaceID sql.NullString
		threadID    sql.NullString
		muteLevel   sql.NullString
		muteUntil   sql.NullTime
	)
	if err := scanner.Scan(
		&rec.ID, &rec.UserID, &workspaceID, &threadID,
		&rec.PushEnabled, &rec.SoundEnabled, &rec.BadgeEnabled, &rec.ShowPreview,
		&rec.NotifyMentions, &rec.NotifyDirectMessages, &rec.NotifyThreadReplies,
		&rec.NotifyTaskAssigned, &rec.NotifyTaskDue, &rec.NotifyTaskCompleted,
		&rec.NotifyWorkspaceInvites, &rec.NotifyEveryMessage,
		&muteLevel, &muteUntil,
		&rec.DNDEnabled, &rec.DNDStart, &rec.DNDEnd, &rec.DNDTimezone, &rec.DNDAllowMentions,
		&rec.QuietEnabled, &rec.QuietStart, &rec.QuietEnd, &rec.QuietTimezone, &rec.QuietWeekendsOnly,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return models.PreferenceRecord{}, err
	}
	if workspaceID.Valid {
		val := workspaceID.String
		rec.WorkspaceID = &val
	}
	if threadID.Valid {
		val := threadID.String
		rec.ThreadID = &val
	}
	if muteLevel.Valid {
		level := models.MuteLevel(muteLevel.String)
		rec.MuteLevel = &level
	}
	if muteUntil.Valid {
		t := muteUntil.Time
		rec.MuteUntil = &t
	}
	return rec, nil
}
