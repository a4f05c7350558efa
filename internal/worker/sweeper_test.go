package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cappiels/chat-notify-api/internal/models"
	"github.com/cappiels/chat-notify-api/internal/repository"
)

func TestSweeperRun(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)

	tokens := repository.NewMemoryTokenRepository()
	prefs := repository.NewMemoryPreferenceRepository()
	queue := repository.NewMemoryQueueRepository()
	logs := repository.NewMemoryDeliveryLogRepository()

	_, err := tokens.Register(ctx, "u1", "tok-a", models.PlatformIOS, "")
	require.NoError(t, err)
	_, err = tokens.Register(ctx, "u1", "tok-b", models.PlatformAndroid, "")
	require.NoError(t, err)

	sweeper := NewSweeper(RetentionConfig{}, tokens, prefs, queue, logs, zerolog.Nop())
	sweeper.now = func() time.Time { return now }

	// An expired mute and a live one.
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	level := models.MuteAll
	ws1, ws2 := "ws1", "ws2"
	_, err = prefs.Upsert(ctx, models.PreferenceRecord{UserID: "u1", WorkspaceID: &ws1, MuteLevel: &level, MuteUntil: &past})
	require.NoError(t, err)
	_, err = prefs.Upsert(ctx, models.PreferenceRecord{UserID: "u1", WorkspaceID: &ws2, MuteLevel: &level, MuteUntil: &future})
	require.NoError(t, err)

	// One terminal intent past retention, one recent, one still pending.
	old, err := queue.Insert(ctx, models.NotificationIntent{UserID: "u1", Type: models.TypeMention})
	require.NoError(t, err)
	require.NoError(t, queue.Finish(ctx, old.ID, models.StatusSent, 0, nil))
	recent, err := queue.Insert(ctx, models.NotificationIntent{UserID: "u1", Type: models.TypeMention})
	require.NoError(t, err)
	require.NoError(t, queue.Finish(ctx, recent.ID, models.StatusSent, 0, nil))
	pending, err := queue.Insert(ctx, models.NotificationIntent{UserID: "u1", Type: models.TypeMention})
	require.NoError(t, err)

	sweeper.Run(ctx)

	// Default retention is 90/30/90 days; nothing above is old enough except
	// the expired mute, which clears regardless of age.
	rec, err := prefs.GetScope(ctx, "u1", &ws1, nil)
	require.NoError(t, err)
	assert.Nil(t, rec.MuteLevel, "expired mute cleared")
	assert.Nil(t, rec.MuteUntil)

	rec, err = prefs.GetScope(ctx, "u1", &ws2, nil)
	require.NoError(t, err)
	require.NotNil(t, rec.MuteLevel, "live mute untouched")

	_, err = queue.Get(ctx, pending.ID)
	assert.NoError(t, err, "pending items are never purged")
	assert.Equal(t, 3, queue.Len())

	active, err := tokens.ActiveForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, active, 2, "recently used tokens stay active")
}

func TestSweeperPurgesOldTerminalItems(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	queue := repository.NewMemoryQueueRepository()
	old, err := queue.Insert(ctx, models.NotificationIntent{UserID: "u1", Type: models.TypeMention})
	require.NoError(t, err)
	require.NoError(t, queue.Finish(ctx, old.ID, models.StatusFailed, 1, nil))

	sweeper := NewSweeper(RetentionConfig{},
		repository.NewMemoryTokenRepository(),
		repository.NewMemoryPreferenceRepository(),
		queue,
		repository.NewMemoryDeliveryLogRepository(),
		zerolog.Nop())
	// Pretend the sweep runs far in the future so retention has elapsed.
	sweeper.now = func() time.Time { return now.AddDate(0, 0, 31) }

	sweeper.Run(ctx)
	assert.Zero(t, queue.Len())
}

func TestSweeperRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sweeper := NewSweeper(RetentionConfig{},
		repository.NewMemoryTokenRepository(),
		repository.NewMemoryPreferenceRepository(),
		repository.NewMemoryQueueRepository(),
		repository.NewMemoryDeliveryLogRepository(),
		zerolog.Nop())

	sweeper.Run(ctx)
	sweeper.Run(ctx)
}
