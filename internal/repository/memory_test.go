package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cappiels/chat-notify-api/internal/models"
)

func TestTokenRegisterReactivates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()

	_, err := repo.Register(ctx, "u1", "tok", models.PlatformIOS, "iPhone")
	require.NoError(t, err)
	require.NoError(t, repo.Unregister(ctx, "u1", "tok"))

	active, err := repo.ActiveForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, active)

	// Re-registering the same (user, token) pair revives it in place.
	tok, err := repo.Register(ctx, "u1", "tok", models.PlatformIOS, "iPhone 15")
	require.NoError(t, err)
	assert.True(t, tok.Active)
	assert.Equal(t, "iPhone 15", tok.DeviceName)

	active, err = repo.ActiveForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestTokenRefreshFallsBackToRegister(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()

	// Refresh of a token we never saw registers the new one outright.
	tok, err := repo.Refresh(ctx, "u1", "never-registered", "fresh", models.PlatformAndroid, "Pixel")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.Token)
	assert.True(t, tok.Active)

	active, err := repo.ActiveForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "fresh", active[0].Token)
}

func TestTokenRefreshRotates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()

	_, err := repo.Register(ctx, "u1", "old", models.PlatformIOS, "iPhone")
	require.NoError(t, err)
	_, err = repo.Refresh(ctx, "u1", "old", "new", models.PlatformIOS, "iPhone")
	require.NoError(t, err)

	active, err := repo.ActiveForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1, "refresh must not leave the old token behind")
	assert.Equal(t, "new", active[0].Token)
}

func TestTokenRefreshRetriedRotation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()

	// A half-applied earlier rotation left both tokens registered. Retrying
	// the rotation must settle on the new token, not error on the existing
	// row.
	_, err := repo.Register(ctx, "u1", "old", models.PlatformIOS, "iPhone")
	require.NoError(t, err)
	_, err = repo.Register(ctx, "u1", "new", models.PlatformIOS, "iPhone")
	require.NoError(t, err)

	tok, err := repo.Refresh(ctx, "u1", "old", "new", models.PlatformIOS, "iPhone")
	require.NoError(t, err)
	assert.Equal(t, "new", tok.Token)
	assert.True(t, tok.Active)

	active, err := repo.ActiveForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "new", active[0].Token)
}

func TestTokenRegisterReclaimsFromPreviousOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()

	_, err := repo.Register(ctx, "user-a", "device-token-1", models.PlatformIOS, "iPhone")
	require.NoError(t, err)

	// The device changed hands; registering under the new owner takes the
	// token away from the old one.
	_, err = repo.Register(ctx, "user-b", "device-token-1", models.PlatformIOS, "iPhone")
	require.NoError(t, err)

	active, err := repo.ActiveForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, active, "a token never stays active under two users")

	active, err = repo.ActiveForUser(ctx, "user-b")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "device-token-1", active[0].Token)
}

func TestTokenRefreshReclaimsFromPreviousOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()

	_, err := repo.Register(ctx, "user-a", "rotated-token", models.PlatformAndroid, "Pixel")
	require.NoError(t, err)
	_, err = repo.Register(ctx, "user-b", "stale-token", models.PlatformAndroid, "Pixel")
	require.NoError(t, err)

	_, err = repo.Refresh(ctx, "user-b", "stale-token", "rotated-token", models.PlatformAndroid, "Pixel")
	require.NoError(t, err)

	active, err := repo.ActiveForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, active, "a rotation reclaims the token from its previous owner")
}

func TestTokenDeactivateIdle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTokenRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }

	_, err := repo.Register(ctx, "u1", "idle", models.PlatformIOS, "")
	require.NoError(t, err)

	repo.now = func() time.Time { return base.AddDate(0, 0, 100) }
	_, err = repo.Register(ctx, "u1", "recent", models.PlatformIOS, "")
	require.NoError(t, err)

	n, err := repo.DeactivateIdle(ctx, base.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	active, err := repo.ActiveForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "recent", active[0].Token)
}

func TestPreferenceUpsertMergesPatch(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPreferenceRepository()
	on, off := true, false

	_, err := repo.Upsert(ctx, models.PreferenceRecord{UserID: "u1", PushEnabled: &on, SoundEnabled: &on})
	require.NoError(t, err)
	rec, err := repo.Upsert(ctx, models.PreferenceRecord{UserID: "u1", SoundEnabled: &off})
	require.NoError(t, err)

	require.NotNil(t, rec.PushEnabled)
	assert.True(t, *rec.PushEnabled, "fields absent from the patch survive")
	require.NotNil(t, rec.SoundEnabled)
	assert.False(t, *rec.SoundEnabled)
}

func TestPreferenceTiersClassifiesScopes(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryPreferenceRepository()
	on := true
	ws, thread := "ws1", "th1"

	_, err := repo.Upsert(ctx, models.PreferenceRecord{UserID: "u1", PushEnabled: &on})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, models.PreferenceRecord{UserID: "u1", WorkspaceID: &ws, PushEnabled: &on})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, models.PreferenceRecord{UserID: "u1", WorkspaceID: &ws, ThreadID: &thread, PushEnabled: &on})
	require.NoError(t, err)

	tiers, err := repo.Tiers(ctx, "u1", &ws, &thread)
	require.NoError(t, err)
	assert.NotNil(t, tiers.Global)
	assert.NotNil(t, tiers.Workspace)
	assert.NotNil(t, tiers.Thread)

	// Without a thread in the query the thread record stays out.
	tiers, err = repo.Tiers(ctx, "u1", &ws, nil)
	require.NoError(t, err)
	assert.NotNil(t, tiers.Workspace)
	assert.Nil(t, tiers.Thread)

	other := "ws-other"
	tiers, err = repo.Tiers(ctx, "u1", &other, nil)
	require.NoError(t, err)
	assert.NotNil(t, tiers.Global)
	assert.Nil(t, tiers.Workspace)
}

func TestBadgeAdjustClampsAtZero(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBadgeRepository()

	_, err := repo.Adjust(ctx, "u1", "ws1", models.BadgeMentions, 2)
	require.NoError(t, err)
	count, err := repo.Adjust(ctx, "u1", "ws1", models.BadgeMentions, -5)
	require.NoError(t, err)
	assert.Zero(t, count.Mentions, "decrement below zero clamps")

	_, err = repo.Adjust(ctx, "u1", "ws1", "likes", 1)
	assert.Error(t, err, "unknown category is rejected")
}

func TestBadgeTotalSpansWorkspaces(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBadgeRepository()

	_, err := repo.Adjust(ctx, "u1", "ws1", models.BadgeUnreadMessages, 2)
	require.NoError(t, err)
	_, err = repo.Adjust(ctx, "u1", "ws2", models.BadgeTasks, 3)
	require.NoError(t, err)
	_, err = repo.Adjust(ctx, "u2", "ws1", models.BadgeMentions, 10)
	require.NoError(t, err)

	total, err := repo.Total(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	count, err := repo.Get(ctx, "u1", "ws-unknown")
	require.NoError(t, err)
	assert.Zero(t, count.Sum(), "missing row reads as zeros")
}

func TestQueueClaimOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryQueueRepository()
	now := time.Now()

	first, err := repo.Insert(ctx, models.NotificationIntent{
		UserID: "u1", Type: models.TypeMessage, Priority: models.PriorityNormal, ScheduledFor: now.Add(-time.Minute),
	})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, models.NotificationIntent{
		UserID: "u1", Type: models.TypeMessage, Priority: models.PriorityNormal, ScheduledFor: now.Add(-time.Minute),
	})
	require.NoError(t, err)
	high, err := repo.Insert(ctx, models.NotificationIntent{
		UserID: "u1", Type: models.TypeMention, Priority: models.PriorityHigh, ScheduledFor: now.Add(-time.Minute),
	})
	require.NoError(t, err)
	_, err = repo.Insert(ctx, models.NotificationIntent{
		UserID: "u1", Type: models.TypeMessage, Priority: models.PriorityNormal, ScheduledFor: now.Add(time.Hour),
	})
	require.NoError(t, err)

	claimed, err := repo.ClaimBatch(ctx, 2, now)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, high.ID, claimed[0].ID, "high priority claims first")
	assert.Equal(t, first.ID, claimed[1].ID, "then oldest first")

	// Claimed items are processing; a second claim skips them and the
	// not-yet-due item.
	claimed, err = repo.ClaimBatch(ctx, 10, now)
	require.NoError(t, err)
	assert.Len(t, claimed, 1)
}

func TestQueueFinishRecordsOutcome(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryQueueRepository()

	intent, err := repo.Insert(ctx, models.NotificationIntent{UserID: "u1", Type: models.TypeMention})
	require.NoError(t, err)

	ledger := []models.DeviceFailure{{Token: "tok", Code: "DeviceNotRegistered", Error: "gone"}}
	require.NoError(t, repo.Finish(ctx, intent.ID, models.StatusFailed, 1, ledger))

	got, err := repo.Get(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.Len(t, got.DeviceErrors, 1)
	require.NotNil(t, got.ProcessedAt)
}

func TestDeliveryLogRetention(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeliveryLogRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.now = func() time.Time { return base }
	_, err := repo.Insert(ctx, models.DeliveryLogEntry{IntentID: "i1", Token: "tok", Success: true})
	require.NoError(t, err)

	repo.now = func() time.Time { return base.AddDate(0, 0, 100) }
	_, err = repo.Insert(ctx, models.DeliveryLogEntry{IntentID: "i1", Token: "tok", Success: false})
	require.NoError(t, err)

	removed, err := repo.DeleteOlderThan(ctx, base.AddDate(0, 0, 90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	entries, err := repo.ListForIntent(ctx, "i1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
