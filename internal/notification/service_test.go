package notification

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cappiels/chat-notify-api/internal/models"
	"github.com/cappiels/chat-notify-api/internal/presence"
	"github.com/cappiels/chat-notify-api/internal/repository"
)

type serviceFixture struct {
	tokens  *repository.MemoryTokenRepository
	prefs   *repository.MemoryPreferenceRepository
	queue   *repository.MemoryQueueRepository
	badges  *repository.MemoryBadgeRepository
	service *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	tokens := repository.NewMemoryTokenRepository()
	prefs := repository.NewMemoryPreferenceRepository()
	queue := repository.NewMemoryQueueRepository()
	badges := repository.NewMemoryBadgeRepository()
	tracker := presence.NewMemoryTracker(2 * time.Minute)

	resolver := NewResolver(tokens, prefs, tracker, zerolog.Nop())
	service := NewService(queue, badges, prefs, resolver, zerolog.Nop())

	return &serviceFixture{tokens: tokens, prefs: prefs, queue: queue, badges: badges, service: service}
}

func TestQueuePersistsEligibleIntent(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.tokens.Register(context.Background(), "u1", "tok1", models.PlatformIOS, "iPhone")
	require.NoError(t, err)

	queued, intent, err := f.service.Queue(context.Background(), QueueInput{
		UserID: "u1",
		Type:   models.TypeMention,
		Title:  "Alice mentioned you",
		Body:   "hey @you",
	})
	require.NoError(t, err)
	assert.True(t, queued)
	require.NotNil(t, intent)
	assert.Equal(t, models.StatusPending, intent.Status)
	assert.Equal(t, models.PriorityNormal, intent.Priority, "priority defaults to normal")
	assert.Equal(t, 1, f.queue.Len())
}

func TestQueueSuppressedIsSilentNoOp(t *testing.T) {
	f := newServiceFixture(t)
	// No registered devices, so eligibility says no.

	queued, intent, err := f.service.Queue(context.Background(), QueueInput{
		UserID: "u1",
		Type:   models.TypeMention,
		Title:  "t",
		Body:   "b",
	})
	require.NoError(t, err)
	assert.False(t, queued)
	assert.Nil(t, intent)
	assert.Zero(t, f.queue.Len(), "suppression leaves no trace in the queue")
}

func TestQueueStampsBadgeTotal(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.tokens.Register(context.Background(), "u1", "tok1", models.PlatformIOS, "iPhone")
	require.NoError(t, err)

	_, err = f.badges.Adjust(context.Background(), "u1", "ws1", models.BadgeMentions, 3)
	require.NoError(t, err)
	_, err = f.badges.Adjust(context.Background(), "u1", "ws2", models.BadgeUnreadMessages, 4)
	require.NoError(t, err)

	_, intent, err := f.service.Queue(context.Background(), QueueInput{
		UserID: "u1",
		Type:   models.TypeMention,
		Title:  "t",
		Body:   "b",
	})
	require.NoError(t, err)
	assert.Equal(t, 7, intent.Badge, "badge is the cross-workspace total at enqueue time")
}

func TestQueueRejectsBadInput(t *testing.T) {
	f := newServiceFixture(t)

	_, _, err := f.service.Queue(context.Background(), QueueInput{Type: models.TypeMention})
	assert.Error(t, err, "missing user id")

	_, _, err = f.service.Queue(context.Background(), QueueInput{UserID: "u1", Type: "carrier_pigeon"})
	assert.Error(t, err, "unknown type")

	_, _, err = f.service.Queue(context.Background(), QueueInput{UserID: "u1", Type: models.TypeMention, Priority: "urgent"})
	assert.Error(t, err, "unknown priority")
}

func TestSavePreferencesValidatesScope(t *testing.T) {
	f := newServiceFixture(t)
	thread := "th1"

	_, err := f.service.SavePreferences(context.Background(), models.PreferenceRecord{
		UserID:   "u1",
		ThreadID: &thread,
	})
	assert.Error(t, err, "thread scope requires a workspace")

	bad := models.MuteLevel("loud")
	_, err = f.service.SavePreferences(context.Background(), models.PreferenceRecord{
		UserID:    "u1",
		MuteLevel: &bad,
	})
	assert.Error(t, err)
}

func TestMuteWithDurationSetsExpiry(t *testing.T) {
	f := newServiceFixture(t)
	d := 30 * time.Minute

	require.NoError(t, f.service.Mute(context.Background(), "u1", nil, nil, models.MuteAll, &d))

	rec, err := f.prefs.GetScope(context.Background(), "u1", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rec.MuteLevel)
	assert.Equal(t, models.MuteAll, *rec.MuteLevel)
	require.NotNil(t, rec.MuteUntil)
	assert.WithinDuration(t, time.Now().Add(d), *rec.MuteUntil, time.Minute)
}

func TestUnmuteResetsLevel(t *testing.T) {
	f := newServiceFixture(t)
	require.NoError(t, f.service.Mute(context.Background(), "u1", nil, nil, models.MuteAll, nil))
	require.NoError(t, f.service.Unmute(context.Background(), "u1", nil, nil))

	rec, err := f.prefs.GetScope(context.Background(), "u1", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, rec.MuteLevel)
	assert.Equal(t, models.MuteNone, *rec.MuteLevel)
	assert.Nil(t, rec.MuteUntil)
}

func TestBadgesTotalsAcrossWorkspaces(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.badges.Adjust(context.Background(), "u1", "ws1", models.BadgeTasks, 2)
	require.NoError(t, err)
	_, err = f.badges.Adjust(context.Background(), "u1", "ws2", models.BadgeMentions, 1)
	require.NoError(t, err)

	counts, total, err := f.service.Badges(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, counts, 2)
	assert.Equal(t, 3, total)
}
