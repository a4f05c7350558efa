package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cappiels/chat-notify-api/internal/models"
)

func boolPtr(v bool) *bool          { return &v }
func strPtr(v string) *string       { return &v }
func mutePtr(v models.MuteLevel) *models.MuteLevel { return &v }

func TestResolveDefaults(t *testing.T) {
	prefs := Resolve(nil, nil, nil, time.Now())

	assert.True(t, prefs.PushEnabled)
	assert.True(t, prefs.NotifyMentions)
	assert.False(t, prefs.NotifyEveryMessage, "every-message noise requires explicit opt-in")
	assert.Equal(t, models.MuteNone, prefs.MuteLevel)
	assert.False(t, prefs.DNDEnabled)
	assert.Equal(t, "UTC", prefs.DNDTimezone)
}

func TestResolvePrecedencePerField(t *testing.T) {
	global := &models.PreferenceRecord{
		PushEnabled:  boolPtr(true),
		SoundEnabled: boolPtr(false),
		ShowPreview:  boolPtr(false),
	}
	workspace := &models.PreferenceRecord{
		SoundEnabled: boolPtr(true),
	}
	thread := &models.PreferenceRecord{
		MuteLevel: mutePtr(models.MuteAll),
	}

	prefs := Resolve(global, workspace, thread, time.Now())

	// Thread only set mute_level; everything else falls through.
	assert.Equal(t, models.MuteAll, prefs.MuteLevel)
	assert.True(t, prefs.SoundEnabled, "workspace overrides global")
	assert.False(t, prefs.ShowPreview, "global survives when narrower scopes are silent")
	assert.True(t, prefs.PushEnabled)
}

func TestResolveNarrowerScopeWins(t *testing.T) {
	global := &models.PreferenceRecord{NotifyThreadReplies: boolPtr(false)}
	thread := &models.PreferenceRecord{NotifyThreadReplies: boolPtr(true)}

	prefs := Resolve(global, nil, thread, time.Now())
	assert.True(t, prefs.NotifyThreadReplies)
}

func TestResolveExpiredMuteIsUnset(t *testing.T) {
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expired := &models.PreferenceRecord{
		MuteLevel: mutePtr(models.MuteAll),
		MuteUntil: &past,
	}
	prefs := Resolve(expired, nil, nil, now)
	assert.Equal(t, models.MuteNone, prefs.MuteLevel, "expired mute falls back to default")

	active := &models.PreferenceRecord{
		MuteLevel: mutePtr(models.MuteAll),
		MuteUntil: &future,
	}
	prefs = Resolve(active, nil, nil, now)
	assert.Equal(t, models.MuteAll, prefs.MuteLevel)

	indefinite := &models.PreferenceRecord{
		MuteLevel: mutePtr(models.MuteMentionsOnly),
	}
	prefs = Resolve(indefinite, nil, nil, now)
	assert.Equal(t, models.MuteMentionsOnly, prefs.MuteLevel, "nil mute_until never expires")
}

func TestResolveExpiredThreadMuteFallsThrough(t *testing.T) {
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	global := &models.PreferenceRecord{MuteLevel: mutePtr(models.MuteMentionsOnly)}
	thread := &models.PreferenceRecord{
		MuteLevel: mutePtr(models.MuteAll),
		MuteUntil: &past,
	}

	prefs := Resolve(global, nil, thread, now)
	assert.Equal(t, models.MuteMentionsOnly, prefs.MuteLevel, "expired thread mute yields to global")
}
