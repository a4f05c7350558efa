package notification

import (
	"time"

	"github.com/cappiels/chat-notify-api/internal/models"
)

// Resolve merges the three preference tiers over the hard-coded defaults.
// Precedence is thread over workspace over global over defaults, evaluated
// independently per field: a thread record that only sets mute_level leaves
// every other field falling through to the wider scopes. A mute whose expiry
// has passed counts as unset.
func Resolve(global, workspace, thread *models.PreferenceRecord, now time.Time) models.Preferences {
	prefs := models.DefaultPreferences()

	// Widest scope first so narrower scopes overwrite.
	for _, rec := range []*models.PreferenceRecord{global, workspace, thread} {
		if rec == nil {
			continue
		}
		apply(&prefs, rec, now)
	}
	return prefs
}

func apply(prefs *models.Preferences, rec *models.PreferenceRecord, now time.Time) {
	setBool(&prefs.PushEnabled, rec.PushEnabled)
	setBool(&prefs.SoundEnabled, rec.SoundEnabled)
	setBool(&prefs.BadgeEnabled, rec.BadgeEnabled)
	setBool(&prefs.ShowPreview, rec.ShowPreview)

	setBool(&prefs.NotifyMentions, rec.NotifyMentions)
	setBool(&prefs.NotifyDirectMessages, rec.NotifyDirectMessages)
	setBool(&prefs.NotifyThreadReplies, rec.NotifyThreadReplies)
	setBool(&prefs.NotifyTaskAssigned, rec.NotifyTaskAssigned)
	setBool(&prefs.NotifyTaskDue, rec.NotifyTaskDue)
	setBool(&prefs.NotifyTaskCompleted, rec.NotifyTaskCompleted)
	setBool(&prefs.NotifyWorkspaceInvites, rec.NotifyWorkspaceInvites)
	setBool(&prefs.NotifyEveryMessage, rec.NotifyEveryMessage)

	if rec.MuteLevel != nil {
		expired := rec.MuteUntil != nil && rec.MuteUntil.Before(now)
		if !expired {
			prefs.MuteLevel = *rec.MuteLevel
			prefs.MuteUntil = rec.MuteUntil
		}
	}

	setBool(&prefs.DNDEnabled, rec.DNDEnabled)
	setString(&prefs.DNDStart, rec.DNDStart)
	setString(&prefs.DNDEnd, rec.DNDEnd)
	setString(&prefs.DNDTimezone, rec.DNDTimezone)
	setBool(&prefs.DNDAllowMentions, rec.DNDAllowMentions)

	setBool(&prefs.QuietEnabled, rec.QuietEnabled)
	setString(&prefs.QuietStart, rec.QuietStart)
	setString(&prefs.QuietEnd, rec.QuietEnd)
	setString(&prefs.QuietTimezone, rec.QuietTimezone)
	setBool(&prefs.QuietWeekendsOnly, rec.QuietWeekendsOnly)
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
