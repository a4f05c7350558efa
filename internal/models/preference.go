package models

import "time"

type MuteLevel string

const (
	MuteNone         MuteLevel = "none"
	MuteMentionsOnly MuteLevel = "mentions_only"
	MuteAll          MuteLevel = "all"
)

func IsValidMuteLevel(m MuteLevel) bool {
	switch m {
	case MuteNone, MuteMentionsOnly, MuteAll:
		return true
	}
	return false
}

// PreferenceRecord is one row of notification settings at a single scope.
// Workspace and thread are both nil for the global scope, workspace set with
// a nil thread for the workspace scope, and both set for the thread scope.
// Every setting field is a pointer so that "unset" stays distinguishable from
// an explicit false; unset fields fall through to the next wider scope when
// preferences are resolved.
type PreferenceRecord struct {
	ID          string  `json:"id" db:"id"`
	UserID      string  `json:"user_id" db:"user_id"`
	WorkspaceID *string `json:"workspace_id,omitempty" db:"workspace_id"`
	ThreadID    *string `json:"thread_id,omitempty" db:"thread_id"`

	PushEnabled  *bool `json:"push_enabled,omitempty" db:"push_enabled"`
	SoundEnabled *bool `json:"sound_enabled,omitempty" db:"sound_enabled"`
	BadgeEnabled *bool `json:"badge_enabled,omitempty" db:"badge_enabled"`
	ShowPreview  *bool `json:"show_preview,omitempty" db:"show_preview"`

	NotifyMentions         *bool `json:"notify_mentions,omitempty" db:"notify_mentions"`
	NotifyDirectMessages   *bool `json:"notify_direct_messages,omitempty" db:"notify_direct_messages"`
	NotifyThreadReplies    *bool `json:"notify_thread_replies,omitempty" db:"notify_thread_replies"`
	NotifyTaskAssigned     *bool `json:"notify_task_assigned,omitempty" db:"notify_task_assigned"`
	NotifyTaskDue          *bool `json:"notify_task_due,omitempty" db:"notify_task_due"`
	NotifyTaskCompleted    *bool `json:"notify_task_completed,omitempty" db:"notify_task_completed"`
	NotifyWorkspaceInvites *bool `json:"notify_workspace_invites,omitempty" db:"notify_workspace_invites"`
	NotifyEveryMessage     *bool `json:"notify_every_message,omitempty" db:"notify_every_message"`

	MuteLevel *MuteLevel `json:"mute_level,omitempty" db:"mute_level"`
	MuteUntil *time.Time `json:"mute_until,omitempty" db:"mute_until"`

	DNDEnabled       *bool   `json:"dnd_enabled,omitempty" db:"dnd_enabled"`
	DNDStart         *string `json:"dnd_start,omitempty" db:"dnd_start"` // "HH:MM"
	DNDEnd           *string `json:"dnd_end,omitempty" db:"dnd_end"`
	DNDTimezone      *string `json:"dnd_timezone,omitempty" db:"dnd_timezone"`
	DNDAllowMentions *bool   `json:"dnd_allow_mentions,omitempty" db:"dnd_allow_mentions"`

	QuietEnabled      *bool   `json:"quiet_enabled,omitempty" db:"quiet_enabled"`
	QuietStart        *string `json:"quiet_start,omitempty" db:"quiet_start"`
	QuietEnd          *string `json:"quiet_end,omitempty" db:"quiet_end"`
	QuietTimezone     *string `json:"quiet_timezone,omitempty" db:"quiet_timezone"`
	QuietWeekendsOnly *bool   `json:"quiet_weekends_only,omitempty" db:"quiet_weekends_only"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Preferences is the fully-resolved view after merging thread, workspace and
// global records over the documented defaults. No field is optional here.
type Preferences struct {
	PushEnabled  bool `json:"push_enabled"`
	SoundEnabled bool `json:"sound_enabled"`
	BadgeEnabled bool `json:"badge_enabled"`
	ShowPreview  bool `json:"show_preview"`

	NotifyMentions         bool `json:"notify_mentions"`
	NotifyDirectMessages   bool `json:"notify_direct_messages"`
	NotifyThreadReplies    bool `json:"notify_thread_replies"`
	NotifyTaskAssigned     bool `json:"notify_task_assigned"`
	NotifyTaskDue          bool `json:"notify_task_due"`
	NotifyTaskCompleted    bool `json:"notify_task_completed"`
	NotifyWorkspaceInvites bool `json:"notify_workspace_invites"`
	NotifyEveryMessage     bool `json:"notify_every_message"`

	MuteLevel MuteLevel  `json:"mute_level"`
	MuteUntil *time.Time `json:"mute_until,omitempty"`

	DNDEnabled       bool   `json:"dnd_enabled"`
	DNDStart         string `json:"dnd_start"`
	DNDEnd           string `json:"dnd_end"`
	DNDTimezone      string `json:"dnd_timezone"`
	DNDAllowMentions bool   `json:"dnd_allow_mentions"`

	QuietEnabled      bool   `json:"quiet_enabled"`
	QuietStart        string `json:"quiet_start"`
	QuietEnd          string `json:"quiet_end"`
	QuietTimezone     string `json:"quiet_timezone"`
	QuietWeekendsOnly bool   `json:"quiet_weekends_only"`
}

// DefaultPreferences returns the values that apply when nothing is set at any
// scope: push on, every per-type flag on, except "notify on every message"
// which requires an explicit opt-in.
func DefaultPreferences() Preferences {
	return Preferences{
		PushEnabled:  true,
		SoundEnabled: true,
		BadgeEnabled: true,
		ShowPreview:  true,

		NotifyMentions:         true,
		NotifyDirectMessages:   true,
		NotifyThreadReplies:    true,
		NotifyTaskAssigned:     true,
		NotifyTaskDue:          true,
		NotifyTaskCompleted:    true,
		NotifyWorkspaceInvites: true,
		NotifyEveryMessage:     false,

		MuteLevel: MuteNone,

		DNDEnabled:       false,
		DNDTimezone:      "UTC",
		DNDAllowMentions: false,

		QuietEnabled:      false,
		QuietTimezone:     "UTC",
		QuietWeekendsOnly: false,
	}
}
