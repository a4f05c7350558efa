package notification

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cappiels/chat-notify-api/internal/models"
	"github.com/cappiels/chat-notify-api/internal/presence"
	"github.com/cappiels/chat-notify-api/internal/repository"
)

// Resolver decides whether a notification intent should ever be persisted
// for delivery. Lookups that fail resolve to "do not send": missing a push is
// cheaper than interrupting a user who asked not to be.
type Resolver struct {
	tokens   repository.TokenRepository
	prefs    repository.PreferenceRepository
	presence presence.Tracker
	logger   zerolog.Logger
	now      func() time.Time
}

func NewResolver(tokens repository.TokenRepository, prefs repository.PreferenceRepository, tracker presence.Tracker, logger zerolog.Logger) *Resolver {
	return &Resolver{
		tokens:   tokens,
		prefs:    prefs,
		presence: tracker,
		logger:   logger.With().Str("component", "eligibility").Logger(),
		now:      time.Now,
	}
}

// ShouldDeliver runs the suppression checks in order and short-circuits on
// the first "no". The reason names the check that suppressed, for logging.
func (r *Resolver) ShouldDeliver(ctx context.Context, userID string, workspaceID, threadID *string, typ models.NotificationType) (bool, string) {
	tokens, err := r.tokens.ActiveForUser(ctx, userID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("token lookup failed, suppressing")
		return false, "token_lookup_failed"
	}
	if len(tokens) == 0 {
		return false, "no_active_devices"
	}

	// Presence always wins, mentions included. DND below carves out a
	// mention exception; presence deliberately does not.
	if r.presence != nil && r.presence.IsActive(userID) {
		return false, "user_present"
	}

	tiers, err := r.prefs.Tiers(ctx, userID, workspaceID, threadID)
	if err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("preference lookup failed, suppressing")
		return false, "preference_lookup_failed"
	}
	now := r.now()
	prefs := Resolve(tiers.Global, tiers.Workspace, tiers.Thread, now)

	if !prefs.PushEnabled {
		return false, "push_disabled"
	}

	if prefs.DNDEnabled && inWindow(now, prefs.DNDStart, prefs.DNDEnd, prefs.DNDTimezone) {
		if !(prefs.DNDAllowMentions && typ == models.TypeMention) {
			return false, "dnd_window"
		}
	}

	// Quiet hours have no mention exception.
	if prefs.QuietEnabled && inWindow(now, prefs.QuietStart, prefs.QuietEnd, prefs.QuietTimezone) {
		if !prefs.QuietWeekendsOnly || isWeekend(now, prefs.QuietTimezone) {
			return false, "quiet_hours"
		}
	}

	switch prefs.MuteLevel {
	case models.MuteAll:
		return false, "muted"
	case models.MuteMentionsOnly:
		if typ != models.TypeMention {
			return false, "muted_non_mention"
		}
	}

	if !typeEnabled(prefs, typ) {
		return false, "type_disabled"
	}

	return true, ""
}

func typeEnabled(prefs models.Preferences, typ models.NotificationType) bool {
	switch typ {
	case models.TypeMention:
		return prefs.NotifyMentions
	case models.TypeDirectMessage:
		return prefs.NotifyDirectMessages
	case models.TypeThreadReply:
		return prefs.NotifyThreadReplies
	case models.TypeTaskAssigned:
		return prefs.NotifyTaskAssigned
	case models.TypeTaskDue:
		return prefs.NotifyTaskDue
	case models.TypeTaskCompleted:
		return prefs.NotifyTaskCompleted
	case models.TypeWorkspaceInvite:
		return prefs.NotifyWorkspaceInvites
	case models.TypeMessage:
		// Generic per-message noise requires the explicit opt-in.
		return prefs.NotifyEveryMessage
	}
	return false
}

// inWindow reports whether now falls inside a [start, end) time-of-day
// window in the given timezone. A window whose start is after its end wraps
// midnight. Missing or unparseable bounds mean no window.
func inWindow(now time.Time, start, end, timezone string) bool {
	startMin, okStart := parseMinutes(start)
	endMin, okEnd := parseMinutes(end)
	if !okStart || !okEnd {
		return false
	}

	local := now.In(loadLocation(timezone))
	nowMin := local.Hour()*60 + local.Minute()

	if startMin > endMin {
		return nowMin >= startMin || nowMin < endMin
	}
	return nowMin >= startMin && nowMin < endMin
}

func isWeekend(now time.Time, timezone string) bool {
	day := now.In(loadLocation(timezone)).Weekday()
	return day == time.Saturday || day == time.Sunday
}

func loadLocation(timezone string) *time.Location {
	if timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseMinutes converts an "HH:MM" clock string to minutes since midnight.
func parseMinutes(clock string) (int, bool) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}
