package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cappiels/chat-notify-api/internal/models"
	"github.com/cappiels/chat-notify-api/internal/repository"
)

// QueueInput is what event producers hand the service. Producers never touch
// the persisted intent afterwards.
type QueueInput struct {
	UserID      string                  `json:"user_id"`
	WorkspaceID *string                 `json:"workspace_id,omitempty"`
	ThreadID    *string                 `json:"thread_id,omitempty"`
	MessageID   *string                 `json:"message_id,omitempty"`
	Type        models.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Body        string                  `json:"body"`
	Data        map[string]interface{}  `json:"data,omitempty"`
	Priority    models.IntentPriority   `json:"priority,omitempty"`
}

// Service is the producer- and preferences-facing surface of the pipeline.
type Service struct {
	queue    repository.QueueRepository
	badges   repository.BadgeRepository
	prefs    repository.PreferenceRepository
	resolver *Resolver
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(queue repository.QueueRepository, badges repository.BadgeRepository, prefs repository.PreferenceRepository, resolver *Resolver, logger zerolog.Logger) *Service {
	return &Service{
		queue:    queue,
		badges:   badges,
		prefs:    prefs,
		resolver: resolver,
		logger:   logger.With().Str("component", "notification_service").Logger(),
		now:      time.Now,
	}
}

// Queue runs eligibility resolution and, when affirmative, persists a
// pending intent scheduled for immediate delivery. An ineligible event is a
// silent no-op: nothing is persisted and no audit trail is kept for
// suppressed notifications. The boolean reports whether a row was queued.
func (s *Service) Queue(ctx context.Context, in QueueInput) (bool, *models.NotificationIntent, error) {
	if in.UserID == "" {
		return false, nil, errors.New("user id is required")
	}
	if !models.IsValidNotificationType(in.Type) {
		return false, nil, errors.Errorf("invalid notification type %q", in.Type)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityNormal
	}
	if in.Priority != models.PriorityHigh && in.Priority != models.PriorityNormal {
		return false, nil, errors.Errorf("invalid priority %q", in.Priority)
	}

	eligible, reason := s.resolver.ShouldDeliver(ctx, in.UserID, in.WorkspaceID, in.ThreadID, in.Type)
	if !eligible {
		s.logger.Debug().
			Str("user_id", in.UserID).
			Str("type", string(in.Type)).
			Str("reason", reason).
			Msg("notification suppressed")
		return false, nil, nil
	}

	// Badge reflects state at the moment the event happened; it may be
	// slightly stale by delivery time and that is accepted.
	badge, err := s.badges.Total(ctx, in.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", in.UserID).Msg("badge total lookup failed, stamping zero")
		badge = 0
	}

	var data json.RawMessage
	if len(in.Data) > 0 {
		bytes, err := json.Marshal(in.Data)
		if err != nil {
			return false, nil, errors.Wrap(err, "marshal notification data")
		}
		data = bytes
	}

	intent, err := s.queue.Insert(ctx, models.NotificationIntent{
		UserID:       in.UserID,
		WorkspaceID:  in.WorkspaceID,
		ThreadID:     in.ThreadID,
		MessageID:    in.MessageID,
		Type:         in.Type,
		Title:        in.Title,
		Body:         in.Body,
		Data:         data,
		Badge:        badge,
		Priority:     in.Priority,
		ScheduledFor: s.now(),
	})
	if err != nil {
		return false, nil, errors.Wrap(err, "persist notification intent")
	}
	return true, &intent, nil
}

// EffectivePreferences resolves the merged view for a scope.
func (s *Service) EffectivePreferences(ctx context.Context, userID string, workspaceID, threadID *string) (models.Preferences, error) {
	tiers, err := s.prefs.Tiers(ctx, userID, workspaceID, threadID)
	if err != nil {
		return models.Preferences{}, err
	}
	return Resolve(tiers.Global, tiers.Workspace, tiers.Thread, s.now()), nil
}

// SavePreferences applies a partial patch to the single record at the
// patch's scope; nil fields are left untouched.
func (s *Service) SavePreferences(ctx context.Context, patch models.PreferenceRecord) (models.PreferenceRecord, error) {
	if patch.UserID == "" {
		return models.PreferenceRecord{}, errors.New("user id is required")
	}
	if patch.ThreadID != nil && patch.WorkspaceID == nil {
		return models.PreferenceRecord{}, errors.New("thread scope requires a workspace")
	}
	if patch.MuteLevel != nil && !models.IsValidMuteLevel(*patch.MuteLevel) {
		return models.PreferenceRecord{}, errors.Errorf("invalid mute level %q", *patch.MuteLevel)
	}
	return s.prefs.Upsert(ctx, patch)
}

// Mute sets the scope's mute level, optionally expiring after duration.
func (s *Service) Mute(ctx context.Context, userID string, workspaceID, threadID *string, level models.MuteLevel, duration *time.Duration) error {
	if !models.IsValidMuteLevel(level) {
		return errors.Errorf("invalid mute level %q", level)
	}
	patch := models.PreferenceRecord{
		UserID:      userID,
		WorkspaceID: workspaceID,
		ThreadID:    threadID,
		MuteLevel:   &level,
	}
	if duration != nil {
		until := s.now().Add(*duration)
		patch.MuteUntil = &until
	}
	_, err := s.prefs.Upsert(ctx, patch)
	return err
}

// Unmute resets the scope to an explicit mute level of none.
func (s *Service) Unmute(ctx context.Context, userID string, workspaceID, threadID *string) error {
	return s.prefs.Unmute(ctx, userID, workspaceID, threadID)
}

// Badges returns the caller's per-workspace counters and the total stamped
// onto payloads.
func (s *Service) Badges(ctx context.Context, userID string) ([]models.BadgeCount, int, error) {
	counts, err := s.badges.ListForUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	total := 0
	for _, count := range counts {
		total += count.Sum()
	}
	return counts, total, nil
}

// AdjustBadge applies one counter delta for the (user, workspace) pair.
func (s *Service) AdjustBadge(ctx context.Context, userID, workspaceID string, category models.BadgeCategory, delta int) (models.BadgeCount, error) {
	return s.badges.Adjust(ctx, userID, workspaceID, category, delta)
}
