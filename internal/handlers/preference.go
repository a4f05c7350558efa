package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cappiels/chat-notify-api/internal/authz"
	"github.com/cappiels/chat-notify-api/internal/models"
	"github.com/cappiels/chat-notify-api/internal/notification"
)

type PreferenceHandler struct {
	service *notification.Service
	logger  zerolog.Logger
}

func NewPreferenceHandler(service *notification.Service, logger zerolog.Logger) *PreferenceHandler {
	return &PreferenceHandler{
		service: service,
		logger:  logger.With().Str("handler", "preference").Logger(),
	}
}

// GetEffective returns the merged preferences for the scope named by the
// workspace_id and thread_id query parameters, both optional.
func (h *PreferenceHandler) GetEffective(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	workspaceID := optionalString(r.URL.Query().Get("workspace_id"))
	threadID := optionalString(r.URL.Query().Get("thread_id"))
	if threadID != nil && workspaceID == nil {
		http.Error(w, "thread_id requires workspace_id", http.StatusBadRequest)
		return
	}

	prefs, err := h.service.EffectivePreferences(r.Context(), userID, workspaceID, threadID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to resolve preferences")
		http.Error(w, "Failed to resolve preferences", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

// Save applies a partial update at one scope. Fields absent from the body
// stay untouched; the record is created if the scope had none.
func (h *PreferenceHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var patch models.PreferenceRecord
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	patch.UserID = userID

	record, err := h.service.SavePreferences(r.Context(), patch)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to save preferences")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// Mute sets the mute level for a scope, optionally for a limited duration
// given in minutes.
func (h *PreferenceHandler) Mute(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		WorkspaceID     *string          `json:"workspace_id"`
		ThreadID        *string          `json:"thread_id"`
		Level           models.MuteLevel `json:"level"`
		DurationMinutes *int             `json:"duration_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.ThreadID != nil && payload.WorkspaceID == nil {
		http.Error(w, "thread_id requires workspace_id", http.StatusBadRequest)
		return
	}
	if payload.Level == "" {
		payload.Level = models.MuteAll
	}

	var duration *time.Duration
	if payload.DurationMinutes != nil {
		if *payload.DurationMinutes <= 0 {
			http.Error(w, "duration_minutes must be positive", http.StatusBadRequest)
			return
		}
		d := time.Duration(*payload.DurationMinutes) * time.Minute
		duration = &d
	}

	if err := h.service.Mute(r.Context(), userID, payload.WorkspaceID, payload.ThreadID, payload.Level, duration); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to mute scope")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "muted"})
}

// Unmute resets the scope to an explicit "none" mute level.
func (h *PreferenceHandler) Unmute(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		WorkspaceID *string `json:"workspace_id"`
		ThreadID    *string `json:"thread_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if payload.ThreadID != nil && payload.WorkspaceID == nil {
		http.Error(w, "thread_id requires workspace_id", http.StatusBadRequest)
		return
	}

	if err := h.service.Unmute(r.Context(), userID, payload.WorkspaceID, payload.ThreadID); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to unmute scope")
		http.Error(w, "Failed to unmute", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unmuted"})
}
