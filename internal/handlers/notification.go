package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cappiels/chat-notify-api/internal/authz"
	"github.com/cappiels/chat-notify-api/internal/models"
	"github.com/cappiels/chat-notify-api/internal/notification"
)

type NotificationHandler struct {
	service *notification.Service
	logger  zerolog.Logger
}

func NewNotificationHandler(service *notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("handler", "notification").Logger(),
	}
}

// Enqueue accepts a notification event from an internal producer. The
// response reports whether the event was queued or suppressed; suppression
// is not an error.
func (h *NotificationHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var input notification.QueueInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	queued, intent, err := h.service.Queue(r.Context(), input)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", input.UserID).Msg("failed to queue notification")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !queued {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"queued": false,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"queued":       true,
		"notification": intent,
	})
}

// Badges returns the caller's per-workspace counters plus the total.
func (h *NotificationHandler) Badges(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	counts, total, err := h.service.Badges(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list badge counts")
		http.Error(w, "Failed to list badge counts", http.StatusInternalServerError)
		return
	}
	if counts == nil {
		counts = []models.BadgeCount{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"badges": counts,
		"total":  total,
	})
}

// AdjustBadge applies one counter delta for a workspace. Negative deltas
// clamp at zero.
func (h *NotificationHandler) AdjustBadge(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		WorkspaceID string               `json:"workspace_id"`
		Category    models.BadgeCategory `json:"category"`
		Delta       int                  `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	payload.WorkspaceID = strings.TrimSpace(payload.WorkspaceID)
	if payload.WorkspaceID == "" {
		http.Error(w, "workspace_id is required", http.StatusBadRequest)
		return
	}
	if !models.IsValidBadgeCategory(payload.Category) {
		http.Error(w, "Invalid badge category", http.StatusBadRequest)
		return
	}

	count, err := h.service.AdjustBadge(r.Context(), userID, payload.WorkspaceID, payload.Category, payload.Delta)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to adjust badge count")
		http.Error(w, "Failed to adjust badge count", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, count)
}
