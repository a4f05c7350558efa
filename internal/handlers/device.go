package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cappiels/chat-notify-api/internal/authz"
	"github.com/cappiels/chat-notify-api/internal/models"
	"github.com/cappiels/chat-notify-api/internal/presence"
	"github.com/cappiels/chat-notify-api/internal/repository"
)

type DeviceHandler struct {
	tokens   repository.TokenRepository
	presence *presence.MemoryTracker
	logger   zerolog.Logger
}

func NewDeviceHandler(tokens repository.TokenRepository, tracker *presence.MemoryTracker, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		tokens:   tokens,
		presence: tracker,
		logger:   logger.With().Str("handler", "device").Logger(),
	}
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Token      string          `json:"token"`
		Platform   models.Platform `json:"platform"`
		DeviceName string          `json:"device_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	payload.Token = strings.TrimSpace(payload.Token)
	if payload.Token == "" {
		http.Error(w, "Device token is required", http.StatusBadRequest)
		return
	}
	if !models.IsValidPlatform(payload.Platform) {
		http.Error(w, "Platform must be one of ios, android, web", http.StatusBadRequest)
		return
	}

	token, err := h.tokens.Register(r.Context(), userID, payload.Token, payload.Platform, payload.DeviceName)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to register device token")
		http.Error(w, "Failed to register device token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, token)
}

func (h *DeviceHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	payload.Token = strings.TrimSpace(payload.Token)
	if payload.Token == "" {
		http.Error(w, "Device token is required", http.StatusBadRequest)
		return
	}

	if err := h.tokens.Unregister(r.Context(), userID, payload.Token); err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to unregister device token")
		http.Error(w, "Failed to unregister device token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "unregistered"})
}

func (h *DeviceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		OldToken   string          `json:"old_token"`
		NewToken   string          `json:"new_token"`
		Platform   models.Platform `json:"platform"`
		DeviceName string          `json:"device_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	payload.OldToken = strings.TrimSpace(payload.OldToken)
	payload.NewToken = strings.TrimSpace(payload.NewToken)
	if payload.OldToken == "" || payload.NewToken == "" {
		http.Error(w, "Both old_token and new_token are required", http.StatusBadRequest)
		return
	}
	if !models.IsValidPlatform(payload.Platform) {
		http.Error(w, "Platform must be one of ios, android, web", http.StatusBadRequest)
		return
	}

	token, err := h.tokens.Refresh(r.Context(), userID, payload.OldToken, payload.NewToken, payload.Platform, payload.DeviceName)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to refresh device token")
		http.Error(w, "Failed to refresh device token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	tokens, err := h.tokens.ActiveForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list device tokens")
		http.Error(w, "Failed to list devices", http.StatusInternalServerError)
		return
	}
	if tokens == nil {
		tokens = []models.DeviceToken{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": tokens,
	})
}

// Heartbeat marks the caller active for presence suppression and refreshes
// the token's last_used_at so the retention sweep keeps it alive.
func (h *DeviceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	h.presence.Touch(userID)

	if token := strings.TrimSpace(payload.Token); token != "" {
		if err := h.tokens.Touch(r.Context(), userID, token); err != nil {
			h.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to touch device token")
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
