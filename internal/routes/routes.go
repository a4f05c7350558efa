package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cappiels/chat-notify-api/internal/authz"
	"github.com/cappiels/chat-notify-api/internal/handlers"
)

// NewRouter sets up the API routes. Everything under /api requires a valid
// bearer token; /health stays public for load balancer probes.
func NewRouter(
	jwtSecret string,
	devices *handlers.DeviceHandler,
	prefs *handlers.PreferenceHandler,
	notifications *handlers.NotificationHandler,
) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authz.JWTMiddleware(jwtSecret))

	api.HandleFunc("/devices", devices.ListDevices).Methods(http.MethodGet)
	api.HandleFunc("/devices", devices.Register).Methods(http.MethodPost)
	api.HandleFunc("/devices", devices.Unregister).Methods(http.MethodDelete)
	api.HandleFunc("/devices/refresh", devices.Refresh).Methods(http.MethodPost)
	api.HandleFunc("/presence/heartbeat", devices.Heartbeat).Methods(http.MethodPost)

	api.HandleFunc("/preferences", prefs.GetEffective).Methods(http.MethodGet)
	api.HandleFunc("/preferences", prefs.Save).Methods(http.MethodPut)
	api.HandleFunc("/preferences/mute", prefs.Mute).Methods(http.MethodPost)
	api.HandleFunc("/preferences/unmute", prefs.Unmute).Methods(http.MethodPost)

	api.HandleFunc("/notifications", notifications.Enqueue).Methods(http.MethodPost)
	api.HandleFunc("/badges", notifications.Badges).Methods(http.MethodGet)
	api.HandleFunc("/badges/adjust", notifications.AdjustBadge).Methods(http.MethodPost)

	return router
}
