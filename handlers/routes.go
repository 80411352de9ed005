package handlers

import (
	"net/http"
	"net/netip"

	"github.com/MohammedAK1991/street-performers-map-sub000/middleware"
	"github.com/MohammedAK1991/street-performers-map-sub000/utils"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// NewRouter wires every route. Processor webhooks and the widget socket are
// outside the rate limiter. Forwarded client addresses are only taken from
// trustedProxies.
func NewRouter(h *Handlers, auth *middleware.Auth, limiter *middleware.RateLimiter, trustedProxies []netip.Prefix, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/api/webhooks/stripe", h.StripeWebhook).Methods("POST")
	r.HandleFunc("/ws/performers/{id}", h.TipAlerts).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(limiter.Middleware)

	// Public routes
	api.Handle("/tips", auth.OptionalAuth(middleware.GeoLocation(http.HandlerFunc(h.CreateTip)))).Methods("POST")
	api.HandleFunc("/performances/{id}/tips", h.GetPerformanceTips).Methods("GET")

	// Performer routes
	performers := api.PathPrefix("/performers").Subrouter()
	performers.Use(auth.RequireAuth)
	performers.HandleFunc("/connect", h.ConnectAccount).Methods("POST")
	performers.HandleFunc("/connect/status", h.GetConnectStatus).Methods("GET")
	performers.HandleFunc("/connect/link", h.CreateOnboardingLink).Methods("POST")
	performers.HandleFunc("/{id}/earnings", h.GetPerformerEarnings).Methods("GET")
	performers.HandleFunc("/{id}/transactions", h.GetPerformerTransactions).Methods("GET")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireAuth, auth.RequireRole(utils.RoleAdmin))
	admin.HandleFunc("/audit-logs", h.GetAuditLogs).Methods("GET")
	admin.HandleFunc("/transactions", h.GetTransactions).Methods("GET")
	admin.HandleFunc("/webhook-events", h.GetWebhookEvents).Methods("GET")

	return middleware.Recovery(log)(
		middleware.RealIP(trustedProxies)(
			middleware.RequestID(
				middleware.Logger(log)(
					middleware.CORS(r)))))
}
