package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stark-secure/starkmole-integrity/middleware"
)

// NewRouter wires the REST and WebSocket surfaces. The action-recording
// route runs behind the per-session token bucket.
func NewRouter(h *Handler, limiter *middleware.RateLimiter) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/sessions", h.StartSession).Methods("POST")
	r.HandleFunc("/api/sessions/{sessionID}", h.GetSession).Methods("GET")
	r.HandleFunc("/api/sessions/{sessionID}/pause", h.PauseSession).Methods("POST")
	r.HandleFunc("/api/sessions/{sessionID}/resume", h.ResumeSession).Methods("POST")
	r.HandleFunc("/api/sessions/{sessionID}/abandon", h.AbandonSession).Methods("POST")
	r.HandleFunc("/api/sessions/{sessionID}/end", h.EndSession).Methods("POST")
	r.HandleFunc("/api/sessions/{sessionID}/validate", h.ValidateSession).Methods("POST")
	r.HandleFunc("/api/sessions/{sessionID}/review", h.ResolveReview).Methods("POST")
	r.HandleFunc("/api/users/{userID}/sessions", h.GetUserSessions).Methods("GET")
	r.HandleFunc("/api/anomalies", h.GetAnomalies).Methods("GET")
	r.HandleFunc("/api/anomalies/{anomalyID}/resolve", h.ResolveAnomaly).Methods("POST")
	r.HandleFunc("/ws/{token}", h.WsHandler)

	actions := r.PathPrefix("/api/sessions/{sessionID}/actions").Subrouter()
	actions.Use(limiter.Middleware(func(req *http.Request) string {
		return mux.Vars(req)["sessionID"]
	}))
	actions.HandleFunc("", h.RecordAction).Methods("POST")

	return r
}
