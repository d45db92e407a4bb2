package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/stark-secure/starkmole-integrity/models"
	"github.com/stark-secure/starkmole-integrity/responses"
	"github.com/stark-secure/starkmole-integrity/session"
	"github.com/stark-secure/starkmole-integrity/utils"
)

// Handler wires the session manager to the REST surface. Caller
// authentication is the surrounding platform's job; requests arrive here
// already attributed.
type Handler struct {
	manager *session.Manager
	hub     *Hub
	secret  []byte
	logger  *slog.Logger
}

func NewHandler(manager *session.Manager, hub *Hub, secret []byte, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{manager: manager, hub: hub, secret: secret, logger: logger}
}

type startSessionRequest struct {
	UserID      string `json:"userId"`
	SessionType string `json:"sessionType"`
	PuzzleID    string `json:"puzzleId,omitempty"`
	ModuleID    string `json:"moduleId,omitempty"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
		return
	}

	meta := models.SessionMetadata{
		UserAgent: r.UserAgent(),
		IPAddress: clientIP(r),
	}
	gameSession, err := h.manager.StartSession(r.Context(), req.UserID, req.SessionType, req.PuzzleID, req.ModuleID, meta)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(gameSession))
}

func (h *Handler) RecordAction(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	var input session.ActionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
		return
	}

	action, err := h.manager.RecordAction(r.Context(), sessionID, input)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(action))
}

func (h *Handler) PauseSession(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.manager.PauseSession)
}

func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.manager.ResumeSession)
}

func (h *Handler) AbandonSession(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.manager.AbandonSession)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, sessionID string) (*models.GameSession, error)) {
	sessionID := mux.Vars(r)["sessionID"]
	gameSession, err := op(r.Context(), sessionID)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(gameSession))
}

// clientIP extracts the bare client address: the first hop of a
// comma-separated X-Forwarded-For chain, or RemoteAddr with its port
// stripped when no proxy header is present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	// every finalData field is optional, so an empty body means "no overrides"
	var final session.EndSessionData
	if err := json.NewDecoder(r.Body).Decode(&final); err != nil && !errors.Is(err, io.EOF) {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
		return
	}

	report, err := h.manager.EndSession(r.Context(), sessionID, final)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	h.hub.BroadcastReport(report)
	utils.HandleSuccess(w, models.SuccessResponse(report))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	gameSession, err := h.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	if gameSession == nil {
		utils.HandleError(w, responses.NotFoundError{Msg: "Session not found."})
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(gameSession))
}

func (h *Handler) GetUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.HandleError(w, responses.BadRequestError{Msg: "Invalid limit."})
			return
		}
		limit = parsed
	}

	sessions, err := h.manager.GetUserSessions(r.Context(), userID, limit)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(sessions))
}

type validateSessionRequest struct {
	Rules  *models.ValidationRules `json:"rules,omitempty"`
	Config *models.DetectionConfig `json:"config,omitempty"`
}

// ValidateSession re-runs the pipeline on a stored session without touching
// its lifecycle.
func (h *Handler) ValidateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	var req validateSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
			return
		}
	}

	gameSession, err := h.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	if gameSession == nil {
		utils.HandleError(w, responses.NotFoundError{Msg: "Session not found."})
		return
	}

	report := h.manager.ValidateSession(gameSession, req.Rules, req.Config)
	utils.HandleSuccess(w, models.SuccessResponse(report))
}

type reviewRequest struct {
	Approve bool `json:"approve"`
}

// ResolveReview applies a moderation decision to a session under review.
func (h *Handler) ResolveReview(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
		return
	}

	gameSession, err := h.manager.ResolveReview(r.Context(), sessionID, req.Approve)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(gameSession))
}
