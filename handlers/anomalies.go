package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stark-secure/starkmole-integrity/models"
	"github.com/stark-secure/starkmole-integrity/responses"
	"github.com/stark-secure/starkmole-integrity/utils"
)

// GetAnomalies lists anomaly log entries, filtered by sessionId and/or
// userId query parameters, most recent first.
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	userID := r.URL.Query().Get("userId")

	anomalies, err := h.manager.GetAnomalies(r.Context(), sessionID, userID)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(anomalies))
}

type resolveAnomalyRequest struct {
	ModeratorNotes string `json:"moderatorNotes"`
}

// ResolveAnomaly marks one anomaly resolved with the moderator's notes.
func (h *Handler) ResolveAnomaly(w http.ResponseWriter, r *http.Request) {
	anomalyID := mux.Vars(r)["anomalyID"]

	var req resolveAnomalyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.HandleError(w, responses.BadRequestError{Msg: "Invalid request."})
		return
	}

	if err := h.manager.ResolveAnomaly(r.Context(), anomalyID, req.ModeratorNotes); err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.HandleSuccess(w, models.SuccessResponse(map[string]string{"message": "Anomaly resolved."}))
}
