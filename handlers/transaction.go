package handlers

import (
	"net/http"

	"github.com/MohammedAK1991/street-performers-map-sub000/middleware"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/gorilla/mux"
)

// GetPerformerTransactions lists every tip attempt a performer received,
// including pending and failed ones. Self or admin only.
func (h *Handlers) GetPerformerTransactions(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}
	performerID := mux.Vars(r)["id"]
	if claims.UserID != performerID && !claims.IsAdmin() {
		sendError(w, http.StatusForbidden, "Access denied", nil)
		return
	}

	status, ok := parseStatus(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid status", map[string]string{"status": validStatuses})
		return
	}

	page, limit, offset := pageParams(r, 20, 100)
	txs, err := h.ledger.ListForPerformer(r.Context(), performerID, status, limit, offset)
	if err != nil {
		h.reqLog(r).Error().Err(err).Str("performer_id", performerID).Msg("performer transaction query failed")
		sendError(w, http.StatusInternalServerError, "Failed to fetch transactions", nil)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"performer_id": performerID,
		"transactions": txs,
		"page":         page,
		"limit":        limit,
	})
}

const validStatuses = "status must be one of: pending processing completed failed refunded"

func parseStatus(r *http.Request) (models.TransactionStatus, bool) {
	status := models.TransactionStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed, models.StatusRefunded:
		return status, true
	}
	return "", false
}
