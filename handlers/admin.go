package handlers

import (
	"net/http"
	"strconv"
)

func (h *Handlers) GetAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r, 50, 100)

	logs, total, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		h.reqLog(r).Error().Err(err).Msg("audit log query failed")
		sendError(w, http.StatusInternalServerError, "Failed to fetch audit logs", nil)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handlers) GetTransactions(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r, 20, 100)

	status, ok := parseStatus(r)
	if !ok {
		sendError(w, http.StatusBadRequest, "Invalid status", map[string]string{"status": validStatuses})
		return
	}

	txs, err := h.ledger.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		h.reqLog(r).Error().Err(err).Msg("transaction query failed")
		sendError(w, http.StatusInternalServerError, "Failed to fetch transactions", nil)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"page":         page,
		"limit":        limit,
	})
}

func (h *Handlers) GetWebhookEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.audit.ListWebhookEvents(r.Context(), limit)
	if err != nil {
		h.reqLog(r).Error().Err(err).Msg("webhook event query failed")
		sendError(w, http.StatusInternalServerError, "Failed to fetch webhook events", nil)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
