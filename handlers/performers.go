package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MohammedAK1991/street-performers-map-sub000/audit"
	"github.com/MohammedAK1991/street-performers-map-sub000/directory"
	"github.com/MohammedAK1991/street-performers-map-sub000/middleware"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
	"github.com/MohammedAK1991/street-performers-map-sub000/tips"
	"github.com/MohammedAK1991/street-performers-map-sub000/utils"
	"github.com/gorilla/mux"
)

// GetPerformerEarnings is limited to the performer themself and admins.
func (h *Handlers) GetPerformerEarnings(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	performerID := mux.Vars(r)["id"]
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}
	if claims.UserID != performerID && !claims.IsAdmin() {
		sendError(w, http.StatusForbidden, "Access denied", nil)
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid from date", err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid to date", err.Error())
		return
	}

	sum, err := h.tips.PerformerSummary(r.Context(), performerID, from, to)
	if err != nil {
		h.reqLog(r).Error().Err(err).Str("performer_id", performerID).Msg("earnings query failed")
		sendError(w, http.StatusInternalServerError, "Failed to fetch earnings", nil)
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"performer_id":   performerID,
		"count":          sum.Count,
		"total_amount":   sum.TotalAmount,
		"average_amount": sum.AverageAmount,
		"total_fees":     sum.TotalFees,
		"total_net":      sum.TotalNet,
		"from":           from,
		"to":             to,
	})
}

// parseDateParam accepts RFC 3339 timestamps or plain dates.
func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be RFC 3339 or YYYY-MM-DD", name)
}

func (h *Handlers) ConnectAccount(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	var req models.ConnectAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	res, err := h.tips.StartOnboarding(r.Context(), tips.OnboardingInput{
		PerformerID:  claims.UserID,
		Email:        utils.SanitizeString(req.Email),
		Country:      req.Country,
		BusinessType: req.BusinessType,
	})
	if err != nil {
		h.sendAccountError(w, r, err)
		return
	}

	h.logAudit(r, &claims.UserID, audit.ActionConnectAccount, audit.ResourcePerformer, "onboarding link issued")
	sendJSON(w, http.StatusOK, accountResponse(res.Account, res.OnboardingURL))
}

func (h *Handlers) GetConnectStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	acct, err := h.tips.RefreshAccount(r.Context(), claims.UserID)
	if err != nil {
		h.sendAccountError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, accountResponse(acct, ""))
}

func (h *Handlers) CreateOnboardingLink(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		sendError(w, http.StatusUnauthorized, "Invalid or missing token", nil)
		return
	}

	var req models.OnboardingLinkRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			sendError(w, http.StatusBadRequest, "Invalid request body", nil)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
			return
		}
	}

	url, err := h.tips.OnboardingLink(r.Context(), claims.UserID, req.Type)
	if err != nil {
		h.sendAccountError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handlers) sendAccountError(w http.ResponseWriter, r *http.Request, err error) {
	var ge *payments.GatewayError
	switch {
	case payments.IsValidation(err):
		sendError(w, http.StatusBadRequest, "Validation failed", err.Error())
	case errors.Is(err, directory.ErrNotFound), errors.Is(err, tips.ErrNoConnectedAccount):
		sendError(w, http.StatusNotFound, "No connected account", nil)
	case errors.As(err, &ge), errors.Is(err, payments.ErrAccountNotFound):
		h.reqLog(r).Error().Err(err).Msg("connected account request failed")
		sendError(w, http.StatusBadGateway, "Payment processor unavailable", nil)
	default:
		h.reqLog(r).Error().Err(err).Msg("connected account request failed")
		sendError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func accountResponse(acct *models.PerformerAccount, onboardingURL string) models.ConnectAccountResponse {
	res := models.ConnectAccountResponse{
		OnboardingURL:    onboardingURL,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		AccountStatus:    acct.AccountStatus,
	}
	if acct.HasAccount() {
		res.AccountID = *acct.ConnectAccountID
	}
	return res
}

// TipAlerts upgrades to a websocket streaming the performer's completed tips.
func (h *Handlers) TipAlerts(w http.ResponseWriter, r *http.Request) {
	performerID := mux.Vars(r)["id"]
	if err := h.hub.Subscribe(w, r, performerID); err != nil {
		h.reqLog(r).Warn().Err(err).Str("performer_id", performerID).Msg("websocket upgrade failed")
	}
}
