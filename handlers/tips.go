package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MohammedAK1991/street-performers-map-sub000/middleware"
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
	"github.com/MohammedAK1991/street-performers-map-sub000/tips"
	"github.com/MohammedAK1991/street-performers-map-sub000/utils"
	"github.com/gorilla/mux"
)

// CreateTip opens a payment intent for a tip. Authentication is optional.
func (h *Handlers) CreateTip(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		sendError(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationError(err))
		return
	}

	geo := middleware.GetGeo(r)
	in := tips.TipInput{
		Amount:        req.Amount,
		Currency:      req.Currency,
		PerformanceID: utils.SanitizeString(req.PerformanceID),
		PerformerID:   utils.SanitizeString(req.PerformerID),
		IsAnonymous:   req.IsAnonymous,
		PublicMessage: utils.SanitizeString(req.PublicMessage),
		Country:       geo.Country,
		City:          geo.City,
	}
	if claims := middleware.GetUserFromContext(r); claims != nil {
		in.TipperID = claims.UserID
	}
	if req.Coordinates != nil {
		in.Coordinates = &tips.Coordinates{Latitude: req.Coordinates.Latitude, Longitude: req.Coordinates.Longitude}
	}

	res, err := h.tips.CreateTip(r.Context(), in)
	if err != nil {
		h.sendTipError(w, r, err)
		return
	}

	sendJSON(w, http.StatusCreated, models.CreateTipResponse{
		TransactionID: res.TransactionID,
		ClientSecret:  res.ClientSecret,
		Amount:        res.AmountMinor,
		ProcessingFee: res.ProcessingFee,
		PlatformFee:   res.PlatformFee,
		NetAmount:     res.NetAmount,
		Currency:      res.Currency,
	})
}

// sendTipError maps service errors to responses. Processor details never
// reach the client.
func (h *Handlers) sendTipError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *payments.ValidationError
	var ge *payments.GatewayError
	switch {
	case errors.As(err, &ve):
		sendError(w, http.StatusBadRequest, "Validation failed", map[string]string{ve.Field: ve.Error()})
	case errors.As(err, &ge):
		sendError(w, http.StatusBadGateway, "Payment processor unavailable", nil)
	case errors.Is(err, tips.ErrRecordTip):
		sendError(w, http.StatusInternalServerError, "Could not record tip", nil)
	default:
		h.reqLog(r).Error().Err(err).Msg("tip request failed")
		sendError(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func (h *Handlers) GetPerformanceTips(w http.ResponseWriter, r *http.Request) {
	performanceID := mux.Vars(r)["id"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	recent, err := h.tips.RecentPublicTips(r.Context(), performanceID, limit)
	if err != nil {
		h.reqLog(r).Error().Err(err).Str("performance_id", performanceID).Msg("recent tips query failed")
		sendError(w, http.StatusInternalServerError, "Failed to fetch tips", nil)
		return
	}
	if recent == nil {
		recent = []models.PublicTip{}
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"performance_id": performanceID,
		"tips":           recent,
	})
}
