package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/MohammedAK1991/street-performers-map-sub000/payments"
)

const signatureHeader = "Stripe-Signature"

// StripeWebhook must receive the body unmodified; the signature covers the
// exact bytes.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	err = h.tips.HandleProcessorWebhook(r.Context(), body, r.Header.Get(signatureHeader))
	if errors.Is(err, payments.ErrInvalidSignature) {
		sendError(w, http.StatusBadRequest, "Invalid signature", nil)
		return
	}
	if err != nil {
		sendError(w, http.StatusInternalServerError, "Webhook processing failed", nil)
		return
	}
	sendJSON(w, http.StatusOK, map[string]bool{"received": true})
}
