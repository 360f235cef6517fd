package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/posi-ecosystem/fati-backend/internal/services"
)

type WebhookHandler struct {
	billing *services.BillingWebhookService
	maxBody int64
}

func NewWebhookHandler(billing *services.BillingWebhookService, maxBody int64) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = 65536
	}
	return &WebhookHandler{billing: billing, maxBody: maxBody}
}

// Stripe receives payment provider events
// @Summary Stripe webhook
// @Description Verifies the Stripe-Signature header and applies the event once per event id
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature header"
// @Success 200 {object} services.WebhookResult
// @Failure 400 {object} services.ErrorResponse "Bad signature or malformed event"
// @Failure 500 {object} services.ErrorResponse "Processing failed; the provider will redeliver"
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			services.SendErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge, nil)
			return
		}
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		services.SendErrorResponse(w, "Missing Stripe-Signature header", http.StatusBadRequest, nil)
		return
	}

	result, err := h.billing.HandleWebhook(r.Context(), payload, signature)
	if err != nil {
		log.Printf("[WEBHOOK] Webhook handling failed: %v", err)
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
