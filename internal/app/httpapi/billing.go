package httpapi

import (
	"net/http"

	"github.com/R3E-Network/fortivo/internal/app/services/billing"
	"github.com/R3E-Network/fortivo/internal/errors"
	"github.com/R3E-Network/fortivo/internal/httputil"
)

const maxWebhookBody = 1 << 20

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	var body billing.CheckoutInput
	if !h.decode(w, r, &body) {
		return
	}
	session, err := h.app.Billing.CreateCheckoutSession(r.Context(), userID(r), body)
	if err != nil {
		h.fail(w, r, err, "failed_to_create_checkout_session")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *handler) billingWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.app.Billing.Enabled() {
		httputil.WriteServiceError(w, r, errors.Unavailable("billing_disabled", "Billing is not configured"), "")
		return
	}
	payload, err := httputil.ReadAllStrict(r.Body, maxWebhookBody)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "Payload too large"})
		return
	}
	if err := h.app.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
