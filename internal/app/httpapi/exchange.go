package httpapi

import (
	"net/http"

	"github.com/R3E-Network/fortivo/internal/httputil"
)

func (h *handler) exchangeRates(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Exchange.Rates(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed_to_fetch_rates")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *handler) convert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.app.Exchange.Convert(r.Context(), q.Get("amount"), q.Get("from"), q.Get("to"))
	if err != nil {
		h.fail(w, r, err, "conversion_failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
