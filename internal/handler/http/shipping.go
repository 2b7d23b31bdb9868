package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/spokeworks/bikeshop/internal/pricing"
	"github.com/spokeworks/bikeshop/internal/service"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
	"github.com/spokeworks/bikeshop/pkg/httputil"
	"github.com/spokeworks/bikeshop/pkg/money"
	"github.com/spokeworks/bikeshop/pkg/validator"
)

// ShippingHandler handles HTTP requests for shipping settings and quotes.
type ShippingHandler struct {
	service *service.ShippingService
	logger  *slog.Logger
}

// NewShippingHandler creates a new shipping HTTP handler.
func NewShippingHandler(svc *service.ShippingService, logger *slog.Logger) *ShippingHandler {
	return &ShippingHandler{
		service: svc,
		logger:  logger,
	}
}

// QuoteResponse is the storefront shipping quote. State is one of unknown,
// free, or charged; when the settings have not loaded the state is unknown
// and the storefront must not render "free shipping".
type QuoteResponse struct {
	State        pricing.QuoteState `json:"state"`
	Cost         int64              `json:"cost"`
	CostDisplay  string             `json:"cost_display"`
	AmountToFree int64              `json:"amount_to_free"`
	Message      string             `json:"message,omitempty"`
}

// Quote handles GET /api/v1/shipping/quote?amount=40.00 — the amount is a
// decimal pounds string, parsed to pence with integer arithmetic.
func (h *ShippingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	amount, err := money.Parse(r.URL.Query().Get("amount"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("amount must be a decimal amount such as 40.00"), h.logger)
		return
	}

	quote, err := h.service.Quote(r.Context(), amount)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := QuoteResponse{
		State:       quote.State,
		Cost:        quote.Cost,
		CostDisplay: money.Format(quote.Cost),
	}
	if quote.State == pricing.QuoteCharged {
		needed, err := h.service.AmountNeededForFreeShipping(r.Context(), amount)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		resp.AmountToFree = needed
		if needed > 0 {
			resp.Message = "add " + money.Format(needed) + " more for free shipping"
		}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

// GetSettings handles GET /api/v1/admin/shipping-settings
func (h *ShippingHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: settings})
}

// UpsertSettings handles PUT /api/v1/admin/shipping-settings
func (h *ShippingHandler) UpsertSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpsertShippingSettingsInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	settings, err := h.service.UpsertSettings(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: settings})
}
