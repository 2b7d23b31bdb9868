package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/spokeworks/bikeshop/internal/service"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
	"github.com/spokeworks/bikeshop/pkg/httputil"
	"github.com/spokeworks/bikeshop/pkg/middleware"
	"github.com/spokeworks/bikeshop/pkg/validator"
)

// CheckoutHandler handles HTTP requests for the checkout flow.
type CheckoutHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: svc,
		logger:  logger,
	}
}

// ProceedRequest is the JSON request body for proceeding to checkout. The
// coupon code is optional; it is re-validated server-side.
type ProceedRequest struct {
	CouponCode string `json:"coupon_code" validate:"omitempty,max=32"`
}

// Proceed handles POST /api/v1/checkout
func (h *CheckoutHandler) Proceed(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req ProceedRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
			return
		}
		if err := validator.Validate(req); err != nil {
			httputil.WriteValidationError(w, err)
			return
		}
	}

	snapshot, err := h.service.Proceed(r.Context(), userID, req.CouponCode)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: snapshot})
}

// GetSnapshot handles GET /api/v1/checkout
// A 404 here means there is no pending checkout; the client goes back to the
// cart rather than rendering stale numbers.
func (h *CheckoutHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	snapshot, err := h.service.Snapshot(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: snapshot})
}

// Abandon handles DELETE /api/v1/checkout
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	if err := h.service.Abandon(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "abandoned"}})
}
