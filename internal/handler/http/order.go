package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/service"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
	"github.com/spokeworks/bikeshop/pkg/httputil"
	"github.com/spokeworks/bikeshop/pkg/middleware"
	"github.com/spokeworks/bikeshop/pkg/pagination"
	"github.com/spokeworks/bikeshop/pkg/validator"
)

// OrderHandler handles HTTP requests for order placement and lifecycle.
type OrderHandler struct {
	service *service.OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// PlaceOrderRequest is the JSON request body for placing an order.
type PlaceOrderRequest struct {
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=pay_on_delivery card"`
	PaymentID       string          `json:"payment_id"`
	ShippingAddress *domain.Address `json:"shipping_address" validate:"required"`
	BillingAddress  *domain.Address `json:"billing_address"`
	Notes           string          `json:"notes" validate:"max=1000"`
}

// UpdateStatusRequest is the JSON request body for an admin status update.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered canceled refunded"`
	Reason string `json:"reason" validate:"max=500"`
}

// CancelRequest is the JSON request body for canceling an order.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// --- Handlers ---

// Place handles POST /api/v1/orders
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.Place(r.Context(), userID, service.PlaceOrderInput{
		PaymentMethod:   req.PaymentMethod,
		PaymentID:       req.PaymentID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// CreatePaymentIntent handles POST /api/v1/orders/payment-intent
func (h *OrderHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	intent, err := h.service.CreatePaymentIntent(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: intent})
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.Get(r.Context(), id.String(), userID, isAdmin(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// List handles GET /api/v1/orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	page := pagination.FromRequest(r)

	var status *string
	if s := r.URL.Query().Get("status"); s != "" {
		status = &s
	}

	// Admins may list across users; everyone else is scoped to themselves.
	scope := userID
	if isAdmin(r) && r.URL.Query().Get("all") == "true" {
		scope = ""
	}

	orders, total, err := h.service.List(r.Context(), scope, status, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := httputil.NewPaginatedResponse[domain.Order](orders, total, page.Page, page.PerPage)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

// Cancel handles POST /api/v1/orders/{id}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req CancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
			return
		}
	}

	order, err := h.service.Cancel(r.Context(), id.String(), userID, req.Reason, isAdmin(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateStatus handles PATCH /api/v1/admin/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), id.String(), req.Status, req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

func isAdmin(r *http.Request) bool {
	return middleware.RoleFromContext(r.Context()) == "admin"
}
