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
	"github.com/spokeworks/bikeshop/pkg/money"
	"github.com/spokeworks/bikeshop/pkg/pagination"
	"github.com/spokeworks/bikeshop/pkg/validator"
)

// CouponHandler handles HTTP requests for coupon endpoints.
type CouponHandler struct {
	service *service.CouponService
	logger  *slog.Logger
}

// NewCouponHandler creates a new coupon HTTP handler.
func NewCouponHandler(svc *service.CouponService, logger *slog.Logger) *CouponHandler {
	return &CouponHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ApplyCouponRequest is the JSON request body for applying a coupon.
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,min=1,max=32"`
}

// --- Storefront handlers ---

// Validate handles GET /api/v1/coupons/validate?code=SAVE10&cart_total=40.00
// where cart_total is a decimal pounds string.
func (h *CouponHandler) Validate(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("code query parameter is required"), h.logger)
		return
	}
	cartTotal, err := money.Parse(r.URL.Query().Get("cart_total"))
	if err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("cart_total must be a decimal amount such as 40.00"), h.logger)
		return
	}

	result, err := h.service.Validate(r.Context(), code, cartTotal)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Apply handles POST /api/v1/coupons/apply
func (h *CouponHandler) Apply(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	var req ApplyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	applied, err := h.service.Apply(r.Context(), userID, req.Code)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: applied})
}

// --- Admin handlers ---

// Create handles POST /api/v1/admin/coupons
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCouponInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	coupon, err := h.service.Create(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: coupon})
}

// Get handles GET /api/v1/admin/coupons/{id}
func (h *CouponHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	coupon, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: coupon})
}

// List handles GET /api/v1/admin/coupons
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)

	var status *string
	if s := r.URL.Query().Get("status"); s != "" {
		status = &s
	}

	coupons, total, err := h.service.List(r.Context(), status, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	resp := httputil.NewPaginatedResponse[domain.Coupon](coupons, total, page.Page, page.PerPage)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: resp})
}

// Update handles PATCH /api/v1/admin/coupons/{id}
func (h *CouponHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req service.UpdateCouponInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
		return
	}
	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	coupon, err := h.service.Update(r.Context(), id.String(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: coupon})
}

// Archive handles DELETE /api/v1/admin/coupons/{id}
func (h *CouponHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Archive(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "archived"}})
}
