package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/spokeworks/bikeshop/internal/domain"
	"github.com/spokeworks/bikeshop/internal/event"
	"github.com/spokeworks/bikeshop/internal/provider"
	mockprovider "github.com/spokeworks/bikeshop/internal/provider/mock"
	"github.com/spokeworks/bikeshop/internal/repository"
	"github.com/spokeworks/bikeshop/internal/service"
	apperrors "github.com/spokeworks/bikeshop/pkg/errors"
	"github.com/spokeworks/bikeshop/pkg/health"
	"github.com/spokeworks/bikeshop/pkg/httputil"
	pkgkafka "github.com/spokeworks/bikeshop/pkg/kafka"
	"github.com/spokeworks/bikeshop/pkg/middleware"
)

// ============================================================================
// Mock repositories
// ============================================================================

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepo) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	args := m.Called(ctx, cart, expectedVersion)
	return args.Bool(0), args.Error(1)
}

func (m *mockCartRepo) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockSnapshotRepo struct {
	mock.Mock
}

func (m *mockSnapshotRepo) Put(ctx context.Context, snapshot *domain.CheckoutSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *mockSnapshotRepo) Get(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSnapshot), args.Error(1)
}

func (m *mockSnapshotRepo) Take(ctx context.Context, userID string) (*domain.CheckoutSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckoutSnapshot), args.Error(1)
}

func (m *mockSnapshotRepo) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockCouponRepo struct {
	mock.Mock
}

func (m *mockCouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCouponRepo) GetByID(ctx context.Context, id string) (*domain.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *mockCouponRepo) List(ctx context.Context, filter repository.CouponFilter) ([]domain.Coupon, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Coupon), args.Int(1), args.Error(2)
}

func (m *mockCouponRepo) Update(ctx context.Context, c *domain.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *mockCouponRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockCouponRepo) IncrementUsage(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockCouponRepo) RecordUsage(ctx context.Context, usage *domain.CouponUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

type mockShippingRepo struct {
	mock.Mock
}

func (m *mockShippingRepo) Get(ctx context.Context) (*domain.ShippingSettings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShippingSettings), args.Error(1)
}

func (m *mockShippingRepo) Upsert(ctx context.Context, s *domain.ShippingSettings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id, status, reason string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *domain.PaymentIntent) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id string) (*domain.PaymentIntent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentIntent), args.Error(1)
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, p *domain.PaymentIntent) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// ============================================================================
// Test helpers
// ============================================================================

type testEnv struct {
	router    http.Handler
	cartRepo  *mockCartRepo
	snapshots *mockSnapshotRepo
	coupons   *mockCouponRepo
	shipping  *mockShippingRepo
	orders    *mockOrderRepo
	payments  *mockPaymentRepo
	provider  provider.Provider
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testValidator accepts two fixed tokens: "shopper-token" for user-1 and
// "admin-token" for the admin role.
func testValidator(token string) (*middleware.Claims, error) {
	switch token {
	case "shopper-token":
		return &middleware.Claims{UserID: "user-1", Role: "customer"}, nil
	case "admin-token":
		return &middleware.Claims{UserID: "admin-1", Role: "admin"}, nil
	default:
		return nil, errors.New("invalid token")
	}
}

func newTestEnv() *testEnv {
	logger := testLogger()
	kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig([]string{"localhost:19092"}), logger)
	producer := event.NewProducer(kafkaProducer, logger)

	env := &testEnv{
		cartRepo:  new(mockCartRepo),
		snapshots: new(mockSnapshotRepo),
		coupons:   new(mockCouponRepo),
		shipping:  new(mockShippingRepo),
		orders:    new(mockOrderRepo),
		payments:  new(mockPaymentRepo),
		provider:  mockprovider.NewProvider(),
	}

	cartSvc := service.NewCartService(env.cartRepo, producer, logger, 24*time.Hour)
	couponSvc := service.NewCouponService(env.coupons, env.cartRepo, producer, logger)
	shippingSvc := service.NewShippingService(env.shipping, logger, time.Minute)
	checkoutSvc := service.NewCheckoutService(env.snapshots, env.cartRepo, env.coupons, shippingSvc, producer, logger, 30*time.Minute)
	orderSvc := service.NewOrderService(env.orders, env.payments, env.coupons, checkoutSvc, cartSvc, env.provider, producer, logger)

	env.router = NewRouter(RouterDeps{
		Cart:          cartSvc,
		Coupons:       couponSvc,
		Shipping:      shippingSvc,
		Checkout:      checkoutSvc,
		Orders:        orderSvc,
		Health:        health.NewHandler(),
		TokenValidate: testValidator,
		Logger:        logger,
		CORS:          middleware.DefaultCORSConfig(),
	})

	return env
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func userCart(total int64) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:     "cart-1",
		UserID: "user-1",
		Items: []domain.CartItem{
			{ProductID: "prod-1", Name: "Chain Lube", SKU: "LUBE-01", Price: total, Quantity: 1},
		},
		Currency:  "GBP",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}
}

func shopShipping() *domain.ShippingSettings {
	return &domain.ShippingSettings{
		ShippingCharge:        500,
		FreeShippingThreshold: 5000,
		UpdatedAt:             time.Now().UTC(),
	}
}

// ============================================================================
// Auth
// ============================================================================

func TestRouter_RejectsMissingToken(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RejectsNonAdminOnAdminRoutes(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/admin/coupons", "shopper-token", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ============================================================================
// Cart
// ============================================================================

func TestGetCartSummary_HTTP(t *testing.T) {
	env := newTestEnv()

	env.cartRepo.On("Get", mock.Anything, "user-1").Return(userCart(4000), nil)

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/cart/summary", "shopper-token", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(4000), data["total"])
	formatted := data["formatted"].(map[string]any)
	assert.Equal(t, "£40.00", formatted["total"])
}

func TestAddItem_HTTP_ValidationError(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/cart/items", "shopper-token", map[string]any{
		"product_id": "prod-1",
		// name, sku, price, quantity missing
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

// ============================================================================
// Shipping quote
// ============================================================================

func TestShippingQuote_HTTP_BelowThreshold(t *testing.T) {
	env := newTestEnv()

	env.shipping.On("Get", mock.Anything).Return(shopShipping(), nil)

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/shipping/quote?amount=40.00", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "charged", data["state"])
	assert.Equal(t, float64(500), data["cost"])
	assert.Equal(t, float64(1000), data["amount_to_free"])
	assert.Equal(t, "add £10.00 more for free shipping", data["message"])
}

func TestShippingQuote_HTTP_RejectsMalformedAmount(t *testing.T) {
	env := newTestEnv()

	for _, amount := range []string{"", "abc", "40.005", "-5"} {
		rec := doRequest(t, env.router, http.MethodGet, "/api/v1/shipping/quote?amount="+amount, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount=%q", amount)
	}
}

func TestShippingQuote_HTTP_UnknownWhenUnconfigured(t *testing.T) {
	env := newTestEnv()

	env.shipping.On("Get", mock.Anything).Return(nil, apperrors.NotFound("shipping settings", "1"))

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/shipping/quote?amount=90.00", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	// Never "free" when the settings have not loaded.
	assert.Equal(t, "unknown", data["state"])
}

// ============================================================================
// Checkout
// ============================================================================

func TestProceedToCheckout_HTTP(t *testing.T) {
	env := newTestEnv()

	env.cartRepo.On("Get", mock.Anything, "user-1").Return(userCart(6000), nil)
	env.shipping.On("Get", mock.Anything).Return(shopShipping(), nil)
	env.snapshots.On("Put", mock.Anything, mock.AnythingOfType("*domain.CheckoutSnapshot")).Return(nil)

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/checkout", "shopper-token", map[string]any{})

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "free", data["shipping_state"])
	assert.Equal(t, float64(6000), data["total"])
}

func TestGetCheckout_HTTP_MissingSnapshotIs404(t *testing.T) {
	env := newTestEnv()

	env.snapshots.On("Get", mock.Anything, "user-1").Return(nil, apperrors.NotFound("checkout snapshot", "user-1"))

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/checkout", "shopper-token", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// Coupons
// ============================================================================

func TestValidateCoupon_HTTP_Shortfall(t *testing.T) {
	env := newTestEnv()

	now := time.Now().UTC()
	env.coupons.On("GetByCode", mock.Anything, "SAVE10").Return(&domain.Coupon{
		ID:             "coupon-1",
		Code:           "SAVE10",
		DiscountType:   domain.DiscountTypePercentage,
		DiscountValue:  1000,
		MinOrderAmount: 5000,
		Status:         domain.CouponStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil)

	rec := doRequest(t, env.router, http.MethodGet, "/api/v1/coupons/validate?code=SAVE10&cart_total=40.00", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	assert.Equal(t, false, data["valid"])
	assert.Equal(t, float64(1000), data["shortfall"])
	assert.Equal(t, "add £10.00 more to use this coupon", data["message"])
}

// ============================================================================
// Orders
// ============================================================================

func TestPlaceOrder_HTTP_MissingSnapshot(t *testing.T) {
	env := newTestEnv()

	env.snapshots.On("Take", mock.Anything, "user-1").Return(nil, apperrors.NotFound("checkout snapshot", "user-1"))

	rec := doRequest(t, env.router, http.MethodPost, "/api/v1/orders", "shopper-token", map[string]any{
		"payment_method": "pay_on_delivery",
		"shipping_address": map[string]any{
			"full_name":    "Sam Wheeler",
			"address_line": "12 Chain Lane",
			"city":         "Bristol",
			"postal_code":  "BS1 4DJ",
			"country":      "GB",
		},
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus_HTTP_AdminOnly(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.router, http.MethodPatch,
		"/api/v1/admin/orders/6edcbb2e-9603-44b2-97a4-12ef2e8d4a9c/status", "shopper-token",
		map[string]any{"status": "confirmed"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
