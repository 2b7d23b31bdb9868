package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spokeworks/bikeshop/internal/service"
	"github.com/spokeworks/bikeshop/pkg/health"
	"github.com/spokeworks/bikeshop/pkg/middleware"
)

// RouterDeps bundles everything the router needs.
type RouterDeps struct {
	Cart     *service.CartService
	Coupons  *service.CouponService
	Shipping *service.ShippingService
	Checkout *service.CheckoutService
	Orders   *service.OrderService

	Health        *health.Handler
	TokenValidate middleware.TokenValidator
	Logger        *slog.Logger
	PprofCIDRs    []string
	CORS          middleware.CORSConfig
}

// NewRouter creates a chi router with all storefront and admin routes.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.PrometheusMetrics("bikeshop"))
	r.Use(middleware.Tracing("bikeshop"))
	r.Use(middleware.RequestLogger(deps.Logger))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, deps.PprofCIDRs, deps.Logger)

	cartHandler := NewCartHandler(deps.Cart, deps.Logger)
	couponHandler := NewCouponHandler(deps.Coupons, deps.Logger)
	shippingHandler := NewShippingHandler(deps.Shipping, deps.Logger)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, deps.Logger)
	orderHandler := NewOrderHandler(deps.Orders, deps.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public storefront endpoints. Quotes are cacheable for a short
		// window, settings change rarely.
		r.With(middleware.CacheControl(60)).Get("/shipping/quote", shippingHandler.Quote)
		r.Get("/coupons/validate", couponHandler.Validate)

		// Authenticated shopper endpoints.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.TokenValidate))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Get("/summary", cartHandler.GetSummary)

				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
			})

			// Coupon application is rate limited per client.
			r.With(middleware.RateLimit(middleware.DefaultRateLimitConfig())).
				Post("/coupons/apply", couponHandler.Apply)

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.Proceed)
				r.Get("/", checkoutHandler.GetSnapshot)
				r.Delete("/", checkoutHandler.Abandon)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orderHandler.Place)
				r.Get("/", orderHandler.List)
				r.Post("/payment-intent", orderHandler.CreatePaymentIntent)
				r.Get("/{id}", orderHandler.Get)
				r.Post("/{id}/cancel", orderHandler.Cancel)
			})
		})

		// Admin endpoints.
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(deps.TokenValidate))
			r.Use(middleware.RequireRole("admin"))

			r.Route("/coupons", func(r chi.Router) {
				r.Post("/", couponHandler.Create)
				r.Get("/", couponHandler.List)
				r.Get("/{id}", couponHandler.Get)
				r.Patch("/{id}", couponHandler.Update)
				r.Delete("/{id}", couponHandler.Archive)
			})

			r.Route("/shipping-settings", func(r chi.Router) {
				r.Get("/", shippingHandler.GetSettings)
				r.Put("/", shippingHandler.UpsertSettings)
			})

			r.Patch("/orders/{id}/status", orderHandler.UpdateStatus)
		})
	})

	return r
}
