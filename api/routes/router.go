package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/discounts"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/redirects"
	"github.com/angelmondragon/storefront-backend/internal/reservations"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Deps collects everything the HTTP surface needs. DB and Redis are used for
// readiness checks; Redis also backs rate limiting and idempotency.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB      controllers.Pinger
	Redis   *redis.Client
	Metrics prometheus.Gatherer

	Catalog      *catalog.Service
	Settings     *settings.Service
	Discounts    *discounts.Service
	Evaluator    *discounts.Evaluator
	Shipping     *shipping.Service
	Inventory    *inventory.Service
	Reservations *reservations.Service
	Orders       orders.Service
	Checkout     *checkout.Service
	Redirects    *redirects.Service

	Stripe        *stripe.Client
	StripeWebhook *stripewebhook.Service
	WebhookDedupe *stripewebhook.Deduper
}

type rateLimiter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// NewRouter mounts the public storefront API, the admin API behind AdminAuth,
// the cron trigger, health checks and metrics.
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	var idempotencyStore redis.IdempotencyStore
	var limiter rateLimiter
	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		limiter = deps.Redis
		readiness["redis"] = deps.Redis
	}

	discountPolicy := middleware.NewRateLimitPolicy("discount-validate", cfg.RateLimit.Window, cfg.RateLimit.DiscountIPLimit, 0)
	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.Window, cfg.RateLimit.CheckoutIPLimit, cfg.RateLimit.CheckoutEmailLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/cron", func(r chi.Router) {
		r.Use(middleware.CronSecret(cfg.Cron.Secret, logg))
		cleanup := controllers.CleanupReservations(deps.Reservations, logg)
		r.Get("/cleanup-reservations", cleanup)
		r.Post("/cleanup-reservations", cleanup)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/products", controllers.Products(deps.Catalog, logg))
		r.Get("/products/{slug}", controllers.ProductBySlug(deps.Catalog, logg))
		r.Get("/categories", controllers.Categories(deps.Catalog, logg))
		r.Get("/search", controllers.Search(deps.Catalog, logg))

		r.With(middleware.RateLimit(discountPolicy, limiter, logg)).
			Post("/discount/validate", controllers.DiscountValidate(deps.Evaluator, logg))
		r.Post("/shipping/quote", controllers.ShippingQuote(deps.Shipping, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/quote", controllers.CheckoutQuote(deps.Checkout, logg))
			r.With(middleware.RateLimit(checkoutPolicy, limiter, logg)).
				Post("/sessions", controllers.CheckoutOpen(deps.Checkout, logg))
			r.Get("/sessions/{ref}", controllers.CheckoutStatus(deps.Checkout, logg))
		})

		r.Get("/orders/track", controllers.TrackOrder(deps.Orders, logg))
		r.Get("/settings", controllers.SiteSettings(deps.Settings, logg))
		r.Get("/policies/{slug}", controllers.PolicyPage(deps.Settings, logg))
		r.Get("/redirects", controllers.RedirectLookup(deps.Redirects, logg))

		r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.Stripe, deps.WebhookDedupe, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(middleware.AdminAuthParams{
			JWT:        cfg.JWT,
			Allowlist:  cfg.Admin,
			Production: cfg.App.IsProd(),
			Logger:     logg,
		}))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/inventory", func(r chi.Router) {
			r.Patch("/", controllers.AdminSetStock(deps.Inventory, logg))
			r.Patch("/bulk", controllers.AdminBulkInventory(deps.Inventory, logg))
			r.Get("/low-stock", controllers.AdminLowStock(deps.Inventory, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrders(deps.Orders, logg))
			r.Patch("/bulk", controllers.AdminOrdersBulkStatus(deps.Orders, logg))
			r.Get("/{id}", controllers.AdminOrderDetail(deps.Orders, logg))
			r.Patch("/{id}/status", controllers.AdminOrderStatus(deps.Orders, logg))
			r.Post("/{id}/notes", controllers.AdminOrderNote(deps.Orders, logg))
		})

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", controllers.AdminDiscounts(deps.Discounts, logg))
			r.Post("/", controllers.AdminCreateDiscount(deps.Discounts, logg))
			r.Patch("/{id}", controllers.AdminUpdateDiscount(deps.Discounts, logg))
			r.Delete("/{id}", controllers.AdminDeleteDiscount(deps.Discounts, logg))
		})

		r.Route("/shipping/zones", func(r chi.Router) {
			r.Get("/", controllers.AdminShippingZones(deps.Shipping, logg))
			r.Post("/", controllers.AdminCreateShippingZone(deps.Shipping, logg))
			r.Put("/{id}", controllers.AdminUpdateShippingZone(deps.Shipping, logg))
			r.Delete("/{id}", controllers.AdminDeleteShippingZone(deps.Shipping, logg))
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", controllers.AdminSettings(deps.Settings, logg))
			r.Post("/shipping/seed", controllers.AdminSeedShipping(deps.Shipping, logg))
			r.Put("/policies/{slug}", controllers.AdminPutPolicy(deps.Settings, logg))
			r.Put("/{key}", controllers.AdminPutSetting(deps.Settings, logg))
		})

		r.Route("/redirects", func(r chi.Router) {
			r.Get("/", controllers.AdminRedirects(deps.Redirects, logg))
			r.Post("/", controllers.AdminCreateRedirect(deps.Redirects, logg))
			r.Delete("/{id}", controllers.AdminDeleteRedirect(deps.Redirects, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(deps.Catalog, logg))
			r.Patch("/featured", controllers.AdminFeatureProducts(deps.Catalog, logg))
			r.Patch("/{id}", controllers.AdminUpdateProduct(deps.Catalog, logg))
			r.Delete("/{id}", controllers.AdminDeleteProduct(deps.Catalog, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.AdminCategories(deps.Catalog, logg))
			r.Post("/", controllers.AdminCreateCategory(deps.Catalog, logg))
		})
	})

	return r
}
