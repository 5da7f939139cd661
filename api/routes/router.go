package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/auth/session"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// RouterParams carries everything the HTTP surface is built from.
type RouterParams struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	RateLimiter middleware.RateLimitStore
	Sessions    session.AccessSessionChecker
	CookieStore sessions.Store
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
	Catalog     catalog.Service
	Cart        cart.Service
	Checkout    checkout.Service
	Orders      orders.Service
	Auth        auth.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(p.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	requireAuth := middleware.RequireAuth(cfg.JWT, p.Sessions, logg)
	optionalAuth := middleware.OptionalAuth(cfg.JWT, p.Sessions, logg)

	cookieStore := p.CookieStore
	if cookieStore == nil {
		cookieStore = middleware.NewCookieStore(cfg.Session)
	}
	cartSession := middleware.CartSession(cookieStore, cfg.Session.CookieName, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/categories", controllers.ListCategories(p.Catalog, logg))
		r.Get("/products", controllers.ListProducts(p.Catalog, logg))
		r.Get("/products/{slug}", controllers.GetProduct(p.Catalog, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(cartSession)
			r.Get("/", cartcontrollers.CartFetch(p.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(p.Cart, logg))
			r.Get("/count", cartcontrollers.CartCount(p.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(p.Cart, logg))
			r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(p.Cart, logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(p.Cart, logg))
		})

		r.With(cartSession, optionalAuth).Post("/checkout", controllers.Checkout(p.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(optionalAuth).Get("/{orderNumber}/confirmation", ordercontrollers.Confirmation(p.Orders, logg))
			r.With(requireAuth).Get("/", ordercontrollers.List(p.Orders, logg))
			r.With(requireAuth).Post("/{orderId}/cancel", ordercontrollers.CancelOrder(p.Orders, logg))
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, p.RateLimiter, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, p.RateLimiter, logg)).Post("/register", controllers.AuthRegister(p.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(p.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		})
	})

	return r
}
