package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/fashionstore-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/fashionstore-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/fashionstore-backend/api/controllers/orders"
	walletcontrollers "github.com/angelmondragon/fashionstore-backend/api/controllers/wallet"
	"github.com/angelmondragon/fashionstore-backend/api/middleware"
	"github.com/angelmondragon/fashionstore-backend/internal/auth"
	"github.com/angelmondragon/fashionstore-backend/internal/cart"
	"github.com/angelmondragon/fashionstore-backend/internal/categories"
	"github.com/angelmondragon/fashionstore-backend/internal/orders"
	"github.com/angelmondragon/fashionstore-backend/internal/products"
	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/auth/session"
	"github.com/angelmondragon/fashionstore-backend/pkg/config"
	"github.com/angelmondragon/fashionstore-backend/pkg/db"
	"github.com/angelmondragon/fashionstore-backend/pkg/enums"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/fashionstore-backend/pkg/redis"
)

// redisStore is the slice of *redis.Client the HTTP layer needs.
type redisStore interface {
	pkgredis.IdempotencyStore
	Ping(ctx context.Context) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store redisStore,
	sessions session.AccessSessionChecker,
	userLookup middleware.UserLookup,
	registry *prometheus.Registry,
	authService auth.Service,
	categoryService categories.Service,
	productService products.Service,
	cartService cart.Service,
	ordersService orders.Service,
	walletService wallets.Service,
) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(registry)
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
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

	// a nil *redis.Client must not reach the middleware as a non-nil interface
	deps := map[string]controllers.Pinger{}
	if dbP != nil {
		deps["database"] = dbP
	}
	if store != nil {
		deps["redis"] = store
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))
	}

	authenticate := middleware.Auth(cfg.JWT, sessions, userLookup, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, store, logg)).Post("/register", controllers.AuthRegister(authService, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, store, logg)).Post("/login", controllers.AuthLogin(authService, logg))
			r.Post("/refresh", controllers.AuthRefresh(authService, logg))
			r.Post("/logout", controllers.AuthLogout(authService, cfg.JWT, logg))
			r.With(authenticate).Get("/me", controllers.AuthMe(authService, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoryList(categoryService, logg))
			r.Get("/{categoryId}", controllers.CategoryDetail(categoryService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(productService, logg))
			r.Get("/{productId}", controllers.ProductDetail(productService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RateLimit(store, logg))
			r.Use(middleware.Idempotency(store, logg))

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", walletcontrollers.Fetch(walletService, logg))
				r.Get("/transactions", walletcontrollers.Transactions(walletService, logg))
				r.Post("/pay/{orderId}", walletcontrollers.Pay(ordersService, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.CartFetch(cartService, logg))
				r.Post("/", cartcontrollers.CartAdd(cartService, logg))
				r.Delete("/", cartcontrollers.CartClear(cartService, logg))
				r.Put("/{itemId}", cartcontrollers.CartUpdateItem(cartService, logg))
				r.Delete("/{itemId}", cartcontrollers.CartRemoveItem(cartService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Checkout(ordersService, logg))
				r.Get("/", ordercontrollers.List(ordersService, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.CancelOrder(ordersService, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
		r.Use(middleware.RateLimit(store, logg))
		r.Use(middleware.Idempotency(store, logg))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.CategoryList(categoryService, logg))
			r.Get("/stats", controllers.AdminCategoryStats(categoryService, logg))
			r.Post("/", controllers.AdminCategoryCreate(categoryService, logg))
			r.Put("/{categoryId}", controllers.AdminCategoryUpdate(categoryService, logg))
			r.Delete("/{categoryId}", controllers.AdminCategoryDelete(categoryService, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminProductList(productService, logg))
			r.Get("/{productId}", controllers.AdminProductDetail(productService, logg))
			r.Post("/", controllers.AdminProductCreate(productService, logg))
			r.Patch("/{productId}", controllers.AdminProductUpdate(productService, logg))
			r.Delete("/{productId}", controllers.AdminProductDelete(productService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.AdminDetail(ordersService, logg))
			r.Patch("/{orderId}/status", ordercontrollers.AdminUpdateStatus(ordersService, logg))
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", walletcontrollers.AdminList(walletService, logg))
			r.Get("/transactions", walletcontrollers.AdminTransactions(walletService, logg))
			r.Post("/deposit", walletcontrollers.AdminDeposit(walletService, logg))
			r.Patch("/{walletId}/status", walletcontrollers.AdminSetStatus(walletService, logg))
			r.Get("/users/{userId}/transactions", walletcontrollers.AdminUserTransactions(walletService, logg))
		})
	})

	return r
}
