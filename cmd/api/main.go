package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/fashionstore-backend/api"
	"github.com/angelmondragon/fashionstore-backend/api/routes"
	"github.com/angelmondragon/fashionstore-backend/internal/auth"
	"github.com/angelmondragon/fashionstore-backend/internal/cart"
	"github.com/angelmondragon/fashionstore-backend/internal/categories"
	"github.com/angelmondragon/fashionstore-backend/internal/orders"
	"github.com/angelmondragon/fashionstore-backend/internal/products"
	"github.com/angelmondragon/fashionstore-backend/internal/users"
	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/auth/session"
	"github.com/angelmondragon/fashionstore-backend/pkg/config"
	"github.com/angelmondragon/fashionstore-backend/pkg/db"
	"github.com/angelmondragon/fashionstore-backend/pkg/instance"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/metrics"
	"github.com/angelmondragon/fashionstore-backend/pkg/migrate"
	"github.com/angelmondragon/fashionstore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	shippingFee, err := cfg.Store.ShippingFeeAmount()
	if err != nil {
		logg.Error(context.Background(), "invalid shipping fee", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := metrics.NewRegistry()
	walletMetrics := metrics.NewWalletMetrics(registry)

	conn := dbClient.DB()
	userRepo := users.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)

	walletService, err := wallets.NewService(wallets.NewRepository(conn), dbClient, logg, walletMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		Wallets:        walletService,
		DB:             dbClient,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	categoryService, err := categories.NewService(categories.NewRepository(conn), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create category service", err)
		os.Exit(1)
	}

	productService, err := products.NewService(productRepo, categoryService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, productRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(conn),
		Products:    productRepo,
		Cart:        cartRepo,
		Wallets:     walletService,
		DB:          dbClient,
		ShippingFee: shippingFee,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	handler := routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		sessionManager,
		userRepo,
		registry,
		authService,
		categoryService,
		productService,
		cartService,
		ordersService,
		walletService,
	)

	if err := api.Serve(ctx, api.NewServer(addr, handler), logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}
