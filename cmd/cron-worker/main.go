package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/fashionstore-backend/internal/cart"
	"github.com/angelmondragon/fashionstore-backend/internal/cron"
	"github.com/angelmondragon/fashionstore-backend/internal/orders"
	"github.com/angelmondragon/fashionstore-backend/internal/products"
	"github.com/angelmondragon/fashionstore-backend/internal/wallets"
	"github.com/angelmondragon/fashionstore-backend/pkg/config"
	"github.com/angelmondragon/fashionstore-backend/pkg/db"
	"github.com/angelmondragon/fashionstore-backend/pkg/instance"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/metrics"
	"github.com/angelmondragon/fashionstore-backend/pkg/migrate"
	"github.com/angelmondragon/fashionstore-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	walletMetrics := metrics.NewWalletMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	conn := dbClient.DB()
	walletService, err := wallets.NewService(wallets.NewRepository(conn), dbClient, logg, walletMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet service", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:        orders.NewRepository(conn),
		Products:    products.NewRepository(conn),
		Cart:        cart.NewRepository(conn),
		Wallets:     walletService,
		DB:          dbClient,
		ShippingFee: shippingFee,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{
		Logger:    logg,
		Wallets:   walletService,
		Metrics:   walletMetrics,
		BatchSize: cfg.Cron.ReconcileBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create wallet reconcile job", err)
		os.Exit(1)
	}
	expiryJob, err := cron.NewUnpaidOrderExpiryJob(cron.UnpaidOrderExpiryJobParams{
		Logger: logg,
		Orders: ordersService,
		TTL:    cfg.Cron.UnpaidOrderTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create unpaid order expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(reconcileJob, expiryJob)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
