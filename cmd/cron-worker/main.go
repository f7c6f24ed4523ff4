package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shopvana/shopvana-backend/internal/cron"
	"github.com/shopvana/shopvana-backend/internal/notifications"
	ordersvc "github.com/shopvana/shopvana-backend/internal/orders"
	paymentsvc "github.com/shopvana/shopvana-backend/internal/payments"
	"github.com/shopvana/shopvana-backend/internal/users"
	"github.com/shopvana/shopvana-backend/pkg/chapa"
	"github.com/shopvana/shopvana-backend/pkg/config"
	"github.com/shopvana/shopvana-backend/pkg/db"
	"github.com/shopvana/shopvana-backend/pkg/logger"
	"github.com/shopvana/shopvana-backend/pkg/metrics"
	"github.com/shopvana/shopvana-backend/pkg/migrate"
	"github.com/shopvana/shopvana-backend/pkg/redis"
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

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	chapaClient, err := chapa.NewClient(context.Background(), cfg.Chapa, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create chapa client", err)
		os.Exit(1)
	}

	dispatcher, err := notifications.NewDispatcher(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	orderRepo := ordersvc.NewRepository(dbClient.DB())
	orderService, err := ordersvc.NewService(dbClient, orderRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	paymentService, err := paymentsvc.NewService(
		dbClient,
		paymentsvc.NewRepository(dbClient.DB()),
		orderRepo,
		users.NewRepository(dbClient.DB()),
		chapaClient,
		dispatcher,
		paymentMetrics,
		cfg.Payments,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	pendingJob, err := cron.NewPendingPaymentsJob(cron.PendingPaymentsJobParams{
		Logger:   logg,
		Payments: paymentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending payments job", err)
		os.Exit(1)
	}

	windowJob, err := cron.NewPaymentWindowJob(cron.PaymentWindowJobParams{
		Logger: logg,
		Orders: orderRepo,
		Cancel: orderService,
		Grace:  cfg.Payments.WindowGrace,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment window job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(pendingJob, windowJob)
	if cfg.FeatureFlags.SimulateCallbacks {
		simulateJob, err := cron.NewSimulatedCallbacksJob(cron.SimulatedCallbacksJobParams{
			Logger:   logg,
			Payments: paymentService,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create simulated callbacks job", err)
			os.Exit(1)
		}
		registry.Register(simulateJob)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
