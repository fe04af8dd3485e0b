package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coffee-shop/config"
	"coffee-shop/internal/api"
	"coffee-shop/internal/broker"
	"coffee-shop/internal/redisclient"
	"coffee-shop/internal/service"
	"coffee-shop/internal/store"
	"coffee-shop/internal/util"
	"coffee-shop/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting coffee shop service", zap.String("env", cfg.Server.Env))

	tp, err := util.InitTracer(util.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	if cfg.Database.RunMigrations {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.ApplyMigrations(ctx)
		cancel()
		if err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	eventPublisher := broker.NewEventPublisher(producer)

	ledger := service.NewPurchaseLedger(db, redisClient, cfg.Business.PurchaseCacheTTL)
	orderService := service.NewOrderService(db, redisClient, eventPublisher, service.OrderOptions{
		DefaultPaymentMethod: cfg.Business.DefaultPaymentMethod,
		IdempotencyTTL:       cfg.Business.IdempotencyTTL,
	})
	reviewService := service.NewReviewService(db, ledger, redisClient, eventPublisher, cfg.Business.ReviewCacheTTL)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	cacheConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	cacheWorker := worker.NewCacheWorker(cacheConsumer, redisClient, cfg.Business.PurchaseCacheTTL)
	go func() {
		if err := cacheWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Cache worker stopped", zap.Error(err))
		}
	}()

	var reconciler *worker.Reconciler
	if cfg.Business.ReconcileSchedule != "" {
		reconciler, err = worker.NewReconciler(db, cfg.Business.ReconcileSchedule)
		if err != nil {
			logger.Fatal("Failed to schedule rating reconciler", zap.Error(err))
		}
		reconciler.Start()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())

	handler := api.NewHandler(api.Services{
		Orders:    orderService,
		Ledger:    ledger,
		Reviews:   reviewService,
		Catalog:   service.NewCatalogService(db),
		Favorites: service.NewFavoriteService(db),
	}, api.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
	handler.AddReadinessCheck("postgres", db)
	handler.AddReadinessCheck("redis", redisClient)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := cacheWorker.Stop(); err != nil {
		logger.Warn("Error closing cache worker", zap.Error(err))
	}
	if reconciler != nil {
		reconciler.Stop()
	}

	logger.Info("Server exited")
}
