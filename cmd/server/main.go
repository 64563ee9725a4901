package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"furniture-backoffice/config"
	"furniture-backoffice/internal/api"
	"furniture-backoffice/internal/auth"
	"furniture-backoffice/internal/barcode"
	"furniture-backoffice/internal/broker"
	"furniture-backoffice/internal/ledger"
	"furniture-backoffice/internal/redisclient"
	"furniture-backoffice/internal/service"
	"furniture-backoffice/internal/store"
	"furniture-backoffice/internal/util"
	"furniture-backoffice/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting furniture back-office")

	tp, err := util.InitTracer("furniture-backoffice", cfg.Server.Env, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	ctx := context.Background()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	inventoryProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicInventory)
	defer inventoryProducer.Close()
	salesProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales)
	defer salesProducer.Close()
	logger.Info("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(inventoryProducer, salesProducer)

	var repo ledger.Repository = db
	if cfg.Business.LedgerStore == "file" {
		fileStore, err := store.NewFileStore(cfg.Business.LedgerDataDir)
		if err != nil {
			logger.Fatal("Failed to open ledger data dir", zap.Error(err))
		}
		repo = fileStore
	}

	stockLedger, err := ledger.New(ctx, repo, broker.NewLedgerNotifier(eventPublisher))
	if err != nil {
		logger.Fatal("Failed to load stock ledger", zap.Error(err))
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if cfg.Business.SeedDemoCatalog {
		if _, err := stockLedger.Seed(ctx, ledger.DemoCatalog(), rng); err != nil {
			logger.Error("Failed to seed demo catalog", zap.Error(err))
		}
	}

	barcodes := barcode.NewDirectory(stockLedger, rng)
	inventoryClient := service.NewInventoryClient(stockLedger)
	paymentService := service.NewPaymentService()
	saleService := service.NewSaleService(
		redisClient,
		redisClient,
		redisClient,
		db,
		eventPublisher,
		paymentService,
		inventoryClient,
		stockLedger,
		barcodes,
		service.SaleConfig{
			Currency:       cfg.Business.Currency,
			CartTTL:        time.Duration(cfg.Business.CartTTLMinutes) * time.Minute,
			LockTTL:        time.Duration(cfg.Business.CheckoutLockSeconds) * time.Second,
			IdempotencyTTL: time.Duration(cfg.Business.IdempotencyTTLHours) * time.Hour,
		},
	)
	orderService := service.NewOrderService(
		redisClient,
		db,
		eventPublisher,
		paymentService,
		inventoryClient,
		stockLedger,
		cfg.Business.Currency,
		time.Duration(cfg.Business.CartTTLMinutes)*time.Minute,
	)
	catalogService := service.NewCatalogService(stockLedger)
	fulfillment := service.NewFulfillment(db, db, inventoryClient)

	users := auth.NewDirectory(cfg.Auth.PasswordHashCost)
	if err := users.Add(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, auth.RoleAdmin); err != nil {
		logger.Fatal("Failed to register admin user", zap.Error(err))
	}
	if err := users.Add(cfg.Auth.CashierUsername, cfg.Auth.CashierPassword, auth.RoleCashier); err != nil {
		logger.Fatal("Failed to register cashier user", zap.Error(err))
	}
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	salesConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSales, cfg.Kafka.ConsumerGroup)
	fulfillmentWorker := worker.NewFulfillmentWorker(salesConsumer, fulfillment)
	go func() {
		if err := fulfillmentWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Fulfillment worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Deps{
		Ledger:   stockLedger,
		Barcodes: barcodes,
		Sales:    saleService,
		Orders:   orderService,
		Catalog:  catalogService,
		Users:    users,
		Tokens:   tokens,
		Checks: map[string]api.HealthCheck{
			"postgres": db.Ping,
			"redis":    redisClient.Ping,
		},
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
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

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := fulfillmentWorker.Stop(); err != nil {
		logger.Error("Failed to stop fulfillment worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
