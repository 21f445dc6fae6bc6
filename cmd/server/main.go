package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/broker"
	"storefront/internal/events"
	"storefront/internal/redisclient"
	"storefront/internal/remote"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.InstanceID); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront", zap.String("instance_id", cfg.Server.InstanceID))

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer("storefront", cfg.Server.InstanceID, cfg.Observ.JaegerEndpoint)
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
	}

	ctx := context.Background()

	var (
		kv     store.KV
		checks []func(context.Context) error
	)
	switch cfg.Database.Driver {
	case "memory":
		kv = store.NewMemoryStore()
		logger.Warn("Using in-memory storage; data is lost on restart")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
		kv = db
		checks = append(checks, db.Ping)
		logger.Info("Database connected")
	}

	policy := cfg.Policy()

	var cache service.ProductCache
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, policy.CacheValidity)
		if err != nil {
			// the catalog falls back to durable storage without a cache
			logger.Warn("Redis unavailable, catalog cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redisClient
			checks = append(checks, redisClient.Ping)
			logger.Info("Redis connected")
		}
	}

	var mirror service.RemoteStore = remote.Noop{}
	if cfg.Remote.Enabled {
		client, err := remote.NewDynamoClient(ctx, cfg.Remote.Region, cfg.Remote.Endpoint)
		if err != nil {
			logger.Fatal("Failed to configure DynamoDB", zap.Error(err))
		}
		mirror = remote.NewDynamoStore(client, cfg.Remote.ProductsTable, cfg.Remote.OrdersTable)
		logger.Info("Remote mirror enabled",
			zap.String("region", cfg.Remote.Region),
			zap.String("products_table", cfg.Remote.ProductsTable))
	}

	bus := events.NewBus()

	catalogService := service.NewCatalogService(kv, cache, mirror, bus, policy)
	inventoryService := service.NewInventoryService(catalogService, kv, bus, policy)
	cartService := service.NewCartService(catalogService, kv, policy)
	orderService := service.NewOrderService(kv, mirror, inventoryService, cartService, bus, policy)

	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("ADMIN_PASSWORD_HASH is not set; admin sign-in is disabled")
	}
	sessions := auth.NewSessionManager(kv,
		auth.NewPasswordProvider(cfg.Auth.AdminEmail, cfg.Auth.AdminPasswordHash),
		cfg.SessionTTL())

	if err := catalogService.Load(ctx); err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}
	if err := orderService.Load(ctx); err != nil {
		logger.Fatal("Failed to load orders", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var syncWorker *worker.SyncWorker
	if cfg.Kafka.Enabled() {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()

		publisher := broker.NewEventPublisher(producer, cfg.Server.InstanceID)
		detach := publisher.Attach(bus)
		defer detach()
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicEvents))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		syncWorker = worker.NewSyncWorker(consumer, cfg.Server.InstanceID, catalogService, orderService)
		go func() {
			if err := syncWorker.Start(workerCtx); err != nil {
				logger.Error("Sync worker error", zap.Error(err))
			}
		}()
	}

	refresher := worker.NewCatalogRefresher(catalogService, cfg.RefreshInterval())
	go refresher.Run(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(api.Services{
		Catalog:   catalogService,
		Carts:     cartService,
		Orders:    orderService,
		Inventory: inventoryService,
		Sessions:  sessions,
		Ready: func(ctx context.Context) error {
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	handler.SetupRoutes(router, cfg.Server.AllowedOrigins)

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
	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Warn("Error stopping sync worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}
