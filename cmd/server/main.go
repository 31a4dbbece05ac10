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
	"storefront/internal/payment"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront")

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(cfg.Observ.JaegerEndpoint, cfg.Server.Env)
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
	}

	dependencies := map[string]api.Pinger{}

	repo, closeStore, err := openStore(cfg.Mongo)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()
	dependencies["store"] = repo
	logger.Info("Store ready", zap.String("driver", cfg.Mongo.Driver))

	var (
		productCache service.ProductCache
		idempotency  service.IdempotencyStore
		deduper      service.EventDeduper
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		productCache, idempotency, deduper = redisClient, redisClient, redisClient
		dependencies["redis"] = redisClient
		logger.Info("Redis connected")
	}

	catalogService := service.NewCatalogService(repo, productCache)
	projector := service.NewSalesProjector(repo, deduper)

	var writer broker.MessageWriter
	if cfg.Kafka.Enabled {
		writer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.Topic))
	} else {
		writer = broker.NewLocalBus(worker.NewEventHandler(projector).HandleMessage)
		logger.Info("Kafka disabled, delivering events in-process")
	}
	defer writer.Close()
	eventPublisher := broker.NewEventPublisher(writer)

	verifier, err := payment.New(payment.Config{
		Mode:          cfg.Payment.Verifier,
		WebhookSecret: cfg.Payment.WebhookSecret,
		GatewayURL:    cfg.Payment.GatewayURL,
		Gateway:       payment.GatewayOptions{Timeout: cfg.Payment.GatewayTimeout},
	})
	if err != nil {
		logger.Fatal("Failed to configure payment verifier", zap.Error(err))
	}
	logger.Info("Payment verifier configured", zap.String("verifier", verifier.Name()))

	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  cfg.Auth.JWTSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTokenTTL,
		RefreshTTL:    cfg.Auth.RefreshTokenTTL,
	})
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	handler := api.NewHandler(api.Services{
		Auth:        service.NewAuthService(repo, issuer, hasher, eventPublisher),
		Users:       service.NewUserService(repo, hasher),
		Catalog:     catalogService,
		Carts:       service.NewCartService(repo, catalogService),
		Checkouts:   service.NewCheckoutService(repo, repo, repo, catalogService, verifier, eventPublisher),
		Orders:      service.NewOrderService(repo, repo, catalogService, idempotency, eventPublisher),
		Subscribers: service.NewSubscriberService(repo),
	}, api.Options{
		CORSOrigin:    cfg.Server.CORSOrigin,
		AuthPerMinute: cfg.RateLimit.AuthPerMinute,
		AuthBurst:     cfg.RateLimit.AuthBurst,
		Dependencies:  dependencies,
	})
	defer handler.Close()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var salesWorker *worker.SalesWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
		salesWorker = worker.NewSalesWorker(consumer, projector)
		go func() {
			if err := salesWorker.Start(workerCtx); err != nil {
				logger.Error("Sales worker error", zap.Error(err))
			}
		}()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
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
	if salesWorker != nil {
		if err := salesWorker.Stop(); err != nil {
			logger.Error("Failed to stop sales worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
}

// openStore returns the configured repository and a func releasing it
func openStore(cfg config.MongoConfig) (service.Repository, func(), error) {
	if cfg.Driver == "memory" {
		return store.NewMemoryStore(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := store.NewStore(ctx, cfg.URI, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, nil, err
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(ctx); err != nil {
			util.GetLogger().Error("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}
	return db, closeFn, nil
}
