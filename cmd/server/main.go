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

	"grocery-mart/config"
	"grocery-mart/internal/api"
	"grocery-mart/internal/broker"
	"grocery-mart/internal/imagestore"
	"grocery-mart/internal/notify"
	"grocery-mart/internal/redisclient"
	"grocery-mart/internal/service"
	"grocery-mart/internal/store"
	"grocery-mart/internal/util"
	"grocery-mart/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting grocery-mart")

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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connected")

	ctx := context.Background()
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	if cfg.Database.Seed {
		products, admin, err := store.Seed(ctx, db)
		if err != nil {
			logger.Fatal("Failed to seed database", zap.Error(err))
		}
		logger.Info("Database seeded",
			zap.Int("products_created", products),
			zap.Bool("admin_created", admin))
	}

	hub := notify.NewHub(
		notify.WithSendQueueSize(cfg.Business.AdminSendQueueSize),
		notify.WithAllowedOrigin(cfg.Business.AllowedWebSocketOrigin),
	)

	var orderOpts []service.OrderServiceOption
	if !cfg.Business.CheckoutAtomic {
		orderOpts = append(orderOpts, service.WithNonAtomicCheckout())
	}

	readiness := []api.HandlerOption{api.WithReadinessCheck(db)}

	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected, checkout idempotency enabled")

		ttl := time.Duration(cfg.Business.IdempotencyTTLSeconds) * time.Second
		orderOpts = append(orderOpts, service.WithIdempotency(redisClient, ttl))
		readiness = append(readiness, api.WithReadinessCheck(redisClient))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var (
		notifier service.OrderNotifier = hub
		relay    *worker.NotificationRelayWorker
	)

	switch cfg.Business.NotifyMode {
	case config.NotifyModeKafka:
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		notifier = broker.NewEventPublisher(producer)

		// Every instance needs every event, so each gets its own group
		groupID := fmt.Sprintf("%s-%s", cfg.Kafka.ConsumerGroup, uuid.New().String()[:8])
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, groupID, kafka.LastOffset)
		relay = worker.NewNotificationRelayWorker(consumer, hub)
		go func() {
			if err := relay.Start(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("Notification relay stopped", zap.Error(err))
			}
		}()
		logger.Info("Kafka notification relay started",
			zap.String("topic", cfg.Kafka.TopicOrder),
			zap.String("group", groupID))
	case config.NotifyModeLocal:
	default:
		logger.Warn("Unknown NOTIFY_MODE, using local", zap.String("mode", cfg.Business.NotifyMode))
	}

	images, handlerOpts := newImageStore(cfg, logger)
	handlerOpts = append(handlerOpts, readiness...)

	payments := service.NewPaymentSimulator(cfg.Business.PaymentSuccessRate)
	orderService := service.NewOrderService(db, db, payments, notifier, orderOpts...)
	catalogService := service.NewCatalogService(db, db, images)
	authService := service.NewAuthService(db)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, catalogService, authService, hub, handlerOpts...)
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

	var metricsSrv *http.Server
	if p := cfg.Observ.PrometheusPort; p != "" && p != cfg.Server.Port {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: fmt.Sprintf(":%s", p), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	workerCancel()
	if relay != nil {
		if err := relay.Stop(); err != nil {
			logger.Warn("Error stopping relay", zap.Error(err))
		}
	}
	hub.Shutdown()

	logger.Info("Server exited")
}

// newImageStore picks the configured backend; local storage is also served under /uploads
func newImageStore(cfg *config.Config, logger *zap.Logger) (imagestore.Store, []api.HandlerOption) {
	switch cfg.Images.Backend {
	case "s3":
		s3store, err := imagestore.NewS3(cfg.Images.S3Region, cfg.Images.S3Bucket, cfg.Images.S3BaseURL)
		if err != nil {
			logger.Fatal("Failed to create S3 image store", zap.Error(err))
		}
		logger.Info("Product images stored in S3", zap.String("bucket", cfg.Images.S3Bucket))
		return s3store, nil
	default:
		local, err := imagestore.NewLocal(cfg.Images.UploadDir)
		if err != nil {
			logger.Fatal("Failed to create upload dir", zap.Error(err))
		}
		return local, []api.HandlerOption{api.WithUploadDir(cfg.Images.UploadDir)}
	}
}
