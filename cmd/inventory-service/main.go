package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	invhttp "github.com/IsVohi/OrderFlow-sub001/internal/inventory/transport/http"
	invkafka "github.com/IsVohi/OrderFlow-sub001/internal/inventory/transport/kafka"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/repository"
	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/service"
	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/sweeper"
	"github.com/IsVohi/OrderFlow-sub001/pkg/config"
	"github.com/IsVohi/OrderFlow-sub001/pkg/db"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/idempotency"
	pkgkafka "github.com/IsVohi/OrderFlow-sub001/pkg/kafka"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	outboxrepo "github.com/IsVohi/OrderFlow-sub001/pkg/outbox/repository"
	"github.com/IsVohi/OrderFlow-sub001/pkg/outbox/worker"
	"github.com/IsVohi/OrderFlow-sub001/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const serviceName = "inventory-service"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()

	tp, err := utils.InitTracer(ctx, serviceName)
	if err != nil {
		log.Fatalf("Error init tracer: %v", err)
	}

	logger, err := config.NewLogger(cfg.Logger, cfg.Env)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := db.NewPostgresDB(cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("Error creating postgres pool: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})

	source := events.Source{
		Service:  serviceName,
		Version:  "1.0.0",
		Instance: uuid.New().String(),
	}

	inventoryRepo := repository.NewInventoryRepository(pool, logger)
	reservationRepo := repository.NewReservationRepository(pool, logger)
	outboxRepo := outboxrepo.NewOutboxRepository(pool, logger)

	inventoryService := service.NewCachedInventoryService(
		service.NewInventoryService(
			pool,
			inventoryRepo,
			reservationRepo,
			outboxRepo,
			source,
			cfg.Sweeper.ReservationTTL,
			logger,
		),
		reservationRepo,
		redisClient,
	)

	producer, err := pkgkafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("Error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, producer, logger)
	go outboxProcessor.Start(ctx)

	reservationSweeper := sweeper.New(
		reservationRepo,
		inventoryService,
		cfg.Sweeper.Interval,
		cfg.Sweeper.BatchSize,
		logger,
	)
	go reservationSweeper.Start(ctx)

	runtime := idempotency.NewRuntime(pool, invkafka.ConsumerGroupID, logger)
	consumer := invkafka.NewConsumer(inventoryService, runtime, logger)
	go consumer.Start(ctx, cfg.Kafka.Brokers)

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})
	invhttp.RegisterRoutes(app, invhttp.NewHandler(inventoryService, pool))

	go func() {
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			mylogger.Error(ctx, logger, "HTTP server stopped")
		}
	}()

	mylogger.Info(ctx, logger, "Inventory service started")

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), 5*time.Second)
	defer exit()

	_ = app.ShutdownWithContext(shutdownCtx)

	if err := producer.Close(); err != nil {
		mylogger.Error(shutdownCtx, logger, "Error closing producer")
	}

	if err := redisClient.Close(); err != nil {
		mylogger.Error(shutdownCtx, logger, "Error closing redis client")
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Error(shutdownCtx, logger, "Error shutting down telemetry")
	}

	pool.Close()
	mylogger.Info(shutdownCtx, logger, "Inventory service stopped")
}
