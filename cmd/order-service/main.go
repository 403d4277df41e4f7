package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	orderhttp "github.com/IsVohi/OrderFlow-sub001/internal/order/transport/http"
	orderkafka "github.com/IsVohi/OrderFlow-sub001/internal/order/transport/kafka"

	"github.com/IsVohi/OrderFlow-sub001/internal/order/repository"
	"github.com/IsVohi/OrderFlow-sub001/internal/order/service"
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
)

const serviceName = "order-service"

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

	source := events.Source{
		Service:  serviceName,
		Version:  "1.0.0",
		Instance: uuid.New().String(),
	}

	orderRepo := repository.NewOrderRepository(pool, logger)
	outboxRepo := outboxrepo.NewOutboxRepository(pool, logger)
	orderService := service.NewOrderService(pool, orderRepo, outboxRepo, source, logger)

	producer, err := pkgkafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("Error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, producer, logger)
	go outboxProcessor.Start(ctx)

	runtime := idempotency.NewRuntime(pool, orderkafka.ConsumerGroupID, logger)
	consumer := orderkafka.NewConsumer(orderService, runtime, logger)
	go consumer.Start(ctx, cfg.Kafka.Brokers)

	app := fiber.New(fiber.Config{
		ReadTimeout: cfg.HTTP.Timeout,
	})
	orderhttp.RegisterRoutes(app, orderhttp.NewHandler(orderService, pool))

	go func() {
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			mylogger.Error(ctx, logger, "HTTP server stopped")
		}
	}()

	mylogger.Info(ctx, logger, "Order service started")

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.Background(), 5*time.Second)
	defer exit()

	_ = app.ShutdownWithContext(shutdownCtx)

	if err := producer.Close(); err != nil {
		mylogger.Error(shutdownCtx, logger, "Error closing producer")
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Error(shutdownCtx, logger, "Error shutting down telemetry")
	}

	pool.Close()
	mylogger.Info(shutdownCtx, logger, "Order service stopped")
}
