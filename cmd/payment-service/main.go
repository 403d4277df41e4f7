package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	paykafka "github.com/IsVohi/OrderFlow-sub001/internal/payment/transport/kafka"

	"github.com/IsVohi/OrderFlow-sub001/internal/payment/gateway"
	"github.com/IsVohi/OrderFlow-sub001/internal/payment/repository"
	"github.com/IsVohi/OrderFlow-sub001/internal/payment/service"
	"github.com/IsVohi/OrderFlow-sub001/pkg/config"
	"github.com/IsVohi/OrderFlow-sub001/pkg/db"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/idempotency"
	pkgkafka "github.com/IsVohi/OrderFlow-sub001/pkg/kafka"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	outboxrepo "github.com/IsVohi/OrderFlow-sub001/pkg/outbox/repository"
	"github.com/IsVohi/OrderFlow-sub001/pkg/outbox/worker"
	"github.com/IsVohi/OrderFlow-sub001/pkg/utils"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const serviceName = "payment-service"

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

	paymentRepo := repository.NewPaymentRepository(pool, logger)
	outboxRepo := outboxrepo.NewOutboxRepository(pool, logger)
	paymentService := service.NewPaymentService(
		paymentRepo,
		outboxRepo,
		gateway.NewStubGateway(),
		source,
		logger,
	)

	producer, err := pkgkafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("Error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(pool, outboxRepo, producer, logger)
	go outboxProcessor.Start(ctx)

	runtime := idempotency.NewRuntime(pool, paykafka.ConsumerGroupID, logger)
	consumer := paykafka.NewConsumer(paymentService, runtime, logger)

	mylogger.Info(ctx, logger, "Payment service started")

	consumer.Start(ctx, cfg.Kafka.Brokers)

	shutdownCtx, exit := context.WithTimeout(context.Background(), 5*time.Second)
	defer exit()

	if err := producer.Close(); err != nil {
		mylogger.Error(shutdownCtx, logger, "Error closing producer")
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Error(shutdownCtx, logger, "Error shutting down telemetry")
	}

	pool.Close()
	mylogger.Info(shutdownCtx, logger, "Payment service stopped")
}
