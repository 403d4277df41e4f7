package tests

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IsVohi/OrderFlow-sub001/internal/order/repository"
	"github.com/IsVohi/OrderFlow-sub001/internal/order/service"
	orderkafka "github.com/IsVohi/OrderFlow-sub001/internal/order/transport/kafka"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/idempotency"
	pkgkafka "github.com/IsVohi/OrderFlow-sub001/pkg/kafka"
	outboxRepository "github.com/IsVohi/OrderFlow-sub001/pkg/outbox/repository"
	"github.com/IsVohi/OrderFlow-sub001/pkg/outbox/worker"
	"github.com/IsVohi/OrderFlow-sub001/pkg/testsuite"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type IntegrationTestSuite struct {
	testsuite.BaseSuite

	OrderService    service.OrderService
	TestProducer    pkgkafka.Producer
	OutboxProcessor *worker.OutboxProcessor
	Handler         pkgkafka.HandlerFunc

	workerCancel context.CancelFunc
	offset       atomic.Int64
	source       events.Source
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.BaseSuite.SetupInfrastructure("../../../migrations")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.BaseSuite.TearDownInfrastructure()
}

func (s *IntegrationTestSuite) SetupTest() {
	s.BaseSuite.TruncateTable("orders")
	s.BaseSuite.TruncateTable("order_items")
	s.BaseSuite.TruncateTable("processed_events")
	s.BaseSuite.TruncateTable("outbox")

	logger := zap.NewNop()
	s.source = events.Source{Service: "order-service", Version: "test", Instance: "test-1"}

	orderRepo := repository.NewOrderRepository(s.DbPool, logger)
	outboxRepo := outboxRepository.NewOutboxRepository(s.DbPool, logger)

	var err error
	s.TestProducer, err = pkgkafka.NewProducer(s.KafkaBrokers)
	s.Require().NoError(err, "failed to create kafka producer")

	s.OrderService = service.NewOrderService(s.DbPool, orderRepo, outboxRepo, s.source, logger)

	runtime := idempotency.NewRuntime(s.DbPool, orderkafka.ConsumerGroupID, logger)
	consumer := orderkafka.NewConsumer(s.OrderService, runtime, logger)
	s.Handler = runtime.Wrap(consumer.Handle)

	s.OutboxProcessor = worker.NewOutboxProcessor(s.DbPool, outboxRepo, s.TestProducer, logger)

	workerCtx, cancel := context.WithCancel(s.Ctx)
	s.workerCancel = cancel

	go s.OutboxProcessor.Start(workerCtx)
}

func (s *IntegrationTestSuite) TearDownTest() {
	if s.workerCancel != nil {
		s.workerCancel()
	}
	if s.TestProducer != nil {
		s.Require().NoError(s.TestProducer.Close())
	}
}

func (s *IntegrationTestSuite) createOrder() *service.CreateOrderRequest {
	return &service.CreateOrderRequest{
		CustomerID: "customer-1",
		Currency:   "RUB",
		Items: []service.CreateOrderItem{
			{ProductID: "p-1", Price: 5350, Quantity: 1},
		},
	}
}

func (s *IntegrationTestSuite) deliver(topic string, env *events.Envelope) error {
	raw, err := json.Marshal(env)
	s.Require().NoError(err)

	return s.Handler(s.Ctx, &sarama.ConsumerMessage{
		Topic:     topic,
		Partition: 0,
		Offset:    s.offset.Add(1),
		Value:     raw,
	})
}

func (s *IntegrationTestSuite) orderStatus(orderID string) string {
	var status string
	err := s.DbPool.QueryRow(s.Ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	s.Require().NoError(err)

	return status
}

func (s *IntegrationTestSuite) countOutboxEvents(eventType string) int {
	var count int
	err := s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM outbox WHERE event_type = $1`, eventType).Scan(&count)
	s.Require().NoError(err)

	return count
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}
