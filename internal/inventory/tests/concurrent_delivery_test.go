package tests

import (
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"
	invkafka "github.com/IsVohi/OrderFlow-sub001/internal/inventory/transport/kafka"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/idempotency"
	"go.uber.org/zap"
)

// A consumer-group rebalance can hand the same message to two members at
// once. The fast-path probe misses for both, so the loser must hit the
// unique violation inside its transaction and ack as a no-op.
func (s *IntegrationTestSuite) TestReserve_ConcurrentDuplicateDelivery() {
	s.seedInventory("p-1", 10, 0)

	env := s.orderCreated("order-1", events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100})
	raw, err := json.Marshal(env)
	s.Require().NoError(err)

	logger := zap.NewNop()
	otherRuntime := idempotency.NewRuntime(s.DbPool, invkafka.ConsumerGroupID, logger)
	otherConsumer := invkafka.NewConsumer(s.InventoryService, otherRuntime, logger)
	otherHandler := otherRuntime.Wrap(otherConsumer.Handle)

	handlers := []func() error{
		func() error {
			return s.Handler(s.Ctx, &sarama.ConsumerMessage{
				Topic:     events.TopicOrders,
				Partition: 0,
				Offset:    s.offset.Add(1),
				Value:     raw,
			})
		},
		func() error {
			return otherHandler(s.Ctx, &sarama.ConsumerMessage{
				Topic:     events.TopicOrders,
				Partition: 1,
				Offset:    s.offset.Add(1),
				Value:     raw,
			})
		},
	}

	errs := make([]error, len(handlers))

	var wg sync.WaitGroup
	for i, deliver := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = deliver()
		}()
	}
	wg.Wait()

	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])

	var ledgerRows int
	err = s.DbPool.QueryRow(s.Ctx, `
		SELECT COUNT(*) FROM processed_events WHERE event_id = $1
	`, env.Metadata.EventID).Scan(&ledgerRows)
	s.Require().NoError(err)
	s.Require().Equal(1, ledgerRows)

	var reservations int
	err = s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM reservations WHERE order_id = $1`, "order-1").Scan(&reservations)
	s.Require().NoError(err)
	s.Require().Equal(1, reservations)

	_, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(3), reserved)
	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReserved))
}
