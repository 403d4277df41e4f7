package tests

import (
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
)

func (s *IntegrationTestSuite) expireReservation(orderID string) {
	query := `
		UPDATE reservations
		SET expires_at = now() - interval '1 minute'
		WHERE order_id = $1
	`

	_, err := s.DbPool.Exec(s.Ctx, query, orderID)
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) TestSweep_ReleasesTimedOutReservation() {
	s.seedInventory("p-1", 10, 0)
	item := events.OrderItem{ProductID: "p-1", Quantity: 4, Price: 100}

	s.Require().NoError(s.deliver(s.orderCreated("order-1", item)))
	s.expireReservation("order-1")

	s.Sweeper.Sweep(s.Ctx)

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(10), available)
	s.Require().Equal(int32(0), reserved)

	s.Require().Equal("EXPIRED", s.reservationStatus("order-1"))
	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReleased))
}

func (s *IntegrationTestSuite) TestSweep_SkipsActiveReservations() {
	s.seedInventory("p-1", 10, 0)
	item := events.OrderItem{ProductID: "p-1", Quantity: 4, Price: 100}

	s.Require().NoError(s.deliver(s.orderCreated("order-1", item)))

	s.Sweeper.Sweep(s.Ctx)

	_, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(4), reserved)
	s.Require().Equal("RESERVED", s.reservationStatus("order-1"))
}

func (s *IntegrationTestSuite) TestSweep_IsRepeatable() {
	s.seedInventory("p-1", 10, 0)
	item := events.OrderItem{ProductID: "p-1", Quantity: 4, Price: 100}

	s.Require().NoError(s.deliver(s.orderCreated("order-1", item)))
	s.expireReservation("order-1")

	s.Sweeper.Sweep(s.Ctx)
	s.Sweeper.Sweep(s.Ctx)

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(10), available)
	s.Require().Equal(int32(0), reserved)
	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReleased))
}
