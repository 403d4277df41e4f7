package tests

import (
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
)

func (s *IntegrationTestSuite) TestReserve_Success() {
	s.seedInventory("p-1", 10, 0)

	err := s.deliver(s.orderCreated("order-1", events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100}))
	s.Require().NoError(err)

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(10), available)
	s.Require().Equal(int32(3), reserved)

	s.Require().Equal("RESERVED", s.reservationStatus("order-1"))
	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReserved))
}

func (s *IntegrationTestSuite) TestReserve_InsufficientStock() {
	s.seedInventory("p-1", 2, 0)

	err := s.deliver(s.orderCreated("order-1", events.OrderItem{ProductID: "p-1", Quantity: 5, Price: 100}))
	s.Require().NoError(err)

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(2), available)
	s.Require().Equal(int32(0), reserved)

	var count int
	err = s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM reservations`).Scan(&count)
	s.Require().NoError(err)
	s.Require().Zero(count)

	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReservationFailed))
}

func (s *IntegrationTestSuite) TestReserve_PartialShortageReservesNothing() {
	s.seedInventory("p-1", 10, 0)
	s.seedInventory("p-2", 1, 0)

	err := s.deliver(s.orderCreated(
		"order-1",
		events.OrderItem{ProductID: "p-1", Quantity: 2, Price: 100},
		events.OrderItem{ProductID: "p-2", Quantity: 5, Price: 50},
	))
	s.Require().NoError(err)

	_, reserved1 := s.stockCounters("p-1")
	_, reserved2 := s.stockCounters("p-2")
	s.Require().Equal(int32(0), reserved1)
	s.Require().Equal(int32(0), reserved2)

	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReservationFailed))
}

func (s *IntegrationTestSuite) TestReserve_DuplicateLinesCombineDemand() {
	s.seedInventory("p-1", 10, 0)

	err := s.deliver(s.orderCreated(
		"order-1",
		events.OrderItem{ProductID: "p-1", Quantity: 2, Price: 100},
		events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100},
	))
	s.Require().NoError(err)

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(10), available)
	s.Require().Equal(int32(5), reserved)

	var quantity int32
	err = s.DbPool.QueryRow(s.Ctx, `
		SELECT ri.quantity_reserved
		FROM reservation_items ri
		JOIN reservations r ON r.id = ri.reservation_id
		WHERE r.order_id = $1
	`, "order-1").Scan(&quantity)
	s.Require().NoError(err)
	s.Require().Equal(int32(5), quantity)
}

func (s *IntegrationTestSuite) TestReserve_DuplicateLinesExceedingStockFail() {
	s.seedInventory("p-1", 4, 0)

	// Each line alone fits, the combined demand does not. Must be a
	// business rejection, not a handler error stalling the partition.
	err := s.deliver(s.orderCreated(
		"order-1",
		events.OrderItem{ProductID: "p-1", Quantity: 2, Price: 100},
		events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100},
	))
	s.Require().NoError(err)

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(4), available)
	s.Require().Equal(int32(0), reserved)

	var count int
	err = s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM reservations`).Scan(&count)
	s.Require().NoError(err)
	s.Require().Zero(count)

	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReservationFailed))
}

func (s *IntegrationTestSuite) TestReserve_UnknownProduct() {
	err := s.deliver(s.orderCreated("order-1", events.OrderItem{ProductID: "ghost", Quantity: 1, Price: 100}))
	s.Require().NoError(err)

	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReservationFailed))
}

func (s *IntegrationTestSuite) TestReserve_RedeliverySameEventID() {
	s.seedInventory("p-1", 10, 0)

	env := s.orderCreated("order-1", events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100})

	s.Require().NoError(s.deliver(env))
	s.Require().NoError(s.deliver(env))

	_, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(3), reserved)
	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReserved))
}

func (s *IntegrationTestSuite) TestReserve_DuplicateOrderDistinctEvents() {
	s.seedInventory("p-1", 10, 0)

	s.Require().NoError(s.deliver(s.orderCreated("order-1", events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100})))
	s.Require().NoError(s.deliver(s.orderCreated("order-1", events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100})))

	_, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(3), reserved)

	var count int
	err := s.DbPool.QueryRow(s.Ctx, `SELECT COUNT(*) FROM reservations WHERE order_id = $1`, "order-1").Scan(&count)
	s.Require().NoError(err)
	s.Require().Equal(1, count)
}
