package tests

import (
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
)

func (s *IntegrationTestSuite) TestCommit_Success() {
	s.seedInventory("p-1", 10, 0)
	item := events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100}

	s.Require().NoError(s.deliver(s.orderCreated("order-1", item)))
	s.Require().NoError(s.deliver(s.orderFulfilled("order-1", item)))

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(7), available)
	s.Require().Equal(int32(0), reserved)

	s.Require().Equal("COMMITTED", s.reservationStatus("order-1"))
	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryCommitted))
}

func (s *IntegrationTestSuite) TestCommit_SecondFulfilledIsNoOp() {
	s.seedInventory("p-1", 10, 0)
	item := events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100}

	s.Require().NoError(s.deliver(s.orderCreated("order-1", item)))
	s.Require().NoError(s.deliver(s.orderFulfilled("order-1", item)))
	s.Require().NoError(s.deliver(s.orderFulfilled("order-1", item)))

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(7), available)
	s.Require().Equal(int32(0), reserved)
	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryCommitted))
}

func (s *IntegrationTestSuite) TestCommit_WithoutReservationDeductsDirectly() {
	s.seedInventory("p-1", 10, 0)

	err := s.deliver(s.orderFulfilled("order-1", events.OrderItem{ProductID: "p-1", Quantity: 2, Price: 100}))
	s.Require().NoError(err)

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(8), available)
	s.Require().Equal(int32(0), reserved)

	s.Require().Zero(s.countOutboxEvents(events.TypeInventoryCommitted))
}

func (s *IntegrationTestSuite) TestRelease_Success() {
	s.seedInventory("p-1", 10, 0)
	item := events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100}

	s.Require().NoError(s.deliver(s.orderCreated("order-1", item)))
	s.Require().NoError(s.deliver(s.orderCancelled("order-1", "customer changed mind", item)))

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(10), available)
	s.Require().Equal(int32(0), reserved)

	s.Require().Equal("RELEASED", s.reservationStatus("order-1"))
	s.Require().Equal(1, s.countOutboxEvents(events.TypeInventoryReleased))
}

func (s *IntegrationTestSuite) TestRelease_NoReservationIsNoOp() {
	err := s.deliver(s.orderCancelled("order-1", "never reserved"))
	s.Require().NoError(err)

	s.Require().Zero(s.countOutboxEvents(events.TypeInventoryReleased))
}

func (s *IntegrationTestSuite) TestRelease_AfterCommitIsNoOp() {
	s.seedInventory("p-1", 10, 0)
	item := events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100}

	s.Require().NoError(s.deliver(s.orderCreated("order-1", item)))
	s.Require().NoError(s.deliver(s.orderFulfilled("order-1", item)))
	s.Require().NoError(s.deliver(s.orderCancelled("order-1", "too late", item)))

	available, reserved := s.stockCounters("p-1")
	s.Require().Equal(int32(7), available)
	s.Require().Equal(int32(0), reserved)

	s.Require().Equal("COMMITTED", s.reservationStatus("order-1"))
	s.Require().Zero(s.countOutboxEvents(events.TypeInventoryReleased))
}
