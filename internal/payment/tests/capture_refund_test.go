package tests

import (
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
)

func (s *IntegrationTestSuite) TestCapture_Success() {
	err := s.deliver(events.TopicInventory, s.inventoryReserved("order-1", 5350))
	s.Require().NoError(err)

	status, transactionID := s.paymentRow("order-1")
	s.Require().Equal("CAPTURED", status)
	s.Require().NotEmpty(transactionID)

	s.Require().Equal(1, s.countOutboxEvents(events.TypePaymentCaptured))
}

func (s *IntegrationTestSuite) TestCapture_RedeliverySameEvent() {
	env := s.inventoryReserved("order-1", 5350)

	s.Require().NoError(s.deliver(events.TopicInventory, env))
	s.Require().NoError(s.deliver(events.TopicInventory, env))

	s.Require().Equal(1, s.countPayments("order-1"))
	s.Require().Equal(1, s.countOutboxEvents(events.TypePaymentCaptured))
}

func (s *IntegrationTestSuite) TestCapture_RetryWithDistinctEventChargesOnce() {
	s.Require().NoError(s.deliver(events.TopicInventory, s.inventoryReserved("order-1", 5350)))
	s.Require().NoError(s.deliver(events.TopicInventory, s.inventoryReserved("order-1", 5350)))

	s.Require().Equal(1, s.countPayments("order-1"))
	s.Require().Equal(1, s.countOutboxEvents(events.TypePaymentCaptured))
}

func (s *IntegrationTestSuite) TestRefund_Success() {
	s.Require().NoError(s.deliver(events.TopicInventory, s.inventoryReserved("order-1", 5350)))
	s.Require().NoError(s.deliver(events.TopicOrders, s.orderCancelled("order-1", "customer changed mind")))

	status, _ := s.paymentRow("order-1")
	s.Require().Equal("REFUNDED", status)
	s.Require().Equal(1, s.countOutboxEvents(events.TypePaymentRefunded))
}

func (s *IntegrationTestSuite) TestRefund_NoPaymentIsNoOp() {
	err := s.deliver(events.TopicOrders, s.orderCancelled("order-1", "nothing captured"))
	s.Require().NoError(err)

	s.Require().Zero(s.countPayments("order-1"))
	s.Require().Zero(s.countOutboxEvents(events.TypePaymentRefunded))
}

func (s *IntegrationTestSuite) TestRefund_AlreadyRefundedIsNoOp() {
	s.Require().NoError(s.deliver(events.TopicInventory, s.inventoryReserved("order-1", 5350)))
	s.Require().NoError(s.deliver(events.TopicOrders, s.orderCancelled("order-1", "first")))
	s.Require().NoError(s.deliver(events.TopicOrders, s.orderCancelled("order-1", "second")))

	status, _ := s.paymentRow("order-1")
	s.Require().Equal("REFUNDED", status)
	s.Require().Equal(1, s.countOutboxEvents(events.TypePaymentRefunded))
}
