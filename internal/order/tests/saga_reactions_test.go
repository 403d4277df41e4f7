package tests

import (
	"time"

	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
)

func (s *IntegrationTestSuite) paymentCaptured(orderID string) *events.Envelope {
	env, err := events.NewEnvelope(events.TypePaymentCaptured, orderID, "", s.source, &events.PaymentCaptured{
		PaymentID:     "pay-1",
		OrderID:       orderID,
		Amount:        5350,
		Currency:      "RUB",
		TransactionID: "txn-1",
		CapturedAt:    time.Now().UTC(),
	})
	s.Require().NoError(err)

	return env
}

func (s *IntegrationTestSuite) reservationFailed(orderID, reason string) *events.Envelope {
	env, err := events.NewEnvelope(events.TypeInventoryReservationFailed, orderID, "", s.source, &events.InventoryReservationFailed{
		OrderID: orderID,
		Reason:  reason,
	})
	s.Require().NoError(err)

	return env
}

func (s *IntegrationTestSuite) TestPaymentCaptured_FulfillsOrder() {
	order, err := s.OrderService.CreateOrder(s.Ctx, s.createOrder())
	s.Require().NoError(err)

	err = s.deliver(events.TopicPayments, s.paymentCaptured(order.ID))
	s.Require().NoError(err)

	s.Require().Equal("fulfilled", s.orderStatus(order.ID))
	s.Require().Equal(1, s.countOutboxEvents(events.TypeOrderFulfilled))
}

func (s *IntegrationTestSuite) TestPaymentCaptured_Redelivery() {
	order, err := s.OrderService.CreateOrder(s.Ctx, s.createOrder())
	s.Require().NoError(err)

	env := s.paymentCaptured(order.ID)
	s.Require().NoError(s.deliver(events.TopicPayments, env))
	s.Require().NoError(s.deliver(events.TopicPayments, env))

	s.Require().Equal(1, s.countOutboxEvents(events.TypeOrderFulfilled))
}

func (s *IntegrationTestSuite) TestPaymentCaptured_CancelledOrderIgnored() {
	order, err := s.OrderService.CreateOrder(s.Ctx, s.createOrder())
	s.Require().NoError(err)
	s.Require().NoError(s.OrderService.CancelOrder(s.Ctx, order.ID, "raced"))

	err = s.deliver(events.TopicPayments, s.paymentCaptured(order.ID))
	s.Require().NoError(err)

	s.Require().Equal("cancelled", s.orderStatus(order.ID))
	s.Require().Zero(s.countOutboxEvents(events.TypeOrderFulfilled))
}

func (s *IntegrationTestSuite) TestReservationFailed_CancelsOrder() {
	order, err := s.OrderService.CreateOrder(s.Ctx, s.createOrder())
	s.Require().NoError(err)

	err = s.deliver(events.TopicInventory, s.reservationFailed(order.ID, "insufficient stock"))
	s.Require().NoError(err)

	s.Require().Equal("cancelled", s.orderStatus(order.ID))
	s.Require().Equal(1, s.countOutboxEvents(events.TypeOrderCancelled))
}

func (s *IntegrationTestSuite) TestReservationFailed_AlreadyCancelledOrder() {
	order, err := s.OrderService.CreateOrder(s.Ctx, s.createOrder())
	s.Require().NoError(err)
	s.Require().NoError(s.OrderService.CancelOrder(s.Ctx, order.ID, "manual"))

	err = s.deliver(events.TopicInventory, s.reservationFailed(order.ID, "insufficient stock"))
	s.Require().NoError(err)

	s.Require().Equal("cancelled", s.orderStatus(order.ID))
}
