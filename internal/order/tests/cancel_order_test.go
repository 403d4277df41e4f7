package tests

import (
	"errors"

	"github.com/IsVohi/OrderFlow-sub001/internal/order/repository"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
)

func (s *IntegrationTestSuite) TestCancelOrder_Success() {
	order, err := s.OrderService.CreateOrder(s.Ctx, s.createOrder())
	s.Require().NoError(err)

	err = s.OrderService.CancelOrder(s.Ctx, order.ID, "customer changed mind")
	s.Require().NoError(err)

	s.Require().Equal("cancelled", s.orderStatus(order.ID))
	s.Require().Equal(1, s.countOutboxEvents(events.TypeOrderCancelled))
}

func (s *IntegrationTestSuite) TestCancelOrder_NotFound() {
	err := s.OrderService.CancelOrder(s.Ctx, "00000000-0000-0000-0000-000000000000", "whatever")
	s.Require().Error(err)
	s.Require().True(errors.Is(err, repository.ErrOrderNotFound))
}

func (s *IntegrationTestSuite) TestCancelOrder_AlreadyCancelled() {
	order, err := s.OrderService.CreateOrder(s.Ctx, s.createOrder())
	s.Require().NoError(err)

	s.Require().NoError(s.OrderService.CancelOrder(s.Ctx, order.ID, "first"))

	err = s.OrderService.CancelOrder(s.Ctx, order.ID, "second")
	s.Require().Error(err)
	s.Require().True(errors.Is(err, repository.ErrOrderFinalized))

	s.Require().Equal(1, s.countOutboxEvents(events.TypeOrderCancelled))
}
