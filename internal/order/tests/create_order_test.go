package tests

import (
	"time"

	"github.com/IsVohi/OrderFlow-sub001/internal/order/service"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
)

func (s *IntegrationTestSuite) TestCreateOrder_Success() {
	order, err := s.OrderService.CreateOrder(s.Ctx, s.createOrder())
	s.Require().NoError(err)
	s.Require().NotNil(order)

	s.Require().Equal("new", s.orderStatus(order.ID))
	s.Require().Equal(int64(5350), order.TotalSum)
	s.Require().Equal(1, s.countOutboxEvents(events.TypeOrderCreated))

	publishedAtQuery := `
		SELECT published_at
		FROM outbox
		WHERE aggregate_id = $1
	`

	s.Require().Eventually(func() bool {
		var publishedAt *time.Time

		err = s.DbPool.QueryRow(s.Ctx, publishedAtQuery, order.ID).Scan(&publishedAt)
		if err != nil || publishedAt == nil {
			return false
		}

		return true
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *IntegrationTestSuite) TestCreateOrder_TotalIsSumOfItems() {
	req := s.createOrder()
	req.Items = append(req.Items, service.CreateOrderItem{ProductID: "p-2", Price: 100, Quantity: 3})

	order, err := s.OrderService.CreateOrder(s.Ctx, req)
	s.Require().NoError(err)
	s.Require().Equal(int64(5350+300), order.TotalSum)
}
