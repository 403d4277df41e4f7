package tests

import (
	goredis "github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/service"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
)

func (s *IntegrationTestSuite) newCachedService() (service.InventoryService, func()) {
	redisContainer, err := tcredis.Run(s.Ctx, "redis:7-alpine")
	s.Require().NoError(err)

	connStr, err := redisContainer.ConnectionString(s.Ctx)
	s.Require().NoError(err)

	opts, err := goredis.ParseURL(connStr)
	s.Require().NoError(err)
	client := goredis.NewClient(opts)

	cached := service.NewCachedInventoryService(s.InventoryService, s.ReservationRepo, client)

	cleanup := func() {
		_ = client.Close()
		s.Require().NoError(redisContainer.Terminate(s.Ctx))
	}

	return cached, cleanup
}

func (s *IntegrationTestSuite) TestCachedStock_ReleaseDropsStaleEntry() {
	cached, cleanup := s.newCachedService()
	defer cleanup()

	s.seedInventory("p-1", 10, 0)
	s.Require().NoError(s.deliver(s.orderCreated("order-1",
		events.OrderItem{ProductID: "p-1", Quantity: 4, Price: 100})))

	inv, err := cached.GetStock(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.Require().Equal(int32(6), inv.FreeStock())

	tx, err := s.DbPool.Begin(s.Ctx)
	s.Require().NoError(err)
	s.Require().NoError(cached.Release(s.Ctx, tx, events.Metadata{}, "order-1", "buyer cancelled"))
	s.Require().NoError(tx.Commit(s.Ctx))

	// The cached entry must not outlive the release: a fresh read has to
	// see the restored counters, not the 10s-TTL snapshot.
	inv, err = cached.GetStock(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.Require().Equal(int32(10), inv.FreeStock())
}

func (s *IntegrationTestSuite) TestCachedStock_ExpireDropsStaleEntry() {
	cached, cleanup := s.newCachedService()
	defer cleanup()

	s.seedInventory("p-1", 10, 0)
	s.Require().NoError(s.deliver(s.orderCreated("order-1",
		events.OrderItem{ProductID: "p-1", Quantity: 3, Price: 100})))

	inv, err := cached.GetStock(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.Require().Equal(int32(7), inv.FreeStock())

	s.expireReservation("order-1")
	s.Require().NoError(cached.ExpireReservation(s.Ctx, "order-1"))

	inv, err = cached.GetStock(s.Ctx, "p-1")
	s.Require().NoError(err)
	s.Require().Equal(int32(10), inv.FreeStock())
}
