package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/domain"
	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/repository"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

// cachedInventoryService puts a short-lived Redis cache in front of the
// stock read path. Mutators delegate and drop the affected keys; until
// the TTL elapses a read may trail the database by one mutation, which
// the HTTP read endpoint tolerates.
type cachedInventoryService struct {
	next         InventoryService
	reservations repository.ReservationRepository
	redisClient  *redis.Client
	cacheTTL     time.Duration
}

func NewCachedInventoryService(
	next InventoryService,
	reservations repository.ReservationRepository,
	redisClient *redis.Client,
) InventoryService {
	return &cachedInventoryService{
		next:         next,
		reservations: reservations,
		redisClient:  redisClient,
		cacheTTL:     10 * time.Second,
	}
}

func stockKey(productID string) string {
	return fmt.Sprintf("inventory:%s", productID)
}

func (s *cachedInventoryService) GetStock(ctx context.Context, productID string) (*domain.Inventory, error) {
	key := stockKey(productID)

	val, err := s.redisClient.Get(ctx, key).Result()
	if err == nil {
		var inv domain.Inventory
		if err := json.Unmarshal([]byte(val), &inv); err == nil {
			return &inv, nil
		}
	}

	inv, err := s.next.GetStock(ctx, productID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(inv); err == nil {
		s.redisClient.Set(ctx, key, data, s.cacheTTL)
	}

	return inv, nil
}

func (s *cachedInventoryService) Reserve(ctx context.Context, tx pgx.Tx, cause events.Metadata, order *events.OrderCreated) error {
	if err := s.next.Reserve(ctx, tx, cause, order); err != nil {
		return err
	}

	for _, item := range order.Items {
		s.redisClient.Del(ctx, stockKey(item.ProductID))
	}

	return nil
}

func (s *cachedInventoryService) Commit(ctx context.Context, tx pgx.Tx, cause events.Metadata, order *events.OrderFulfilled) error {
	if err := s.next.Commit(ctx, tx, cause, order); err != nil {
		return err
	}

	for _, item := range order.Items {
		s.redisClient.Del(ctx, stockKey(item.ProductID))
	}

	return nil
}

func (s *cachedInventoryService) Release(ctx context.Context, tx pgx.Tx, cause events.Metadata, orderID, reason string) error {
	if err := s.next.Release(ctx, tx, cause, orderID, reason); err != nil {
		return err
	}

	s.dropReservationKeys(ctx, orderID)

	return nil
}

func (s *cachedInventoryService) ExpireReservation(ctx context.Context, orderID string) error {
	if err := s.next.ExpireReservation(ctx, orderID); err != nil {
		return err
	}

	s.dropReservationKeys(ctx, orderID)

	return nil
}

// dropReservationKeys invalidates the stock keys a release or expiry
// touched. The release event only carries the order id, so the products
// come from the reservation items.
func (s *cachedInventoryService) dropReservationKeys(ctx context.Context, orderID string) {
	res, err := s.reservations.GetByOrderID(ctx, nil, orderID)
	if err != nil {
		return
	}

	for _, item := range res.Items {
		s.redisClient.Del(ctx, stockKey(item.ProductID))
	}
}
