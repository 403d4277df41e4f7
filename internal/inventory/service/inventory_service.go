package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/domain"
	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/repository"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/IsVohi/OrderFlow-sub001/pkg/outbox/worker"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const ReasonReservationExpired = "reservation expired"

// InventoryService owns the reservation state machine
// RESERVED -> {COMMITTED | RELEASED | EXPIRED} and every stock counter
// mutation. Methods taking pgx.Tx run inside the caller's transaction
// (the idempotent runtime's); ExpireReservation opens its own.
type InventoryService interface {
	Reserve(ctx context.Context, tx pgx.Tx, cause events.Metadata, order *events.OrderCreated) error
	Commit(ctx context.Context, tx pgx.Tx, cause events.Metadata, order *events.OrderFulfilled) error
	Release(ctx context.Context, tx pgx.Tx, cause events.Metadata, orderID, reason string) error
	ExpireReservation(ctx context.Context, orderID string) error
	GetStock(ctx context.Context, productID string) (*domain.Inventory, error)
}

type inventoryService struct {
	pool            *pgxpool.Pool
	inventoryRepo   repository.InventoryRepository
	reservationRepo repository.ReservationRepository
	outboxRepo      worker.OutboxRepository
	source          events.Source
	reservationTTL  time.Duration
	logger          *zap.Logger
	tracer          trace.Tracer
}

func NewInventoryService(
	pool *pgxpool.Pool,
	inventoryRepo repository.InventoryRepository,
	reservationRepo repository.ReservationRepository,
	outboxRepo worker.OutboxRepository,
	source events.Source,
	reservationTTL time.Duration,
	logger *zap.Logger,
) InventoryService {
	return &inventoryService{
		pool:            pool,
		inventoryRepo:   inventoryRepo,
		reservationRepo: reservationRepo,
		outboxRepo:      outboxRepo,
		source:          source,
		reservationTTL:  reservationTTL,
		logger:          logger,
		tracer:          otel.Tracer("inventory/service"),
	}
}

func (s *inventoryService) GetStock(ctx context.Context, productID string) (*domain.Inventory, error) {
	return s.inventoryRepo.GetByProductID(ctx, productID)
}

func (s *inventoryService) Reserve(ctx context.Context, tx pgx.Tx, cause events.Metadata, order *events.OrderCreated) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Reserve")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", order.OrderID))

	// One reservation per order. A second order.created for the same
	// order (distinct event id, e.g. a producer-side retry) finds the
	// existing reservation and must not deduct again.
	existing, err := s.reservationRepo.GetByOrderID(ctx, tx, order.OrderID)
	if err != nil && !errors.Is(err, repository.ErrReservationNotFound) {
		return err
	}
	if existing != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Reservation already exists for order, skipping",
			zap.String("order_id", order.OrderID),
			zap.String("reservation_id", existing.ID),
			zap.String("status", string(existing.Status)),
		)

		return nil
	}

	// Duplicate product lines in one order combine into a single demand,
	// so the free-stock check sees the total, not each line against the
	// same baseline.
	demand := make(map[string]int32, len(order.Items))
	productIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		if _, seen := demand[item.ProductID]; !seen {
			productIDs = append(productIDs, item.ProductID)
		}

		demand[item.ProductID] += item.Quantity
	}

	// Lock in a stable order so two orders over the same products cannot
	// deadlock each other.
	sort.Strings(productIDs)

	inventories := make(map[string]*domain.Inventory, len(productIDs))
	for _, productID := range productIDs {
		inv, err := s.inventoryRepo.GetForUpdate(ctx, tx, productID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return s.failReservation(ctx, tx, cause, order.OrderID,
					fmt.Sprintf("unknown product %s", productID))
			}

			return err
		}

		if !inv.CanReserve(demand[productID]) {
			return s.failReservation(ctx, tx, cause, order.OrderID,
				fmt.Sprintf("insufficient stock for product %s: requested %d, free %d",
					productID, demand[productID], inv.FreeStock()))
		}

		inventories[productID] = inv
	}

	// All checks passed; mutate counters and create the reservation in
	// the same transaction.
	res := domain.NewReservation(order.OrderID, s.reservationTTL)
	for _, productID := range productIDs {
		inv := inventories[productID]
		quantity := demand[productID]
		inv.Reserve(quantity)

		if err := s.inventoryRepo.UpdateCounters(ctx, tx, inv); err != nil {
			return err
		}

		res.Items = append(res.Items, domain.ReservationItem{
			ProductID:         productID,
			QuantityRequested: quantity,
			QuantityReserved:  quantity,
			WarehouseID:       inv.WarehouseID,
		})
	}

	if err := s.reservationRepo.Create(ctx, tx, res); err != nil {
		return err
	}

	reservedItems := make([]events.ReservedItem, 0, len(res.Items))
	for _, item := range res.Items {
		reservedItems = append(reservedItems, events.ReservedItem{
			ProductID:         item.ProductID,
			QuantityRequested: item.QuantityRequested,
			QuantityReserved:  item.QuantityReserved,
			WarehouseID:       item.WarehouseID,
		})
	}

	err = s.emit(ctx, tx, events.TopicInventory, events.TypeInventoryReserved, order.OrderID, cause,
		&events.InventoryReserved{
			ReservationID: res.ID,
			OrderID:       order.OrderID,
			Items:         reservedItems,
			Amount:        order.TotalSum,
			Currency:      order.Currency,
			ExpiresAt:     res.ExpiresAt,
		})
	if err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Stock reserved",
		zap.String("order_id", order.OrderID),
		zap.String("reservation_id", res.ID),
	)

	return nil
}

// failReservation reports a business rejection. It is not a handler
// error: the event acks, the saga continues down the failure branch.
func (s *inventoryService) failReservation(ctx context.Context, tx pgx.Tx, cause events.Metadata, orderID, reason string) error {
	mylogger.Warn(
		ctx,
		s.logger,
		"Reservation failed",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
	)

	return s.emit(ctx, tx, events.TopicInventory, events.TypeInventoryReservationFailed, orderID, cause,
		&events.InventoryReservationFailed{
			OrderID: orderID,
			Reason:  reason,
		})
}

func (s *inventoryService) Commit(ctx context.Context, tx pgx.Tx, cause events.Metadata, order *events.OrderFulfilled) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Commit")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", order.OrderID))

	res, err := s.reservationRepo.GetByOrderID(ctx, tx, order.OrderID)
	if err != nil && !errors.Is(err, repository.ErrReservationNotFound) {
		return err
	}

	if res != nil && res.Status == domain.ReservationStatusCommitted {
		mylogger.Info(
			ctx,
			s.logger,
			"Reservation already committed, skipping",
			zap.String("order_id", order.OrderID),
		)

		return nil
	}

	if res == nil || res.IsTerminal() {
		return s.commitWithoutReservation(ctx, tx, order)
	}

	ok, err := s.reservationRepo.TransitionStatus(ctx, tx, res.ID, domain.ReservationStatusCommitted)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("reservation %s left RESERVED concurrently", res.ID)
	}

	for _, item := range res.Items {
		inv, err := s.inventoryRepo.GetForUpdate(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}

		inv.Commit(item.QuantityReserved)

		if err := s.inventoryRepo.UpdateCounters(ctx, tx, inv); err != nil {
			return err
		}
	}

	err = s.emit(ctx, tx, events.TopicInventory, events.TypeInventoryCommitted, order.OrderID, cause,
		&events.InventoryCommitted{
			ReservationID: res.ID,
			OrderID:       order.OrderID,
		})
	if err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Reservation committed",
		zap.String("order_id", order.OrderID),
		zap.String("reservation_id", res.ID),
	)

	return nil
}

// commitWithoutReservation is the legacy fallback for fulfilled orders
// without an active reservation: available stock is reduced directly,
// with no reserved-counter bookkeeping to balance it. Known asymmetry
// against reserve/release, kept on purpose pending a product decision.
func (s *inventoryService) commitWithoutReservation(ctx context.Context, tx pgx.Tx, order *events.OrderFulfilled) error {
	mylogger.Warn(
		ctx,
		s.logger,
		"No active reservation for fulfilled order, deducting stock directly",
		zap.String("order_id", order.OrderID),
	)

	for _, item := range order.Items {
		inv, err := s.inventoryRepo.GetForUpdate(ctx, tx, item.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				mylogger.Error(
					ctx,
					s.logger,
					"Cannot deduct stock for unknown product",
					zap.String("order_id", order.OrderID),
					zap.String("product_id", item.ProductID),
				)

				continue
			}

			return err
		}

		inv.Deduct(item.Quantity)

		if err := s.inventoryRepo.UpdateCounters(ctx, tx, inv); err != nil {
			return err
		}
	}

	return nil
}

func (s *inventoryService) Release(ctx context.Context, tx pgx.Tx, cause events.Metadata, orderID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.Release")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	res, err := s.reservationRepo.GetByOrderID(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			// Nothing reserved (reservation failed, or never reached
			// us). Release must be safely repeatable, so this is fine.
			mylogger.Debug(
				ctx,
				s.logger,
				"No reservation to release",
				zap.String("order_id", orderID),
			)

			return nil
		}

		return err
	}

	if res.IsTerminal() {
		mylogger.Debug(
			ctx,
			s.logger,
			"Reservation already terminal, release is a no-op",
			zap.String("order_id", orderID),
			zap.String("status", string(res.Status)),
		)

		return nil
	}

	ok, err := s.reservationRepo.TransitionStatus(ctx, tx, res.ID, domain.ReservationStatusReleased)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := s.restoreCounters(ctx, tx, res); err != nil {
		return err
	}

	err = s.emit(ctx, tx, events.TopicInventory, events.TypeInventoryReleased, orderID, cause,
		&events.InventoryReleased{
			ReservationID: res.ID,
			OrderID:       orderID,
			Reason:        reason,
		})
	if err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Reservation released",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
	)

	return nil
}

// ExpireReservation releases a single timed-out reservation in its own
// transaction; the sweeper calls it per order id so one failure cannot
// poison a whole batch.
func (s *inventoryService) ExpireReservation(ctx context.Context, orderID string) error {
	ctx, span := s.tracer.Start(ctx, "InventoryService.ExpireReservation")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	res, err := s.reservationRepo.GetByOrderID(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil
		}

		return err
	}

	// Re-check under the row lock: a commit or release may have won
	// between the sweep scan and this transaction.
	if !res.IsExpired(time.Now().UTC()) {
		return nil
	}

	ok, err := s.reservationRepo.TransitionStatus(ctx, tx, res.ID, domain.ReservationStatusExpired)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := s.restoreCounters(ctx, tx, res); err != nil {
		return err
	}

	err = s.emit(ctx, tx, events.TopicInventory, events.TypeInventoryReleased, orderID, events.Metadata{},
		&events.InventoryReleased{
			ReservationID: res.ID,
			OrderID:       orderID,
			Reason:        ReasonReservationExpired,
		})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Reservation expired",
		zap.String("order_id", orderID),
		zap.String("reservation_id", res.ID),
	)

	return nil
}

func (s *inventoryService) restoreCounters(ctx context.Context, tx pgx.Tx, res *domain.Reservation) error {
	for _, item := range res.Items {
		inv, err := s.inventoryRepo.GetForUpdate(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}

		inv.Release(item.QuantityReserved)

		if err := s.inventoryRepo.UpdateCounters(ctx, tx, inv); err != nil {
			return err
		}
	}

	return nil
}

func (s *inventoryService) emit(
	ctx context.Context,
	tx pgx.Tx,
	topic, eventType, orderID string,
	cause events.Metadata,
	payload any,
) error {
	env, err := events.NewEnvelope(eventType, cause.CorrelationID, cause.EventID, s.source, payload)
	if err != nil {
		return err
	}

	return s.outboxRepo.SaveEnvelope(ctx, tx, topic, "Reservation", orderID, env)
}
