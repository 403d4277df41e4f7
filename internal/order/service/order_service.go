package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/IsVohi/OrderFlow-sub001/internal/order/domain"
	"github.com/IsVohi/OrderFlow-sub001/internal/order/repository"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/IsVohi/OrderFlow-sub001/pkg/outbox/worker"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type CreateOrderRequest struct {
	CustomerID string            `json:"customerId" validate:"required"`
	Currency   string            `json:"currency" validate:"required,len=3"`
	Items      []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Price     int64  `json:"price" validate:"gte=0"`
	Quantity  int32  `json:"quantity" validate:"gt=0"`
}

// OrderService is the emitting edge of the saga: it starts flows over
// HTTP and reacts to the inventory/payment outcomes.
type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) error
	HandlePaymentCaptured(ctx context.Context, tx pgx.Tx, cause events.Metadata, ev *events.PaymentCaptured) error
	HandleReservationFailed(ctx context.Context, tx pgx.Tx, cause events.Metadata, ev *events.InventoryReservationFailed) error
}

type orderService struct {
	pool       *pgxpool.Pool
	orderRepo  repository.OrderRepository
	outboxRepo worker.OutboxRepository
	source     events.Source
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewOrderService(
	pool *pgxpool.Pool,
	orderRepo repository.OrderRepository,
	outboxRepo worker.OutboxRepository,
	source events.Source,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		pool:       pool,
		orderRepo:  orderRepo,
		outboxRepo: outboxRepo,
		source:     source,
		logger:     logger,
		tracer:     otel.Tracer("order/service"),
	}
}

func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}

	order := &domain.Order{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Status:     domain.OrderStatusNew,
		Currency:   req.Currency,
		Items:      items,
	}
	order.CalculateTotal()

	span.SetAttributes(attribute.String("order_id", order.ID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := s.orderRepo.Create(ctx, tx, order); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Failed to create order",
			zap.String("customer_id", req.CustomerID),
			zap.Error(err),
		)

		return nil, err
	}

	err = s.emit(ctx, tx, events.TypeOrderCreated, order.ID, events.Metadata{},
		&events.OrderCreated{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Items:      toEventItems(order.Items),
			TotalSum:   order.TotalSum,
			Currency:   order.Currency,
		})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order created",
		zap.String("order_id", order.ID),
		zap.Int64("total_sum", order.TotalSum),
	)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orderRepo.GetByID(ctx, nil, orderID)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, reason string) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.CancelOrder")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	if err := s.cancelInTx(ctx, tx, events.Metadata{}, orderID, reason); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *orderService) cancelInTx(ctx context.Context, tx pgx.Tx, cause events.Metadata, orderID, reason string) error {
	order, err := s.orderRepo.GetByID(ctx, tx, orderID)
	if err != nil {
		return err
	}

	if err := s.orderRepo.ChangeStatus(ctx, tx, orderID, domain.OrderStatusCancelled); err != nil {
		return err
	}

	err = s.emit(ctx, tx, events.TypeOrderCancelled, orderID, cause,
		&events.OrderCancelled{
			OrderID: orderID,
			Reason:  reason,
			Items:   toEventItems(order.Items),
		})
	if err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order cancelled",
		zap.String("order_id", orderID),
		zap.String("reason", reason),
	)

	return nil
}

func (s *orderService) HandlePaymentCaptured(ctx context.Context, tx pgx.Tx, cause events.Metadata, ev *events.PaymentCaptured) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandlePaymentCaptured")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", ev.OrderID))

	order, err := s.orderRepo.GetByID(ctx, tx, ev.OrderID)
	if err != nil {
		return err
	}

	if order.IsTerminal() {
		// Payment raced a cancellation; the cancellation path already
		// emitted order.cancelled, which triggers the refund.
		mylogger.Warn(
			ctx,
			s.logger,
			"Payment captured for terminal order, ignoring",
			zap.String("order_id", ev.OrderID),
			zap.String("status", string(order.Status)),
		)

		return nil
	}

	if err := s.orderRepo.ChangeStatus(ctx, tx, ev.OrderID, domain.OrderStatusFulfilled); err != nil {
		return err
	}

	err = s.emit(ctx, tx, events.TypeOrderFulfilled, ev.OrderID, cause,
		&events.OrderFulfilled{
			OrderID: ev.OrderID,
			Items:   toEventItems(order.Items),
		})
	if err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Order fulfilled",
		zap.String("order_id", ev.OrderID),
	)

	return nil
}

func (s *orderService) HandleReservationFailed(ctx context.Context, tx pgx.Tx, cause events.Metadata, ev *events.InventoryReservationFailed) error {
	ctx, span := s.tracer.Start(ctx, "OrderService.HandleReservationFailed")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", ev.OrderID))

	err := s.cancelInTx(ctx, tx, cause, ev.OrderID, ev.Reason)
	if err != nil {
		if errors.Is(err, repository.ErrOrderFinalized) {
			// Redelivered failure for an already-cancelled order.
			return nil
		}

		return err
	}

	return nil
}

func (s *orderService) emit(
	ctx context.Context,
	tx pgx.Tx,
	eventType, orderID string,
	cause events.Metadata,
	payload any,
) error {
	env, err := events.NewEnvelope(eventType, cause.CorrelationID, cause.EventID, s.source, payload)
	if err != nil {
		return err
	}

	return s.outboxRepo.SaveEnvelope(ctx, tx, events.TopicOrders, "Order", orderID, env)
}

func toEventItems(items []domain.OrderItem) []events.OrderItem {
	result := make([]events.OrderItem, 0, len(items))
	for _, item := range items {
		result = append(result, events.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	return result
}
