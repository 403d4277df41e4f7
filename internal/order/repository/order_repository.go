package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/IsVohi/OrderFlow-sub001/internal/order/domain"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Order, error)
	// ChangeStatus transitions an order out of a non-terminal status.
	ChangeStatus(ctx context.Context, tx pgx.Tx, orderID string, status domain.OrderStatus) error
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("order/repository"),
	}
}

func (r *orderRepo) Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders (id, customer_id, status, total_sum, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.ID,
		order.CustomerID,
		string(order.Status),
		order.TotalSum,
		order.Currency,
	).Scan(
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Warn(ctx, r.logger, "Failed to insert order", zap.Error(err))

		return fmt.Errorf("failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (order_id, product_id, price, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		if err := tx.QueryRow(
			ctx,
			queryItem,
			item.OrderID,
			item.ProductID,
			item.Price,
			item.Quantity,
		).Scan(&item.ID); err != nil {
			span.RecordError(err)

			mylogger.Error(ctx, r.logger, "Failed to insert order item", zap.Error(err))

			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	query := `
		SELECT id, customer_id, status, total_sum, currency, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var row pgx.Row
	if tx != nil {
		row = tx.QueryRow(ctx, query+" FOR UPDATE", orderID)
	} else {
		row = r.pool.QueryRow(ctx, query, orderID)
	}

	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.CustomerID,
		&order.Status,
		&order.TotalSum,
		&order.Currency,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, product_id, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	var rows pgx.Rows
	if tx != nil {
		rows, err = tx.Query(ctx, itemsQuery, orderID)
	} else {
		rows, err = r.pool.Query(ctx, itemsQuery, orderID)
	}
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Price, &item.Quantity); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("order items rows error: %w", err)
	}

	return &order, nil
}

func (r *orderRepo) ChangeStatus(ctx context.Context, tx pgx.Tx, orderID string, status domain.OrderStatus) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ChangeStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", orderID),
		attribute.String("status", string(status)),
	)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status NOT IN ($3, $4)
	`

	tag, err := tx.Exec(
		ctx,
		query,
		string(status),
		orderID,
		string(domain.OrderStatusCancelled),
		string(domain.OrderStatusFulfilled),
	)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to update order status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		existsQuery := `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
		if err := tx.QueryRow(ctx, existsQuery, orderID).Scan(&exists); err != nil {
			span.RecordError(err)

			return fmt.Errorf("failed to check order existence: %w", err)
		}

		if !exists {
			return ErrOrderNotFound
		}

		return ErrOrderFinalized
	}

	return nil
}
