package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ReservationRepository interface {
	Create(ctx context.Context, tx pgx.Tx, res *domain.Reservation) error
	GetByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Reservation, error)
	// TransitionStatus moves a reservation out of RESERVED. The guard in
	// the WHERE clause makes terminal states final at the database level.
	TransitionStatus(ctx context.Context, tx pgx.Tx, id string, to domain.ReservationStatus) (bool, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type reservationRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewReservationRepository(pool *pgxpool.Pool, logger *zap.Logger) ReservationRepository {
	return &reservationRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("inventory/reservation_repository"),
	}
}

func (r *reservationRepo) Create(ctx context.Context, tx pgx.Tx, res *domain.Reservation) error {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", res.ID),
		attribute.String("order_id", res.OrderID),
	)

	query := `
		INSERT INTO reservations (id, order_id, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if err := tx.QueryRow(
		ctx,
		query,
		res.ID,
		res.OrderID,
		string(res.Status),
		res.ExpiresAt,
	).Scan(&res.CreatedAt, &res.UpdatedAt); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	queryItem := `
		INSERT INTO reservation_items (reservation_id, product_id, quantity_requested, quantity_reserved, warehouse_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	for i := range res.Items {
		item := &res.Items[i]
		item.ReservationID = res.ID

		if err := tx.QueryRow(
			ctx,
			queryItem,
			item.ReservationID,
			item.ProductID,
			item.QuantityRequested,
			item.QuantityReserved,
			item.WarehouseID,
		).Scan(&item.ID); err != nil {
			span.RecordError(err)

			return fmt.Errorf("failed to insert reservation item: %w", err)
		}
	}

	return nil
}

// GetByOrderID loads a reservation with its items. Passing a nil tx
// reads through the pool; inside a transaction the reservation row is
// locked FOR UPDATE.
func (r *reservationRepo) GetByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Reservation, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.GetByOrderID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	query := `
		SELECT id, order_id, status, expires_at, created_at, updated_at
		FROM reservations
		WHERE order_id = $1
	`

	var row pgx.Row
	if tx != nil {
		row = tx.QueryRow(ctx, query+" FOR UPDATE", orderID)
	} else {
		row = r.pool.QueryRow(ctx, query, orderID)
	}

	var res domain.Reservation
	err := row.Scan(&res.ID, &res.OrderID, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	itemsQuery := `
		SELECT id, reservation_id, product_id, quantity_requested, quantity_reserved, warehouse_id
		FROM reservation_items
		WHERE reservation_id = $1
		ORDER BY id
	`

	var rows pgx.Rows
	if tx != nil {
		rows, err = tx.Query(ctx, itemsQuery, res.ID)
	} else {
		rows, err = r.pool.Query(ctx, itemsQuery, res.ID)
	}
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to query reservation items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.ReservationItem
		if err := rows.Scan(
			&item.ID,
			&item.ReservationID,
			&item.ProductID,
			&item.QuantityRequested,
			&item.QuantityReserved,
			&item.WarehouseID,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("failed to scan reservation item: %w", err)
		}

		res.Items = append(res.Items, item)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("reservation items rows error: %w", err)
	}

	return &res, nil
}

func (r *reservationRepo) TransitionStatus(ctx context.Context, tx pgx.Tx, id string, to domain.ReservationStatus) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.TransitionStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", id),
		attribute.String("to_status", string(to)),
	)

	query := `
		UPDATE reservations
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	tag, err := tx.Exec(ctx, query, string(to), id, string(domain.ReservationStatusReserved))
	if err != nil {
		span.RecordError(err)

		return false, fmt.Errorf("failed to transition reservation: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *reservationRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "ReservationRepository.FindExpired")
	defer span.End()

	query := `
		SELECT order_id
		FROM reservations
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, string(domain.ReservationStatusReserved), now, limit)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("failed to query expired reservations: %w", err)
	}
	defer rows.Close()

	var orderIDs []string
	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("failed to scan expired reservation: %w", err)
		}

		orderIDs = append(orderIDs, orderID)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("expired reservations rows error: %w", err)
	}

	span.SetAttributes(attribute.Int("result_count", len(orderIDs)))

	return orderIDs, nil
}
