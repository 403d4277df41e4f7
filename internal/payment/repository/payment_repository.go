package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/IsVohi/OrderFlow-sub001/internal/payment/domain"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrPaymentNotFound = errors.New("payment not found")

type PaymentRepository interface {
	Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error
	GetByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Payment, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status domain.PaymentStatus) error
}

type paymentRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewPaymentRepository(pool *pgxpool.Pool, logger *zap.Logger) PaymentRepository {
	return &paymentRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("payment/repository"),
	}
}

func (r *paymentRepo) Create(ctx context.Context, tx pgx.Tx, payment *domain.Payment) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", payment.OrderID),
		attribute.Int64("amount", payment.Amount),
	)

	query := `
		INSERT INTO payments (id, order_id, amount, currency, status, transaction_id, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	if err := tx.QueryRow(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.Amount,
		payment.Currency,
		string(payment.Status),
		payment.TransactionID,
		payment.IdempotencyKey,
	).Scan(
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Warn(ctx, r.logger, "Create payment failed", zap.Error(err))

		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepo) GetByOrderID(ctx context.Context, tx pgx.Tx, orderID string) (*domain.Payment, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.GetByOrderID")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", orderID))

	query := `
		SELECT id, order_id, amount, currency, status, transaction_id, idempotency_key, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`

	var row pgx.Row
	if tx != nil {
		row = tx.QueryRow(ctx, query+" FOR UPDATE", orderID)
	} else {
		row = r.pool.QueryRow(ctx, query, orderID)
	}

	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.TransactionID,
		&p.IdempotencyKey,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &p, nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status domain.PaymentStatus) error {
	ctx, span := r.tracer.Start(ctx, "PaymentRepository.UpdateStatus")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", id),
		attribute.String("status", string(status)),
	)

	query := `
		UPDATE payments
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	tag, err := tx.Exec(ctx, query, string(status), id)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}

	return nil
}
