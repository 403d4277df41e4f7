package service

import (
	"context"
	"errors"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/internal/payment/domain"
	"github.com/IsVohi/OrderFlow-sub001/internal/payment/gateway"
	"github.com/IsVohi/OrderFlow-sub001/internal/payment/repository"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/IsVohi/OrderFlow-sub001/pkg/outbox/worker"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PaymentService applies and reverses payment side effects. Both paths
// run inside the idempotent runtime's transaction, so a redelivered
// event can never double-charge or double-refund.
type PaymentService interface {
	ProcessPayment(ctx context.Context, tx pgx.Tx, cause events.Metadata, reserved *events.InventoryReserved) error
	ProcessRefund(ctx context.Context, tx pgx.Tx, cause events.Metadata, cancelled *events.OrderCancelled) error
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	outboxRepo  worker.OutboxRepository
	gateway     gateway.Gateway
	source      events.Source
	logger      *zap.Logger
	tracer      trace.Tracer
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	outboxRepo worker.OutboxRepository,
	gw gateway.Gateway,
	source events.Source,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		outboxRepo:  outboxRepo,
		gateway:     gw,
		source:      source,
		logger:      logger,
		tracer:      otel.Tracer("payment/service"),
	}
}

func (s *paymentService) ProcessPayment(ctx context.Context, tx pgx.Tx, cause events.Metadata, reserved *events.InventoryReserved) error {
	ctx, span := s.tracer.Start(ctx, "PaymentService.ProcessPayment")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_id", reserved.OrderID),
		attribute.Int64("amount", reserved.Amount),
	)

	// A capture retry for the same order must not charge twice. The
	// unique idempotency key backs this check up at the schema level.
	existing, err := s.paymentRepo.GetByOrderID(ctx, tx, reserved.OrderID)
	if err != nil && !errors.Is(err, repository.ErrPaymentNotFound) {
		return err
	}
	if existing != nil {
		mylogger.Warn(
			ctx,
			s.logger,
			"Payment already exists for order, skipping capture",
			zap.String("order_id", reserved.OrderID),
			zap.String("payment_id", existing.ID),
		)

		return nil
	}

	transactionID, err := s.gateway.Charge(ctx, reserved.OrderID, reserved.Amount, reserved.Currency)
	if err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Gateway charge failed",
			zap.String("order_id", reserved.OrderID),
			zap.Error(err),
		)

		return err
	}

	payment := &domain.Payment{
		ID:             uuid.New().String(),
		OrderID:        reserved.OrderID,
		Amount:         reserved.Amount,
		Currency:       reserved.Currency,
		Status:         domain.PaymentStatusCaptured,
		TransactionID:  transactionID,
		IdempotencyKey: domain.CaptureKey(reserved.OrderID),
	}

	if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
		return err
	}

	err = s.emit(ctx, tx, events.TypePaymentCaptured, reserved.OrderID, cause,
		&events.PaymentCaptured{
			PaymentID:     payment.ID,
			OrderID:       payment.OrderID,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			TransactionID: payment.TransactionID,
			CapturedAt:    time.Now().UTC(),
		})
	if err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Payment captured",
		zap.String("order_id", payment.OrderID),
		zap.String("transaction_id", payment.TransactionID),
	)

	return nil
}

// ProcessRefund is the compensating action for a cancelled order that
// had already captured. Without a captured payment it is a no-op.
func (s *paymentService) ProcessRefund(ctx context.Context, tx pgx.Tx, cause events.Metadata, cancelled *events.OrderCancelled) error {
	ctx, span := s.tracer.Start(ctx, "PaymentService.ProcessRefund")
	defer span.End()

	span.SetAttributes(attribute.String("order_id", cancelled.OrderID))

	payment, err := s.paymentRepo.GetByOrderID(ctx, tx, cancelled.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			mylogger.Debug(
				ctx,
				s.logger,
				"No payment to refund",
				zap.String("order_id", cancelled.OrderID),
			)

			return nil
		}

		return err
	}

	if payment.Status != domain.PaymentStatusCaptured {
		mylogger.Debug(
			ctx,
			s.logger,
			"Payment not in CAPTURED status, refund is a no-op",
			zap.String("order_id", cancelled.OrderID),
			zap.String("status", string(payment.Status)),
		)

		return nil
	}

	if err := s.gateway.Refund(ctx, payment.TransactionID, payment.Amount); err != nil {
		mylogger.Error(
			ctx,
			s.logger,
			"Gateway refund failed",
			zap.String("order_id", cancelled.OrderID),
			zap.Error(err),
		)

		return err
	}

	if err := s.paymentRepo.UpdateStatus(ctx, tx, payment.ID, domain.PaymentStatusRefunded); err != nil {
		return err
	}

	err = s.emit(ctx, tx, events.TypePaymentRefunded, cancelled.OrderID, cause,
		&events.PaymentRefunded{
			PaymentID:  payment.ID,
			OrderID:    payment.OrderID,
			Amount:     payment.Amount,
			Reason:     cancelled.Reason,
			RefundedAt: time.Now().UTC(),
		})
	if err != nil {
		return err
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Payment refunded",
		zap.String("order_id", payment.OrderID),
		zap.String("payment_id", payment.ID),
	)

	return nil
}

func (s *paymentService) emit(
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

	return s.outboxRepo.SaveEnvelope(ctx, tx, events.TopicPayments, "Payment", orderID, env)
}
