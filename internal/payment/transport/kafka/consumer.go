package kafka

import (
	"context"

	"github.com/IsVohi/OrderFlow-sub001/internal/payment/service"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/idempotency"
	"github.com/IsVohi/OrderFlow-sub001/pkg/kafka"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const ConsumerGroupID = "payment-service-group"

// Consumer captures payment once stock is reserved and refunds when a
// captured order gets cancelled.
type Consumer struct {
	payments service.PaymentService
	runtime  *idempotency.Runtime
	logger   *zap.Logger
}

func NewConsumer(payments service.PaymentService, runtime *idempotency.Runtime, logger *zap.Logger) *Consumer {
	return &Consumer{
		payments: payments,
		runtime:  runtime,
		logger:   logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string) {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		ConsumerGroupID,
		[]string{events.TopicInventory, events.TopicOrders},
		c.runtime.Wrap(c.Handle),
		c.logger,
	)

	consumerGroup.Run(ctx)
}

func (c *Consumer) Handle(ctx context.Context, tx pgx.Tx, env *events.Envelope) error {
	payload, err := events.DecodePayload(env)
	if err != nil {
		mylogger.Error(ctx, c.logger, "Failed to decode event payload", zap.Error(err))

		return err
	}

	switch ev := payload.(type) {
	case *events.InventoryReserved:
		return c.payments.ProcessPayment(ctx, tx, env.Metadata, ev)
	case *events.OrderCancelled:
		return c.payments.ProcessRefund(ctx, tx, env.Metadata, ev)
	default:
		mylogger.Debug(
			ctx,
			c.logger,
			"Ignored event type",
			zap.String("event_type", env.Metadata.EventType),
		)
	}

	return nil
}
