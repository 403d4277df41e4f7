package kafka

import (
	"context"

	"github.com/IsVohi/OrderFlow-sub001/internal/order/service"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/idempotency"
	"github.com/IsVohi/OrderFlow-sub001/pkg/kafka"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const ConsumerGroupID = "order-service-group"

// Consumer closes the saga loop: payment.captured fulfils the order,
// inventory.reservation_failed cancels it.
type Consumer struct {
	orders  service.OrderService
	runtime *idempotency.Runtime
	logger  *zap.Logger
}

func NewConsumer(orders service.OrderService, runtime *idempotency.Runtime, logger *zap.Logger) *Consumer {
	return &Consumer{
		orders:  orders,
		runtime: runtime,
		logger:  logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string) {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		ConsumerGroupID,
		[]string{events.TopicInventory, events.TopicPayments},
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
	case *events.PaymentCaptured:
		return c.orders.HandlePaymentCaptured(ctx, tx, env.Metadata, ev)
	case *events.InventoryReservationFailed:
		return c.orders.HandleReservationFailed(ctx, tx, env.Metadata, ev)
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
