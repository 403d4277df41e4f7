package kafka

import (
	"context"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/service"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/idempotency"
	"github.com/IsVohi/OrderFlow-sub001/pkg/kafka"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const ConsumerGroupID = "inventory-service-group"

// Consumer reacts to the order lifecycle: order.created reserves stock,
// order.fulfilled commits it, order.cancelled releases it.
type Consumer struct {
	inventory service.InventoryService
	runtime   *idempotency.Runtime
	logger    *zap.Logger
}

func NewConsumer(inventory service.InventoryService, runtime *idempotency.Runtime, logger *zap.Logger) *Consumer {
	return &Consumer{
		inventory: inventory,
		runtime:   runtime,
		logger:    logger,
	}
}

func (c *Consumer) Start(ctx context.Context, brokers []string) {
	consumerGroup := kafka.NewConsumerGroup(
		brokers,
		ConsumerGroupID,
		[]string{events.TopicOrders},
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
	case *events.OrderCreated:
		return c.inventory.Reserve(ctx, tx, env.Metadata, ev)
	case *events.OrderFulfilled:
		return c.inventory.Commit(ctx, tx, env.Metadata, ev)
	case *events.OrderCancelled:
		return c.inventory.Release(ctx, tx, env.Metadata, ev.OrderID, ev.Reason)
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
