package idempotency

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/IsVohi/OrderFlow-sub001/pkg/events"
	"github.com/IsVohi/OrderFlow-sub001/pkg/kafka"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

// HandlerFunc is an event handler running inside the runtime's
// transaction. Whatever it writes through tx commits atomically with the
// dedup-ledger row; returning an error rolls everything back and leaves
// the offset unacknowledged.
type HandlerFunc func(ctx context.Context, tx pgx.Tx, env *events.Envelope) error

// Runtime converts at-least-once delivery into effectively-once
// application for one consumer group. Every business effect and its
// processed_events row commit in a single transaction; acknowledging the
// offset happens only after that commit.
type Runtime struct {
	pool   *pgxpool.Pool
	group  string
	logger *zap.Logger
	tracer trace.Tracer
}

func NewRuntime(pool *pgxpool.Pool, group string, logger *zap.Logger) *Runtime {
	return &Runtime{
		pool:   pool,
		group:  group,
		logger: logger,
		tracer: otel.Tracer("idempotency/runtime"),
	}
}

// Wrap adapts a business handler into a kafka.HandlerFunc with dedup.
func (r *Runtime) Wrap(handler HandlerFunc) kafka.HandlerFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		ctx, span := r.tracer.Start(ctx, "IdempotentRuntime.Process")
		defer span.End()

		env, err := events.Unmarshal(msg.Value)
		if err != nil {
			mylogger.Error(
				ctx,
				r.logger,
				"Failed to decode event envelope",
				zap.String("topic", msg.Topic),
				zap.Int32("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)

			return err
		}

		eventID := events.DedupID(env, msg)

		span.SetAttributes(
			attribute.String("event_id", eventID),
			attribute.String("event_type", env.Metadata.EventType),
			attribute.String("consumer_group", r.group),
		)

		// Fast path: an already-recorded event is acked without opening
		// a transaction. Replays of compacted history hit this branch.
		seen, err := r.alreadyProcessed(ctx, eventID)
		if err != nil {
			return err
		}
		if seen {
			mylogger.Debug(
				ctx,
				r.logger,
				"Event already processed, skipping",
				zap.String("event_id", eventID),
			)

			return nil
		}

		return r.applyOnce(ctx, eventID, env, msg, handler)
	}
}

func (r *Runtime) alreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM processed_events
			WHERE consumer_group = $1 AND event_id = $2
		)
	`

	var seen bool
	if err := r.pool.QueryRow(ctx, query, r.group, eventID).Scan(&seen); err != nil {
		return false, fmt.Errorf("failed to check processed_events: %w", err)
	}

	return seen, nil
}

func (r *Runtime) applyOnce(
	ctx context.Context,
	eventID string,
	env *events.Envelope,
	msg *sarama.ConsumerMessage,
	handler HandlerFunc,
) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		err := tx.Rollback(cleanupCtx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			mylogger.Error(
				cleanupCtx,
				r.logger,
				"Error rolling back transaction",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		}
	}()

	query := `
		INSERT INTO processed_events (event_id, event_type, consumer_group, partition, "offset")
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = tx.Exec(ctx, query, eventID, env.Metadata.EventType, r.group, msg.Partition, msg.Offset)
	if err != nil {
		// The in-transaction existence check: a concurrent delivery of
		// the same event (consumer-group rebalance) loses the insert
		// race here and becomes a no-op that still acks.
		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == uniqueViolation {
			mylogger.Info(
				ctx,
				r.logger,
				"Concurrent delivery already recorded event, skipping",
				zap.String("event_id", eventID),
			)

			return nil
		}

		return fmt.Errorf("failed to record processed event: %w", err)
	}

	if err := handler(ctx, tx, env); err != nil {
		mylogger.Warn(
			ctx,
			r.logger,
			"Event handler failed, rolling back",
			zap.String("event_id", eventID),
			zap.String("event_type", env.Metadata.EventType),
			zap.Error(err),
		)

		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
