package sweeper

import (
	"context"
	"time"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/repository"
	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/service"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Sweeper compensates for abandoned reservations: orders that reserved
// stock but never saw payment complete. Each run releases up to
// batchSize timed-out reservations, one transaction apiece, so a single
// bad row never blocks the rest of the batch.
type Sweeper struct {
	reservationRepo repository.ReservationRepository
	inventory       service.InventoryService
	interval        time.Duration
	batchSize       int
	logger          *zap.Logger
	tracer          trace.Tracer
}

func New(
	reservationRepo repository.ReservationRepository,
	inventory service.InventoryService,
	interval time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		reservationRepo: reservationRepo,
		inventory:       inventory,
		interval:        interval,
		batchSize:       batchSize,
		logger:          logger,
		tracer:          otel.Tracer("inventory/sweeper"),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	mylogger.Info(
		ctx,
		s.logger,
		"Starting reservation sweeper",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mylogger.Info(ctx, s.logger, "Reservation sweeper stopping")

			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exported so tests drive it without the ticker.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "Sweeper.Sweep")
	defer span.End()

	orderIDs, err := s.reservationRepo.FindExpired(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to query expired reservations", zap.Error(err))

		return
	}

	if len(orderIDs) == 0 {
		return
	}

	span.SetAttributes(attribute.Int("expired_count", len(orderIDs)))

	released := 0
	for _, orderID := range orderIDs {
		if err := s.inventory.ExpireReservation(ctx, orderID); err != nil {
			mylogger.Error(
				ctx,
				s.logger,
				"Failed to expire reservation",
				zap.String("order_id", orderID),
				zap.Error(err),
			)

			continue
		}

		released++
	}

	mylogger.Info(
		ctx,
		s.logger,
		"Sweep finished",
		zap.Int("candidates", len(orderIDs)),
		zap.Int("released", released),
	)
}
