package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/IsVohi/OrderFlow-sub001/internal/inventory/domain"
	"github.com/IsVohi/OrderFlow-sub001/pkg/mylogger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type InventoryRepository interface {
	GetByProductID(ctx context.Context, productID string) (*domain.Inventory, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, productID string) (*domain.Inventory, error)
	UpdateCounters(ctx context.Context, tx pgx.Tx, inv *domain.Inventory) error
}

type inventoryRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewInventoryRepository(pool *pgxpool.Pool, logger *zap.Logger) InventoryRepository {
	return &inventoryRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("inventory/repository"),
	}
}

const inventoryColumns = `
	id, product_id, seller_id, quantity_available, quantity_reserved, version, warehouse_id, created_at, updated_at
`

func scanInventory(row pgx.Row) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := row.Scan(
		&inv.ID,
		&inv.ProductID,
		&inv.SellerID,
		&inv.QuantityAvailable,
		&inv.QuantityReserved,
		&inv.Version,
		&inv.WarehouseID,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &inv, nil
}

func (r *inventoryRepo) GetByProductID(ctx context.Context, productID string) (*domain.Inventory, error) {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.GetByProductID")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", productID))

	query := `SELECT ` + inventoryColumns + ` FROM inventories WHERE product_id = $1`

	inv, err := scanInventory(r.pool.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}

	return inv, nil
}

// GetForUpdate row-locks the inventory record for the rest of the
// transaction. The version CAS in UpdateCounters still applies on top.
func (r *inventoryRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, productID string) (*domain.Inventory, error) {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.GetForUpdate")
	defer span.End()

	span.SetAttributes(attribute.String("product_id", productID))

	query := `SELECT ` + inventoryColumns + ` FROM inventories WHERE product_id = $1 FOR UPDATE`

	inv, err := scanInventory(tx.QueryRow(ctx, query, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}

	return inv, nil
}

// UpdateCounters persists mutated counters with a compare-and-swap on
// version. The caller must have advanced inv.Version already; the WHERE
// clause matches the pre-mutation value.
func (r *inventoryRepo) UpdateCounters(ctx context.Context, tx pgx.Tx, inv *domain.Inventory) error {
	ctx, span := r.tracer.Start(ctx, "InventoryRepository.UpdateCounters")
	defer span.End()

	span.SetAttributes(
		attribute.String("product_id", inv.ProductID),
		attribute.Int64("version", inv.Version),
	)

	query := `
		UPDATE inventories
		SET quantity_available = $1,
			quantity_reserved = $2,
			version = $3,
			updated_at = NOW()
		WHERE id = $4 AND version = $5
	`

	tag, err := tx.Exec(
		ctx,
		query,
		inv.QuantityAvailable,
		inv.QuantityReserved,
		inv.Version,
		inv.ID,
		inv.Version-1,
	)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to update inventory: %w", err)
	}

	if tag.RowsAffected() == 0 {
		mylogger.Warn(
			ctx,
			r.logger,
			"Inventory version conflict",
			zap.String("product_id", inv.ProductID),
			zap.Int64("expected_version", inv.Version-1),
		)

		return ErrVersionConflict
	}

	return nil
}
