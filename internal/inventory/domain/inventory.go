package domain

import "time"

// Inventory is the per-product stock record. Free stock is what new
// reservations may claim: QuantityAvailable - QuantityReserved.
// Invariant: 0 <= QuantityReserved <= QuantityAvailable.
type Inventory struct {
	ID                int64     `db:"id"`
	ProductID         string    `db:"product_id"`
	SellerID          string    `db:"seller_id"`
	QuantityAvailable int32     `db:"quantity_available"`
	QuantityReserved  int32     `db:"quantity_reserved"`
	Version           int64     `db:"version"`
	WarehouseID       string    `db:"warehouse_id"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (i *Inventory) FreeStock() int32 {
	return i.QuantityAvailable - i.QuantityReserved
}

func (i *Inventory) CanReserve(quantity int32) bool {
	return i.FreeStock() >= quantity
}

// Reserve moves quantity into the reserved pool. Available is untouched:
// reserved goods still sit in the warehouse.
func (i *Inventory) Reserve(quantity int32) {
	i.QuantityReserved += quantity
	i.Version++
}

// Commit takes reserved goods out of stock entirely.
func (i *Inventory) Commit(quantity int32) {
	i.QuantityAvailable -= quantity
	i.QuantityReserved -= quantity
	i.Version++
}

// Release returns reserved goods to the free pool.
func (i *Inventory) Release(quantity int32) {
	i.QuantityReserved -= quantity
	i.Version++
}

// Deduct reduces available stock without touching the reserved pool.
// Only the commit fallback for orders without an active reservation uses
// it; see InventoryService.Commit.
func (i *Inventory) Deduct(quantity int32) {
	i.QuantityAvailable -= quantity
	i.Version++
}
