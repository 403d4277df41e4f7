package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "RESERVED"
	ReservationStatusCommitted ReservationStatus = "COMMITTED"
	ReservationStatusReleased  ReservationStatus = "RELEASED"
	ReservationStatusExpired   ReservationStatus = "EXPIRED"
)

// Reservation holds stock for one order until payment completes or the
// hold expires. COMMITTED, RELEASED and EXPIRED are terminal.
type Reservation struct {
	ID        string            `db:"id"`
	OrderID   string            `db:"order_id"`
	Status    ReservationStatus `db:"status"`
	ExpiresAt time.Time         `db:"expires_at"`
	Items     []ReservationItem `db:"-"`
	CreatedAt time.Time         `db:"created_at"`
	UpdatedAt time.Time         `db:"updated_at"`
}

type ReservationItem struct {
	ID                int64  `db:"id"`
	ReservationID     string `db:"reservation_id"`
	ProductID         string `db:"product_id"`
	QuantityRequested int32  `db:"quantity_requested"`
	QuantityReserved  int32  `db:"quantity_reserved"`
	WarehouseID       string `db:"warehouse_id"`
}

func NewReservation(orderID string, ttl time.Duration) *Reservation {
	return &Reservation{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Status:    ReservationStatusReserved,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
}

func (r *Reservation) IsTerminal() bool {
	return r.Status != ReservationStatusReserved
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusReserved && r.ExpiresAt.Before(now)
}
