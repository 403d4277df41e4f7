package domain

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusCaptured PaymentStatus = "CAPTURED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// Payment is a ledger row for one captured charge. The idempotency key
// is derived from the order id and unique, so a retried capture for the
// same order can never create a second charge.
type Payment struct {
	ID             string        `db:"id"`
	OrderID        string        `db:"order_id"`
	Amount         int64         `db:"amount"`
	Currency       string        `db:"currency"`
	Status         PaymentStatus `db:"status"`
	TransactionID  string        `db:"transaction_id"`
	IdempotencyKey string        `db:"idempotency_key"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

func CaptureKey(orderID string) string {
	return fmt.Sprintf("capture-%s", orderID)
}
