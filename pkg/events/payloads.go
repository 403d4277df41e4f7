package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TopicOrders    = "orders"
	TopicInventory = "inventory"
	TopicPayments  = "payments"
)

const (
	TypeOrderCreated               = "order.created"
	TypeOrderCancelled             = "order.cancelled"
	TypeOrderFulfilled             = "order.fulfilled"
	TypeInventoryReserved          = "inventory.reserved"
	TypeInventoryReservationFailed = "inventory.reservation_failed"
	TypeInventoryReleased          = "inventory.released"
	TypeInventoryCommitted         = "inventory.committed"
	TypePaymentCaptured            = "payment.captured"
	TypePaymentRefunded            = "payment.refunded"
)

type OrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
	Price     int64  `json:"price"`
}

type OrderCreated struct {
	OrderID    string      `json:"orderId"`
	CustomerID string      `json:"customerId"`
	Items      []OrderItem `json:"items"`
	TotalSum   int64       `json:"totalSum"`
	Currency   string      `json:"currency"`
}

type OrderCancelled struct {
	OrderID string      `json:"orderId"`
	Reason  string      `json:"reason"`
	Items   []OrderItem `json:"items"`
}

type OrderFulfilled struct {
	OrderID string      `json:"orderId"`
	Items   []OrderItem `json:"items"`
}

type ReservedItem struct {
	ProductID         string `json:"productId"`
	QuantityRequested int32  `json:"quantityRequested"`
	QuantityReserved  int32  `json:"quantityReserved"`
	WarehouseID       string `json:"warehouseId"`
}

type InventoryReserved struct {
	ReservationID string         `json:"reservationId"`
	OrderID       string         `json:"orderId"`
	Items         []ReservedItem `json:"items"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	ExpiresAt     time.Time      `json:"expiresAt"`
}

type InventoryReservationFailed struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

type InventoryReleased struct {
	ReservationID string `json:"reservationId"`
	OrderID       string `json:"orderId"`
	Reason        string `json:"reason"`
}

type InventoryCommitted struct {
	ReservationID string `json:"reservationId"`
	OrderID       string `json:"orderId"`
}

type PaymentCaptured struct {
	PaymentID     string    `json:"paymentId"`
	OrderID       string    `json:"orderId"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transactionId"`
	CapturedAt    time.Time `json:"capturedAt"`
}

type PaymentRefunded struct {
	PaymentID  string    `json:"paymentId"`
	OrderID    string    `json:"orderId"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	RefundedAt time.Time `json:"refundedAt"`
}

// DecodePayload resolves the raw payload into the struct registered for
// the envelope's event type. Unknown types are an error, not a silent
// pass-through, so consumers decide explicitly what they ignore.
func DecodePayload(env *Envelope) (any, error) {
	var payload any

	switch env.Metadata.EventType {
	case TypeOrderCreated:
		payload = &OrderCreated{}
	case TypeOrderCancelled:
		payload = &OrderCancelled{}
	case TypeOrderFulfilled:
		payload = &OrderFulfilled{}
	case TypeInventoryReserved:
		payload = &InventoryReserved{}
	case TypeInventoryReservationFailed:
		payload = &InventoryReservationFailed{}
	case TypeInventoryReleased:
		payload = &InventoryReleased{}
	case TypeInventoryCommitted:
		payload = &InventoryCommitted{}
	case TypePaymentCaptured:
		payload = &PaymentCaptured{}
	case TypePaymentRefunded:
		payload = &PaymentRefunded{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Metadata.EventType)
	}

	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.Metadata.EventType, err)
	}

	return payload, nil
}
