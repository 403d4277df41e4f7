package domain

import "time"

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFulfilled OrderStatus = "fulfilled"
)

type Order struct {
	ID         string      `db:"id" json:"id"`
	CustomerID string      `db:"customer_id" json:"customerId"`
	Status     OrderStatus `db:"status" json:"status"`
	Items      []OrderItem `db:"-" json:"items"`
	TotalSum   int64       `db:"total_sum" json:"totalSum"`
	Currency   string      `db:"currency" json:"currency"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type OrderItem struct {
	ID        int64  `db:"id" json:"-"`
	OrderID   string `db:"order_id" json:"-"`
	ProductID string `db:"product_id" json:"productId"`
	Price     int64  `db:"price" json:"price"`
	Quantity  int32  `db:"quantity" json:"quantity"`
}

func (o *Order) CalculateTotal() {
	var total int64
	for _, item := range o.Items {
		total += item.Price * int64(item.Quantity)
	}
	o.TotalSum = total
}

func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCancelled || o.Status == OrderStatusFulfilled
}
