package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusFailed         OrderStatus = "failed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaymentPending, OrderStatusPaid,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions without an explicit
// operator override.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusFailed || s == OrderStatusCancelled
}

var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusPaymentPending, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaymentPending: {OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusDelivered, OrderStatusCancelled},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ShippingAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type OrderItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type Order struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customer_id"`
	Items            []OrderItem     `json:"items"`
	Total            int64           `json:"total"`
	Status           OrderStatus     `json:"status"`
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	PhoneNumber      string          `json:"phone_number"`
	PaymentMethod    string          `json:"payment_method"`
	Notes            string          `json:"notes,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	PaymentProvider  string          `json:"payment_provider,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
