package domain

import "time"

type OrderCreatedEvent struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Items      []OrderItem `json:"items"`
	Total      int64       `json:"total"`
	Reference  string      `json:"payment_reference"`
	Provider   string      `json:"provider"`
	Timestamp  time.Time   `json:"timestamp"`
}

type PaymentSettledEvent struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Reference  string      `json:"payment_reference"`
	Status     OrderStatus `json:"status"`
	Amount     int64       `json:"amount"`
	Timestamp  time.Time   `json:"timestamp"`
}
