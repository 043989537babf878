package domain

import "time"

// OrderEventPayload: полезная нагрузка событий заказа в outbox.
type OrderEventPayload struct {
	OrderID        string      `json:"order_id"`
	OrderNumber    string      `json:"order_number"`
	Status         OrderStatus `json:"status"`
	PreviousStatus OrderStatus `json:"previous_status,omitempty"`
	TotalMinor     int64       `json:"total_minor"`
	Lines          int         `json:"lines"`
	Comment        string      `json:"comment,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

// StockCompensatedPayload: полезная нагрузка события stock.compensated.
type StockCompensatedPayload struct {
	OrderID    string    `json:"order_id"`
	Reason     string    `json:"reason"`
	Slots      []string  `json:"slots"`
	OccurredAt time.Time `json:"occurred_at"`
}
