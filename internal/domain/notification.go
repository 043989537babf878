package domain

import "time"

// NotificationType: тип уведомления администратора.
type NotificationType string

const (
	NotificationNewOrder      NotificationType = "new_order"
	NotificationStatusChanged NotificationType = "order_status_changed"
)

// Notification: уведомление, адресованное конкретному администратору.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	OrderID     string
	Read        bool
	CreatedAt   time.Time
}
