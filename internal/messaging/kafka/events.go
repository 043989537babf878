package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderCreated       EventType = domain.EventOrderCreated
	EventTypeOrderStatusChanged EventType = domain.EventOrderStatusChanged
	EventTypeStockCompensated   EventType = domain.EventStockCompensated
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
)

// OrderEvent: конверт события из transactional outbox.
type OrderEvent struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewOrderEvent заворачивает outbox-сообщение в конверт.
func NewOrderEvent(msg domain.OutboxMessage) *OrderEvent {
	return &OrderEvent{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     EventType(msg.EventType),
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   time.Now().UTC(),
	}
}

// OrderPayload декодирует полезную нагрузку order.created / order.status_changed.
func (e *OrderEvent) OrderPayload() (domain.OrderEventPayload, error) {
	var payload domain.OrderEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return domain.OrderEventPayload{}, fmt.Errorf("failed to unmarshal %s payload: %w", e.EventType, err)
	}
	return payload, nil
}

// CompensationPayload декодирует полезную нагрузку stock.compensated.
func (e *OrderEvent) CompensationPayload() (domain.StockCompensatedPayload, error) {
	var payload domain.StockCompensatedPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return domain.StockCompensatedPayload{}, fmt.Errorf("failed to unmarshal %s payload: %w", e.EventType, err)
	}
	return payload, nil
}

// ParseOrderEvent парсит OrderEvent из сообщения
func ParseOrderEvent(message *sarama.ConsumerMessage) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	if event.EventType == "" {
		return nil, fmt.Errorf("order event has no event_type")
	}
	return &event, nil
}
