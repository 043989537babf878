package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// LocalPublisher доставляет outbox-события прямо в сервис уведомлений.
// Используется, когда Kafka не настроена.
type LocalPublisher struct {
	service *Service
}

// NewLocalPublisher создаёт in-process паблишер.
func NewLocalPublisher(service *Service) *LocalPublisher {
	return &LocalPublisher{service: service}
}

// Publish декодирует полезную нагрузку события заказа и передаёт её сервису.
func (p *LocalPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.service == nil {
		return fmt.Errorf("local notification publisher is not initialized")
	}
	if event.AggregateType != "order" {
		return nil
	}

	var payload domain.OrderEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.EventType, err)
	}
	return p.service.HandleOrderEvent(ctx, event.ID, event.EventType, payload)
}

var _ domain.OutboxPublisher = (*LocalPublisher)(nil)
