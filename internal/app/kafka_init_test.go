package app

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: " , ", want: nil},
		{in: "broker1:9092", want: []string{"broker1:9092"}},
		{in: "broker1:9092, broker2:9092,,broker3:9092 ", want: []string{"broker1:9092", "broker2:9092", "broker3:9092"}},
	}
	for _, tc := range cases {
		if got := parseBrokers(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("parseBrokers(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer("", logger)
	if err != nil {
		t.Errorf("expected no error for empty brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer for empty brokers")
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer("invalid-broker:9999, other-broker:9999", logger)
	if err == nil {
		t.Error("expected error for invalid brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafkaAndConsumer_Nil(_ *testing.T) {
	logger := log.WithField("test", "kafka")

	closeKafka(nil, logger)
	stopConsumer(nil, logger)
}

func TestOutboxPublishers_WithoutKafka(t *testing.T) {
	t.Parallel()

	service := notification.NewService(memory.NewAdminRepository(), memory.NewNotificationRepository(), nil)
	publisher, dlq := outboxPublishers(DefaultConfig(), nil, service)
	if _, ok := publisher.(*notification.LocalPublisher); !ok {
		t.Fatalf("expected local publisher, got %T", publisher)
	}
	if dlq != nil {
		t.Fatalf("expected no dlq publisher without kafka, got %T", dlq)
	}
}

func TestNotificationHandler_DeliversOrderEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	admins := memory.NewAdminRepository()
	notifications := memory.NewNotificationRepository()
	if err := admins.Create(ctx, domain.NewAdmin("m-1", "manager", domain.RoleOrderManager, time.Now().UTC())); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	handler := notificationHandler(notification.NewService(admins, notifications, nil), log.WithField("test", "consumer"))

	created := kafkaMessage(t, domain.OutboxMessage{
		ID:            "evt-1",
		AggregateType: "order",
		AggregateID:   "o-1",
		EventType:     domain.EventOrderCreated,
		Payload:       mustJSON(t, domain.OrderEventPayload{OrderID: "o-1", OrderNumber: "20261016-0001", Status: domain.OrderStatusPending, Lines: 1, TotalMinor: 1500}),
	})
	if err := handler(ctx, created); err != nil {
		t.Fatalf("handle order.created: %v", err)
	}
	// повторная доставка не создаёт дубликат
	if err := handler(ctx, created); err != nil {
		t.Fatalf("redeliver order.created: %v", err)
	}

	unread, err := notifications.CountUnread(ctx, "m-1")
	if err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 1 {
		t.Fatalf("expected one notification, got %d", unread)
	}

	compensated := kafkaMessage(t, domain.OutboxMessage{
		ID:            "evt-2",
		AggregateType: "order",
		AggregateID:   "o-2",
		EventType:     domain.EventStockCompensated,
		Payload:       mustJSON(t, domain.StockCompensatedPayload{OrderID: "o-2", Reason: "persist failed", OccurredAt: time.Now().UTC()}),
	})
	if err := handler(ctx, compensated); err != nil {
		t.Fatalf("handle stock.compensated: %v", err)
	}

	if err := handler(ctx, &sarama.ConsumerMessage{Value: []byte("{broken")}); err == nil {
		t.Fatal("expected error for malformed message")
	}
}

func kafkaMessage(t *testing.T, msg domain.OutboxMessage) *sarama.ConsumerMessage {
	t.Helper()
	return &sarama.ConsumerMessage{Topic: kafka.TopicOrderEvents, Value: mustJSON(t, kafka.NewOrderEvent(msg))}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
