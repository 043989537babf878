package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository()

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"status":"pending"}`),
	}

	saved, err := repo.Enqueue(ctx, msg)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}

	if err := repo.MarkSent(ctx, saved.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if left := repo.AllPending(); len(left) != 0 {
		t.Fatalf("expected no pending after MarkSent, got %d", len(left))
	}
}

func TestOutboxRepository_StatsAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository()

	first, _ := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-1", EventType: domain.EventOrderCreated})
	time.Sleep(time.Millisecond)
	second, _ := repo.Enqueue(ctx, domain.OutboxMessage{AggregateID: "order-1", EventType: domain.EventOrderStatusChanged})

	pending, err := repo.PullPending(ctx, 1)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != first.ID {
		t.Fatalf("expected oldest message first, got %+v", pending)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkFailed(ctx, second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	stats, _ = repo.Stats(ctx)
	if stats.PendingCount != 1 {
		t.Fatalf("failed message must leave the backlog, got %d", stats.PendingCount)
	}
}

func TestOutboxRepository_MarkUnknown(t *testing.T) {
	repo := NewOutboxRepository()
	if err := repo.MarkSent(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown message")
	}
}

func TestOutboxRepository_EnqueueSameIDKeepsFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewOutboxRepository()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{ID: "msg-1", AggregateID: "order-1", EventType: domain.EventOrderCreated})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := repo.MarkSent(ctx, first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}

	again, err := repo.Enqueue(ctx, domain.OutboxMessage{ID: "msg-1", AggregateID: "order-1", EventType: domain.EventOrderStatusChanged})
	if err != nil {
		t.Fatalf("repeated enqueue failed: %v", err)
	}
	if again.EventType != domain.EventOrderCreated {
		t.Fatalf("repeated enqueue must return the stored message, got %+v", again)
	}
	if left := repo.AllPending(); len(left) != 0 {
		t.Fatalf("sent message must not come back to pending, got %d", len(left))
	}
}
