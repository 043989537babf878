package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newOrder(id, number string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:     id,
		Number: number,
		Lines: []domain.OrderLine{
			{ProductID: "p-1", ProductName: "Tea", Quantity: 5, UnitPriceMinor: 100, TotalMinor: 500},
		},
		Status:     domain.OrderStatusPending,
		History:    []domain.StatusEntry{{Status: domain.OrderStatusPending, At: createdAt}},
		TotalMinor: 500,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "ORD-20260314-0001", time.Now().UTC())

	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Number != order.Number || len(stored.Lines) != 1 {
		t.Fatalf("unexpected stored order: %+v", stored)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_DuplicateNumberIsSequenceConflict(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newOrder("order-1", "ORD-20260314-0001", now)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := repo.Create(ctx, newOrder("order-2", "ORD-20260314-0001", now))
	if !errors.Is(err, domain.ErrSequenceConflict) {
		t.Fatalf("expected ErrSequenceConflict, got %v", err)
	}
}

func TestOrderRepository_LastSequence(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	now := time.Now().UTC()

	for i, number := range []string{"ORD-20260314-0001", "ORD-20260314-0012", "ORD-20260315-0099"} {
		if err := repo.Create(ctx, newOrder(number, number, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	last, err := repo.LastSequence(ctx, "ORD-20260314-")
	if err != nil {
		t.Fatalf("LastSequence failed: %v", err)
	}
	if last != 12 {
		t.Fatalf("expected 12, got %d", last)
	}

	if last, _ := repo.LastSequence(ctx, "ORD-20260316-"); last != 0 {
		t.Fatalf("expected 0 for empty day, got %d", last)
	}
}

func TestOrderRepository_SaveVersioning(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	order := newOrder("order-1", "ORD-20260314-0001", time.Now().UTC())
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order.Transition(domain.OrderStatusConfirmed, "", time.Now().UTC())
	if err := repo.Save(ctx, order); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Повторное сохранение со старой версией должно вернуть конфликт.
	if err := repo.Save(ctx, order); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	stored, _ := repo.Get(ctx, order.ID)
	if stored.Version != 1 || stored.Status != domain.OrderStatusConfirmed || len(stored.History) != 2 {
		t.Fatalf("unexpected stored order: %+v", stored)
	}
}

func TestOrderRepository_ListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		number := domain.FormatOrderNumber("ORD-20260314-", i)
		if err := repo.Create(ctx, newOrder(number, number, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	orders, err := repo.List(ctx, domain.OrderFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 || orders[0].Number != "ORD-20260314-0003" {
		t.Fatalf("expected newest first, got %+v", orders)
	}

	orders, _ = repo.List(ctx, domain.OrderFilter{CreatedAfter: base.Add(2 * time.Hour), Offset: 1})
	if len(orders) != 1 || orders[0].Number != "ORD-20260314-0002" {
		t.Fatalf("unexpected filtered page: %+v", orders)
	}
}
