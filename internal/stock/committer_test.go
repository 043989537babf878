package stock_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/stock"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func line(productID, variantID string, qty int32) domain.OrderLine {
	return domain.OrderLine{ProductID: productID, VariantID: variantID, Quantity: qty}
}

func seed(t *testing.T) *memory.CatalogStore {
	t.Helper()
	store := memory.NewCatalogStore()
	now := time.Now().UTC()
	for _, p := range []domain.Product{
		{ID: "a", Shape: domain.ProductShapeSimple, Name: "A", Quantity: 5, CreatedAt: now},
		{ID: "b", Shape: domain.ProductShapeSimple, Name: "B", Quantity: 1, CreatedAt: now},
		{
			ID: "v", Shape: domain.ProductShapeVariable, Name: "V", CreatedAt: now,
			Variants: []domain.Variant{
				{ID: "red-s", Attributes: domain.VariantAttributes{Color: "red", Size: "S"}, Quantity: 2},
				{ID: "red-m", Attributes: domain.VariantAttributes{Color: "red", Size: "M"}, Quantity: 0},
			},
		},
	} {
		if err := store.Create(context.Background(), p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store
}

func available(t *testing.T, store *memory.CatalogStore, productID, variantID string) int32 {
	t.Helper()
	qty, err := store.Available(context.Background(), domain.StockKey{ProductID: productID, VariantID: variantID})
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	return qty
}

func TestAggregate_MergesSameSlot(t *testing.T) {
	t.Parallel()

	got := stock.Aggregate([]domain.OrderLine{
		line("a", "", 1),
		line("v", "red-s", 1),
		line("a", "", 2),
	})
	want := []stock.Demand{
		{Key: domain.StockKey{ProductID: "a"}, Quantity: 3},
		{Key: domain.StockKey{ProductID: "v", VariantID: "red-s"}, Quantity: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("demand %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCommitter_CommitDecrementsOnlySelectedSlots(t *testing.T) {
	t.Parallel()

	store := seed(t)
	c := stock.NewCommitter(store, nil, nil)

	err := c.Commit(context.Background(), "order-1", []domain.OrderLine{line("a", "", 3), line("v", "red-s", 2)})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if got := available(t, store, "a", ""); got != 2 {
		t.Fatalf("a = %d, want 2", got)
	}
	if got := available(t, store, "v", "red-s"); got != 0 {
		t.Fatalf("red-s = %d, want 0", got)
	}
	if got := available(t, store, "v", "red-m"); got != 0 {
		t.Fatalf("sibling variant touched: %d", got)
	}
}

func TestCommitter_PartialFailureCompensates(t *testing.T) {
	t.Parallel()

	store := seed(t)
	reg := prometheus.NewRegistry()
	c := stock.NewCommitter(store, metrics.NewOrderMetricsWithRegisterer(reg), nil)

	err := c.Commit(context.Background(), "order-1", []domain.OrderLine{
		line("a", "", 2),
		line("v", "red-s", 1),
		line("b", "", 2),
	})
	if !errors.Is(err, domain.ErrStockRaceLost) {
		t.Fatalf("expected ErrStockRaceLost, got %v", err)
	}

	if got := available(t, store, "a", ""); got != 5 {
		t.Fatalf("a must be restored to 5, got %d", got)
	}
	if got := available(t, store, "v", "red-s"); got != 2 {
		t.Fatalf("red-s must be restored to 2, got %d", got)
	}
	if got := available(t, store, "b", ""); got != 1 {
		t.Fatalf("b must stay 1, got %d", got)
	}

	// Повторная компенсация по тому же ref ничего не меняет.
	if err := c.Compensate(context.Background(), "order-1", []domain.OrderLine{line("a", "", 2)}); err != nil {
		t.Fatalf("compensate failed: %v", err)
	}
	if got := available(t, store, "a", ""); got != 5 {
		t.Fatalf("double compensation changed stock: %d", got)
	}
}

func TestCommitter_CompensateAfterSuccess(t *testing.T) {
	t.Parallel()

	store := seed(t)
	c := stock.NewCommitter(store, nil, nil)
	lines := []domain.OrderLine{line("a", "", 4)}

	if err := c.Commit(context.Background(), "order-1", lines); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := c.Compensate(context.Background(), "order-1", lines); err != nil {
		t.Fatalf("compensate failed: %v", err)
	}
	if got := available(t, store, "a", ""); got != 5 {
		t.Fatalf("expected full restore, got %d", got)
	}
}

type flakyLedger struct {
	domain.StockLedger
	failCompensate bool
}

func (l *flakyLedger) Compensate(ctx context.Context, ref string, key domain.StockKey, qty int32) error {
	if l.failCompensate {
		return fmt.Errorf("ledger unavailable")
	}
	return l.StockLedger.Compensate(ctx, ref, key, qty)
}

func TestCommitter_CompensationFailureIsJoined(t *testing.T) {
	t.Parallel()

	store := seed(t)
	c := stock.NewCommitter(&flakyLedger{StockLedger: store, failCompensate: true}, nil, nil)

	err := c.Commit(context.Background(), "order-1", []domain.OrderLine{line("a", "", 1), line("b", "", 5)})
	if !errors.Is(err, domain.ErrStockRaceLost) {
		t.Fatalf("race lost must be preserved, got %v", err)
	}
	if err.Error() == domain.ErrStockRaceLost.Error() {
		t.Fatalf("compensation failure must be reported too: %v", err)
	}
}

func TestCommitter_ConcurrentOrdersNeverOversell(t *testing.T) {
	t.Parallel()

	store := seed(t)
	c := stock.NewCommitter(store, nil, nil)

	const orders = 10
	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < orders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Каждый заказ берёт 1 из "a" и 1 из "b": "b" кончается после первого успеха.
			err := c.Commit(context.Background(), fmt.Sprintf("order-%d", i), []domain.OrderLine{line("a", "", 1), line("b", "", 1)})
			if err == nil {
				success.Add(1)
				return
			}
			if !errors.Is(err, domain.ErrStockRaceLost) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if success.Load() != 1 {
		t.Fatalf("expected exactly one successful order, got %d", success.Load())
	}
	if got := available(t, store, "a", ""); got != 4 {
		t.Fatalf("failed orders must be compensated: a = %d, want 4", got)
	}
	if got := available(t, store, "b", ""); got != 0 {
		t.Fatalf("b = %d, want 0", got)
	}
}
