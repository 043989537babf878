package ordering_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ordering"
	"github.com/vladislavdragonenkov/storefront/internal/stock"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	store     *memory.CatalogStore
	orders    domain.OrderRepository
	outbox    *memory.OutboxRepository
	timeline  domain.TimelineRepository
	assembler *ordering.Assembler
}

func newFixture(t *testing.T, products ...domain.Product) *fixture {
	t.Helper()

	store := memory.NewCatalogStore()
	for _, p := range products {
		require.NoError(t, store.Create(context.Background(), p))
	}
	f := &fixture{
		store:    store,
		orders:   memory.NewOrderRepository(),
		outbox:   memory.NewOutboxRepository(),
		timeline: memory.NewTimelineRepository(),
	}
	f.assembler = ordering.NewAssembler(ordering.AssemblerDeps{
		Resolver:  catalog.NewView(store, nil),
		Committer: stock.NewCommitter(store, nil, nil),
		Orders:    f.orders,
		Outbox:    f.outbox,
		Timeline:  f.timeline,
	}, nil)
	return f
}

func simpleProduct(id string, qty int32, price int64) domain.Product {
	return domain.Product{ID: id, Shape: domain.ProductShapeSimple, Name: "Product " + id, BasePriceMinor: price, Quantity: qty, CreatedAt: time.Now().UTC()}
}

func variableProduct() domain.Product {
	return domain.Product{
		ID: "melhfa", Shape: domain.ProductShapeVariable, Name: "Melhfa", BasePriceMinor: 1000, CreatedAt: time.Now().UTC(),
		Variants: []domain.Variant{
			{ID: "red-s", SKU: "REDS0001", Attributes: domain.VariantAttributes{Color: "red", Size: "S"}, Quantity: 2},
			{ID: "red-m", SKU: "REDM0001", Attributes: domain.VariantAttributes{Color: "red", Size: "M"}, Quantity: 0},
		},
	}
}

func request(items ...ordering.CartItem) ordering.AssembleRequest {
	return ordering.AssembleRequest{
		Customer: domain.Customer{FirstName: "Aminetou", LastName: "Sidi", Phone: "+22236000000"},
		Shipping: domain.ShippingAddress{Address: "Ilot K 12", City: "Nouakchott", PostalCode: "1000"},
		Items:    items,
	}
}

func (f *fixture) available(t *testing.T, productID, variantID string) int32 {
	t.Helper()
	qty, err := f.store.Available(context.Background(), domain.StockKey{ProductID: productID, VariantID: variantID})
	require.NoError(t, err)
	return qty
}

func TestAssembler_SimpleOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, simpleProduct("p", 5, 100))
	order, err := f.assembler.Assemble(context.Background(), request(ordering.CartItem{ProductID: "p", Quantity: 3}))
	require.NoError(t, err)

	require.Equal(t, int64(300), order.TotalMinor)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Len(t, order.History, 1)
	require.Equal(t, domain.PaymentMethodCashOnDelivery, order.PaymentMethod)
	require.Equal(t, domain.DefaultShippingCountry, order.Shipping.Country)
	require.Equal(t, domain.OrderNumberPrefix(order.CreatedAt)+"0001", order.Number)
	require.Empty(t, order.ValidateInvariants())
	require.Equal(t, int32(2), f.available(t, "p", ""))

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Number, stored.Number)

	pending, err := f.outbox.PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventOrderCreated, pending[0].EventType)

	events, err := f.timeline.List(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestAssembler_VariableOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, variableProduct())

	_, err := f.assembler.Assemble(context.Background(), request(ordering.CartItem{
		ProductID: "melhfa", Quantity: 1,
		Selector: domain.VariantSelector{Attributes: &domain.VariantAttributes{Color: "red", Size: "M"}},
	}))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	order, err := f.assembler.Assemble(context.Background(), request(ordering.CartItem{
		ProductID: "melhfa", Quantity: 2,
		Selector: domain.VariantSelector{VariantID: "red-s"},
	}))
	require.NoError(t, err)
	require.Equal(t, "REDS0001", order.Lines[0].SKU)
	require.Equal(t, &domain.VariantAttributes{Color: "red", Size: "S"}, order.Lines[0].Variant)
	require.Equal(t, int32(0), f.available(t, "melhfa", "red-s"))
	require.Equal(t, int32(0), f.available(t, "melhfa", "red-m"))
}

func TestAssembler_ValidationErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, simpleProduct("p", 5, 100), variableProduct())

	tests := []struct {
		name    string
		mutate  func(*ordering.AssembleRequest)
		wantErr error
		field   string
	}{
		{name: "missing first name", mutate: func(r *ordering.AssembleRequest) { r.Customer.FirstName = " " }, wantErr: domain.ErrInvalidInput, field: "customer.first_name"},
		{name: "missing phone", mutate: func(r *ordering.AssembleRequest) { r.Customer.Phone = "" }, wantErr: domain.ErrInvalidInput, field: "customer.phone"},
		{name: "missing city", mutate: func(r *ordering.AssembleRequest) { r.Shipping.City = "" }, wantErr: domain.ErrInvalidInput, field: "shipping_address.city"},
		{name: "missing postal code", mutate: func(r *ordering.AssembleRequest) { r.Shipping.PostalCode = "" }, wantErr: domain.ErrInvalidInput, field: "shipping_address.postal_code"},
		{name: "no items", mutate: func(r *ordering.AssembleRequest) { r.Items = nil }, wantErr: domain.ErrInvalidInput, field: "items"},
		{name: "zero quantity", mutate: func(r *ordering.AssembleRequest) { r.Items[0].Quantity = 0 }, wantErr: domain.ErrInvalidInput, field: "items.quantity"},
		{name: "unknown product", mutate: func(r *ordering.AssembleRequest) { r.Items[0].ProductID = "nope" }, wantErr: domain.ErrProductNotFound},
		{
			name: "variable without selector",
			mutate: func(r *ordering.AssembleRequest) {
				r.Items = append(r.Items, ordering.CartItem{ProductID: "melhfa", Quantity: 1})
			},
			wantErr: domain.ErrVariantSelectorRequired,
		},
		{
			name: "same slot over demanded across lines",
			mutate: func(r *ordering.AssembleRequest) {
				r.Items = append(r.Items, ordering.CartItem{ProductID: "p", Quantity: 4})
			},
			wantErr: domain.ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := request(ordering.CartItem{ProductID: "p", Quantity: 2})
			tt.mutate(&req)

			_, err := f.assembler.Assemble(context.Background(), req)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.field != "" {
				details, ok := domain.AsError(err)
				require.True(t, ok)
				require.Equal(t, tt.field, details.Field)
			}
		})
	}

	require.Equal(t, int32(5), f.available(t, "p", ""), "rejected orders must not touch stock")
	orders, err := f.orders.List(context.Background(), domain.OrderFilter{})
	require.NoError(t, err)
	require.Empty(t, orders)
}

type failingOrders struct {
	domain.OrderRepository
	err error
}

func (r *failingOrders) Create(context.Context, domain.Order) error { return r.err }

func TestAssembler_PersistFailureCompensatesStock(t *testing.T) {
	t.Parallel()

	store := memory.NewCatalogStore()
	require.NoError(t, store.Create(context.Background(), simpleProduct("p", 5, 100)))
	outbox := memory.NewOutboxRepository()
	persistErr := errors.New("database is down")

	assembler := ordering.NewAssembler(ordering.AssemblerDeps{
		Resolver:  catalog.NewView(store, nil),
		Committer: stock.NewCommitter(store, nil, nil),
		Orders:    &failingOrders{OrderRepository: memory.NewOrderRepository(), err: persistErr},
		Outbox:    outbox,
	}, nil)

	_, err := assembler.Assemble(context.Background(), request(ordering.CartItem{ProductID: "p", Quantity: 3}))
	require.ErrorIs(t, err, persistErr)

	qty, err := store.Available(context.Background(), domain.StockKey{ProductID: "p"})
	require.NoError(t, err)
	require.Equal(t, int32(5), qty)

	pending, err := outbox.PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, domain.EventStockCompensated, pending[0].EventType)
}

func TestAssembler_SequenceConflictsExhausted(t *testing.T) {
	t.Parallel()

	store := memory.NewCatalogStore()
	require.NoError(t, store.Create(context.Background(), simpleProduct("p", 5, 100)))

	assembler := ordering.NewAssembler(ordering.AssemblerDeps{
		Resolver:       catalog.NewView(store, nil),
		Committer:      stock.NewCommitter(store, nil, nil),
		Orders:         &failingOrders{OrderRepository: memory.NewOrderRepository(), err: domain.ErrSequenceConflict},
		NumberAttempts: 2,
	}, nil)

	_, err := assembler.Assemble(context.Background(), request(ordering.CartItem{ProductID: "p", Quantity: 1}))
	require.ErrorIs(t, err, domain.ErrSequenceConflict)

	qty, err := store.Available(context.Background(), domain.StockKey{ProductID: "p"})
	require.NoError(t, err)
	require.Equal(t, int32(5), qty)
}

func TestAssembler_ConcurrentOrdersGetDenseNumbers(t *testing.T) {
	t.Parallel()

	const n = 20
	f := newFixture(t, simpleProduct("p", n, 10))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.assembler.Assemble(context.Background(), request(ordering.CartItem{ProductID: "p", Quantity: 1}))
			if err != nil {
				t.Errorf("assemble failed: %v", err)
				return
			}
			mu.Lock()
			numbers = append(numbers, order.Number)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numbers, n)
	sort.Strings(numbers)
	prefix := numbers[0][:len(numbers[0])-4]
	for i, number := range numbers {
		require.Equal(t, fmt.Sprintf("%s%04d", prefix, i+1), number)
	}
	require.Equal(t, int32(0), f.available(t, "p", ""))
}

func TestAssembler_ConcurrentOrdersNeverOversell(t *testing.T) {
	t.Parallel()

	f := newFixture(t, simpleProduct("p", 5, 100))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.assembler.Assemble(context.Background(), request(ordering.CartItem{ProductID: "p", Quantity: 3}))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Len(t, failures, 1)
	require.True(t, domain.IsInsufficientStock(failures[0]) || domain.IsStockRaceLost(failures[0]), "unexpected error: %v", failures[0])
	require.Equal(t, int32(2), f.available(t, "p", ""))
}
