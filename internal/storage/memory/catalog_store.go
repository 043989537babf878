package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type movementKey struct {
	ref string
	key domain.StockKey
}

type movement struct {
	qty         int32
	compensated bool
}

// CatalogStore хранит карточки товаров и их остатки под одним мьютексом,
// поэтому реализует и ProductRepository, и StockLedger.
type CatalogStore struct {
	mu        sync.RWMutex
	products  map[string]*domain.Product
	movements map[movementKey]*movement
}

// NewCatalogStore создаёт in-memory каталог для локальной разработки и тестов.
func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		products:  make(map[string]*domain.Product),
		movements: make(map[movementKey]*movement),
	}
}

// Create сохраняет новый товар, если ID ещё не занят.
func (s *CatalogStore) Create(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; exists {
		return domain.ErrProductVersionConflict
	}
	stored := product.Clone()
	s.products[product.ID] = &stored
	return nil
}

// Get возвращает копию товара или ErrProductNotFound.
func (s *CatalogStore) Get(_ context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.NotFoundError(domain.ErrProductNotFound, "product", id)
	}
	return p.Clone(), nil
}

// List возвращает товары, новые первыми.
func (s *CatalogStore) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.CompanyID != "" && p.CompanyID != filter.CompanyID {
			continue
		}
		result = append(result, p.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return paginate(result, filter.Offset, filter.Limit), nil
}

// Update перезаписывает карточку, сохраняя текущие остатки существующих слотов.
func (s *CatalogStore) Update(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[product.ID]
	if !ok {
		return domain.NotFoundError(domain.ErrProductNotFound, "product", product.ID)
	}
	if current.Version != product.Version {
		return domain.ErrProductVersionConflict
	}

	next := product.Clone()
	next.Quantity = current.Quantity
	for i := range next.Variants {
		if existing, found := current.VariantByID(next.Variants[i].ID); found {
			next.Variants[i].Quantity = existing.Quantity
		}
	}
	next.Version++
	s.products[product.ID] = &next
	return nil
}

// Available возвращает текущий остаток слота.
func (s *CatalogStore) Available(_ context.Context, key domain.StockKey) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counter, err := s.counter(key)
	if err != nil {
		return 0, err
	}
	return *counter, nil
}

// Decrement списывает qty при условии, что остаток не меньше qty.
func (s *CatalogStore) Decrement(_ context.Context, ref string, key domain.StockKey, qty int32) error {
	if qty <= 0 {
		return domain.InvalidField("quantity", "must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mk := movementKey{ref: ref, key: key}
	if _, done := s.movements[mk]; done {
		return nil
	}

	counter, err := s.counter(key)
	if err != nil {
		return err
	}
	if *counter < qty {
		return domain.StockError(domain.ErrStockRaceLost, key, qty, *counter)
	}
	*counter -= qty
	s.touch(key.ProductID)
	s.movements[mk] = &movement{qty: qty}
	return nil
}

// Compensate возвращает ранее списанное по ref; повтор ничего не меняет.
func (s *CatalogStore) Compensate(_ context.Context, ref string, key domain.StockKey, _ int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movements[movementKey{ref: ref, key: key}]
	if !ok || m.compensated {
		return nil
	}

	counter, err := s.counter(key)
	if err != nil {
		return err
	}
	*counter += m.qty
	m.compensated = true
	s.touch(key.ProductID)
	return nil
}

// Restock увеличивает остаток слота.
func (s *CatalogStore) Restock(_ context.Context, key domain.StockKey, qty int32) error {
	if qty <= 0 {
		return domain.InvalidField("quantity", "must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, err := s.counter(key)
	if err != nil {
		return err
	}
	*counter += qty
	s.touch(key.ProductID)
	return nil
}

// counter возвращает указатель на счётчик слота; вызывается под мьютексом.
func (s *CatalogStore) counter(key domain.StockKey) (*int32, error) {
	p, ok := s.products[key.ProductID]
	if !ok {
		return nil, domain.NotFoundError(domain.ErrProductNotFound, "product", key.ProductID)
	}
	if key.VariantID == "" {
		if p.Shape != domain.ProductShapeSimple {
			return nil, &domain.Error{Kind: domain.ErrVariantSelectorRequired, Resource: "product", ResourceID: p.ID}
		}
		return &p.Quantity, nil
	}
	v, ok := p.VariantByID(key.VariantID)
	if !ok {
		return nil, domain.NotFoundError(domain.ErrVariantNotFound, "variant", key.String())
	}
	return &v.Quantity, nil
}

func (s *CatalogStore) touch(productID string) {
	if p, ok := s.products[productID]; ok {
		p.UpdatedAt = time.Now().UTC()
	}
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

var (
	_ domain.ProductRepository = (*CatalogStore)(nil)
	_ domain.StockLedger       = (*CatalogStore)(nil)
)
