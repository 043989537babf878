package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRepositoryInMemory: простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu      sync.RWMutex
	items   map[string]domain.Order
	numbers map[string]string
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:   make(map[string]domain.Order),
		numbers: make(map[string]string),
	}
}

// Create сохраняет новый заказ. Номер заказа уникален так же, как ID.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.numbers[order.Number]; taken {
		return domain.ErrSequenceConflict
	}
	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = order.Clone()
	r.numbers[order.Number] = order.ID
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.NotFoundError(domain.ErrOrderNotFound, "order", id)
	}
	return order.Clone(), nil
}

// List возвращает заказы по фильтру, новые первыми.
func (r *orderRepositoryInMemory) List(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if !filter.Match(order) {
			continue
		}
		result = append(result, order.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Number > result[j].Number
	})

	return paginate(result, filter.Offset, filter.Limit), nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.NotFoundError(domain.ErrOrderNotFound, "order", order.ID)
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	// Инкрементируем версию перед сохранением.
	order = order.Clone()
	order.Version++
	r.items[order.ID] = order
	return nil
}

// LastSequence возвращает наибольший порядковый номер за день с префиксом prefix.
func (r *orderRepositoryInMemory) LastSequence(_ context.Context, prefix string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	last := 0
	for number := range r.numbers {
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		if seq, ok := domain.ParseOrderSequence(number, prefix); ok && seq > last {
			last = seq
		}
	}
	return last, nil
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
