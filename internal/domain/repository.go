package domain

import "context"

// ProductRepository описывает хранилище карточек товаров.
// Счётчики остатка существующих слотов меняются только через StockLedger.
type ProductRepository interface {
	// Create сохраняет новый товар вместе с начальными остатками.
	Create(ctx context.Context, product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// List возвращает товары по фильтру, новые первыми.
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	// Update сохраняет карточку с учётом optimistic locking. Остатки уже
	// существующих вариантов и simple-товара не перезаписываются; новые варианты
	// заводятся со своим начальным остатком, удалённые: удаляются.
	Update(ctx context.Context, product Product) error
}

// ProductFilter задаёт выборку товаров.
type ProductFilter struct {
	CompanyID string
	Limit     int
	Offset    int
}

// StockLedger: единственный путь изменения остатков.
type StockLedger interface {
	// Available возвращает текущий остаток слота.
	Available(ctx context.Context, key StockKey) (int32, error)
	// Decrement атомарно уменьшает остаток на qty при условии остаток >= qty.
	// Повтор с тем же ref и key ничего не меняет. При провале условия
	// возвращает ErrStockRaceLost.
	Decrement(ctx context.Context, ref string, key StockKey, qty int32) error
	// Compensate возвращает списанное по ref и key. Повторный вызов и вызов
	// без предшествующего списания ничего не меняют.
	Compensate(ctx context.Context, ref string, key StockKey, qty int32) error
	// Restock увеличивает остаток слота (поставка).
	Restock(ctx context.Context, key StockKey, qty int32) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Если номер заказа уже занят, возвращает ErrSequenceConflict.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы по фильтру, новые первыми.
	List(ctx context.Context, filter OrderFilter) ([]Order, error)
	// Save применяет смену статуса с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
	// LastSequence возвращает наибольший порядковый номер среди заказов с префиксом дня (0, если их нет).
	LastSequence(ctx context.Context, prefix string) (int, error)
}

// OrderRecord: заказ вместе с outbox-сообщениями и событиями таймлайна,
// которые должны появиться только вместе с ним.
type OrderRecord struct {
	Order    Order
	Outbox   []OutboxMessage
	Timeline []TimelineEvent
}

// TransactionalOrderRepository сохраняет заказ и его записи одной транзакцией.
type TransactionalOrderRepository interface {
	OrderRepository
	// CreateRecord: Create плюс outbox и таймлайн. При ErrSequenceConflict не остаётся ничего.
	CreateRecord(ctx context.Context, rec OrderRecord) error
	// SaveRecord: Save плюс outbox и таймлайн.
	SaveRecord(ctx context.Context, rec OrderRecord) error
}

// AdminRepository хранит учётные записи администраторов.
type AdminRepository interface {
	Create(ctx context.Context, admin Admin) error
	Get(ctx context.Context, id string) (Admin, error)
	List(ctx context.Context) ([]Admin, error)
	// Save сохраняет изменения с учётом optimistic locking.
	Save(ctx context.Context, admin Admin) error
	// CountActive возвращает число активных администраторов с ролью role.
	CountActive(ctx context.Context, role Role) (int, error)
}
