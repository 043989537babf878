package ordering

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
)

// LineResolver разрешает позицию корзины в оценённую строку.
type LineResolver interface {
	ResolveLine(ctx context.Context, productID string, qty int32, sel domain.VariantSelector) (catalog.LineResolution, error)
}

// StockCommitter списывает и компенсирует остатки по строкам заказа.
type StockCommitter interface {
	Commit(ctx context.Context, ref string, lines []domain.OrderLine) error
	Compensate(ctx context.Context, ref string, lines []domain.OrderLine) error
}

// CartItem: позиция корзины.
type CartItem struct {
	ProductID string
	Quantity  int32
	Selector  domain.VariantSelector
}

// AssembleRequest: входные данные нового заказа.
type AssembleRequest struct {
	Customer domain.Customer
	Shipping domain.ShippingAddress
	Items    []CartItem
	Notes    string
}

// AssemblerDeps: зависимости сборщика заказов. Outbox, Timeline и Metrics опциональны.
// Если Orders реализует domain.TransactionalOrderRepository, order.created и
// таймлайн сохраняются в одной транзакции с заказом.
type AssemblerDeps struct {
	Resolver  LineResolver
	Committer StockCommitter
	Orders    domain.OrderRepository
	Outbox    domain.OutboxRepository
	Timeline  domain.TimelineRepository
	Metrics   *metrics.OrderMetrics
	// NumberAttempts ограничивает попытки занять номер заказа; 0 означает DefaultNumberAttempts.
	NumberAttempts int
}

// Assembler превращает корзину в заказ: разрешает строки, списывает
// остатки и только затем сохраняет заказ в статусе pending.
type Assembler struct {
	resolver  LineResolver
	committer StockCommitter
	sequencer *sequencer
	events    *emitter
	metrics   *metrics.OrderMetrics
	logger    *log.Entry
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string
}

// NewAssembler создаёт сборщик заказов.
func NewAssembler(deps AssemblerDeps, logger *log.Entry) *Assembler {
	if logger == nil {
		logger = log.New().WithField("component", "order-assembler")
	}
	attempts := deps.NumberAttempts
	if attempts <= 0 {
		attempts = DefaultNumberAttempts
	}
	events := &emitter{outbox: deps.Outbox, timeline: deps.Timeline, metrics: deps.Metrics, logger: logger}
	return &Assembler{
		resolver:  deps.Resolver,
		committer: deps.Committer,
		sequencer: &sequencer{
			orders:   deps.Orders,
			writer:   newOrderWriter(deps.Orders, events),
			attempts: attempts,
			metrics:  deps.Metrics,
			logger:   logger,
		},
		events:  events,
		metrics: deps.Metrics,
		logger:  logger,
		tracer:  tracing.Tracer(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Assemble создаёт заказ целиком или не создаёт ничего. Ошибка любой
// строки отменяет весь заказ; после списания остатков сбой сохранения
// компенсирует списанное.
func (a *Assembler) Assemble(ctx context.Context, req AssembleRequest) (order domain.Order, err error) {
	ctx, span := a.tracer.Start(ctx, "ordering.Assemble", trace.WithAttributes(attribute.Int("order.items", len(req.Items))))
	start := time.Now()
	a.metrics.RecordAssembleStarted()
	defer func() {
		a.metrics.RecordAssembleFinished(time.Since(start))
		if err != nil {
			a.metrics.RecordOrderFailed(failureReason(err))
			tracing.RecordError(span, err)
		}
		span.End()
	}()

	if err := validateRequest(&req); err != nil {
		return domain.Order{}, err
	}

	lines, err := a.resolveLines(ctx, req.Items)
	if err != nil {
		return domain.Order{}, err
	}

	now := a.now()
	order = domain.Order{
		ID:            a.newID(),
		Customer:      req.Customer,
		Shipping:      req.Shipping,
		Lines:         lines,
		Status:        domain.OrderStatusPending,
		History:       []domain.StatusEntry{{Status: domain.OrderStatusPending, At: now}},
		PaymentMethod: domain.PaymentMethodCashOnDelivery,
		Notes:         req.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, line := range lines {
		order.TotalMinor += line.TotalMinor
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	if err := a.committer.Commit(ctx, order.ID, order.Lines); err != nil {
		a.logger.WithError(err).WithField("order_id", order.ID).Warn("stock commit failed")
		return domain.Order{}, err
	}

	if err := a.sequencer.persist(ctx, &order, a.events.createdRecord); err != nil {
		a.logger.WithError(err).WithField("order_id", order.ID).Error("persist order failed, compensating stock")
		if compErr := a.committer.Compensate(ctx, order.ID, order.Lines); compErr != nil {
			err = errors.Join(err, compErr)
		} else {
			a.events.stockCompensated(context.WithoutCancel(ctx), order.ID, "order persistence failed", order.Lines, a.now())
		}
		return domain.Order{}, err
	}

	a.metrics.RecordOrderCreated()
	a.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.Number,
		"total_minor":  order.TotalMinor,
		"lines":        len(order.Lines),
	}).Info("order created")

	return order, nil
}

// resolveLines разрешает все позиции и повторяет предварительную проверку
// остатка по сумме позиций, ссылающихся на один слот.
func (a *Assembler) resolveLines(ctx context.Context, items []CartItem) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0, len(items))
	demand := make(map[domain.StockKey]int32, len(items))
	for _, item := range items {
		res, err := a.resolver.ResolveLine(ctx, item.ProductID, item.Quantity, item.Selector)
		if err != nil {
			return nil, err
		}
		demand[res.Slot.Key] += res.Quantity
		if total := demand[res.Slot.Key]; total > res.Slot.Available {
			return nil, domain.StockError(domain.ErrInsufficientStock, res.Slot.Key, total, res.Slot.Available)
		}
		lines = append(lines, res.Line())
	}
	return lines, nil
}

func validateRequest(req *AssembleRequest) error {
	c := &req.Customer
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Phone = strings.TrimSpace(c.Phone)
	switch {
	case c.FirstName == "":
		return domain.InvalidField("customer.first_name", "is required")
	case c.LastName == "":
		return domain.InvalidField("customer.last_name", "is required")
	case c.Phone == "":
		return domain.InvalidField("customer.phone", "is required")
	}

	s := &req.Shipping
	s.Address = strings.TrimSpace(s.Address)
	s.City = strings.TrimSpace(s.City)
	s.PostalCode = strings.TrimSpace(s.PostalCode)
	s.Country = strings.TrimSpace(s.Country)
	switch {
	case s.Address == "":
		return domain.InvalidField("shipping_address.address", "is required")
	case s.City == "":
		return domain.InvalidField("shipping_address.city", "is required")
	case s.PostalCode == "":
		return domain.InvalidField("shipping_address.postal_code", "is required")
	}
	if s.Country == "" {
		s.Country = domain.DefaultShippingCountry
	}

	if len(req.Items) == 0 {
		return domain.InvalidField("items", "order must contain at least one item")
	}
	return nil
}

// failureReason: метка метрики отказа по виду ошибки.
func failureReason(err error) string {
	switch {
	case domain.IsInvalidInput(err):
		return "invalid_input"
	case errors.Is(err, domain.ErrVariantSelectorRequired):
		return "variant_selector_required"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsInsufficientStock(err):
		return "insufficient_stock"
	case domain.IsStockRaceLost(err):
		return "stock_race_lost"
	case errors.Is(err, domain.ErrSequenceConflict):
		return "sequence_conflict"
	default:
		return "internal"
	}
}
