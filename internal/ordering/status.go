package ordering

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
)

const (
	statusMaxRetries = 3
	statusBaseDelay  = 10 * time.Millisecond
)

// StatusService применяет переходы статусов заказа и ведёт историю.
type StatusService struct {
	orders  domain.OrderRepository
	writer  *orderWriter
	events  *emitter
	metrics *metrics.OrderMetrics
	logger  *log.Entry
	tracer  trace.Tracer
	now     func() time.Time
}

// NewStatusService создаёт сервис статусов. outbox, timeline и m могут быть nil.
// Транзакционный orders сохраняет order.status_changed вместе со сменой статуса.
func NewStatusService(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	timeline domain.TimelineRepository,
	m *metrics.OrderMetrics,
	logger *log.Entry,
) *StatusService {
	if logger == nil {
		logger = log.New().WithField("component", "order-status")
	}
	events := &emitter{outbox: outbox, timeline: timeline, metrics: m, logger: logger}
	return &StatusService{
		orders:  orders,
		writer:  newOrderWriter(orders, events),
		events:  events,
		metrics: m,
		logger:  logger,
		tracer:  tracing.Tracer(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get возвращает заказ.
func (s *StatusService) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.orders.Get(ctx, id)
}

// List возвращает заказы по фильтру.
func (s *StatusService) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return s.orders.List(ctx, filter)
}

// Transition переводит заказ в next. Повтор текущего статуса ничего не
// меняет и возвращает changed=false. Конфликт версий повторяется на свежей
// копии заказа с экспоненциальной паузой.
func (s *StatusService) Transition(ctx context.Context, orderID string, next domain.OrderStatus, comment string) (order domain.Order, changed bool, err error) {
	ctx, span := s.tracer.Start(ctx, "ordering.Transition", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(next)),
	))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if !next.Valid() {
		return domain.Order{}, false, domain.InvalidField("status", "is not supported")
	}

	for attempt := 0; attempt < statusMaxRetries; attempt++ {
		order, err = s.orders.Get(ctx, orderID)
		if err != nil {
			return domain.Order{}, false, err
		}

		previous := order.Status
		if !order.Transition(next, comment, s.now()) {
			return order, false, nil
		}
		prevVersion := order.Version

		err = s.writer.save(ctx, s.events.statusRecord(order, previous, comment))
		if err == nil {
			order.Version = prevVersion + 1
			s.metrics.RecordStatusTransition(string(next))
			s.logger.WithFields(log.Fields{
				"order_id":     order.ID,
				"order_number": order.Number,
				"from":         previous,
				"to":           next,
			}).Info("order status changed")
			return order, true, nil
		}

		if !domain.IsVersionConflict(err) || attempt == statusMaxRetries-1 {
			s.logger.WithError(err).WithFields(log.Fields{
				"order_id": orderID,
				"attempt":  attempt + 1,
			}).Error("failed to persist status")
			return domain.Order{}, false, err
		}

		s.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt + 1,
			"version":  prevVersion,
		}).Warn("version conflict detected, retrying")
		if err = sleepContext(ctx, statusBaseDelay*time.Duration(1<<uint(attempt))); err != nil {
			return domain.Order{}, false, err
		}
	}

	return domain.Order{}, false, domain.ErrOrderVersionConflict
}
