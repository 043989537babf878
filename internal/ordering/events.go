package ordering

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const aggregateOrder = "order"

// emitter собирает события заказа. order.created, order.status_changed и
// таймлайн входят в OrderRecord и пишутся вместе с заказом; stock.compensated
// относится к несохранённому заказу и ставится в outbox отдельно.
type emitter struct {
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
}

// message кодирует payload; ok=false означает, что событие пропущено.
func (e *emitter) message(aggregateID, eventType string, payload any) (domain.OutboxMessage, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_id": aggregateID,
			"event":    eventType,
		}).Error("marshal event failed")
		return domain.OutboxMessage{}, false
	}
	return domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: aggregateOrder,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}, true
}

func (e *emitter) record(order domain.Order, timeline []domain.TimelineEvent, eventType string, payload domain.OrderEventPayload) domain.OrderRecord {
	rec := domain.OrderRecord{Order: order}
	if e.timeline != nil {
		rec.Timeline = timeline
	}
	if e.outbox != nil {
		if msg, ok := e.message(order.ID, eventType, payload); ok {
			rec.Outbox = []domain.OutboxMessage{msg}
		}
	}
	return rec
}

// createdRecord: новый заказ, списание остатков и order.created.
func (e *emitter) createdRecord(order domain.Order) domain.OrderRecord {
	return e.record(order, []domain.TimelineEvent{
		{OrderID: order.ID, Type: domain.TimelineStockCommitted, Occurred: order.CreatedAt},
		{OrderID: order.ID, Type: domain.TimelineOrderCreated, Reason: order.Number, Occurred: order.CreatedAt},
	}, domain.EventOrderCreated, domain.OrderEventPayload{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Status:      order.Status,
		TotalMinor:  order.TotalMinor,
		Lines:       len(order.Lines),
		OccurredAt:  order.CreatedAt,
	})
}

func (e *emitter) statusRecord(order domain.Order, previous domain.OrderStatus, comment string) domain.OrderRecord {
	return e.record(order, []domain.TimelineEvent{
		{OrderID: order.ID, Type: domain.TimelineOrderStatusChanged, Reason: string(order.Status), Occurred: order.UpdatedAt},
	}, domain.EventOrderStatusChanged, domain.OrderEventPayload{
		OrderID:        order.ID,
		OrderNumber:    order.Number,
		Status:         order.Status,
		PreviousStatus: previous,
		TotalMinor:     order.TotalMinor,
		Lines:          len(order.Lines),
		Comment:        comment,
		OccurredAt:     order.UpdatedAt,
	})
}

// recorded учитывает записи, сохранённые в транзакции заказа.
func (e *emitter) recorded(rec domain.OrderRecord) {
	for range rec.Outbox {
		e.metrics.RecordOutboxEvent()
	}
	for range rec.Timeline {
		e.metrics.RecordTimelineEvent()
	}
}

// flush досылает записи после заказа, когда хранилище не умеет писать их
// одной транзакцией. Сбой логируется, заказ остаётся сохранённым.
func (e *emitter) flush(ctx context.Context, rec domain.OrderRecord) {
	for _, event := range rec.Timeline {
		if err := e.timeline.Append(ctx, event); err != nil {
			e.logger.WithError(err).WithFields(log.Fields{
				"order_id": event.OrderID,
				"event":    event.Type,
			}).Warn("append timeline event failed")
			continue
		}
		e.metrics.RecordTimelineEvent()
	}
	for _, msg := range rec.Outbox {
		e.enqueue(ctx, msg)
	}
}

func (e *emitter) enqueue(ctx context.Context, msg domain.OutboxMessage) {
	if _, err := e.outbox.Enqueue(ctx, msg); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"order_id": msg.AggregateID,
			"event":    msg.EventType,
		}).Error("enqueue event failed")
		return
	}
	e.metrics.RecordOutboxEvent()
}

func (e *emitter) stockCompensated(ctx context.Context, orderID, reason string, lines []domain.OrderLine, at time.Time) {
	if e.outbox == nil {
		return
	}
	slots := make([]string, 0, len(lines))
	for _, line := range lines {
		slots = append(slots, line.StockKey().String())
	}
	msg, ok := e.message(orderID, domain.EventStockCompensated, domain.StockCompensatedPayload{
		OrderID:    orderID,
		Reason:     reason,
		Slots:      slots,
		OccurredAt: at,
	})
	if ok {
		e.enqueue(ctx, msg)
	}
}

// orderWriter сохраняет заказ вместе с его записями. Транзакционное
// хранилище пишет всё атомарно, остальные получают записи через flush.
type orderWriter struct {
	orders domain.OrderRepository
	tx     domain.TransactionalOrderRepository
	events *emitter
}

func newOrderWriter(orders domain.OrderRepository, events *emitter) *orderWriter {
	w := &orderWriter{orders: orders, events: events}
	w.tx, _ = orders.(domain.TransactionalOrderRepository)
	return w
}

func (w *orderWriter) create(ctx context.Context, rec domain.OrderRecord) error {
	if w.tx != nil {
		if err := w.tx.CreateRecord(ctx, rec); err != nil {
			return err
		}
		w.events.recorded(rec)
		return nil
	}
	if err := w.orders.Create(ctx, rec.Order); err != nil {
		return err
	}
	w.events.flush(ctx, rec)
	return nil
}

func (w *orderWriter) save(ctx context.Context, rec domain.OrderRecord) error {
	if w.tx != nil {
		if err := w.tx.SaveRecord(ctx, rec); err != nil {
			return err
		}
		w.events.recorded(rec)
		return nil
	}
	if err := w.orders.Save(ctx, rec.Order); err != nil {
		return err
	}
	w.events.flush(ctx, rec)
	return nil
}
