package stock

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
)

// Demand: суммарное количество, которое заказ списывает с одного слота.
type Demand struct {
	Key      domain.StockKey
	Quantity int32
}

// Aggregate сворачивает строки заказа в потребность по слотам, сохраняя
// порядок первого появления слота.
func Aggregate(lines []domain.OrderLine) []Demand {
	index := make(map[domain.StockKey]int, len(lines))
	out := make([]Demand, 0, len(lines))
	for _, line := range lines {
		key := line.StockKey()
		if i, ok := index[key]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, Demand{Key: key, Quantity: line.Quantity})
	}
	return out
}

// Committer списывает остатки по заказу условными декрементами.
// Если часть слотов списать не удалось, уже списанные компенсируются,
// и вызывающий видит ошибку так, будто не списано ничего.
type Committer struct {
	ledger  domain.StockLedger
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	tracer  trace.Tracer
}

// NewCommitter создаёт Committer поверх ledger. metrics может быть nil.
func NewCommitter(ledger domain.StockLedger, m *metrics.OrderMetrics, logger *log.Entry) *Committer {
	if logger == nil {
		logger = log.New().WithField("component", "stock-committer")
	}
	return &Committer{
		ledger:  ledger,
		logger:  logger,
		metrics: m,
		tracer:  tracing.Tracer(),
	}
}

// Commit списывает остаток по каждой строке. ref идентифицирует заказ и
// делает повторное списание и компенсацию идемпотентными.
func (c *Committer) Commit(ctx context.Context, ref string, lines []domain.OrderLine) error {
	ctx, span := c.tracer.Start(ctx, "stock.Commit", trace.WithAttributes(
		attribute.String("order.id", ref),
		attribute.Int("order.lines", len(lines)),
	))
	defer span.End()

	start := time.Now()
	defer func() { c.metrics.RecordStockCommitDuration(time.Since(start)) }()

	demands := Aggregate(lines)
	for i, d := range demands {
		err := c.ledger.Decrement(ctx, ref, d.Key, d.Quantity)
		if err == nil {
			continue
		}

		if domain.IsStockRaceLost(err) {
			c.metrics.RecordStockRaceLost()
		}
		c.logger.WithError(err).WithFields(log.Fields{
			"order_id":   ref,
			"product_id": d.Key.ProductID,
			"variant_id": d.Key.VariantID,
			"quantity":   d.Quantity,
		}).Warn("stock decrement failed, compensating")

		if compErr := c.compensate(ctx, ref, demands[:i]); compErr != nil {
			err = errors.Join(err, compErr)
		}
		tracing.RecordError(span, err)
		return err
	}
	return nil
}

// Compensate возвращает всё, что было списано по ref для этих строк.
// Повторный вызов и вызов без списания ничего не меняют.
func (c *Committer) Compensate(ctx context.Context, ref string, lines []domain.OrderLine) error {
	ctx, span := c.tracer.Start(ctx, "stock.Compensate", trace.WithAttributes(attribute.String("order.id", ref)))
	defer span.End()

	err := c.compensate(ctx, ref, Aggregate(lines))
	tracing.RecordError(span, err)
	return err
}

func (c *Committer) compensate(ctx context.Context, ref string, demands []Demand) error {
	// Компенсация доводится до конца даже после отмены запроса.
	ctx = context.WithoutCancel(ctx)

	var errs []error
	// Обратный порядок: слоты возвращаются в порядке, обратном списанию.
	for i := len(demands) - 1; i >= 0; i-- {
		d := demands[i]
		if err := c.ledger.Compensate(ctx, ref, d.Key, d.Quantity); err != nil {
			c.logger.WithError(err).WithFields(log.Fields{
				"order_id":   ref,
				"product_id": d.Key.ProductID,
				"variant_id": d.Key.VariantID,
			}).Error("stock compensation failed")
			errs = append(errs, err)
			continue
		}
		c.metrics.RecordStockCompensation()
	}
	return errors.Join(errs...)
}
