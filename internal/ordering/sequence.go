package ordering

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	// DefaultNumberAttempts: сколько раз сборщик пробует занять номер заказа.
	DefaultNumberAttempts = 32
	numberRetryBaseDelay  = time.Millisecond
	numberRetryMaxDelay   = 25 * time.Millisecond
)

// sequencer присваивает заказу номер ORD-YYYYMMDD-NNNN и сохраняет его.
// Номер вычисляется как последний за день плюс один; коллизия на
// уникальном номере повторяется, поэтому последовательность остаётся плотной.
type sequencer struct {
	orders   domain.OrderRepository
	writer   *orderWriter
	attempts int
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
}

// persist назначает номер и создаёт заказ. Номер берётся из дня CreatedAt.
// build собирает запись заново на каждой попытке: номер входит в события.
func (s *sequencer) persist(ctx context.Context, order *domain.Order, build func(domain.Order) domain.OrderRecord) error {
	prefix := domain.OrderNumberPrefix(order.CreatedAt)

	for attempt := 0; attempt < s.attempts; attempt++ {
		last, err := s.orders.LastSequence(ctx, prefix)
		if err != nil {
			return fmt.Errorf("read last order sequence: %w", err)
		}
		next := last + 1
		if next > domain.MaxDailyOrderSequence {
			return fmt.Errorf("daily order sequence exhausted for %s", prefix)
		}

		order.Number = domain.FormatOrderNumber(prefix, next)
		err = s.writer.create(ctx, build(*order))
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSequenceConflict) {
			order.Number = ""
			return err
		}

		s.metrics.RecordOrderNumberRetry()
		s.logger.WithFields(log.Fields{
			"order_id":     order.ID,
			"order_number": order.Number,
			"attempt":      attempt + 1,
		}).Debug("order number taken, retrying")

		if err := sleepContext(ctx, retryDelay(attempt)); err != nil {
			order.Number = ""
			return err
		}
	}

	order.Number = ""
	return fmt.Errorf("assign order number after %d attempts: %w", s.attempts, domain.ErrSequenceConflict)
}

func retryDelay(attempt int) time.Duration {
	delay := numberRetryBaseDelay << uint(attempt)
	if delay <= 0 || delay > numberRetryMaxDelay {
		return numberRetryMaxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
