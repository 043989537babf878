package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultSweepInterval   = time.Minute
	defaultSweepBatchSize  = 500
	defaultSweepMaxBatches = 20
)

// SweepResult: итог одного прохода очистки.
type SweepResult struct {
	Deleted int
	Batches int
	// Partial: проход упёрся в лимит батчей, просроченные ключи могли остаться.
	Partial bool
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) { w.logger = logger }
}

// WithInterval задаёт паузу между проходами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) { w.interval = interval }
}

// WithBatchSize задаёт число ключей, удаляемых одним запросом.
func WithBatchSize(size int) CleanupOption {
	return func(w *CleanupWorker) { w.batchSize = size }
}

// WithMaxBatches ограничивает число запросов удаления за один проход,
// остаток дочищается на следующем тике.
func WithMaxBatches(n int) CleanupOption {
	return func(w *CleanupWorker) { w.maxBatches = n }
}

func WithMetrics(m *metrics.OrderMetrics) CleanupOption {
	return func(w *CleanupWorker) { w.metrics = m }
}

// CleanupWorker удаляет ключи CreateOrder с истёкшим ttl. Ключ, застрявший
// в processing (сервис упал посреди сборки заказа), удаляется так же:
// после этого клиент может повторить заказ с тем же ключом.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	logger     *log.Entry
	metrics    *metrics.OrderMetrics
	interval   time.Duration
	batchSize  int
	maxBatches int
	now        func() time.Time
}

func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:       repo,
		interval:   defaultSweepInterval,
		batchSize:  defaultSweepBatchSize,
		maxBatches: defaultSweepMaxBatches,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(w)
	}

	if w.logger == nil {
		w.logger = log.WithField("component", "idempotency-cleanup")
	}
	if w.interval <= 0 {
		w.interval = defaultSweepInterval
	}
	if w.batchSize <= 0 {
		w.batchSize = defaultSweepBatchSize
	}
	if w.maxBatches <= 0 {
		w.maxBatches = defaultSweepMaxBatches
	}
	return w
}

// Run выполняет проход сразу и затем раз в interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup disabled: no repository")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) tick(ctx context.Context) {
	res, err := w.Sweep(ctx, w.now())
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		w.metrics.RecordIdempotencySweep("error", res.Deleted)
		w.logger.WithError(err).WithField("deleted", res.Deleted).Warn("idempotency sweep failed")
		return
	case res.Partial:
		w.metrics.RecordIdempotencySweep("partial", res.Deleted)
		w.logger.WithFields(log.Fields{
			"deleted": res.Deleted,
			"batches": res.Batches,
		}).Warn("idempotency sweep hit batch limit, expired keys remain")
		return
	}

	w.metrics.RecordIdempotencySweep("ok", res.Deleted)
	if res.Deleted > 0 {
		w.logger.WithField("deleted", res.Deleted).Info("expired idempotency keys removed")
	}
}

// Sweep удаляет ключи с ttl <= before порциями batchSize, не больше maxBatches порций.
func (w *CleanupWorker) Sweep(ctx context.Context, before time.Time) (SweepResult, error) {
	if before.IsZero() {
		before = w.now()
	}

	var res SweepResult
	for res.Batches < w.maxBatches {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		deleted, err := w.repo.DeleteExpired(ctx, before, w.batchSize)
		if err != nil {
			return res, err
		}
		res.Batches++
		res.Deleted += deleted
		if deleted < w.batchSize {
			return res, nil
		}
	}
	res.Partial = true
	return res, nil
}
