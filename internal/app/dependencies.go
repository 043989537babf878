package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const storageCheckTimeout = 2 * time.Second

// catalogStore объединяет карточки товаров и журнал остатков: обе роли
// обслуживает одно хранилище, чтобы остатки жили рядом с товарами.
type catalogStore interface {
	domain.ProductRepository
	domain.StockLedger
}

// runtimeDependencies: хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	repo            domain.OrderRepository
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	catalog         catalogStore
	admins          domain.AdminRepository
	notifications   domain.NotificationRepository

	storageChecker healthcheck.Checker
	closeFn        func() error
}

// Close освобождает ресурсы хранилища.
func (d *runtimeDependencies) Close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			repo:            memory.NewOrderRepository(),
			outboxRepo:      memory.NewOutboxRepository(),
			timelineRepo:    memory.NewTimelineRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(),
			catalog:         memory.NewCatalogStore(),
			admins:          memory.NewAdminRepository(),
			notifications:   memory.NewNotificationRepository(),
			storageChecker: healthcheck.NewSimpleChecker("storage", storageCheckTimeout, func(context.Context) error {
				return nil
			}),
			closeFn: func() error { return nil },
		}, nil
	case StorageDriverPostgres:
		return initPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initPostgres(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres storage requires STOREFRONT_POSTGRES_DSN")
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres migrations applied")
	}
	if err := store.CheckSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	logger.Info("using postgres storage")

	repos := store.Repositories()
	return &runtimeDependencies{
		repo:            repos.Orders,
		outboxRepo:      repos.Outbox,
		timelineRepo:    repos.Timeline,
		idempotencyRepo: repos.Idempotency,
		catalog:         repos.Catalog,
		admins:          repos.Admins,
		notifications:   repos.Notifications,
		storageChecker:  healthcheck.NewSimpleChecker("storage", storageCheckTimeout, store.Healthy),
		closeFn:         store.Close,
	}, nil
}
