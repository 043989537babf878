package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	connectTimeout = 5 * time.Second

	maxOpenConns    = 25
	maxIdleConns    = 25
	connMaxLifetime = 30 * time.Minute
	connMaxIdleTime = 5 * time.Minute
)

var (
	errStoreNotInitialized = errors.New("postgres store is not initialized")

	// ErrSchemaBehind: в базе применены не все миграции, встроенные в бинарник.
	ErrSchemaBehind = errors.New("postgres schema is behind the storefront migrations")
)

// queryer и execer объединяют *sql.DB и *sql.Tx: одни и те же запросы
// выполняются и отдельно, и внутри транзакции заказа.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store владеет пулом подключений витрины. Все репозитории работают через
// один пул, многошаговые изменения (заказ с outbox, списание остатка) идут
// через inTx.
type Store struct {
	db *sql.DB
}

// Repositories: хранилища витрины поверх одного Store.
type Repositories struct {
	Catalog       *CatalogStore
	Orders        domain.TransactionalOrderRepository
	Outbox        domain.OutboxRepository
	Timeline      domain.TimelineRepository
	Idempotency   domain.IdempotencyRepository
	Admins        domain.AdminRepository
	Notifications domain.NotificationRepository
}

// Open подключается к PostgreSQL через pgx и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// Repositories собирает все хранилища витрины.
func (s *Store) Repositories() Repositories {
	return Repositories{
		Catalog:       NewCatalogStore(s),
		Orders:        NewOrderRepository(s),
		Outbox:        NewOutboxRepository(s),
		Timeline:      NewTimelineRepository(s),
		Idempotency:   NewIdempotencyRepository(s),
		Admins:        NewAdminRepository(s),
		Notifications: NewNotificationRepository(s),
	}
}

// DB возвращает пул для тестов и утилит обслуживания.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// CheckSchema сверяет версию схемы с последней встроенной миграцией.
// Схема новее бинарника допустима: миграции только добавляют.
func (s *Store) CheckSchema(ctx context.Context) error {
	latest, err := latestMigrationVersion(migrationsFS)
	if err != nil {
		return err
	}
	applied, _, err := s.MigrationStatus(ctx)
	if err != nil {
		return err
	}
	if applied < latest {
		return fmt.Errorf("%w: applied %d, required %d", ErrSchemaBehind, applied, latest)
	}
	return nil
}

// Healthy: пинг плюс проверка версии схемы, для health-чекера хранилища.
func (s *Store) Healthy(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return err
	}
	return s.CheckSchema(ctx)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// inTx выполняет fn в транзакции с таймаутом opTimeout. Ошибка fn откатывает
// транзакцию и возвращается без обёртки.
func (s *Store) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}
