package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/access"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/ordering"
	"github.com/vladislavdragonenkov/storefront/internal/service/attachment"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/stock"
	"github.com/vladislavdragonenkov/storefront/internal/tracing"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	serviceName     = "storefront"
	shutdownTimeout = 5 * time.Second
)

// services: доменные сервисы поверх выбранного хранилища.
type services struct {
	metrics       *metrics.OrderMetrics
	view          *catalog.View
	catalog       *catalog.Manager
	committer     *stock.Committer
	assembler     *ordering.Assembler
	orders        *ordering.StatusService
	directory     *access.Directory
	filter        *access.Filter
	notifications *notification.Service
	idempotency   *idempotency.Guard
}

func newServices(cfg Config, deps *runtimeDependencies, logger *log.Entry) *services {
	m := metrics.NewOrderMetrics()

	var attachments domain.AttachmentService
	if cfg.AttachmentBaseURL != "" {
		attachments = attachment.NewClient(cfg.AttachmentBaseURL, cfg.AttachmentTimeout, logger.WithField("component", "attachment-client"))
	}

	view := catalog.NewView(deps.catalog, logger.WithField("component", "catalog-view"))
	committer := stock.NewCommitter(deps.catalog, m, logger.WithField("component", "stock-committer"))
	return &services{
		metrics:   m,
		view:      view,
		catalog:   catalog.NewManager(deps.catalog, deps.catalog, attachments, logger.WithField("component", "catalog")),
		committer: committer,
		assembler: ordering.NewAssembler(ordering.AssemblerDeps{
			Resolver:       view,
			Committer:      committer,
			Orders:         deps.repo,
			Outbox:         deps.outboxRepo,
			Timeline:       deps.timelineRepo,
			Metrics:        m,
			NumberAttempts: cfg.OrderNumberAttempts,
		}, logger.WithField("component", "order-assembler")),
		orders:        ordering.NewStatusService(deps.repo, deps.outboxRepo, deps.timelineRepo, m, logger.WithField("component", "order-status")),
		directory:     access.NewDirectory(deps.admins, logger.WithField("component", "admin-directory")),
		filter:        access.NewFilter(deps.admins, m, logger.WithField("component", "access-filter")),
		notifications: notification.NewService(deps.admins, deps.notifications, logger.WithField("component", "notifications")),
		idempotency:   idempotency.NewGuard(deps.idempotencyRepo, cfg.IdempotencyTTL, logger.WithField("component", "idempotency")),
	}
}

// Run поднимает gRPC-сервер, HTTP метрики и фоновые воркеры и блокируется
// до отмены ctx или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracing shutdown with error")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	svc := newServices(cfg, deps, logger)
	bootstrapSuperAdmin(ctx, svc.directory, cfg, logger)

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	publisher, dlq := outboxPublishers(cfg, kafkaProducer, svc.notifications)
	outboxDone := startOutboxWorker(workerCtx, cfg, deps.outboxRepo, publisher, dlq, logger)
	cleanupDone := startIdempotencyCleanup(workerCtx, cfg, deps.idempotencyRepo, svc.metrics, logger)

	var consumer *kafka.Consumer
	if kafkaProducer != nil {
		consumer = startNotificationConsumer(workerCtx, cfg, kafkaProducer, svc.notifications, logger)
	}
	defer stopConsumer(consumer, logger)

	server := grpcsvc.NewServer(grpcsvc.Deps{
		Assembler:     svc.assembler,
		Orders:        svc.orders,
		Catalog:       svc.catalog,
		Directory:     svc.directory,
		Filter:        svc.filter,
		Notifications: svc.notifications,
		Timeline:      deps.timelineRepo,
		Idempotency:   svc.idempotency,
	}, logger.WithField("layer", "grpc"))

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	storefrontv1.RegisterStorefrontServer(grpcServer, server)
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(storefrontv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(deps.outboxRepo, cfg.OutboxMaxPending, cfg.OutboxMaxAge))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		shutdownWorkers(stopWorkers, logger, outboxDone, cleanupDone)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.Shutdown()
		stopGRPC(grpcServer, logger)
		shutdownHTTP(metricsSrv, logger)
		shutdownWorkers(stopWorkers, logger, outboxDone, cleanupDone)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		shutdownWorkers(stopWorkers, logger, outboxDone, cleanupDone)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// bootstrapSuperAdmin заводит первого суперадминистратора, если задан его id.
// Ошибка не останавливает сервис: админ может быть создан позже.
func bootstrapSuperAdmin(ctx context.Context, directory *access.Directory, cfg Config, logger *log.Entry) {
	if cfg.BootstrapAdminID == "" {
		return
	}
	admin, created, err := directory.Bootstrap(ctx, cfg.BootstrapAdminID, cfg.BootstrapAdminUsername)
	if err != nil {
		logger.WithError(err).WithField("actor_id", cfg.BootstrapAdminID).Warn("bootstrap super admin failed")
		return
	}
	logger.WithFields(log.Fields{
		"actor_id": admin.ID,
		"username": admin.Username,
		"created":  created,
	}).Info("super admin ready")
}

// outboxPublishers выбирает основной и DLQ паблишеры outbox worker.
// Без Kafka события передаются в сервис уведомлений в том же процессе.
func outboxPublishers(cfg Config, producer *kafka.Producer, notifications *notification.Service) (domain.OutboxPublisher, domain.OutboxPublisher) {
	if producer == nil {
		return notification.NewLocalPublisher(notifications), nil
	}
	return kafka.NewOutboxPublisher(producer, cfg.KafkaTopic), kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
}

func startOutboxWorker(ctx context.Context, cfg Config, repo domain.OutboxRepository, publisher, dlq domain.OutboxPublisher, logger *log.Entry) <-chan struct{} {
	options := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if dlq != nil {
		options = append(options, outbox.WithDLQPublisher(dlq))
	}
	worker := outbox.NewWorker(repo, publisher, options...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	return done
}

func startIdempotencyCleanup(ctx context.Context, cfg Config, repo domain.IdempotencyRepository, m *metrics.OrderMetrics, logger *log.Entry) <-chan struct{} {
	worker := idempotency.NewCleanupWorker(repo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithMetrics(m),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()
	return done
}

// startNotificationConsumer подписывает сервис уведомлений на topic событий заказов.
// Ошибка создания consumer не останавливает сервис.
func startNotificationConsumer(ctx context.Context, cfg Config, dlq *kafka.Producer, notifications *notification.Service, logger *log.Entry) *kafka.Consumer {
	consumer, err := kafka.NewConsumerWithDLQ(
		parseBrokers(cfg.KafkaBrokers),
		cfg.KafkaConsumerGroup,
		[]string{cfg.KafkaTopic},
		notificationHandler(notifications, logger),
		dlq,
		3,
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka consumer, notifications are not consumed")
		return nil
	}
	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Warn("failed to start kafka consumer")
		return nil
	}
	return consumer
}

// notificationHandler переводит события заказов из Kafka в уведомления.
func notificationHandler(notifications *notification.Service, logger *log.Entry) kafka.MessageHandler {
	return kafka.OrderEventHandler(func(ctx context.Context, event *kafka.OrderEvent) error {
		if event.EventType == kafka.EventTypeStockCompensated {
			payload, err := event.CompensationPayload()
			if err != nil {
				return err
			}
			logger.WithFields(log.Fields{
				"order_id": payload.OrderID,
				"event_id": event.ID,
			}).Warn("stock compensated after failed order persist")
			return nil
		}
		payload, err := event.OrderPayload()
		if err != nil {
			return err
		}
		return notifications.HandleOrderEvent(ctx, event.ID, string(event.EventType), payload)
	})
}

// stopGRPC останавливает сервер, дожидаясь активных вызовов не дольше shutdownTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// shutdownWorkers отменяет контекст воркеров и ждёт их завершения.
func shutdownWorkers(cancel context.CancelFunc, logger *log.Entry, done ...<-chan struct{}) {
	if cancel != nil {
		cancel()
	}
	timeout := time.After(shutdownTimeout)
	for _, ch := range done {
		if ch == nil {
			continue
		}
		select {
		case <-ch:
		case <-timeout:
			logger.Warn("background workers did not stop in time")
			return
		}
	}
}

// startMetricsServer запускает HTTP-обработчики метрик и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
