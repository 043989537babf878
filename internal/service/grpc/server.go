package grpcsvc

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/access"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ordering"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/notification"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Deps: зависимости gRPC-сервера. Idempotency и Timeline могут быть nil.
type Deps struct {
	Assembler     *ordering.Assembler
	Orders        *ordering.StatusService
	Catalog       *catalog.Manager
	Directory     *access.Directory
	Filter        *access.Filter
	Notifications *notification.Service
	Timeline      domain.TimelineRepository
	Idempotency   *idempotency.Guard
}

// Server реализует storefront.v1.Storefront поверх доменных сервисов.
// Все методы, кроме CreateOrder, проходят через фильтр доступа.
type Server struct {
	storefrontv1.UnimplementedStorefrontServer

	assembler     *ordering.Assembler
	orders        *ordering.StatusService
	catalog       *catalog.Manager
	directory     *access.Directory
	filter        *access.Filter
	notifications *notification.Service
	timeline      domain.TimelineRepository
	idempotency   *idempotency.Guard
	logger        *log.Entry
	now           func() time.Time
}

// NewServer конструирует сервер с зависимостями.
func NewServer(deps Deps, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.New().WithField("component", "grpc-server")
	}
	return &Server{
		assembler:     deps.Assembler,
		orders:        deps.Orders,
		catalog:       deps.Catalog,
		directory:     deps.Directory,
		filter:        deps.Filter,
		notifications: deps.Notifications,
		timeline:      deps.Timeline,
		idempotency:   deps.Idempotency,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// principalFromContext читает актора, которого проставил слой аутентификации.
func principalFromContext(ctx context.Context) (domain.Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return domain.Principal{}, status.Error(codes.Unauthenticated, "actor metadata is required")
	}
	actorID := firstValue(md, storefrontv1.MetadataActorID)
	if actorID == "" {
		return domain.Principal{}, status.Error(codes.Unauthenticated, "actor metadata is required")
	}
	return domain.Principal{
		ActorID: actorID,
		Role:    domain.Role(firstValue(md, storefrontv1.MetadataActorRole)),
	}, nil
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// authorize проверяет право актора запроса на action над resource.
func (s *Server) authorize(ctx context.Context, operation string, resource domain.Resource, action domain.Action) (domain.PermissionSnapshot, error) {
	principal, err := principalFromContext(ctx)
	if err != nil {
		return domain.PermissionSnapshot{}, err
	}
	snap, err := s.filter.Check(ctx, principal, resource, action)
	if err != nil {
		return domain.PermissionSnapshot{}, s.fail(operation, err)
	}
	return snap, nil
}

// activeActor загружает снимок прав актора без проверки матрицы: свои
// уведомления доступны любому активному администратору.
func (s *Server) activeActor(ctx context.Context, operation string) (domain.PermissionSnapshot, error) {
	principal, err := principalFromContext(ctx)
	if err != nil {
		return domain.PermissionSnapshot{}, err
	}
	snap, err := s.filter.Snapshot(ctx, principal)
	if err != nil {
		return domain.PermissionSnapshot{}, s.fail(operation, err)
	}
	if !snap.Active {
		return domain.PermissionSnapshot{}, s.fail(operation, &domain.Error{
			Kind:       domain.ErrUnauthorized,
			Resource:   "admin",
			ResourceID: snap.ActorID,
			Reason:     "actor is inactive",
		})
	}
	return snap, nil
}

// fail логирует ошибку операции и переводит её в gRPC-статус.
func (s *Server) fail(operation string, err error) error {
	st := toStatus(err)
	entry := s.logger.WithError(err).WithField("operation", operation)
	if status.Code(st) == codes.Internal {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return st
}

func requestRequired() error {
	return status.Error(codes.InvalidArgument, "request is required")
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.InvalidField(field, "is required")
	}
	return nil
}

func page(limit, offset int32) (int, int, error) {
	if limit < 0 {
		return 0, 0, domain.InvalidField("limit", "must be non-negative")
	}
	if offset < 0 {
		return 0, 0, domain.InvalidField("offset", "must be non-negative")
	}
	l := int(limit)
	switch {
	case l == 0:
		l = defaultListLimit
	case l > maxListLimit:
		l = maxListLimit
	}
	return l, int(offset), nil
}
