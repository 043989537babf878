package access

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Authorize решает, может ли актор выполнить action над resource.
// Неактивный актор получает отказ при любой роли; superAdmin проходит любую
// проверку; productManager не имеет доступа к заказам по политике роли;
// остальные проверяются по матрице прав, отсутствующая запись означает отказ.
func Authorize(snap domain.PermissionSnapshot, resource domain.Resource, action domain.Action) error {
	if !snap.Active {
		return domain.UnauthorizedError(resource, action, "actor is inactive")
	}
	if snap.Role == domain.RoleSuperAdmin {
		return nil
	}
	if snap.Role == domain.RoleProductManager && resource == domain.ResourceOrders {
		return domain.UnauthorizedError(resource, action, "role has no access to orders")
	}
	if !snap.Permissions.Allows(resource, action) {
		return domain.UnauthorizedError(resource, action, "permission denied")
	}
	return nil
}

// Filter проверяет доступ на каждой точке входа. Снимок прав читается из
// хранилища администраторов при каждом запросе и не кешируется.
type Filter struct {
	admins  domain.AdminRepository
	metrics *metrics.OrderMetrics
	logger  *log.Entry
}

// NewFilter создаёт фильтр доступа. m может быть nil.
func NewFilter(admins domain.AdminRepository, m *metrics.OrderMetrics, logger *log.Entry) *Filter {
	if logger == nil {
		logger = log.New().WithField("component", "access-filter")
	}
	return &Filter{admins: admins, metrics: m, logger: logger}
}

// Snapshot загружает актуальный снимок прав актора. Неизвестный актор
// получает ErrUnauthorized, а не NotFound.
func (f *Filter) Snapshot(ctx context.Context, principal domain.Principal) (domain.PermissionSnapshot, error) {
	admin, err := f.admins.Get(ctx, principal.ActorID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.PermissionSnapshot{}, &domain.Error{Kind: domain.ErrUnauthorized, Resource: "admin", ResourceID: principal.ActorID, Reason: "unknown actor"}
		}
		return domain.PermissionSnapshot{}, err
	}
	if principal.Role != "" && principal.Role != admin.Role {
		// Роль из хранилища главнее роли из токена: её могли сменить после выдачи токена.
		f.logger.WithFields(log.Fields{
			"actor_id":    principal.ActorID,
			"token_role":  principal.Role,
			"stored_role": admin.Role,
		}).Debug("principal role differs from stored role")
	}
	return admin.Snapshot(), nil
}

// Check загружает снимок прав и применяет Authorize.
func (f *Filter) Check(ctx context.Context, principal domain.Principal, resource domain.Resource, action domain.Action) (domain.PermissionSnapshot, error) {
	snap, err := f.Snapshot(ctx, principal)
	if err != nil {
		f.metrics.RecordAccessDecision(string(resource), string(action), false)
		return domain.PermissionSnapshot{}, err
	}

	err = Authorize(snap, resource, action)
	f.metrics.RecordAccessDecision(string(resource), string(action), err == nil)
	if err != nil {
		f.logger.WithFields(log.Fields{
			"actor_id": snap.ActorID,
			"role":     snap.Role,
			"resource": resource,
			"action":   action,
		}).Info("access denied")
		return domain.PermissionSnapshot{}, err
	}
	return snap, nil
}
