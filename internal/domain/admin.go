package domain

import (
	"strings"
	"time"
)

// Role: роль администратора. Роль первична, матрица прав выводится из неё.
type Role string

const (
	RoleSuperAdmin     Role = "superAdmin"
	RoleProductManager Role = "productManager"
	RoleOrderManager   Role = "orderManager"
	RoleContentEditor  Role = "contentEditor"
	// RoleAdmin: общая роль администратора без специализации.
	RoleAdmin Role = "admin"
)

// DefaultRole назначается, если роль не указана при создании.
const DefaultRole = RoleContentEditor

// Valid проверяет, что роль поддерживается.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleProductManager, RoleOrderManager, RoleContentEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole разбирает роль; пустое значение даёт DefaultRole.
func ParseRole(raw string) (Role, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultRole, nil
	}
	r := Role(raw)
	if !r.Valid() {
		return "", InvalidField("role", "unknown role "+raw)
	}
	return r, nil
}

// Resource: защищаемый ресурс.
type Resource string

const (
	ResourceProducts   Resource = "products"
	ResourceCategories Resource = "categories"
	ResourceOrders     Resource = "orders"
	ResourceCompanies  Resource = "companies"
	ResourceAdmins     Resource = "admins"
)

// Action: действие над ресурсом.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var (
	allResources = []Resource{ResourceProducts, ResourceCategories, ResourceOrders, ResourceCompanies, ResourceAdmins}
	allActions   = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
)

// Permissions: матрица ресурс → действие → разрешено.
type Permissions map[Resource]map[Action]bool

// Allows возвращает true только для явно разрешённой пары; отсутствующая запись запрещает.
func (p Permissions) Allows(resource Resource, action Action) bool {
	actions, ok := p[resource]
	if !ok {
		return false
	}
	return actions[action]
}

// Clone возвращает копию матрицы.
func (p Permissions) Clone() Permissions {
	out := make(Permissions, len(p))
	for resource, actions := range p {
		inner := make(map[Action]bool, len(actions))
		for action, allowed := range actions {
			inner[action] = allowed
		}
		out[resource] = inner
	}
	return out
}

func grantAll(p Permissions, resource Resource, actions ...Action) {
	if len(actions) == 0 {
		actions = allActions
	}
	for _, action := range actions {
		p[resource][action] = true
	}
}

// DefaultPermissions детерминированно выводит матрицу прав из роли.
func DefaultPermissions(role Role) Permissions {
	p := make(Permissions, len(allResources))
	for _, resource := range allResources {
		p[resource] = make(map[Action]bool, len(allActions))
		for _, action := range allActions {
			p[resource][action] = false
		}
	}
	for _, resource := range []Resource{ResourceProducts, ResourceCategories, ResourceOrders, ResourceCompanies} {
		p[resource][ActionRead] = true
	}

	switch role {
	case RoleSuperAdmin:
		for _, resource := range allResources {
			grantAll(p, resource)
		}
	case RoleProductManager:
		grantAll(p, ResourceProducts)
	case RoleOrderManager:
		grantAll(p, ResourceOrders)
	case RoleContentEditor:
		grantAll(p, ResourceCategories, ActionCreate, ActionRead, ActionUpdate)
		grantAll(p, ResourceCompanies, ActionCreate, ActionRead, ActionUpdate)
		grantAll(p, ResourceProducts, ActionRead, ActionUpdate)
	}

	return p
}

// Admin: учётная запись администратора.
type Admin struct {
	ID          string
	Username    string
	Role        Role
	Permissions Permissions
	Active      bool
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewAdmin создаёт активного администратора с матрицей прав по роли.
func NewAdmin(id, username string, role Role, now time.Time) Admin {
	return Admin{
		ID:          id,
		Username:    username,
		Role:        role,
		Permissions: DefaultPermissions(role),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AssignRole меняет роль и пересчитывает матрицу прав.
func (a *Admin) AssignRole(role Role, now time.Time) {
	a.Role = role
	a.Permissions = DefaultPermissions(role)
	a.UpdatedAt = now
}

// Snapshot возвращает срез прав, который потребляет фильтр доступа.
func (a Admin) Snapshot() PermissionSnapshot {
	return PermissionSnapshot{
		ActorID:     a.ID,
		Role:        a.Role,
		Active:      a.Active,
		Permissions: a.Permissions.Clone(),
	}
}

// Principal: уже аутентифицированный актор запроса.
type Principal struct {
	ActorID string
	Role    Role
}

// PermissionSnapshot: состояние прав актора на момент запроса.
type PermissionSnapshot struct {
	ActorID     string
	Role        Role
	Active      bool
	Permissions Permissions
}
