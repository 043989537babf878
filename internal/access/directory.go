package access

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Directory управляет учётными записями администраторов. Матрица прав
// всегда выводится из роли и пересчитывается при её смене.
type Directory struct {
	admins domain.AdminRepository
	logger *log.Entry
	now    func() time.Time
}

// NewDirectory создаёт справочник администраторов.
func NewDirectory(admins domain.AdminRepository, logger *log.Entry) *Directory {
	if logger == nil {
		logger = log.New().WithField("component", "admin-directory")
	}
	return &Directory{
		admins: admins,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create заводит активного администратора. Пустая роль даёт DefaultRole.
func (d *Directory) Create(ctx context.Context, username string, role domain.Role) (domain.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Admin{}, domain.InvalidField("username", "is required")
	}
	role, err := domain.ParseRole(string(role))
	if err != nil {
		return domain.Admin{}, err
	}

	admin := domain.NewAdmin(uuid.NewString(), username, role, d.now())
	if err := d.admins.Create(ctx, admin); err != nil {
		return domain.Admin{}, err
	}
	d.logger.WithFields(log.Fields{
		"actor_id": admin.ID,
		"role":     admin.Role,
	}).Info("admin created")
	return admin, nil
}

// Get возвращает администратора.
func (d *Directory) Get(ctx context.Context, id string) (domain.Admin, error) {
	return d.admins.Get(ctx, id)
}

// List возвращает всех администраторов.
func (d *Directory) List(ctx context.Context) ([]domain.Admin, error) {
	return d.admins.List(ctx)
}

// AssignRole меняет роль и пересчитывает матрицу прав. Последний активный
// superAdmin не может быть понижен.
func (d *Directory) AssignRole(ctx context.Context, id string, role domain.Role) (domain.Admin, error) {
	if !role.Valid() {
		return domain.Admin{}, domain.InvalidField("role", "unknown role "+string(role))
	}
	admin, err := d.admins.Get(ctx, id)
	if err != nil {
		return domain.Admin{}, err
	}
	if admin.Role == role {
		return admin, nil
	}
	if admin.Role == domain.RoleSuperAdmin && admin.Active {
		if err := d.ensureAnotherSuperAdmin(ctx, id); err != nil {
			return domain.Admin{}, err
		}
	}

	previous := admin.Role
	admin.AssignRole(role, d.now())
	if err := d.save(ctx, &admin); err != nil {
		return domain.Admin{}, err
	}
	d.logger.WithFields(log.Fields{
		"actor_id": admin.ID,
		"from":     previous,
		"to":       role,
	}).Info("admin role changed")
	return admin, nil
}

// SetActive включает или отключает учётную запись. Последний активный
// superAdmin не может быть отключён.
func (d *Directory) SetActive(ctx context.Context, id string, active bool) (domain.Admin, error) {
	admin, err := d.admins.Get(ctx, id)
	if err != nil {
		return domain.Admin{}, err
	}
	if admin.Active == active {
		return admin, nil
	}
	if !active && admin.Role == domain.RoleSuperAdmin {
		if err := d.ensureAnotherSuperAdmin(ctx, id); err != nil {
			return domain.Admin{}, err
		}
	}

	admin.Active = active
	admin.UpdatedAt = d.now()
	if err := d.save(ctx, &admin); err != nil {
		return domain.Admin{}, err
	}
	d.logger.WithFields(log.Fields{
		"actor_id": admin.ID,
		"active":   active,
	}).Info("admin activation changed")
	return admin, nil
}

// Bootstrap гарантирует наличие активного superAdmin при старте сервиса.
// Возвращает created=false, если активный superAdmin уже есть.
func (d *Directory) Bootstrap(ctx context.Context, id, username string) (domain.Admin, bool, error) {
	count, err := d.admins.CountActive(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return domain.Admin{}, false, err
	}
	if count > 0 {
		return domain.Admin{}, false, nil
	}

	if id != "" {
		existing, err := d.admins.Get(ctx, id)
		switch {
		case err == nil:
			existing.AssignRole(domain.RoleSuperAdmin, d.now())
			existing.Active = true
			if err := d.save(ctx, &existing); err != nil {
				return domain.Admin{}, false, err
			}
			d.logger.WithField("actor_id", existing.ID).Warn("existing admin promoted to super admin")
			return existing, true, nil
		case !domain.IsNotFound(err):
			return domain.Admin{}, false, err
		}
	} else {
		id = uuid.NewString()
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Admin{}, false, domain.InvalidField("username", "is required")
	}
	admin := domain.NewAdmin(id, username, domain.RoleSuperAdmin, d.now())
	if err := d.admins.Create(ctx, admin); err != nil {
		return domain.Admin{}, false, err
	}
	d.logger.WithField("actor_id", admin.ID).Info("super admin bootstrapped")
	return admin, true, nil
}

func (d *Directory) ensureAnotherSuperAdmin(ctx context.Context, id string) error {
	count, err := d.admins.CountActive(ctx, domain.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if count <= 1 {
		return &domain.Error{Kind: domain.ErrLastSuperAdmin, Resource: string(domain.ResourceAdmins), ResourceID: id}
	}
	return nil
}

func (d *Directory) save(ctx context.Context, admin *domain.Admin) error {
	prev := admin.Version
	if err := d.admins.Save(ctx, *admin); err != nil {
		return err
	}
	admin.Version = prev + 1
	return nil
}
