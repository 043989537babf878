package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type adminRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Admin
}

// NewAdminRepository создаёт in-memory реализацию AdminRepository.
func NewAdminRepository() domain.AdminRepository {
	return &adminRepositoryInMemory{items: make(map[string]domain.Admin)}
}

func (r *adminRepositoryInMemory) Create(_ context.Context, admin domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[admin.ID]; exists {
		return domain.ErrAdminVersionConflict
	}
	for _, existing := range r.items {
		if strings.EqualFold(existing.Username, admin.Username) {
			return domain.InvalidField("username", "already taken")
		}
	}
	r.items[admin.ID] = cloneAdmin(admin)
	return nil
}

func (r *adminRepositoryInMemory) Get(_ context.Context, id string) (domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	admin, ok := r.items[id]
	if !ok {
		return domain.Admin{}, domain.NotFoundError(domain.ErrAdminNotFound, "admin", id)
	}
	return cloneAdmin(admin), nil
}

func (r *adminRepositoryInMemory) List(_ context.Context) ([]domain.Admin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Admin, 0, len(r.items))
	for _, admin := range r.items {
		result = append(result, cloneAdmin(admin))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (r *adminRepositoryInMemory) Save(_ context.Context, admin domain.Admin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[admin.ID]
	if !ok {
		return domain.NotFoundError(domain.ErrAdminNotFound, "admin", admin.ID)
	}
	if current.Version != admin.Version {
		return domain.ErrAdminVersionConflict
	}
	admin = cloneAdmin(admin)
	admin.Version++
	r.items[admin.ID] = admin
	return nil
}

func (r *adminRepositoryInMemory) CountActive(_ context.Context, role domain.Role) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, admin := range r.items {
		if admin.Active && admin.Role == role {
			count++
		}
	}
	return count, nil
}

func cloneAdmin(a domain.Admin) domain.Admin {
	a.Permissions = a.Permissions.Clone()
	return a
}

var _ domain.AdminRepository = (*adminRepositoryInMemory)(nil)
