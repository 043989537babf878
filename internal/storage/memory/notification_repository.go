package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type notificationRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string][]domain.Notification
}

// NewNotificationRepository создаёт in-memory хранилище уведомлений.
func NewNotificationRepository() domain.NotificationRepository {
	return &notificationRepositoryInMemory{items: make(map[string][]domain.Notification)}
}

func (r *notificationRepositoryInMemory) Create(_ context.Context, n domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	for _, existing := range r.items[n.RecipientID] {
		if existing.ID == n.ID {
			return nil
		}
	}
	r.items[n.RecipientID] = append(r.items[n.RecipientID], n)
	return nil
}

func (r *notificationRepositoryInMemory) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.items[recipientID]
	result := make([]domain.Notification, 0, len(src))
	for _, n := range src {
		if unreadOnly && n.Read {
			continue
		}
		result = append(result, n)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return paginate(result, 0, limit), nil
}

func (r *notificationRepositoryInMemory) CountUnread(_ context.Context, recipientID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, n := range r.items[recipientID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepositoryInMemory) MarkRead(_ context.Context, recipientID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.items[recipientID] {
		if r.items[recipientID][i].ID == id {
			r.items[recipientID][i].Read = true
			return nil
		}
	}
	return domain.NotFoundError(domain.ErrNotFound, "notification", id)
}

var _ domain.NotificationRepository = (*notificationRepositoryInMemory)(nil)
