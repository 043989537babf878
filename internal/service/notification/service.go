package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/access"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultListLimit = 20

// namespace для детерминированных идентификаторов уведомлений: повторная
// доставка одного события не плодит дубликаты.
var namespace = uuid.MustParse("6f1c2b4e-8d0a-4c55-9a57-3f7c1e2d9b10")

// Template: содержимое уведомления до выбора получателей.
type Template struct {
	Type    domain.NotificationType
	Title   string
	Message string
	OrderID string
	// DedupKey связывает уведомление с исходным событием. Пустой ключ
	// отключает дедупликацию.
	DedupKey string
}

// Service рассылает уведомления администраторам.
type Service struct {
	admins        domain.AdminRepository
	notifications domain.NotificationRepository
	logger        *log.Entry
	now           func() time.Time
}

// NewService создаёт сервис уведомлений.
func NewService(admins domain.AdminRepository, notifications domain.NotificationRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "notifications")
	}
	return &Service{
		admins:        admins,
		notifications: notifications,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// NotifyByPermission уведомляет всех активных администраторов, которым фильтр
// доступа разрешает action на resource.
func (s *Service) NotifyByPermission(ctx context.Context, resource domain.Resource, action domain.Action, tpl Template) (int, error) {
	return s.notify(ctx, tpl, func(a domain.Admin) bool {
		return access.Authorize(a.Snapshot(), resource, action) == nil
	})
}

// NotifyByRole уведомляет всех активных администраторов с ролью role.
func (s *Service) NotifyByRole(ctx context.Context, role domain.Role, tpl Template) (int, error) {
	return s.notify(ctx, tpl, func(a domain.Admin) bool { return a.Role == role })
}

func (s *Service) notify(ctx context.Context, tpl Template, match func(domain.Admin) bool) (int, error) {
	admins, err := s.admins.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list admins: %w", err)
	}

	now := s.now()
	var (
		sent int
		errs []error
	)
	for _, admin := range admins {
		if !admin.Active || !match(admin) {
			continue
		}
		n := domain.Notification{
			ID:          notificationID(tpl.DedupKey, admin.ID),
			RecipientID: admin.ID,
			Type:        tpl.Type,
			Title:       tpl.Title,
			Message:     tpl.Message,
			OrderID:     tpl.OrderID,
			CreatedAt:   now,
		}
		if err := s.notifications.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", admin.ID, err))
			continue
		}
		sent++
	}

	if len(errs) > 0 {
		return sent, errors.Join(errs...)
	}
	return sent, nil
}

// HandleOrderEvent переводит событие заказа в уведомления. Неизвестные типы
// событий пропускаются.
func (s *Service) HandleOrderEvent(ctx context.Context, eventID, eventType string, payload domain.OrderEventPayload) error {
	var (
		sent int
		err  error
	)
	switch eventType {
	case domain.EventOrderCreated:
		sent, err = s.NotifyByPermission(ctx, domain.ResourceOrders, domain.ActionRead, Template{
			Type:     domain.NotificationNewOrder,
			Title:    "New order " + payload.OrderNumber,
			Message:  fmt.Sprintf("Order %s placed: %d line(s), total %d", payload.OrderNumber, payload.Lines, payload.TotalMinor),
			OrderID:  payload.OrderID,
			DedupKey: eventID,
		})
	case domain.EventOrderStatusChanged:
		sent, err = s.NotifyByRole(ctx, domain.RoleOrderManager, Template{
			Type:     domain.NotificationStatusChanged,
			Title:    "Order " + payload.OrderNumber + " is " + string(payload.Status),
			Message:  fmt.Sprintf("Order %s moved from %s to %s", payload.OrderNumber, payload.PreviousStatus, payload.Status),
			OrderID:  payload.OrderID,
			DedupKey: eventID,
		})
	default:
		return nil
	}

	entry := s.logger.WithFields(log.Fields{
		"event_type": eventType,
		"order_id":   payload.OrderID,
		"recipients": sent,
	})
	if err != nil {
		entry.WithError(err).Warn("order event notifications partially failed")
		return err
	}
	entry.Debug("order event notifications sent")
	return nil
}

// List возвращает уведомления получателя (новые первыми) и число непрочитанных.
func (s *Service) List(ctx context.Context, recipientID string, unreadOnly bool, limit int) ([]domain.Notification, int, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	items, err := s.notifications.ListByRecipient(ctx, recipientID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

// MarkRead отмечает уведомление прочитанным; чужие уведомления не видны.
func (s *Service) MarkRead(ctx context.Context, recipientID, id string) error {
	return s.notifications.MarkRead(ctx, recipientID, id)
}

func notificationID(dedupKey, recipientID string) string {
	if dedupKey == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(namespace, []byte(dedupKey+"/"+recipientID)).String()
}
