package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type failingNotifications struct {
	domain.NotificationRepository
	failFor string
}

func (f failingNotifications) Create(ctx context.Context, n domain.Notification) error {
	if n.RecipientID == f.failFor {
		return errors.New("disk full")
	}
	return f.NotificationRepository.Create(ctx, n)
}

func seedAdmins(t *testing.T) domain.AdminRepository {
	t.Helper()

	ctx := context.Background()
	admins := memory.NewAdminRepository()
	now := time.Now().UTC()
	for _, a := range []domain.Admin{
		domain.NewAdmin("root", "root", domain.RoleSuperAdmin, now),
		domain.NewAdmin("om", "om", domain.RoleOrderManager, now),
		domain.NewAdmin("pm", "pm", domain.RoleProductManager, now),
		domain.NewAdmin("ce", "ce", domain.RoleContentEditor, now),
	} {
		require.NoError(t, admins.Create(ctx, a))
	}

	off := domain.NewAdmin("om-off", "om-off", domain.RoleOrderManager, now)
	off.Active = false
	require.NoError(t, admins.Create(ctx, off))
	return admins
}

func TestHandleOrderEvent_OrderCreatedNotifiesReaders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewNotificationRepository()
	svc := NewService(seedAdmins(t), store, nil)

	payload := domain.OrderEventPayload{OrderID: "o-1", OrderNumber: "ORD-20261016-0001", Lines: 2, TotalMinor: 700}
	require.NoError(t, svc.HandleOrderEvent(ctx, "evt-1", domain.EventOrderCreated, payload))

	for _, id := range []string{"root", "om", "ce"} {
		items, unread, err := svc.List(ctx, id, false, 0)
		require.NoError(t, err)
		require.Len(t, items, 1, "recipient %s", id)
		require.Equal(t, 1, unread)
		require.Equal(t, domain.NotificationNewOrder, items[0].Type)
		require.Equal(t, "o-1", items[0].OrderID)
	}

	for _, id := range []string{"om-off", "pm"} {
		items, _, err := svc.List(ctx, id, false, 0)
		require.NoError(t, err)
		require.Empty(t, items, "recipient %s must not be notified", id)
	}
}

func TestHandleOrderEvent_RedeliveryDoesNotDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(seedAdmins(t), memory.NewNotificationRepository(), nil)

	payload := domain.OrderEventPayload{OrderID: "o-1", OrderNumber: "ORD-20261016-0001", Status: domain.OrderStatusShipped, PreviousStatus: domain.OrderStatusPending}
	require.NoError(t, svc.HandleOrderEvent(ctx, "evt-7", domain.EventOrderStatusChanged, payload))
	require.NoError(t, svc.HandleOrderEvent(ctx, "evt-7", domain.EventOrderStatusChanged, payload))

	items, unread, err := svc.List(ctx, "om", false, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1, unread)

	rootItems, _, err := svc.List(ctx, "root", false, 0)
	require.NoError(t, err)
	require.Empty(t, rootItems, "status changes go to order managers only")
}

func TestHandleOrderEvent_IgnoresUnknownEvents(t *testing.T) {
	t.Parallel()

	svc := NewService(seedAdmins(t), memory.NewNotificationRepository(), nil)
	require.NoError(t, svc.HandleOrderEvent(context.Background(), "evt", domain.EventStockCompensated, domain.OrderEventPayload{OrderID: "o"}))
}

func TestNotify_JoinsPartialFailures(t *testing.T) {
	t.Parallel()

	store := failingNotifications{NotificationRepository: memory.NewNotificationRepository(), failFor: "om"}
	svc := NewService(seedAdmins(t), store, nil)

	sent, err := svc.NotifyByRole(context.Background(), domain.RoleOrderManager, Template{Title: "t"})
	require.Error(t, err)
	require.Zero(t, sent)

	sent, err = svc.NotifyByPermission(context.Background(), domain.ResourceProducts, domain.ActionCreate, Template{Title: "t"})
	require.NoError(t, err)
	require.Equal(t, 2, sent, "super admin and product manager")
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(seedAdmins(t), memory.NewNotificationRepository(), nil)
	_, err := svc.NotifyByRole(ctx, domain.RoleOrderManager, Template{Title: "hello"})
	require.NoError(t, err)

	items, unread, err := svc.List(ctx, "om", true, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1, unread)

	require.True(t, domain.IsNotFound(svc.MarkRead(ctx, "pm", items[0].ID)))
	require.NoError(t, svc.MarkRead(ctx, "om", items[0].ID))

	items, unread, err = svc.List(ctx, "om", true, 10)
	require.NoError(t, err)
	require.Empty(t, items)
	require.Zero(t, unread)
}

func TestLocalPublisher(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := NewService(seedAdmins(t), memory.NewNotificationRepository(), nil)
	publisher := NewLocalPublisher(svc)

	body, err := json.Marshal(domain.OrderEventPayload{OrderID: "o-9", OrderNumber: "ORD-20261016-0009"})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(ctx, domain.OutboxMessage{ID: "m-1", AggregateType: "order", AggregateID: "o-9", EventType: domain.EventOrderCreated, Payload: body}))
	require.Error(t, publisher.Publish(ctx, domain.OutboxMessage{ID: "m-2", AggregateType: "order", EventType: domain.EventOrderCreated, Payload: []byte("{")}))
	require.NoError(t, publisher.Publish(ctx, domain.OutboxMessage{ID: "m-3", AggregateType: "product", Payload: []byte("{")}))

	_, unread, err := svc.List(ctx, "ce", false, 0)
	require.NoError(t, err)
	require.Equal(t, 1, unread)

	var nilPublisher *LocalPublisher
	require.Error(t, nilPublisher.Publish(ctx, domain.OutboxMessage{}))
}
