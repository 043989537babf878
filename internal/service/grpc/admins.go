package grpcsvc

import (
	"context"
	"strings"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultNotificationsLimit = 20

// CreateAdmin заводит администратора; матрица прав выводится из роли.
func (s *Server) CreateAdmin(ctx context.Context, req *storefrontv1.CreateAdminRequest) (*storefrontv1.AdminResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	if _, err := s.authorize(ctx, "CreateAdmin", domain.ResourceAdmins, domain.ActionCreate); err != nil {
		return nil, err
	}

	admin, err := s.directory.Create(ctx, req.Username, domain.Role(req.Role))
	if err != nil {
		return nil, s.fail("CreateAdmin", err)
	}
	return &storefrontv1.AdminResponse{Admin: adminMessage(admin)}, nil
}

// AssignAdminRole меняет роль и пересчитывает права.
func (s *Server) AssignAdminRole(ctx context.Context, req *storefrontv1.AssignAdminRoleRequest) (*storefrontv1.AdminResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	if _, err := s.authorize(ctx, "AssignAdminRole", domain.ResourceAdmins, domain.ActionUpdate); err != nil {
		return nil, err
	}
	if err := requireID("admin_id", req.AdminID); err != nil {
		return nil, s.fail("AssignAdminRole", err)
	}
	if err := requireID("role", req.Role); err != nil {
		return nil, s.fail("AssignAdminRole", err)
	}

	admin, err := s.directory.AssignRole(ctx, req.AdminID, domain.Role(strings.TrimSpace(req.Role)))
	if err != nil {
		return nil, s.fail("AssignAdminRole", err)
	}
	return &storefrontv1.AdminResponse{Admin: adminMessage(admin)}, nil
}

// SetAdminActive включает или отключает учётную запись.
func (s *Server) SetAdminActive(ctx context.Context, req *storefrontv1.SetAdminActiveRequest) (*storefrontv1.AdminResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	if _, err := s.authorize(ctx, "SetAdminActive", domain.ResourceAdmins, domain.ActionUpdate); err != nil {
		return nil, err
	}
	if err := requireID("admin_id", req.AdminID); err != nil {
		return nil, s.fail("SetAdminActive", err)
	}

	admin, err := s.directory.SetActive(ctx, req.AdminID, req.Active)
	if err != nil {
		return nil, s.fail("SetAdminActive", err)
	}
	return &storefrontv1.AdminResponse{Admin: adminMessage(admin)}, nil
}

// ListNotifications возвращает уведомления самого актора и число непрочитанных.
func (s *Server) ListNotifications(ctx context.Context, req *storefrontv1.ListNotificationsRequest) (*storefrontv1.ListNotificationsResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	snap, err := s.activeActor(ctx, "ListNotifications")
	if err != nil {
		return nil, err
	}
	limit := int(req.Limit)
	if limit <= 0 {
		limit = defaultNotificationsLimit
	}

	items, unread, err := s.notifications.List(ctx, snap.ActorID, req.UnreadOnly, limit)
	if err != nil {
		return nil, s.fail("ListNotifications", err)
	}
	return &storefrontv1.ListNotificationsResponse{
		Notifications: notificationMessages(items),
		UnreadCount:   int32(unread), //nolint:gosec // bounded by stored notifications.
	}, nil
}

// MarkNotificationRead отмечает своё уведомление прочитанным.
func (s *Server) MarkNotificationRead(ctx context.Context, req *storefrontv1.MarkNotificationReadRequest) (*storefrontv1.MarkNotificationReadResponse, error) {
	if req == nil {
		return nil, requestRequired()
	}
	snap, err := s.activeActor(ctx, "MarkNotificationRead")
	if err != nil {
		return nil, err
	}
	if err := requireID("notification_id", req.NotificationID); err != nil {
		return nil, s.fail("MarkNotificationRead", err)
	}

	if err := s.notifications.MarkRead(ctx, snap.ActorID, req.NotificationID); err != nil {
		return nil, s.fail("MarkNotificationRead", err)
	}
	_, unread, err := s.notifications.List(ctx, snap.ActorID, true, 1)
	if err != nil {
		return nil, s.fail("MarkNotificationRead", err)
	}
	return &storefrontv1.MarkNotificationReadResponse{UnreadCount: int32(unread)}, nil //nolint:gosec // bounded by stored notifications.
}
