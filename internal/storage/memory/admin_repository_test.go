package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestAdminRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAdminRepository()
	now := time.Now().UTC()

	admin := domain.NewAdmin("a-1", "fatima", domain.RoleSuperAdmin, now)
	if err := repo.Create(ctx, admin); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, domain.NewAdmin("a-2", "FATIMA", domain.RoleOrderManager, now)); !domain.IsInvalidInput(err) {
		t.Fatalf("expected username conflict, got %v", err)
	}

	count, err := repo.CountActive(ctx, domain.RoleSuperAdmin)
	if err != nil || count != 1 {
		t.Fatalf("CountActive = %d, %v", count, err)
	}

	stored, err := repo.Get(ctx, "a-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	stored.Active = false
	if err := repo.Save(ctx, stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.Save(ctx, stored); !domain.IsVersionConflict(err) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	count, _ = repo.CountActive(ctx, domain.RoleSuperAdmin)
	if count != 0 {
		t.Fatalf("expected no active super admins, got %d", count)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrAdminNotFound) {
		t.Fatalf("expected ErrAdminNotFound, got %v", err)
	}
}

func TestNotificationRepository_UnreadFlow(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewNotificationRepository()
	now := time.Now().UTC()

	for i, title := range []string{"first", "second"} {
		err := repo.Create(ctx, domain.Notification{
			ID: title, RecipientID: "a-1", Type: domain.NotificationNewOrder, Title: title,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	list, err := repo.ListByRecipient(ctx, "a-1", false, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "second" {
		t.Fatalf("expected newest first, got %+v", list)
	}

	if err := repo.MarkRead(ctx, "a-1", "first"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	unread, _ := repo.CountUnread(ctx, "a-1")
	if unread != 1 {
		t.Fatalf("expected 1 unread, got %d", unread)
	}
	if err := repo.MarkRead(ctx, "a-2", "first"); !domain.IsNotFound(err) {
		t.Fatalf("foreign notification must not be found, got %v", err)
	}
}
