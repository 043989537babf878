package access

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestDirectory_CreateDerivesPermissions(t *testing.T) {
	t.Parallel()

	d := NewDirectory(memory.NewAdminRepository(), nil)
	admin, err := d.Create(context.Background(), " khadija ", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if admin.Role != domain.DefaultRole || admin.Username != "khadija" || !admin.Active {
		t.Fatalf("unexpected admin: %+v", admin)
	}
	if !admin.Permissions.Allows(domain.ResourceProducts, domain.ActionUpdate) {
		t.Fatal("content editor must be able to update products")
	}

	if _, err := d.Create(context.Background(), "x", domain.Role("root")); !domain.IsInvalidInput(err) {
		t.Fatalf("unknown role must be rejected, got %v", err)
	}
	if _, err := d.Create(context.Background(), "  ", domain.RoleAdmin); !domain.IsInvalidInput(err) {
		t.Fatalf("empty username must be rejected, got %v", err)
	}
}

func TestDirectory_AssignRoleRecomputesMatrix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := NewDirectory(memory.NewAdminRepository(), nil)
	admin, err := d.Create(ctx, "ely", domain.RoleOrderManager)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	admin, err = d.AssignRole(ctx, admin.ID, domain.RoleProductManager)
	if err != nil {
		t.Fatalf("assign role failed: %v", err)
	}
	if admin.Permissions.Allows(domain.ResourceOrders, domain.ActionUpdate) {
		t.Fatal("old role permissions must be dropped")
	}
	if !admin.Permissions.Allows(domain.ResourceProducts, domain.ActionCreate) {
		t.Fatal("new role permissions must be granted")
	}

	stored, _ := d.Get(ctx, admin.ID)
	if stored.Version != admin.Version {
		t.Fatalf("returned version %d differs from stored %d", admin.Version, stored.Version)
	}
}

func TestDirectory_LastSuperAdminIsProtected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := NewDirectory(memory.NewAdminRepository(), nil)
	root, created, err := d.Bootstrap(ctx, "root", "root")
	if err != nil || !created {
		t.Fatalf("bootstrap failed: %v %v", created, err)
	}

	if _, err := d.AssignRole(ctx, root.ID, domain.RoleAdmin); !errors.Is(err, domain.ErrLastSuperAdmin) {
		t.Fatalf("expected ErrLastSuperAdmin on demotion, got %v", err)
	}
	if _, err := d.SetActive(ctx, root.ID, false); !errors.Is(err, domain.ErrLastSuperAdmin) {
		t.Fatalf("expected ErrLastSuperAdmin on deactivation, got %v", err)
	}

	second, err := d.Create(ctx, "second", domain.RoleSuperAdmin)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := d.SetActive(ctx, root.ID, false); err != nil {
		t.Fatalf("deactivation with another super admin must pass: %v", err)
	}
	if _, err := d.AssignRole(ctx, second.ID, domain.RoleAdmin); !errors.Is(err, domain.ErrLastSuperAdmin) {
		t.Fatalf("second is now the last active super admin, got %v", err)
	}
}

func TestDirectory_BootstrapIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := NewDirectory(memory.NewAdminRepository(), nil)

	if _, created, err := d.Bootstrap(ctx, "root", "root"); err != nil || !created {
		t.Fatalf("first bootstrap: %v %v", created, err)
	}
	if _, created, err := d.Bootstrap(ctx, "root", "root"); err != nil || created {
		t.Fatalf("second bootstrap must be a no-op: %v %v", created, err)
	}
}

func TestDirectory_BootstrapPromotesExistingAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := NewDirectory(memory.NewAdminRepository(), nil)
	admin, err := d.Create(ctx, "owner", domain.RoleContentEditor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	promoted, created, err := d.Bootstrap(ctx, admin.ID, "ignored")
	if err != nil || !created {
		t.Fatalf("bootstrap: %v %v", created, err)
	}
	if promoted.Role != domain.RoleSuperAdmin || promoted.Username != "owner" {
		t.Fatalf("unexpected promoted admin: %+v", promoted)
	}
}
