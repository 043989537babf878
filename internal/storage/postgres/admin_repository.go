package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const adminUsernameIndex = "uq_admins_username"

type adminRepository struct {
	db *sql.DB
}

// NewAdminRepository создаёт PostgreSQL-реализацию AdminRepository.
func NewAdminRepository(store *Store) domain.AdminRepository {
	return &adminRepository{db: store.DB()}
}

func (r *adminRepository) Create(ctx context.Context, admin domain.Admin) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	permissions, err := json.Marshal(admin.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO admins (id, username, role, permissions, active, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		admin.ID, admin.Username, string(admin.Role), string(permissions),
		admin.Active, admin.Version, admin.CreatedAt, admin.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == adminUsernameIndex {
				return domain.InvalidField("username", "already taken")
			}
			return domain.ErrAdminVersionConflict
		}
		return fmt.Errorf("insert admin: %w", err)
	}
	return nil
}

func (r *adminRepository) Get(ctx context.Context, id string) (domain.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	admin, err := scanAdmin(r.db.QueryRowContext(ctx, `
		SELECT id, username, role, permissions, active, version, created_at, updated_at
		FROM admins
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Admin{}, domain.NotFoundError(domain.ErrAdminNotFound, "admin", id)
		}
		return domain.Admin{}, fmt.Errorf("select admin: %w", err)
	}
	return admin, nil
}

func (r *adminRepository) List(ctx context.Context) ([]domain.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, role, permissions, active, version, created_at, updated_at
		FROM admins
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	admins := make([]domain.Admin, 0)
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("scan admin row: %w", err)
		}
		admins = append(admins, admin)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin rows: %w", err)
	}
	return admins, nil
}

func (r *adminRepository) Save(ctx context.Context, admin domain.Admin) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	permissions, err := json.Marshal(admin.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE admins
		SET username = $1,
		    role = $2,
		    permissions = $3,
		    active = $4,
		    version = version + 1,
		    updated_at = $5
		WHERE id = $6
		  AND version = $7
	`,
		admin.Username, string(admin.Role), string(permissions), admin.Active,
		admin.UpdatedAt, admin.ID, admin.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.InvalidField("username", "already taken")
		}
		return fmt.Errorf("update admin: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var id string
	err = r.db.QueryRowContext(ctx, `SELECT id FROM admins WHERE id = $1`, admin.ID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError(domain.ErrAdminNotFound, "admin", admin.ID)
	}
	if err != nil {
		return fmt.Errorf("check admin exists: %w", err)
	}
	return domain.ErrAdminVersionConflict
}

func (r *adminRepository) CountActive(ctx context.Context, role domain.Role) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM admins WHERE active AND role = $1
	`, string(role)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active admins: %w", err)
	}
	return count, nil
}

func scanAdmin(row rowScanner) (domain.Admin, error) {
	var (
		admin       domain.Admin
		role        string
		permissions []byte
	)
	if err := row.Scan(
		&admin.ID, &admin.Username, &role, &permissions,
		&admin.Active, &admin.Version, &admin.CreatedAt, &admin.UpdatedAt,
	); err != nil {
		return domain.Admin{}, err
	}
	admin.Role = domain.Role(role)
	if err := json.Unmarshal(permissions, &admin.Permissions); err != nil {
		return domain.Admin{}, fmt.Errorf("decode permissions: %w", err)
	}
	return admin, nil
}

var _ domain.AdminRepository = (*adminRepository)(nil)
