package roles

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-hq/vantage/internal/platform/db"
	"github.com/vantage-hq/vantage/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for role management.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, code, name, hierarchy_level, is_system, is_active, max_sensitivity_tier, created_at, updated_at`

// ListRoles returns all roles ordered by hierarchy.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY hierarchy_level, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// GetRoleByCode fetches a role by its code.
func (r *Repository) GetRoleByCode(ctx context.Context, code string) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE code = $1`, code)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role. A duplicate code maps to ErrDuplicate.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (code, name, hierarchy_level, is_system, is_active, max_sensitivity_tier)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+roleColumns,
		role.Code, role.Name, role.HierarchyLevel, role.IsSystem, role.IsActive, role.MaxSensitivityTier)
	created, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, httpx.ErrDuplicate
		}
		return Role{}, err
	}
	return created, nil
}

// UpdateRole updates mutable role attributes.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $2, hierarchy_level = $3, is_active = $4, max_sensitivity_tier = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+roleColumns,
		role.ID, role.Name, role.HierarchyLevel, role.IsActive, role.MaxSensitivityTier)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, httpx.ErrNotFound
		}
		return Role{}, err
	}
	return updated, nil
}

// RolePermissionCodes lists the permission codes granted to a role.
func (r *Repository) RolePermissionCodes(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.code
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// SetRolePermissions replaces the role's grant set with the given codes,
// attaching missing grants and detaching removed ones in one transaction.
func (r *Repository) SetRolePermissions(ctx context.Context, roleID int64, codes []string) error {
	existing, err := r.RolePermissionCodes(ctx, roleID)
	if err != nil {
		return err
	}
	current := make(map[string]struct{}, len(existing))
	for _, code := range existing {
		current[code] = struct{}{}
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		keep := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			keep[code] = struct{}{}
			if _, ok := current[code]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT $1, id FROM permissions WHERE code = $2
				ON CONFLICT DO NOTHING`, roleID, code); err != nil {
				return err
			}
		}
		for code := range current {
			if _, ok := keep[code]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, `
				DELETE FROM role_permissions rp
				USING permissions p
				WHERE rp.role_id = $1 AND rp.permission_id = p.id AND p.code = $2`, roleID, code); err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignRole creates a role assignment for a user.
func (r *Repository) AssignRole(ctx context.Context, a Assignment) error {
	var scopeID any
	if a.ScopeID != nil {
		scopeID = *a.ScopeID
	}
	var expiresAt any
	if a.ExpiresAt != nil {
		expiresAt = a.ExpiresAt.UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, scope_type, scope_id, expires_at, assigned_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, role_id, scope_type, scope_id) DO UPDATE
		SET expires_at = EXCLUDED.expires_at, assigned_by = EXCLUDED.assigned_by`,
		a.UserID, a.RoleID, a.ScopeType, scopeID, expiresAt, a.AssignedBy)
	return err
}

// RemoveRole removes every assignment of a role from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	var createdAt, updatedAt time.Time
	if err := row.Scan(&role.ID, &role.Code, &role.Name, &role.HierarchyLevel, &role.IsSystem,
		&role.IsActive, &role.MaxSensitivityTier, &createdAt, &updatedAt); err != nil {
		return Role{}, err
	}
	role.CreatedAt = createdAt
	role.UpdatedAt = updatedAt
	return role, nil
}
