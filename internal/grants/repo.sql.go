package grants

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantage-hq/vantage/internal/authz"
	"github.com/vantage-hq/vantage/internal/fieldsec"
)

// Repository provides PostgreSQL backed access to the grant tables. Every
// query that touches role assignments filters expired and inactive rows
// at load time; nothing downstream ever sees an expired assignment.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const liveAssignmentFilter = `
	ur.user_id = $1
	AND r.is_active
	AND (ur.expires_at IS NULL OR ur.expires_at > now())`

// UserPermissionCodes returns the deduplicated permission codes granted
// to the user through live role assignments.
func (r *Repository) UserPermissionCodes(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.code
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE `+liveAssignmentFilter+`
		ORDER BY p.code`, userID)
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

// UserRoles returns the user's live roles ordered by hierarchy.
func (r *Repository) UserRoles(ctx context.Context, userID int64) ([]authz.RoleRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT r.code, r.name, r.hierarchy_level
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE `+liveAssignmentFilter+`
		ORDER BY r.hierarchy_level, r.code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []authz.RoleRef
	for rows.Next() {
		var role authz.RoleRef
		if err := rows.Scan(&role.Code, &role.Name, &role.HierarchyLevel); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UserTags returns the user's tags.
func (r *Repository) UserTags(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT tag FROM user_tags WHERE user_id = $1 ORDER BY tag`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// UserOrgContext assembles the user's position in the org graph.
func (r *Repository) UserOrgContext(ctx context.Context, userID int64) (authz.OrgContext, error) {
	org := authz.OrgContext{UserID: userID}
	queries := []struct {
		sql  string
		dest *[]int64
	}{
		{`SELECT department_id FROM user_departments WHERE user_id = $1 ORDER BY department_id`, &org.DepartmentIDs},
		{`SELECT lob_id FROM user_lobs WHERE user_id = $1 ORDER BY lob_id`, &org.LOBIDs},
		{`SELECT division_id FROM user_divisions WHERE user_id = $1 ORDER BY division_id`, &org.DivisionIDs},
		{`SELECT location_id FROM user_locations WHERE user_id = $1 ORDER BY location_id`, &org.LocationIDs},
		{`SELECT user_id FROM user_managers WHERE manager_id = $1 ORDER BY user_id`, &org.DirectReportIDs},
		{`SELECT manager_id FROM user_managers WHERE user_id = $1 ORDER BY manager_id`, &org.SupervisorIDs},
	}
	for _, q := range queries {
		ids, err := r.fetchIDs(ctx, q.sql, userID)
		if err != nil {
			return authz.OrgContext{}, err
		}
		*q.dest = ids
	}
	return org, nil
}

func (r *Repository) fetchIDs(ctx context.Context, sql string, arg any) ([]int64, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FieldRules returns the full field sensitivity rule set with system
// floors already applied: a system rule's effective level is never more
// permissive than its min_level.
func (r *Repository) FieldRules(ctx context.Context) ([]fieldsec.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT table_name, field_name, display_name,
			CASE WHEN is_system AND min_level > 0 THEN LEAST(level, min_level) ELSE level END AS level,
			masking, min_level, is_system
		FROM field_sensitivity_rules
		ORDER BY table_name, field_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []fieldsec.Rule
	for rows.Next() {
		var rule fieldsec.Rule
		var masking string
		if err := rows.Scan(&rule.Table, &rule.Field, &rule.DisplayName, &rule.Level, &masking, &rule.MinLevel, &rule.IsSystem); err != nil {
			return nil, err
		}
		rule.Masking = fieldsec.MaskingKind(masking)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UserMaxLevel returns the most privileged sensitivity tier among the
// user's live roles, or the unprivileged default when none exist.
func (r *Repository) UserMaxLevel(ctx context.Context, userID int64) (int, error) {
	var level int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MIN(r.max_sensitivity_tier), $2)
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE `+liveAssignmentFilter, userID, fieldsec.DefaultUserLevel).Scan(&level)
	if err != nil {
		return 0, err
	}
	return level, nil
}

// SweepExpiredAssignments deletes role assignments that expired before
// the cutoff. Evaluation-time exclusion is the correctness invariant;
// this is housekeeping that keeps the join tables small.
func (r *Repository) SweepExpiredAssignments(ctx context.Context, cutoffDays int) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM user_roles
		WHERE expires_at IS NOT NULL AND expires_at < now() - make_interval(days => $1)`, cutoffDays)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SyncSuperAdmin grants every catalog permission to the super_admin role,
// inserting missing permissions and role grants idempotently.
func (r *Repository) SyncSuperAdmin(ctx context.Context, codes []string) error {
	for _, code := range codes {
		if _, err := r.pool.Exec(ctx, `
			INSERT INTO permissions (code, name, category)
			VALUES ($1, $1, 'Uncategorized')
			ON CONFLICT (code) DO NOTHING`, code); err != nil {
			return err
		}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT r.id, p.id
		FROM roles r
		CROSS JOIN permissions p
		WHERE r.code = $1
		ON CONFLICT DO NOTHING`, authz.SuperAdminRole)
	return err
}
