package grants

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-hq/vantage/internal/authz"
	"github.com/vantage-hq/vantage/internal/fieldsec"
)

type stubRepo struct {
	permissions []string
	roles       []authz.RoleRef
	tags        []string
	org         authz.OrgContext
	rules       []fieldsec.Rule
	maxLevel    int

	permissionsErr error
	orgErr         error
	rulesErr       error
	maxLevelErr    error
}

func (r *stubRepo) UserPermissionCodes(ctx context.Context, userID int64) ([]string, error) {
	return r.permissions, r.permissionsErr
}

func (r *stubRepo) UserRoles(ctx context.Context, userID int64) ([]authz.RoleRef, error) {
	return r.roles, nil
}

func (r *stubRepo) UserTags(ctx context.Context, userID int64) ([]string, error) {
	return r.tags, nil
}

func (r *stubRepo) UserOrgContext(ctx context.Context, userID int64) (authz.OrgContext, error) {
	return r.org, r.orgErr
}

func (r *stubRepo) FieldRules(ctx context.Context) ([]fieldsec.Rule, error) {
	return r.rules, r.rulesErr
}

func (r *stubRepo) UserMaxLevel(ctx context.Context, userID int64) (int, error) {
	return r.maxLevel, r.maxLevelErr
}

func TestLoadGrantsAssemblesSnapshot(t *testing.T) {
	repo := &stubRepo{
		permissions: []string{"users.view.self", "roles.view"},
		roles:       []authz.RoleRef{{Code: "manager", Name: "Manager", HierarchyLevel: 50}},
		tags:        []string{"beta"},
		org:         authz.OrgContext{UserID: 7, DepartmentIDs: []int64{100}},
	}
	svc := NewService(repo, nil, 15*time.Minute)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	snap, err := svc.LoadGrants(context.Background(), 7)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"users.view.self", "roles.view"}, snap.PermissionCodes())
	assert.Equal(t, []authz.RoleRef{{Code: "manager", Name: "Manager", HierarchyLevel: 50}}, snap.Roles)
	assert.Equal(t, []string{"beta"}, snap.Tags)
	assert.Equal(t, int64(7), snap.Org.UserID)
	assert.Equal(t, fixed, snap.LoadedAt)
	assert.Equal(t, fixed.Add(15*time.Minute), snap.ExpiresAt)
}

func TestLoadGrantsFailsWhole(t *testing.T) {
	repo := &stubRepo{
		permissions: []string{"users.view.self"},
		orgErr:      errors.New("db down"),
	}
	svc := NewService(repo, nil, 15*time.Minute)

	snap, err := svc.LoadGrants(context.Background(), 7)
	require.Error(t, err)
	assert.Nil(t, snap, "a partial snapshot must never be published")
}

func TestLoadFieldRulesAssemblesSnapshot(t *testing.T) {
	repo := &stubRepo{
		rules: []fieldsec.Rule{
			{Table: "core_users", Field: "personal_ssn", Level: fieldsec.TierSensitive, Masking: fieldsec.MaskLast4},
		},
		maxLevel: fieldsec.TierPersonal,
	}
	svc := NewService(repo, nil, 15*time.Minute)

	snap, err := svc.LoadFieldRules(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, fieldsec.TierPersonal, snap.UserMaxLevel)
	rule, ok := snap.Rule("core_users", "personal_ssn")
	require.True(t, ok)
	assert.Equal(t, fieldsec.MaskLast4, rule.Masking)
}

func TestLoadFieldRulesFailsWhole(t *testing.T) {
	repo := &stubRepo{maxLevelErr: errors.New("db down")}
	svc := NewService(repo, nil, 15*time.Minute)

	snap, err := svc.LoadFieldRules(context.Background(), 7)
	require.Error(t, err)
	assert.Nil(t, snap)
}
