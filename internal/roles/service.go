package roles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vantage-hq/vantage/internal/authz"
)

// ErrProtectedRole indicates an edit that would weaken a system role.
var ErrProtectedRole = errors.New("roles: system role is protected")

// RepositoryPort defines data access methods for role management.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByCode(ctx context.Context, code string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	RolePermissionCodes(ctx context.Context, roleID int64) ([]string, error)
	SetRolePermissions(ctx context.Context, roleID int64, codes []string) error
	AssignRole(ctx context.Context, a Assignment) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// CreateRoleInput carries validated role creation parameters.
type CreateRoleInput struct {
	Code               string `validate:"required,min=2,max=64"`
	Name               string `validate:"required,min=2,max=128"`
	HierarchyLevel     int    `validate:"gte=0,lte=100"`
	MaxSensitivityTier int    `validate:"gte=1,lte=5"`
}

// UpdateRoleInput carries validated role update parameters.
type UpdateRoleInput struct {
	ID                 int64  `validate:"required"`
	Name               string `validate:"required,min=2,max=128"`
	HierarchyLevel     int    `validate:"gte=0,lte=100"`
	IsActive           bool
	MaxSensitivityTier int `validate:"gte=1,lte=5"`
}

// AssignRoleInput carries validated assignment parameters.
type AssignRoleInput struct {
	UserID     int64  `validate:"required"`
	RoleID     int64  `validate:"required"`
	ScopeType  string `validate:"required"`
	ScopeID    *int64
	ExpiresAt  *time.Time
	AssignedBy int64 `validate:"required"`
}

// Service handles role administration. It guards the protected system
// role and keeps write inputs validated; changes surface to evaluators on
// the next grants poll without re-authentication.
type Service struct {
	repo     RepositoryPort
	catalog  *authz.Catalog
	validate *validator.Validate
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, catalog *authz.Catalog) *Service {
	return &Service{repo: repo, catalog: catalog, validate: validator.New()}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role with its permission codes.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, []string, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	codes, err := s.repo.RolePermissionCodes(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	return role, codes, nil
}

// CreateRole inserts a new non-system role.
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	input.Code = strings.TrimSpace(strings.ToLower(input.Code))
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return Role{}, fmt.Errorf("roles: create: %w", err)
	}
	if input.Code == authz.SuperAdminRole {
		return Role{}, ErrProtectedRole
	}
	return s.repo.CreateRole(ctx, Role{
		Code:               input.Code,
		Name:               input.Name,
		HierarchyLevel:     input.HierarchyLevel,
		IsSystem:           false,
		IsActive:           true,
		MaxSensitivityTier: input.MaxSensitivityTier,
	})
}

// UpdateRole updates a role. System roles cannot be renamed, deactivated,
// or have their clearance changed.
func (s *Service) UpdateRole(ctx context.Context, input UpdateRoleInput) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		return Role{}, fmt.Errorf("roles: update: %w", err)
	}
	existing, err := s.repo.GetRole(ctx, input.ID)
	if err != nil {
		return Role{}, err
	}
	if existing.IsSystem {
		return Role{}, ErrProtectedRole
	}
	return s.repo.UpdateRole(ctx, Role{
		ID:                 input.ID,
		Name:               input.Name,
		HierarchyLevel:     input.HierarchyLevel,
		IsActive:           input.IsActive,
		MaxSensitivityTier: input.MaxSensitivityTier,
	})
}

// SetRolePermissions replaces a role's grant set. Every code must exist
// in the catalog, and the super_admin role must keep the full catalog, so
// its grant set is not editable here.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, codes []string) error {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.Code == authz.SuperAdminRole {
		return ErrProtectedRole
	}
	for _, code := range codes {
		if _, ok := s.catalog.Get(code); !ok {
			return fmt.Errorf("roles: unknown permission code %q", code)
		}
	}
	return s.repo.SetRolePermissions(ctx, roleID, codes)
}

// AssignRole assigns a role to a user, optionally scoped and time-bounded.
func (s *Service) AssignRole(ctx context.Context, input AssignRoleInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("roles: assign: %w", err)
	}
	if !ValidScopeType(input.ScopeType) {
		return fmt.Errorf("roles: invalid scope type %q", input.ScopeType)
	}
	if input.ScopeType != ScopeTypeGlobal && input.ScopeID == nil {
		return fmt.Errorf("roles: scope type %q requires a scope id", input.ScopeType)
	}
	return s.repo.AssignRole(ctx, Assignment{
		UserID:     input.UserID,
		RoleID:     input.RoleID,
		ScopeType:  input.ScopeType,
		ScopeID:    input.ScopeID,
		ExpiresAt:  input.ExpiresAt,
		AssignedBy: input.AssignedBy,
	})
}

// RemoveRole removes a role from a user. The revocation disappears from
// evaluation at the next snapshot refresh.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.repo.RemoveRole(ctx, userID, roleID)
}
