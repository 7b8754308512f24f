package roles

import "time"

// Role is a named bundle of granted permission codes.
type Role struct {
	ID                 int64
	Code               string
	Name               string
	HierarchyLevel     int
	IsSystem           bool
	IsActive           bool
	MaxSensitivityTier int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Assignment ties a role to a user, optionally narrowed to one org unit
// and optionally time-bounded. Expired assignments are filtered out at
// load time by the grants loader, never lazily.
type Assignment struct {
	UserID     int64
	RoleID     int64
	ScopeType  string
	ScopeID    *int64
	ExpiresAt  *time.Time
	AssignedBy int64
	CreatedAt  time.Time
}

// Assignment scope types: a global assignment or one pinned to a single
// org dimension.
const (
	ScopeTypeGlobal     = "global"
	ScopeTypeDepartment = "department"
	ScopeTypeLOB        = "lob"
	ScopeTypeDivision   = "division"
	ScopeTypeLocation   = "location"
)

// ValidScopeType reports whether the assignment scope type is recognized.
func ValidScopeType(scopeType string) bool {
	switch scopeType {
	case ScopeTypeGlobal, ScopeTypeDepartment, ScopeTypeLOB, ScopeTypeDivision, ScopeTypeLocation:
		return true
	}
	return false
}
