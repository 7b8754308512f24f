package authz

import "time"

// RoleRef is the evaluator-facing view of an assigned role.
type RoleRef struct {
	Code           string
	Name           string
	HierarchyLevel int
}

// Snapshot is the cached permission state for one subject. It is
// assembled in one piece by a Loader and replaced wholesale on refresh;
// nothing ever patches an existing snapshot.
type Snapshot struct {
	Permissions map[string]struct{}
	Roles       []RoleRef
	Tags        []string
	Org         OrgContext
	LoadedAt    time.Time
	ExpiresAt   time.Time

	roleSet map[string]struct{}
	tagSet  map[string]struct{}
}

// NewSnapshot builds a snapshot from raw loader output.
func NewSnapshot(permissions []string, roles []RoleRef, tags []string, org OrgContext, loadedAt, expiresAt time.Time) *Snapshot {
	snap := &Snapshot{
		Permissions: make(map[string]struct{}, len(permissions)),
		Roles:       roles,
		Tags:        tags,
		Org:         org,
		LoadedAt:    loadedAt,
		ExpiresAt:   expiresAt,
		roleSet:     make(map[string]struct{}, len(roles)),
		tagSet:      make(map[string]struct{}, len(tags)),
	}
	for _, code := range permissions {
		snap.Permissions[code] = struct{}{}
	}
	for _, role := range roles {
		snap.roleSet[role.Code] = struct{}{}
	}
	for _, tag := range tags {
		snap.tagSet[tag] = struct{}{}
	}
	return snap
}

// PermissionCodes returns the held set as a sorted-insensitive slice copy.
func (s *Snapshot) PermissionCodes() []string {
	codes := make([]string, 0, len(s.Permissions))
	for code := range s.Permissions {
		codes = append(codes, code)
	}
	return codes
}

func (s *Snapshot) hasRole(code string) bool {
	_, ok := s.roleSet[code]
	return ok
}

func (s *Snapshot) hasTag(tag string) bool {
	_, ok := s.tagSet[tag]
	return ok
}
