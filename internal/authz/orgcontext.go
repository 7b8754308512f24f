package authz

// OrgContext captures the subject's position in the organization graph.
// It is used only to classify the relationship between the subject and a
// target, never to establish ownership of records.
type OrgContext struct {
	UserID          int64
	DepartmentIDs   []int64
	LOBIDs          []int64
	DivisionIDs     []int64
	LocationIDs     []int64
	DirectReportIDs []int64
	SupervisorIDs   []int64
}

// Target describes what an authorization question is about: another user
// or a specific organizational unit. Zero-valued fields are absent.
type Target struct {
	UserID       int64
	DepartmentID int64
	LOBID        int64
	DivisionID   int64
	LocationID   int64
}

// IsZero reports whether the target carries no descriptor at all.
func (t *Target) IsZero() bool {
	return t == nil || (t.UserID == 0 && t.DepartmentID == 0 && t.LOBID == 0 && t.DivisionID == 0 && t.LocationID == 0)
}

// NarrowestScope classifies the relationship between subject and target
// and returns the narrowest scope that can authorize access to the target.
// The rules form a strict ordered decision list; the first match wins and
// later rules are never consulted once an earlier one has matched.
//
// An unrelated target cannot be authorized by a narrow grant, so the
// fallthrough result is company: only a company-wide grant reaches it.
// A target with no descriptor leaves every scope applicable, which the
// cascade expresses as a self-narrowest restriction.
func NarrowestScope(subject OrgContext, target *Target) Scope {
	if target.IsZero() {
		return ScopeSelf
	}
	if target.UserID != 0 && target.UserID == subject.UserID {
		return ScopeSelf
	}
	if target.UserID != 0 && containsID(subject.DirectReportIDs, target.UserID) {
		return ScopeDirectReports
	}
	if target.DepartmentID != 0 && containsID(subject.DepartmentIDs, target.DepartmentID) {
		return ScopeDepartment
	}
	if target.LOBID != 0 && containsID(subject.LOBIDs, target.LOBID) {
		return ScopeLOB
	}
	if target.DivisionID != 0 && containsID(subject.DivisionIDs, target.DivisionID) {
		return ScopeDivision
	}
	return ScopeCompany
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
