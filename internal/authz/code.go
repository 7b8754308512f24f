package authz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPermissionFormat indicates a permission code that does not
// follow the resource.action[.dataLevel][.scope] grammar.
var ErrInvalidPermissionFormat = errors.New("authz: invalid permission format")

// DataLevel classifies how sensitive the data touched by an action is.
type DataLevel string

// Data levels ordered from least to most sensitive.
const (
	DataLevelBasic     DataLevel = "basic"
	DataLevelPersonal  DataLevel = "personal"
	DataLevelSensitive DataLevel = "sensitive"
)

var dataLevelRank = map[DataLevel]int{
	DataLevelBasic:     0,
	DataLevelPersonal:  1,
	DataLevelSensitive: 2,
}

// DataLevels returns all data levels ordered low to high sensitivity.
func DataLevels() []DataLevel {
	return []DataLevel{DataLevelBasic, DataLevelPersonal, DataLevelSensitive}
}

// Valid reports whether the data level is a recognized token.
func (d DataLevel) Valid() bool {
	_, ok := dataLevelRank[d]
	return ok
}

// Rank returns the position of the level in the low-to-high ordering.
func (d DataLevel) Rank() int {
	return dataLevelRank[d]
}

// Scope describes the organizational breadth of a grant.
type Scope string

// Scopes ordered from narrowest to widest.
const (
	ScopeSelf          Scope = "self"
	ScopeDirectReports Scope = "direct_reports"
	ScopeDepartment    Scope = "department"
	ScopeLOB           Scope = "lob"
	ScopeDivision      Scope = "division"
	ScopeCompany       Scope = "company"
)

var scopeRank = map[Scope]int{
	ScopeSelf:          0,
	ScopeDirectReports: 1,
	ScopeDepartment:    2,
	ScopeLOB:           3,
	ScopeDivision:      4,
	ScopeCompany:       5,
}

// Scopes returns all scopes ordered narrow to wide.
func Scopes() []Scope {
	return []Scope{ScopeSelf, ScopeDirectReports, ScopeDepartment, ScopeLOB, ScopeDivision, ScopeCompany}
}

// Valid reports whether the scope is a recognized token.
func (s Scope) Valid() bool {
	_, ok := scopeRank[s]
	return ok
}

// Rank returns the position of the scope in the narrow-to-wide ordering.
func (s Scope) Rank() int {
	return scopeRank[s]
}

// Code is the parsed form of a permission code string.
// DataLevel and Scope are optional; the zero value means absent.
type Code struct {
	Resource  string
	Action    string
	DataLevel DataLevel
	Scope     Scope
}

// ParseCode parses a permission code string into its structured form.
// The grammar allows 2 to 4 dot separated segments: resource.action,
// optionally followed by a data level and/or a scope. Third and fourth
// segments must be recognized tokens; anything else is rejected.
func ParseCode(code string) (Code, error) {
	segments := strings.Split(code, ".")
	if len(segments) < 2 || len(segments) > 4 {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidPermissionFormat, code)
	}
	for _, seg := range segments {
		if seg == "" {
			return Code{}, fmt.Errorf("%w: %q", ErrInvalidPermissionFormat, code)
		}
	}

	parsed := Code{Resource: segments[0], Action: segments[1]}
	switch len(segments) {
	case 2:
		return parsed, nil
	case 3:
		switch {
		case DataLevel(segments[2]).Valid():
			parsed.DataLevel = DataLevel(segments[2])
		case Scope(segments[2]).Valid():
			parsed.Scope = Scope(segments[2])
		default:
			return Code{}, fmt.Errorf("%w: %q", ErrInvalidPermissionFormat, code)
		}
		return parsed, nil
	default:
		if !DataLevel(segments[2]).Valid() || !Scope(segments[3]).Valid() {
			return Code{}, fmt.Errorf("%w: %q", ErrInvalidPermissionFormat, code)
		}
		parsed.DataLevel = DataLevel(segments[2])
		parsed.Scope = Scope(segments[3])
		return parsed, nil
	}
}

// String serializes the code back to its wire form. It is the left
// inverse of ParseCode for every valid input.
func (c Code) String() string {
	var b strings.Builder
	b.WriteString(c.Resource)
	b.WriteByte('.')
	b.WriteString(c.Action)
	if c.DataLevel != "" {
		b.WriteByte('.')
		b.WriteString(string(c.DataLevel))
	}
	if c.Scope != "" {
		b.WriteByte('.')
		b.WriteString(string(c.Scope))
	}
	return b.String()
}
