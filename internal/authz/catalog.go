package authz

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SuperAdminRole is the protected system role that must hold every
// permission in the catalog.
const SuperAdminRole = "super_admin"

// Permission is a catalog entry: a grantable capability with a human
// label, grouped by category. Entries are immutable once registered.
type Permission struct {
	Code     string
	Name     string
	Category string
}

// Catalog is the static registry of permission codes. It validates every
// entry against the code grammar and enforces code uniqueness.
type Catalog struct {
	byCode map[string]Permission
	order  []string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byCode: make(map[string]Permission)}
}

var titleCaser = cases.Title(language.English)

// Register adds a permission to the catalog. The code must parse under
// the permission grammar and must not already be registered. A missing
// name is derived from the code segments.
func (c *Catalog) Register(p Permission) error {
	if _, err := ParseCode(p.Code); err != nil {
		return err
	}
	if _, exists := c.byCode[p.Code]; exists {
		return fmt.Errorf("authz: duplicate catalog code %q", p.Code)
	}
	if p.Name == "" {
		p.Name = labelFromCode(p.Code)
	}
	c.byCode[p.Code] = p
	c.order = append(c.order, p.Code)
	return nil
}

// Get looks up a catalog entry by code.
func (c *Catalog) Get(code string) (Permission, bool) {
	p, ok := c.byCode[code]
	return p, ok
}

// Codes returns every registered code in registration order. This is the
// grant set the super_admin role is kept in sync with.
func (c *Catalog) Codes() []string {
	codes := make([]string, len(c.order))
	copy(codes, c.order)
	return codes
}

// ByCategory groups catalog entries for permission management screens.
func (c *Catalog) ByCategory() map[string][]Permission {
	grouped := make(map[string][]Permission)
	for _, code := range c.order {
		p := c.byCode[code]
		grouped[p.Category] = append(grouped[p.Category], p)
	}
	return grouped
}

// Len returns the number of registered permissions.
func (c *Catalog) Len() int {
	return len(c.order)
}

func labelFromCode(code string) string {
	segments := strings.Split(code, ".")
	for i, seg := range segments {
		segments[i] = titleCaser.String(strings.ReplaceAll(seg, "_", " "))
	}
	return strings.Join(segments, " / ")
}

// DefaultCatalog enumerates the capabilities Vantage grants today. Codes
// carry a data level and scope only where the action actually cascades.
func DefaultCatalog() *Catalog {
	entries := []Permission{
		{Code: "users.view.basic.self", Category: "Users"},
		{Code: "users.view.basic.department", Category: "Users"},
		{Code: "users.view.basic.company", Category: "Users"},
		{Code: "users.view.personal.self", Category: "Users"},
		{Code: "users.view.personal.direct_reports", Category: "Users"},
		{Code: "users.view.personal.department", Category: "Users"},
		{Code: "users.view.personal.company", Category: "Users"},
		{Code: "users.view.sensitive.self", Category: "Users"},
		{Code: "users.view.sensitive.direct_reports", Category: "Users"},
		{Code: "users.view.sensitive.company", Category: "Users"},
		{Code: "users.edit.self", Category: "Users"},
		{Code: "users.edit.direct_reports", Category: "Users"},
		{Code: "users.edit.department", Category: "Users"},
		{Code: "users.edit.company", Category: "Users"},

		{Code: "profile.view.basic.self", Category: "Profiles"},
		{Code: "profile.view.basic.company", Category: "Profiles"},
		{Code: "profile.view.personal.self", Category: "Profiles"},
		{Code: "profile.view.personal.direct_reports", Category: "Profiles"},
		{Code: "profile.view.personal.department", Category: "Profiles"},
		{Code: "profile.edit.self", Category: "Profiles"},
		{Code: "profile.edit.direct_reports", Category: "Profiles"},

		{Code: "comp.view.sensitive.self", Category: "Compensation"},
		{Code: "comp.view.sensitive.direct_reports", Category: "Compensation"},
		{Code: "comp.view.sensitive.company", Category: "Compensation"},
		{Code: "comp.edit.company", Category: "Compensation"},

		{Code: "reports.view.department", Category: "Reports"},
		{Code: "reports.view.division", Category: "Reports"},
		{Code: "reports.view.company", Category: "Reports"},
		{Code: "reports.export.company", Category: "Reports"},

		{Code: "org.view", Category: "Organization"},
		{Code: "org.edit", Category: "Organization"},

		{Code: "roles.view", Category: "Administration"},
		{Code: "roles.edit", Category: "Administration"},
		{Code: "roles.assign", Category: "Administration"},
		{Code: "permissions.view", Category: "Administration"},
		{Code: "fields.view", Category: "Administration"},
		{Code: "fields.edit", Category: "Administration"},
	}
	catalog := NewCatalog()
	for _, entry := range entries {
		if err := catalog.Register(entry); err != nil {
			panic(err)
		}
	}
	return catalog
}
