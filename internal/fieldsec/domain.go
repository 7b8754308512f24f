// Package fieldsec decides per-field visibility and masking based on
// sensitivity tiers, independently of action-level permissions.
package fieldsec

// Sensitivity tiers, lower numeric value = more privileged. The tier
// constants are a monotonic relabeling of the numeric level ordering.
const (
	TierSensitive = 1
	TierCompany   = 2
	TierPersonal  = 3
	TierBasic     = 4

	// DefaultUserLevel applies to subjects with no live role assignment:
	// less privileged than every tier, so every ruled field is hidden.
	DefaultUserLevel = 5
)

// MaskingKind names the transform applied to a field the subject may see
// only in redacted form. Selecting the kind is this package's job; the
// transform itself lives in mask.go and runs in the rendering path.
type MaskingKind string

// Fixed masking kind tokens.
const (
	MaskNone     MaskingKind = "none"
	MaskFull     MaskingKind = "full"
	MaskPartial  MaskingKind = "partial"
	MaskLast4    MaskingKind = "last4"
	MaskEmail    MaskingKind = "email"
	MaskPhone    MaskingKind = "phone"
	MaskDate     MaskingKind = "date"
	MaskCurrency MaskingKind = "currency"
)

// Valid reports whether the kind is a recognized token.
func (k MaskingKind) Valid() bool {
	switch k {
	case MaskNone, MaskFull, MaskPartial, MaskLast4, MaskEmail, MaskPhone, MaskDate, MaskCurrency:
		return true
	}
	return false
}

// Rule is a field sensitivity rule, keyed uniquely by (table, field).
// System rules (SSN, banking, pay) carry a MinLevel floor that caps how
// permissive any role assignment may be for the field, independent of the
// role's general clearance.
type Rule struct {
	Table       string
	Field       string
	DisplayName string
	Level       int
	Masking     MaskingKind
	MinLevel    int
	IsSystem    bool
}

// FieldRef identifies a ruled field for bulk masking decisions.
type FieldRef struct {
	Table string
	Field string
}
