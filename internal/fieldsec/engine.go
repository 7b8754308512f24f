package fieldsec

import "time"

// Snapshot is the cached field sensitivity state for one subject: the
// rule set plus the subject's maximum clearance level. Like the
// permission snapshot it is replaced wholesale, never patched.
type Snapshot struct {
	rules        map[string]map[string]Rule
	UserMaxLevel int
	LoadedAt     time.Time
	ExpiresAt    time.Time
}

// NewSnapshot indexes the rule set by (table, field).
func NewSnapshot(rules []Rule, userMaxLevel int, loadedAt, expiresAt time.Time) *Snapshot {
	indexed := make(map[string]map[string]Rule)
	for _, rule := range rules {
		fields, ok := indexed[rule.Table]
		if !ok {
			fields = make(map[string]Rule)
			indexed[rule.Table] = fields
		}
		fields[rule.Field] = rule
	}
	return &Snapshot{
		rules:        indexed,
		UserMaxLevel: userMaxLevel,
		LoadedAt:     loadedAt,
		ExpiresAt:    expiresAt,
	}
}

// Rule looks up the sensitivity rule for a field.
func (s *Snapshot) Rule(table, field string) (Rule, bool) {
	fields, ok := s.rules[table]
	if !ok {
		return Rule{}, false
	}
	rule, ok := fields[field]
	return rule, ok
}

// Rules returns every rule in the snapshot.
func (s *Snapshot) Rules() []Rule {
	var out []Rule
	for _, fields := range s.rules {
		for _, rule := range fields {
			out = append(out, rule)
		}
	}
	return out
}

// canAccess decides visibility: a field with no rule is public, an
// explicit design choice. A ruled field is visible only when the
// subject's level is numerically at or below the rule's level (lower
// value = more privileged).
func (s *Snapshot) canAccess(table, field string) bool {
	rule, ok := s.Rule(table, field)
	if !ok {
		return true
	}
	return s.UserMaxLevel <= rule.Level
}

// maskingType returns the masking transform to apply, or false when the
// field is unruled or fully visible to the subject.
func (s *Snapshot) maskingType(table, field string) (MaskingKind, bool) {
	rule, ok := s.Rule(table, field)
	if !ok {
		return "", false
	}
	if s.UserMaxLevel <= rule.Level {
		return "", false
	}
	return rule.Masking, true
}

// sensitiveFields recomputes the set of fields the subject currently
// cannot access. It is always derived from the same level comparison
// canAccess uses, never maintained by hand.
func (s *Snapshot) sensitiveFields() []FieldRef {
	var hidden []FieldRef
	for table, fields := range s.rules {
		for field := range fields {
			if !s.canAccess(table, field) {
				hidden = append(hidden, FieldRef{Table: table, Field: field})
			}
		}
	}
	return hidden
}
