package fieldsec

import (
	"testing"
	"time"
)

func rulesSnapshot(userMaxLevel int, rules ...Rule) *Snapshot {
	now := time.Now()
	return NewSnapshot(rules, userMaxLevel, now, now.Add(15*time.Minute))
}

func TestCanAccessUnruledFieldIsPublic(t *testing.T) {
	snap := rulesSnapshot(DefaultUserLevel,
		Rule{Table: "core_users", Field: "personal_ssn", Level: TierSensitive, Masking: MaskLast4},
	)
	if !snap.canAccess("core_users", "display_name") {
		t.Fatalf("field without a rule must be accessible at any level")
	}
	if !snap.canAccess("other_table", "anything") {
		t.Fatalf("table without rules must be accessible")
	}
}

func TestCanAccessLevelComparison(t *testing.T) {
	ssn := Rule{Table: "core_users", Field: "personal_ssn", Level: TierSensitive, Masking: MaskLast4}

	restricted := rulesSnapshot(DefaultUserLevel, ssn)
	if restricted.canAccess("core_users", "personal_ssn") {
		t.Fatalf("default-level subject must not see a tier-1 field")
	}

	cleared := rulesSnapshot(TierSensitive, ssn)
	if !cleared.canAccess("core_users", "personal_ssn") {
		t.Fatalf("tier-1 subject must see a tier-1 field")
	}
}

func TestMaskingTypeSelection(t *testing.T) {
	snap := rulesSnapshot(TierPersonal,
		Rule{Table: "core_users", Field: "personal_ssn", Level: TierSensitive, Masking: MaskLast4},
		Rule{Table: "core_users", Field: "work_email", Level: TierBasic, Masking: MaskEmail},
	)

	kind, masked := snap.maskingType("core_users", "personal_ssn")
	if !masked || kind != MaskLast4 {
		t.Fatalf("hidden field must report its masking kind, got %q/%v", kind, masked)
	}
	if _, masked := snap.maskingType("core_users", "work_email"); masked {
		t.Fatalf("visible field must not be masked")
	}
	if _, masked := snap.maskingType("core_users", "display_name"); masked {
		t.Fatalf("unruled field must not be masked")
	}
}

func TestSensitiveFieldsDerivedFromAccess(t *testing.T) {
	snap := rulesSnapshot(TierCompany,
		Rule{Table: "core_users", Field: "personal_ssn", Level: TierSensitive, Masking: MaskLast4},
		Rule{Table: "core_users", Field: "salary", Level: TierCompany, Masking: MaskCurrency},
		Rule{Table: "profiles", Field: "birth_date", Level: TierPersonal, Masking: MaskDate},
	)
	hidden := snap.sensitiveFields()
	if len(hidden) != 1 {
		t.Fatalf("hidden fields = %v, want only the tier-1 field", hidden)
	}
	if hidden[0] != (FieldRef{Table: "core_users", Field: "personal_ssn"}) {
		t.Fatalf("hidden field = %+v", hidden[0])
	}
}

func TestMaskTransforms(t *testing.T) {
	cases := []struct {
		kind  MaskingKind
		in    string
		want  string
		label string
	}{
		{MaskNone, "visible", "visible", "none passes through"},
		{MaskFull, "secret", "******", "full replaces every rune"},
		{MaskLast4, "123456789", "*****6789", "last4 keeps the tail"},
		{MaskLast4, "123", "***", "last4 hides short values entirely"},
		{MaskPartial, "alexander", "a*******r", "partial keeps the edges"},
		{MaskPartial, "ab", "**", "partial hides two-rune values"},
		{MaskEmail, "jane.doe@vantage.io", "j*******@vantage.io", "email keeps the domain"},
		{MaskPhone, "+1 (555) 123-4567", "*******4567", "phone strips punctuation first"},
		{MaskDate, "1990-04-12", "1990-**-**", "date keeps the year"},
		{MaskCurrency, "123450.00", "***", "currency hides the amount"},
		{MaskingKind("unknown"), "abc", "***", "unknown kinds mask fully"},
	}
	for _, tc := range cases {
		if got := Mask(tc.kind, tc.in); got != tc.want {
			t.Errorf("%s: Mask(%q, %q) = %q, want %q", tc.label, tc.kind, tc.in, got, tc.want)
		}
	}
	if got := Mask(MaskFull, ""); got != "" {
		t.Errorf("empty value must stay empty, got %q", got)
	}
}

func TestMaskingKindValid(t *testing.T) {
	for _, kind := range []MaskingKind{MaskNone, MaskFull, MaskPartial, MaskLast4, MaskEmail, MaskPhone, MaskDate, MaskCurrency} {
		if !kind.Valid() {
			t.Errorf("%q must be a valid kind", kind)
		}
	}
	if MaskingKind("redact").Valid() {
		t.Errorf("unknown kind must be invalid")
	}
}
