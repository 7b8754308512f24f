package authz

import (
	"errors"
	"testing"
)

func TestCatalogRegisterValidatesGrammar(t *testing.T) {
	catalog := NewCatalog()
	if err := catalog.Register(Permission{Code: "not a code", Category: "X"}); !errors.Is(err, ErrInvalidPermissionFormat) {
		t.Fatalf("want grammar error, got %v", err)
	}
	if err := catalog.Register(Permission{Code: "users.view.self", Category: "Users"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := catalog.Register(Permission{Code: "users.view.self", Category: "Users"}); err == nil {
		t.Fatalf("duplicate code must be rejected")
	}
}

func TestCatalogDerivesLabels(t *testing.T) {
	catalog := NewCatalog()
	if err := catalog.Register(Permission{Code: "users.view.direct_reports", Category: "Users"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	p, ok := catalog.Get("users.view.direct_reports")
	if !ok {
		t.Fatalf("registered entry missing")
	}
	if p.Name != "Users / View / Direct Reports" {
		t.Fatalf("derived label = %q", p.Name)
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	if catalog.Len() == 0 {
		t.Fatalf("default catalog is empty")
	}
	for _, code := range catalog.Codes() {
		if _, err := ParseCode(code); err != nil {
			t.Fatalf("catalog code %q does not parse: %v", code, err)
		}
	}
	grouped := catalog.ByCategory()
	if len(grouped["Administration"]) == 0 {
		t.Fatalf("administration permissions missing")
	}
}
