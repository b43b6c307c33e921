package schema

import (
	"sort"
	"strings"
	"testing"
)

func orgModel(t *testing.T) *Model {
	t.Helper()
	return NewModel("Org", "public.orgs").
		Column(ColumnSpec{Name: "id", Type: TypeInteger, Primary: true}).
		MustBuild()
}

func userModel(t *testing.T) *Model {
	t.Helper()
	return NewModel("User", "public.users").
		Column(ColumnSpec{Name: "id", Type: TypeUUID, Primary: true}).
		Column(ColumnSpec{Name: "org_id", Property: "org", Type: TypeInteger, Model: "Org"}).
		MustBuild()
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(orgModel(t)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	m, ok := registry.Get("Org")
	if !ok || m.Name != "Org" {
		t.Errorf("unexpected lookup result: %v %v", m, ok)
	}
	if _, ok := registry.Get("Missing"); ok {
		t.Error("unregistered name should not resolve")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(orgModel(t)); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	err := registry.Register(orgModel(t))
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Errorf("expected a duplicate error, got %v", err)
	}
}

func TestRegistryList(t *testing.T) {
	registry := NewRegistry()
	for _, m := range []*Model{orgModel(t), userModel(t)} {
		if err := registry.Register(m); err != nil {
			t.Fatalf("register failed: %v", err)
		}
	}

	names := registry.List()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "Org" || names[1] != "User" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestRegistryValidateAll(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(userModel(t)); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// the relationship target is not registered yet
	err := registry.ValidateAll()
	if err == nil || !strings.Contains(err.Error(), "unregistered model Org") {
		t.Errorf("expected a dangling-reference error, got %v", err)
	}

	if err := registry.Register(orgModel(t)); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.ValidateAll(); err != nil {
		t.Errorf("validation should pass once the target registers: %v", err)
	}
}
