package domain_test

import (
	"encoding/json"
	"testing"

	"go.trai.ch/envy/internal/core/domain"
)

func TestPackageName(t *testing.T) {
	n1 := domain.NewPackageName("NumPy")
	n2 := domain.NewPackageName("numpy")

	if n1 != n2 {
		t.Errorf("Expected names to be equal after lower-casing, got %q and %q", n1, n2)
	}
	if n1.String() != "numpy" {
		t.Errorf("Expected String() to return %q, got %q", "numpy", n1.String())
	}
	if !domain.NewPackageName("__glibc").IsVirtual() {
		t.Errorf("Expected __glibc to be virtual")
	}
	if domain.NewPackageName("glibc").IsVirtual() {
		t.Errorf("Expected glibc not to be virtual")
	}

	var zero domain.PackageName
	if !zero.IsZero() || zero.String() != "" {
		t.Errorf("Expected zero name to be empty")
	}
}

func TestPackageNameJSON(t *testing.T) {
	type record struct {
		Name domain.PackageName `json:"name"`
	}

	data, err := json.Marshal(record{Name: domain.NewPackageName("python")})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(data) != `{"name":"python"}` {
		t.Errorf("Unexpected JSON %s", data)
	}

	var decoded record
	if err := json.Unmarshal([]byte(`{"name":"Python"}`), &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if decoded.Name != domain.NewPackageName("python") {
		t.Errorf("Expected decoded name python, got %q", decoded.Name)
	}
}

func TestNewPackageNames(t *testing.T) {
	names := domain.NewPackageNames([]string{"b", "a", "a"})
	if len(names) != 3 {
		t.Fatalf("Expected 3 names, got %d", len(names))
	}
	if names[1] != names[2] {
		t.Errorf("Expected interned duplicates to be equal")
	}
	if names[1].Compare(names[0]) >= 0 {
		t.Errorf("Expected a to sort before b")
	}
}
