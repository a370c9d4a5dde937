package artifacts_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"medic/internal/artifacts"
)

func TestStoreAddAndLookup(t *testing.T) {
	s := artifacts.NewStore()
	if err := s.Add(artifacts.KindStatus, "cos", map[string]any{"applications": map[string]any{}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(artifacts.KindStatus, "cos2", map[string]any{}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	statuses := s.ByKind(artifacts.KindStatus)
	if len(statuses) != 2 {
		t.Fatalf("ByKind(status) has %d entries, want 2", len(statuses))
	}
	if diff := cmp.Diff([]string{"cos", "cos2"}, s.Models()); diff != "" {
		t.Errorf("Models mismatch:\n%s", diff)
	}
}

func TestStoreDuplicateModel(t *testing.T) {
	s := artifacts.NewStore()
	if err := s.Add(artifacts.KindBundle, "cos", map[string]any{}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(artifacts.KindBundle, "cos", map[string]any{}); err == nil {
		t.Fatal("expected error for duplicate (kind, model) pair")
	}
	// A second kind for the same model is fine.
	if err := s.Add(artifacts.KindStatus, "cos", map[string]any{}); err != nil {
		t.Errorf("Add different kind: %v", err)
	}
}

func TestStoreUnknownKind(t *testing.T) {
	s := artifacts.NewStore()
	if err := s.Add(artifacts.Kind("metrics"), "cos", nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestStoreByKindNeverNil(t *testing.T) {
	s := artifacts.NewStore()
	if got := s.ByKind(artifacts.KindShowUnit); got == nil {
		t.Fatal("ByKind returned nil map")
	}
	if !s.Empty() {
		t.Error("new store should be empty")
	}
}

func TestAddFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "status.yaml")
	content := "applications:\n  prometheus:\n    scale: 2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s := artifacts.NewStore()
	if err := s.AddFile(artifacts.KindStatus, "cos", path); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	doc, ok := s.ByKind(artifacts.KindStatus)["cos"].(map[string]any)
	if !ok {
		t.Fatalf("document is %T, want map", s.ByKind(artifacts.KindStatus)["cos"])
	}
	if _, ok := doc["applications"]; !ok {
		t.Error("parsed document missing applications key")
	}
}

func TestAddFileErrors(t *testing.T) {
	s := artifacts.NewStore()
	if err := s.AddFile(artifacts.KindStatus, "cos", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("{unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.AddFile(artifacts.KindStatus, "cos", bad); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
