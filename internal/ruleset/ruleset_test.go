package ruleset_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"medic/internal/ruleset"
)

func TestParseValidDocument(t *testing.T) {
	doc := `
name: demo
probes:
  - name: first
    type: scriptlet
    url: file://probes/first.yaml
  - type: ruleset
    url: github://org/repo//probes/nested.yaml@main
  - type: builtin/applications
    with:
      - name: prometheus
        minimum: 1
`
	got, err := ruleset.Parse([]byte(doc), "demo.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Name != "demo" {
		t.Errorf("Name = %q, want demo", got.Name)
	}
	if len(got.Probes) != 3 {
		t.Fatalf("got %d probes, want 3", len(got.Probes))
	}

	// Order must be preserved exactly as declared.
	types := []string{got.Probes[0].Type, got.Probes[1].Type, got.Probes[2].Type}
	want := []string{"scriptlet", "ruleset", "builtin/applications"}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("probe order mismatch:\n%s", diff)
	}

	name, ok := got.Probes[2].Builtin()
	if !ok || name != "applications" {
		t.Errorf("Builtin() = %q, %v; want applications, true", name, ok)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	doc := `
name: demo
probes:
  - type: scriptlet
    url: file://a.yaml
extra_field: nope
`
	_, err := ruleset.Parse([]byte(doc), "demo.yaml")
	var se *ruleset.SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *ruleset.SchemaError", err)
	}
}

func TestParseSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", "probes:\n  - type: scriptlet\n    url: a.yaml\n"},
		{"no probes", "name: demo\n"},
		{"empty probes", "name: demo\nprobes: []\n"},
		{"entry missing type", "name: demo\nprobes:\n  - url: a.yaml\n"},
		{"scriptlet missing url", "name: demo\nprobes:\n  - type: scriptlet\n"},
		{"unknown type", "name: demo\nprobes:\n  - type: wizardry\n    url: a.yaml\n"},
		{"builtin with url", "name: demo\nprobes:\n  - type: builtin/applications\n    url: a.yaml\n    with: [{name: x}]\n"},
		{"builtin without with", "name: demo\nprobes:\n  - type: builtin/applications\n"},
		{"bare builtin type", "name: demo\nprobes:\n  - type: builtin/\n    with: [{name: x}]\n"},
		{"scriptlet with args", "name: demo\nprobes:\n  - type: scriptlet\n    url: a.yaml\n    with: [{name: x}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ruleset.Parse([]byte(tt.doc), tt.name)
			var se *ruleset.SchemaError
			if !errors.As(err, &se) {
				t.Errorf("error = %v, want *ruleset.SchemaError", err)
			}
		})
	}
}

func TestEntryDisplayName(t *testing.T) {
	tests := []struct {
		entry ruleset.Entry
		want  string
	}{
		{ruleset.Entry{Name: "given", URL: "file://x"}, "given"},
		{ruleset.Entry{Type: "scriptlet", URL: "file://x"}, "file://x"},
		{ruleset.Entry{Type: "builtin/offers"}, "offers"},
	}
	for _, tt := range tests {
		if got := tt.entry.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.entry, got, tt.want)
		}
	}
}
