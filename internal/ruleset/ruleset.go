// Package ruleset parses and validates the declarative YAML documents
// that enumerate child probes and builtin assertion blocks.
package ruleset

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Probe entry types. Builtin entries use the compound form "builtin/<name>".
const (
	TypeScriptlet     = "scriptlet"
	TypeRuleset       = "ruleset"
	builtinTypePrefix = "builtin/"
)

// SchemaError reports a ruleset document that violates the schema.
// It is fatal to the document's subtree only; sibling subtrees are
// unaffected.
type SchemaError struct {
	Path   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return "invalid ruleset: " + e.Reason
	}
	return fmt.Sprintf("invalid ruleset %s: %s", e.Path, e.Reason)
}

// Entry is one probe listed in a ruleset document.
type Entry struct {
	Name string           `yaml:"name"`
	Type string           `yaml:"type"`
	URL  string           `yaml:"url"`
	With []map[string]any `yaml:"with"`
}

// Builtin reports whether the entry declares a builtin assertion block,
// returning the builtin identifier when it does.
func (e Entry) Builtin() (string, bool) {
	if name, ok := strings.CutPrefix(e.Type, builtinTypePrefix); ok {
		return name, true
	}
	return "", false
}

// DisplayName returns the entry's declared name, falling back to its URL
// or builtin identifier.
func (e Entry) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	if name, ok := e.Builtin(); ok {
		return name
	}
	return e.URL
}

// Document is a schema-validated ruleset. Entry order is preserved exactly
// as declared: it determines report ordering.
type Document struct {
	Name   string  `yaml:"name"`
	Probes []Entry `yaml:"probes"`
}

// Parse decodes data as a ruleset document, rejecting unknown fields.
// path is used only in error messages.
func Parse(data []byte, path string) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &SchemaError{Path: path, Reason: err.Error()}
	}
	if err := doc.validate(path); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseFile reads and parses a ruleset document from disk.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	return Parse(data, path)
}

func (d *Document) validate(path string) error {
	if d.Name == "" {
		return &SchemaError{Path: path, Reason: "missing required field 'name'"}
	}
	if len(d.Probes) == 0 {
		return &SchemaError{Path: path, Reason: "at least one probe must be declared"}
	}
	for i, e := range d.Probes {
		if err := e.validate(); err != nil {
			return &SchemaError{Path: path, Reason: fmt.Sprintf("probes[%d]: %v", i, err)}
		}
	}
	return nil
}

func (e Entry) validate() error {
	switch {
	case e.Type == "":
		return fmt.Errorf("missing required field 'type'")
	case e.Type == TypeScriptlet || e.Type == TypeRuleset:
		if e.URL == "" {
			return fmt.Errorf("type %q requires a 'url'", e.Type)
		}
		if len(e.With) > 0 {
			return fmt.Errorf("type %q does not accept a 'with' block", e.Type)
		}
	default:
		name, ok := e.Builtin()
		if !ok || name == "" {
			return fmt.Errorf("unknown probe type %q", e.Type)
		}
		if e.URL != "" {
			return fmt.Errorf("builtin %q does not accept a 'url'", name)
		}
		if len(e.With) == 0 {
			return fmt.Errorf("builtin %q requires a 'with' list of argument blocks", name)
		}
	}
	return nil
}
