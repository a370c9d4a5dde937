// Package artifacts holds the structured deployment documents that probes
// evaluate: status dumps, bundles, and unit-relation dumps, keyed by the
// model they were captured from. The store imposes no schema on the
// documents themselves; individual probes decide what to inspect.
package artifacts

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Kind identifies one category of deployment document.
type Kind string

const (
	KindStatus   Kind = "status"
	KindBundle   Kind = "bundle"
	KindShowUnit Kind = "show_unit"
)

// Kinds returns all supported artifact kinds in canonical order.
func Kinds() []Kind {
	return []Kind{KindStatus, KindBundle, KindShowUnit}
}

// Valid reports whether k names a supported artifact kind.
func (k Kind) Valid() bool {
	switch k {
	case KindStatus, KindBundle, KindShowUnit:
		return true
	}
	return false
}

// Store maps artifact kind -> model name -> parsed document.
// It is populated before a run and read-only during execution.
type Store struct {
	docs map[Kind]map[string]any
}

// NewStore returns an empty artifact store.
func NewStore() *Store {
	return &Store{docs: make(map[Kind]map[string]any)}
}

// Add registers a document for (kind, model). Registering the same pair
// twice is an error: each model contributes at most one document per kind.
func (s *Store) Add(kind Kind, model string, doc any) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown artifact kind %q", kind)
	}
	if s.docs[kind] == nil {
		s.docs[kind] = make(map[string]any)
	}
	if _, ok := s.docs[kind][model]; ok {
		return fmt.Errorf("duplicate %s artifact for model %q", kind, model)
	}
	s.docs[kind][model] = doc
	return nil
}

// AddFile parses path as YAML and registers it for (kind, model).
func (s *Store) AddFile(kind Kind, model, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s artifact: %w", kind, err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s artifact %s: %w", kind, path, err)
	}
	return s.Add(kind, model, doc)
}

// ByKind returns the full model -> document mapping for one kind.
// Probes always receive this complete cross-model view, never a single
// model's document. The map is never nil.
func (s *Store) ByKind(kind Kind) map[string]any {
	m := s.docs[kind]
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Models returns the sorted union of model names across all kinds.
func (s *Store) Models() []string {
	seen := make(map[string]struct{})
	for _, byModel := range s.docs {
		for model := range byModel {
			seen[model] = struct{}{}
		}
	}
	models := make([]string, 0, len(seen))
	for model := range seen {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Empty reports whether no documents have been added.
func (s *Store) Empty() bool {
	for _, byModel := range s.docs {
		if len(byModel) > 0 {
			return false
		}
	}
	return true
}
