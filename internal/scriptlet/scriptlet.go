// Package scriptlet implements programmatic leaf probes. A scriptlet is a
// YAML document whose top-level keys name the artifact kinds it can
// evaluate (status, bundle, show_unit); each key holds one expression.
// The expression is evaluated with `models` bound to the complete
// model -> document mapping for that kind and must yield true to pass.
// Calling fail("...") aborts the evaluation with that message.
package scriptlet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"medic/internal/artifacts"
)

// document is the strict on-disk shape of a scriptlet. A key may be absent:
// the scriptlet simply does not implement that capability.
type document struct {
	Status   string `yaml:"status"`
	Bundle   string `yaml:"bundle"`
	ShowUnit string `yaml:"show_unit"`
}

// Script is a compiled scriptlet bound to the capabilities it declares.
type Script struct {
	Path     string
	programs map[artifacts.Kind]*vm.Program
	sources  map[artifacts.Kind]string
}

// compileOptions builds the expr compile environment shared by all
// capabilities. The environment is fixed: `models` plus the fail helper.
func compileOptions() []expr.Option {
	return []expr.Option{
		expr.Env(map[string]any{"models": map[string]any{}}),
		expr.AsBool(),
		expr.Function("fail",
			func(params ...any) (any, error) {
				if len(params) == 0 {
					return false, errors.New("probe failed")
				}
				return false, fmt.Errorf("%v", params[0])
			},
			new(func(string) bool),
		),
	}
}

// Parse compiles scriptlet source. path is used only in error messages.
func Parse(data []byte, path string) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse scriptlet %s: %w", path, err)
	}

	s := &Script{
		Path:     path,
		programs: make(map[artifacts.Kind]*vm.Program),
		sources:  make(map[artifacts.Kind]string),
	}
	for kind, src := range map[artifacts.Kind]string{
		artifacts.KindStatus:   doc.Status,
		artifacts.KindBundle:   doc.Bundle,
		artifacts.KindShowUnit: doc.ShowUnit,
	} {
		if src == "" {
			continue
		}
		prog, err := expr.Compile(src, compileOptions()...)
		if err != nil {
			return nil, fmt.Errorf("compile scriptlet %s (%s): %w", path, kind, err)
		}
		s.programs[kind] = prog
		s.sources[kind] = src
	}
	return s, nil
}

// Load reads and compiles a scriptlet from disk.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scriptlet: %w", err)
	}
	return Parse(data, path)
}

// Capabilities returns the artifact kinds this scriptlet implements, in
// canonical order. Empty when the scriptlet defines none of the
// recognized keys: such a scriptlet has no applicable checks.
func (s *Script) Capabilities() []artifacts.Kind {
	var caps []artifacts.Kind
	for _, kind := range artifacts.Kinds() {
		if _, ok := s.programs[kind]; ok {
			caps = append(caps, kind)
		}
	}
	return caps
}

// Implements reports whether the scriptlet declares the given capability.
func (s *Script) Implements(kind artifacts.Kind) bool {
	_, ok := s.programs[kind]
	return ok
}

// Source returns the expression declared for a capability.
func (s *Script) Source(kind artifacts.Kind) string {
	return s.sources[kind]
}

// Run evaluates one capability against the complete model -> document
// mapping. A nil return is a pass; any error is a failure.
func (s *Script) Run(kind artifacts.Kind, models map[string]any) error {
	prog, ok := s.programs[kind]
	if !ok {
		return fmt.Errorf("scriptlet %s does not implement %s", s.Path, kind)
	}
	if models == nil {
		models = map[string]any{}
	}
	out, err := expr.Run(prog, map[string]any{"models": models})
	if err != nil {
		return err
	}
	if pass, ok := out.(bool); !ok || !pass {
		return fmt.Errorf("expression %q evaluated to %v", s.sources[kind], out)
	}
	return nil
}
