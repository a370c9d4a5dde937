// Package builtin ships the pre-packaged, schema-validated assertion types
// that rulesets can declare without writing a scriptlet. Each builtin is
// registered under an identifier, declares the single artifact kind it
// consumes, and decodes its argument blocks strictly at bind time.
package builtin

import (
	"fmt"
	"sort"

	"medic/internal/artifacts"
)

// UnknownError reports a builtin identifier absent from the registry.
// Fatal to that leaf only.
type UnknownError struct {
	Name string
}

func (e *UnknownError) Error() string { return fmt.Sprintf("unknown builtin %q", e.Name) }

// ArgumentError reports an argument block that failed schema validation:
// extra, missing, or mistyped fields. It is surfaced as a leaf failure,
// never as a crash.
type ArgumentError struct {
	Builtin string
	Err     error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for builtin %q: %v", e.Builtin, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Checker is a bound assertion ready to evaluate the complete
// model -> document mapping of its artifact kind.
type Checker interface {
	Check(models map[string]any) error
}

// Field documents one argument field for schema output.
type Field struct {
	Name     string
	Type     string
	Required bool
}

// Decl declares one builtin: its identifier, the artifact kind it
// consumes, and how to bind raw argument blocks into a Checker.
type Decl struct {
	Name       string
	Capability artifacts.Kind
	Doc        string
	Fields     []Field
	bind       func(args []map[string]any) (Checker, error)
}

// Binding is a builtin leaf's execution binding. Err carries an argument
// validation failure detected at bind time; such a binding still executes,
// producing a fail outcome with the validation message.
type Binding struct {
	Name       string
	Capability artifacts.Kind
	checker    Checker
	Err        error
}

// Run evaluates the binding against the model mapping for its capability.
func (b *Binding) Run(models map[string]any) error {
	if b.Err != nil {
		return b.Err
	}
	return b.checker.Check(models)
}

// Registry maps builtin identifiers to their declarations.
type Registry struct {
	decls map[string]Decl
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{decls: make(map[string]Decl)}
}

// Register adds a declaration, replacing any previous one with the same name.
func (r *Registry) Register(d Decl) {
	r.decls[d.Name] = d
}

// Names returns all registered identifiers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.decls))
	for name := range r.decls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a declaration by identifier.
func (r *Registry) Lookup(name string) (Decl, bool) {
	d, ok := r.decls[name]
	return d, ok
}

// Bind resolves an identifier and validates its argument blocks.
// An unknown identifier is an *UnknownError. Argument validation failures
// are not errors here: they are recorded on the returned binding so the
// executor reports them as leaf failures.
func (r *Registry) Bind(name string, args []map[string]any) (*Binding, error) {
	d, ok := r.decls[name]
	if !ok {
		return nil, &UnknownError{Name: name}
	}
	checker, err := d.bind(args)
	if err != nil {
		return &Binding{
			Name:       name,
			Capability: d.Capability,
			Err:        &ArgumentError{Builtin: name, Err: err},
		}, nil
	}
	return &Binding{Name: name, Capability: d.Capability, checker: checker}, nil
}

// Default returns a registry with all shipped builtins.
func Default() *Registry {
	r := NewRegistry()
	r.Register(applicationsDecl())
	r.Register(relationsDecl())
	r.Register(offersDecl())
	r.Register(endpointsDecl())
	return r
}
