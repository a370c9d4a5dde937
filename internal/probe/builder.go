package probe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"medic/internal/builtin"
	"medic/internal/fetch"
	"medic/internal/logging"
	"medic/internal/ruleset"
	"medic/internal/scriptlet"
)

// Resolver materializes one probe reference as local content.
// *fetch.Fetcher implements it.
type Resolver interface {
	Resolve(ctx context.Context, raw string) (fetch.Handle, error)
}

// Builder expands probe references into probe trees. A single Builder is
// scoped to one run and shares the run's fetch cache.
type Builder struct {
	fetcher  Resolver
	registry *builtin.Registry
	log      *slog.Logger
}

// NewBuilder returns a Builder using the given fetcher and builtin registry.
func NewBuilder(fetcher Resolver, registry *builtin.Registry) *Builder {
	return &Builder{
		fetcher:  fetcher,
		registry: registry,
		log:      logging.New("probe"),
	}
}

// Build expands one reference with its declared type into a probe tree.
// Failures to fetch or expand the reference itself are returned as an
// error; failures inside nested entries are recorded on the affected
// child node so sibling subtrees resolve independently.
func (b *Builder) Build(ctx context.Context, raw string, kind Kind, name string) (*Node, error) {
	return b.build(ctx, raw, kind, name, "", nil)
}

// build carries the set of reference strings currently being expanded on
// this path; re-encountering one is a cycle, detected before recursing.
func (b *Builder) build(ctx context.Context, raw string, kind Kind, name, baseDir string, path []string) (*Node, error) {
	raw = resolveRelative(raw, baseDir)
	key := canonicalKey(raw)
	if slices.Contains(path, key) {
		return nil, &CycleError{Chain: append(append([]string{}, path...), key)}
	}

	switch kind {
	case KindScriptlet:
		return b.buildScriptlet(ctx, raw, name, path)
	case KindRuleset:
		return b.buildRuleset(ctx, raw, name, append(path, key))
	case KindBuiltin:
		return b.buildBuiltin(raw, name, nil)
	default:
		return nil, &ResolutionError{Ref: raw, Err: fmt.Errorf("unknown probe type %q", kind)}
	}
}

// buildScriptlet expands a scriptlet reference. A reference resolving to a
// directory becomes an implicit ruleset over its children.
func (b *Builder) buildScriptlet(ctx context.Context, raw, name string, path []string) (*Node, error) {
	h, err := b.fetcher.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	if h.IsDir {
		return b.buildDirectory(h.Path, raw, name)
	}
	return b.scriptletLeaf(h.Path, raw, name)
}

func (b *Builder) scriptletLeaf(localPath, raw, name string) (*Node, error) {
	script, err := scriptlet.Load(localPath)
	if err != nil {
		return nil, &ResolutionError{Ref: raw, Err: err}
	}
	if name == "" {
		name = filepath.Base(localPath)
	}
	return &Node{Name: name, Ref: raw, Kind: KindScriptlet, Script: script}, nil
}

// buildDirectory expands a directory into an implicit ruleset: every
// immediate child file becomes a scriptlet leaf and every sub-directory
// recurses. Children are ordered lexicographically by file name so the
// expansion is deterministic across runs.
func (b *Builder) buildDirectory(dir, raw, name string) (*Node, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ResolutionError{Ref: raw, Err: err}
	}
	if name == "" {
		name = filepath.Base(dir)
	}
	node := &Node{Name: name, Ref: raw, Kind: KindDirectory}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		childPath := filepath.Join(dir, entry.Name())
		childRef := raw + "/" + entry.Name()
		var child *Node
		var childErr error
		if entry.IsDir() {
			child, childErr = b.buildDirectory(childPath, childRef, entry.Name())
		} else {
			child, childErr = b.scriptletLeaf(childPath, childRef, entry.Name())
		}
		if childErr != nil {
			b.log.Warn("probe could not be resolved", "ref", childRef, "error", childErr)
			child = &Node{Name: entry.Name(), Ref: childRef, Kind: KindScriptlet, Err: childErr}
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// buildRuleset fetches and parses a ruleset document, then builds one
// child per listed entry. Entry failures are recorded on the child so the
// remaining entries still resolve.
func (b *Builder) buildRuleset(ctx context.Context, raw, name string, path []string) (*Node, error) {
	h, err := b.fetcher.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	if h.IsDir {
		return nil, &ResolutionError{Ref: raw, Err: fmt.Errorf("ruleset reference resolved to a directory")}
	}
	doc, err := ruleset.ParseFile(h.Path)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = doc.Name
	}
	node := &Node{Name: name, Ref: raw, Kind: KindRuleset}
	baseDir := filepath.Dir(h.Path)

	for _, entry := range doc.Probes {
		var child *Node
		var childErr error
		if ident, ok := entry.Builtin(); ok {
			child, childErr = b.buildBuiltin(ident, entry.DisplayName(), entry.With)
		} else {
			child, childErr = b.build(ctx, entry.URL, entryKind(entry.Type), entry.DisplayName(), baseDir, path)
		}
		if childErr != nil {
			b.log.Warn("probe could not be resolved", "ruleset", doc.Name, "ref", entry.URL, "error", childErr)
			child = &Node{
				Name: entry.DisplayName(),
				Ref:  entry.URL,
				Kind: entryKind(entry.Type),
				Err:  childErr,
			}
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// buildBuiltin resolves a builtin identifier against the registry and
// validates its argument blocks. Validation failures live on the binding
// and surface as leaf fail outcomes; an unknown identifier is fatal to
// the leaf.
func (b *Builder) buildBuiltin(ident, name string, args []map[string]any) (*Node, error) {
	binding, err := b.registry.Bind(ident, args)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = ident
	}
	return &Node{Name: name, Ref: ident, Kind: KindBuiltin, Builtin: binding}, nil
}

func entryKind(entryType string) Kind {
	switch entryType {
	case ruleset.TypeRuleset:
		return KindRuleset
	case ruleset.TypeScriptlet:
		return KindScriptlet
	default:
		return KindBuiltin
	}
}

// resolveRelative anchors relative local references against the directory
// of the ruleset document that declared them.
func resolveRelative(raw, baseDir string) string {
	if baseDir == "" {
		return raw
	}
	ref, err := fetch.ParseRef(raw)
	if err != nil || ref.Scheme != fetch.SchemeFile || filepath.IsAbs(ref.Path) {
		return raw
	}
	return filepath.Join(baseDir, ref.Path)
}

// canonicalKey normalizes a reference string for cycle detection: local
// paths compare by absolute cleaned path, remote references by their
// exact reference string.
func canonicalKey(raw string) string {
	ref, err := fetch.ParseRef(raw)
	if err != nil || ref.Scheme != fetch.SchemeFile {
		return raw
	}
	abs, err := filepath.Abs(ref.Path)
	if err != nil {
		return ref.Path
	}
	return abs
}
