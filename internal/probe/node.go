// Package probe resolves heterogeneous probe references into a unified
// in-memory tree and defines the node types the executor and aggregator
// consume.
package probe

import (
	"fmt"
	"strings"

	"medic/internal/artifacts"
	"medic/internal/builtin"
	"medic/internal/scriptlet"
)

// Kind classifies a resolved probe node.
type Kind string

const (
	KindScriptlet Kind = "scriptlet"
	KindRuleset   Kind = "ruleset"
	KindBuiltin   Kind = "builtin"
	KindDirectory Kind = "directory"
)

// Node is one resolved unit in the probe tree. Only ruleset and directory
// nodes carry children; scriptlet and builtin nodes are always leaves.
// A node with Err set could not be resolved: its subtree is reported as
// "could not be evaluated", never as pass or fail.
type Node struct {
	Name     string
	Ref      string
	Kind     Kind
	Children []*Node

	Script  *scriptlet.Script // execution binding for scriptlet leaves
	Builtin *builtin.Binding  // execution binding for builtin leaves

	Err error // build-time resolution failure, fatal to this subtree only
}

// Leaf reports whether the node is a scriptlet or builtin leaf.
func (n *Node) Leaf() bool {
	return n.Kind == KindScriptlet || n.Kind == KindBuiltin
}

// Capabilities returns the artifact kinds this leaf declares it can
// evaluate. Empty for non-leaves, unresolved nodes, and scriptlets that
// implement none of the recognized entry points.
func (n *Node) Capabilities() []artifacts.Kind {
	if n.Err != nil {
		return nil
	}
	switch n.Kind {
	case KindScriptlet:
		if n.Script == nil {
			return nil
		}
		return n.Script.Capabilities()
	case KindBuiltin:
		if n.Builtin == nil {
			return nil
		}
		return []artifacts.Kind{n.Builtin.Capability}
	}
	return nil
}

// Walk visits the node and all descendants depth-first in declared order.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Leaves returns all resolvable leaves beneath the node, depth-first.
func (n *Node) Leaves() []*Node {
	var leaves []*Node
	n.Walk(func(node *Node) {
		if node.Leaf() && node.Err == nil {
			leaves = append(leaves, node)
		}
	})
	return leaves
}

// CycleError reports a ruleset that transitively includes its own
// reference. The chain names every reference on the offending path.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "ruleset cycle: " + strings.Join(e.Chain, " -> ")
}

// ResolutionError reports a reference that fetched but could not be
// expanded into a probe node: undecodable content, a ruleset reference
// resolving to a directory, or similar.
type ResolutionError struct {
	Ref string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Ref, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
