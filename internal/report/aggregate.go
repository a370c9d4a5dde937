// Package report folds per-leaf execution outcomes back into a result
// tree mirroring the probe tree, and renders it for humans and machines.
package report

import (
	"github.com/google/uuid"

	"medic/internal/engine"
	"medic/internal/probe"
)

// ResultNode mirrors one probe node with its outcomes attached. Built once
// per run, immutable afterward.
type ResultNode struct {
	ID       string
	Name     string
	Kind     probe.Kind
	Outcomes []engine.Outcome
	Children []*ResultNode

	// Status aggregates execution outcomes: fail iff any outcome in this
	// node or any descendant failed. A subtree with zero outcomes is
	// vacuously pass.
	Status engine.Status

	// Unresolved marks a subtree that could not be evaluated (fetch,
	// schema, cycle, or unknown-builtin failure). Shown distinctly from
	// evaluated-and-failed.
	Unresolved bool
	Err        string

	// NotApplicable marks a leaf with no applicable checks: it produced
	// zero outcomes and is neither pass nor fail.
	NotApplicable bool
}

// Summary holds run-wide counts across all leaf outcomes.
type Summary struct {
	Passed        int
	Failed        int
	Unresolved    int
	NotApplicable int
}

// Succeeded reports whether the run found no failures and resolved every
// reference.
func (s Summary) Succeeded() bool {
	return s.Failed == 0 && s.Unresolved == 0
}

// Reference is one invoker-supplied probe reference: either a resolved
// tree or the error that prevented building one.
type Reference struct {
	Raw  string
	Node *probe.Node
	Err  error
}

// Aggregate walks every reference's probe tree depth-first, attaching
// outcomes to the leaves that produced them and propagating failure
// upward through every ancestor. The returned root is synthetic, covering
// all supplied references.
func Aggregate(refs []Reference, outcomes []engine.Outcome) (*ResultNode, Summary) {
	byNode := make(map[*probe.Node][]engine.Outcome)
	for _, o := range outcomes {
		byNode[o.Node] = append(byNode[o.Node], o)
	}

	summary := Summary{}
	root := &ResultNode{ID: uuid.NewString(), Name: "Results", Status: engine.StatusPass}
	for _, ref := range refs {
		var child *ResultNode
		if ref.Err != nil {
			child = &ResultNode{
				ID:         uuid.NewString(),
				Name:       ref.Raw,
				Unresolved: true,
				Status:     engine.StatusPass,
				Err:        ref.Err.Error(),
			}
			summary.Unresolved++
		} else {
			child = aggregateNode(ref.Node, byNode, &summary)
		}
		root.Children = append(root.Children, child)
		if child.Status == engine.StatusFail {
			root.Status = engine.StatusFail
		}
	}
	return root, summary
}

func aggregateNode(node *probe.Node, byNode map[*probe.Node][]engine.Outcome, summary *Summary) *ResultNode {
	rn := &ResultNode{
		ID:     uuid.NewString(),
		Name:   node.Name,
		Kind:   node.Kind,
		Status: engine.StatusPass,
	}

	if node.Err != nil {
		rn.Unresolved = true
		rn.Err = node.Err.Error()
		summary.Unresolved++
		return rn
	}

	if node.Leaf() {
		rn.Outcomes = byNode[node]
		for _, o := range rn.Outcomes {
			switch o.Status {
			case engine.StatusPass:
				summary.Passed++
			case engine.StatusFail:
				summary.Failed++
				rn.Status = engine.StatusFail
			}
		}
		if len(rn.Outcomes) == 0 {
			rn.NotApplicable = true
			summary.NotApplicable++
		}
		return rn
	}

	for _, child := range node.Children {
		childResult := aggregateNode(child, byNode, summary)
		rn.Children = append(rn.Children, childResult)
		if childResult.Status == engine.StatusFail {
			rn.Status = engine.StatusFail
		}
	}
	return rn
}

// FailureMessages collects every failure and resolution error beneath the
// node, depth-first.
func (r *ResultNode) FailureMessages() []string {
	var msgs []string
	r.walk(func(n *ResultNode) {
		if n.Unresolved && n.Err != "" {
			msgs = append(msgs, n.Name+": "+n.Err)
		}
		for _, o := range n.Outcomes {
			if o.Status == engine.StatusFail && o.Message != "" {
				msgs = append(msgs, n.Name+" ("+string(o.Capability)+"): "+o.Message)
			}
		}
	})
	return msgs
}

func (r *ResultNode) walk(fn func(*ResultNode)) {
	fn(r)
	for _, child := range r.Children {
		child.walk(fn)
	}
}
