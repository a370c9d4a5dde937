package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"

	"medic/internal/engine"
)

// Status symbols, matching the summary line.
const (
	symbolPass          = "\U0001F7E2" // green circle
	symbolFail          = "\U0001F534" // red circle
	symbolUnresolved    = "❗"          // exclamation mark
	symbolNotApplicable = "⚪"          // white circle
	symbolCheck         = "✔"          // check mark
	symbolCross         = "✖"          // cross mark
)

// RenderTree writes the result tree in a connected-branch layout. With
// verbose set, leaves carry a per-capability breakdown.
func RenderTree(w io.Writer, root *ResultNode, verbose bool) {
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedLight)
	appendNode(l, root, verbose)
	fmt.Fprintln(w, l.Render())
}

func appendNode(l list.Writer, n *ResultNode, verbose bool) {
	l.AppendItem(nodeLabel(n, verbose))
	if len(n.Children) == 0 {
		return
	}
	l.Indent()
	for _, child := range n.Children {
		appendNode(l, child, verbose)
	}
	l.UnIndent()
}

func nodeLabel(n *ResultNode, verbose bool) string {
	var label strings.Builder
	switch {
	case n.Unresolved:
		label.WriteString(symbolUnresolved)
	case n.NotApplicable:
		label.WriteString(symbolNotApplicable)
	case n.Status == engine.StatusFail:
		label.WriteString(symbolFail)
	default:
		label.WriteString(symbolPass)
	}
	label.WriteString(" ")
	label.WriteString(n.Name)

	switch {
	case n.Unresolved:
		label.WriteString(" (could not be evaluated)")
	case n.NotApplicable:
		label.WriteString(" (no applicable checks)")
	case verbose && len(n.Outcomes) > 0:
		var parts []string
		for _, o := range n.Outcomes {
			symbol := symbolCheck
			if o.Status == engine.StatusFail {
				symbol = symbolCross
			}
			parts = append(parts, symbol+" "+string(o.Capability))
		}
		label.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	return label.String()
}

// RenderTotals writes the run-wide summary line.
func RenderTotals(w io.Writer, s Summary) {
	total := s.Passed + s.Failed
	var parts []string
	if s.Passed > 0 {
		parts = append(parts, fmt.Sprintf("%s %d/%d", symbolPass, s.Passed, total))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%s %d/%d", symbolFail, s.Failed, total))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%s 0/0", symbolPass))
	}
	if s.Unresolved > 0 {
		parts = append(parts, fmt.Sprintf("%s %d unresolved", symbolUnresolved, s.Unresolved))
	}
	if s.NotApplicable > 0 {
		parts = append(parts, fmt.Sprintf("%s %d not applicable", symbolNotApplicable, s.NotApplicable))
	}
	fmt.Fprintf(w, "\nTotal: %s\n", strings.Join(parts, " "))
}

type jsonOutcome struct {
	Capability string `json:"capability"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

type jsonNode struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Kind          string        `json:"kind,omitempty"`
	Status        string        `json:"status"`
	Unresolved    bool          `json:"unresolved,omitempty"`
	Error         string        `json:"error,omitempty"`
	NotApplicable bool          `json:"not_applicable,omitempty"`
	Outcomes      []jsonOutcome `json:"outcomes,omitempty"`
	Children      []*jsonNode   `json:"children,omitempty"`
}

type jsonReport struct {
	Tree       *jsonNode `json:"tree"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Unresolved int       `json:"unresolved"`
}

// RenderJSON writes the full result tree plus counts as one JSON document.
func RenderJSON(w io.Writer, root *ResultNode, s Summary) error {
	out := jsonReport{
		Tree:       toJSONNode(root),
		Passed:     s.Passed,
		Failed:     s.Failed,
		Unresolved: s.Unresolved,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func toJSONNode(n *ResultNode) *jsonNode {
	jn := &jsonNode{
		ID:            n.ID,
		Name:          n.Name,
		Kind:          string(n.Kind),
		Status:        string(n.Status),
		Unresolved:    n.Unresolved,
		Error:         n.Err,
		NotApplicable: n.NotApplicable,
	}
	for _, o := range n.Outcomes {
		jn.Outcomes = append(jn.Outcomes, jsonOutcome{
			Capability: string(o.Capability),
			Status:     string(o.Status),
			Message:    o.Message,
		})
	}
	for _, child := range n.Children {
		jn.Children = append(jn.Children, toJSONNode(child))
	}
	return jn
}
