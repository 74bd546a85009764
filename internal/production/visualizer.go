package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/sagax/internal/core"
)

// terminalNode is the DOT node id used for the terminal state.
const terminalNode = "[*]"

// DefaultVisualizer renders saga definitions.
type DefaultVisualizer struct{}

// ExportDOT generates Graphviz DOT source for the saga layout.
// current is highlighted; pass core.State("") once the saga has completed.
func (v *DefaultVisualizer) ExportDOT(layout core.Layout, current core.State) string {
	var buf bytes.Buffer
	buf.WriteString(`digraph Saga {
  rankdir=LR;
  node [shape=box, fontsize=10, style=rounded];
  edge [fontsize=9];
`)

	for _, state := range layout.States {
		style := ""
		if state == current {
			style = ` style=filled fillcolor=lightgreen`
		}
		if state == layout.Initial {
			style += ` penwidth=2`
		}
		fmt.Fprintf(&buf, "  %q [label=%q%s];\n", string(state), string(state), style)
	}

	terminalStyle := ""
	if current.IsTerminal() {
		terminalStyle = ` style=filled fillcolor=lightgreen`
	}
	if hasTerminal(layout) {
		fmt.Fprintf(&buf, "  %q [label=\"\" shape=doublecircle width=0.2%s];\n", terminalNode, terminalStyle)
	}

	for _, edge := range collectEdges(layout) {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", edge.From, edge.To, edge.Label)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ExportJSON serializes the layout to JSON.
func (v *DefaultVisualizer) ExportJSON(layout core.Layout) ([]byte, error) {
	return json.MarshalIndent(layout, "", "  ")
}

// ExportYAML serializes the layout to YAML.
func (v *DefaultVisualizer) ExportYAML(layout core.Layout) ([]byte, error) {
	return yaml.Marshal(layout)
}

// Edge represents a transition edge.
type Edge struct {
	From  string
	To    string
	Label string
}

// collectEdges returns one edge per transition, in state declaration order,
// labelled with the event types the source state handles.
func collectEdges(layout core.Layout) []Edge {
	seen := make(map[core.State]bool, len(layout.States))
	order := append([]core.State(nil), layout.States...)
	for _, s := range order {
		seen[s] = true
	}
	// undeclared sources still render, sorted for stable output
	var extra []core.State
	for from := range layout.Transitions {
		if !seen[from] {
			extra = append(extra, from)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	order = append(order, extra...)

	var edges []Edge
	for _, from := range order {
		to, ok := layout.Transitions[from]
		if !ok {
			continue
		}
		target := string(to)
		if to.IsTerminal() {
			target = terminalNode
		}
		edges = append(edges, Edge{
			From:  string(from),
			To:    target,
			Label: strings.Join(layout.Events[from], ", "),
		})
	}
	return edges
}

func hasTerminal(layout core.Layout) bool {
	for _, to := range layout.Transitions {
		if to.IsTerminal() {
			return true
		}
	}
	return false
}
