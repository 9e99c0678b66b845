package render

import (
	"fmt"
	"strings"

	"github.com/ritzau/procgraph/pkg/graph"
	"github.com/ritzau/procgraph/pkg/model"
)

// Mermaid produces a flowchart with one subgraph per cluster.
// Shapes: event [Rectangle], wait {Rhombus}, label ((Circle)).
// Local edges are solid, global edges dotted.
func Mermaid(g *model.Graph) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, c := range g.Clusters {
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID("c_"+c.Key), escapeMermaid(c.Key))
		for _, n := range c.Nodes {
			if n.Kind == model.NodeKindSync {
				continue
			}
			opener, closer := "[", "]"
			switch n.Kind {
			case model.NodeKindWait:
				opener, closer = "{", "}"
			case model.NodeKindLabel:
				opener, closer = "((", "))"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", sanitizeMermaidID(n.ID), opener, escapeMermaid(n.Label), closer)
		}
		sb.WriteString("    end\n")
	}

	for _, c := range g.Clusters {
		for _, e := range c.Edges {
			fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.From), sanitizeMermaidID(e.To))
		}
	}

	for _, e := range g.GlobalEdges {
		from, to := sanitizeMermaidID(e.From), sanitizeMermaidID(e.To)
		switch {
		case e.Label == "":
			fmt.Fprintf(&sb, "    %s -.-> %s\n", from, to)
		case e.Label == graph.JumpLabel:
			fmt.Fprintf(&sb, "    %s == \"%s\" ==> %s\n", from, e.Label, to)
		default:
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", from, escapeMermaid(e.Label), to)
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
