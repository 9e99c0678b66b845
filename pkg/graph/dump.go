package graph

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ritzau/procgraph/pkg/model"
)

// Dump writes a deterministic, line-oriented listing of an exported graph:
//
//	graph <name>
//	cluster <key>
//	  node <id> <kind> "<label>"
//	  edge <id> <from> -> <to> "<label>"
//	global
//	  edge <id> <from> -> <to> "<label>"
//	diagnostics
//	  <severity> <kind> <node> "<message>"
func Dump(w io.Writer, g *model.Graph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "graph %s\n", g.Name)
	for _, c := range g.Clusters {
		fmt.Fprintf(bw, "cluster %s\n", c.Key)
		for _, n := range c.Nodes {
			fmt.Fprintf(bw, "  node %s %s %q\n", n.ID, n.Kind, n.Label)
		}
		for _, e := range c.Edges {
			writeEdge(bw, e)
		}
	}

	fmt.Fprintln(bw, "global")
	for _, e := range g.GlobalEdges {
		writeEdge(bw, e)
	}

	if len(g.Diagnostics) > 0 {
		fmt.Fprintln(bw, "diagnostics")
		for _, d := range g.Diagnostics {
			fmt.Fprintf(bw, "  %s %s %s %q\n", d.Severity, d.Kind, d.Node, d.Message)
		}
	}

	return bw.Flush()
}

func writeEdge(w io.Writer, e model.Edge) {
	fmt.Fprintf(w, "  edge %s %s -> %s %q\n", e.ID, e.From, e.To, e.Label)
}

// DumpString returns the Dump output as a string
func DumpString(g *model.Graph) string {
	var sb strings.Builder
	// strings.Builder never fails
	_ = Dump(&sb, g)
	return sb.String()
}
