package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/ritzau/procgraph/pkg/graph"
	"github.com/ritzau/procgraph/pkg/model"
)

// PrintSummary prints a short colored report of a compiled graph
func PrintSummary(w io.Writer, source string, g *model.Graph) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	bold.Fprintf(w, "Procedure: %s\n", g.Name)
	fmt.Fprintf(w, "Source: %s\n", source)

	streams := 0
	var synthetic []string
	for _, c := range g.Clusters {
		if graph.IsDefault(c.Key) {
			synthetic = append(synthetic, c.Key)
		} else {
			streams++
		}
	}
	fmt.Fprintf(w, "Streams: %d, nodes: %d, cross-stream edges: %d\n",
		streams, g.NodeCount(), len(g.GlobalEdges))
	cyan.Fprintf(w, "Synthetic clusters: %v\n", synthetic)

	if env, ok := g.Cluster(graph.EnvCluster); ok && len(env.Nodes) > 0 {
		envID := env.Nodes[0].ID
		yellow.Fprintln(w, "Environment dependencies:")
		for _, e := range g.GlobalEdges {
			switch envID {
			case e.From:
				fmt.Fprintf(w, "  env -> %s (%s)\n", e.To, e.Label)
			case e.To:
				fmt.Fprintf(w, "  %s -> env (%s)\n", e.From, e.Label)
			}
		}
	}

	if len(g.Diagnostics) == 0 {
		green.Fprintln(w, "✓ No diagnostics")
		return
	}

	fmt.Fprintln(w)
	PrintDiagnostics(w, g.Diagnostics)
	red.Fprintf(w, "%d diagnostic(s)\n", len(g.Diagnostics))
}

// PrintDiagnostics prints one line per diagnostic, colored by severity
func PrintDiagnostics(w io.Writer, diagnostics []model.Diagnostic) {
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	for _, d := range diagnostics {
		c := yellow
		if d.Severity == model.SeverityError {
			c = red
		}
		c.Fprintf(w, "%-7s ", d.Severity)
		fmt.Fprintf(w, "[%s] %s: %s\n", d.Kind, d.Node, d.Message)
	}
}
