package cycles

import (
	"fmt"
	"strings"

	"github.com/ritzau/procgraph/pkg/graph"
	"github.com/ritzau/procgraph/pkg/logging"
	"github.com/ritzau/procgraph/pkg/model"
)

// Analyze checks an exported graph for loops and for nodes that setup can
// never reach. Both are reported as warnings; neither is an error in a
// test procedure on its own.
func Analyze(g *model.Graph) ([]model.Diagnostic, error) {
	fg, err := graph.NewFlowGraph(g)
	if err != nil {
		return nil, fmt.Errorf("building flow graph: %w", err)
	}

	var diagnostics []model.Diagnostic

	for _, loop := range FindLoops(fg) {
		first, _ := fg.Node(loop.Nodes[0])
		diagnostics = append(diagnostics, model.Diagnostic{
			Severity: model.SeverityWarning,
			Kind:     model.DiagnosticLoop,
			Cluster:  first.Cluster,
			Node:     first.NodeID,
			Message:  fmt.Sprintf("control flow loop through %s", strings.Join(loop.Nodes, ", ")),
		})
	}

	roots := Roots(g)
	if len(roots) == 0 {
		return diagnostics, nil
	}

	unreachable, err := Unreachable(fg, roots...)
	if err != nil {
		return nil, err
	}
	for _, id := range unreachable {
		node, _ := fg.Node(id)
		diagnostics = append(diagnostics, model.Diagnostic{
			Severity: model.SeverityWarning,
			Kind:     model.DiagnosticUnreachable,
			Cluster:  node.Cluster,
			Node:     id,
			Message:  fmt.Sprintf("%s %q is not reachable from setup", node.Kind, node.Label),
		})
	}

	logging.Debug("analyzed flow graph", "loops", len(diagnostics)-len(unreachable), "unreachable", len(unreachable))
	return diagnostics, nil
}

// Roots returns the entry nodes of a graph: the setup node, and the env
// node when env supplies inputs, since those are as much an entry point
func Roots(g *model.Graph) []string {
	var roots []string
	for _, key := range []string{graph.SetupCluster, graph.EnvCluster} {
		if c, ok := g.Cluster(key); ok && len(c.Nodes) > 0 {
			roots = append(roots, c.Nodes[0].ID)
		}
	}
	return roots
}
