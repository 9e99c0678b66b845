package cycles

import (
	"fmt"
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/ritzau/procgraph/pkg/graph"
)

// Unreachable returns the sorted IDs of nodes that cannot be reached from
// any of the roots by following edges
func Unreachable(fg *graph.FlowGraph, roots ...string) ([]string, error) {
	reached := make(map[string]bool)
	for _, root := range roots {
		start, ok := fg.Node(root)
		if !ok {
			return nil, fmt.Errorf("root node %q not in graph", root)
		}

		bf := traverse.BreadthFirst{
			Visit: func(n gonum.Node) {
				if node := fg.NodeByGID(n.ID()); node != nil {
					reached[node.NodeID] = true
				}
			},
		}
		bf.Walk(fg.Graph(), start, nil)
	}

	var result []string
	for _, node := range fg.Nodes() {
		if !reached[node.NodeID] {
			result = append(result, node.NodeID)
		}
	}
	sort.Strings(result)
	return result, nil
}
