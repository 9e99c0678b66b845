package cycles

import (
	"sort"

	"github.com/ritzau/procgraph/pkg/graph"
)

// Loop is a set of nodes that can reach each other through control flow
type Loop struct {
	Nodes []string // Node IDs, sorted
}

// FindLoops finds all loops in the flow graph. A jump back into an
// earlier stream, or a wait signalling a name its own stream produces,
// shows up here.
func FindLoops(fg *graph.FlowGraph) []Loop {
	tarjan := NewTarjanSCC(fg.Graph())
	sccs := tarjan.FindSCCs()

	loops := make([]Loop, 0, len(sccs))
	for _, scc := range sccs {
		nodes := make([]string, 0, len(scc))
		for _, gid := range scc {
			if node := fg.NodeByGID(gid); node != nil {
				nodes = append(nodes, node.NodeID)
			}
		}
		sort.Strings(nodes)
		loops = append(loops, Loop{Nodes: nodes})
	}

	sort.Slice(loops, func(i, j int) bool {
		return loops[i].Nodes[0] < loops[j].Nodes[0]
	})
	return loops
}
