package graph

import (
	"fmt"
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/ritzau/procgraph/pkg/model"
)

// FlowNode is a node of the compiled control-flow graph
type FlowNode struct {
	gid     int64
	NodeID  string // e.g. "client.3"
	Cluster string
	Kind    model.NodeKind
	Label   string
}

// ID implements gonum graph.Node
func (n *FlowNode) ID() int64 { return n.gid }

// FlowLine is one edge of the flow graph. Parallel lines between the same
// pair of nodes are kept, one per exported edge.
type FlowLine struct {
	F, T *FlowNode
	UID  int64
	Edge model.Edge
}

func (l FlowLine) From() gonum.Node { return l.F }
func (l FlowLine) To() gonum.Node { return l.T }
func (l FlowLine) ID() int64 { return l.UID }

func (l FlowLine) ReversedLine() gonum.Line {
	return FlowLine{F: l.T, T: l.F, UID: l.UID, Edge: l.Edge}
}

// FlowGraph is the exported graph loaded into a gonum directed multigraph
// for analysis. Sync markers carry no edges and are left out.
type FlowGraph struct {
	graph   *multi.DirectedGraph
	nodes   map[string]*FlowNode // node ID -> node
	byGID   map[int64]*FlowNode
	nextGID int64
	nextUID int64
}

// NewFlowGraph builds a flow graph from an exported graph. Every edge must
// reference exported nodes.
func NewFlowGraph(g *model.Graph) (*FlowGraph, error) {
	fg := &FlowGraph{
		graph: multi.NewDirectedGraph(),
		nodes: make(map[string]*FlowNode),
		byGID: make(map[int64]*FlowNode),
	}

	for _, c := range g.Clusters {
		for _, n := range c.Nodes {
			if n.Kind == model.NodeKindSync {
				continue
			}
			fg.addNode(c.Key, n)
		}
	}

	for _, e := range g.AllEdges() {
		if err := fg.addEdge(e); err != nil {
			return nil, err
		}
	}

	return fg, nil
}

func (fg *FlowGraph) addNode(cluster string, n model.NodeView) {
	if _, exists := fg.nodes[n.ID]; exists {
		return
	}

	node := &FlowNode{
		gid:     fg.nextGID,
		NodeID:  n.ID,
		Cluster: cluster,
		Kind:    n.Kind,
		Label:   n.Label,
	}
	fg.nodes[n.ID] = node
	fg.byGID[node.gid] = node
	fg.graph.AddNode(node)
	fg.nextGID++
}

func (fg *FlowGraph) addEdge(e model.Edge) error {
	from, ok := fg.nodes[e.From]
	if !ok {
		return fmt.Errorf("edge %s references unknown node %q", e.ID, e.From)
	}
	to, ok := fg.nodes[e.To]
	if !ok {
		return fmt.Errorf("edge %s references unknown node %q", e.ID, e.To)
	}

	fg.graph.SetLine(FlowLine{F: from, T: to, UID: fg.nextUID, Edge: e})
	fg.nextUID++
	return nil
}

// Graph returns the underlying gonum multigraph
func (fg *FlowGraph) Graph() *multi.DirectedGraph {
	return fg.graph
}

// Node returns a flow node by node ID
func (fg *FlowGraph) Node(id string) (*FlowNode, bool) {
	node, ok := fg.nodes[id]
	return node, ok
}

// NodeByGID returns a flow node by its gonum ID
func (fg *FlowGraph) NodeByGID(gid int64) *FlowNode {
	return fg.byGID[gid]
}

// Nodes returns all flow nodes sorted by node ID
func (fg *FlowGraph) Nodes() []*FlowNode {
	nodes := make([]*FlowNode, 0, len(fg.nodes))
	for _, node := range fg.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].NodeID < nodes[j].NodeID
	})
	return nodes
}

// Successors returns the sorted node IDs directly reachable from id
func (fg *FlowGraph) Successors(id string) []string {
	node, ok := fg.nodes[id]
	if !ok {
		return nil
	}

	var result []string
	iter := fg.graph.From(node.ID())
	for iter.Next() {
		if n := fg.byGID[iter.Node().ID()]; n != nil {
			result = append(result, n.NodeID)
		}
	}
	sort.Strings(result)
	return result
}

// Labels returns the sorted labels of all lines from one node to another
func (fg *FlowGraph) Labels(from, to string) []string {
	f, ok := fg.nodes[from]
	if !ok {
		return nil
	}
	t, ok := fg.nodes[to]
	if !ok {
		return nil
	}

	var labels []string
	iter := fg.graph.Lines(f.ID(), t.ID())
	for iter.Next() {
		if l, ok := iter.Line().(FlowLine); ok {
			labels = append(labels, l.Edge.Label)
		}
	}
	sort.Strings(labels)
	return labels
}
