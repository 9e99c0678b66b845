package render

import (
	"fmt"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"

	"github.com/ritzau/procgraph/pkg/graph"
	"github.com/ritzau/procgraph/pkg/model"
)

// dotNode carries the DOT identity and styling of one exported node
type dotNode struct {
	gid  int64
	view model.NodeView
}

func (n dotNode) ID() int64 { return n.gid }
func (n dotNode) DOTID() string { return n.view.ID }

func (n dotNode) Attributes() []encoding.Attribute {
	shape := "box"
	switch n.view.Kind {
	case model.NodeKindWait:
		shape = "diamond"
	case model.NodeKindLabel:
		shape = "ellipse"
	}
	return []encoding.Attribute{
		{Key: "label", Value: n.view.Label},
		{Key: "shape", Value: shape},
	}
}

// dotLine is one exported edge; global edges are dashed
type dotLine struct {
	f, t   dotNode
	uid    int64
	edge   model.Edge
	global bool
}

func (l dotLine) From() gonum.Node { return l.f }
func (l dotLine) To() gonum.Node { return l.t }
func (l dotLine) ID() int64 { return l.uid }
func (l dotLine) ReversedLine() gonum.Line { return dotLine{f: l.t, t: l.f, uid: l.uid, edge: l.edge, global: l.global} }

func (l dotLine) Attributes() []encoding.Attribute {
	list := []encoding.Attribute{{Key: "label", Value: l.edge.Label}}
	if l.global {
		list = append(list, encoding.Attribute{Key: "style", Value: "dashed"})
	}
	if l.edge.Label == graph.JumpLabel {
		list = append(list, encoding.Attribute{Key: "color", Value: "blue"})
	}
	return list
}

// subgraph renders one cluster as a "cluster_<key>" DOT subgraph
type subgraph struct {
	*multi.DirectedGraph
	key string
}

func (s subgraph) DOTID() string { return "cluster_" + s.key }

func (s subgraph) DOTAttributers() (g, n, e encoding.Attributer) {
	return attrs{{Key: "label", Value: s.key}}, attrs{}, attrs{}
}

// flowDOT is the whole graph with one subgraph per cluster
type flowDOT struct {
	*multi.DirectedGraph
	name     string
	clusters []dot.Graph
}

func (f flowDOT) DOTID() string { return f.name }

func (f flowDOT) Structure() []dot.Graph { return f.clusters }

func (f flowDOT) DOTAttributers() (g, n, e encoding.Attributer) {
	return attrs{{Key: "rankdir", Value: "TB"}, {Key: "compound", Value: "true"}},
		attrs{{Key: "fontname", Value: "Helvetica"}},
		attrs{{Key: "fontname", Value: "Helvetica"}}
}

type attrs []encoding.Attribute

func (a attrs) Attributes() []encoding.Attribute { return a }

// DOT renders the graph in Graphviz format. Sync markers carry no edges
// and are not drawn.
func DOT(g *model.Graph) ([]byte, error) {
	top := flowDOT{DirectedGraph: multi.NewDirectedGraph(), name: dotName(g.Name)}
	nodes := make(map[string]dotNode)
	var gid int64

	for _, c := range g.Clusters {
		sub := subgraph{DirectedGraph: multi.NewDirectedGraph(), key: c.Key}
		for _, v := range c.Nodes {
			if v.Kind == model.NodeKindSync {
				continue
			}
			n := dotNode{gid: gid, view: v}
			gid++
			nodes[v.ID] = n
			top.AddNode(n)
			sub.AddNode(n)
		}
		top.clusters = append(top.clusters, sub)
	}

	var uid int64
	add := func(e model.Edge, global bool) error {
		from, ok := nodes[e.From]
		if !ok {
			return fmt.Errorf("edge %s: unknown node %q", e.ID, e.From)
		}
		to, ok := nodes[e.To]
		if !ok {
			return fmt.Errorf("edge %s: unknown node %q", e.ID, e.To)
		}
		top.SetLine(dotLine{f: from, t: to, uid: uid, edge: e, global: global})
		uid++
		return nil
	}

	for _, c := range g.Clusters {
		for _, e := range c.Edges {
			if err := add(e, false); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range g.GlobalEdges {
		if err := add(e, true); err != nil {
			return nil, err
		}
	}

	return dot.MarshalMulti(top, top.name, "", "  ")
}

func dotName(name string) string {
	if name == "" {
		return "procedure"
	}
	return name
}
