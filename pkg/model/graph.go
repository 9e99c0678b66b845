package model

// Graph is the flattened result of a compilation.
// It is the only structure renderers and the web layer consume.
type Graph struct {
	Name        string       `json:"name"`
	Clusters    []Cluster    `json:"clusters"`
	GlobalEdges []Edge       `json:"globalEdges"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Cluster is the exported view of one stream cluster
type Cluster struct {
	Key   string     `json:"key"`
	Nodes []NodeView `json:"nodes"`
	Edges []Edge     `json:"edges"`
}

// NodeView is the exported view of a node
type NodeView struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Label string   `json:"label"`
}

// Cluster returns the exported cluster with the given key
func (g *Graph) Cluster(key string) (*Cluster, bool) {
	for i := range g.Clusters {
		if g.Clusters[i].Key == key {
			return &g.Clusters[i], true
		}
	}
	return nil, false
}

// HasCluster reports whether a cluster with the given key was exported
func (g *Graph) HasCluster(key string) bool {
	_, ok := g.Cluster(key)
	return ok
}

// AllEdges returns the local edges of every cluster followed by the global edges
func (g *Graph) AllEdges() []Edge {
	var edges []Edge
	for _, c := range g.Clusters {
		edges = append(edges, c.Edges...)
	}
	return append(edges, g.GlobalEdges...)
}

// NodeCount returns the number of exported nodes
func (g *Graph) NodeCount() int {
	n := 0
	for _, c := range g.Clusters {
		n += len(c.Nodes)
	}
	return n
}

// EdgesBetween returns all global edges from one node to another
func (g *Graph) EdgesBetween(from, to string) []Edge {
	var edges []Edge
	for _, e := range g.GlobalEdges {
		if e.From == from && e.To == to {
			edges = append(edges, e)
		}
	}
	return edges
}
