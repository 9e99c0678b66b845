package graph

import (
	"github.com/ritzau/procgraph/pkg/model"
)

// exportOrder lists the clusters that appear in the output:
// setup, the streams sorted by key, then env and exit when active.
func (a *Assembler) exportOrder() []string {
	order := make([]string, 0, len(a.clusters))
	if a.active[SetupCluster] {
		order = append(order, SetupCluster)
	}
	order = append(order, a.StreamKeys()...)
	for _, key := range []string{EnvCluster, ExitCluster} {
		if a.active[key] {
			order = append(order, key)
		}
	}
	return order
}

// Export flattens the finalized graph for renderers. Inactive synthetic
// clusters are omitted; Finalize never creates edges into them.
func (a *Assembler) Export() (*model.Graph, error) {
	if !a.finalized {
		return nil, ErrNotFinalized
	}

	g := &model.Graph{
		Name:        a.name,
		Clusters:    make([]model.Cluster, 0, len(a.clusters)),
		GlobalEdges: append([]model.Edge{}, a.globalEdges...),
		Diagnostics: append([]model.Diagnostic{}, a.diagnostics...),
	}

	for _, key := range a.exportOrder() {
		g.Clusters = append(g.Clusters, exportCluster(a.clusters[key]))
	}

	return g, nil
}

func exportCluster(c *StreamCluster) model.Cluster {
	nodes := make([]model.NodeView, 0, len(c.Nodes()))
	for _, n := range c.Nodes() {
		nodes = append(nodes, model.NodeView{
			ID:    n.ID,
			Kind:  n.Kind,
			Label: n.Label,
		})
	}

	return model.Cluster{
		Key:   c.Key(),
		Nodes: nodes,
		Edges: append([]model.Edge{}, c.Edges()...),
	}
}
