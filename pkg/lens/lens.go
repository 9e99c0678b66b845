// Package lens derives filtered views of a compiled graph: the clusters
// around a focus set, and the difference between two compilations.
package lens

import (
	"fmt"

	"github.com/ritzau/procgraph/pkg/model"
)

// Config selects the part of a graph to show
type Config struct {
	Focus    []string `json:"focus"`    // Cluster keys at distance 0; empty shows everything
	Distance int      `json:"distance"` // Clusters at most this many hops from the focus are kept
	HideSync bool     `json:"hideSync"` // Drop begin/end markers of trigger lists
}

// Apply returns a copy of g restricted to the clusters the lens keeps.
// Global edges survive only when both ends do; diagnostics follow their
// cluster.
func Apply(g *model.Graph, cfg Config) (*model.Graph, error) {
	for _, key := range cfg.Focus {
		if !g.HasCluster(key) {
			return nil, fmt.Errorf("unknown cluster %q", key)
		}
	}
	if cfg.Distance < 0 {
		return nil, fmt.Errorf("negative distance %d", cfg.Distance)
	}

	keep := make(map[string]bool)
	if len(cfg.Focus) == 0 {
		for _, c := range g.Clusters {
			keep[c.Key] = true
		}
	} else {
		for key, d := range ComputeDistances(g, cfg.Focus) {
			if d != Infinite && d <= cfg.Distance {
				keep[key] = true
			}
		}
	}

	out := &model.Graph{
		Name:        g.Name,
		Clusters:    []model.Cluster{},
		GlobalEdges: []model.Edge{},
		Diagnostics: []model.Diagnostic{},
	}

	kept := make(map[string]bool)
	for _, c := range g.Clusters {
		if !keep[c.Key] {
			continue
		}
		view := model.Cluster{Key: c.Key, Nodes: []model.NodeView{}, Edges: c.Edges}
		for _, n := range c.Nodes {
			if cfg.HideSync && n.Kind == model.NodeKindSync {
				continue
			}
			view.Nodes = append(view.Nodes, n)
			kept[n.ID] = true
		}
		if view.Edges == nil {
			view.Edges = []model.Edge{}
		}
		out.Clusters = append(out.Clusters, view)
	}

	for _, e := range g.GlobalEdges {
		if kept[e.From] && kept[e.To] {
			out.GlobalEdges = append(out.GlobalEdges, e)
		}
	}
	for _, d := range g.Diagnostics {
		if keep[d.Cluster] {
			out.Diagnostics = append(out.Diagnostics, d)
		}
	}

	return out, nil
}
