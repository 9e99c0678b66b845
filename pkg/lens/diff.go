package lens

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ritzau/procgraph/pkg/model"
)

// GraphDiff represents the difference between two compilations
type GraphDiff struct {
	AddedNodes    []model.NodeView `json:"addedNodes"`
	RemovedNodes  []string         `json:"removedNodes"`  // Node IDs
	ModifiedNodes []model.NodeView `json:"modifiedNodes"` // Same ID, new kind or label
	AddedEdges    []model.Edge     `json:"addedEdges"`
	RemovedEdges  []string         `json:"removedEdges"` // Edge keys (from|to|label)
	FullGraph     bool             `json:"fullGraph"`    // No previous snapshot existed
}

// Empty reports whether nothing changed
func (d *GraphDiff) Empty() bool {
	return !d.FullGraph &&
		len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ModifiedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0
}

// GraphSnapshot is an indexed graph state kept for diffing
type GraphSnapshot struct {
	Hash  string
	Nodes map[string]model.NodeView // node ID -> node
	Edges map[string]model.Edge     // edge key -> edge
}

// CreateSnapshot indexes a graph for later diffing. Edges are keyed by
// their endpoints and label, not their ID: IDs are sequence numbers and
// shift whenever an earlier edge appears or disappears.
func CreateSnapshot(g *model.Graph) *GraphSnapshot {
	snapshot := &GraphSnapshot{
		Nodes: make(map[string]model.NodeView),
		Edges: make(map[string]model.Edge),
	}
	for _, c := range g.Clusters {
		for _, n := range c.Nodes {
			snapshot.Nodes[n.ID] = n
		}
	}
	for _, e := range g.AllEdges() {
		snapshot.Edges[edgeKey(e)] = e
	}

	data, _ := json.Marshal(g)
	snapshot.Hash = fmt.Sprintf("%x", sha256.Sum256(data))
	return snapshot
}

// ComputeDiff computes what changed from a snapshot to a new graph.
// All slices are sorted.
func ComputeDiff(old *GraphSnapshot, g *model.Graph) *GraphDiff {
	next := CreateSnapshot(g)

	diff := &GraphDiff{
		AddedNodes:    []model.NodeView{},
		RemovedNodes:  []string{},
		ModifiedNodes: []model.NodeView{},
		AddedEdges:    []model.Edge{},
		RemovedEdges:  []string{},
	}
	if old == nil {
		diff.FullGraph = true
		old = &GraphSnapshot{}
	}
	if old.Hash == next.Hash {
		return diff
	}

	for _, id := range sortedKeys(next.Nodes) {
		n := next.Nodes[id]
		prev, exists := old.Nodes[id]
		switch {
		case !exists:
			diff.AddedNodes = append(diff.AddedNodes, n)
		case prev != n:
			diff.ModifiedNodes = append(diff.ModifiedNodes, n)
		}
	}
	for _, id := range sortedKeys(old.Nodes) {
		if _, exists := next.Nodes[id]; !exists {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}

	for _, key := range sortedKeys(next.Edges) {
		if _, exists := old.Edges[key]; !exists {
			diff.AddedEdges = append(diff.AddedEdges, next.Edges[key])
		}
	}
	for _, key := range sortedKeys(old.Edges) {
		if _, exists := next.Edges[key]; !exists {
			diff.RemovedEdges = append(diff.RemovedEdges, key)
		}
	}

	return diff
}

func edgeKey(e model.Edge) string {
	return fmt.Sprintf("%s|%s|%s", e.From, e.To, e.Label)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
