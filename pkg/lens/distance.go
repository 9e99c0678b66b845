package lens

import (
	"sort"

	"github.com/ritzau/procgraph/pkg/model"
)

// Infinite is the distance of a cluster no global edge path connects to
// the focus
const Infinite = -1

// distanceQueueNode represents a cluster in the BFS queue
type distanceQueueNode struct {
	key      string
	distance int
}

// ComputeDistances calculates the shortest hop count from each cluster to
// the nearest focus cluster. Global edges count in both directions: a
// consumer is as close to its producer as the producer is to it.
func ComputeDistances(g *model.Graph, focus []string) map[string]int {
	distances := make(map[string]int, len(g.Clusters))
	for _, c := range g.Clusters {
		distances[c.Key] = Infinite
	}

	adjacency := buildAdjacencyList(g)

	var queue []distanceQueueNode
	for _, key := range focus {
		if d, ok := distances[key]; ok && d == Infinite {
			distances[key] = 0
			queue = append(queue, distanceQueueNode{key: key})
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adjacency[current.key] {
			if distances[neighbor] == Infinite {
				distances[neighbor] = current.distance + 1
				queue = append(queue, distanceQueueNode{key: neighbor, distance: current.distance + 1})
			}
		}
	}

	return distances
}

// buildAdjacencyList creates an undirected cluster adjacency list from
// the global edges. Neighbor lists are sorted.
func buildAdjacencyList(g *model.Graph) map[string][]string {
	owner := make(map[string]string)
	for _, c := range g.Clusters {
		for _, n := range c.Nodes {
			owner[n.ID] = c.Key
		}
	}

	sets := make(map[string]map[string]bool)
	link := func(a, b string) {
		if sets[a] == nil {
			sets[a] = make(map[string]bool)
		}
		sets[a][b] = true
	}
	for _, e := range g.GlobalEdges {
		from, to := owner[e.From], owner[e.To]
		if from == "" || to == "" || from == to {
			continue
		}
		link(from, to)
		link(to, from)
	}

	adjacency := make(map[string][]string, len(sets))
	for key, set := range sets {
		for neighbor := range set {
			adjacency[key] = append(adjacency[key], neighbor)
		}
		sort.Strings(adjacency[key])
	}
	return adjacency
}
