package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ritzau/procgraph/pkg/model"
)

// LocalEdgeLabel is the label of every sequential edge inside a cluster
const LocalEdgeLabel = " "

// StreamCluster owns the ordered node sequence of one named stream.
// It is populated by AddEvent, AddTriggerList and AddLabel in source order
// and sealed by BuildEdges.
type StreamCluster struct {
	key      string
	nodes    []*model.Node
	byID     map[string]*model.Node
	edges    []model.Edge
	outgoing map[string][]string // target name -> producing node IDs
	incoming map[string][]string // watched name -> waiting node IDs
	nodeSeq  int
	edgeSeq  int
	sealed   bool
}

// NewStreamCluster creates an empty cluster
func NewStreamCluster(key string) *StreamCluster {
	return &StreamCluster{
		key:      key,
		byID:     make(map[string]*model.Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// Key returns the cluster key
func (c *StreamCluster) Key() string { return c.key }

// Sealed reports whether BuildEdges has run
func (c *StreamCluster) Sealed() bool { return c.sealed }

func (c *StreamCluster) nextNodeID() string {
	id := fmt.Sprintf("%s.%d", c.key, c.nodeSeq)
	c.nodeSeq++
	return id
}

func (c *StreamCluster) nextEdgeID() string {
	id := fmt.Sprintf("%s.e%d", c.key, c.edgeSeq)
	c.edgeSeq++
	return id
}

func (c *StreamCluster) appendNode(node *model.Node) {
	node.ID = c.nextNodeID()
	node.Cluster = c.key
	c.nodes = append(c.nodes, node)
	c.byID[node.ID] = node
}

// AddEvent appends an event node. A target is registered in the outgoing
// index; no edge is created until BuildEdges.
func (c *StreamCluster) AddEvent(ev model.Event) (*model.Node, error) {
	if c.sealed {
		return nil, fmt.Errorf("cluster %q: add event: %w", c.key, ErrSealed)
	}

	node := &model.Node{
		Kind:   model.NodeKindEvent,
		Label:  eventLabel(ev),
		Target: ev.Target,
	}
	c.appendNode(node)

	if node.Target != "" {
		addToIndex(c.outgoing, node.Target, node.ID)
	}
	return node, nil
}

// AddTriggerList appends one synchronization block: an opening marker, one
// wait node per trigger and a closing marker. Returns the wait nodes.
func (c *StreamCluster) AddTriggerList(tl model.TriggerList) ([]*model.Node, error) {
	if c.sealed {
		return nil, fmt.Errorf("cluster %q: add trigger list: %w", c.key, ErrSealed)
	}
	if len(tl.Triggers) == 0 {
		return nil, structuralf(KindEmptyTriggerList, c.key, "trigger list has no triggers")
	}
	// Validate everything before touching the sequence
	for i, t := range tl.Triggers {
		if len(t.Watches) == 0 {
			return nil, structuralf(KindEmptyTrigger, c.key, "trigger %d watches no events", i)
		}
	}

	c.appendNode(&model.Node{Kind: model.NodeKindSync, Label: "begin", Marker: model.MarkerOpen})

	waits := make([]*model.Node, 0, len(tl.Triggers))
	for _, t := range tl.Triggers {
		minCount := t.MinCount
		if minCount < 1 {
			minCount = 1
		}

		t.Watches = uniqueStrings(t.Watches)
		node := &model.Node{
			Kind:     model.NodeKindWait,
			Label:    triggerLabel(t),
			Target:   t.Target,
			Watches:  t.Watches,
			MinCount: minCount,
		}
		c.appendNode(node)

		for _, name := range node.Watches {
			addToIndex(c.incoming, name, node.ID)
		}
		if node.Target != "" {
			addToIndex(c.outgoing, node.Target, node.ID)
		}
		waits = append(waits, node)
	}

	c.appendNode(&model.Node{Kind: model.NodeKindSync, Label: "end", Marker: model.MarkerClose})
	return waits, nil
}

// AddLabel appends a label node with no index registration
func (c *StreamCluster) AddLabel(text string) (*model.Node, error) {
	if c.sealed {
		return nil, fmt.Errorf("cluster %q: add label: %w", c.key, ErrSealed)
	}
	node := &model.Node{Kind: model.NodeKindLabel, Label: text}
	c.appendNode(node)
	return node, nil
}

// BuildEdges wires the sequential flow of the cluster and seals it.
//
// Every plain node and every trigger block forms one group. Consecutive
// groups are connected with the full product of the previous group's
// non-departing nodes and the current group. A node with a target is
// departing: its forward edge comes from global matching instead.
func (c *StreamCluster) BuildEdges() error {
	if c.sealed {
		return fmt.Errorf("cluster %q: build edges: %w", c.key, ErrSealed)
	}

	groups, err := c.groups()
	if err != nil {
		return err
	}

	var previous []*model.Node
	for _, current := range groups {
		for _, from := range previous {
			for _, to := range current {
				c.edges = append(c.edges, model.Edge{
					ID:    c.nextEdgeID(),
					From:  from.ID,
					To:    to.ID,
					Label: LocalEdgeLabel,
				})
			}
		}

		previous = make([]*model.Node, 0, len(current))
		for _, node := range current {
			if !node.HasTarget() {
				previous = append(previous, node)
			}
		}
	}

	c.sealed = true
	return nil
}

// groups splits the node sequence into sequential groups
func (c *StreamCluster) groups() ([][]*model.Node, error) {
	var groups [][]*model.Node

	for i := 0; i < len(c.nodes); {
		node := c.nodes[i]
		switch node.Kind {
		case model.NodeKindEvent, model.NodeKindLabel:
			groups = append(groups, []*model.Node{node})
			i++

		case model.NodeKindSync:
			if node.Marker != model.MarkerOpen {
				return nil, structuralf(KindUnexpectedMarker, c.key, "closing marker %s without opening marker", node.ID)
			}
			end, err := c.expectClose(i)
			if err != nil {
				return nil, err
			}
			groups = append(groups, c.nodes[i+1:end])
			i = end + 1

		case model.NodeKindWait:
			return nil, structuralf(KindStrayWait, c.key, "wait node %s outside a trigger block", node.ID)

		default:
			return nil, structuralf(KindUnknownKind, c.key, "node %s has unknown kind %q", node.ID, node.Kind)
		}
	}

	return groups, nil
}

// expectClose returns the index of the marker closing the block opened at start
func (c *StreamCluster) expectClose(start int) (int, error) {
	for j := start + 1; j < len(c.nodes); j++ {
		node := c.nodes[j]
		switch node.Kind {
		case model.NodeKindWait:
			continue
		case model.NodeKindSync:
			if node.Marker == model.MarkerClose {
				return j, nil
			}
			return -1, structuralf(KindUnexpectedMarker, c.key, "marker %s opens a block inside the block opened by %s", node.ID, c.nodes[start].ID)
		default:
			return -1, structuralf(KindUnknownKind, c.key, "node %s of kind %q inside trigger block", node.ID, node.Kind)
		}
	}
	return -1, structuralf(KindUnterminatedBlock, c.key, "block opened by %s is never closed", c.nodes[start].ID)
}

// FirstValidNode returns the first node that is not a sync marker
func (c *StreamCluster) FirstValidNode() (*model.Node, error) {
	for _, node := range c.nodes {
		if node.Kind != model.NodeKindSync {
			return node, nil
		}
	}
	return nil, structuralf(KindEmptyCluster, c.key, "cluster has no valid node")
}

// Nodes returns the nodes in declaration order
func (c *StreamCluster) Nodes() []*model.Node {
	return c.nodes
}

// Node returns a node by ID
func (c *StreamCluster) Node(id string) (*model.Node, bool) {
	node, ok := c.byID[id]
	return node, ok
}

// Edges returns the cluster-local edges in creation order
func (c *StreamCluster) Edges() []model.Edge {
	return c.edges
}

// Outgoing returns the IDs of nodes targeting name, in declaration order
func (c *StreamCluster) Outgoing(name string) []string {
	return append([]string(nil), c.outgoing[name]...)
}

// Incoming returns the IDs of nodes waiting for name, in declaration order
func (c *StreamCluster) Incoming(name string) []string {
	return append([]string(nil), c.incoming[name]...)
}

// OutgoingNames returns the sorted target names produced by this cluster
func (c *StreamCluster) OutgoingNames() []string {
	return sortedKeys(c.outgoing)
}

// IncomingNames returns the sorted event names awaited by this cluster
func (c *StreamCluster) IncomingNames() []string {
	return sortedKeys(c.incoming)
}

func eventLabel(ev model.Event) string {
	switch {
	case ev.Agent != "" && ev.Method != "":
		return ev.Agent + "." + ev.Method
	case ev.Agent != "":
		return ev.Agent
	case ev.Method != "":
		return ev.Method
	}
	return "event"
}

func triggerLabel(t model.Trigger) string {
	if t.Text != "" {
		return t.Text
	}
	label := "wait " + strings.Join(t.Watches, "|")
	if t.MinCount > 1 {
		label += fmt.Sprintf(" x%d", t.MinCount)
	}
	return label
}

// addToIndex appends id to index[name] unless already present
func addToIndex(index map[string][]string, name, id string) {
	for _, existing := range index[name] {
		if existing == id {
			return
		}
	}
	index[name] = append(index[name], id)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			result = append(result, v)
		}
	}
	return result
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
