package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ritzau/procgraph/pkg/logging"
	"github.com/ritzau/procgraph/pkg/model"
)

// Synthetic cluster keys, present in every assembler
const (
	SetupCluster = "setup"
	ExitCluster  = "exit"
	EnvCluster   = "env"
)

// JumpLabel labels edges that transfer control into another stream
const JumpLabel = "Jump"

var defaultClusterKeys = []string{SetupCluster, ExitCluster, EnvCluster}

// Assembler owns every cluster of a procedure and stitches them together
// in a single Finalize pass.
type Assembler struct {
	name           string
	clusters       map[string]*StreamCluster
	active         map[string]bool
	nodes          map[string]*model.Node // node ID -> node, filled by Finalize
	globalEdges    []model.Edge
	globalOutgoing map[string][]string
	globalIncoming map[string][]string
	diagnostics    []model.Diagnostic
	edgeSeq        int
	finalized      bool
}

// NewAssembler creates an assembler with the setup, exit and env clusters
// registered. Only setup starts active.
func NewAssembler(name string) *Assembler {
	a := &Assembler{
		name:           name,
		clusters:       make(map[string]*StreamCluster),
		active:         map[string]bool{SetupCluster: true},
		nodes:          make(map[string]*model.Node),
		globalOutgoing: make(map[string][]string),
		globalIncoming: make(map[string][]string),
	}

	for _, key := range defaultClusterKeys {
		c := NewStreamCluster(key)
		// A fresh cluster accepts one label and always builds
		_, _ = c.AddLabel(strings.ToUpper(key))
		_ = c.BuildEdges()
		a.clusters[key] = c
	}

	return a
}

// Name returns the procedure name the assembler was created with
func (a *Assembler) Name() string { return a.name }

// IsDefault reports whether key is one of the synthetic clusters
func IsDefault(key string) bool {
	for _, k := range defaultClusterKeys {
		if k == key {
			return true
		}
	}
	return false
}

// RegisterCluster creates an empty cluster for a stream
func (a *Assembler) RegisterCluster(key string) (*StreamCluster, error) {
	if a.finalized {
		return nil, fmt.Errorf("register cluster %q: %w", key, ErrFinalized)
	}
	if _, exists := a.clusters[key]; exists {
		return nil, structuralf(KindDuplicateCluster, key, "cluster already registered")
	}

	c := NewStreamCluster(key)
	a.clusters[key] = c
	logging.Trace("registered cluster", "cluster", key)
	return c, nil
}

// Cluster returns a registered cluster
func (a *Assembler) Cluster(key string) (*StreamCluster, bool) {
	c, ok := a.clusters[key]
	return c, ok
}

// Keys returns every cluster key, sorted
func (a *Assembler) Keys() []string {
	keys := make([]string, 0, len(a.clusters))
	for k := range a.clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StreamKeys returns the non-default cluster keys, sorted
func (a *Assembler) StreamKeys() []string {
	keys := make([]string, 0, len(a.clusters))
	for k := range a.clusters {
		if !IsDefault(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Active reports whether a default cluster is part of the output.
// Stream clusters are always active.
func (a *Assembler) Active(key string) bool {
	if _, ok := a.clusters[key]; !ok {
		return false
	}
	if !IsDefault(key) {
		return true
	}
	return a.active[key]
}

// Finalized reports whether Finalize completed
func (a *Assembler) Finalized() bool { return a.finalized }

func (a *Assembler) nextEdgeID() string {
	id := fmt.Sprintf("g%d", a.edgeSeq)
	a.edgeSeq++
	return id
}

func (a *Assembler) addGlobalEdge(from, to, label string) {
	a.globalEdges = append(a.globalEdges, model.Edge{
		ID:    a.nextEdgeID(),
		From:  from,
		To:    to,
		Label: label,
	})
}

func (a *Assembler) activate(key string) {
	if !a.active[key] {
		logging.Debug("activating synthetic cluster", "cluster", key)
	}
	a.active[key] = true
}

// entry returns the ID of a default cluster's single label node
func (a *Assembler) entry(key string) string {
	return a.clusters[key].Nodes()[0].ID
}

// Finalize matches producers and consumers across clusters and routes
// everything left over through the synthetic clusters.
//
// Event names are visited in lexicographic order and node IDs in
// (cluster key, declaration) order, so edge IDs are reproducible.
// For each produced name an awaiting consumer wins over a cluster jump,
// which wins over routing to env.
func (a *Assembler) Finalize() error {
	if a.finalized {
		return ErrFinalized
	}

	streams := a.StreamKeys()
	for _, key := range streams {
		if !a.clusters[key].Sealed() {
			return fmt.Errorf("cluster %q: %w", key, ErrUnsealed)
		}
	}

	// 1. Every stream starts from setup
	setup := a.entry(SetupCluster)
	for _, key := range streams {
		c := a.clusters[key]
		if len(c.Nodes()) == 0 {
			continue
		}
		first, err := c.FirstValidNode()
		if err != nil {
			return err
		}
		a.addGlobalEdge(setup, first.ID, "")
	}

	// 2. Merge per-cluster indices
	for _, key := range a.Keys() {
		for _, node := range a.clusters[key].Nodes() {
			a.nodes[node.ID] = node
		}
	}
	for _, key := range streams {
		c := a.clusters[key]
		for name, ids := range c.outgoing {
			for _, id := range ids {
				addToIndex(a.globalOutgoing, name, id)
			}
		}
		for name, ids := range c.incoming {
			for _, id := range ids {
				addToIndex(a.globalIncoming, name, id)
			}
		}
	}

	// 3. Anything targeting exit makes it visible
	if _, ok := a.globalOutgoing[ExitCluster]; ok {
		a.activate(ExitCluster)
	}

	// 4. Resolve every produced name
	for _, name := range sortedKeys(a.globalOutgoing) {
		producers := a.globalOutgoing[name]

		if consumers, ok := a.globalIncoming[name]; ok {
			for _, p := range producers {
				for _, c := range consumers {
					a.addGlobalEdge(p, c, name)
				}
			}
			delete(a.globalIncoming, name)
			continue
		}

		if target, ok := a.clusters[name]; ok {
			entry, err := target.FirstValidNode()
			if err != nil {
				var se *StructuralError
				if errors.As(err, &se) {
					se.Msg = fmt.Sprintf("jump target has no valid node (jumped to from %s)", strings.Join(producers, ", "))
				}
				return err
			}
			if IsDefault(name) {
				a.activate(name)
			}
			for _, p := range producers {
				a.addGlobalEdge(p, entry.ID, JumpLabel)
			}
			continue
		}

		for _, p := range producers {
			node := a.nodes[p]
			if node.Kind == model.NodeKindWait {
				a.orphan(node, name)
				continue
			}
			a.activate(EnvCluster)
			a.addGlobalEdge(p, a.entry(EnvCluster), name)
		}
	}

	// 5. Awaited names nobody produces come from the environment
	for _, name := range sortedKeys(a.globalIncoming) {
		a.activate(EnvCluster)
		for _, c := range a.globalIncoming[name] {
			a.addGlobalEdge(a.entry(EnvCluster), c, name)
		}
	}

	a.finalized = true
	logging.Debug("assembled graph",
		"name", a.name,
		"clusters", len(streams),
		"globalEdges", len(a.globalEdges),
		"diagnostics", len(a.diagnostics))
	return nil
}

func (a *Assembler) orphan(node *model.Node, name string) {
	d := model.Diagnostic{
		Severity: model.SeverityWarning,
		Kind:     model.DiagnosticOrphanJump,
		Cluster:  node.Cluster,
		Node:     node.ID,
		Event:    name,
		Message:  fmt.Sprintf("wait %q targets %q which is neither awaited nor a cluster", node.Label, name),
	}
	a.diagnostics = append(a.diagnostics, d)
	logging.Warn("orphan jump", "cluster", node.Cluster, "node", node.ID, "target", name)
}

// Diagnostics returns the recoverable problems found by Finalize
func (a *Assembler) Diagnostics() []model.Diagnostic {
	return append([]model.Diagnostic(nil), a.diagnostics...)
}

// GlobalEdges returns the cross-cluster edges in creation order
func (a *Assembler) GlobalEdges() []model.Edge {
	return append([]model.Edge(nil), a.globalEdges...)
}

// GlobalOutgoing returns a copy of the merged producer index
func (a *Assembler) GlobalOutgoing() map[string][]string {
	return copyIndex(a.globalOutgoing)
}

// GlobalIncoming returns a copy of the merged consumer index. After
// Finalize it only holds names that were supplied by env.
func (a *Assembler) GlobalIncoming() map[string][]string {
	return copyIndex(a.globalIncoming)
}

func copyIndex(index map[string][]string) map[string][]string {
	result := make(map[string][]string, len(index))
	for name, ids := range index {
		result[name] = append([]string(nil), ids...)
	}
	return result
}
