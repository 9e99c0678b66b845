package model

// NodeKind represents the type of a node in a stream cluster
type NodeKind string

const (
	NodeKindEvent NodeKind = "event" // Emitted action, optionally signalling a target
	NodeKindWait  NodeKind = "wait"  // One racing wait condition inside a trigger block
	NodeKindLabel NodeKind = "label" // Fixed entry point of a synthetic cluster
	NodeKindSync  NodeKind = "sync"  // Opens or closes a trigger block
)

// MarkerKind tells an opening sync marker from a closing one
type MarkerKind string

const (
	MarkerOpen  MarkerKind = "open"
	MarkerClose MarkerKind = "close"
)

// Node is a vertex inside one stream cluster.
// Fields that do not apply to the node's kind are left zero.
type Node struct {
	ID      string   `json:"id"`      // "<cluster>.<seq>", e.g. "client.3"
	Kind    NodeKind `json:"kind"`    // event, wait, label or sync
	Cluster string   `json:"cluster"` // Owning cluster key
	Label   string   `json:"label"`   // Display text

	// Event and Wait
	Target string `json:"target,omitempty"` // Event name or cluster key this node jumps to

	// Wait only
	Watches  []string `json:"watches,omitempty"`  // Event names the wait listens for
	MinCount int      `json:"minCount,omitempty"` // Occurrences required before proceeding

	// Sync only
	Marker MarkerKind `json:"marker,omitempty"`
}

// Targets returns the outgoing target set of the node (empty or one element)
func (n *Node) Targets() []string {
	if n.Target == "" {
		return nil
	}
	return []string{n.Target}
}

// HasTarget reports whether the node branches somewhere explicitly
func (n *Node) HasTarget() bool {
	return n.Target != ""
}

// Edge is a directed connection between two nodes
type Edge struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// Severity of a diagnostic
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DiagnosticKind classifies a recoverable problem found while assembling
type DiagnosticKind string

const (
	DiagnosticOrphanJump  DiagnosticKind = "orphan_jump" // Wait target resolves to nothing
	DiagnosticLoop        DiagnosticKind = "loop"        // Control flow cycle
	DiagnosticUnreachable DiagnosticKind = "unreachable" // Node not reachable from setup
)

// Diagnostic represents a problem that does not stop graph assembly
type Diagnostic struct {
	Severity Severity       `json:"severity"`
	Kind     DiagnosticKind `json:"kind"`
	Cluster  string         `json:"cluster,omitempty"`
	Node     string         `json:"node,omitempty"`
	Event    string         `json:"event,omitempty"`
	Message  string         `json:"message"`
}
