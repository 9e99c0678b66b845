package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checking via errors.Is().
var (
	// ErrStructural indicates malformed cluster input; assembly cannot continue.
	ErrStructural = errors.New("structural error")

	// ErrSealed is returned when a cluster is mutated after BuildEdges.
	ErrSealed = errors.New("cluster is sealed")

	// ErrUnsealed is returned when Finalize runs before every cluster is built.
	ErrUnsealed = errors.New("cluster edges not built")

	// ErrFinalized is returned when the assembler is changed after Finalize.
	ErrFinalized = errors.New("assembler already finalized")

	// ErrNotFinalized is returned when exporting before Finalize.
	ErrNotFinalized = errors.New("assembler not finalized")
)

// Structural error kinds
const (
	KindUnterminatedBlock = "unterminated_block"
	KindUnexpectedMarker  = "unexpected_marker"
	KindUnknownKind       = "unknown_kind"
	KindStrayWait         = "stray_wait"
	KindDuplicateCluster  = "duplicate_cluster"
	KindEmptyTriggerList  = "empty_trigger_list"
	KindEmptyTrigger      = "empty_trigger"
	KindEmptyCluster      = "empty_cluster"
	KindUnknownCluster    = "unknown_cluster"
)

// StructuralError describes malformed input found while populating,
// building or finalizing. Wraps ErrStructural.
type StructuralError struct {
	Kind    string // One of the Kind* constants
	Cluster string // Cluster where the problem was found (if any)
	Msg     string
}

func (e *StructuralError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cluster != "" {
		return fmt.Sprintf("%s: cluster %q: %s", ErrStructural.Error(), e.Cluster, e.Msg)
	}
	if e.Msg == "" {
		return ErrStructural.Error()
	}
	return fmt.Sprintf("%s: %s", ErrStructural.Error(), e.Msg)
}

func (e *StructuralError) Unwrap() error { return ErrStructural }

func structuralf(kind, cluster, format string, args ...any) *StructuralError {
	return &StructuralError{
		Kind:    kind,
		Cluster: cluster,
		Msg:     fmt.Sprintf(format, args...),
	}
}
