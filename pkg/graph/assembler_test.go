package graph

import (
	"errors"
	"testing"

	"github.com/ritzau/procgraph/pkg/model"
)

// populateFunc fills one stream cluster
type populateFunc func(t *testing.T, c *StreamCluster)

type stream struct {
	key      string
	populate populateFunc
}

func events(specs ...[2]string) populateFunc {
	return func(t *testing.T, c *StreamCluster) {
		for _, s := range specs {
			mustEvent(t, c, s[0], s[1])
		}
	}
}

func waitFor(triggers ...model.Trigger) populateFunc {
	return func(t *testing.T, c *StreamCluster) {
		mustTriggers(t, c, triggers...)
	}
}

// assemble registers, populates and builds every stream, then finalizes
func assemble(t *testing.T, streams ...stream) *Assembler {
	t.Helper()
	a := NewAssembler("test")
	for _, s := range streams {
		c, err := a.RegisterCluster(s.key)
		if err != nil {
			t.Fatalf("RegisterCluster(%s): %v", s.key, err)
		}
		if s.populate != nil {
			s.populate(t, c)
		}
		if err := c.BuildEdges(); err != nil {
			t.Fatalf("BuildEdges(%s): %v", s.key, err)
		}
	}
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return a
}

func findEdges(edges []model.Edge, from, to string) []model.Edge {
	var found []model.Edge
	for _, e := range edges {
		if e.From == from && e.To == to {
			found = append(found, e)
		}
	}
	return found
}

func edgesLabeled(edges []model.Edge, label string) []model.Edge {
	var found []model.Edge
	for _, e := range edges {
		if e.Label == label {
			found = append(found, e)
		}
	}
	return found
}

func TestNewAssemblerDefaults(t *testing.T) {
	a := NewAssembler("test")

	for _, key := range []string{SetupCluster, ExitCluster, EnvCluster} {
		c, ok := a.Cluster(key)
		if !ok {
			t.Fatalf("default cluster %s missing", key)
		}
		nodes := c.Nodes()
		if len(nodes) != 1 || nodes[0].Kind != model.NodeKindLabel {
			t.Errorf("%s: expected a single label node, got %+v", key, nodes)
		}
		if !c.Sealed() {
			t.Errorf("%s: expected default cluster to be built", key)
		}
		if !IsDefault(key) {
			t.Errorf("IsDefault(%s) = false", key)
		}
	}

	if !a.Active(SetupCluster) || a.Active(ExitCluster) || a.Active(EnvCluster) {
		t.Error("only setup should start active")
	}
	if len(a.StreamKeys()) != 0 {
		t.Errorf("Expected no stream keys, got %v", a.StreamKeys())
	}
}

func TestCrossClusterMatch(t *testing.T) {
	a := assemble(t,
		stream{"a", events([2]string{"send", "x"})},
		stream{"b", waitFor(model.Trigger{Watches: []string{"x"}})},
	)

	matched := findEdges(a.GlobalEdges(), "a.0", "b.1")
	if len(matched) != 1 {
		t.Fatalf("Expected exactly one a.0 -> b.1 edge, got %v", matched)
	}
	if matched[0].Label != "x" {
		t.Errorf("Expected label x, got %q", matched[0].Label)
	}
	if _, ok := a.GlobalIncoming()["x"]; ok {
		t.Error("x should be removed from the incoming index once matched")
	}
	if a.Active(EnvCluster) {
		t.Error("a matched name must not activate env")
	}
	if len(a.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics %v", a.Diagnostics())
	}
}

func TestUnmatchedProducerRoutesToEnv(t *testing.T) {
	a := assemble(t, stream{"a", events([2]string{"send", "y"})})

	if !a.Active(EnvCluster) {
		t.Fatal("env should be active")
	}
	edges := findEdges(a.GlobalEdges(), "a.0", "env.0")
	if len(edges) != 1 || edges[0].Label != "y" {
		t.Errorf("Expected one a.0 -> env.0 edge labeled y, got %v", edges)
	}
}

func TestUnmatchedConsumerRoutesFromEnv(t *testing.T) {
	a := assemble(t, stream{"c", waitFor(model.Trigger{Watches: []string{"z"}})})

	if !a.Active(EnvCluster) {
		t.Fatal("env should be active")
	}
	edges := findEdges(a.GlobalEdges(), "env.0", "c.1")
	if len(edges) != 1 || edges[0].Label != "z" {
		t.Errorf("Expected one env.0 -> c.1 edge labeled z, got %v", edges)
	}
	if _, ok := a.GlobalIncoming()["z"]; !ok {
		t.Error("env-supplied names stay in the incoming index")
	}
}

func TestSetupFanOut(t *testing.T) {
	// Registration order differs from key order on purpose
	a := assemble(t,
		stream{"c", events([2]string{"one", ""})},
		stream{"a", events([2]string{"two", ""})},
		stream{"b", events([2]string{"three", ""})},
	)

	setupEdges := edgesLabeled(a.GlobalEdges(), "")
	if len(setupEdges) != 3 {
		t.Fatalf("Expected 3 setup edges, got %v", setupEdges)
	}
	want := []model.Edge{
		{ID: "g0", From: "setup.0", To: "a.0"},
		{ID: "g1", From: "setup.0", To: "b.0"},
		{ID: "g2", From: "setup.0", To: "c.0"},
	}
	for i, e := range setupEdges {
		if e != want[i] {
			t.Errorf("setup edge %d = %+v, want %+v", i, e, want[i])
		}
	}
}

func TestSetupSkipsEmptyStreams(t *testing.T) {
	a := assemble(t,
		stream{"a", events([2]string{"one", ""})},
		stream{"empty", nil},
	)
	if got := len(edgesLabeled(a.GlobalEdges(), "")); got != 1 {
		t.Errorf("Expected 1 setup edge, got %d", got)
	}
}

func TestExitActivation(t *testing.T) {
	tests := []struct {
		name       string
		streams    []stream
		wantActive bool
		wantJump   bool
	}{
		{
			name:    "no exit target",
			streams: []stream{{"a", events([2]string{"send", ""})}},
		},
		{
			name:       "event jumps to exit",
			streams:    []stream{{"a", events([2]string{"quit", "exit"})}},
			wantActive: true,
			wantJump:   true,
		},
		{
			name: "wait jumps to exit",
			streams: []stream{{"a", waitFor(
				model.Trigger{Watches: []string{"timeout"}, Target: "exit"},
			)}},
			wantActive: true,
			wantJump:   true,
		},
		{
			name: "exit awaited as an event still activates",
			streams: []stream{
				{"a", events([2]string{"quit", "exit"})},
				{"b", waitFor(model.Trigger{Watches: []string{"exit"}})},
			},
			wantActive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := assemble(t, tt.streams...)
			if a.Active(ExitCluster) != tt.wantActive {
				t.Errorf("exit active = %v, want %v", a.Active(ExitCluster), tt.wantActive)
			}

			jumps := 0
			for _, e := range a.GlobalEdges() {
				if e.To == "exit.0" && e.Label == JumpLabel {
					jumps++
				}
			}
			if (jumps > 0) != tt.wantJump {
				t.Errorf("jumps into exit = %d, want any: %v", jumps, tt.wantJump)
			}

			g, err := a.Export()
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if g.HasCluster(ExitCluster) != tt.wantActive {
				t.Errorf("exit exported = %v, want %v", g.HasCluster(ExitCluster), tt.wantActive)
			}
		})
	}
}

func TestJumpToStream(t *testing.T) {
	a := assemble(t,
		stream{"a", events([2]string{"handover", "b"})},
		stream{"b", events([2]string{"continue", ""})},
	)

	edges := findEdges(a.GlobalEdges(), "a.0", "b.0")
	if len(edges) != 1 || edges[0].Label != JumpLabel {
		t.Errorf("Expected one Jump edge a.0 -> b.0, got %v", edges)
	}
	if a.Active(EnvCluster) {
		t.Error("a resolved jump must not activate env")
	}
}

func TestIncomingMatchBeatsJump(t *testing.T) {
	a := assemble(t,
		stream{"a", events([2]string{"signal", "b"})},
		stream{"b", waitFor(model.Trigger{Watches: []string{"b"}})},
	)

	edges := findEdges(a.GlobalEdges(), "a.0", "b.1")
	if len(edges) != 1 || edges[0].Label != "b" {
		t.Fatalf("Expected an event edge labeled b, got %v", edges)
	}
	if jumps := edgesLabeled(a.GlobalEdges(), JumpLabel); len(jumps) != 0 {
		t.Errorf("Expected no Jump edges, got %v", jumps)
	}
}

func TestJumpToEmptyStream(t *testing.T) {
	a := NewAssembler("test")
	src, _ := a.RegisterCluster("a")
	mustEvent(t, src, "handover", "b")
	empty, _ := a.RegisterCluster("b")
	for _, c := range []*StreamCluster{src, empty} {
		if err := c.BuildEdges(); err != nil {
			t.Fatalf("BuildEdges: %v", err)
		}
	}

	err := a.Finalize()
	var se *StructuralError
	if !errors.As(err, &se) || se.Kind != KindEmptyCluster {
		t.Fatalf("Expected empty_cluster error, got %v", err)
	}
	if a.Finalized() {
		t.Error("failed Finalize must not mark the assembler finalized")
	}
}

func TestOrphanWaitJump(t *testing.T) {
	a := assemble(t, stream{"a", waitFor(
		model.Trigger{Watches: []string{"x"}},
		model.Trigger{Watches: []string{"y"}, Target: "nowhere"},
	)})

	diags := a.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("Expected 1 diagnostic, got %v", diags)
	}
	d := diags[0]
	if d.Kind != model.DiagnosticOrphanJump || d.Node != "a.2" || d.Event != "nowhere" || d.Cluster != "a" {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	for _, e := range a.GlobalEdges() {
		if e.From == "a.2" {
			t.Errorf("orphan wait must not get an outgoing edge, got %+v", e)
		}
	}
}

func TestLifecycleErrors(t *testing.T) {
	t.Run("duplicate cluster", func(t *testing.T) {
		a := NewAssembler("test")
		if _, err := a.RegisterCluster("a"); err != nil {
			t.Fatalf("RegisterCluster: %v", err)
		}
		for _, key := range []string{"a", SetupCluster} {
			_, err := a.RegisterCluster(key)
			var se *StructuralError
			if !errors.As(err, &se) || se.Kind != KindDuplicateCluster {
				t.Errorf("RegisterCluster(%s): expected duplicate_cluster, got %v", key, err)
			}
		}
	})

	t.Run("finalize before build", func(t *testing.T) {
		a := NewAssembler("test")
		c, _ := a.RegisterCluster("a")
		mustEvent(t, c, "send", "")
		if err := a.Finalize(); !errors.Is(err, ErrUnsealed) {
			t.Errorf("Expected ErrUnsealed, got %v", err)
		}
	})

	t.Run("after finalize", func(t *testing.T) {
		a := assemble(t, stream{"a", events([2]string{"send", ""})})
		if err := a.Finalize(); !errors.Is(err, ErrFinalized) {
			t.Errorf("second Finalize: expected ErrFinalized, got %v", err)
		}
		if _, err := a.RegisterCluster("late"); !errors.Is(err, ErrFinalized) {
			t.Errorf("RegisterCluster: expected ErrFinalized, got %v", err)
		}
	})

	t.Run("export before finalize", func(t *testing.T) {
		a := NewAssembler("test")
		if _, err := a.Export(); !errors.Is(err, ErrNotFinalized) {
			t.Errorf("Expected ErrNotFinalized, got %v", err)
		}
	})
}

func TestMultipleProducersAndConsumers(t *testing.T) {
	a := assemble(t,
		stream{"a", events([2]string{"one", "x"})},
		stream{"b", events([2]string{"two", "x"})},
		stream{"c", waitFor(model.Trigger{Watches: []string{"x"}})},
		stream{"d", waitFor(model.Trigger{Watches: []string{"x"}})},
	)

	xs := edgesLabeled(a.GlobalEdges(), "x")
	want := [][2]string{{"a.0", "c.1"}, {"a.0", "d.1"}, {"b.0", "c.1"}, {"b.0", "d.1"}}
	if len(xs) != len(want) {
		t.Fatalf("Expected %d x edges, got %v", len(want), xs)
	}
	for i, e := range xs {
		if e.From != want[i][0] || e.To != want[i][1] {
			t.Errorf("edge %d = %s -> %s, want %s -> %s", i, e.From, e.To, want[i][0], want[i][1])
		}
	}
}

func TestFinalizeDeterminism(t *testing.T) {
	streams := []stream{
		{"client", events([2]string{"connect", "hello"}, [2]string{"idle", ""})},
		{"server", waitFor(model.Trigger{Watches: []string{"hello"}}, model.Trigger{Watches: []string{"bye"}, Target: "exit"})},
		{"monitor", waitFor(model.Trigger{Watches: []string{"alarm"}})},
		{"logger", events([2]string{"flush", "disk"})},
	}
	reversed := make([]stream, len(streams))
	for i, s := range streams {
		reversed[len(streams)-1-i] = s
	}

	var dumps []string
	for _, order := range [][]stream{streams, reversed, streams} {
		a := assemble(t, order...)
		g, err := a.Export()
		if err != nil {
			t.Fatalf("Export: %v", err)
		}
		dumps = append(dumps, DumpString(g))
	}

	for i := 1; i < len(dumps); i++ {
		if dumps[i] != dumps[0] {
			t.Errorf("run %d differs from run 0:\n%s\nvs\n%s", i, dumps[i], dumps[0])
		}
	}
}
