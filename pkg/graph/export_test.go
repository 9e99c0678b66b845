package graph

import (
	"strings"
	"testing"

	"github.com/ritzau/procgraph/pkg/model"
)

// buildDemo assembles a small client/server exchange with a timeout exit
func buildDemo(t *testing.T) *Assembler {
	t.Helper()
	a := NewAssembler("demo")

	client, err := a.RegisterCluster("client")
	if err != nil {
		t.Fatalf("RegisterCluster: %v", err)
	}
	if _, err := client.AddEvent(model.Event{Agent: "client", Method: "connect"}); err != nil {
		t.Fatal(err)
	}
	mustTriggers(t, client,
		model.Trigger{Watches: []string{"accepted"}},
		model.Trigger{Watches: []string{"timeout"}, Target: "exit"},
	)
	if _, err := client.AddEvent(model.Event{Agent: "client", Method: "send", Target: "request"}); err != nil {
		t.Fatal(err)
	}

	server, err := a.RegisterCluster("server")
	if err != nil {
		t.Fatalf("RegisterCluster: %v", err)
	}
	mustTriggers(t, server, model.Trigger{Watches: []string{"request"}})
	if _, err := server.AddEvent(model.Event{Agent: "server", Method: "reply"}); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*StreamCluster{client, server} {
		if err := c.BuildEdges(); err != nil {
			t.Fatalf("BuildEdges: %v", err)
		}
	}
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return a
}

const demoDump = `graph demo
cluster setup
  node setup.0 label "SETUP"
cluster client
  node client.0 event "client.connect"
  node client.1 sync "begin"
  node client.2 wait "wait accepted"
  node client.3 wait "wait timeout"
  node client.4 sync "end"
  node client.5 event "client.send"
  edge client.e0 client.0 -> client.2 " "
  edge client.e1 client.0 -> client.3 " "
  edge client.e2 client.2 -> client.5 " "
cluster server
  node server.0 sync "begin"
  node server.1 wait "wait request"
  node server.2 sync "end"
  node server.3 event "server.reply"
  edge server.e0 server.1 -> server.3 " "
cluster env
  node env.0 label "ENV"
cluster exit
  node exit.0 label "EXIT"
global
  edge g0 setup.0 -> client.0 ""
  edge g1 setup.0 -> server.1 ""
  edge g2 client.3 -> exit.0 "Jump"
  edge g3 client.5 -> server.1 "request"
  edge g4 env.0 -> client.2 "accepted"
  edge g5 env.0 -> client.3 "timeout"
`

func TestDumpGolden(t *testing.T) {
	g, err := buildDemo(t).Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	got := DumpString(g)
	if got != demoDump {
		t.Errorf("dump mismatch\n--- got ---\n%s\n--- want ---\n%s", got, demoDump)
	}
}

func TestExportOrderAndShape(t *testing.T) {
	g, err := buildDemo(t).Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var keys []string
	for _, c := range g.Clusters {
		keys = append(keys, c.Key)
	}
	if strings.Join(keys, ",") != "setup,client,server,env,exit" {
		t.Errorf("cluster order = %v", keys)
	}

	if g.Name != "demo" {
		t.Errorf("Name = %q", g.Name)
	}
	if g.NodeCount() != 13 {
		t.Errorf("NodeCount = %d, want 13", g.NodeCount())
	}
	if g.Diagnostics == nil {
		t.Error("Diagnostics should be an empty slice, not nil")
	}

	// Every edge endpoint is an exported node
	ids := make(map[string]bool)
	for _, c := range g.Clusters {
		for _, n := range c.Nodes {
			ids[n.ID] = true
		}
	}
	for _, e := range g.AllEdges() {
		if !ids[e.From] || !ids[e.To] {
			t.Errorf("edge %s has an endpoint outside the export", e.ID)
		}
	}
}

func TestExportOmitsInactiveDefaults(t *testing.T) {
	a := assemble(t,
		stream{"a", events([2]string{"send", "x"})},
		stream{"b", waitFor(model.Trigger{Watches: []string{"x"}})},
	)
	g, err := a.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if g.HasCluster(EnvCluster) || g.HasCluster(ExitCluster) {
		t.Errorf("inactive defaults exported: %+v", g.Clusters)
	}
	if !g.HasCluster(SetupCluster) {
		t.Error("setup must always be exported")
	}
}

func TestDumpDiagnostics(t *testing.T) {
	a := assemble(t, stream{"a", waitFor(model.Trigger{Watches: []string{"x"}, Target: "nowhere"})})
	g, err := a.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	out := DumpString(g)
	if !strings.Contains(out, "\ndiagnostics\n  warning orphan_jump a.1 ") {
		t.Errorf("diagnostics section missing:\n%s", out)
	}
}
