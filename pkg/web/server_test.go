package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/procgraph/pkg/compiler"
	"github.com/ritzau/procgraph/pkg/model"
	"github.com/ritzau/procgraph/pkg/pubsub"
)

func event(agent, method, target string) model.Step {
	return model.Step{Event: &model.Event{Agent: agent, Method: method, Target: target}}
}

func pingPong() *model.Procedure {
	return &model.Procedure{
		Name: "pingpong",
		Streams: []model.Stream{
			{Key: "ping", Steps: []model.Step{
				event("ping", "serve", "ball"),
				{Triggers: []model.Trigger{{Watches: []string{"return"}}}},
			}},
			{Key: "pong", Steps: []model.Step{
				{Triggers: []model.Trigger{{Watches: []string{"ball"}}}},
				event("pong", "hit", "return"),
			}},
		},
	}
}

func compiledServer(t *testing.T) *Server {
	t.Helper()
	s := NewServer(compiler.Options{})
	result, err := compiler.Compile(context.Background(), pingPong(), compiler.Options{})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if err := s.SetResult("pingpong.toml", result); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	return s
}

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServiceUnavailableBeforeCompile(t *testing.T) {
	s := NewServer(compiler.Options{})
	for _, path := range []string{"/api/graph", "/api/graph.dot", "/api/diagnostics", "/api/analysis"} {
		if rec := serve(s, "GET", path, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, rec.Code)
		}
	}
}

func TestGraphEndpoints(t *testing.T) {
	s := compiledServer(t)

	tests := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/api/graph", "application/json", `"name": "pingpong"`},
		{"/api/graph.dot", "text/vnd.graphviz", "cluster_ping"},
		{"/api/graph.mmd", "text/plain; charset=utf-8", "graph TD"},
		{"/api/dump", "text/plain; charset=utf-8", "ping"},
		{"/metrics", "", "procgraph_compiles_total"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(s, "GET", tt.path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); tt.contentType != "" && got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if rec.Header().Get("X-Request-ID") == "" {
				t.Error("missing X-Request-ID")
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body missing %q:\n%s", tt.contains, rec.Body.String())
			}
		})
	}
}

func TestGraphFocusQuery(t *testing.T) {
	s := compiledServer(t)

	rec := serve(s, "GET", "/api/graph?focus=pong&distance=0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var g model.Graph
	if err := json.Unmarshal(rec.Body.Bytes(), &g); err != nil {
		t.Fatal(err)
	}
	if len(g.Clusters) != 1 || g.Clusters[0].Key != "pong" {
		t.Errorf("Expected only pong, got %+v", g.Clusters)
	}

	for _, query := range []string{"focus=nobody", "distance=far", "hideSync=maybe"} {
		if rec := serve(s, "GET", "/api/graph?"+query, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("?%s = %d, want 400", query, rec.Code)
		}
	}
}

func TestDiagnosticsAndAnalysis(t *testing.T) {
	s := compiledServer(t)

	rec := serve(s, "GET", "/api/diagnostics", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("diagnostics = %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(s, "GET", "/api/analysis", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis status %d", rec.Code)
	}
	var data AnalysisData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Loops) != 0 || len(data.Unreachable) != 0 {
		t.Errorf("Expected a clean analysis, got %+v", data)
	}
}

func TestCompileEndpoint(t *testing.T) {
	s := NewServer(compiler.Options{})

	body := `{"name": "solo", "streams": [{"key": "a", "steps": [{"event": {"agent": "a", "method": "go"}}]}]}`
	rec := serve(s, "POST", "/api/compile", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var g model.Graph
	if err := json.Unmarshal(rec.Body.Bytes(), &g); err != nil {
		t.Fatal(err)
	}
	if g.Name != "solo" || !g.HasCluster("a") {
		t.Errorf("unexpected graph %+v", g)
	}

	// Ad-hoc compiles do not replace the served graph
	if rec := serve(s, "GET", "/api/graph", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /api/graph = %d, want 503", rec.Code)
	}
}

func TestCompileEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		opts   compiler.Options
		target string
		body   string
		want   int
	}{
		{"malformed json", compiler.Options{}, "/api/compile", "{", http.StatusBadRequest},
		{"unknown format", compiler.Options{}, "/api/compile?format=xml", "<p/>", http.StatusBadRequest},
		{
			"duplicate stream",
			compiler.Options{},
			"/api/compile?format=toml",
			"[[streams]]\nkey = \"a\"\n[[streams.steps]]\nlabel = \"x\"\n[[streams]]\nkey = \"a\"\n[[streams.steps]]\nlabel = \"y\"\n",
			http.StatusBadRequest,
		},
		{
			"strict diagnostics",
			compiler.Options{Strict: true},
			"/api/compile?format=yaml",
			"name: orphan\nstreams:\n  - key: a\n    steps:\n      - triggers:\n          - watches: [x]\n            target: nowhere\n",
			http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(tt.opts)
			if rec := serve(s, "POST", tt.target, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestSetResultPublishesDiff(t *testing.T) {
	s := NewServer(compiler.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := s.publisher.Subscribe(ctx, pubsub.TopicGraph)
	if err != nil {
		t.Fatal(err)
	}

	result, err := compiler.Compile(context.Background(), pingPong(), compiler.Options{})
	if err != nil {
		t.Fatal(err)
	}
	s.SetResult("pingpong.toml", result)
	s.SetResult("pingpong.toml", result)

	statuses := make([]pubsub.GraphStatus, 0, 2)
	for len(statuses) < 2 {
		select {
		case ev := <-sub.Events():
			if ev.Type != pubsub.EventCompiled {
				t.Fatalf("unexpected event type %s", ev.Type)
			}
			var status pubsub.GraphStatus
			if err := json.Unmarshal(ev.Data, &status); err != nil {
				t.Fatal(err)
			}
			statuses = append(statuses, status)
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for status")
		}
	}

	if statuses[0].AddedNodes != result.Graph.NodeCount() {
		t.Errorf("first compile should add every node, got %+v", statuses[0])
	}
	if statuses[1].AddedNodes != 0 || statuses[1].RemovedEdges != 0 {
		t.Errorf("identical recompile should be empty, got %+v", statuses[1])
	}
}
