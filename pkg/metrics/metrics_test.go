package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ritzau/procgraph/pkg/model"
)

func TestObserveCompile(t *testing.T) {
	before := testutil.ToFloat64(compiles.WithLabelValues(OutcomeOK))

	g := &model.Graph{
		Clusters:    []model.Cluster{{Key: "a", Nodes: []model.NodeView{{ID: "a.0"}, {ID: "a.1"}}}},
		GlobalEdges: []model.Edge{{ID: "g0", From: "a.0", To: "a.1"}},
	}
	ObserveCompile(OutcomeOK, 3*time.Millisecond, g)
	ObserveCompile(OutcomeStructural, time.Millisecond, nil)

	if got := testutil.ToFloat64(compiles.WithLabelValues(OutcomeOK)); got != before+1 {
		t.Errorf("ok compiles = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(graphSize.WithLabelValues("nodes")); got != 2 {
		t.Errorf("nodes gauge = %v, want 2", got)
	}
	// A failed compile leaves the last size in place
	if got := testutil.ToFloat64(graphSize.WithLabelValues("global_edges")); got != 1 {
		t.Errorf("global_edges gauge = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	ObserveCompile(OutcomeDiagnostics, time.Millisecond, nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`procgraph_compiles_total{outcome="diagnostics"}`,
		"procgraph_compile_duration_seconds_bucket",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
