// Package metrics exposes compiler counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ritzau/procgraph/pkg/model"
)

// Compile outcomes used as the "outcome" label
const (
	OutcomeOK          = "ok"
	OutcomeDiagnostics = "diagnostics"
	OutcomeStructural  = "structural"
	OutcomeError       = "error"
)

// Registry holds every procgraph collector. It is separate from the
// default registry so tests and embedders see only these series.
var Registry = prometheus.NewRegistry()

var (
	compiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "procgraph_compiles_total",
			Help: "Total number of compilations by outcome",
		},
		[]string{"outcome"},
	)
	compileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "procgraph_compile_duration_seconds",
			Help:    "Duration of compilations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
	)
	graphSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "procgraph_graph_size",
			Help: "Size of the last compiled graph",
		},
		[]string{"part"},
	)
)

func init() {
	Registry.MustRegister(compiles, compileDuration, graphSize)
}

// ObserveCompile records one compilation. g may be nil when the compile
// failed before export.
func ObserveCompile(outcome string, elapsed time.Duration, g *model.Graph) {
	compiles.WithLabelValues(outcome).Inc()
	compileDuration.Observe(elapsed.Seconds())
	if g == nil {
		return
	}
	graphSize.WithLabelValues("clusters").Set(float64(len(g.Clusters)))
	graphSize.WithLabelValues("nodes").Set(float64(g.NodeCount()))
	graphSize.WithLabelValues("global_edges").Set(float64(len(g.GlobalEdges)))
	graphSize.WithLabelValues("diagnostics").Set(float64(len(g.Diagnostics)))
}

// Handler serves the registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
