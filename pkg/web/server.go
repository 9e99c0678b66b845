package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/procgraph/pkg/compiler"
	"github.com/ritzau/procgraph/pkg/cycles"
	"github.com/ritzau/procgraph/pkg/graph"
	"github.com/ritzau/procgraph/pkg/lens"
	"github.com/ritzau/procgraph/pkg/logging"
	"github.com/ritzau/procgraph/pkg/metrics"
	"github.com/ritzau/procgraph/pkg/model"
	"github.com/ritzau/procgraph/pkg/procedure"
	"github.com/ritzau/procgraph/pkg/pubsub"
	"github.com/ritzau/procgraph/pkg/render"
)

// maxUploadSize bounds the body of a compile request
const maxUploadSize = 4 << 20

// AnalysisData is the response of /api/analysis
type AnalysisData struct {
	Loops       []cycles.Loop `json:"loops"`
	Unreachable []string      `json:"unreachable"`
}

// Server serves the latest compiled graph and accepts ad-hoc compiles
type Server struct {
	router    *mux.Router
	publisher pubsub.Publisher
	options   compiler.Options

	mu       sync.RWMutex
	result   *compiler.Result
	source   string
	snapshot *lens.GraphSnapshot
}

// NewServer creates a new web server. opts apply to POST /api/compile.
func NewServer(opts compiler.Options) *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// Late subscribers get the current state only
	ssePublisher.ConfigureTopic(pubsub.TopicGraph, pubsub.TopicConfig{
		BufferSize: 5,
		ReplayAll:  false,
	})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
		options:   opts,
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler with request logging applied
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

// SetResult stores a new compilation result and notifies subscribers
// with a summary of what changed since the previous one
func (s *Server) SetResult(source string, result *compiler.Result) error {
	g := result.Graph

	s.mu.Lock()
	diff := lens.ComputeDiff(s.snapshot, g)
	s.snapshot = lens.CreateSnapshot(g)
	s.result = result
	s.source = source
	s.mu.Unlock()

	status := pubsub.GraphStatus{
		Name:         g.Name,
		Source:       source,
		Clusters:     len(g.Clusters),
		GlobalEdges:  len(g.GlobalEdges),
		Diagnostics:  len(g.Diagnostics),
		AddedNodes:   len(diff.AddedNodes),
		RemovedNodes: len(diff.RemovedNodes),
		AddedEdges:   len(diff.AddedEdges),
		RemovedEdges: len(diff.RemovedEdges),
	}
	return s.publisher.Publish(pubsub.TopicGraph, pubsub.EventCompiled, status)
}

// PublishFailure notifies subscribers that a recompile failed. The last
// good result keeps being served.
func (s *Server) PublishFailure(source string, err error) error {
	status := pubsub.GraphStatus{
		Source: source,
		Error:  err.Error(),
	}
	return s.publisher.Publish(pubsub.TopicGraph, pubsub.EventFailed, status)
}

func (s *Server) current() (*compiler.Result, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.source
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/graph", s.handleSubscribeGraph).Methods("GET")

	s.router.HandleFunc("/api/graph", s.handleRendered("json")).Methods("GET")
	s.router.HandleFunc("/api/graph.dot", s.handleRendered("dot")).Methods("GET")
	s.router.HandleFunc("/api/graph.mmd", s.handleRendered("mermaid")).Methods("GET")
	s.router.HandleFunc("/api/dump", s.handleRendered("text")).Methods("GET")
	s.router.HandleFunc("/api/diagnostics", s.handleDiagnostics).Methods("GET")
	s.router.HandleFunc("/api/analysis", s.handleAnalysis).Methods("GET")
	s.router.HandleFunc("/api/compile", s.handleCompile).Methods("POST")
	s.router.Handle("/metrics", metrics.Handler()).Methods("GET")
}

func (s *Server) handleSubscribeGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	sub, err := s.publisher.Subscribe(r.Context(), pubsub.TopicGraph)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.WarnContext(r.Context(), "error writing SSE event", "error", err)
			return
		}
		flush(w)
	}
}

// lensFromQuery reads ?focus=a,b&distance=N&hideSync=true
func lensFromQuery(r *http.Request) (lens.Config, error) {
	q := r.URL.Query()
	cfg := lens.Config{Distance: 1}

	if focus := q.Get("focus"); focus != "" {
		cfg.Focus = strings.Split(focus, ",")
	}
	if d := q.Get("distance"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return cfg, fmt.Errorf("invalid distance %q", d)
		}
		cfg.Distance = n
	}
	if h := q.Get("hideSync"); h != "" {
		b, err := strconv.ParseBool(h)
		if err != nil {
			return cfg, fmt.Errorf("invalid hideSync %q", h)
		}
		cfg.HideSync = b
	}
	return cfg, nil
}

// handleRendered serves the current graph in one output format, narrowed
// by the lens query parameters
func (s *Server) handleRendered(format string) http.HandlerFunc {
	renderer, err := render.ForFormat(format)
	if err != nil {
		panic(err)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		result, _ := s.current()
		if result == nil {
			http.Error(w, "no graph compiled yet", http.StatusServiceUnavailable)
			return
		}

		cfg, err := lensFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		view, err := lens.Apply(result.Graph, cfg)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, err := renderer(view)
		if err != nil {
			logging.ErrorContext(r.Context(), "failed to render graph", "format", format, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", render.ContentType(format))
		w.Write(data)
	}
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	result, _ := s.current()
	if result == nil {
		http.Error(w, "no graph compiled yet", http.StatusServiceUnavailable)
		return
	}

	diagnostics := result.Graph.Diagnostics
	if diagnostics == nil {
		diagnostics = []model.Diagnostic{}
	}
	writeJSON(w, http.StatusOK, diagnostics)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	result, _ := s.current()
	if result == nil {
		http.Error(w, "no graph compiled yet", http.StatusServiceUnavailable)
		return
	}

	data, err := analyze(result.Graph)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func analyze(g *model.Graph) (*AnalysisData, error) {
	fg, err := graph.NewFlowGraph(g)
	if err != nil {
		return nil, err
	}

	data := &AnalysisData{
		Loops:       cycles.FindLoops(fg),
		Unreachable: []string{},
	}

	if roots := cycles.Roots(g); len(roots) > 0 {
		unreachable, err := cycles.Unreachable(fg, roots...)
		if err != nil {
			return nil, err
		}
		if unreachable != nil {
			data.Unreachable = unreachable
		}
	}
	return data, nil
}

// handleCompile compiles an uploaded procedure without replacing the
// served graph. The body format is taken from ?format= (default json).
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = procedure.FormatJSON
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	proc, err := procedure.LoadBytes(body, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := compiler.Compile(ctx, proc, s.options)
	switch {
	case errors.Is(err, compiler.ErrDiagnostics):
		writeJSON(w, http.StatusUnprocessableEntity, result.Graph)
	case errors.Is(err, graph.ErrStructural):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case err != nil:
		logging.ErrorContext(r.Context(), "compile failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, result.Graph)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Start serves on the given port until ctx is done
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.publisher.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
