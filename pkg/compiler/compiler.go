// Package compiler runs a procedure through the three assembly phases:
// populate the clusters, build their sequential edges, finalize the graph.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/procgraph/pkg/cycles"
	"github.com/ritzau/procgraph/pkg/graph"
	"github.com/ritzau/procgraph/pkg/logging"
	"github.com/ritzau/procgraph/pkg/metrics"
	"github.com/ritzau/procgraph/pkg/model"
)

// ErrDiagnostics is returned in strict mode when assembly produced warnings
var ErrDiagnostics = errors.New("compilation produced diagnostics")

// Options tune a compilation
type Options struct {
	Strict  bool // Fail on any diagnostic
	Analyze bool // Add loop and reachability diagnostics
}

// Result is the outcome of a compilation
type Result struct {
	Graph     *model.Graph
	Assembler *graph.Assembler
}

// Compile assembles the control-flow graph of a procedure.
//
// Edge building runs concurrently per cluster; clusters share no state in
// that phase. Finalize runs on the calling goroutine.
func Compile(ctx context.Context, proc *model.Procedure, opts Options) (*Result, error) {
	start := time.Now()
	result, err := compile(ctx, proc, opts)

	var g *model.Graph
	if result != nil {
		g = result.Graph
	}
	metrics.ObserveCompile(outcome(err), time.Since(start), g)
	return result, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrDiagnostics):
		return metrics.OutcomeDiagnostics
	case errors.Is(err, graph.ErrStructural):
		return metrics.OutcomeStructural
	}
	return metrics.OutcomeError
}

func compile(ctx context.Context, proc *model.Procedure, opts Options) (*Result, error) {
	asm := graph.NewAssembler(proc.Name)

	clusters, err := populate(asm, proc)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range clusters {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return c.BuildEdges()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building cluster edges: %w", err)
	}

	if err := asm.Finalize(); err != nil {
		return nil, fmt.Errorf("finalizing graph: %w", err)
	}

	exported, err := asm.Export()
	if err != nil {
		return nil, err
	}

	if opts.Analyze {
		extra, err := cycles.Analyze(exported)
		if err != nil {
			return nil, fmt.Errorf("analyzing graph: %w", err)
		}
		exported.Diagnostics = append(exported.Diagnostics, extra...)
	}

	logging.Info("compiled procedure",
		"name", proc.Name,
		"streams", len(clusters),
		"nodes", exported.NodeCount(),
		"globalEdges", len(exported.GlobalEdges),
		"diagnostics", len(exported.Diagnostics))

	result := &Result{Graph: exported, Assembler: asm}
	if opts.Strict && len(exported.Diagnostics) > 0 {
		return result, fmt.Errorf("%w: %d found, first: %s",
			ErrDiagnostics, len(exported.Diagnostics), exported.Diagnostics[0].Message)
	}
	return result, nil
}

// populate registers every stream and feeds its steps in source order
func populate(asm *graph.Assembler, proc *model.Procedure) ([]*graph.StreamCluster, error) {
	clusters := make([]*graph.StreamCluster, 0, len(proc.Streams))

	for _, stream := range proc.Streams {
		c, err := asm.RegisterCluster(stream.Key)
		if err != nil {
			return nil, err
		}

		for i, step := range stream.Steps {
			if err := step.Validate(); err != nil {
				return nil, fmt.Errorf("stream %q step %d: %w", stream.Key, i, err)
			}
			if err := addStep(c, step); err != nil {
				return nil, fmt.Errorf("stream %q step %d: %w", stream.Key, i, err)
			}
		}

		logging.Debug("populated cluster", "cluster", stream.Key, "nodes", len(c.Nodes()))
		clusters = append(clusters, c)
	}

	return clusters, nil
}

func addStep(c *graph.StreamCluster, step model.Step) error {
	switch {
	case step.Event != nil:
		_, err := c.AddEvent(*step.Event)
		return err
	case step.Triggers != nil:
		_, err := c.AddTriggerList(model.TriggerList{Triggers: step.Triggers})
		return err
	default:
		_, err := c.AddLabel(step.Label)
		return err
	}
}
