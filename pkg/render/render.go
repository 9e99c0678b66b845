// Package render turns an exported graph into output formats. It reads
// only model.Graph and never touches the assembler.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/ritzau/procgraph/pkg/graph"
	"github.com/ritzau/procgraph/pkg/model"
)

// Func renders a graph to bytes
type Func func(g *model.Graph) ([]byte, error)

// JSON renders the export structure as indented JSON
func JSON(g *model.Graph) ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	return append(data, '\n'), nil
}

// Text renders the debug dump
func Text(g *model.Graph) ([]byte, error) {
	return []byte(graph.DumpString(g)), nil
}

func mermaidBytes(g *model.Graph) ([]byte, error) {
	return []byte(Mermaid(g)), nil
}

// ForFormat returns the renderer for a format name
func ForFormat(format string) (Func, error) {
	switch format {
	case "text":
		return Text, nil
	case "json":
		return JSON, nil
	case "dot":
		return DOT, nil
	case "mermaid":
		return mermaidBytes, nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// ContentType returns the HTTP content type of a format
func ContentType(format string) string {
	switch format {
	case "json":
		return "application/json"
	case "dot":
		return "text/vnd.graphviz"
	}
	return "text/plain; charset=utf-8"
}
