package pubsub

import (
	"context"
	"encoding/json"
)

// TopicGraph carries one event per compilation attempt
const TopicGraph = "graph"

// Event types published on TopicGraph
const (
	EventCompiled = "compiled"
	EventFailed   = "failed"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "graph")
	Type    string          `json:"type"`    // Event type (e.g., "compiled", "failed")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// GraphStatus summarizes one compilation for live viewers
type GraphStatus struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Clusters    int    `json:"clusters"`
	GlobalEdges int    `json:"globalEdges"`
	Diagnostics int    `json:"diagnostics"`
	Error       string `json:"error,omitempty"`

	// Changes since the previous successful compile
	AddedNodes   int `json:"addedNodes"`
	RemovedNodes int `json:"removedNodes"`
	AddedEdges   int `json:"addedEdges"`
	RemovedEdges int `json:"removedEdges"`
}
