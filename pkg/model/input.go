package model

import "fmt"

// Event is an action performed by an agent. When Target is set the event
// signals that name on completion.
type Event struct {
	Agent  string `json:"agent" koanf:"agent"`
	Method string `json:"method" koanf:"method"`
	Target string `json:"target,omitempty" koanf:"target"`
}

// Trigger is one wait condition in a trigger list
type Trigger struct {
	Watches  []string `json:"watches" koanf:"watches"`
	MinCount int      `json:"minCount,omitempty" koanf:"min"`
	Target   string   `json:"target,omitempty" koanf:"target"`
	Text     string   `json:"text,omitempty" koanf:"text"`
}

// TriggerList is a synchronization point where several triggers race.
// The first one satisfied proceeds.
type TriggerList struct {
	Triggers []Trigger `json:"triggers" koanf:"triggers"`
}

// Step is one entry of a stream. Exactly one field is set.
type Step struct {
	Event    *Event    `json:"event,omitempty" koanf:"event"`
	Triggers []Trigger `json:"triggers,omitempty" koanf:"triggers"`
	Label    string    `json:"label,omitempty" koanf:"label"`
}

// Validate checks that exactly one kind of step is present
func (s *Step) Validate() error {
	set := 0
	if s.Event != nil {
		set++
	}
	if s.Triggers != nil {
		set++
	}
	if s.Label != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("step must set exactly one of event, triggers or label (got %d)", set)
	}
	return nil
}

// Stream is the ordered input of one named cluster
type Stream struct {
	Key   string `json:"key" koanf:"key"`
	Steps []Step `json:"steps" koanf:"steps"`
}

// Procedure is the complete structured input of one compilation
type Procedure struct {
	Name    string   `json:"name" koanf:"name"`
	Streams []Stream `json:"streams" koanf:"streams"`
}

// StreamKeys returns the declared stream keys in declaration order
func (p *Procedure) StreamKeys() []string {
	keys := make([]string, 0, len(p.Streams))
	for _, s := range p.Streams {
		keys = append(keys, s.Key)
	}
	return keys
}
