// Package events carries lifecycle notifications (predictor builds, artifact
// downloads, task outcomes) from the core to observers such as the /events
// stream and tests.
package events

import "time"

// Event represents one lifecycle event.
// Minimal and stable: name + variant and optional fields via key/values.
type Event struct {
	Name    string         `json:"name"`
	Variant string         `json:"variant,omitempty"`
	Time    time.Time      `json:"time"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// Nop drops events.
type Nop struct{}

func (Nop) Publish(Event) {}

// OrNop returns p, or Nop when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop{}
	}
	return p
}

// New stamps an event with the current time.
func New(name, variant string, fields map[string]any) Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return Event{Name: name, Variant: variant, Time: time.Now(), Fields: fields}
}

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}
