package core

import "context"

type EventType string

const (
	EventStatus   EventType = "status"
	EventMessage  EventType = "message"
	EventCitation EventType = "citation"
)

// Event is the union the plugin pushes back to the host UI.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

type StatusData struct {
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Done        bool   `json:"done"`
}

type MessageData struct {
	Content string `json:"content"`
}

type CitationMetadata struct {
	Source string `json:"source"`
	HTML   bool   `json:"html"`
}

type CitationSource struct {
	Name string `json:"name"`
}

type CitationData struct {
	Document []string           `json:"document"`
	Metadata []CitationMetadata `json:"metadata"`
	Source   CitationSource     `json:"source"`
}

func StatusEvent(description string, done bool) Event {
	return Event{Type: EventStatus, Data: StatusData{Description: description, Done: done}}
}

func MessageEvent(content string) Event {
	return Event{Type: EventMessage, Data: MessageData{Content: content}}
}

func CitationEvent(name, url, document string, html bool) Event {
	return Event{
		Type: EventCitation,
		Data: CitationData{
			Document: []string{document},
			Metadata: []CitationMetadata{{Source: url, HTML: html}},
			Source:   CitationSource{Name: name},
		},
	}
}

// Emitter delivers an event to the host. It may block on I/O.
type Emitter func(ctx context.Context, event Event) error

// DiscardEmitter drops every event.
func DiscardEmitter(context.Context, Event) error {
	return nil
}

// MultiEmitter fans an event out to every emitter and returns the first error.
func MultiEmitter(emitters ...Emitter) Emitter {
	return func(ctx context.Context, event Event) error {
		var firstErr error
		for _, emit := range emitters {
			if emit == nil {
				continue
			}
			if err := emit(ctx, event); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}

// Recorder collects emitted events in order.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}
