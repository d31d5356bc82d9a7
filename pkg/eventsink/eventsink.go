// Package eventsink defines the structured events the Detector
// Orchestrator emits, and a multi-producer single-consumer Sink that
// serializes them through one writer goroutine so events from concurrent
// detector runs never interleave.
package eventsink

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the observable orchestrator events.
type Kind string

const (
	KindScanStart        Kind = "scan_start"
	KindDetectorComplete Kind = "detector_complete"
	KindDetectorFailed   Kind = "detector_failed"
	KindScanComplete     Kind = "scan_complete"
)

// Event is one structured observation emitted by an orchestrator run.
type Event struct {
	ID        string                 `json:"id"`
	Kind      Kind                   `json:"kind"`
	ScanID    string                 `json:"scan_id"`
	Detector  string                 `json:"detector,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Sink is the caller-supplied event consumer. Publish must be safe to
// call from multiple goroutines concurrently; Sink itself owns
// serialization against its backing writer.
type Sink interface {
	Publish(Event)
}

// ChannelSink is the default Sink implementation: a buffered channel fed
// by many producers (one per detector goroutine) and drained by exactly
// one consumer goroutine, so events from concurrent detector runs never
// interleave mid-record.
type ChannelSink struct {
	events chan Event
	done   chan struct{}
}

// NewChannelSink starts the single consumer goroutine, which invokes
// handle for every published event in emission order.
func NewChannelSink(bufferSize int, handle func(Event)) *ChannelSink {
	s := &ChannelSink{
		events: make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for ev := range s.events {
			handle(ev)
		}
	}()
	return s
}

// Publish enqueues an event. Safe for concurrent use by many producers.
func (s *ChannelSink) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.events <- ev
}

// Close stops accepting new events and waits for the consumer goroutine
// to drain the channel.
func (s *ChannelSink) Close() {
	close(s.events)
	<-s.done
}

// NoopSink discards every event; useful for callers that do not need
// observability, without requiring a nil-check at every Publish call.
type NoopSink struct{}

func (NoopSink) Publish(Event) {}
