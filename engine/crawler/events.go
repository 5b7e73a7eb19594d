package crawler

import (
	"context"
	"time"
)

// EventKind names a crawl step.
type EventKind string

const (
	EventRecord          EventKind = "record"           // name resolved to a record
	EventNoData          EventKind = "no_data"          // name resolved to nothing
	EventLookupFailed    EventKind = "lookup_failed"    // a resolver call errored
	EventExpanded        EventKind = "expanded"         // relations of an identifier resolved
	EventAlreadyExplored EventKind = "already_explored" // identifier expanded by an earlier visit
	EventDepthExceeded   EventKind = "depth_exceeded"   // queue entry beyond max depth dropped
	EventCompleted       EventKind = "completed"        // queue drained
)

// Resolver names used in events and metrics.
const (
	ResolverEntity   = "entity"
	ResolverRelation = "relation"
)

// Event describes one crawl step. Fields that do not apply are zero.
// Identifiers is the record size on EventRecord; Related and Enqueued are
// set on EventExpanded.
type Event struct {
	RunID       string        `json:"run_id"`
	Kind        EventKind     `json:"kind"`
	Resolver    string        `json:"resolver,omitempty"`
	Name        string        `json:"name,omitempty"`
	Depth       int           `json:"depth"`
	Identifier  string        `json:"identifier,omitempty"`
	Identifiers int           `json:"identifiers,omitempty"`
	Related     int           `json:"related,omitempty"`
	Enqueued    int           `json:"enqueued,omitempty"`
	QueueLen    int           `json:"queue_len"`
	Explored    int           `json:"explored"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
	Error       string        `json:"error,omitempty"`
	At          time.Time     `json:"at"`
}

// EventSink receives crawl events synchronously from the crawl loop.
type EventSink interface {
	HandleEvent(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) HandleEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// MultiSink fans every event out to each sink in order. nil entries are skipped.
type MultiSink []EventSink

func (m MultiSink) HandleEvent(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.HandleEvent(ctx, ev)
		}
	}
}
