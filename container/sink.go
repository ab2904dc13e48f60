package container

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"

	"github.com/flowcraft/core/eventstore"
	"github.com/flowcraft/core/scheduler"
)

// storeSink adapts a scheduler.Sink onto an eventstore.Store: every
// scheduler.Event becomes one eventstore.Event appended under aggregateID,
// giving a workflow run a durable, replayable record of its own lifecycle
// alongside whatever domain events a node writes through the same store.
// version tracks the next expected_version locally. This assumes a single
// storeSink instance is never called concurrently by more than one
// scheduler wave at a time; a workflow run with MaxParallel > 1 can emit
// two NodeStarted events from the same wave concurrently, in which case
// the loser of the race logs a ConcurrencyConflict and drops its event
// rather than corrupting the stream.
type storeSink struct {
	store       eventstore.Store
	aggregateID string
	version     int64
}

// Emit implements scheduler.Sink. Append failures are logged rather than
// propagated: Sink.Emit has no error return, and a lost lifecycle event
// must never abort an otherwise-successful node run.
func (s *storeSink) Emit(e scheduler.Event) {
	payload, err := json.Marshal(schedulerEventPayload{
		Node:    e.Node,
		Attempt: e.Attempt,
		Err:     errString(e.Err),
	})
	if err != nil {
		log.Printf("container: marshal scheduler event for %s: %v", s.aggregateID, err)
		return
	}

	expected := int(atomic.LoadInt64(&s.version))
	version, err := s.store.Append(context.Background(), s.aggregateID, expected, eventstore.Event{
		AggregateType: "workflow_run",
		EventType:     string(e.Type),
		Timestamp:     e.Time,
		Payload:       payload,
	})
	if err != nil {
		log.Printf("container: append scheduler event for %s: %v", s.aggregateID, err)
		return
	}
	atomic.StoreInt64(&s.version, int64(version))
}

type schedulerEventPayload struct {
	Node    string `json:"node,omitempty"`
	Attempt int    `json:"attempt,omitempty"`
	Err     string `json:"error,omitempty"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
