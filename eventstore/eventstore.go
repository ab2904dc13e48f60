// Package eventstore defines the append-only event log contract workflow
// runs are persisted through: an Event/Snapshot data model, a Store
// interface any backend can implement, and Projection, a deterministic
// read-model fold over the full event stream. The event log is always the
// source of truth; snapshots are a read-side acceleration structure
// derivable from events alone.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event is a single immutable fact appended to an aggregate's stream.
// Version is strictly positive and monotonic per AggregateID; for a given
// AggregateID the set of versions in a stream is exactly {1,...,N}.
type Event struct {
	EventID       string
	AggregateID   string
	AggregateType string
	Version       int
	EventType     string
	Timestamp     time.Time
	Payload       json.RawMessage
	CorrelationID string
	CausationID   string
}

// Snapshot collapses events 1..Version of an aggregate into an opaque
// state value. Snapshots are read-side optimizations only and must never
// be treated as a second source of truth; State is whatever a Projection's
// FoldFunc produces, so Replay can resume folding from it directly.
type Snapshot struct {
	AggregateID string
	Version     int
	State       any
	Timestamp   time.Time
}

// FoldFunc folds one event into an accumulated state value. Fold functions
// must be pure: given the same (state, event) pair they always produce the
// same result, since Replay may apply them starting from any snapshot.
type FoldFunc func(state any, event Event) (any, error)

// ConcurrencyConflict is returned by Store.Append when the caller's
// expected_version does not match the aggregate's current max version.
type ConcurrencyConflict struct {
	AggregateID string
	Expected    int
	Actual      int
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrency conflict on aggregate %s: expected version %d, actual %d", e.AggregateID, e.Expected, e.Actual)
}

// SnapshotPolicy configures when a store should trigger a background
// snapshot write: after at least EventCount events have accumulated since
// the last snapshot, or at least Elapsed time has passed, whichever comes
// first. A zero-value policy (both fields zero) disables automatic
// snapshotting; callers may still call SaveSnapshot directly.
type SnapshotPolicy struct {
	EventCount int
	Elapsed    time.Duration
}

// DefaultSnapshotPolicy matches the environment-configurable default of
// snapshotting every 100 events (see config.FromEnv's
// EVENT_STORE_SNAPSHOT_EVERY).
var DefaultSnapshotPolicy = SnapshotPolicy{EventCount: 100}

// Page is one bounded page of a List call: up to the requested limit of
// events, plus an opaque cursor to fetch the next page. NextCursor is empty
// once the stream is exhausted.
type Page struct {
	Events     []Event
	NextCursor string
}

// Store is the contract any event-store backend implements. The package
// ships only an in-memory implementation (eventstore/inmem); persistent
// backends are a collaborator concern outside this module.
type Store interface {
	// Append appends event to aggregateID's stream if expectedVersion
	// equals the stream's current max version (0 for a new stream), and
	// returns the event's assigned version. A mismatch returns
	// *ConcurrencyConflict and leaves the stream unchanged.
	Append(ctx context.Context, aggregateID string, expectedVersion int, event Event) (int, error)

	// Load returns events for aggregateID in version order, starting at
	// fromVersion (1 to load the whole stream).
	Load(ctx context.Context, aggregateID string, fromVersion int) ([]Event, error)

	// List returns a bounded page of events for aggregateID in version
	// order. cursor is the empty string for the first page, or a prior
	// Page's NextCursor to continue; cursor values are store-owned and
	// opaque to callers. limit must be positive.
	List(ctx context.Context, aggregateID string, cursor string, limit int) (Page, error)

	// LoadSnapshot returns the most recent snapshot for aggregateID, if
	// any.
	LoadSnapshot(ctx context.Context, aggregateID string) (Snapshot, bool, error)

	// SaveSnapshot persists snapshot. Saves are idempotent per
	// (AggregateID, Version): saving the same version twice is a no-op.
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error

	// Replay loads the latest snapshot (if any) and the events after its
	// version, then folds them onto initial via fold, returning the final
	// state.
	Replay(ctx context.Context, aggregateID string, fold FoldFunc, initial any) (any, error)
}
