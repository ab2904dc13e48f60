// Package inmem provides an in-memory implementation of eventstore.Store
// for tests and local development. It is not durable.
package inmem

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/eventstore"
)

// Store implements eventstore.Store with per-aggregate slices guarded by
// one store-wide mutex, mirroring the teacher's per-run sequence-counter pattern
// generalized to accept a caller-supplied expected_version on every
// append rather than always appending at the tail.
type Store struct {
	mu        sync.Mutex
	streams   map[string][]eventstore.Event
	snapshots map[string]eventstore.Snapshot
	policy    eventstore.SnapshotPolicy
	sinceSnap map[string]int
}

// New returns an empty in-memory Store. A zero-value policy disables
// automatic snapshotting.
func New(policy eventstore.SnapshotPolicy) *Store {
	return &Store{
		streams:   make(map[string][]eventstore.Event),
		snapshots: make(map[string]eventstore.Snapshot),
		policy:    policy,
		sinceSnap: make(map[string]int),
	}
}

// Append implements eventstore.Store.
func (s *Store) Append(_ context.Context, aggregateID string, expectedVersion int, event eventstore.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	actual := len(stream)
	if expectedVersion != actual {
		return 0, &eventstore.ConcurrencyConflict{AggregateID: aggregateID, Expected: expectedVersion, Actual: actual}
	}

	event.AggregateID = aggregateID
	event.Version = actual + 1
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	s.streams[aggregateID] = append(stream, event)
	s.sinceSnap[aggregateID]++
	return event.Version, nil
}

// Load implements eventstore.Store.
func (s *Store) Load(_ context.Context, aggregateID string, fromVersion int) ([]eventstore.Event, error) {
	if fromVersion < 1 {
		fromVersion = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.streams[aggregateID]
	if fromVersion > len(stream) {
		return nil, nil
	}
	out := make([]eventstore.Event, len(stream)-(fromVersion-1))
	copy(out, stream[fromVersion-1:])
	return out, nil
}

// List implements eventstore.Store. The cursor is the decimal string form
// of the version to resume after; the empty cursor starts at version 1.
// NextCursor is the last returned event's version, so callers passing it
// back resume immediately after that event.
func (s *Store) List(_ context.Context, aggregateID string, cursor string, limit int) (eventstore.Page, error) {
	if limit <= 0 {
		return eventstore.Page{}, errs.New(errs.Validation, "eventstore: limit must be positive")
	}
	fromVersion := 1
	if cursor != "" {
		after, err := strconv.Atoi(cursor)
		if err != nil || after < 0 {
			return eventstore.Page{}, errs.Newf(errs.Validation, "eventstore: malformed cursor %q", cursor)
		}
		fromVersion = after + 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.streams[aggregateID]
	if fromVersion > len(stream) {
		return eventstore.Page{}, nil
	}

	remaining := stream[fromVersion-1:]
	n := limit
	if n > len(remaining) {
		n = len(remaining)
	}
	page := make([]eventstore.Event, n)
	copy(page, remaining[:n])

	var nextCursor string
	if n < len(remaining) {
		nextCursor = strconv.Itoa(page[n-1].Version)
	}
	return eventstore.Page{Events: page, NextCursor: nextCursor}, nil
}

// LoadSnapshot implements eventstore.Store.
func (s *Store) LoadSnapshot(_ context.Context, aggregateID string) (eventstore.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[aggregateID]
	return snap, ok, nil
}

// SaveSnapshot implements eventstore.Store. Saving the same
// (AggregateID, Version) twice is a no-op so concurrent background
// snapshot tasks can race harmlessly.
func (s *Store) SaveSnapshot(_ context.Context, snapshot eventstore.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.snapshots[snapshot.AggregateID]; ok && existing.Version >= snapshot.Version {
		return nil
	}
	s.snapshots[snapshot.AggregateID] = snapshot
	s.sinceSnap[snapshot.AggregateID] = 0
	return nil
}

// Replay implements eventstore.Store.
func (s *Store) Replay(ctx context.Context, aggregateID string, fold eventstore.FoldFunc, initial any) (any, error) {
	state := initial
	fromVersion := 1
	if snap, ok, err := s.LoadSnapshot(ctx, aggregateID); err != nil {
		return nil, err
	} else if ok {
		state = snap.State
		fromVersion = snap.Version + 1
	}
	events, err := s.Load(ctx, aggregateID, fromVersion)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		state, err = fold(state, e)
		if err != nil {
			return nil, err
		}
	}
	return state, nil
}

// ShouldSnapshot reports whether aggregateID has accumulated enough events
// since its last snapshot to warrant one, per the store's configured
// policy. Elapsed-time triggering is left to the caller's background task
// (this method only tracks the event-count side, since last-snapshot time
// is recoverable from the snapshot's own Timestamp field).
func (s *Store) ShouldSnapshot(aggregateID string) bool {
	if s.policy.EventCount <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinceSnap[aggregateID] >= s.policy.EventCount
}
