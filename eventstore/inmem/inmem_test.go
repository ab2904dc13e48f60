package inmem_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/eventstore"
	"github.com/flowcraft/core/eventstore/inmem"
)

func TestAppendAssignsContiguousVersions(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	ctx := context.Background()

	v1, err := s.Append(ctx, "x", 0, eventstore.Event{EventType: "WorkflowStarted"})
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	v2, err := s.Append(ctx, "x", 1, eventstore.Event{EventType: "NodeStarted"})
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	v3, err := s.Append(ctx, "x", 2, eventstore.Event{EventType: "NodeCompleted"})
	require.NoError(t, err)
	require.Equal(t, 3, v3)

	events, err := s.Load(ctx, "x", 1)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		require.Equal(t, i+1, e.Version)
	}
}

// S4: optimistic concurrency conflict.
func TestAppendRejectsStaleExpectedVersion(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, "x", i, eventstore.Event{EventType: "Tick"})
		require.NoError(t, err)
	}

	_, err := s.Append(ctx, "x", 2, eventstore.Event{EventType: "Tick"})
	require.Error(t, err)
	var conflict *eventstore.ConcurrencyConflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, 2, conflict.Expected)
	require.Equal(t, 3, conflict.Actual)

	events, err := s.Load(ctx, "x", 1)
	require.NoError(t, err)
	require.Len(t, events, 3)
}

func TestSaveSnapshotIsIdempotentPerVersion(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	ctx := context.Background()

	snap := eventstore.Snapshot{AggregateID: "x", Version: 2, State: json.RawMessage(`{"count":2}`)}
	require.NoError(t, s.SaveSnapshot(ctx, snap))
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	loaded, ok, err := s.LoadSnapshot(ctx, "x")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, loaded.Version)
}

func TestReplayFoldsEventsAfterSnapshot(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, "counter", i, eventstore.Event{EventType: "Incremented"})
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveSnapshot(ctx, eventstore.Snapshot{AggregateID: "counter", Version: 3, State: 3}))

	fold := func(state any, _ eventstore.Event) (any, error) {
		return state.(int) + 1, nil
	}
	final, err := s.Replay(ctx, "counter", fold, 0)
	require.NoError(t, err)
	require.Equal(t, 5, final)
}

func TestShouldSnapshotTriggersAfterEventCount(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{EventCount: 3})
	ctx := context.Background()

	require.False(t, s.ShouldSnapshot("x"))
	for i := 0; i < 3; i++ {
		_, err := s.Append(ctx, "x", i, eventstore.Event{EventType: "Tick"})
		require.NoError(t, err)
	}
	require.True(t, s.ShouldSnapshot("x"))

	require.NoError(t, s.SaveSnapshot(ctx, eventstore.Snapshot{AggregateID: "x", Version: 3}))
	require.False(t, s.ShouldSnapshot("x"))
}

func TestListReturnsPagesInVersionOrder(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Append(ctx, "x", i, eventstore.Event{EventType: "Tick"})
		require.NoError(t, err)
	}

	first, err := s.List(ctx, "x", "", 2)
	require.NoError(t, err)
	require.Len(t, first.Events, 2)
	require.Equal(t, 1, first.Events[0].Version)
	require.Equal(t, 2, first.Events[1].Version)
	require.NotEmpty(t, first.NextCursor)

	second, err := s.List(ctx, "x", first.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, second.Events, 2)
	require.Equal(t, 3, second.Events[0].Version)
	require.Equal(t, 4, second.Events[1].Version)
	require.NotEmpty(t, second.NextCursor)

	third, err := s.List(ctx, "x", second.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, third.Events, 1)
	require.Equal(t, 5, third.Events[0].Version)
	require.Empty(t, third.NextCursor)
}

func TestListNextCursorIsEmptyWhenExhausted(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	ctx := context.Background()

	_, err := s.Append(ctx, "x", 0, eventstore.Event{EventType: "Tick"})
	require.NoError(t, err)

	page, err := s.List(ctx, "x", "", 10)
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	require.Empty(t, page.NextCursor)
}

func TestListRejectsNonPositiveLimit(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	_, err := s.List(context.Background(), "x", "", 0)
	require.Error(t, err)
}

func TestListRejectsMalformedCursor(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	_, err := s.List(context.Background(), "x", "not-a-number", 10)
	require.Error(t, err)
}

func TestListOnUnknownAggregateReturnsEmptyPage(t *testing.T) {
	t.Parallel()
	s := inmem.New(eventstore.SnapshotPolicy{})
	page, err := s.List(context.Background(), "missing", "", 10)
	require.NoError(t, err)
	require.Empty(t, page.Events)
	require.Empty(t, page.NextCursor)
}
