package eventstore

import (
	"context"
	"sync"
)

// Projection is a named, deterministic read model built by folding events
// from version 1 through FoldFunc. A projection's checkpoint tracks the
// last processed version per aggregate; Rebuild does not resume from it,
// it always truncates and replays from version 1. Projection state must
// be derivable from events alone, so Fold
// must never read from anything but its (state, event) arguments.
type Projection struct {
	Name string
	Fold FoldFunc

	mu          sync.Mutex
	state       any
	checkpoints map[string]int
}

// NewProjection constructs a Projection starting from initial state.
func NewProjection(name string, initial any, fold FoldFunc) *Projection {
	return &Projection{
		Name:        name,
		Fold:        fold,
		state:       initial,
		checkpoints: make(map[string]int),
	}
}

// Apply folds a single event into the projection's state and advances the
// checkpoint for its aggregate. Callers (typically a subscriber draining a
// store's append stream) must apply events in version order per aggregate;
// Apply does not itself enforce ordering.
func (p *Projection) Apply(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	next, err := p.Fold(p.state, event)
	if err != nil {
		return err
	}
	p.state = next
	p.checkpoints[event.AggregateID] = event.Version
	return nil
}

// State returns the projection's current accumulated state.
func (p *Projection) State() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Checkpoint returns the last processed version for aggregateID, or 0 if
// the projection has not processed any event for it.
func (p *Projection) Checkpoint(aggregateID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkpoints[aggregateID]
}

// Rebuild truncates the projection back to initial and replays every event
// of every aggregate in aggregateIDs from version 1, in order. Rebuild is
// the only supported way to recover from a corrupted or stale projection;
// because Fold is pure, the result is identical to having applied events
// live from the start.
func (p *Projection) Rebuild(ctx context.Context, store Store, initial any, aggregateIDs []string) error {
	p.mu.Lock()
	p.state = initial
	p.checkpoints = make(map[string]int)
	p.mu.Unlock()

	for _, id := range aggregateIDs {
		events, err := store.Load(ctx, id, 1)
		if err != nil {
			return err
		}
		for _, e := range events {
			if err := p.Apply(e); err != nil {
				return err
			}
		}
	}
	return nil
}
