// Package scheduler drives a validated workflow.Workflow to completion: it
// computes a topological order, admits nodes as their predecessors
// complete, prunes router out-edges that were not selected, retries
// Transient node failures with exponential backoff, and emits a lifecycle
// event for every transition. Execution is single-threaded cooperative by
// default; independent branches may run concurrently up to a configured
// max_parallel, but correctness of a workflow must never depend on that
// parallelism beyond the partial order the edges already encode.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/taskctx"
	"github.com/flowcraft/core/workflow"
)

// Config configures a Scheduler run.
type Config struct {
	// MaxParallel bounds how many ready nodes in a single wave may execute
	// concurrently. 0 or 1 means strictly sequential.
	MaxParallel int
	// RetryPolicy governs retries of Transient node failures.
	RetryPolicy RetryPolicy
	// NodeTimeout bounds a single node invocation attempt; each retry gets
	// a fresh budget. Zero means no timeout.
	NodeTimeout time.Duration
	// Sink receives lifecycle events. Defaults to NoopSink.
	Sink Sink
}

// Scheduler executes one workflow.Workflow against a taskctx.Context.
type Scheduler struct {
	wf   *workflow.Workflow
	cfg  Config
	rank map[int]int
}

// New constructs a Scheduler for wf. wf must already be the product of a
// successful workflow.Builder.Build call.
func New(wf *workflow.Workflow, cfg Config) *Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	cfg.RetryPolicy = cfg.RetryPolicy.normalize()
	if cfg.Sink == nil {
		cfg.Sink = NoopSink{}
	}
	order := topoOrder(wf)
	rank := make(map[int]int, len(order))
	for i, idx := range order {
		rank[idx] = i
	}
	return &Scheduler{wf: wf, cfg: cfg, rank: rank}
}

// Run executes the workflow against tc, one wave of ready nodes at a time:
// every node in a wave is admitted by the same prior completions, so
// running a wave's nodes concurrently (bounded by MaxParallel) never
// violates the dependency order the edges encode. Nodes within a wave run
// in rank order when MaxParallel permits only partial concurrency. Run
// returns the first terminal failure, or nil on success.
func (s *Scheduler) Run(ctx context.Context, tc *taskctx.Context) error {
	tc.SetStatus(taskctx.Running)
	s.cfg.Sink.Emit(Event{Type: WorkflowStarted, Time: time.Now()})

	pending := make([]int, s.wf.NodeCount())
	for _, e := range s.wf.Edges() {
		pending[e.To]++
	}

	ready := []int{s.wf.Entry()}
	var workflowErr error
	terminalReached := false

	for len(ready) > 0 {
		if err := ctx.Err(); err != nil {
			workflowErr = err
			break
		}

		s.sortByRank(ready)
		wave := ready
		ready = nil

		outcomes := s.runWave(ctx, wave, tc)

		var nextReady []int
		for _, idx := range wave {
			oc := outcomes[idx]
			if oc.err != nil {
				workflowErr = oc.err
				break
			}
			if _, ok := s.wf.Node(idx).(node.Terminal); ok {
				terminalReached = true
			}
			nextReady = append(nextReady, s.admitSuccessors(idx, tc, pending)...)
		}
		if workflowErr != nil {
			break
		}
		if terminalReached {
			break
		}
		ready = dedupe(nextReady)
	}

	return s.finish(ctx, tc, workflowErr)
}

type nodeOutcome struct {
	err error
}

// runWave runs every node in wave to completion (with its own retry loop)
// under a bound of MaxParallel concurrent executions, and returns each
// node's outcome keyed by arena index.
func (s *Scheduler) runWave(ctx context.Context, wave []int, tc *taskctx.Context) map[int]nodeOutcome {
	outcomes := make(map[int]nodeOutcome, len(wave))
	var mu sync.Mutex
	sem := make(chan struct{}, s.cfg.MaxParallel)
	var wg sync.WaitGroup

	for _, idx := range wave {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			err := s.runNode(ctx, idx, tc)
			mu.Lock()
			outcomes[idx] = nodeOutcome{err: err}
			mu.Unlock()
		}(idx)
	}
	wg.Wait()
	return outcomes
}

// admitSuccessors returns the arena indices whose pending-predecessor
// count reached zero after idx completed. Router out-edges whose label
// does not match the chosen branch are never counted as firing, so a
// successor reachable only through a pruned edge never becomes ready.
func (s *Scheduler) admitSuccessors(idx int, tc *taskctx.Context, pending []int) []int {
	var chosen string
	var isRouter bool
	if _, ok := s.wf.Node(idx).(node.Router); ok {
		isRouter = true
		if v, ok := tc.GetMetadata(node.MetadataKey(s.wf.Handle(idx))); ok {
			chosen, _ = v.(string)
		}
	}

	var admitted []int
	for _, e := range s.wf.Successors(idx) {
		if isRouter && e.Label != chosen {
			continue
		}
		pending[e.To]--
		if pending[e.To] == 0 {
			admitted = append(admitted, e.To)
		}
	}
	return admitted
}

func dedupe(idxs []int) []int {
	seen := make(map[int]bool, len(idxs))
	out := idxs[:0]
	for _, i := range idxs {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}

func (s *Scheduler) sortByRank(ready []int) {
	sort.Slice(ready, func(i, j int) bool { return s.rank[ready[i]] < s.rank[ready[j]] })
}

// runNode drives a single node through its retry loop: it emits
// NodeStarted before each attempt and exactly one of NodeCompleted or
// NodeFailed once the node's outcome for this admission is decided. When
// ctx is cancelled before an attempt or during a backoff wait, it returns
// ctx.Err() and emits neither.
func (s *Scheduler) runNode(ctx context.Context, idx int, tc *taskctx.Context) error {
	n := s.wf.Node(idx)
	handle := s.wf.Handle(idx)
	policy := s.cfg.RetryPolicy

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cfg.Sink.Emit(Event{Type: NodeStarted, Node: handle, Attempt: attempt, Time: time.Now()})

		attemptCtx := ctx
		var cancel context.CancelFunc
		if s.cfg.NodeTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.NodeTimeout)
		}
		err := n.Process(attemptCtx, tc)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			s.cfg.Sink.Emit(Event{Type: NodeCompleted, Node: handle, Attempt: attempt, Time: time.Now()})
			return nil
		}

		lastErr = err
		tc.AppendError(taskctx.ErrorEntry{
			Node:      handle,
			ErrorKind: errs.ClassOf(err),
			Message:   err.Error(),
			Attempt:   attempt,
		})

		if !errs.Retryable(err) || attempt >= policy.MaxAttempts {
			s.cfg.Sink.Emit(Event{Type: NodeFailed, Node: handle, Attempt: attempt, Err: err, Time: time.Now()})
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(policy.backoff(attempt)):
		}
	}
	return lastErr
}

// finish sets tc's final status and emits the workflow-level terminal
// event matching the run's outcome.
func (s *Scheduler) finish(ctx context.Context, tc *taskctx.Context, failed error) error {
	switch {
	case failed != nil && ctx.Err() != nil && failed == ctx.Err():
		tc.SetStatus(taskctx.Cancelled)
		s.cfg.Sink.Emit(Event{Type: WorkflowCancelled, Time: time.Now()})
		return failed
	case failed != nil:
		tc.SetStatus(taskctx.Failed)
		s.cfg.Sink.Emit(Event{Type: WorkflowFailed, Err: failed, Time: time.Now()})
		return failed
	default:
		tc.SetStatus(taskctx.Completed)
		s.cfg.Sink.Emit(Event{Type: WorkflowCompleted, Time: time.Now()})
		return nil
	}
}
