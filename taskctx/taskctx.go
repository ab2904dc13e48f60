// Package taskctx defines the mutable per-run record carried through a
// single workflow execution. It accumulates inputs, per-node outputs,
// metadata, and an error trail as the scheduler drives nodes to completion,
// following the same explicit-context-object shape as the teacher's
// run.Context, generalized from per-agent-run scope to per-workflow-run
// scope.
package taskctx

import (
	"sync"
	"time"

	"github.com/flowcraft/core/errs"
)

// Status is the coarse-grained lifecycle state of a workflow run.
type Status string

const (
	// Pending indicates the run has been created but scheduling has not
	// started.
	Pending Status = "pending"
	// Running indicates the scheduler is actively executing nodes.
	Running Status = "running"
	// Completed indicates every reachable node finished and the workflow
	// reached a terminal node or exhausted its ready set successfully.
	Completed Status = "completed"
	// Failed indicates a node failed terminally and the scheduler stopped
	// admitting further nodes.
	Failed Status = "failed"
	// Cancelled indicates the run was stopped via its cancellation token.
	Cancelled Status = "cancelled"
)

// ErrorEntry records one classified failure appended to a run's error
// trail. Entries are never removed or reordered.
type ErrorEntry struct {
	Node      string
	ErrorKind errs.Class
	Message   string
	Attempt   int
	Time      time.Time
}

// Context is the mutable record passed to every node's Process call. A
// single Context is shared across all nodes in a run; the scheduler
// guarantees non-parallel edges never mutate it concurrently, and parallel
// branches only ever write distinct node_outputs keys (enforced by workflow
// handle uniqueness), so the mutex here only ever contends on metadata and
// error-trail writes.
type Context struct {
	mu sync.Mutex

	// RunID uniquely identifies this run.
	RunID string
	// WorkflowName identifies the workflow definition being executed.
	WorkflowName string
	// Attempt is a retry counter nodes may read to vary behavior (e.g.
	// prompt hints). The scheduler does not update it; per-attempt numbers
	// are recorded in ErrorEntry.Attempt and in the scheduler's events.
	Attempt int
	// Labels carries caller-provided metadata propagated from the run's
	// invocation (tenant, priority, correlation id).
	Labels map[string]string

	inputs      map[string]any
	nodeOutputs map[string]any
	metadata    map[string]any
	errors      []ErrorEntry
	status      Status
}

// New constructs a Context for a fresh run with the given inputs. Inputs
// are copied so later external mutation of the caller's map cannot affect
// the run.
func New(runID, workflowName string, inputs map[string]any) *Context {
	cp := make(map[string]any, len(inputs))
	for k, v := range inputs {
		cp[k] = v
	}
	return &Context{
		RunID:        runID,
		WorkflowName: workflowName,
		inputs:       cp,
		nodeOutputs:  make(map[string]any),
		metadata:     make(map[string]any),
		status:       Pending,
	}
}

// GetInput returns the value supplied under key in the run's inputs.
func (c *Context) GetInput(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.inputs[key]
	return v, ok
}

// SetOutput records node's output value. Writing the same value again under
// the same node handle is a no-op (idempotent retries are expected);
// writing a different value for a node that already has an output is a
// Processing error, since node_outputs is insertion-only per §4.4.
func (c *Context) SetOutput(node string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.nodeOutputs[node]
	if !ok {
		c.nodeOutputs[node] = value
		return nil
	}
	if !deepEqual(existing, value) {
		return errs.Newf(errs.Processing, "node %s: output already set to a different value", node).WithNode(node)
	}
	return nil
}

// GetOutput returns the recorded output for node, if any.
func (c *Context) GetOutput(node string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.nodeOutputs[node]
	return v, ok
}

// Outputs returns a shallow copy of all recorded node outputs, for
// finalizing a run's result.
func (c *Context) Outputs() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]any, len(c.nodeOutputs))
	for k, v := range c.nodeOutputs {
		cp[k] = v
	}
	return cp
}

// AppendError appends entry to the run's error trail. The trail is
// append-only; entries are never edited or removed.
func (c *Context) AppendError(entry ErrorEntry) {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, entry)
}

// Errors returns a copy of the run's error trail in append order.
func (c *Context) Errors() []ErrorEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]ErrorEntry, len(c.errors))
	copy(cp, c.errors)
	return cp
}

// PutMetadata records a metadata value under key. Unlike node_outputs,
// overwriting an existing key is allowed and replaces its value (timings
// and token counters are expected to be updated over the life of a run).
func (c *Context) PutMetadata(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metadata[key] = value
}

// GetMetadata returns the value stored under key, if any.
func (c *Context) GetMetadata(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.metadata[key]
	return v, ok
}

// Metadata returns a shallow copy of all metadata.
func (c *Context) Metadata() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		cp[k] = v
	}
	return cp
}

// Status returns the run's current lifecycle status.
func (c *Context) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus transitions the run to status. Only the scheduler should call
// this; nodes never set status directly.
func (c *Context) SetStatus(status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// deepEqual compares two opaque context values for the idempotent-rewrite
// check in SetOutput. Most node outputs are primitives, strings, or small
// maps produced by encoding/json unmarshalling, so a reflect-based compare
// is sufficient and avoids requiring every value to implement its own
// equality.
func deepEqual(a, b any) bool {
	return deepEqualValue(a, b)
}
