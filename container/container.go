// Package container is the single explicit dependency-injection point for
// the engine: it owns the event store, the per-server MCP connection
// pools, and the telemetry provider, constructed once at startup from
// config.Config and a caller-supplied server list. Nothing in this module
// reaches for a package-level global; every component that needs one of
// these dependencies receives it as a constructor parameter, following the
// explicit-construction convention the rest of the engine already follows
// (every node constructor, scheduler.New, and workflow.NewBuilder take
// their dependencies directly rather than looking them up).
package container

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/flowcraft/core/config"
	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/eventstore"
	"github.com/flowcraft/core/eventstore/inmem"
	"github.com/flowcraft/core/mcp/pool"
	"github.com/flowcraft/core/mcp/protocol"
	"github.com/flowcraft/core/mcp/transport"
	"github.com/flowcraft/core/scheduler"
	"github.com/flowcraft/core/telemetry"
	"github.com/flowcraft/core/workflow"
)

// TransportKind selects which mcp/transport implementation a ServerSpec
// dials.
type TransportKind string

const (
	TransportStdio     TransportKind = "stdio"
	TransportHTTP      TransportKind = "http"
	TransportWebSocket TransportKind = "websocket"
)

// ServerSpec configures one logical MCP server: its transport and the pool
// that manages connections to it. Fields outside the selected Kind are
// ignored.
type ServerSpec struct {
	Name             string
	Kind             TransportKind
	MaxConnections   int
	FailureThreshold int
	CoolDown         time.Duration
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	ClientOptions    protocol.ClientOptions
	// RateLimit caps outbound requests to this server in requests per
	// second; zero disables rate limiting. RateBurst defaults to 1.
	RateLimit float64
	RateBurst int

	// Replicas configures additional endpoints behind this same server
	// name, dialed and load-balanced the same way as the primary
	// endpoint above. Strategy selects how Acquire picks among them;
	// it is ignored when Replicas is empty.
	Replicas []ReplicaEndpoint
	Strategy pool.Strategy

	// IdleProbeInterval overrides how long a pooled connection to this
	// server may sit idle before the background health probe checks it.
	// Zero falls back to config.Config.MCPIdleProbeInterval.
	IdleProbeInterval time.Duration

	// Stdio
	Command string
	Args    []string
	Env     []string
	Dir     string

	// HTTP
	Endpoint string

	// WebSocket
	URL string
}

// ReplicaEndpoint configures one additional dial target behind a
// multi-endpoint ServerSpec. Only the fields relevant to the owning
// ServerSpec's Kind are consulted. Weight is used by
// pool.StrategyWeighted and defaults to 1.
type ReplicaEndpoint struct {
	Weight int

	// Stdio
	Command string
	Args    []string
	Env     []string
	Dir     string

	// HTTP
	Endpoint string

	// WebSocket
	URL string
}

// Dependencies is everything Build needs to assemble a Container.
type Dependencies struct {
	Config    *config.Config
	Telemetry telemetry.Provider
	Servers   []ServerSpec
}

// Container bundles the engine's shared, long-lived dependencies.
type Container struct {
	cfg       *config.Config
	telemetry telemetry.Provider
	events    *inmem.Store
	pools     *pool.Registry
}

// Build constructs a Container: one Pool per deps.Servers entry (dialing
// lazily, not eagerly, per mcp/pool's own contract) and one in-memory event
// store sized by deps.Config.EventStoreSnapshotEvery. deps.Telemetry
// defaults to telemetry.Noop() when zero-valued.
func Build(deps Dependencies) (*Container, error) {
	if deps.Config == nil {
		return nil, errs.New(errs.Validation, "container: config is required")
	}
	tp := deps.Telemetry
	if tp.Logger == nil {
		tp = telemetry.Noop()
	}

	registry := pool.NewRegistry()
	for _, spec := range deps.Servers {
		p, err := buildPool(spec, deps.Config)
		if err != nil {
			return nil, err
		}
		registry.Register(p)
	}

	store := inmem.New(eventstore.SnapshotPolicy{EventCount: deps.Config.EventStoreSnapshotEvery})

	return &Container{
		cfg:       deps.Config,
		telemetry: tp,
		events:    store,
		pools:     registry,
	}, nil
}

// Pools returns the registry of configured MCP connection pools, for
// node constructors (ToolCallNode) that need to look one up by server
// name.
func (c *Container) Pools() *pool.Registry { return c.pools }

// EventStore returns the event store backing every workflow run.
func (c *Container) EventStore() eventstore.Store { return c.events }

// Telemetry returns the configured telemetry.Provider.
func (c *Container) Telemetry() telemetry.Provider { return c.telemetry }

// NewScheduler builds a scheduler.Scheduler for wf, wiring its event sink
// to append into this Container's event store under aggregateID. Retry and
// parallelism defaults come from c.cfg unless overridden in cfg.
func (c *Container) NewScheduler(wf *workflow.Workflow, aggregateID string, cfg scheduler.Config) *scheduler.Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = c.cfg.WorkflowMaxParallel
	}
	if cfg.RetryPolicy.MaxAttempts <= 0 {
		cfg.RetryPolicy.MaxAttempts = c.cfg.MCPRetryAttempts
	}
	if cfg.Sink == nil {
		cfg.Sink = &storeSink{store: c.events, aggregateID: aggregateID}
	}
	return scheduler.New(wf, cfg)
}

// Close releases every pooled MCP connection.
func (c *Container) Close() error { return c.pools.Close() }

func buildPool(spec ServerSpec, cfg *config.Config) (*pool.Pool, error) {
	if spec.Name == "" {
		return nil, errs.New(errs.Validation, "container: server name is required")
	}
	requestTimeout := spec.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = cfg.MCPRequestTimeout
	}
	maxConnections := spec.MaxConnections
	if maxConnections <= 0 {
		maxConnections = cfg.MCPConnectionPoolSize
	}

	endpoints := make([]pool.Endpoint, 0, len(spec.Replicas)+1)
	endpoints = append(endpoints, pool.Endpoint{Dialer: buildDialer(spec, requestTimeout), Weight: 1})
	for _, r := range spec.Replicas {
		weight := r.Weight
		if weight <= 0 {
			weight = 1
		}
		endpoints = append(endpoints, pool.Endpoint{Dialer: buildDialer(replicaSpec(spec, r), requestTimeout), Weight: weight})
	}

	idleProbeInterval := spec.IdleProbeInterval
	if idleProbeInterval <= 0 {
		idleProbeInterval = cfg.MCPIdleProbeInterval
	}
	var probeFn pool.ProbeFn
	if idleProbeInterval > 0 {
		probeFn = probeToolsList
	}

	return pool.New(pool.Config{
		ServerName:        spec.Name,
		MaxConnections:    maxConnections,
		FailureThreshold:  spec.FailureThreshold,
		CoolDown:          spec.CoolDown,
		Endpoints:         endpoints,
		Strategy:          spec.Strategy,
		RateLimit:         spec.RateLimit,
		RateBurst:         spec.RateBurst,
		IdleProbeInterval: idleProbeInterval,
		ProbeFn:           probeFn,
	})
}

// buildDialer closes over spec and dials plus initializes a single
// transport connection, so every pooled connection handed to a
// ToolCallNode is already initialized and can be wrapped with
// protocol.NewInitializedClient without repeating the handshake.
func buildDialer(spec ServerSpec, requestTimeout time.Duration) pool.Dialer {
	return func(ctx context.Context) (transport.Transport, error) {
		t, err := dialTransport(ctx, spec, requestTimeout)
		if err != nil {
			return nil, err
		}
		client := protocol.NewClient(t, spec.ClientOptions)
		if err := client.Initialize(ctx); err != nil {
			_ = t.Close()
			return nil, err
		}
		return t, nil
	}
}

// replicaSpec copies spec and overlays r's connection target onto whichever
// fields spec.Kind reads, so buildDialer can dial a replica endpoint with
// the same transport kind and client options as the primary.
func replicaSpec(spec ServerSpec, r ReplicaEndpoint) ServerSpec {
	out := spec
	switch spec.Kind {
	case TransportStdio:
		out.Command, out.Args, out.Env, out.Dir = r.Command, r.Args, r.Env, r.Dir
	case TransportHTTP:
		out.Endpoint = r.Endpoint
	case TransportWebSocket:
		out.URL = r.URL
	}
	return out
}

// probeToolsList is the default health probe: a tools/list call is the
// cheapest request every MCP server must answer, so it doubles as a
// liveness check without depending on server-specific tool names.
func probeToolsList(ctx context.Context, t transport.Transport) error {
	var discard json.RawMessage
	return t.Call(ctx, protocol.MethodToolsList, map[string]any{}, &discard)
}

// dialTransport opens the raw transport for spec's Kind. It does not run
// the initialize handshake; buildDialer does that once per new connection,
// so every pooled connection handed to a ToolCallNode is already
// initialized and can be wrapped with protocol.NewInitializedClient
// without repeating it.
func dialTransport(ctx context.Context, spec ServerSpec, requestTimeout time.Duration) (transport.Transport, error) {
	switch spec.Kind {
	case TransportStdio:
		return transport.NewStdio(transport.StdioOptions{
			Command: spec.Command,
			Args:    spec.Args,
			Env:     spec.Env,
			Dir:     spec.Dir,
		})
	case TransportHTTP:
		return transport.NewHTTP(transport.HTTPOptions{
			Endpoint: spec.Endpoint,
			Client:   &http.Client{Timeout: requestTimeout},
		})
	case TransportWebSocket:
		dialCtx := ctx
		return transport.NewWebSocket(dialCtx, transport.WebSocketOptions{
			URL:         spec.URL,
			DialTimeout: spec.ConnectTimeout,
		})
	default:
		return nil, errs.Newf(errs.Validation, "container: unknown transport kind %q", spec.Kind).WithServer(spec.Name)
	}
}
