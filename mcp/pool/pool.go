// Package pool manages pooled MCP transport connections per server name:
// lazy dial up to a configured maximum, release-on-drop handles, a circuit
// breaker that fails fast once a server's transport starts consistently
// failing, a background health probe that closes connections that go idle
// too long without proving they still work, and a pluggable load-balancing
// strategy across replica endpoints for servers with more than one.
package pool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/mcp/transport"
)

// Dialer opens a new transport connection to a single MCP server endpoint.
// Pools call it lazily, at most MaxConnections times concurrently across
// all of a server's endpoints.
type Dialer func(ctx context.Context) (transport.Transport, error)

// ProbeFn issues a low-cost request over an already-open transport to
// confirm it is still healthy. A non-nil error closes the connection
// instead of returning it to the idle set.
type ProbeFn func(ctx context.Context, tr transport.Transport) error

// Strategy selects which endpoint Acquire dials or prefers when a server
// has more than one replica endpoint configured.
type Strategy int

const (
	// StrategyRoundRobin cycles through endpoints in order.
	StrategyRoundRobin Strategy = iota
	// StrategyLeastInUse picks the endpoint with the fewest connections
	// currently checked out.
	StrategyLeastInUse
	// StrategyWeighted picks an endpoint at random, weighted by Endpoint.Weight.
	StrategyWeighted
)

// Endpoint is one dialable replica of a logical MCP server. Weight is only
// consulted under StrategyWeighted; endpoints with Weight <= 0 default to 1.
type Endpoint struct {
	Dialer Dialer
	Weight int
}

// Config configures a Pool for one server name.
type Config struct {
	ServerName       string
	MaxConnections   int
	FailureThreshold int
	CoolDown         time.Duration

	// Dialer configures a single-endpoint server. It is folded into
	// Endpoints as an implicit first entry, so existing single-endpoint
	// configs keep working unchanged alongside multi-endpoint ones.
	Dialer Dialer
	// Endpoints configures one or more replica endpoints for this server
	// name. When both Dialer and Endpoints are set, Dialer is tried first.
	Endpoints []Endpoint
	// Strategy selects how Acquire picks among multiple endpoints. Ignored
	// when there is only one. Defaults to StrategyRoundRobin.
	Strategy Strategy

	// RateLimit caps outbound requests to this server in requests per
	// second. Zero disables rate limiting.
	RateLimit float64
	// RateBurst is the limiter's burst size. Defaults to 1 when
	// RateLimit is set and RateBurst is zero.
	RateBurst int

	// IdleProbeInterval is how long a connection may sit idle before the
	// background probe loop issues a health check against it. Zero
	// disables probing.
	IdleProbeInterval time.Duration
	// ProbeFn issues the health check. Required when IdleProbeInterval is
	// non-zero.
	ProbeFn ProbeFn
	// ProbeTimeout bounds a single probe call. Defaults to 5s.
	ProbeTimeout time.Duration
}

// idleConn is a transport sitting in the idle set, tagged with the
// endpoint it was dialed from and when it went idle, so the probe loop can
// find connections that have been idle beyond IdleProbeInterval.
type idleConn struct {
	transport transport.Transport
	endpoint  int
	idleSince time.Time
}

// Pool owns every open transport connection to a single MCP server and
// enforces MaxConnections concurrently open at once, across however many
// replica endpoints are configured. PooledConnection handles returned by
// Acquire carry a release-on-drop guard: Release is idempotent and safe to
// call more than once.
type Pool struct {
	cfg       Config
	endpoints []Endpoint
	breaker   *circuitBreaker
	limiter   *rate.Limiter

	mu        sync.Mutex
	idle      []idleConn
	openCount []int // per endpoint
	inUse     []int // per endpoint
	rrNext    int
	waiters   []chan struct{}

	probeStop chan struct{}
	probeDone chan struct{}
}

// New constructs a Pool for cfg.ServerName. MaxConnections defaults to 1
// and FailureThreshold to 1 when unset.
func New(cfg Config) (*Pool, error) {
	if cfg.ServerName == "" {
		return nil, errs.New(errs.Validation, "mcp pool: server name is required")
	}
	endpoints := make([]Endpoint, 0, len(cfg.Endpoints)+1)
	if cfg.Dialer != nil {
		endpoints = append(endpoints, Endpoint{Dialer: cfg.Dialer, Weight: 1})
	}
	endpoints = append(endpoints, cfg.Endpoints...)
	if len(endpoints) == 0 {
		return nil, errs.New(errs.Validation, "mcp pool: at least one dialer or endpoint is required").WithServer(cfg.ServerName)
	}
	for i := range endpoints {
		if endpoints[i].Weight <= 0 {
			endpoints[i].Weight = 1
		}
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.IdleProbeInterval > 0 && cfg.ProbeFn == nil {
		return nil, errs.New(errs.Validation, "mcp pool: probe fn is required when idle probe interval is set").WithServer(cfg.ServerName)
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	p := &Pool{
		cfg:       cfg,
		endpoints: endpoints,
		breaker:   newCircuitBreaker(cfg.FailureThreshold, cfg.CoolDown),
		limiter:   limiter,
		openCount: make([]int, len(endpoints)),
		inUse:     make([]int, len(endpoints)),
	}
	if cfg.IdleProbeInterval > 0 {
		p.probeStop = make(chan struct{})
		p.probeDone = make(chan struct{})
		go p.runProbeLoop()
	}
	return p, nil
}

// PooledConnection is a checked-out connection. Callers must call Release
// exactly once when done; additional calls are no-ops.
type PooledConnection struct {
	pool      *Pool
	Transport transport.Transport

	endpoint int
	mu       sync.Mutex
	released bool
}

// Acquire checks the circuit breaker, then returns an idle connection or
// dials a new one if the pool has not reached MaxConnections. It blocks
// until a connection is available, the breaker trips, or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*PooledConnection, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, errs.WrapTransient(errs.PoolExhausted, "mcp pool: rate limit wait cancelled", err).WithServer(p.cfg.ServerName)
		}
	}
	for {
		if err := p.breaker.allow(); err != nil {
			if e, ok := errs.Of(err); ok {
				return nil, e.WithServer(p.cfg.ServerName)
			}
			return nil, err
		}
		p.mu.Lock()
		if n := len(p.idle); n > 0 {
			ic := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.inUse[ic.endpoint]++
			p.mu.Unlock()
			return &PooledConnection{pool: p, Transport: ic.transport, endpoint: ic.endpoint}, nil
		}
		total := p.totalOpenLocked()
		if total < p.cfg.MaxConnections {
			idx := p.selectEndpointLocked()
			p.openCount[idx]++
			p.inUse[idx]++
			p.mu.Unlock()
			tr, err := p.endpoints[idx].Dialer(ctx)
			if err != nil {
				p.mu.Lock()
				p.openCount[idx]--
				p.inUse[idx]--
				p.mu.Unlock()
				p.breaker.recordFailure()
				if e, ok := errs.Of(err); ok {
					return nil, e.WithServer(p.cfg.ServerName)
				}
				return nil, errs.WrapTransient(errs.Connection, "mcp pool: dial", err).WithServer(p.cfg.ServerName)
			}
			return &PooledConnection{pool: p, Transport: tr, endpoint: idx}, nil
		}
		wait := make(chan struct{})
		p.waiters = append(p.waiters, wait)
		p.mu.Unlock()
		select {
		case <-wait:
			continue
		case <-ctx.Done():
			return nil, errs.WrapTransient(errs.PoolExhausted, "mcp pool: acquire cancelled", ctx.Err()).WithServer(p.cfg.ServerName)
		}
	}
}

// totalOpenLocked sums openCount across every endpoint. Callers must hold mu.
func (p *Pool) totalOpenLocked() int {
	total := 0
	for _, n := range p.openCount {
		total += n
	}
	return total
}

// selectEndpointLocked picks which endpoint to dial next under cfg.Strategy.
// Callers must hold mu.
func (p *Pool) selectEndpointLocked() int {
	if len(p.endpoints) == 1 {
		return 0
	}
	switch p.cfg.Strategy {
	case StrategyLeastInUse:
		best := 0
		for i := 1; i < len(p.inUse); i++ {
			if p.inUse[i] < p.inUse[best] {
				best = i
			}
		}
		return best
	case StrategyWeighted:
		total := 0
		for _, e := range p.endpoints {
			total += e.Weight
		}
		//nolint:gosec // non-cryptographic weighted endpoint selection.
		r := rand.Intn(total)
		for i, e := range p.endpoints {
			if r < e.Weight {
				return i
			}
			r -= e.Weight
		}
		return len(p.endpoints) - 1
	default: // StrategyRoundRobin
		idx := p.rrNext % len(p.endpoints)
		p.rrNext++
		return idx
	}
}

// Release returns conn to the pool. callErr, when non-nil, is the error
// the caller's MCP request failed with; Connection/Protocol-class
// failures discard the transport instead of reusing it, and every
// non-nil callErr counts against the circuit breaker.
func (p *Pool) Release(conn *PooledConnection, callErr error) {
	conn.mu.Lock()
	if conn.released {
		conn.mu.Unlock()
		return
	}
	conn.released = true
	conn.mu.Unlock()

	if callErr != nil {
		p.breaker.recordFailure()
	} else {
		p.breaker.recordSuccess()
	}

	discard := false
	if e, ok := errs.Of(callErr); ok {
		if e.Class == errs.Protocol || (e.Class == errs.Transient && e.Transient == errs.Connection) {
			discard = true
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse[conn.endpoint]--
	if discard {
		_ = conn.Transport.Close()
		p.openCount[conn.endpoint]--
	} else {
		p.idle = append(p.idle, idleConn{transport: conn.Transport, endpoint: conn.endpoint, idleSince: time.Now()})
	}
	p.notifyWaiter()
}

func (p *Pool) notifyWaiter() {
	if len(p.waiters) == 0 {
		return
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	close(w)
}

// OpenConnections reports the number of transports currently open
// (idle plus checked out), for tests and diagnostics.
func (p *Pool) OpenConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalOpenLocked()
}

// runProbeLoop periodically sweeps the idle set for connections that have
// sat unused beyond cfg.IdleProbeInterval and probes each one, closing and
// discarding those that fail. It runs until Close stops it. Probe failures
// are deliberately not reported to the circuit breaker: the breaker counts
// caller-observed call failures, while an idle probe failure is pool
// housekeeping discovering a connection has gone stale on its own.
func (p *Pool) runProbeLoop() {
	defer close(p.probeDone)
	ticker := time.NewTicker(p.cfg.IdleProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.probeStop:
			return
		case <-ticker.C:
			p.probeIdleConnections()
		}
	}
}

func (p *Pool) probeIdleConnections() {
	cutoff := time.Now().Add(-p.cfg.IdleProbeInterval)

	p.mu.Lock()
	var due []idleConn
	kept := p.idle[:0]
	for _, ic := range p.idle {
		if ic.idleSince.Before(cutoff) {
			due = append(due, ic)
		} else {
			kept = append(kept, ic)
		}
	}
	p.idle = kept
	p.mu.Unlock()

	for _, ic := range due {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ProbeTimeout)
		err := p.cfg.ProbeFn(ctx, ic.transport)
		cancel()
		if err != nil {
			_ = ic.transport.Close()
			p.mu.Lock()
			p.openCount[ic.endpoint]--
			p.notifyWaiter()
			p.mu.Unlock()
			continue
		}
		p.mu.Lock()
		ic.idleSince = time.Now()
		p.idle = append(p.idle, ic)
		p.mu.Unlock()
	}
}

// Close stops the background probe loop, if any, and closes every idle
// connection. Connections currently checked out are closed as they are
// released.
func (p *Pool) Close() error {
	if p.probeStop != nil {
		close(p.probeStop)
		<-p.probeDone
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ic := range p.idle {
		_ = ic.transport.Close()
	}
	p.idle = nil
	return nil
}
