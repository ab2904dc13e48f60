package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/mcp/transport"
)

type fakeTransport struct {
	closed bool
}

func (f *fakeTransport) Call(context.Context, string, any, any) error { return nil }
func (f *fakeTransport) Notify(context.Context, string, any) error   { return nil }
func (f *fakeTransport) Close() error                                { f.closed = true; return nil }

func newTestPool(t *testing.T, threshold int, coolDown time.Duration) *Pool {
	t.Helper()
	p, err := New(Config{
		ServerName:       "s",
		MaxConnections:   2,
		FailureThreshold: threshold,
		CoolDown:         coolDown,
		Dialer: func(context.Context) (transport.Transport, error) {
			return &fakeTransport{}, nil
		},
	})
	require.NoError(t, err)
	return p
}

func TestPoolRespectsMaxConnections(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 10, time.Second)

	ctx := context.Background()
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, p.OpenConnections())

	acquireCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(acquireCtx)
	require.Error(t, err)
	require.Equal(t, errs.Transient, errs.ClassOf(err))

	p.Release(c1, nil)
	p.Release(c2, nil)
}

func TestCircuitBreakerOpensAfterThresholdFailures(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 3, 50*time.Millisecond)
	ctx := context.Background()

	failure := errs.WrapTransient(errs.Transport, "tool call failed", errors.New("boom"))
	for i := 0; i < 3; i++ {
		conn, err := p.Acquire(ctx)
		require.NoError(t, err)
		p.Release(conn, failure)
	}

	_, err := p.Acquire(ctx)
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, errs.CircuitOpen, e.Transient)

	time.Sleep(60 * time.Millisecond)

	conn, err := p.Acquire(ctx)
	require.NoError(t, err, "trial acquisition after cool-down should succeed")
	p.Release(conn, nil)

	conn, err = p.Acquire(ctx)
	require.NoError(t, err, "breaker should be closed after a successful trial")
	p.Release(conn, nil)
}

func TestReleaseDiscardsConnectionOnProtocolError(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 10, time.Second)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, p.OpenConnections())

	p.Release(conn, errs.New(errs.Protocol, "malformed response"))
	require.Equal(t, 0, p.OpenConnections())
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 10, time.Second)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(conn, nil)
	require.NotPanics(t, func() { p.Release(conn, nil) })
}

func TestAcquireRespectsRateLimit(t *testing.T) {
	t.Parallel()
	p, err := New(Config{
		ServerName:     "s",
		MaxConnections: 5,
		RateLimit:      1,
		RateBurst:      1,
		Dialer: func(context.Context) (transport.Transport, error) {
			return &fakeTransport{}, nil
		},
	})
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.Error(t, err)
}

func TestAcquireWithoutRateLimitIsUnbounded(t *testing.T) {
	t.Parallel()
	p := newTestPool(t, 10, time.Second)

	for i := 0; i < 5; i++ {
		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		p.Release(conn, nil)
	}
}

func TestRoundRobinCyclesEndpoints(t *testing.T) {
	t.Parallel()
	var dialed []int
	mkDialer := func(idx int) Dialer {
		return func(context.Context) (transport.Transport, error) {
			dialed = append(dialed, idx)
			return &fakeTransport{}, nil
		}
	}
	p, err := New(Config{
		ServerName:     "s",
		MaxConnections: 4,
		Strategy:       StrategyRoundRobin,
		Endpoints: []Endpoint{
			{Dialer: mkDialer(0)},
			{Dialer: mkDialer(1)},
		},
	})
	require.NoError(t, err)

	var conns []*PooledConnection
	for i := 0; i < 4; i++ {
		conn, err := p.Acquire(context.Background())
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	for _, c := range conns {
		p.Release(c, nil)
	}
	require.Equal(t, []int{0, 1, 0, 1}, dialed)
}

func TestLeastInUseFavorsIdlerEndpoint(t *testing.T) {
	t.Parallel()
	p, err := New(Config{
		ServerName:     "s",
		MaxConnections: 4,
		Strategy:       StrategyLeastInUse,
		Endpoints: []Endpoint{
			{Dialer: func(context.Context) (transport.Transport, error) { return &fakeTransport{}, nil }},
			{Dialer: func(context.Context) (transport.Transport, error) { return &fakeTransport{}, nil }},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	c0, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, c0.endpoint)

	// Endpoint 0 is now in use; the next acquire should prefer endpoint 1.
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, c1.endpoint)

	p.Release(c0, nil)
	p.Release(c1, nil)
}

func TestWeightedSelectionOnlyUsesConfiguredEndpoints(t *testing.T) {
	t.Parallel()
	seen := map[int]bool{}
	p, err := New(Config{
		ServerName:     "s",
		MaxConnections: 20,
		Strategy:       StrategyWeighted,
		Endpoints: []Endpoint{
			{Dialer: func(context.Context) (transport.Transport, error) { return &fakeTransport{}, nil }, Weight: 9},
			{Dialer: func(context.Context) (transport.Transport, error) { return &fakeTransport{}, nil }, Weight: 1},
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		conn, err := p.Acquire(ctx)
		require.NoError(t, err)
		seen[conn.endpoint] = true
		p.Release(conn, nil)
	}
	require.True(t, seen[0])
	require.LessOrEqual(t, len(seen), 2)
}

func TestIdleProbeClosesUnhealthyConnection(t *testing.T) {
	t.Parallel()
	probeErr := errors.New("probe failed")
	probed := make(chan struct{}, 1)
	p, err := New(Config{
		ServerName:        "s",
		MaxConnections:    1,
		Dialer:            func(context.Context) (transport.Transport, error) { return &fakeTransport{}, nil },
		IdleProbeInterval: 10 * time.Millisecond,
		ProbeFn: func(context.Context, transport.Transport) error {
			select {
			case probed <- struct{}{}:
			default:
			}
			return probeErr
		},
	})
	require.NoError(t, err)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn, nil)
	require.Equal(t, 1, p.OpenConnections())

	select {
	case <-probed:
	case <-time.After(time.Second):
		t.Fatal("probe was never invoked")
	}

	require.Eventually(t, func() bool {
		return p.OpenConnections() == 0
	}, time.Second, 10*time.Millisecond, "unhealthy idle connection should be closed")
}

func TestIdleProbeKeepsHealthyConnectionIdle(t *testing.T) {
	t.Parallel()
	var probes int32
	p, err := New(Config{
		ServerName:        "s",
		MaxConnections:    1,
		Dialer:            func(context.Context) (transport.Transport, error) { return &fakeTransport{}, nil },
		IdleProbeInterval: 10 * time.Millisecond,
		ProbeFn: func(context.Context, transport.Transport) error {
			atomic.AddInt32(&probes, 1)
			return nil
		},
	})
	require.NoError(t, err)
	defer p.Close()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn, nil)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&probes) >= 2
	}, time.Second, 10*time.Millisecond, "healthy idle connection should be probed repeatedly")
	require.Equal(t, 1, p.OpenConnections())
}
