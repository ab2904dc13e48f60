package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHTTPCallPropagatesTraceHeader(t *testing.T) {
	t.Parallel()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	var traceHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceHeader = r.Header.Get("Traceparent")
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"tools":[]}`)}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	tr, err := NewHTTP(HTTPOptions{Endpoint: srv.URL})
	require.NoError(t, err)

	var result map[string]any
	err = tr.Call(ctx, "tools/list", map[string]any{}, &result)
	require.NoError(t, err)
	require.Contains(t, result, "tools")
	require.NotEmpty(t, traceHeader)
}

func TestHTTPCallSurfacesRPCError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: -32601, Message: "method not found"}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	tr, err := NewHTTP(HTTPOptions{Endpoint: srv.URL})
	require.NoError(t, err)

	err = tr.Call(context.Background(), "unknown", nil, nil)
	require.Error(t, err)
}

func TestHTTPNotifyPostsWithNoID(t *testing.T) {
	t.Parallel()
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr, err := NewHTTP(HTTPOptions{Endpoint: srv.URL})
	require.NoError(t, err)

	require.NoError(t, tr.Notify(context.Background(), "notifications/progress", map[string]any{"progress": 1}))
	_, hasID := raw["id"]
	require.False(t, hasID)
	require.Equal(t, "notifications/progress", raw["method"])
}
