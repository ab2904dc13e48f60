package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestWebSocketCallRoundTrips(t *testing.T) {
	t.Parallel()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req rpcRequest
			require.NoError(t, json.Unmarshal(data, &req))
			resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"ok":true}`)}
			out, _ := json.Marshal(resp)
			_ = conn.WriteMessage(websocket.TextMessage, out)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := NewWebSocket(ctx, WebSocketOptions{URL: wsURL, DialTimeout: time.Second})
	require.NoError(t, err)
	defer tr.Close()

	var result map[string]any
	err = tr.Call(ctx, "ping", nil, &result)
	require.NoError(t, err)
	require.Equal(t, true, result["ok"])
}

func TestWebSocketNotifySendsFrameWithNoID(t *testing.T) {
	t.Parallel()
	received := make(chan map[string]any, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		received <- raw
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := NewWebSocket(ctx, WebSocketOptions{URL: wsURL, DialTimeout: time.Second})
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Notify(ctx, "notifications/progress", map[string]any{"progress": 1}))

	select {
	case raw := <-received:
		_, hasID := raw["id"]
		require.False(t, hasID)
		require.Equal(t, "notifications/progress", raw["method"])
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive notification")
	}
}
