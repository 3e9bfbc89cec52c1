package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestHub_SnapshotThenUpdates(t *testing.T) {
	h := NewHub(zap.NewNop(), func(*http.Request) bool { return true },
		func(_ context.Context, market string) (any, error) {
			return map[string]string{"market": market, "state": "current"}, nil
		})
	conn := dial(t, h)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "subscribe", Market: "win"}))
	var snap OddsUpdate
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.Equal(t, "win", snap.Market)
	assert.Equal(t, 1, h.Subscribers("win"))

	// outro mercado não chega a este cliente
	h.Broadcast("prop", "ignored")
	h.Broadcast("win", map[string]int{"version": 7})

	var upd OddsUpdate
	require.NoError(t, conn.ReadJSON(&upd))
	assert.Equal(t, "update", upd.Type)
	assert.Equal(t, "win", upd.Market)
	assert.Equal(t, map[string]any{"version": float64(7)}, upd.Payload)
}

func TestHub_Ping(t *testing.T) {
	h := NewHub(zap.NewNop(), func(*http.Request) bool { return true }, nil)
	conn := dial(t, h)

	require.NoError(t, conn.WriteJSON(ClientMsg{Type: "ping"}))
	var pong map[string]string
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])
}

func TestRelay_DropsGarbage(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	Relay(zap.NewNop(), h, []byte("{"))
	Relay(zap.NewNop(), h, []byte(`{"market":"win","version":1,"gross":"1","outcomes":{}}`))
	assert.Zero(t, h.Subscribers("win"))
}
