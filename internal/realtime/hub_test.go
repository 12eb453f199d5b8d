package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if sessionID != "" {
		url += "?session=" + sessionID
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func clientCount(h *Hub) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func TestHub_BroadcastSnapshotReachesWatcher(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv, "sess_1")
	defer conn.Close()

	require.Eventually(t, func() bool { return clientCount(hub) == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastSnapshot("sess_1", map[string]string{"status": "settled"})

	event := readEvent(t, conn)
	assert.Equal(t, EventSnapshot, event.Type)
	assert.Equal(t, "sess_1", event.SessionID)

	data, ok := event.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "settled", data["status"])
}

func TestHub_SessionFiltering(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r)
	}))
	defer srv.Close()

	mine := dial(t, srv, "sess_mine")
	defer mine.Close()
	other := dial(t, srv, "sess_other")
	defer other.Close()
	watchAll := dial(t, srv, "")
	defer watchAll.Close()

	require.Eventually(t, func() bool { return clientCount(hub) == 3 }, time.Second, 5*time.Millisecond)

	hub.BroadcastSnapshot("sess_mine", map[string]string{"status": "settled"})

	// The scoped watcher and the watch-all client both see it.
	assert.Equal(t, "sess_mine", readEvent(t, mine).SessionID)
	assert.Equal(t, "sess_mine", readEvent(t, watchAll).SessionID)

	// The other session's watcher sees nothing.
	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "no event expected for another session")
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv, "sess_1")
	require.Eventually(t, func() bool { return clientCount(hub) == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return clientCount(hub) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, cancel := newTestHub(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv, "sess_1")
	defer conn.Close()
	require.Eventually(t, func() bool { return clientCount(hub) == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	// The server sends a close frame; the read surfaces it.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Upgrades after shutdown are refused.
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/ws")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusServiceUnavailable
	}, time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutRunDoesNotBlock(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	// The broadcast channel is buffered and overflow is dropped.
	for i := 0; i < 200; i++ {
		hub.BroadcastSnapshot("sess_1", map[string]string{"n": "x"})
	}
}
