package server

import (
	"context"
	"encoding/json"
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

func startRelay(t *testing.T) (*Game, *httptest.Server, string) {
	t.Helper()
	g := NewGame(DefaultGameConfig(), zap.NewNop())
	srv := httptest.NewServer(g.NewMux("/ws"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = g.Shutdown(ctx)
		srv.Close()
	})
	return g, srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestWebSocket_JoinMoveLeave(t *testing.T) {
	g, _, url := startRelay(t)

	a := dial(t, url)
	ev := readEvent(t, a)
	require.Equal(t, TypePlayerJoined, ev.Type)
	idA := ev.Body.ID

	b := dial(t, url)
	ev = readEvent(t, b)
	assert.Equal(t, TypePlayerJoined, ev.Type)
	assert.Equal(t, idA, ev.Body.ID, "snapshot first")
	ev = readEvent(t, b)
	assert.Equal(t, TypePlayerJoined, ev.Type)
	idB := ev.Body.ID
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, idB, readEvent(t, a).Body.ID)

	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte(`{"type":"keypressed","body":{"key":"s"}}`)))
	for _, c := range []*websocket.Conn{a, b} {
		ev := readEvent(t, c)
		assert.Equal(t, TypePlayerMoved, ev.Type)
		assert.Equal(t, idB, ev.Body.ID)
		assert.Equal(t, 4, ev.Body.Y)
	}

	require.NoError(t, b.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	ev = readEvent(t, a)
	assert.Equal(t, TypePlayerLeft, ev.Type)
	assert.Equal(t, idB, ev.Body.ID)
	assert.Equal(t, []PlayerID{idA}, playerIDs(g.Players()))
}

func TestWebSocket_AbruptDisconnectStillLeaves(t *testing.T) {
	_, _, url := startRelay(t)

	a := dial(t, url)
	readEvent(t, a)
	b := dial(t, url)
	readEvent(t, b)
	idB := readEvent(t, b).Body.ID
	readEvent(t, a)

	// 不发 close 帧，直接断开 TCP
	require.NoError(t, b.UnderlyingConn().Close())

	ev := readEvent(t, a)
	assert.Equal(t, TypePlayerLeft, ev.Type)
	assert.Equal(t, idB, ev.Body.ID)
}

func TestHTTP_MetricsAndPlayers(t *testing.T) {
	_, srv, url := startRelay(t)
	a := dial(t, url)
	readEvent(t, a)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var m struct {
		ActiveSessions int              `json:"active_sessions"`
		Players        int              `json:"players"`
		Metrics        map[string]int64 `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, 1, m.ActiveSessions)
	assert.Equal(t, 1, m.Players)
	assert.Equal(t, int64(1), m.Metrics["sessions_opened"])

	resp2, err := http.Get(srv.URL + "/admin/players")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var p struct {
		Players []Player `json:"players"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&p))
	require.Len(t, p.Players, 1)
	assert.Equal(t, 4, p.Players[0].Speed)

	resp3, err := http.Post(srv.URL+"/admin/players", "application/json", nil)
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp3.StatusCode)

	resp4, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp4.Body.Close()
	assert.Equal(t, http.StatusOK, resp4.StatusCode)
}
