package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"project0/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueWSTicket(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "socket")

	resp := env.request(t, http.MethodPost, "/api/ws/ticket", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}](t, resp)
	assert.NotEmpty(t, body.Ticket)
	assert.Equal(t, 30, body.ExpiresIn)
	assert.True(t, env.mr.Exists("ws_ticket:"+body.Ticket))

	resp = env.request(t, http.MethodPost, "/api/ws/ticket", "", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestIssueWSTicket_WithoutRedis(t *testing.T) {
	env := newTestEnv(t, withoutRedis())
	s := env.register(t, "offline")

	resp := env.request(t, http.MethodPost, "/api/ws/ticket", s.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestWebsocket_PlainRequestNeedsUpgrade(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "plain")

	resp := env.request(t, http.MethodGet, "/api/ws", s.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebsocket_DeliversEvents(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "listener")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.Shutdown() })

	ticket, err := env.srv.authService.IssueWSTicket(context.Background(), s.userID)
	require.NoError(t, err)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/ws?ticket="+ticket, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	readEvent := func() notifications.Event {
		var ev notifications.Event
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	}

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, notifications.EventPong, readEvent().Type)

	local := &realtimePublisher{hub: env.srv.hub}
	require.NoError(t, local.Notify(context.Background(), s.userID,
		notifications.NewEvent(notifications.EventMVPReady, map[string]any{"mvp_id": "1700000000001"})))
	ev := readEvent()
	assert.Equal(t, notifications.EventMVPReady, ev.Type)
	assert.Equal(t, "1700000000001", ev.Payload.(map[string]any)["mvp_id"])

	// The ticket was consumed by the handshake.
	_, resp, err = websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/api/ws?ticket="+ticket, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRealtimePublisher_LocalHub(t *testing.T) {
	hub := notifications.NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	mine, err := hub.Register(1, nil)
	require.NoError(t, err)
	theirs, err := hub.Register(2, nil)
	require.NoError(t, err)

	p := &realtimePublisher{hub: hub}
	require.NoError(t, p.Notify(context.Background(), 1, notifications.NewEvent(notifications.EventAnalysisReady, nil)))

	require.Len(t, mine.Send, 1)
	assert.Empty(t, theirs.Send)

	var ev notifications.Event
	require.NoError(t, json.Unmarshal(<-mine.Send, &ev))
	assert.Equal(t, notifications.EventAnalysisReady, ev.Type)

	assert.NoError(t, (&realtimePublisher{}).Notify(context.Background(), 1, notifications.NewEvent(notifications.EventPong, nil)))
}

func TestRealtimePublisher_ThroughRedis(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.srv.startRealtime(ctx)

	client, err := env.srv.hub.Register(77, nil)
	require.NoError(t, err)
	defer env.srv.hub.UnregisterClient(client)

	// The subscriber starts asynchronously, so keep publishing until it is listening.
	ev := notifications.NewEvent(notifications.EventCreditRequestProcessed, map[string]any{"status": "approved"})
	require.Eventually(t, func() bool {
		if err := env.srv.publisher.Notify(ctx, 77, ev); err != nil {
			return false
		}
		select {
		case got := <-client.Send:
			var out notifications.Event
			return json.Unmarshal(got, &out) == nil && out.Type == notifications.EventCreditRequestProcessed
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)
}
