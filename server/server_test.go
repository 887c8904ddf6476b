package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-lightning/gateway"
	"github.com/moffa90/go-lightning/link"
	"github.com/moffa90/go-lightning/link/linktest"
	"github.com/moffa90/go-lightning/session"
)

const testPort = "/dev/ttyACM0"

type testServer struct {
	url string
	hub *Hub
	srv *Server

	mu      sync.Mutex
	devices map[string]*linktest.Device
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{devices: map[string]*linktest.Device{}}
	sim := linktest.NewSimulator("A740")

	ts.hub = NewHub(nil)
	reg := session.NewRegistry(
		session.WithEventSink(ts.hub),
		session.WithDialer(func(port string) (link.Port, error) {
			dev := linktest.NewDevice(sim.Handle)
			ts.mu.Lock()
			ts.devices[port] = dev
			ts.mu.Unlock()
			return dev, nil
		}),
	)
	srv := New(gateway.NewRouter(reg), ts.hub)
	ts.srv = srv

	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		hs.Close()
		srv.Shutdown()
		reg.CloseAll()
	})
	ts.url = "ws" + strings.TrimPrefix(hs.URL, "http")
	return ts
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, op string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Event{Type: op, Payload: data}))
}

func receive(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	return ev.Type, payload
}

func TestRequestResponse(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, "openPort", map[string]interface{}{"port": testPort})
	typ, payload := receive(t, conn)
	assert.Equal(t, "openPort", typ)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "A740", payload["model"])
	assert.Equal(t, testPort, payload["port"])

	send(t, conn, "readSettings", map[string]interface{}{"port": testPort})
	typ, payload = receive(t, conn)
	assert.Equal(t, "readSettings", typ)
	settings := payload["settings"].(map[string]interface{})
	assert.Equal(t, 114.0, settings["location"])
}

func TestErrorPayloads(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)

	send(t, conn, "explode", nil)
	typ, payload := receive(t, conn)
	assert.Equal(t, "explode", typ)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "Unknown command: explode", payload["error"])

	send(t, conn, "readSettings", []int{1, 2})
	_, payload = receive(t, conn)
	assert.Equal(t, "Payload should be an object", payload["error"])

	send(t, conn, "diagnostics", map[string]interface{}{})
	_, payload = receive(t, conn)
	assert.Equal(t, "No port name provided", payload["error"])
}

func TestBroadcastOnUnsolicitedClose(t *testing.T) {
	ts := newTestServer(t)
	a := ts.dial(t)
	b := ts.dial(t)
	require.Eventually(t, func() bool { return ts.hub.Len() == 2 }, time.Second, 5*time.Millisecond)

	send(t, a, "openPort", map[string]interface{}{"port": testPort})
	_, payload := receive(t, a)
	require.Equal(t, true, payload["success"])

	ts.mu.Lock()
	dev := ts.devices[testPort]
	ts.mu.Unlock()
	dev.Drop()

	for _, conn := range []*websocket.Conn{a, b} {
		typ, payload := receive(t, conn)
		assert.Equal(t, session.EventClosePort, typ)
		assert.Equal(t, map[string]interface{}{"port": testPort, "reason": "Port was closed"}, payload)
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	require.Eventually(t, func() bool { return ts.hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return ts.hub.Len() == 0 }, time.Second, 5*time.Millisecond)

	// nothing to send to
	ts.hub.Broadcast("closePort", map[string]string{"port": testPort})
}

func TestShutdownClosesConnections(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t)
	require.Eventually(t, func() bool { return ts.hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	ts.srv.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return ts.hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, resp, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDecodeArgs(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		args, err := decodeArgs(json.RawMessage(raw))
		require.NoError(t, err)
		assert.Empty(t, args)
	}

	args, err := decodeArgs(json.RawMessage(`{"port":"x","forSave":true}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"port": "x", "forSave": true}, args)

	_, err = decodeArgs(json.RawMessage(`"x"`))
	assert.Error(t, err)

}
