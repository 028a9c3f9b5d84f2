package relay

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTransport(t *testing.T, transport *Transport) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(transport.Handler())
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPingPeriodLessThanPongWait(t *testing.T) {
	if pingPeriod >= pongWait {
		t.Errorf("pingPeriod (%v) should be less than pongWait (%v)", pingPeriod, pongWait)
	}
	if writeWait <= 0 {
		t.Errorf("writeWait should be positive, got %v", writeWait)
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transport := NewTransport(ctx, ":0")

	connected := make(chan string, 2)
	transport.SetConnectHandler(func(connID string) error {
		connected <- connID
		return nil
	})

	a := dialTransport(t, transport)
	b := dialTransport(t, transport)
	idA, idB := <-connected, <-connected
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, transport.Clients())

	require.NoError(t, transport.BroadcastMessage([]byte(`{"type":"ItemStateEvent"}`)))

	for _, conn := range []*websocket.Conn{a, b} {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"ItemStateEvent"}`, string(msg))
	}

	require.NoError(t, transport.SendMessage(idA, []byte("only a")))
	_ = a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := a.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "only a", string(msg))

	assert.Error(t, transport.SendMessage("no-such-client", []byte("x")))
}

func TestDisconnectHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transport := NewTransport(ctx, ":0")

	gone := make(chan string, 1)
	transport.SetDisconnectHandler(func(connID string) { gone <- connID })

	conn := dialTransport(t, transport)
	require.Eventually(t, func() bool { return transport.Clients() == 1 }, time.Second, 5*time.Millisecond)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	select {
	case id := <-gone:
		assert.NotEmpty(t, id)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect handler not called")
	}
	assert.Equal(t, 0, transport.Clients())
}

func TestStartAndStop(t *testing.T) {
	transport := NewTransport(context.Background(), "127.0.0.1:0")
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- transport.Start(StartOptions{Ready: ready}) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("transport did not start")
	}
	assert.NotEqual(t, "127.0.0.1:0", transport.Addr())

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+transport.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return transport.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, transport.Stop())
	assert.NoError(t, <-errCh)
}

type recordingBroadcaster struct {
	messages [][]byte
}

func (r *recordingBroadcaster) BroadcastMessage(message []byte) error {
	r.messages = append(r.messages, message)
	return nil
}

func TestEventHandlerEncodesMessage(t *testing.T) {
	b := &recordingBroadcaster{}
	h := EventHandler(b)

	h.HandleEvent(envelope("ItemStateEvent", "smarthome/items/Lamp/state", `{"value":"42"}`), map[string]interface{}{"value": "42"})

	require.Len(t, b.messages, 1)
	var got Message
	require.NoError(t, json.Unmarshal(b.messages[0], &got))
	assert.Equal(t, "ItemStateEvent", got.Type)
	assert.Equal(t, "smarthome/items/Lamp/state", got.Topic)
	assert.Equal(t, map[string]interface{}{"value": "42"}, got.Payload)
}
