// Package relay forwards hub events to local consumers over WebSocket and MQTT.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait は1回の書き込みに許す時間
	writeWait = 10 * time.Second
	// pongWait はクライアントからの pong を待つ時間
	pongWait = 60 * time.Second
	// pingPeriod は ping の送信間隔。pongWait より短くなければならない
	pingPeriod = (pongWait * 9) / 10
)

// StartOptions は Transport の起動オプション
type StartOptions struct {
	// Ready は待ち受け開始時に close される (省略可)
	Ready chan struct{}
}

// clientConnection wraps a WebSocket connection with a mutex for safe concurrent writes
type clientConnection struct {
	conn  *websocket.Conn
	mutex sync.Mutex
}

// Transport は WebSocket クライアントへイベントを配信するサーバー
type Transport struct {
	ctx               context.Context
	cancel            context.CancelFunc
	server            *http.Server
	upgrader          websocket.Upgrader
	clients           map[string]*clientConnection
	clientsMutex      sync.RWMutex
	connectHandler    func(connID string) error
	disconnectHandler func(connID string)

	addrMutex sync.Mutex
	addr      string
}

// NewTransport は Transport の新しいインスタンスを作成する
func NewTransport(ctx context.Context, addr string) *Transport {
	transportCtx, cancel := context.WithCancel(ctx)

	t := &Transport{
		ctx:    transportCtx,
		cancel: cancel,
		upgrader: websocket.Upgrader{
			// ローカル用途なので origin は問わない
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*clientConnection),
		addr:    addr,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", t.handleWebSocket)
	t.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return t
}

// Handler は /ws を処理する http.Handler を返す
func (t *Transport) Handler() http.Handler {
	return t.server.Handler
}

// Addr は待ち受けアドレスを返す。Start 後は実際にバインドしたアドレスになる
func (t *Transport) Addr() string {
	t.addrMutex.Lock()
	defer t.addrMutex.Unlock()
	return t.addr
}

// Start はサーバーを起動する。Stop されるまで戻らない
func (t *Transport) Start(options StartOptions) error {
	// 先にリスナーをバインド
	listener, err := net.Listen("tcp", t.server.Addr)
	if err != nil {
		return err
	}
	t.addrMutex.Lock()
	t.addr = listener.Addr().String()
	t.addrMutex.Unlock()

	if options.Ready != nil {
		close(options.Ready)
	}
	slog.Info("WebSocket relay starting", "addr", listener.Addr().String())

	err = t.server.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop はサーバーを停止し、全クライアントを切断する
func (t *Transport) Stop() error {
	slog.Info("Stopping WebSocket relay", "addr", t.Addr())
	t.cancel()
	err := t.server.Shutdown(context.Background())
	if err != nil {
		slog.Info("Error shutting down WebSocket relay", "err", err)
	}

	t.clientsMutex.Lock()
	for _, client := range t.clients {
		_ = client.conn.Close()
	}
	t.clientsMutex.Unlock()
	return err
}

// SetConnectHandler は新しいクライアントが接続した時に呼び出されるハンドラを設定する
func (t *Transport) SetConnectHandler(handler func(connID string) error) {
	t.connectHandler = handler
}

// SetDisconnectHandler はクライアントが切断した時に呼び出されるハンドラを設定する
func (t *Transport) SetDisconnectHandler(handler func(connID string)) {
	t.disconnectHandler = handler
}

// Clients は接続中のクライアント数を返す
func (t *Transport) Clients() int {
	t.clientsMutex.RLock()
	defer t.clientsMutex.RUnlock()
	return len(t.clients)
}

// isConnectionClosedError checks if the error indicates a closed connection
func isConnectionClosedError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) ||
		strings.Contains(err.Error(), "close sent") ||
		strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// removeClient removes a client and calls the disconnect handler.
// Returns false if it was already removed.
func (t *Transport) removeClient(connID string) bool {
	t.clientsMutex.Lock()
	_, exists := t.clients[connID]
	delete(t.clients, connID)
	t.clientsMutex.Unlock()

	if !exists {
		return false
	}
	if t.disconnectHandler != nil && t.ctx.Err() == nil {
		t.disconnectHandler(connID)
	}
	return true
}

// SendMessage は特定のクライアントにメッセージを送信する
func (t *Transport) SendMessage(connID string, message []byte) error {
	t.clientsMutex.RLock()
	client, exists := t.clients[connID]
	t.clientsMutex.RUnlock()

	if !exists {
		return fmt.Errorf("client with ID %s not found", connID)
	}

	if err := client.write(websocket.TextMessage, message); err != nil {
		if isConnectionClosedError(err) {
			t.removeClient(connID)
		}
		return fmt.Errorf("failed to send message to client %s: %w", connID, err)
	}
	return nil
}

// BroadcastMessage は接続中の全クライアントにメッセージを送信する
func (t *Transport) BroadcastMessage(message []byte) error {
	t.clientsMutex.RLock()
	clients := make(map[string]*clientConnection, len(t.clients))
	for connID, client := range t.clients {
		clients[connID] = client
	}
	t.clientsMutex.RUnlock()

	var disconnected []string
	for connID, client := range clients {
		if err := client.write(websocket.TextMessage, message); err != nil {
			if isConnectionClosedError(err) {
				disconnected = append(disconnected, connID)
			} else {
				slog.Error("Error broadcasting message to client", "err", err, "connID", connID)
			}
		}
	}

	for _, connID := range disconnected {
		t.removeClient(connID)
	}
	return nil
}

func (c *clientConnection) write(messageType int, data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// handleWebSocket はWebSocket接続を処理する
func (t *Transport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Error upgrading to WebSocket", "err", err, "remote_addr", r.RemoteAddr)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	client := &clientConnection{conn: conn}

	t.clientsMutex.Lock()
	t.clients[connID] = client
	t.clientsMutex.Unlock()
	defer t.removeClient(connID)

	slog.Debug("Relay client connected", "connID", connID, "remote_addr", r.RemoteAddr)

	if t.connectHandler != nil {
		if err := t.connectHandler(connID); err != nil {
			slog.Error("Error in connect handler", "err", err)
			return
		}
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go t.pingLoop(client, done)

	// クライアントからのメッセージは読み捨てる
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNoStatusReceived) {
				slog.Error("Unexpected WebSocket close error", "err", err)
			}
			return
		}
	}
}

func (t *Transport) pingLoop(client *clientConnection, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			client.mutex.Lock()
			err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			client.mutex.Unlock()
			if err != nil {
				return
			}
		}
	}
}
