//go:build integration

package helpers

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"zwave-console/relay"
)

// RelayConnection はWebSocketリレーに接続するテスト用クライアント
type RelayConnection struct {
	conn   *websocket.Conn
	url    string
	closed bool
}

// NewRelayConnection は新しいリレー接続を作成する
func NewRelayConnection(serverURL string) (*RelayConnection, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("URLの解析に失敗: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 5 * time.Second

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("WebSocket接続に失敗: %w", err)
	}

	return &RelayConnection{
		conn: conn,
		url:  serverURL,
	}, nil
}

// ReceiveMessage はリレーされたイベントを1件受信する
func (rc *RelayConnection) ReceiveMessage(timeout time.Duration) (*relay.Message, error) {
	if rc.closed {
		return nil, fmt.Errorf("接続が既に閉じられています")
	}

	// タイムアウトを設定
	if timeout > 0 {
		_ = rc.conn.SetReadDeadline(time.Now().Add(timeout))
	}

	var message relay.Message
	if err := rc.conn.ReadJSON(&message); err != nil {
		return nil, fmt.Errorf("メッセージの受信に失敗: %w", err)
	}
	return &message, nil
}

// WaitForMessage は特定の条件にマッチするメッセージを待機する
func (rc *RelayConnection) WaitForMessage(predicate func(*relay.Message) bool, timeout time.Duration) (*relay.Message, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		message, err := rc.ReceiveMessage(time.Until(deadline))
		if err != nil {
			return nil, err
		}
		if predicate(message) {
			return message, nil
		}
	}

	return nil, fmt.Errorf("タイムアウト: 条件にマッチするメッセージが受信されませんでした")
}

// Close はWebSocket接続を閉じる
func (rc *RelayConnection) Close() error {
	if rc.closed {
		return nil
	}
	rc.closed = true
	return rc.conn.Close()
}

// WaitForCondition は条件が満たされるまで待機する
func WaitForCondition(condition func() bool, timeout time.Duration, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}

	return false
}
