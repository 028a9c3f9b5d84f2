//go:build integration

package helpers

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"zwave-console/config"
	"zwave-console/events"
	"zwave-console/hub"
	"zwave-console/hubsim"
	"zwave-console/log"
	"zwave-console/notify"
	"zwave-console/protocol"
	"zwave-console/relay"
	"zwave-console/tree"
)

// TestStack は統合テスト用にハブシミュレータとコンソール側の部品一式を管理する
type TestStack struct {
	Config     *config.Config
	Hub        *hubsim.Hub
	Client     *hub.Client
	Tree       *tree.Tree
	Poller     *tree.Poller
	Dispatcher *events.Dispatcher
	Listener   *events.Listener
	Relay      *relay.Transport
	Notices    *notify.Recorder

	hubAddr    string
	mu         sync.Mutex
	running    bool
	logManager *log.LogManager
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewTestStack は新しいテストスタックを作成する
func NewTestStack() (*TestStack, error) {
	// 利用可能なポートを見つける
	port, err := findFreePort()
	if err != nil {
		return nil, fmt.Errorf("利用可能なポートが見つかりません: %w", err)
	}

	// 一時ディレクトリを作成
	tempDir, err := os.MkdirTemp("", "zwave-console-test-*")
	if err != nil {
		return nil, fmt.Errorf("一時ディレクトリの作成に失敗: %w", err)
	}

	hubAddr := fmt.Sprintf("localhost:%d", port)

	// テスト用設定を作成
	cfg := config.NewConfig()
	cfg.Debug = true
	cfg.Log.Filename = filepath.Join(tempDir, "test-zwave-console.log")
	cfg.Hub.BaseURL = fmt.Sprintf("http://%s/rest", hubAddr)
	cfg.Hub.RequestTimeout = "2s"
	cfg.Poll.Interval = "50ms"
	cfg.Events.ReconnectInterval = "50ms"
	cfg.Relay.WebSocket.Enabled = true
	cfg.Relay.WebSocket.Addr = "localhost:0"

	ctx, cancel := context.WithCancel(context.Background())

	return &TestStack{
		Config:  cfg,
		Hub:     hubsim.New(hubsim.DemoNodes()...),
		Notices: &notify.Recorder{},
		hubAddr: hubAddr,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Context はスタックの寿命を表すコンテキストを返す
func (ts *TestStack) Context() context.Context {
	return ts.ctx
}

// Start はハブシミュレータを起動し、ツリー・イベント・リレーを接続する
func (ts *TestStack) Start() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.running {
		return fmt.Errorf("スタックは既に実行中です")
	}
	if err := ts.Config.Validate(); err != nil {
		return err
	}

	// ログマネージャーを作成
	logManager, err := log.NewLogManager(ts.Config.Log.Filename, ts.Config.Debug, ts.Notices, slog.LevelError)
	if err != nil {
		return fmt.Errorf("ログマネージャーの作成に失敗: %w", err)
	}
	ts.logManager = logManager

	// ハブシミュレータを非同期で起動
	go func() {
		if err := ts.Hub.Start(ts.hubAddr); err != nil {
			fmt.Printf("ハブシミュレータの起動に失敗: %v\n", err)
		}
	}()
	if !WaitForCondition(func() bool { return dialable(ts.hubAddr) }, 5*time.Second, 20*time.Millisecond) {
		return fmt.Errorf("ハブシミュレータの起動がタイムアウトしました")
	}

	timeout, _ := ts.Config.RequestTimeout()
	interval, _ := ts.Config.PollInterval()
	reconnect, _ := ts.Config.ReconnectInterval()
	policy, _ := ts.Config.CollapsePolicy()

	client, err := hub.NewClient(ts.Config.Hub.BaseURL, timeout)
	if err != nil {
		return err
	}
	ts.Client = client

	ts.Tree = tree.New(client, tree.Options{
		Concurrency:    int64(ts.Config.Poll.Concurrency),
		CollapsePolicy: policy,
		Notifier:       ts.Notices,
	})
	if _, err := ts.Tree.Reload(ts.ctx); err != nil {
		return fmt.Errorf("ツリーの読み込みに失敗: %w", err)
	}
	ts.Poller = tree.NewPoller(ts.Tree, interval, nil)

	// WebSocketリレーを起動
	ts.Dispatcher = events.NewDispatcher()
	ts.Relay = relay.NewTransport(ts.ctx, ts.Config.Relay.WebSocket.Addr)
	relay.RegisterAll(ts.Dispatcher, relay.EventHandler(ts.Relay), protocol.EventTypes)

	readyChan := make(chan struct{})
	go func() {
		if err := ts.Relay.Start(relay.StartOptions{Ready: readyChan}); err != nil {
			fmt.Printf("WebSocketリレーの起動に失敗: %v\n", err)
		}
	}()
	select {
	case <-readyChan:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("WebSocketリレーの起動がタイムアウトしました")
	}

	ts.Listener = events.NewListener(ts.Dispatcher, events.ListenerOptions{
		URL:               client.EventsURL(ts.Config.Events.Topics),
		Transport:         client.HTTPClient().Transport,
		ReconnectInterval: reconnect,
	})
	if err := ts.Listener.Connect(ts.ctx); err != nil {
		return fmt.Errorf("イベントストリームへの接続に失敗: %w", err)
	}

	ts.running = true
	return nil
}

// Stop はスタックを停止する
func (ts *TestStack) Stop() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.running {
		return nil
	}

	var errs []error

	ts.Poller.Close()
	if err := ts.Listener.Close(); err != nil {
		errs = append(errs, fmt.Errorf("イベントストリームの停止に失敗: %w", err))
	}
	if err := ts.Relay.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("WebSocketリレーの停止に失敗: %w", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.Hub.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("ハブシミュレータの停止に失敗: %w", err))
	}

	// ログマネージャーを停止
	if ts.logManager != nil {
		if err := ts.logManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ログマネージャーの停止に失敗: %w", err))
		}
	}

	// コンテキストをキャンセル
	ts.cancel()

	ts.running = false

	if len(errs) > 0 {
		return fmt.Errorf("停止中にエラーが発生: %v", errs)
	}
	return nil
}

// GetRelayURL はWebSocketリレーのURLを返す
func (ts *TestStack) GetRelayURL() string {
	return fmt.Sprintf("ws://%s/ws", ts.Relay.Addr())
}

// IsRunning はスタックが実行中かどうかを返す
func (ts *TestStack) IsRunning() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.running
}

// findFreePort は利用可能なポートを見つける
func findFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func dialable(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
