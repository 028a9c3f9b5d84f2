package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zwave-console/config"
	"zwave-console/console"
	"zwave-console/events"
	"zwave-console/hub"
	"zwave-console/log"
	"zwave-console/protocol"
	"zwave-console/relay"
	"zwave-console/tree"
)

const mqttConnectTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// コマンドライン引数の解析
	args := config.ParseCommandLineArgs()

	// 設定ファイルの読み込み
	cfg, err := config.LoadConfig(args.ConfigFile)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	cfg.ApplyCommandLineArgs(args)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 通知はコンソールに表示する
	notifier := console.NewNotifier(os.Stdout)

	// ロガーのセットアップ
	logManager, err := log.NewLogManager(cfg.Log.Filename, cfg.Debug, notifier, slog.LevelError)
	if err != nil {
		return fmt.Errorf("ログ設定エラー: %w", err)
	}
	defer func() { _ = logManager.Close() }()

	// ルートコンテキストの作成
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // プログラム終了時にコンテキストをキャンセル

	// シグナルハンドリングの設定 (SIGINT, SIGTERM)
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)
	go func() {
		select {
		case <-signalCh:
			fmt.Println("\nシグナルを受信しました。終了します...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// 設定値は Validate 済み
	requestTimeout, _ := cfg.RequestTimeout()
	pollInterval, _ := cfg.PollInterval()
	reconnectInterval, _ := cfg.ReconnectInterval()
	policy, _ := cfg.CollapsePolicy()

	client, err := hub.NewClient(cfg.Hub.BaseURL, requestTimeout)
	if err != nil {
		return err
	}
	slog.Info("Starting zwave-console", "hub", client.BaseURL(), "debug", cfg.Debug)

	// 設定ツリー
	configTree := tree.New(client, tree.Options{
		Concurrency:    int64(cfg.Poll.Concurrency),
		CollapsePolicy: policy,
		Notifier:       notifier,
	})
	if nodes, err := configTree.Reload(ctx); err != nil {
		fmt.Printf("ノードの読み込みに失敗しました: %v\n", err)
	} else {
		fmt.Printf("%d 件のノードを読み込みました\n", len(nodes))
	}

	poller := tree.NewPoller(configTree, pollInterval, nil)
	if err := poller.Show(ctx); err != nil {
		return err
	}
	defer poller.Close()

	// イベントの配信先
	dispatcher := events.NewDispatcher()
	var watcher *console.Watcher
	if cfg.Events.Enabled {
		watcher = console.NewWatcher(os.Stdout)
		relay.RegisterAll(dispatcher, watcher, protocol.EventTypes)
	}

	if cfg.Relay.WebSocket.Enabled {
		transport := relay.NewTransport(ctx, cfg.Relay.WebSocket.Addr)
		relay.RegisterAll(dispatcher, relay.EventHandler(transport), protocol.EventTypes)
		transport.SetConnectHandler(func(connID string) error {
			slog.Info("Relay client connected", "conn", connID, "clients", transport.Clients())
			return nil
		})
		transport.SetDisconnectHandler(func(connID string) {
			slog.Info("Relay client disconnected", "conn", connID, "clients", transport.Clients())
		})
		go func() {
			if err := transport.Start(relay.StartOptions{}); err != nil {
				slog.Error("WebSocket relay failed", "addr", cfg.Relay.WebSocket.Addr, "err", err)
			}
		}()
		defer func() { _ = transport.Stop() }()
	}

	if cfg.Relay.MQTT.Enabled {
		publisher := relay.NewMQTTPublisher(relay.MQTTOptions{
			Broker:      cfg.Relay.MQTT.Broker,
			ClientID:    cfg.Relay.MQTT.ClientID,
			TopicPrefix: cfg.Relay.MQTT.TopicPrefix,
		})
		connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err := publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			// 自動再接続に任せる
			slog.Warn("MQTT relay not connected yet", "broker", cfg.Relay.MQTT.Broker, "err", err)
		}
		mqttEvents := cfg.Relay.MQTT.Events
		if len(mqttEvents) == 0 {
			mqttEvents = protocol.EventTypes
		}
		relay.RegisterAll(dispatcher, publisher, mqttEvents)
		defer publisher.Close()
	}

	if cfg.Events.Enabled {
		slog.Info("Event handlers registered", "types", dispatcher.Types())
		listener := events.NewListener(dispatcher, events.ListenerOptions{
			URL:               client.EventsURL(cfg.Events.Topics),
			Transport:         client.HTTPClient().Transport,
			ReconnectInterval: reconnectInterval,
		})
		if err := listener.Connect(ctx); err != nil {
			fmt.Printf("イベントストリームに接続できませんでした: %v\n", err)
		}
		defer func() { _ = listener.Close() }()
	}

	err = console.ConsoleProcess(ctx, console.Options{
		Tree:     configTree,
		Poller:   poller,
		Watch:    watcher,
		Notifier: notifier,
		Debug:    logManager,
	})
	slog.Info("zwave-console stopped")
	return err
}
