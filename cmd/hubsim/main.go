package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"zwave-console/hubsim"
	"zwave-console/protocol"
)

// 値を変化させるデモ用ノード
const (
	demoDomain = "nodes/5/parameters/7"
	demoItem   = "ZWaveNode5_DimStep"
)

func main() {
	// コマンドライン引数の定義
	addr := flag.String("addr", "localhost:8080", "待ち受けアドレス")
	interval := flag.Duration("interval", 5*time.Second, "デモイベントの発行間隔 (0 で無効)")
	debugFlag := flag.Bool("debug", false, "デバッグモードを有効にする")
	flag.Parse()

	level := slog.LevelInfo
	if *debugFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := hubsim.New(hubsim.DemoNodes()...)
	if *interval > 0 {
		go publishLoop(ctx, hub, *interval)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Shutdown failed", "err", err)
		}
	}()

	fmt.Printf("ハブシミュレータを起動しています: http://%s/rest\n", *addr)
	if err := hub.Start(*addr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "サーバーエラー: %v\n", err)
		os.Exit(1)
	}
}

// publishLoop はデモノードの値を変えながらイベントを発行する
func publishLoop(ctx context.Context, hub *hubsim.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	value := 1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		old := strconv.Itoa(value)
		value = value%99 + 1
		next := strconv.Itoa(value)
		hub.UpdateValue(demoDomain, next, protocol.NodeStateOK)

		topic := "smarthome/items/" + demoItem + "/statechanged"
		n, err := hub.Publish(protocol.EventTypeItemStateChanged, topic, protocol.ItemStateChangedPayload{
			Type:     "Decimal",
			Value:    next,
			OldType:  "Decimal",
			OldValue: old,
		})
		if err != nil {
			slog.Warn("Failed to publish event", "topic", topic, "err", err)
			continue
		}
		slog.Debug("Published event", "topic", topic, "value", next, "subscribers", n)
	}
}
