package console

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"zwave-console/events"
	"zwave-console/notify"
	"zwave-console/protocol"
)

// Notifier はユーザー通知をコンソールに表示する
type Notifier struct {
	mu  sync.Mutex
	out io.Writer
}

var _ notify.Notifier = (*Notifier)(nil)

func NewNotifier(out io.Writer) *Notifier {
	return &Notifier{out: out}
}

// SetOutput は出力先を切り替える
func (n *Notifier) SetOutput(w io.Writer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.out = w
}

func (n *Notifier) Notify(severity notify.Severity, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "[%s] %s\n", severity, message)
}

// Watcher は受信イベントを表示するハンドラ。既定では表示しない
type Watcher struct {
	enabled atomic.Bool
	mu      sync.Mutex
	out     io.Writer
}

var _ events.Handler = (*Watcher)(nil)

func NewWatcher(out io.Writer) *Watcher {
	return &Watcher{out: out}
}

func (w *Watcher) SetOutput(out io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.out = out
}

func (w *Watcher) SetEnabled(enabled bool) {
	w.enabled.Store(enabled)
}

func (w *Watcher) Enabled() bool {
	return w.enabled.Load()
}

func (w *Watcher) HandleEvent(env protocol.Envelope, payload interface{}) {
	if !w.Enabled() {
		return
	}
	text, ok := formatItemEvent(env)
	if !ok {
		text = env.Topic + " " + env.Payload
		if payload != nil {
			if b, err := json.Marshal(payload); err == nil {
				text = env.Topic + " " + string(b)
			}
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "[EVENT] %s %s\n", env.Type, text)
}

// itemName は smarthome/items/<item>/... 形式のトピックからアイテム名を取り出す
func itemName(env protocol.Envelope) (string, bool) {
	parts := env.TopicParts()
	if len(parts) < 3 || parts[1] != "items" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

// formatItemEvent はアイテムの状態イベントを "アイテム = 値" の形で表す
func formatItemEvent(env protocol.Envelope) (string, bool) {
	name, ok := itemName(env)
	if !ok {
		return "", false
	}
	switch env.Type {
	case protocol.EventTypeItemState, protocol.EventTypeItemCommand:
		var p protocol.ItemStatePayload
		if err := protocol.ParsePayload(&env, &p); err != nil {
			return "", false
		}
		return fmt.Sprintf("%s = %s", name, p.Value), true
	case protocol.EventTypeItemStateChanged:
		var p protocol.ItemStateChangedPayload
		if err := protocol.ParsePayload(&env, &p); err != nil {
			return "", false
		}
		return fmt.Sprintf("%s = %s (旧値 %s)", name, p.Value, p.OldValue), true
	}
	return "", false
}
