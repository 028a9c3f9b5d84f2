package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"zwave-console/tree"
)

const (
	// DefaultConfigFile はデフォルトの設定ファイル名
	DefaultConfigFile = "config.toml"
)

// Config はアプリケーション全体の設定を表す
type Config struct {
	Debug bool `toml:"debug"`
	Log   struct {
		Filename string `toml:"filename"`
	} `toml:"log"`
	Hub struct {
		BaseURL        string `toml:"base_url"`
		RequestTimeout string `toml:"request_timeout"` // e.g., "10s"
	} `toml:"hub"`
	Poll struct {
		Interval       string `toml:"interval"` // e.g., "1500ms"
		Concurrency    int    `toml:"concurrency"`
		CollapsePolicy string `toml:"collapse_policy"` // "keep" or "prune"
	} `toml:"poll"`
	Events struct {
		Enabled           bool   `toml:"enabled"`
		Topics            string `toml:"topics"`
		ReconnectInterval string `toml:"reconnect_interval"` // "0" to disable
	} `toml:"events"`
	Relay struct {
		WebSocket struct {
			Enabled bool   `toml:"enabled"`
			Addr    string `toml:"addr"`
		} `toml:"websocket"`
		MQTT struct {
			Enabled     bool     `toml:"enabled"`
			Broker      string   `toml:"broker"`
			ClientID    string   `toml:"client_id"`
			TopicPrefix string   `toml:"topic_prefix"`
			Events      []string `toml:"events"` // 空なら全イベント
		} `toml:"mqtt"`
	} `toml:"relay"`
}

// NewConfig はデフォルト設定を持つConfigを作成する
func NewConfig() *Config {
	cfg := &Config{
		Debug: false,
	}
	cfg.Log.Filename = "zwave-console.log"
	cfg.Hub.BaseURL = "http://localhost:8080/rest"
	cfg.Hub.RequestTimeout = "10s"
	cfg.Poll.Interval = "1500ms"
	cfg.Poll.Concurrency = tree.DefaultConcurrency
	cfg.Poll.CollapsePolicy = string(tree.CollapseKeepPolling)
	cfg.Events.Enabled = true
	cfg.Events.Topics = "smarthome/*"
	cfg.Events.ReconnectInterval = "0"
	cfg.Relay.WebSocket.Addr = "localhost:8081"
	cfg.Relay.MQTT.Broker = "tcp://127.0.0.1:1883"
	cfg.Relay.MQTT.ClientID = "zwave-console"
	cfg.Relay.MQTT.TopicPrefix = "zwave-console"
	return cfg
}

// LoadConfig は設定を読み込む
// 以下の優先順位でロードする:
// 1. 指定されたパスの設定ファイル（指定がある場合）
// 2. カレントディレクトリのデフォルト設定ファイル（存在する場合）
// 3. デフォルト設定
func LoadConfig(configPath string) (*Config, error) {
	config := NewConfig()

	filePath := configPath
	if filePath == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			filePath = DefaultConfigFile
		} else {
			return config, nil
		}
	}

	if _, err := toml.DecodeFile(filePath, config); err != nil {
		return nil, fmt.Errorf("設定ファイル %s を読み込めませんでした: %w", filePath, err)
	}
	return config, nil
}

// Validate は値の形式を検証する
func (c *Config) Validate() error {
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	if _, err := c.ReconnectInterval(); err != nil {
		return err
	}
	if _, err := c.CollapsePolicy(); err != nil {
		return err
	}
	if c.Poll.Concurrency < 1 {
		return fmt.Errorf("poll.concurrency must be at least 1, got %d", c.Poll.Concurrency)
	}
	return nil
}

// RequestTimeout は hub.request_timeout を返す
func (c *Config) RequestTimeout() (time.Duration, error) {
	return parseDuration("hub.request_timeout", c.Hub.RequestTimeout)
}

// PollInterval は poll.interval を返す
func (c *Config) PollInterval() (time.Duration, error) {
	return parseDuration("poll.interval", c.Poll.Interval)
}

// ReconnectInterval は events.reconnect_interval を返す。0 は再接続しない
func (c *Config) ReconnectInterval() (time.Duration, error) {
	return parseDuration("events.reconnect_interval", c.Events.ReconnectInterval)
}

// CollapsePolicy は poll.collapse_policy を返す
func (c *Config) CollapsePolicy() (tree.CollapsePolicy, error) {
	return tree.ParseCollapsePolicy(c.Poll.CollapsePolicy)
}

// parseDuration は "" と "0" を 0 として扱う
func parseDuration(name, s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative duration", name, s)
	}
	return d, nil
}

// ApplyCommandLineArgs はコマンドライン引数で指定された値を設定に適用する
func (c *Config) ApplyCommandLineArgs(args CommandLineArgs) {
	if args.DebugSpecified {
		c.Debug = args.Debug
	}
	if args.LogFilenameSpecified {
		c.Log.Filename = args.LogFilename
	}
	// hub
	if args.HubURLSpecified {
		c.Hub.BaseURL = args.HubURL
	}
	if args.HubTimeoutSpecified {
		c.Hub.RequestTimeout = args.HubTimeout
	}
	// poll
	if args.PollIntervalSpecified {
		c.Poll.Interval = args.PollInterval
	}
	if args.PollConcurrencySpecified {
		c.Poll.Concurrency = args.PollConcurrency
	}
	if args.CollapsePolicySpecified {
		c.Poll.CollapsePolicy = args.CollapsePolicy
	}
	// events
	if args.EventsEnabledSpecified {
		c.Events.Enabled = args.EventsEnabled
	}
	if args.TopicsSpecified {
		c.Events.Topics = args.Topics
	}
	if args.ReconnectSpecified {
		c.Events.ReconnectInterval = args.Reconnect
	}
	// relay
	if args.RelayWebSocketSpecified {
		c.Relay.WebSocket.Enabled = args.RelayWebSocket
	}
	if args.RelayWebSocketAddrSpecified {
		c.Relay.WebSocket.Addr = args.RelayWebSocketAddr
	}
	if args.MQTTEnabledSpecified {
		c.Relay.MQTT.Enabled = args.MQTTEnabled
	}
	if args.MQTTBrokerSpecified {
		c.Relay.MQTT.Broker = args.MQTTBroker
	}
}

// CommandLineArgs はコマンドライン引数からの値を保持する
type CommandLineArgs struct {
	// 設定ファイル (メタ設定)
	ConfigFile      string
	ConfigSpecified bool

	// 一般設定
	Debug          bool
	DebugSpecified bool

	// ログ設定
	LogFilename          string
	LogFilenameSpecified bool

	// ハブ設定
	HubURL              string
	HubURLSpecified     bool
	HubTimeout          string
	HubTimeoutSpecified bool

	// ポーリング設定
	PollInterval             string
	PollIntervalSpecified    bool
	PollConcurrency          int
	PollConcurrencySpecified bool
	CollapsePolicy           string
	CollapsePolicySpecified  bool

	// イベント設定
	EventsEnabled          bool
	EventsEnabledSpecified bool
	Topics                 string
	TopicsSpecified        bool
	Reconnect              string
	ReconnectSpecified     bool

	// リレー設定
	RelayWebSocket              bool
	RelayWebSocketSpecified     bool
	RelayWebSocketAddr          string
	RelayWebSocketAddrSpecified bool
	MQTTEnabled                 bool
	MQTTEnabledSpecified        bool
	MQTTBroker                  string
	MQTTBrokerSpecified         bool
}

// ParseCommandLineArgs はプロセスのコマンドライン引数をパースする
func ParseCommandLineArgs() CommandLineArgs {
	// ExitOnError なのでエラーは返らない
	args, _ := ParseArgs(flag.CommandLine, os.Args[1:])
	return args
}

// ParseArgs は fs にフラグを定義して arguments をパースする
func ParseArgs(fs *flag.FlagSet, arguments []string) (CommandLineArgs, error) {
	var args CommandLineArgs
	defaults := NewConfig()

	fs.StringVar(&args.ConfigFile, "config", "", "TOML設定ファイルのパスを指定する")
	fs.BoolVar(&args.Debug, "debug", false, "デバッグモードを有効にする")
	fs.StringVar(&args.LogFilename, "log", defaults.Log.Filename, "ログファイル名を指定する")

	fs.StringVar(&args.HubURL, "hub", defaults.Hub.BaseURL, "ハブの REST ベースURLを指定する")
	fs.StringVar(&args.HubTimeout, "hub-timeout", defaults.Hub.RequestTimeout, "REST リクエストのタイムアウトを指定する")

	fs.StringVar(&args.PollInterval, "poll-interval", defaults.Poll.Interval, "展開中ノードの更新間隔を指定する")
	fs.IntVar(&args.PollConcurrency, "poll-concurrency", defaults.Poll.Concurrency, "同時に発行する更新リクエスト数の上限")
	fs.StringVar(&args.CollapsePolicy, "collapse", defaults.Poll.CollapsePolicy, "折りたたみ時の動作 (keep または prune)")

	fs.BoolVar(&args.EventsEnabled, "events", defaults.Events.Enabled, "イベントストリームを購読する")
	fs.StringVar(&args.Topics, "topics", defaults.Events.Topics, "購読するトピックのパターン")
	fs.StringVar(&args.Reconnect, "reconnect", defaults.Events.ReconnectInterval, "イベントストリームの再接続間隔 (0 で無効)")

	fs.BoolVar(&args.RelayWebSocket, "relay-ws", false, "WebSocket リレーを有効にする")
	fs.StringVar(&args.RelayWebSocketAddr, "relay-ws-addr", defaults.Relay.WebSocket.Addr, "WebSocket リレーの待ち受けアドレス")
	fs.BoolVar(&args.MQTTEnabled, "mqtt", false, "MQTT リレーを有効にする")
	fs.StringVar(&args.MQTTBroker, "mqtt-broker", defaults.Relay.MQTT.Broker, "MQTT ブローカーのアドレス")

	if err := fs.Parse(arguments); err != nil {
		return args, err
	}

	// 明示的に指定されたフラグだけを記録する
	specified := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { specified[f.Name] = true })

	args.ConfigSpecified = specified["config"]
	args.DebugSpecified = specified["debug"]
	args.LogFilenameSpecified = specified["log"]
	args.HubURLSpecified = specified["hub"]
	args.HubTimeoutSpecified = specified["hub-timeout"]
	args.PollIntervalSpecified = specified["poll-interval"]
	args.PollConcurrencySpecified = specified["poll-concurrency"]
	args.CollapsePolicySpecified = specified["collapse"]
	args.EventsEnabledSpecified = specified["events"]
	args.TopicsSpecified = specified["topics"]
	args.ReconnectSpecified = specified["reconnect"]
	args.RelayWebSocketSpecified = specified["relay-ws"]
	args.RelayWebSocketAddrSpecified = specified["relay-ws-addr"]
	args.MQTTEnabledSpecified = specified["mqtt"]
	args.MQTTBrokerSpecified = specified["mqtt-broker"]

	return args, nil
}
