package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zwave-console/tree"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	interval, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, interval)

	reconnect, err := cfg.ReconnectInterval()
	require.NoError(t, err)
	assert.Zero(t, reconnect)

	policy, err := cfg.CollapsePolicy()
	require.NoError(t, err)
	assert.Equal(t, tree.CollapseKeepPolling, policy)
	assert.Equal(t, "http://localhost:8080/rest", cfg.Hub.BaseURL)
	assert.Equal(t, "smarthome/*", cfg.Events.Topics)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
debug = true

[hub]
base_url = "http://hub.local:8080/rest"

[poll]
interval = "2s"
collapse_policy = "prune"

[events]
reconnect_interval = "5s"

[relay.mqtt]
enabled = true
events = ["ItemStateEvent"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Debug)
	assert.Equal(t, "http://hub.local:8080/rest", cfg.Hub.BaseURL)
	assert.Equal(t, "10s", cfg.Hub.RequestTimeout, "unset keys keep their defaults")
	assert.Equal(t, "prune", cfg.Poll.CollapsePolicy)
	assert.True(t, cfg.Relay.MQTT.Enabled)
	assert.Equal(t, []string{"ItemStateEvent"}, cfg.Relay.MQTT.Events)

	reconnect, err := cfg.ReconnectInterval()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, reconnect)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("debug = [unclosed"), 0644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"interval", func(c *Config) { c.Poll.Interval = "soon" }},
		{"negative timeout", func(c *Config) { c.Hub.RequestTimeout = "-1s" }},
		{"policy", func(c *Config) { c.Poll.CollapsePolicy = "forget" }},
		{"concurrency", func(c *Config) { c.Poll.Concurrency = 0 }},
		{"reconnect", func(c *Config) { c.Events.ReconnectInterval = "x" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseArgsTracksSpecifiedFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	args, err := ParseArgs(fs, []string{"-debug", "-hub", "http://other/rest", "-collapse=prune", "-events=false"})
	require.NoError(t, err)

	assert.True(t, args.DebugSpecified)
	assert.True(t, args.HubURLSpecified)
	assert.True(t, args.CollapsePolicySpecified)
	assert.True(t, args.EventsEnabledSpecified)
	assert.False(t, args.PollIntervalSpecified)
	assert.False(t, args.ConfigSpecified)

	cfg := NewConfig()
	cfg.Poll.Interval = "3s" // ファイルからの値を想定
	cfg.ApplyCommandLineArgs(args)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "http://other/rest", cfg.Hub.BaseURL)
	assert.Equal(t, "prune", cfg.Poll.CollapsePolicy)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "3s", cfg.Poll.Interval, "unspecified flags do not override the file")
}

func TestParseArgsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	_, err := ParseArgs(fs, []string{"-nope"})
	assert.Error(t, err)
}
