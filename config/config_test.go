package config

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 默认配置有效
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, NetworkLibp2p, cfg.Network.Kind)
	assert.True(t, cfg.Network.DefaultBootstrap)
	assert.Equal(t, "/topic_simple_text/1/chat/proto", cfg.Session.Topic)
	assert.Equal(t, 10*time.Second, cfg.Session.HeartbeatInterval.Duration())
	assert.Equal(t, 1024, cfg.Session.PresenceCapacity)
	assert.False(t, cfg.Bridge.Enable)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown network kind", func(c *Config) { c.Network.Kind = "carrier-pigeon" }},
		{"negative peer wait", func(c *Config) { c.Network.PeerWaitTimeout = -1 }},
		{"empty bootstrap addr", func(c *Config) { c.Network.BootstrapPeers = []string{""} }},
		{"empty topic", func(c *Config) { c.Session.Topic = "" }},
		{"zero heartbeat", func(c *Config) { c.Session.HeartbeatInterval = 0 }},
		{"zero presence capacity", func(c *Config) { c.Session.PresenceCapacity = 0 }},
		{"bridge without addr", func(c *Config) { c.Bridge.Enable = true; c.Bridge.Addr = "" }},
		{"bridge zero rate", func(c *Config) { c.Bridge.Enable = true; c.Bridge.MessagesPerSecond = 0 }},
		{"bridge zero burst", func(c *Config) { c.Bridge.Enable = true; c.Bridge.Burst = 0 }},
		{"metrics relative path", func(c *Config) { c.Metrics.Enable = true; c.Metrics.Path = "metrics" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("disabled sections are not validated", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Bridge.Addr = ""
		cfg.Metrics.Path = ""
		assert.NoError(t, cfg.Validate())
	})
}

func TestFromJSON(t *testing.T) {
	data := []byte(`{
		"network": {"kind": "memory", "peer_wait_timeout": "5s"},
		"session": {"username": "alice", "heartbeat_interval": "250ms"},
		"bridge": {"enable": true}
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, NetworkMemory, cfg.Network.Kind)
	assert.Equal(t, 5*time.Second, cfg.Network.PeerWaitTimeout.Duration())
	assert.Equal(t, "alice", cfg.Session.Username)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.HeartbeatInterval.Duration())
	assert.True(t, cfg.Bridge.Enable)

	// 未出现的字段保持默认值
	assert.Equal(t, "/topic_simple_text/1/chat/proto", cfg.Session.Topic)
	assert.Equal(t, "127.0.0.1:8080", cfg.Bridge.Addr)
	assert.NoError(t, cfg.Validate())

	_, err = FromJSON([]byte(`{"session": {"heartbeat_interval": "soon"}}`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p2pchat.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session":{"username":"bob"}}`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Session.Username)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestConfig_ToJSONRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Session.Username = "carol"

	data, err := cfg.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"heartbeat_interval": "10s"`)

	back, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestDuration(t *testing.T) {
	t.Run("json number is nanoseconds", func(t *testing.T) {
		var d Duration
		require.NoError(t, json.Unmarshal([]byte(`1000000`), &d))
		assert.Equal(t, time.Millisecond, d.Duration())
	})

	t.Run("invalid", func(t *testing.T) {
		var d Duration
		assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	})

	t.Run("flag value", func(t *testing.T) {
		d := Duration(time.Second)
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.Var(&d, "interval", "")
		require.NoError(t, fs.Parse([]string{"-interval", "3s"}))
		assert.Equal(t, 3*time.Second, d.Duration())
		assert.Equal(t, "3s", d.String())

		assert.Error(t, fs.Parse([]string{"-interval", "x"}))
	})
}
