package config

import "errors"

// BridgeConfig 浏览器 WebSocket 桥配置
type BridgeConfig struct {
	// Enable 启用 HTTP/WebSocket 桥
	Enable bool `json:"enable"`

	// Addr 监听地址
	Addr string `json:"addr"`

	// MessagesPerSecond 每个客户端每秒最多发送的消息数
	MessagesPerSecond float64 `json:"messages_per_second"`

	// Burst 突发上限
	Burst int `json:"burst"`
}

// DefaultBridgeConfig 返回默认桥配置
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Enable:            false,
		Addr:              "127.0.0.1:8080",
		MessagesPerSecond: 5,
		Burst:             10,
	}
}

// Validate 验证桥配置
func (c BridgeConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.Addr == "" {
		return errors.New("bridge: addr must not be empty")
	}
	if c.MessagesPerSecond <= 0 {
		return errors.New("bridge: messages_per_second must be positive")
	}
	if c.Burst <= 0 {
		return errors.New("bridge: burst must be positive")
	}
	return nil
}
