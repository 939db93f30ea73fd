package config

import (
	"errors"
	"time"
)

// SessionConfig 会话配置
type SessionConfig struct {
	// Topic 聊天主题
	Topic string `json:"topic"`

	// Username 本地用户名，出现在发出的消息和心跳中
	Username string `json:"username"`

	// HeartbeatInterval 在线状态心跳间隔
	HeartbeatInterval Duration `json:"heartbeat_interval"`

	// PresenceCapacity 在线状态表最多保留的用户数
	PresenceCapacity int `json:"presence_capacity"`
}

// DefaultSessionConfig 返回默认会话配置
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Topic:             "/topic_simple_text/1/chat/proto",
		HeartbeatInterval: Duration(10 * time.Second),
		PresenceCapacity:  1024,
	}
}

// Validate 验证会话配置
//
// Username 可以为空：由应用层在启动前补全。
func (c SessionConfig) Validate() error {
	if c.Topic == "" {
		return errors.New("session: topic must not be empty")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("session: heartbeat_interval must be positive")
	}
	if c.PresenceCapacity <= 0 {
		return errors.New("session: presence_capacity must be positive")
	}
	return nil
}
