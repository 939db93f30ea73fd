package p2pchat

import (
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              类型别名
// ════════════════════════════════════════════════════════════════════════════

type (
	// ConnectionState 连接状态
	ConnectionState = types.ConnectionState

	// Topic 发布订阅主题
	Topic = types.Topic

	// Payload 应用层载荷
	Payload = types.Payload

	// PayloadKind 载荷类型标签
	PayloadKind = types.PayloadKind

	// ChatMessage 聊天消息
	ChatMessage = types.ChatMessage

	// PresenceUpdate 在线状态
	PresenceUpdate = types.PresenceUpdate

	// EvtStatusChanged 连接状态变更事件
	EvtStatusChanged = types.EvtStatusChanged

	// EvtPresenceChanged 在线状态更新事件
	EvtPresenceChanged = types.EvtPresenceChanged

	// TrafficStats 流量统计
	TrafficStats = metrics.Stats
)

// 连接状态
const (
	StateNone       = types.StateNone
	StateStarting   = types.StateStarting
	StateConnecting = types.StateConnecting
	StateReady      = types.StateReady
)

// 载荷类型
const (
	KindMessage    = types.KindMessage
	KindUserStatus = types.KindUserStatus
)

// DefaultTopic 默认聊天主题
const DefaultTopic = types.DefaultTopic

// Handler 主题消息处理函数
//
// 在投递消息的 goroutine 上顺序调用；同一主题的多个处理函数按注册顺序执行。
type Handler func(topic Topic, payload Payload)
