// Package types 定义 go-p2pchat 公共类型
//
// 本文件定义事件相关类型。
package types

import "time"

// ============================================================================
//                              Event - 事件接口
// ============================================================================

// Event 基础事件接口
type Event interface {
	// Type 返回事件类型
	Type() string

	// Timestamp 返回事件时间戳
	Timestamp() time.Time
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	EventType string
	Time      time.Time
}

// Type 返回事件类型
func (e BaseEvent) Type() string {
	return e.EventType
}

// Timestamp 返回事件时间戳
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
	}
}

// 事件类型名称
const (
	EventTypeStatusChanged   = "session.status_changed"
	EventTypePresenceChanged = "session.presence_changed"
)

// ============================================================================
//                              会话事件
// ============================================================================

// EvtStatusChanged 连接状态变更事件
type EvtStatusChanged struct {
	BaseEvent
	Old ConnectionState
	New ConnectionState
	// Err 建立失败时的错误（状态不变）
	Err error
}

// EvtPresenceChanged 在线状态表更新事件
type EvtPresenceChanged struct {
	BaseEvent
	Topic  Topic
	Update PresenceUpdate
}
