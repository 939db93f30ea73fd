package types

import "time"

// ============================================================================
//                              PayloadKind - 载荷类型标签
// ============================================================================

// PayloadKind 载荷类型标签，线上总是存在并决定解码形状
type PayloadKind string

const (
	// KindMessage 聊天消息
	KindMessage PayloadKind = "message"
	// KindUserStatus 用户在线状态
	KindUserStatus PayloadKind = "user_status"
)

// String 返回标签字符串
func (k PayloadKind) String() string {
	return string(k)
}

// IsKnown 检查标签是否为已知类型
func (k PayloadKind) IsKnown() bool {
	return k == KindMessage || k == KindUserStatus
}

// ============================================================================
//                              Payload - 载荷
// ============================================================================

// Payload 应用层载荷（封闭的标签联合）
//
// 只有 ChatMessage 和 PresenceUpdate 实现该接口。
type Payload interface {
	// Kind 返回载荷类型标签
	Kind() PayloadKind

	isPayload()
}

// ChatMessage 聊天消息
type ChatMessage struct {
	// Username 发送者用户名
	Username string

	// Text 消息文本
	Text string

	// TimestampMillis 发送时间（Unix 毫秒）
	TimestampMillis uint64
}

// Kind 返回 KindMessage
func (ChatMessage) Kind() PayloadKind { return KindMessage }

func (ChatMessage) isPayload() {}

// Time 返回发送时间
func (m ChatMessage) Time() time.Time {
	return time.UnixMilli(int64(m.TimestampMillis))
}

// PresenceUpdate 在线状态（心跳）
type PresenceUpdate struct {
	// Username 用户名
	Username string

	// LastSeenMillis 最近在线时间（Unix 毫秒）
	LastSeenMillis uint64
}

// Kind 返回 KindUserStatus
func (PresenceUpdate) Kind() PayloadKind { return KindUserStatus }

func (PresenceUpdate) isPayload() {}

// Time 返回最近在线时间
func (p PresenceUpdate) Time() time.Time {
	return time.UnixMilli(int64(p.LastSeenMillis))
}

// NowMillis 将时间转换为 Unix 毫秒
//
// 早于 Unix 纪元的时间返回 0。
func NowMillis(t time.Time) uint64 {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}

// 确保实现接口
var (
	_ Payload = ChatMessage{}
	_ Payload = PresenceUpdate{}
)
