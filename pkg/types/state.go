package types

import "fmt"

// ============================================================================
//                              ConnectionState - 连接状态
// ============================================================================

// ConnectionState 会话连接状态
//
// 正常启动时单调前进：none → starting → connecting → ready。
// 只有连接管理器可以推进状态，其他组件只读。
type ConnectionState int

const (
	// StateNone 尚未发起连接
	StateNone ConnectionState = iota
	// StateStarting 已发起连接建立
	StateStarting
	// StateConnecting 网络句柄已创建，等待远端节点确认
	StateConnecting
	// StateReady 至少一个远端节点可达
	StateReady
)

// String 返回状态的字符串表示
func (s ConnectionState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateStarting:
		return "starting"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// IsValid 检查状态是否为已定义的值
func (s ConnectionState) IsValid() bool {
	return s >= StateNone && s <= StateReady
}

// ParseConnectionState 从字符串解析连接状态
func ParseConnectionState(s string) (ConnectionState, error) {
	switch s {
	case "none":
		return StateNone, nil
	case "starting":
		return StateStarting, nil
	case "connecting":
		return StateConnecting, nil
	case "ready":
		return StateReady, nil
	default:
		return StateNone, fmt.Errorf("unknown connection state %q", s)
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (s *ConnectionState) UnmarshalText(text []byte) error {
	parsed, err := ParseConnectionState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
